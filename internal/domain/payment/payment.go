// Package payment describes the payment gateway the storefront delegates
// online payments to. The gateway is an opaque external service: it creates
// hosted checkout sessions and later reports payment outcomes through
// signed webhook events.
package payment

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrSessionNotFound is returned when no checkout session is linked to
	// a payment intent.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrInvalidSignature is returned when a webhook payload fails
	// signature verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Metadata keys attached to checkout sessions for webhook correlation.
const (
	MetadataOrderID = "orderId"
	MetadataUserID  = "userId"
)

// EventType is a gateway webhook event type.
type EventType string

// Webhook event types the storefront reacts to.
const (
	EventPaymentSucceeded EventType = "payment_intent.succeeded"
	EventPaymentFailed    EventType = "payment_intent.payment_failed"
)

// LineItem is one priced line on a checkout page.
type LineItem struct {
	Name string
	// UnitAmount is the price of one unit in the currency's minor unit.
	UnitAmount int64
	Quantity   int64
}

// CheckoutRequest describes a checkout session to create.
type CheckoutRequest struct {
	OrderID    string
	UserID     string
	Items      []LineItem
	SuccessURL string
	CancelURL  string
}

// Session is a hosted checkout session.
type Session struct {
	ID       string
	URL      string
	Metadata map[string]string
}

// OrderID returns the order identifier stored in the session metadata.
func (s *Session) OrderID() string { return s.Metadata[MetadataOrderID] }

// UserID returns the user identifier stored in the session metadata.
func (s *Session) UserID() string { return s.Metadata[MetadataUserID] }

// Event is a verified webhook notification.
type Event struct {
	ID              string
	Type            EventType
	PaymentIntentID string
}

// Gateway creates checkout sessions and resolves payment intents back to
// the session that produced them.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	SessionByPaymentIntent(ctx context.Context, paymentIntentID string) (*Session, error)
}

// WebhookVerifier authenticates a raw webhook payload and decodes it.
// Verification failures wrap ErrInvalidSignature.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signature string) (*Event, error)
}
