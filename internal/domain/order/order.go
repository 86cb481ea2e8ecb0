package order

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// PaymentType is how the customer pays for an order.
type PaymentType string

const (
	// PaymentCOD is cash on delivery.
	PaymentCOD PaymentType = "COD"
	// PaymentOnline is a hosted gateway checkout.
	PaymentOnline PaymentType = "Online"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is the state of every order at creation.
	StatusPending Status = "pending"
	// StatusPaid is set once the gateway reports a successful payment.
	StatusPaid Status = "paid"
	// StatusCancelled is set when the payment failed or checkout could not
	// be started.
	StatusCancelled Status = "cancelled"
)

// Order is a placed customer order. Amount is fixed at creation and never
// recomputed.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	Amount          decimal.Decimal
	AddressID       string
	PaymentType     PaymentType
	Status          Status
	PaymentIntentID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPaid reports whether the order has been paid.
func (o *Order) IsPaid() bool {
	return o.Status == StatusPaid
}

// VisibleToSeller reports whether the seller dashboard lists the order:
// cash-on-delivery orders always, online orders once paid.
func (o *Order) VisibleToSeller() bool {
	return o.PaymentType == PaymentCOD || o.IsPaid()
}

// Item is a single line of an order.
type Item struct {
	ProductID string
	Quantity  int
}

// Transition moves an order to To when its current status is in From.
type Transition struct {
	From            []Status
	To              Status
	PaymentIntentID string
}

// Allows reports whether the transition applies to an order in status s.
func (t Transition) Allows(s Status) bool {
	return slices.Contains(t.From, s)
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// Apply atomically performs t. It returns changed=false without error
	// when the order exists but is not in one of t.From, and ErrNotFound
	// when the order does not exist.
	Apply(ctx context.Context, id string, t Transition) (changed bool, err error)
	// ListByUser returns the user's orders except cancelled ones, newest
	// first.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// ListForSeller returns orders that are cash on delivery or paid,
	// newest first.
	ListForSeller(ctx context.Context) ([]Order, error)
}

// EventType names an order lifecycle event.
type EventType string

// Order lifecycle events.
const (
	EventPlaced    EventType = "order.placed"
	EventPaid      EventType = "order.paid"
	EventCancelled EventType = "order.cancelled"
)

// Event is an order lifecycle notification for downstream consumers.
type Event struct {
	Type        EventType
	OrderID     string
	UserID      string
	Amount      decimal.Decimal
	PaymentType PaymentType
	Status      Status
	OccurredAt  time.Time
}

// NewEvent builds an event of type typ from the order's current state.
func NewEvent(typ EventType, o *Order, at time.Time) Event {
	return Event{
		Type:        typ,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Amount:      o.Amount,
		PaymentType: o.PaymentType,
		Status:      o.Status,
		OccurredAt:  at,
	}
}

// EventRecorder stores lifecycle events for asynchronous publication.
type EventRecorder interface {
	Record(ctx context.Context, e Event) error
}

// NopRecorder discards events.
type NopRecorder struct{}

// Record implements EventRecorder.
func (NopRecorder) Record(context.Context, Event) error { return nil }
