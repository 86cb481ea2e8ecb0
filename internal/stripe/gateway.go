// Package stripe implements the payment gateway on top of Stripe Checkout.
package stripe

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/domain/payment"
)

var _ payment.Gateway = (*Gateway)(nil)

// Config configures the Stripe gateway.
type Config struct {
	SecretKey string
	Currency  string

	// Backends overrides the Stripe API backends. Used in tests.
	Backends *stripe.Backends

	// BreakerFailures is the number of consecutive failures that open the
	// circuit breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Currency == "" {
		c.Currency = string(stripe.CurrencyUSD)
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// Gateway creates Checkout sessions and resolves payment intents to them.
type Gateway struct {
	api      *client.API
	currency string
	breaker  *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
}

// NewGateway creates a Stripe gateway.
func NewGateway(cfg Config, lg *zap.Logger) *Gateway {
	cfg.setDefaults()
	if lg == nil {
		lg = zap.NewNop()
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, cfg.Backends)

	breaker := gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:    "stripe",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, payment.ErrSessionNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &Gateway{
		api:      api,
		currency: cfg.Currency,
		breaker:  breaker,
	}
}

// CreateCheckoutSession creates a hosted payment-mode Checkout session.
// The order and user identifiers are attached as metadata to both the
// session and its payment intent.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	metadata := map[string]string{
		payment.MetadataOrderID: req.OrderID,
		payment.MetadataUserID:  req.UserID,
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, it := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
				UnitAmount: stripe.Int64(it.UnitAmount),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		LineItems:  lineItems,
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx

	s, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	zctx.From(ctx).Debug("Checkout session created",
		zap.String("session_id", s.ID),
		zap.String("order_id", req.OrderID),
	)
	return toSession(s), nil
}

// SessionByPaymentIntent returns the Checkout session that produced the
// payment intent.
func (g *Gateway) SessionByPaymentIntent(ctx context.Context, paymentIntentID string) (*payment.Session, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	s, err := g.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		iter := g.api.CheckoutSessions.List(params)
		if iter.Next() {
			return iter.CheckoutSession(), nil
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return nil, payment.ErrSessionNotFound
	})
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "list sessions of %q", paymentIntentID)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) *payment.Session {
	md := make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		md[k] = v
	}
	return &payment.Session{
		ID:       s.ID,
		URL:      s.URL,
		Metadata: md,
	}
}
