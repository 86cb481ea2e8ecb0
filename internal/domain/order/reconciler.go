package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/domain/payment"
)

// Outcome describes what a webhook event did to order state.
type Outcome string

const (
	OutcomePaid      Outcome = "paid"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeNoop means the event was valid but changed nothing: the order
	// was already in the target state or could not be found.
	OutcomeNoop Outcome = "noop"
	// OutcomeUnhandled means the event type is not one the storefront
	// reacts to.
	OutcomeUnhandled Outcome = "unhandled"
)

// CartClearer empties a user's server-side cart.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

// Reconciler applies verified payment gateway events to orders and carts.
// Every transition is conditional on the current status, so repeated or
// reordered deliveries converge on the same state.
type Reconciler struct {
	orders  Repository
	carts   CartClearer
	gateway payment.Gateway
	events  EventRecorder
	now     func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(orders Repository, carts CartClearer, gateway payment.Gateway, events EventRecorder) *Reconciler {
	if events == nil {
		events = NopRecorder{}
	}
	return &Reconciler{
		orders:  orders,
		carts:   carts,
		gateway: gateway,
		events:  events,
		now:     time.Now,
	}
}

// Handle dispatches a single event.
func (r *Reconciler) Handle(ctx context.Context, e *payment.Event) (Outcome, error) {
	lg := zctx.From(ctx).With(
		zap.String("event_id", e.ID),
		zap.String("event_type", string(e.Type)),
		zap.String("payment_intent", e.PaymentIntentID),
	)

	switch e.Type {
	case payment.EventPaymentSucceeded:
		return r.succeeded(zctx.Base(ctx, lg), e)
	case payment.EventPaymentFailed:
		return r.failed(zctx.Base(ctx, lg), e)
	default:
		lg.Info("Unhandled event type")
		return OutcomeUnhandled, nil
	}
}

func (r *Reconciler) succeeded(ctx context.Context, e *payment.Event) (Outcome, error) {
	session, ok, err := r.session(ctx, e.PaymentIntentID)
	if err != nil || !ok {
		return OutcomeNoop, err
	}

	changed, err := r.orders.Apply(ctx, session.OrderID(), Transition{
		From:            []Status{StatusPending, StatusCancelled},
		To:              StatusPaid,
		PaymentIntentID: e.PaymentIntentID,
	})
	if errors.Is(err, ErrNotFound) {
		zctx.From(ctx).Warn("Paid order not found", zap.String("order_id", session.OrderID()))
		return OutcomeNoop, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "mark order paid")
	}
	if !changed {
		return OutcomeNoop, nil
	}

	o, err := r.orders.GetByID(ctx, session.OrderID())
	if err != nil {
		return "", errors.Wrap(err, "get paid order")
	}

	userID := session.UserID()
	if userID == "" {
		userID = o.UserID
	}
	// The order is already paid and a redelivery would be a no-op, so a
	// failed clear is not retried.
	if err := r.carts.ClearCart(ctx, userID); err != nil {
		zctx.From(ctx).Error("Clear cart after payment", zap.String("user_id", userID), zap.Error(err))
	}

	r.record(ctx, NewEvent(EventPaid, o, r.now().UTC()))
	zctx.From(ctx).Info("Order paid", zap.String("order_id", o.ID))
	return OutcomePaid, nil
}

func (r *Reconciler) failed(ctx context.Context, e *payment.Event) (Outcome, error) {
	session, ok, err := r.session(ctx, e.PaymentIntentID)
	if err != nil || !ok {
		return OutcomeNoop, err
	}

	changed, err := r.orders.Apply(ctx, session.OrderID(), Transition{
		From:            []Status{StatusPending},
		To:              StatusCancelled,
		PaymentIntentID: e.PaymentIntentID,
	})
	if errors.Is(err, ErrNotFound) {
		return OutcomeNoop, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "cancel order")
	}
	if !changed {
		return OutcomeNoop, nil
	}

	o, err := r.orders.GetByID(ctx, session.OrderID())
	if err != nil {
		return "", errors.Wrap(err, "get cancelled order")
	}
	r.record(ctx, NewEvent(EventCancelled, o, r.now().UTC()))
	zctx.From(ctx).Info("Order cancelled", zap.String("order_id", o.ID))
	return OutcomeCancelled, nil
}

// session resolves the checkout session of a payment intent. A session
// that is missing or lacks an order id is reported with ok=false.
func (r *Reconciler) session(ctx context.Context, paymentIntentID string) (*payment.Session, bool, error) {
	if paymentIntentID == "" {
		return nil, false, nil
	}
	s, err := r.gateway.SessionByPaymentIntent(ctx, paymentIntentID)
	if errors.Is(err, payment.ErrSessionNotFound) {
		zctx.From(ctx).Warn("No checkout session for payment intent")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get checkout session")
	}
	if s.OrderID() == "" {
		zctx.From(ctx).Warn("Checkout session without order id", zap.String("session_id", s.ID))
		return nil, false, nil
	}
	return s, true, nil
}

func (r *Reconciler) record(ctx context.Context, e Event) {
	if err := r.events.Record(ctx, e); err != nil {
		zctx.From(ctx).Error("Record order event",
			zap.String("type", string(e.Type)),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}
