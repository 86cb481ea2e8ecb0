package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/greencart/internal/domain/payment"
)

type reconcilerFixture struct {
	orders  *mockOrderRepo
	carts   *mockCartClearer
	gateway *mockGateway
	events  *mockRecorder
	r       *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	f := &reconcilerFixture{
		orders:  newOrderRepo(),
		carts:   &mockCartClearer{},
		gateway: &mockGateway{sessions: map[string]*payment.Session{}},
		events:  &mockRecorder{},
	}
	f.r = NewReconciler(f.orders, f.carts, f.gateway, f.events)
	return f
}

// seed stores a pending online order and links it to payment intent pi.
func (f *reconcilerFixture) seed(t *testing.T, pi string) *Order {
	t.Helper()
	o := &Order{UserID: "u1", PaymentType: PaymentOnline, Status: StatusPending}
	require.NoError(t, f.orders.Create(context.Background(), o))
	f.gateway.sessions[pi] = &payment.Session{
		ID: "cs_" + pi,
		Metadata: map[string]string{
			payment.MetadataOrderID: o.ID,
			payment.MetadataUserID:  "u1",
		},
	}
	return o
}

func succeeded(pi string) *payment.Event {
	return &payment.Event{ID: "evt_ok_" + pi, Type: payment.EventPaymentSucceeded, PaymentIntentID: pi}
}

func failed(pi string) *payment.Event {
	return &payment.Event{ID: "evt_fail_" + pi, Type: payment.EventPaymentFailed, PaymentIntentID: pi}
}

func TestReconciler_Succeeded(t *testing.T) {
	f := newReconcilerFixture()
	o := f.seed(t, "pi_1")
	ctx := context.Background()

	outcome, err := f.r.Handle(ctx, succeeded("pi_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)

	got, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid())
	assert.Equal(t, "pi_1", got.PaymentIntentID)
	assert.Equal(t, []string{"u1"}, f.carts.cleared)
	assert.Equal(t, []EventType{EventPaid}, f.events.types())

	t.Run("repeated delivery is a no-op", func(t *testing.T) {
		outcome, err := f.r.Handle(ctx, succeeded("pi_1"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoop, outcome)

		got, err := f.orders.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPaid())
		assert.Len(t, f.carts.cleared, 1)
		assert.Len(t, f.events.events, 1)
	})

	t.Run("late failure does not revert payment", func(t *testing.T) {
		outcome, err := f.r.Handle(ctx, failed("pi_1"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoop, outcome)

		got, err := f.orders.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, got.Status)
	})
}

func TestReconciler_Failed(t *testing.T) {
	f := newReconcilerFixture()
	o := f.seed(t, "pi_2")
	ctx := context.Background()

	outcome, err := f.r.Handle(ctx, failed("pi_2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)

	got, err := f.orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Empty(t, f.carts.cleared, "a failed payment keeps the cart")
	assert.Equal(t, []EventType{EventCancelled}, f.events.types())

	t.Run("success after failure marks paid", func(t *testing.T) {
		outcome, err := f.r.Handle(ctx, succeeded("pi_2"))
		require.NoError(t, err)
		assert.Equal(t, OutcomePaid, outcome)

		got, err := f.orders.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPaid())
	})
}

func TestReconciler_MissingOrder(t *testing.T) {
	f := newReconcilerFixture()
	f.gateway.sessions["pi_gone"] = &payment.Session{
		ID:       "cs_gone",
		Metadata: map[string]string{payment.MetadataOrderID: "deleted-order"},
	}

	for _, e := range []*payment.Event{failed("pi_gone"), succeeded("pi_gone")} {
		outcome, err := f.r.Handle(context.Background(), e)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoop, outcome)
	}
	assert.Empty(t, f.carts.cleared)
	assert.Empty(t, f.events.events)
}

func TestReconciler_UnknownSession(t *testing.T) {
	f := newReconcilerFixture()

	outcome, err := f.r.Handle(context.Background(), succeeded("pi_unknown"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)

	f.gateway.sessions["pi_nometa"] = &payment.Session{ID: "cs_nometa"}
	outcome, err = f.r.Handle(context.Background(), failed("pi_nometa"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
}

func TestReconciler_UnhandledType(t *testing.T) {
	f := newReconcilerFixture()

	outcome, err := f.r.Handle(context.Background(), &payment.Event{ID: "evt_x", Type: "charge.refunded"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnhandled, outcome)
}

func TestReconciler_Errors(t *testing.T) {
	t.Run("gateway lookup", func(t *testing.T) {
		f := newReconcilerFixture()
		f.gateway.getErr = errors.New("stripe timeout")

		_, err := f.r.Handle(context.Background(), succeeded("pi_1"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stripe timeout")
	})

	t.Run("cart clear", func(t *testing.T) {
		f := newReconcilerFixture()
		f.seed(t, "pi_1")
		f.carts.err = errors.New("mongo down")

		outcome, err := f.r.Handle(context.Background(), succeeded("pi_1"))
		require.NoError(t, err, "payment is recorded even when the cart cannot be cleared")
		assert.Equal(t, OutcomePaid, outcome)
		assert.Equal(t, []EventType{EventPaid}, f.events.types())
	})

	t.Run("transition", func(t *testing.T) {
		f := newReconcilerFixture()
		f.seed(t, "pi_1")
		f.orders.applyErr = errors.New("write conflict")

		_, err := f.r.Handle(context.Background(), failed("pi_1"))
		require.Error(t, err)
	})
}
