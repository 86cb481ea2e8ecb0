// Package outbox stores order lifecycle events next to the orders they
// describe and relays them to Kafka.
package outbox

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/greencart/internal/domain/order"
)

// Message is a stored event awaiting publication.
type Message struct {
	ID          string
	AggregateID string
	Type        string
	Payload     []byte
	CreatedAt   time.Time
}

// Store persists outbox messages.
type Store interface {
	Insert(ctx context.Context, m Message) error
	// Pending returns up to limit unpublished messages, oldest first.
	Pending(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
}

// Recorder implements order.EventRecorder on top of a Store.
type Recorder struct {
	store Store
	newID func() string
}

var _ order.EventRecorder = (*Recorder)(nil)

// NewRecorder creates a Recorder. newID generates message identifiers.
func NewRecorder(store Store, newID func() string) *Recorder {
	return &Recorder{store: store, newID: newID}
}

// Record implements order.EventRecorder.
func (r *Recorder) Record(ctx context.Context, e order.Event) error {
	m := Message{
		ID:          r.newID(),
		AggregateID: e.OrderID,
		Type:        string(e.Type),
		Payload:     EncodeEvent(e),
		CreatedAt:   e.OccurredAt,
	}
	if err := r.store.Insert(ctx, m); err != nil {
		return errors.Wrapf(err, "insert %s", e.Type)
	}
	return nil
}

// EncodeEvent renders the published JSON payload of an event.
func EncodeEvent(e order.Event) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("orderId")
	enc.Str(e.OrderID)
	enc.FieldStart("userId")
	enc.Str(e.UserID)
	enc.FieldStart("amount")
	enc.Str(e.Amount.StringFixed(2))
	enc.FieldStart("paymentType")
	enc.Str(string(e.PaymentType))
	enc.FieldStart("status")
	enc.Str(string(e.Status))
	enc.FieldStart("occurredAt")
	enc.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	enc.ObjEnd()
	return enc.Bytes()
}
