// Package webhook deduplicates payment gateway webhook deliveries before
// they reach the order reconciler.
package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/domain/payment"
)

const (
	filterCapacity = 1_000_000
	filterFPR      = 0.001
	warmLimit      = 100_000
)

// Log is the persistent record of processed gateway events.
type Log interface {
	// Seen reports whether an event id was already processed.
	Seen(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records an event id. Recording an id twice is not an
	// error.
	MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) error
	// Recent returns up to limit most recently processed event ids.
	Recent(ctx context.Context, limit int) ([]string, error)
}

// Handler applies a verified event.
type Handler interface {
	Handle(ctx context.Context, e *payment.Event) (order.Outcome, error)
}

// OutcomeDuplicate is reported for a delivery that was already applied.
const OutcomeDuplicate order.Outcome = "duplicate"

// Processor fronts the processed-event Log with a Bloom filter. A negative
// filter answer skips the storage lookup; a positive answer is confirmed
// against the Log since the filter may give false positives.
type Processor struct {
	next Handler
	log  Log
	now  func() time.Time

	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewProcessor creates a Processor.
func NewProcessor(next Handler, log Log) *Processor {
	return &Processor{
		next:   next,
		log:    log,
		now:    time.Now,
		filter: bloom.NewWithEstimates(filterCapacity, filterFPR),
	}
}

// Warm loads recently processed ids into the filter.
func (p *Processor) Warm(ctx context.Context) error {
	ids, err := p.log.Recent(ctx, warmLimit)
	if err != nil {
		return errors.Wrap(err, "load processed events")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.filter.AddString(id)
	}
	return nil
}

func (p *Processor) maybeSeen(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter.TestString(id)
}

func (p *Processor) remember(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter.AddString(id)
}

// Process applies e unless its id was already processed. Events are only
// recorded after a successful apply, so a failed attempt is retried on the
// next delivery.
func (p *Processor) Process(ctx context.Context, e *payment.Event) (order.Outcome, error) {
	if e.ID != "" && p.maybeSeen(e.ID) {
		seen, err := p.log.Seen(ctx, e.ID)
		if err != nil {
			return "", errors.Wrap(err, "check processed events")
		}
		if seen {
			zctx.From(ctx).Debug("Duplicate webhook delivery", zap.String("event_id", e.ID))
			return OutcomeDuplicate, nil
		}
	}

	outcome, err := p.next.Handle(ctx, e)
	if err != nil {
		return "", err
	}

	if e.ID != "" {
		if err := p.log.MarkProcessed(ctx, e.ID, string(e.Type), p.now().UTC()); err != nil {
			// Transitions are idempotent, so a redelivery is harmless.
			zctx.From(ctx).Warn("Record processed event", zap.String("event_id", e.ID), zap.Error(err))
		}
		p.remember(e.ID)
	}
	return outcome, nil
}
