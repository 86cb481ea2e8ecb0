package outbox

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Writer is the subset of *kafka.Writer used by the Poller.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HeaderEventType carries the event type on every published message.
const HeaderEventType = "event_type"

// NewKafkaWriter returns a writer for topic on the given brokers.
func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// PollerConfig controls the relay loop.
type PollerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Poller relays pending outbox messages to Kafka. A message is marked
// published only after the broker acknowledged it, so delivery is at least
// once.
type Poller struct {
	store    Store
	writer   Writer
	interval time.Duration
	batch    int
	lg       *zap.Logger
	now      func() time.Time
}

// NewPoller creates a Poller.
func NewPoller(store Store, writer Writer, cfg PollerConfig, lg *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Poller{
		store:    store,
		writer:   writer,
		interval: cfg.Interval,
		batch:    cfg.BatchSize,
		lg:       lg,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled, then closes the writer.
func (p *Poller) Run(ctx context.Context) error {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.lg.Warn("Close kafka writer", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Flush(ctx); err != nil && ctx.Err() == nil {
				p.lg.Error("Relay outbox", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch of pending messages and returns how many were
// published. Publishing stops at the first failure so that per-order
// ordering is kept.
func (p *Poller) Flush(ctx context.Context) (int, error) {
	pending, err := p.store.Pending(ctx, p.batch)
	if err != nil {
		return 0, errors.Wrap(err, "fetch pending")
	}

	published := 0
	for _, m := range pending {
		msg := kafka.Message{
			Key:   []byte(m.AggregateID),
			Value: m.Payload,
			Headers: []kafka.Header{
				{Key: HeaderEventType, Value: []byte(m.Type)},
			},
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			return published, errors.Wrapf(err, "publish %s", m.ID)
		}
		if err := p.store.MarkPublished(ctx, m.ID, p.now().UTC()); err != nil {
			return published, errors.Wrapf(err, "mark %s published", m.ID)
		}
		published++
	}
	if published > 0 {
		p.lg.Debug("Outbox relayed", zap.Int("count", published))
	}
	return published, nil
}
