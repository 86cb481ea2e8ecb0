package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/greencart/internal/outbox"
	"github.com/xenking/greencart/internal/webhook"
)

const (
	insertOutboxSQL = `INSERT INTO outbox (id, aggregate_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	pendingOutboxSQL = `SELECT id, aggregate_id, type, payload::text, created_at FROM outbox
		WHERE published_at IS NULL ORDER BY created_at LIMIT $1`

	markPublishedSQL = `UPDATE outbox SET published_at = $2 WHERE id = $1`

	webhookSeenSQL = `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE id = $1)`

	insertWebhookSQL = `INSERT INTO webhook_events (id, type, received_at)
		VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`

	recentWebhooksSQL = `SELECT id FROM webhook_events ORDER BY received_at DESC LIMIT $1`
)

var _ outbox.Store = (*OutboxRepository)(nil)

// OutboxRepository implements outbox.Store backed by PostgreSQL.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository returns an OutboxRepository that uses the given pool.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Insert stores an unpublished message.
func (r *OutboxRepository) Insert(ctx context.Context, m outbox.Message) error {
	_, err := r.pool.Exec(ctx, insertOutboxSQL, m.ID, m.AggregateID, m.Type, string(m.Payload), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting outbox message %q: %w", m.ID, err)
	}
	return nil
}

// Pending returns unpublished messages, oldest first.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]outbox.Message, error) {
	rows, err := r.pool.Query(ctx, pendingOutboxSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending messages: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Message, error) {
		var (
			m       outbox.Message
			payload string
		)
		err := row.Scan(&m.ID, &m.AggregateID, &m.Type, &payload, &m.CreatedAt)
		m.Payload = []byte(payload)
		return m, err
	})
}

// MarkPublished sets the publication time of a message.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if _, err := r.pool.Exec(ctx, markPublishedSQL, id, at); err != nil {
		return fmt.Errorf("marking %q published: %w", id, err)
	}
	return nil
}

var _ webhook.Log = (*WebhookLog)(nil)

// WebhookLog implements webhook.Log backed by PostgreSQL.
type WebhookLog struct {
	pool *pgxpool.Pool
}

// NewWebhookLog returns a WebhookLog that uses the given pool.
func NewWebhookLog(pool *pgxpool.Pool) *WebhookLog {
	return &WebhookLog{pool: pool}
}

// Seen reports whether eventID was recorded.
func (l *WebhookLog) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	if err := l.pool.QueryRow(ctx, webhookSeenSQL, eventID).Scan(&seen); err != nil {
		return false, fmt.Errorf("checking webhook event %q: %w", eventID, err)
	}
	return seen, nil
}

// MarkProcessed records eventID.
func (l *WebhookLog) MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) error {
	if _, err := l.pool.Exec(ctx, insertWebhookSQL, eventID, eventType, at); err != nil {
		return fmt.Errorf("recording webhook event %q: %w", eventID, err)
	}
	return nil
}

// Recent returns the most recently recorded event ids.
func (l *WebhookLog) Recent(ctx context.Context, limit int) ([]string, error) {
	rows, err := l.pool.Query(ctx, recentWebhooksSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing webhook events: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
