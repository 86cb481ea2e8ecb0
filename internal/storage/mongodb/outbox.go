package mongodb

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/greencart/internal/outbox"
	"github.com/xenking/greencart/internal/webhook"
)

type outboxDoc struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregateId"`
	Type        string     `bson:"type"`
	Payload     string     `bson:"payload"`
	CreatedAt   time.Time  `bson:"createdAt"`
	PublishedAt *time.Time `bson:"publishedAt"`
}

var _ outbox.Store = (*OutboxRepository)(nil)

// OutboxRepository implements outbox.Store backed by MongoDB.
type OutboxRepository struct {
	c *mongo.Collection
}

// NewOutboxRepository returns an OutboxRepository on db.
func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{c: db.Collection(outboxCollection)}
}

// Insert stores an unpublished message.
func (r *OutboxRepository) Insert(ctx context.Context, m outbox.Message) error {
	doc := outboxDoc{
		ID:          m.ID,
		AggregateID: m.AggregateID,
		Type:        m.Type,
		Payload:     string(m.Payload),
		CreatedAt:   m.CreatedAt,
	}
	if _, err := r.c.InsertOne(ctx, doc); err != nil {
		return errors.Wrap(err, "insert outbox message")
	}
	return nil
}

// Pending returns unpublished messages, oldest first.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]outbox.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.c.Find(ctx, bson.M{"publishedAt": nil}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find pending messages")
	}
	var docs []outboxDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "read pending messages")
	}
	out := make([]outbox.Message, len(docs))
	for i, d := range docs {
		out[i] = outbox.Message{
			ID:          d.ID,
			AggregateID: d.AggregateID,
			Type:        d.Type,
			Payload:     []byte(d.Payload),
			CreatedAt:   d.CreatedAt,
		}
	}
	return out, nil
}

// MarkPublished sets the publication time of a message.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := r.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"publishedAt": at}})
	if err != nil {
		return errors.Wrapf(err, "mark %s published", id)
	}
	return nil
}

type webhookDoc struct {
	ID         string    `bson:"_id"`
	Type       string    `bson:"type"`
	ReceivedAt time.Time `bson:"receivedAt"`
}

var _ webhook.Log = (*WebhookLog)(nil)

// WebhookLog implements webhook.Log backed by MongoDB.
type WebhookLog struct {
	c *mongo.Collection
}

// NewWebhookLog returns a WebhookLog on db.
func NewWebhookLog(db *mongo.Database) *WebhookLog {
	return &WebhookLog{c: db.Collection(webhookCollection)}
}

// Seen reports whether eventID was recorded.
func (l *WebhookLog) Seen(ctx context.Context, eventID string) (bool, error) {
	ok, err := exists(ctx, l.c, eventID)
	if err != nil {
		return false, errors.Wrap(err, "find webhook event")
	}
	return ok, nil
}

// MarkProcessed records eventID. The _id uniqueness makes a repeated call
// a no-op.
func (l *WebhookLog) MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) error {
	_, err := l.c.InsertOne(ctx, webhookDoc{ID: eventID, Type: eventType, ReceivedAt: at})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(err, "insert webhook event")
	}
	return nil
}

// Recent returns the most recently recorded event ids.
func (l *WebhookLog) Recent(ctx context.Context, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "receivedAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})
	cur, err := l.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find webhook events")
	}
	var docs []webhookDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "read webhook events")
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}
