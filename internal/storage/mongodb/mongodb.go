// Package mongodb implements the storefront repositories on MongoDB.
package mongodb

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	productsCollection  = "products"
	usersCollection     = "users"
	addressesCollection = "addresses"
	ordersCollection    = "orders"
	outboxCollection    = "outbox"
	webhookCollection   = "webhook_events"
)

// Connect opens a client, verifies it with a ping, and returns the named
// database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping")
	}
	return client.Database(database), nil
}

// EnsureIndexes creates the indexes every repository relies on. It is safe
// to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, models := range map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		addressesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "paymentType", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		outboxCollection: {
			{Keys: bson.D{{Key: "publishedAt", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		webhookCollection: {
			{Keys: bson.D{{Key: "receivedAt", Value: -1}}},
		},
	} {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return errors.Wrapf(err, "create %s indexes", name)
		}
	}
	return nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, errors.Wrapf(err, "convert %s", d)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "convert %s", v)
	}
	return d, nil
}

// objectIDs parses hex identifiers, skipping malformed ones.
func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		out = append(out, oid)
	}
	return out
}

// exists reports whether a document with the given _id exists.
func exists(ctx context.Context, c *mongo.Collection, id any) (bool, error) {
	n, err := c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
