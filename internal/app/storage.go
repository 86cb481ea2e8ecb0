package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/greencart/internal/domain/address"
	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/internal/outbox"
	"github.com/xenking/greencart/internal/storage/mongodb"
	"github.com/xenking/greencart/internal/storage/postgres"
	"github.com/xenking/greencart/internal/webhook"
	"github.com/xenking/greencart/pkg/health"
)

// storage is the set of repositories of one backend.
type storage struct {
	users     user.Repository
	products  product.Repository
	addresses address.Repository
	orders    order.Repository
	outbox    outbox.Store
	webhooks  webhook.Log
	close     func()
}

// openStorage connects the configured backend, prepares its schema and
// registers its readiness check.
func openStorage(ctx context.Context, cfg StorageConfig, h *health.Health) (*storage, error) {
	switch cfg.Driver {
	case DriverMongo:
		db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongodb")
		}
		client := db.Client()
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, errors.Wrap(err, "ensure indexes")
		}
		h.AddReadinessCheck("mongodb", 5*time.Second, health.MongoCheck(client))
		return &storage{
			users:     mongodb.NewUserRepository(db),
			products:  mongodb.NewProductRepository(db),
			addresses: mongodb.NewAddressRepository(db),
			orders:    mongodb.NewOrderRepository(db),
			outbox:    mongodb.NewOutboxRepository(db),
			webhooks:  mongodb.NewWebhookLog(db),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		h.AddReadinessCheck("postgres", 5*time.Second, health.PostgresCheck(pool))
		return &storage{
			users:     postgres.NewUserRepository(pool),
			products:  postgres.NewProductRepository(pool),
			addresses: postgres.NewAddressRepository(pool),
			orders:    postgres.NewOrderRepository(pool),
			outbox:    postgres.NewOutboxRepository(pool),
			webhooks:  postgres.NewWebhookLog(pool),
			close:     pool.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
