//go:build integration

package mongodb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xenking/greencart/internal/domain/address"
	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/domain/user"
	"github.com/xenking/greencart/internal/outbox"
	"github.com/xenking/greencart/pkg/cart"
)

func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, uri, "greencart_test")
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))
	return db
}

func TestRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("products", func(t *testing.T) {
		repo := NewProductRepository(db)
		p := &product.Product{
			Name:       "Tomato 1kg",
			Category:   "Vegetables",
			Price:      decimal.RequireFromString("5.00"),
			OfferPrice: decimal.RequireFromString("4.25"),
			Images:     []string{"tomato.png"},
			InStock:    true,
		}
		require.NoError(t, repo.Upsert(ctx, p))
		require.NotEmpty(t, p.ID)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, p.OfferPrice.Equal(got.OfferPrice), "got %s", got.OfferPrice)

		list, err := repo.GetByIDs(ctx, []string{p.ID, "not-an-object-id", p.ID})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = repo.GetByID(ctx, "000000000000000000000000")
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("users and carts", func(t *testing.T) {
		repo := NewUserRepository(db)
		u := &user.User{Name: "Ann", Email: "ann@example.com", PasswordHash: "hash"}
		require.NoError(t, repo.Create(ctx, u))
		require.ErrorIs(t, repo.Create(ctx, &user.User{Email: "ann@example.com"}), user.ErrEmailTaken)

		require.NoError(t, repo.IncrementCartItem(ctx, u.ID, "p1"))
		require.NoError(t, repo.IncrementCartItem(ctx, u.ID, "p1"))
		require.NoError(t, repo.SetCartItem(ctx, u.ID, "p2", 4))
		require.NoError(t, repo.RemoveCartItem(ctx, u.ID, "p1", false))

		got, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, cart.Cart{"p1": 1, "p2": 4}, got.CartItems)

		require.NoError(t, repo.RemoveCartItem(ctx, u.ID, "p1", false))
		require.NoError(t, repo.RemoveCartItem(ctx, u.ID, "p2", true))
		require.NoError(t, repo.RemoveCartItem(ctx, u.ID, "absent", false))
		got, err = repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, got.CartItems)

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.IncrementCartItem(ctx, u.ID, "p3"))
			}()
		}
		wg.Wait()
		got, err = repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, got.CartItems["p3"])

		require.NoError(t, repo.ClearCart(ctx, u.ID))
		got, err = repo.GetByEmail(ctx, "ann@example.com")
		require.NoError(t, err)
		assert.Empty(t, got.CartItems)

		require.ErrorIs(t, repo.ClearCart(ctx, "000000000000000000000000"), user.ErrNotFound)
	})

	t.Run("orders", func(t *testing.T) {
		repo := NewOrderRepository(db)
		base := time.Now().UTC().Truncate(time.Millisecond)
		mk := func(pt order.PaymentType, offset time.Duration) *order.Order {
			o := &order.Order{
				UserID:      "u-orders",
				Items:       []order.Item{{ProductID: "p1", Quantity: 2}},
				Amount:      decimal.RequireFromString("102"),
				AddressID:   "a1",
				PaymentType: pt,
				Status:      order.StatusPending,
				CreatedAt:   base.Add(offset),
				UpdatedAt:   base.Add(offset),
			}
			require.NoError(t, repo.Create(ctx, o))
			return o
		}
		cod := mk(order.PaymentCOD, 0)
		online := mk(order.PaymentOnline, time.Minute)
		failed := mk(order.PaymentOnline, 2*time.Minute)

		changed, err := repo.Apply(ctx, failed.ID, order.Transition{
			From: []order.Status{order.StatusPending}, To: order.StatusCancelled,
		})
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = repo.Apply(ctx, online.ID, order.Transition{
			From: []order.Status{order.StatusPending}, To: order.StatusPaid, PaymentIntentID: "pi_1",
		})
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = repo.Apply(ctx, online.ID, order.Transition{
			From: []order.Status{order.StatusPending}, To: order.StatusCancelled,
		})
		require.NoError(t, err)
		assert.False(t, changed)

		_, err = repo.Apply(ctx, "000000000000000000000000", order.Transition{To: order.StatusPaid})
		require.ErrorIs(t, err, order.ErrNotFound)

		got, err := repo.GetByID(ctx, online.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPaid())
		assert.Equal(t, "pi_1", got.PaymentIntentID)
		assert.True(t, decimal.NewFromInt(102).Equal(got.Amount))

		// The cancelled order is hidden from its owner.
		list, err := repo.ListByUser(ctx, "u-orders")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, online.ID, list[0].ID)
		assert.Equal(t, cod.ID, list[1].ID)

		seller, err := repo.ListForSeller(ctx)
		require.NoError(t, err)
		assert.Len(t, seller, 2)
	})

	t.Run("addresses", func(t *testing.T) {
		repo := NewAddressRepository(db)
		a := &address.Address{UserID: "u-addr", FirstName: "A", Street: "1 Main", City: "X"}
		require.NoError(t, repo.Add(ctx, a))

		list, err := repo.ListByUser(ctx, "u-addr")
		require.NoError(t, err)
		require.Len(t, list, 1)

		byID, err := repo.GetByIDs(ctx, []string{a.ID})
		require.NoError(t, err)
		require.Len(t, byID, 1)
		assert.Equal(t, "X", byID[0].City)
	})

	t.Run("outbox", func(t *testing.T) {
		repo := NewOutboxRepository(db)
		for i := range 3 {
			require.NoError(t, repo.Insert(ctx, outbox.Message{
				ID:          fmt.Sprintf("m%d", i),
				AggregateID: "o1",
				Type:        "order.placed",
				Payload:     []byte(`{}`),
				CreatedAt:   time.Now().UTC().Add(time.Duration(i) * time.Second),
			}))
		}
		pending, err := repo.Pending(ctx, 2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "m0", pending[0].ID)

		require.NoError(t, repo.MarkPublished(ctx, "m0", time.Now()))
		pending, err = repo.Pending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("webhook log", func(t *testing.T) {
		log := NewWebhookLog(db)
		seen, err := log.Seen(ctx, "evt_1")
		require.NoError(t, err)
		assert.False(t, seen)

		require.NoError(t, log.MarkProcessed(ctx, "evt_1", "payment_intent.succeeded", time.Now()))
		require.NoError(t, log.MarkProcessed(ctx, "evt_1", "payment_intent.succeeded", time.Now()))

		seen, err = log.Seen(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, seen)

		ids, err := log.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"evt_1"}, ids)
	})
}
