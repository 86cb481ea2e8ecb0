package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/greencart/internal/domain/product"
)

type countingRepo struct {
	products []product.Product
	lists    atomic.Int32
	gets     atomic.Int32
	delay    time.Duration
}

func (r *countingRepo) List(context.Context) ([]product.Product, error) {
	r.lists.Add(1)
	time.Sleep(r.delay)
	return r.products, nil
}

func (r *countingRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.gets.Add(1)
	for i := range r.products {
		if r.products[i].ID == id {
			p := r.products[i]
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (r *countingRepo) GetByIDs(context.Context, []string) ([]product.Product, error) {
	return r.products, nil
}

func setupCatalog(t *testing.T) (*Catalog, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &countingRepo{products: []product.Product{
		{
			ID:          "p1",
			Name:        "Apple",
			Description: []string{"Fresh", "Red"},
			Category:    "Fruits",
			Price:       decimal.RequireFromString("3.50"),
			OfferPrice:  decimal.RequireFromString("2.99"),
			Images:      []string{"apple.png"},
			InStock:     true,
			CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	return NewCatalog(repo, client, time.Minute), repo, mr
}

func TestCatalog_List(t *testing.T) {
	c, repo, mr := setupCatalog(t)
	ctx := context.Background()

	first, err := c.List(ctx)
	require.NoError(t, err)
	second, err := c.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), repo.lists.Load())
	assert.True(t, mr.Exists(listKey))
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Name, second[0].Name)
	assert.Equal(t, []string{"Fresh", "Red"}, second[0].Description)
	assert.True(t, first[0].OfferPrice.Equal(second[0].OfferPrice))
	assert.True(t, first[0].CreatedAt.Equal(second[0].CreatedAt))

	ttl := mr.TTL(listKey)
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.Less(t, ttl, 2*time.Minute)

	mr.FastForward(3 * time.Minute)
	_, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.lists.Load())
}

func TestCatalog_ConcurrentMissesShareLoad(t *testing.T) {
	c, repo, _ := setupCatalog(t)
	repo.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.List(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), repo.lists.Load())
}

// gatedRepo holds List until release is closed and fails when its context
// ends first.
type gatedRepo struct {
	countingRepo
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedRepo) List(ctx context.Context) ([]product.Product, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.countingRepo.List(ctx)
}

func TestCatalog_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &gatedRepo{started: make(chan struct{}), release: make(chan struct{})}
	repo.products = []product.Product{{ID: "p1", Name: "Apple", OfferPrice: decimal.RequireFromString("2.99")}}
	c := NewCatalog(repo, client, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.List(ctx)
		first <- err
	}()
	<-repo.started

	waiter := make(chan error, 1)
	go func() {
		_, err := c.List(context.Background())
		waiter <- err
	}()

	cancel()
	close(repo.release)

	require.NoError(t, <-first)
	require.NoError(t, <-waiter)
	assert.True(t, mr.Exists(listKey))
}

func TestCatalog_GetByID(t *testing.T) {
	c, repo, _ := setupCatalog(t)
	ctx := context.Background()

	p, err := c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Apple", p.Name)
	_, err = c.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.gets.Load())

	_, err = c.GetByID(ctx, "nope")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestCatalog_RedisDownFallsThrough(t *testing.T) {
	c, repo, mr := setupCatalog(t)
	mr.Close()

	products, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int32(1), repo.lists.Load())
}

func TestCatalog_CorruptEntry(t *testing.T) {
	c, repo, mr := setupCatalog(t)
	require.NoError(t, mr.Set(listKey, "{not json"))

	products, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, int32(1), repo.lists.Load())
}

func TestInvalidateCatalog(t *testing.T) {
	c, repo, mr := setupCatalog(t)
	ctx := context.Background()

	_, err := c.List(ctx)
	require.NoError(t, err)
	_, err = c.GetByID(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, mr.Set("session:u1", "keep"))
	require.NoError(t, InvalidateCatalog(ctx, c.client))
	assert.False(t, mr.Exists(listKey))
	assert.True(t, mr.Exists("session:u1"))
	assert.False(t, mr.Exists(productKey+"p1"))

	_, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.lists.Load())
}

func TestDecodeProducts_Error(t *testing.T) {
	_, err := decodeProducts([]byte(`[{"price":"abc"}]`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}
