// Package cache holds the Redis-backed pieces of the API: a read-through
// cache in front of the product catalog and a shared request rate limiter.
package cache

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/greencart/internal/domain/product"
)

// ErrCacheMiss is returned when a key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

const (
	listKey      = "catalog:list"
	productKey   = "catalog:product:"
	maxJitterSec = 60
)

// Catalog wraps a product.Repository with a Redis cache. Cache failures
// are logged and fall through to the repository. Concurrent misses for the
// same key share one repository call.
type Catalog struct {
	next   product.Repository
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

var _ product.Repository = (*Catalog)(nil)

// NewCatalog creates a Catalog. A non-positive ttl defaults to five minutes.
func NewCatalog(next product.Repository, client redis.UniversalClient, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{next: next, client: client, ttl: ttl}
}

// List returns the whole catalog.
func (c *Catalog) List(ctx context.Context) ([]product.Product, error) {
	if products, err := c.get(ctx, listKey); err == nil {
		return products, nil
	}

	v, err, _ := c.group.Do(listKey, func() (any, error) {
		// Shared by every waiter, so it must outlive the first caller.
		ctx := context.WithoutCancel(ctx)
		products, err := c.next.List(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, listKey, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]product.Product), nil
}

// GetByID returns a single product.
func (c *Catalog) GetByID(ctx context.Context, id string) (*product.Product, error) {
	key := productKey + id
	if products, err := c.get(ctx, key); err == nil && len(products) == 1 {
		return &products[0], nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		p, err := c.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, []product.Product{*p})
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*product.Product), nil
}

// GetByIDs always reads the repository: order placement must price against
// current data.
func (c *Catalog) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return c.next.GetByIDs(ctx, ids)
}

// InvalidateCatalog drops every catalog entry cached in client. Run it
// after writing products outside the API.
func InvalidateCatalog(ctx context.Context, client redis.UniversalClient) error {
	var keys []string
	iter := client.Scan(ctx, 0, "catalog:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scan keys")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete keys")
	}
	return nil
}

func (c *Catalog) get(ctx context.Context, key string) ([]product.Product, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		zctx.From(ctx).Warn("Catalog cache read", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	products, err := decodeProducts(data)
	if err != nil {
		zctx.From(ctx).Warn("Catalog cache decode", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	return products, nil
}

func (c *Catalog) set(ctx context.Context, key string, products []product.Product) {
	jitter := time.Duration(rand.IntN(maxJitterSec)) * time.Second
	if err := c.client.Set(ctx, key, encodeProducts(products), c.ttl+jitter).Err(); err != nil {
		zctx.From(ctx).Warn("Catalog cache write", zap.String("key", key), zap.Error(err))
	}
}

func encodeProducts(products []product.Product) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("description")
		encodeStrings(&e, p.Description)
		e.FieldStart("category")
		e.Str(p.Category)
		e.FieldStart("price")
		e.Str(p.Price.String())
		e.FieldStart("offerPrice")
		e.Str(p.OfferPrice.String())
		e.FieldStart("images")
		encodeStrings(&e, p.Images)
		e.FieldStart("inStock")
		e.Bool(p.InStock)
		e.FieldStart("createdAt")
		e.Str(p.CreatedAt.UTC().Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeProducts(data []byte) ([]product.Product, error) {
	var out []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "description":
				p.Description, err = decodeStrings(d)
			case "category":
				p.Category, err = d.Str()
			case "price":
				p.Price, err = decodeDecimal(d)
			case "offerPrice":
				p.OfferPrice, err = decodeDecimal(d)
			case "images":
				p.Images, err = decodeStrings(d)
			case "inStock":
				p.InStock, err = d.Bool()
			case "createdAt":
				var s string
				if s, err = d.Str(); err == nil {
					p.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
				}
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		out = append(out, s)
		return err
	})
	return out, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	s, err := d.Str()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}
