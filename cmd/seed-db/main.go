package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/joho/godotenv"
	pgzip "github.com/klauspost/pgzip"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/cache"
	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/oas"
	"github.com/xenking/greencart/internal/storage/mongodb"
	"github.com/xenking/greencart/internal/storage/postgres"
)

type options struct {
	driver        string
	mongoURI      string
	mongoDatabase string
	postgresURL   string
	productsFile  string
	redisAddr     string
	redisPassword string
	redisDB       int
}

func main() {
	var opts options

	_ = godotenv.Load()

	flag.StringVar(&opts.driver, "storage", "mongodb", "storage backend: mongodb or postgres")
	flag.StringVar(&opts.mongoURI, "mongo-uri", os.Getenv("MONGODB_URI"), "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&opts.mongoDatabase, "mongo-database", "greencart", "MongoDB database name")
	flag.StringVar(&opts.postgresURL, "postgres-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to a products JSON file, optionally gzip-compressed (.gz)")
	flag.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("GREENCART_REDIS_ADDR"), "Redis address of the catalog cache to drop after seeding (or GREENCART_REDIS_ADDR env)")
	flag.StringVar(&opts.redisPassword, "redis-password", os.Getenv("GREENCART_REDIS_PASSWORD"), "Redis password (or GREENCART_REDIS_PASSWORD env)")
	flag.IntVar(&opts.redisDB, "redis-db", 0, "Redis database")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, lg, opts)
	cancel()
	if err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed successfully")
	_ = lg.Sync()
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	products, err := readProducts(opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}
	lg.Info("Read products", zap.String("path", opts.productsFile), zap.Int("count", len(products)))

	writer, closeFn, err := openWriter(ctx, lg, opts)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer closeFn()

	if err := seedProducts(ctx, lg, writer, products); err != nil {
		return err
	}
	if opts.redisAddr == "" {
		return nil
	}
	return dropCachedCatalog(ctx, lg, opts)
}

// dropCachedCatalog clears the API's catalog cache so seeded products are
// served right away.
func dropCachedCatalog(ctx context.Context, lg *zap.Logger, opts options) error {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{opts.redisAddr},
		Password: opts.redisPassword,
		DB:       opts.redisDB,
	})
	defer func() { _ = client.Close() }()

	if err := cache.InvalidateCatalog(ctx, client); err != nil {
		return errors.Wrap(err, "invalidate catalog cache")
	}
	lg.Info("Dropped cached catalog", zap.String("redis", opts.redisAddr))
	return nil
}

func openWriter(ctx context.Context, lg *zap.Logger, opts options) (product.Writer, func(), error) {
	switch opts.driver {
	case "mongodb":
		if opts.mongoURI == "" {
			return nil, nil, errors.New("mongo URI is required: set --mongo-uri or MONGODB_URI")
		}
		db, err := mongodb.Connect(ctx, opts.mongoURI, opts.mongoDatabase)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to mongodb")
		}
		closeFn := func() { _ = db.Client().Disconnect(context.Background()) }
		lg.Info("Ensuring indexes")
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			closeFn()
			return nil, nil, errors.Wrap(err, "ensure indexes")
		}
		return mongodb.NewProductRepository(db), closeFn, nil
	case "postgres":
		if opts.postgresURL == "" {
			return nil, nil, errors.New("postgres URL is required: set --postgres-url or DATABASE_URL")
		}
		pool, err := postgres.NewPool(ctx, opts.postgresURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to database")
		}
		lg.Info("Running migrations")
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewProductRepository(pool), pool.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown storage %q", opts.driver)
	}
}

// readProducts parses a JSON array of products in the API wire format.
// Files ending in .gz are decompressed.
func readProducts(path string) ([]product.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return decodeProducts(r)
}

func decodeProducts(r io.Reader) ([]product.Product, error) {
	var out []product.Product
	now := time.Now().UTC()
	if err := jx.Decode(r, 64*1024).Arr(func(d *jx.Decoder) error {
		var p oas.Product
		if err := p.Decode(d); err != nil {
			return err
		}
		if !product.ValidID(p.ID) {
			return errors.Errorf("product %q: invalid id", p.ID)
		}
		if p.Name == "" || !p.OfferPrice.IsPositive() {
			return errors.Errorf("product %s: name and positive offerPrice are required", p.ID)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		out = append(out, product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price,
			OfferPrice:  p.OfferPrice,
			Images:      p.Images,
			InStock:     p.InStock,
			CreatedAt:   p.CreatedAt,
		})
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return out, nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, w product.Writer, products []product.Product) error {
	for i := range products {
		p := &products[i]
		if err := w.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	lg.Info("Upserted products", zap.Int("count", len(products)))
	return nil
}
