package app

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/greencart/internal/auth"
	"github.com/xenking/greencart/internal/cache"
	domaincart "github.com/xenking/greencart/internal/domain/cart"
	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/domain/payment"
	"github.com/xenking/greencart/internal/domain/product"
	"github.com/xenking/greencart/internal/handler"
	"github.com/xenking/greencart/internal/outbox"
	"github.com/xenking/greencart/internal/stripe"
	"github.com/xenking/greencart/internal/webhook"
	"github.com/xenking/greencart/pkg/health"
	"github.com/xenking/greencart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the outbox
// relay, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	st, err := openStorage(ctx, cfg.Storage, healthSvc)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer st.close()

	var (
		products product.Repository = st.products
		limiter  httpmiddleware.Limiter
		memLimit *httpmiddleware.MemoryLimiter
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
		products = cache.NewCatalog(st.products, rdb, cfg.Redis.CacheTTL)
		limiter = cache.NewRateLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
		lg.Info("Catalog cache enabled", zap.String("redis", cfg.Redis.Addr))
	} else {
		memLimit = httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		limiter = memLimit
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Order events go to the outbox only when something relays them.
	var (
		events  order.EventRecorder = order.NopRecorder{}
		brokers                     = slices.DeleteFunc(slices.Clone(cfg.Kafka.Brokers), func(s string) bool { return s == "" })
	)
	if len(brokers) > 0 {
		events = outbox.NewRecorder(st.outbox, uuid.NewString)
	}

	gateway := stripe.NewGateway(stripe.Config{
		SecretKey: cfg.Stripe.SecretKey,
		Currency:  cfg.Stripe.Currency,
	}, lg.Named("stripe"))

	router, err := newRouter(ctx, lg, api{
		cfg:      cfg,
		storage:  st,
		products: products,
		events:   events,
		gateway:  gateway,
		meter:    m.MeterProvider().Meter("greencart"),
		health:   healthSvc,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{Limiter: limiter}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("greencart-api", m),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	if memLimit != nil {
		g.Go(func() error {
			return memLimit.Run(gctx)
		})
	}

	if len(brokers) > 0 {
		poller := outbox.NewPoller(st.outbox,
			outbox.NewKafkaWriter(cfg.Kafka.Topic, brokers...),
			outbox.PollerConfig{Interval: cfg.Kafka.PollInterval, BatchSize: cfg.Kafka.BatchSize},
			lg.Named("outbox"),
		)
		lg.Info("Outbox relay enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.Kafka.Topic))
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// api holds what newRouter wires the domain services from.
type api struct {
	cfg      *Config
	storage  *storage
	products product.Repository
	events   order.EventRecorder
	gateway  payment.Gateway
	meter    metric.Meter
	health   *health.Health
}

// newRouter builds the domain services and mounts the API with its
// route-aware middleware.
func newRouter(ctx context.Context, lg *zap.Logger, a api) (*chi.Mux, error) {
	cfg, st := a.cfg, a.storage

	orderSvc := order.NewService(
		order.ServiceConfig{PublicURL: cfg.PublicURL},
		a.products,
		st.addresses,
		st.orders,
		a.gateway,
		a.events,
	)
	reconciler := order.NewReconciler(st.orders, st.users, a.gateway, a.events)
	processor := webhook.NewProcessor(reconciler, st.webhooks)
	if err := processor.Warm(ctx); err != nil {
		// The log still deduplicates; the filter only saves lookups.
		lg.Warn("Warm webhook filter", zap.Error(err))
	}

	authSvc := auth.NewService(
		st.users,
		auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		auth.SellerCredentials{Email: cfg.Auth.SellerEmail, Password: cfg.Auth.SellerPassword},
	)

	h, err := handler.New(handler.Config{
		ImageBaseURL:  cfg.ImageBaseURL,
		SecureCookies: cfg.Auth.SecureCookies,
	}, handler.Deps{
		Auth:      authSvc,
		Users:     st.users,
		Products:  a.products,
		Addresses: st.addresses,
		Carts:     domaincart.NewService(st.users),
		Orders:    orderSvc,
		Verifier:  stripe.NewVerifier(cfg.Stripe.WebhookSecret),
		Events:    processor,
		Meter:     a.meter,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	// Route-aware middleware must run inside the router.
	router := chi.NewRouter()
	router.Use(
		httpmiddleware.LogRequests(httpmiddleware.ChiRoute),
		httpmiddleware.Labeler(httpmiddleware.ChiRoute),
	)
	router.Get("/livez", a.health.LiveEndpoint)
	router.Get("/readyz", a.health.ReadyEndpoint)
	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("API is Working"))
	})
	h.Mount(router)
	return router, nil
}
