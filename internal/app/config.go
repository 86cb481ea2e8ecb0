package app

import (
	"io/fs"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMongo    = "mongodb"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (GREENCART_ prefix), a .env file, flags, or YAML
// config files.
type Config struct {
	Addr         string `default:"0.0.0.0:4000" usage:"API server listen address"`
	PublicURL    string `default:"http://localhost:5173" usage:"Storefront origin used for checkout redirects when the request has none" flag:"public-url"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product image paths (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Storage      StorageConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Auth         AuthConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StorageConfig selects and configures the primary database.
type StorageConfig struct {
	Driver        string `default:"mongodb" usage:"Storage backend: mongodb or postgres"`
	MongoURI      string `usage:"MongoDB connection URI (GREENCART_STORAGE_MONGOURI or MONGODB_URI)" flag:"mongo-uri"`
	MongoDatabase string `default:"greencart" usage:"MongoDB database name" flag:"mongo-database"`
	PostgresURL   string `usage:"PostgreSQL connection URL (GREENCART_STORAGE_POSTGRESURL or DATABASE_URL)" flag:"postgres-url"`
}

// RedisConfig configures the catalog cache. The cache is disabled when Addr
// is empty.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address for the catalog cache"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	CacheTTL time.Duration `default:"5m" usage:"Catalog cache entry lifetime" flag:"cache-ttl"`
}

// StripeConfig configures the payment gateway.
type StripeConfig struct {
	SecretKey     string `usage:"Stripe secret API key (STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	WebhookSecret string `usage:"Stripe webhook signing secret (STRIPE_WEBHOOK_SECRET)" flag:"stripe-webhook-secret"`
	Currency      string `default:"usd" usage:"Checkout currency"`
}

// AuthConfig configures session tokens and the seller login.
type AuthConfig struct {
	JWTSecret      string        `usage:"HMAC secret for session tokens (JWT_SECRET)" flag:"jwt-secret"`
	TokenTTL       time.Duration `default:"168h" usage:"Session lifetime" flag:"token-ttl"`
	SellerEmail    string        `usage:"Seller login email (SELLER_EMAIL)" flag:"seller-email"`
	SellerPassword string        `usage:"Seller login password (SELLER_PASSWORD)" flag:"seller-password"`
	SecureCookies  bool          `default:"false" usage:"Send session cookies with Secure and SameSite=None" flag:"secure-cookies"`
}

// KafkaConfig configures the order event relay. The relay is disabled when
// no brokers are set.
type KafkaConfig struct {
	Brokers      []string      `default:"" usage:"Kafka bootstrap brokers"`
	Topic        string        `default:"greencart.orders" usage:"Topic order events are published to"`
	PollInterval time.Duration `default:"1s" usage:"Outbox poll interval" flag:"outbox-poll-interval"`
	BatchSize    int           `default:"100" usage:"Outbox messages relayed per poll" flag:"outbox-batch-size"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"http://localhost:5173" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GREENCART",
		Files:     []string{"config.yaml", "/etc/greencart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set GREENCART_STORAGE_MONGOURI or MONGODB_URI")
		}
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres URL is required: set GREENCART_STORAGE_POSTGRESURL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required: set GREENCART_AUTH_JWTSECRET or JWT_SECRET")
	}
	if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
		return errors.New("stripe secret key and webhook secret are required")
	}
	return nil
}

// applyPlatformDefaults maps the conventional environment variable names
// used by hosting platforms and the .env template to the
// GREENCART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	for _, m := range []struct {
		dst *string
		env string
	}{
		{&c.Storage.MongoURI, "MONGODB_URI"},
		{&c.Storage.PostgresURL, "DATABASE_URL"},
		{&c.Stripe.SecretKey, "STRIPE_SECRET_KEY"},
		{&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET"},
		{&c.Auth.JWTSecret, "JWT_SECRET"},
		{&c.Auth.SellerEmail, "SELLER_EMAIL"},
		{&c.Auth.SellerPassword, "SELLER_PASSWORD"},
	} {
		if *m.dst == "" {
			*m.dst = os.Getenv(m.env)
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:4000" {
		c.Addr = "0.0.0.0:" + port
	}
}
