package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database Database `envPrefix:"DATABASE_"`
	Stripe   Stripe   `envPrefix:"STRIPE_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Kafka    Kafka    `envPrefix:"KAFKA_"`
	Auth     Auth     `envPrefix:"AUTH_"`
	Cron     Cron     `envPrefix:"CRON_"`
	Checkout Checkout `envPrefix:"CHECKOUT_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host           string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port           string        `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
}

type Database struct {
	// mysql://, postgres://, sqlite:// or a bare mysql DSN
	URL             string        `env:"URL" envDefault:"sqlite://storefront.db"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"1h"`
	SeedDemoData    bool          `env:"SEED_DEMO_DATA" envDefault:"false"`
}

type Stripe struct {
	SecretKey     string        `env:"SECRET_KEY"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	APIBaseURL    string        `env:"API_BASE_URL"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"order-events"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Cron struct {
	APIKey   string `env:"API_KEY"`
	Schedule string `env:"SCHEDULE" envDefault:"@every 5m"`
	SweepURL string `env:"SWEEP_URL" envDefault:"http://localhost:8080/api/orders/sweep"`
}

type Checkout struct {
	Expiration        time.Duration `env:"EXPIRATION" envDefault:"30m"`
	Currency          string        `env:"CURRENCY" envDefault:"usd"`
	PendingOrderTTL   time.Duration `env:"PENDING_ORDER_TTL" envDefault:"1h"`
	ProcessingLockTTL time.Duration `env:"PROCESSING_LOCK_TTL" envDefault:"1m"`
	ProcessedTTL      time.Duration `env:"PROCESSED_TTL" envDefault:"24h"`
}
