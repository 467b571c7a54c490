// Package config loads the service configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendDynamoDB = "dynamodb"
)

// Event publishers
const (
	EventsNone     = "none"
	EventsSQS      = "sqs"
	EventsKafka    = "kafka"
	EventsRabbitMQ = "rabbitmq"
)

// Idempotency backends
const (
	IdempotencyNone     = "none"
	IdempotencyDynamoDB = "dynamodb"
	IdempotencyRedis    = "redis"
)

// Config is read from environment variables.
type Config struct {
	RunLocal  bool   `envconfig:"RUN_LOCAL" default:"false"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// TrustHeaders enables X-User-Id / X-User-Role identity. Defaults to
	// RunLocal when unset.
	TrustHeaders *bool `envconfig:"AUTH_TRUST_HEADERS"`

	Backend  string `envconfig:"STORAGE_BACKEND" default:"memory"`
	SeedFile string `envconfig:"SEED_FILE"`

	DatabaseDSN     string        `envconfig:"DATABASE_DSN"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	AWSRegion           string `envconfig:"AWS_REGION"`
	AWSEndpointOverride string `envconfig:"AWS_ENDPOINT_OVERRIDE"`

	ProductsTable    string `envconfig:"PRODUCTS_TABLE" default:"products"`
	UsersTable       string `envconfig:"USERS_TABLE" default:"users"`
	CartTable        string `envconfig:"CART_TABLE" default:"cart_items"`
	OrdersTable      string `envconfig:"ORDERS_TABLE" default:"orders"`
	IdempotencyTable string `envconfig:"IDEMPOTENCY_TABLE" default:"idempotency"`

	Events         string        `envconfig:"EVENTS_BACKEND" default:"none"`
	EventsTimeout  time.Duration `envconfig:"EVENTS_TIMEOUT" default:"3s"`
	QueueURL       string        `envconfig:"ORDERS_QUEUE_URL"`
	KafkaBrokers   string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string        `envconfig:"KAFKA_TOPIC" default:"orders"`
	RabbitURL      string        `envconfig:"RABBITMQ_URL"`
	RabbitExchange string        `envconfig:"RABBITMQ_EXCHANGE" default:"orders"`

	Idempotency    string        `envconfig:"IDEMPOTENCY_BACKEND" default:"none"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"48h"`
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`

	MetricsEnabled      bool   `envconfig:"METRICS_ENABLED" default:"true"`
	CloudWatchNamespace string `envconfig:"CLOUDWATCH_NAMESPACE"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads the environment and validates the combination of settings.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}
	if cfg.TrustHeaders == nil {
		trust := cfg.RunLocal
		cfg.TrustHeaders = &trust
	}
	return cfg, cfg.Validate()
}

// Validate checks that every selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendDynamoDB:
	case BackendPostgres, BackendMySQL:
		if c.DatabaseDSN == "" {
			return errors.Errorf("DATABASE_DSN is required for the %s backend", c.Backend)
		}
	default:
		return errors.Errorf("unknown STORAGE_BACKEND %q", c.Backend)
	}

	switch c.Events {
	case EventsNone:
	case EventsSQS:
		if c.QueueURL == "" {
			return errors.New("ORDERS_QUEUE_URL is required for sqs events")
		}
	case EventsKafka:
		if c.KafkaBrokers == "" {
			return errors.New("KAFKA_BROKERS is required for kafka events")
		}
	case EventsRabbitMQ:
		if c.RabbitURL == "" {
			return errors.New("RABBITMQ_URL is required for rabbitmq events")
		}
	default:
		return errors.Errorf("unknown EVENTS_BACKEND %q", c.Events)
	}

	switch c.Idempotency {
	case IdempotencyNone, IdempotencyDynamoDB:
	case IdempotencyRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for redis idempotency")
		}
	default:
		return errors.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.Idempotency)
	}
	return nil
}

// NeedsAWS reports whether any selected component talks to AWS.
func (c Config) NeedsAWS() bool {
	return c.Backend == BackendDynamoDB || c.Events == EventsSQS ||
		c.Idempotency == IdempotencyDynamoDB || c.CloudWatchNamespace != ""
}

// Addr is the listen address of the local server.
func (c Config) Addr() string { return ":" + c.Port }
