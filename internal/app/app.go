// Package app assembles the storefront from its configuration.
package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/config"
	"github.com/imrishuroy/go-storefront/internal/events"
	"github.com/imrishuroy/go-storefront/internal/handlers"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/metrics"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/seed"
	"github.com/imrishuroy/go-storefront/internal/storage/dynamostore"
	"github.com/imrishuroy/go-storefront/internal/storage/memstore"
	"github.com/imrishuroy/go-storefront/internal/storage/sqlstore"
)

// Backend is everything a storage implementation provides.
type Backend interface {
	orders.Store
	orders.HistoryStore
	cart.Store
	catalog.Reader
	seed.Target
}

type pinger interface {
	Ping(ctx context.Context) error
}

// App is a wired storefront.
type App struct {
	Router  *gin.Engine
	Backend Backend

	log     logrus.FieldLogger
	closers []func() error
}

// New builds every component selected by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	a := &App{log: log}
	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg config.Config) error {
	var clients *aws.Clients
	if cfg.NeedsAWS() {
		c, err := aws.NewClients(ctx, aws.Options{Region: cfg.AWSRegion, EndpointOverride: cfg.AWSEndpointOverride})
		if err != nil {
			return errors.Wrap(err, "aws clients")
		}
		clients = c
	}

	backend, err := a.openBackend(ctx, cfg, clients)
	if err != nil {
		return err
	}
	a.Backend = backend

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, backend, f, a.log); err != nil {
			return err
		}
	}

	pub, err := a.openPublisher(cfg, clients)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pub.Close)

	guard, err := a.openGuard(cfg, clients)
	if err != nil {
		return err
	}

	var (
		recorders metrics.Multi
		server    *metrics.ServerMetrics
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		server = metrics.NewServerMetrics("api", reg)
		recorders = append(recorders, server)
	}
	if cfg.CloudWatchNamespace != "" {
		recorders = append(recorders, metrics.NewCloudWatch(aws.NewMetricEmitter(clients.CloudWatch, cfg.CloudWatchNamespace), a.log))
	}

	var health func() error
	if p, ok := backend.(pinger); ok {
		health = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return p.Ping(ctx)
		}
	}

	a.Router = handlers.NewRouter(handlers.HandlerConfig{
		Coordinator: orders.NewCoordinator(backend, a.log),
		History:     orders.NewHistory(backend, a.log),
		Cart:        cart.NewService(backend, backend, a.log),
		Guard:       guard,
		Emitter:     events.NewEmitter(pub, cfg.EventsTimeout, a.log),
		Verifier:    auth.Verifier{TrustHeaders: cfg.TrustHeaders != nil && *cfg.TrustHeaders},
		Recorder:    recorders,
		Server:      server,
		Health:      health,
		Log:         a.log,
	})
	return nil
}

func (a *App) openBackend(ctx context.Context, cfg config.Config, clients *aws.Clients) (Backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres, config.BackendMySQL:
		s, err := sqlstore.Open(ctx, sqlstore.Config{
			Driver:          cfg.Backend,
			DSN:             cfg.DatabaseDSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.BackendDynamoDB:
		return dynamostore.New(clients.DynamoDB, dynamostore.Tables{
			Products: cfg.ProductsTable,
			Users:    cfg.UsersTable,
			Cart:     cfg.CartTable,
			Orders:   cfg.OrdersTable,
		}, a.log), nil
	default:
		return memstore.New(), nil
	}
}

func (a *App) openPublisher(cfg config.Config, clients *aws.Clients) (events.Publisher, error) {
	switch cfg.Events {
	case config.EventsSQS:
		return events.NewSQSPublisher(aws.NewPublisher(clients.SQS, cfg.QueueURL)), nil
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case config.EventsRabbitMQ:
		return events.DialRabbit(cfg.RabbitURL, cfg.RabbitExchange)
	default:
		return events.Noop{}, nil
	}
}

func (a *App) openGuard(cfg config.Config, clients *aws.Clients) (*idempotency.Guard, error) {
	switch cfg.Idempotency {
	case config.IdempotencyDynamoDB:
		store := idempotency.NewDynamoStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
		return idempotency.NewGuard(store, a.log), nil
	case config.IdempotencyRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		a.closers = append(a.closers, rdb.Close)
		return idempotency.NewGuard(idempotency.NewRedisStore(rdb, "", cfg.IdempotencyTTL), a.log), nil
	default:
		return nil, nil
	}
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
	a.closers = nil
}
