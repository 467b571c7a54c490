package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-storefront/internal/app"
	"github.com/imrishuroy/go-storefront/internal/config"
	"github.com/imrishuroy/go-storefront/internal/logging"
	"github.com/imrishuroy/go-storefront/internal/storage/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := newCLI(cfg, log).Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront exited")
	}
}

func newCLI(cfg config.Config, log *logrus.Logger) *cli.App {
	return &cli.App{
		Name:  "storefront",
		Usage: "orders, cart and order history API",
		// if RUN_LOCAL=true run a local HTTP server for development, otherwise behind Lambda
		Action: func(c *cli.Context) error {
			if cfg.RunLocal {
				return serve(c.Context, cfg, log)
			}
			return runLambda(c.Context, cfg, log)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg, log)
				},
			},
			{
				Name:  "lambda",
				Usage: "run as an API Gateway proxy Lambda",
				Action: func(c *cli.Context) error {
					return runLambda(c.Context, cfg, log)
				},
			},
			{
				Name:      "migrate",
				Usage:     "apply schema migrations to the SQL backend",
				ArgsUsage: "up|down",
				Action: func(c *cli.Context) error {
					dir := sqlstore.Direction(c.Args().First())
					if dir == "" {
						dir = sqlstore.Up
					}
					if cfg.Backend != config.BackendPostgres && cfg.Backend != config.BackendMySQL {
						return errors.Errorf("migrate needs a SQL backend, STORAGE_BACKEND is %q", cfg.Backend)
					}
					return sqlstore.Migrate(sqlstore.Config{Driver: cfg.Backend, DSN: cfg.DatabaseDSN}, dir, log)
				},
			},
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{Addr: cfg.Addr(), Handler: a.Router}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("running local server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runLambda(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// lambda adapter
	adapter := ginadapter.New(a.Router)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		// ProxyWithContext carries the authorizer context through to the handlers
		return adapter.ProxyWithContext(ctx, req)
	})
	return nil
}
