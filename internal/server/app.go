// Package server initializes and runs the gateway application: it validates
// configuration, selects the storage backend, wires the services, and starts
// the HTTP server with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/filegate/internal/logging"
	"github.com/dmitrijs2005/filegate/internal/server/config"
	"github.com/dmitrijs2005/filegate/internal/server/httpapi"
	"github.com/dmitrijs2005/filegate/internal/server/services"
	"github.com/dmitrijs2005/filegate/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	// Missing endpoint/bucket/credentials is a fatal startup condition, not
	// a per-request error.
	if err := c.Validate(); err != nil {
		return nil, err
	}

	provider, err := newProvider(context.Background(), c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	quotas := services.NewQuotas(c)
	presign := services.NewPresignService(provider, quotas, c)
	multipart := services.NewMultipartService(provider, quotas, c)
	bundle := services.NewBundleService(provider, c, logger)

	handler := httpapi.NewHandler(presign, multipart, bundle, logger, c)
	router := httpapi.NewRouter(handler, logger)

	return &App{
		config: c,
		logger: logger,
		server: httpapi.NewServer(c.EndpointAddr, logger, router),
	}, nil
}

func newProvider(ctx context.Context, c *config.Config) (storage.Provider, error) {
	switch c.Backend {
	case "minio":
		return storage.NewMinioProvider(c)
	default:
		return storage.NewS3Provider(ctx, c)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.Backend)

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.server.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
