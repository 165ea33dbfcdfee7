// Package server initializes and runs the broker application: it opens the
// database, runs schema migrations, wires the services together, handles
// graceful shutdown, and starts the HTTP server.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/avelkov/licbroker/internal/logging"
	"github.com/avelkov/licbroker/internal/server/config"
	"github.com/avelkov/licbroker/internal/server/httpapi"
	"github.com/avelkov/licbroker/internal/server/repositories/repomanager"
	"github.com/avelkov/licbroker/internal/server/services"
	"github.com/avelkov/licbroker/internal/server/upstream"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	policy, err := services.ParseDeletionPolicy(cfg.DeletionPolicy)
	if err != nil {
		return nil, err
	}

	fetcher := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey,
		upstream.APIVariant(cfg.UpstreamAPIVariant), cfg.UpstreamTimeout)

	cache := services.NewCacheService(db, rm, logger)
	fetch := services.NewFetchService(db, rm, fetcher, cache, cfg, logger)
	invalidation := services.NewInvalidationService(db, rm, cache, policy, logger)
	lookup := services.NewLookupService(db, rm, logger)

	srv, err := httpapi.NewServer(cfg.EndpointAddrHTTP, logger, fetch, invalidation, lookup, cache,
		cfg.SecretKey, cfg.ShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("http server init error: %w", err)
	}

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
