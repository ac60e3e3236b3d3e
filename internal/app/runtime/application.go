// Package runtime assembles the ServiceHub server process: storage, caches,
// domain services and the HTTP listener.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/jkdigital/servicehub/internal/app"
	"github.com/jkdigital/servicehub/internal/app/httpapi"
	"github.com/jkdigital/servicehub/internal/app/storage"
	"github.com/jkdigital/servicehub/internal/app/storage/memory"
	"github.com/jkdigital/servicehub/internal/app/storage/postgres"
	"github.com/jkdigital/servicehub/internal/config"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/platform/cache"
	"github.com/jkdigital/servicehub/internal/platform/migrations"
)

const redisKeyPrefix = "servicehub:"

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logging.Logger
	services   *app.Application
	handler    *httpapi.Handler
	httpServer *http.Server
	db         *sql.DB
	redis      *cache.Redis
}

// NewApplication constructs the server from cfg. An empty database DSN keeps
// everything in memory; an empty Redis address keeps the status cache in
// process.
func NewApplication(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("servicehub", cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, log: log}

	stores, err := a.buildStores(ctx)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	var opts []app.Option
	if cfg.Redis.Addr != "" {
		a.redis, err = cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   redisKeyPrefix,
		})
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		opts = append(opts, app.WithStatusCache(a.redis))
	}

	a.services, err = app.New(stores, cfg, app.NewProvider(cfg, log.Named("provider")), log, opts...)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	if err := a.services.Bootstrap(ctx); err != nil {
		a.closeResources()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	a.handler, err = httpapi.NewHandler(a.services, httpapi.Config{
		CORSOrigins:    cfg.AllowedOrigins(),
		LoginRate:      cfg.RateLimit.RequestsPerSecond,
		LoginBurst:     cfg.RateLimit.Burst,
		TrustedProxies: cfg.TrustedProxies(),
		AuditCapacity:  cfg.Audit.Capacity,
		AuditFile:      cfg.Audit.File,
		WatchInterval:  cfg.Polling.WatchInterval,
		Logger:         log.Named("httpapi"),
	})
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("build http handler: %w", err)
	}

	a.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return a, nil
}

// Run starts background services and the HTTP server, and blocks until ctx
// is cancelled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.services.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	a.handler.StartCleanup(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.httpServer.Addr).Info("HTTP server listening")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown drains the HTTP server, stops background services and closes
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.services.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	if err := a.handler.Close(); err != nil {
		a.log.WithError(err).Warn("error closing audit log")
	}
	a.closeResources()
	return errors.Join(errs...)
}

// Handler exposes the HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.handler
}

func (a *Application) buildStores(ctx context.Context) (storage.Stores, error) {
	if a.cfg.UseMemoryStore() {
		a.log.Warn("DATABASE_URL not set; using in-memory storage")
		return memory.New().Stores(), nil
	}

	db, err := openDatabase(ctx, a.cfg.Database)
	if err != nil {
		return storage.Stores{}, err
	}
	a.db = db

	if err := migrations.Apply(ctx, db); err != nil {
		return storage.Stores{}, fmt.Errorf("apply migrations: %w", err)
	}
	a.log.WithField("statements", migrations.Count()).Info("database schema up to date")
	return postgres.New(db).Stores(), nil
}

func (a *Application) closeResources() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
