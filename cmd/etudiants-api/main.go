// Command etudiants-api serves the etudiants CRUD API.
//
// STARTUP SEQUENCE:
//  1. Load configuration (YAML file and/or environment, .env first)
//  2. Build the zap logger for the environment
//  3. Open the store selected by DB_DRIVER and ping it
//  4. Register the routes on the chi router
//  5. Start the HTTP server in a separate goroutine
//  6. Block until SIGINT or SIGTERM, or until the listener fails
//  7. Gracefully shut down: finish in-flight requests, then close the store
//
// The schema must already exist; apply it with etudiants-migrate.
//
// RUNNING THE SERVER:
//
//	go run ./cmd/etudiants-api --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/etudiants-api
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/aanand-mishra/etudiants-api/internal/config"
	"github.com/aanand-mishra/etudiants-api/internal/http/router"
	"github.com/aanand-mishra/etudiants-api/internal/logger"
	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/storage/postgres"
	"github.com/aanand-mishra/etudiants-api/internal/storage/sqlite"
)

// startupPingTimeout bounds the reachability check made before serving.
const startupPingTimeout = 5 * time.Second

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// MustLoad exits the process when the config is missing or invalid, so
	// past this line every required value is present.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// dev logs to the console at debug; staging and prod log JSON.
	lg, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot build logger: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Error("etudiants-api stopped with error", zap.Error(err))
		_ = lg.Sync()
		os.Exit(1) // deferred calls do not run after os.Exit
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	lg.Info("starting etudiants-api",
		zap.String("driver", cfg.Database.Driver),
		zap.String("addr", cfg.HTTPServer.Addr),
	)

	ctx := context.Background()

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// The rest of the program only sees the storage.Storage interface.
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			lg.Warn("close storage", zap.Error(err))
		}
	}()

	// pgxpool connects lazily, so an unreachable database only shows up here.
	pingCtx, cancelPing := context.WithTimeout(ctx, startupPingTimeout)
	defer cancelPing()
	if err := store.Ping(pingCtx); err != nil {
		return errors.Wrap(err, "ping storage")
	}
	lg.Info("storage ready")

	// ── 4. Register HTTP Routes ───────────────────────────────────────────
	// Route table (see internal/http/router):
	//   GET    /etudiants        → list all students
	//   POST   /etudiants        → create a student, answer with the list
	//   GET    /etudiants/{id}   → get one student
	//   PATCH  /etudiants/{id}   → replace a student's fields
	//   DELETE /etudiants/{id}   → delete a student
	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      router.New(store, lg),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// ── 5. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe returns http.ErrServerClosed once Shutdown is called;
	// that is the normal exit and is not reported.
	serveErr := make(chan error, 1)
	go func() {
		lg.Info("server started", zap.String("addr", cfg.HTTPServer.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-done:
		lg.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return errors.Wrap(err, "listen")
	}

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	// Shutdown stops accepting connections and waits for active requests
	// until the deadline. The store is closed afterwards by the defer above.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}

	lg.Info("server stopped gracefully")
	return nil
}

// openStore returns the backend selected by DB_DRIVER: postgres in
// production, sqlite for local runs.
func openStore(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.New(cfg)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
