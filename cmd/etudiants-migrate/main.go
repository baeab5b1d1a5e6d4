// Command etudiants-migrate applies the versioned etudiants schema.
//
//	etudiants-migrate [--config=config/local.yaml] up|down|status
//
// up applies every pending migration, down reverts the latest one and
// status lists both. The database is chosen by DB_DRIVER exactly as for
// etudiants-api.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/aanand-mishra/etudiants-api/internal/config"
	"github.com/aanand-mishra/etudiants-api/internal/logger"
	"github.com/aanand-mishra/etudiants-api/internal/storage/migrations"
	"github.com/aanand-mishra/etudiants-api/internal/storage/postgres"
	"github.com/aanand-mishra/etudiants-api/internal/storage/sqlite"
)

const migrateTimeout = 2 * time.Minute

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to the configuration YAML file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [--config=path] up|down|status\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %s\n", err)
		os.Exit(1)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot build logger: %s\n", err)
		os.Exit(1)
	}

	if err := run(cfg, lg, flag.Arg(0)); err != nil {
		lg.Error("migration failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		_ = lg.Sync()
		os.Exit(1)
	}
	_ = lg.Sync()
}

func run(cfg *config.Config, lg *zap.Logger, command string) error {
	db, dialect, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	m := migrations.New(db, dialect)

	switch command {
	case "up":
		n, err := m.Up(ctx)
		if err != nil {
			return errors.Wrapf(err, "applied %d before failure", n)
		}
		lg.Info("migrations applied", zap.Int("count", n))
	case "down":
		if err := m.Down(ctx); err != nil {
			return err
		}
		lg.Info("latest migration reverted")
	case "status":
		applied, pending, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, r := range applied {
			lg.Info("applied", zap.String("version", r.Version), zap.Time("applied_at", r.AppliedAt))
		}
		for _, p := range pending {
			lg.Info("pending", zap.String("version", p.Version), zap.String("name", p.Name))
		}
	default:
		return errors.Errorf("unknown command %q", command)
	}
	return nil
}

// openDB returns a database/sql handle and the migration dialect for the
// configured driver.
func openDB(cfg *config.Config) (*sql.DB, migrations.Dialect, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.OpenDB(cfg.Database)
		if err != nil {
			return nil, "", errors.Wrap(err, "open postgres")
		}
		return db, migrations.Postgres, nil
	case config.DriverSQLite:
		store, err := sqlite.New(cfg)
		if err != nil {
			return nil, "", errors.Wrap(err, "open sqlite")
		}
		return store.Db, migrations.SQLite, nil
	default:
		return nil, "", errors.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
