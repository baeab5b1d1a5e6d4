// Package sqlitetest opens migrated, throwaway SQLite stores for tests.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/etudiants-api/internal/config"
	"github.com/aanand-mishra/etudiants-api/internal/storage/migrations"
	"github.com/aanand-mishra/etudiants-api/internal/storage/sqlite"
)

// New returns a store backed by a fresh database file in t.TempDir with
// every migration applied. The store is closed when the test ends.
func New(t testing.TB) *sqlite.SQLite {
	t.Helper()

	cfg := &config.Config{Database: config.Database{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "etudiants.db"),
	}}

	store, err := sqlite.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = migrations.New(store.Db, migrations.SQLite).Up(context.Background())
	require.NoError(t, err)

	return store
}
