//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aanand-mishra/etudiants-api/internal/config"
	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/storage/migrations"
	"github.com/aanand-mishra/etudiants-api/internal/storage/storagetest"
)

// The password needs URL escaping, which exercises config.Database.DSN.
const testPassword = "s3cr@t:pa/ss"

var testDB config.Database

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       "app_1",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		log.Fatalf("port: %v", err)
	}

	testDB = config.Database{
		Driver:   config.DriverPostgres,
		Password: testPassword,
		Host:     host,
		Port:     port,
		User:     "postgres",
		Name:     "app_1",
		MaxConns: 4,
	}

	db, err := OpenDB(testDB)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := migrations.New(db, migrations.Postgres).Up(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	return m.Run()
}

// newStore returns a store over an emptied table.
func newStore(t *testing.T) storage.Storage {
	t.Helper()
	ctx := context.Background()

	pool, err := NewPool(ctx, testDB)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "TRUNCATE etudiants RESTART IDENTITY")
	require.NoError(t, err)

	s := NewFromPool(pool)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgres(t *testing.T) {
	storagetest.Run(t, newStore)
}

func TestMigrations_DownAndUp(t *testing.T) {
	ctx := context.Background()

	db, err := OpenDB(testDB)
	require.NoError(t, err)
	defer db.Close()

	m := migrations.New(db, migrations.Postgres)
	require.NoError(t, m.Down(ctx))

	_, pending, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
