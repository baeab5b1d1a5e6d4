// Package postgres implements storage.Storage on a pgx connection pool.
package postgres

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/aanand-mishra/etudiants-api/internal/config"
	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/types"
)

var _ storage.Storage = (*Postgres)(nil)

const studentColumns = "id, nom, prenom, adresse"

// Postgres is the production store. The pool is shared by every request
// for the lifetime of the process.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPool creates a pgxpool.Pool for the configured database. It does not
// wait for a connection; call Ping to verify reachability.
func NewPool(ctx context.Context, cfg config.Database) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// New opens a pool for cfg and wraps it.
func New(ctx context.Context, cfg *config.Config) (*Postgres, error) {
	pool, err := NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return NewFromPool(pool), nil
}

// NewFromPool wraps an existing pool. Close closes the pool.
func NewFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenDB opens a database/sql handle on the pgx driver. The migrator uses
// it; request handling goes through the pool.
func OpenDB(cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	return db, nil
}

// CreateStudent inserts a row and returns the id assigned by the serial.
func (p *Postgres) CreateStudent(ctx context.Context, in types.StudentPayload) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		"INSERT INTO etudiants (nom, prenom, adresse) VALUES ($1, $2, $3) RETURNING id",
		in.LastName, in.FirstName, in.Address,
	).Scan(&id)
	if err != nil {
		return 0, classify(err, "insert student")
	}
	return id, nil
}

// GetStudentByID fetches one row by primary key.
func (p *Postgres) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	rows, _ := p.pool.Query(ctx,
		"SELECT "+studentColumns+" FROM etudiants WHERE id = $1", id)
	return collectOne(rows, "get student")
}

// GetStudents returns all rows.
func (p *Postgres) GetStudents(ctx context.Context) ([]types.Student, error) {
	rows, _ := p.pool.Query(ctx, "SELECT "+studentColumns+" FROM etudiants")
	students, err := pgx.CollectRows(rows, pgx.RowToStructByPos[types.Student])
	if err != nil {
		return nil, errors.Wrap(err, "query students")
	}
	if students == nil {
		students = []types.Student{}
	}
	return students, nil
}

// CountStudents returns the number of rows.
func (p *Postgres) CountStudents(ctx context.Context) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM etudiants").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count students")
	}
	return n, nil
}

// UpdateStudentByID overwrites nom, prenom and adresse and returns the row.
func (p *Postgres) UpdateStudentByID(ctx context.Context, id int64, in types.StudentPayload) (types.Student, error) {
	rows, _ := p.pool.Query(ctx,
		"UPDATE etudiants SET nom = $1, prenom = $2, adresse = $3 WHERE id = $4 RETURNING "+studentColumns,
		in.LastName, in.FirstName, in.Address, id,
	)
	return collectOne(rows, "update student")
}

// DeleteStudentByID removes a row and returns the values it held.
func (p *Postgres) DeleteStudentByID(ctx context.Context, id int64) (types.Student, error) {
	rows, _ := p.pool.Query(ctx,
		"DELETE FROM etudiants WHERE id = $1 RETURNING "+studentColumns, id)
	return collectOne(rows, "delete student")
}

// Ping acquires a connection and round-trips to the server.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the pool, waiting for acquired connections to be released.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// collectOne scans exactly one row. Query errors surface through rows, so
// callers may ignore the error returned by Query.
func collectOne(rows pgx.Rows, op string) (types.Student, error) {
	student, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[types.Student])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Student{}, storage.ErrNotFound
		}
		return types.Student{}, classify(err, op)
	}
	return student, nil
}

// classify tags integrity constraint failures (SQLSTATE class 23) with
// storage.ErrConstraintViolation.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		return errors.Wrapf(storage.ErrConstraintViolation, "%s: %s (%s)", op, pgErr.Message, pgErr.Code)
	}
	return errors.Wrap(err, op)
}
