// Package sqlite provides a SQLite-backed implementation of storage.Storage
// on database/sql. It serves local runs (DB_DRIVER=sqlite) and the test
// suites; production uses the postgres backend.
//
// The schema is owned by the migrations package. New only opens the file;
// run etudiants-migrate (or migrations.New(db, migrations.SQLite).Up) first.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/etudiants-api/internal/config"
	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/types"
)

var _ storage.Storage = (*SQLite)(nil)

// busyTimeoutMS is how long a writer waits on a locked database.
const busyTimeoutMS = 5000

// SQLite holds a *sql.DB, a connection pool that is safe for concurrent use.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at cfg.Database.SQLitePath, creating its
// directory when missing.
func New(cfg *config.Config) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create sqlite directory")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Database.SQLitePath, busyTimeoutMS)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLite{Db: db}, nil
}

// CreateStudent inserts a row. Nil payload fields are bound as NULL.
func (s *SQLite) CreateStudent(ctx context.Context, p types.StudentPayload) (int64, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO etudiants (nom, prenom, adresse) VALUES (?, ?, ?)",
	)
	if err != nil {
		return 0, errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, p.LastName, p.FirstName, p.Address)
	if err != nil {
		return 0, classify(err, "insert student")
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "last insert id")
	}
	return lastID, nil
}

// GetStudentByID fetches one row by primary key.
func (s *SQLite) GetStudentByID(ctx context.Context, id int64) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, nom, prenom, adresse FROM etudiants WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, errors.Wrap(err, "prepare select")
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRowContext(ctx, id))
	if err != nil {
		return types.Student{}, notFound(err, "get student")
	}
	return student, nil
}

// GetStudents returns all rows. The slice is non-nil so it encodes as [].
func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	rows, err := s.Db.QueryContext(ctx, "SELECT id, nom, prenom, adresse FROM etudiants")
	if err != nil {
		return nil, errors.Wrap(err, "query students")
	}
	defer rows.Close()

	students := make([]types.Student, 0)
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan student")
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate students")
	}
	return students, nil
}

// CountStudents returns the number of rows.
func (s *SQLite) CountStudents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.Db.QueryRowContext(ctx, "SELECT COUNT(*) FROM etudiants").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count students")
	}
	return n, nil
}

// UpdateStudentByID overwrites nom, prenom and adresse in one statement and
// returns the stored row.
func (s *SQLite) UpdateStudentByID(ctx context.Context, id int64, p types.StudentPayload) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx, `
		UPDATE etudiants SET nom = ?, prenom = ?, adresse = ?
		WHERE id = ?
		RETURNING id, nom, prenom, adresse`,
	)
	if err != nil {
		return types.Student{}, errors.Wrap(err, "prepare update")
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRowContext(ctx, p.LastName, p.FirstName, p.Address, id))
	if err != nil {
		return types.Student{}, notFound(err, "update student")
	}
	return student, nil
}

// DeleteStudentByID removes a row and returns the values it held.
func (s *SQLite) DeleteStudentByID(ctx context.Context, id int64) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"DELETE FROM etudiants WHERE id = ? RETURNING id, nom, prenom, adresse",
	)
	if err != nil {
		return types.Student{}, errors.Wrap(err, "prepare delete")
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRowContext(ctx, id))
	if err != nil {
		return types.Student{}, notFound(err, "delete student")
	}
	return student, nil
}

// Ping verifies the database file can be opened.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

// Close closes the pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanStudent reads id, nom, prenom, adresse in that order.
func scanStudent(row scanner) (types.Student, error) {
	var st types.Student
	err := row.Scan(&st.ID, &st.LastName, &st.FirstName, &st.Address)
	return st, err
}

// notFound maps sql.ErrNoRows to storage.ErrNotFound.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return classify(err, op)
}

// classify tags constraint failures with storage.ErrConstraintViolation.
func classify(err error, op string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return errors.Wrapf(storage.ErrConstraintViolation, "%s: %s", op, sqliteErr.Error())
	}
	return errors.Wrap(err, op)
}
