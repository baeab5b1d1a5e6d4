// Package storage defines the Storage interface: the contract any database
// backend must satisfy to serve the etudiants API.
//
// Handlers depend only on this interface, so the postgres backend used in
// production and the sqlite backend used for local runs and tests are
// interchangeable. Each method maps to exactly one SQL statement.
package storage

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/aanand-mishra/etudiants-api/internal/types"
)

var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("student not found")

	// ErrConstraintViolation is returned when the store rejects a write,
	// for example a NULL last name hitting the NOT NULL constraint.
	ErrConstraintViolation = errors.New("constraint violation")
)

// Storage is the database contract.
type Storage interface {
	// CreateStudent inserts a row and returns the id assigned by the store.
	CreateStudent(ctx context.Context, p types.StudentPayload) (int64, error)

	// GetStudentByID returns ErrNotFound when the id is absent.
	GetStudentByID(ctx context.Context, id int64) (types.Student, error)

	// GetStudents returns every row, in store order. The slice is empty,
	// never nil, when the table is empty.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// CountStudents returns the number of rows.
	CountStudents(ctx context.Context) (int64, error)

	// UpdateStudentByID overwrites the three data columns with the payload
	// (nil fields become NULL) and returns the stored row.
	UpdateStudentByID(ctx context.Context, id int64, p types.StudentPayload) (types.Student, error)

	// DeleteStudentByID removes the row and returns its last values.
	DeleteStudentByID(ctx context.Context, id int64) (types.Student, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}
