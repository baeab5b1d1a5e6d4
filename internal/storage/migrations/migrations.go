// Package migrations applies the versioned schema to a store.
//
// Migration files are embedded per dialect and named
// YYYYMMDD_HHMMSS_description.{up,down}.sql. Applied versions are recorded
// in schema_migrations. The API server never runs migrations; the
// etudiants-migrate command does, once per deployment.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedded embed.FS

// Dialect selects the SQL flavour and the embedded migration set.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Filename layout: YYYYMMDD_HHMMSS_description, so a version is the first
// two underscore-separated parts.
const (
	filenameParts   = 3
	minVersionParts = 2
)

// Migration is one versioned schema change.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// Record is a row of schema_migrations.
type Record struct {
	Version   string
	AppliedAt time.Time
}

// Migrator applies migrations from fsys/dir to db.
type Migrator struct {
	db      *sql.DB
	dialect Dialect
	fsys    fs.FS
	dir     string
}

// New returns a Migrator using the migrations embedded for dialect.
func New(db *sql.DB, dialect Dialect) *Migrator {
	return NewFromFS(db, dialect, embedded, string(dialect))
}

// NewFromFS returns a Migrator reading migration files from dir in fsys.
func NewFromFS(db *sql.DB, dialect Dialect, fsys fs.FS, dir string) *Migrator {
	return &Migrator{db: db, dialect: dialect, fsys: fsys, dir: dir}
}

// Up applies all pending migrations, oldest first, and returns how many
// were applied. Each migration runs in its own transaction: when migration
// N fails, 1..N-1 stay committed and a re-run resumes from N.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	_, pending, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return i, errors.Wrapf(err, "apply %s (%s)", mig.Version, mig.Name)
		}
	}
	return len(pending), nil
}

// Down reverts the most recently applied migration. It is a no-op when
// nothing has been applied.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.createLedger(ctx); err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	all, err := m.load()
	if err != nil {
		return err
	}

	var target *Migration
	for i := range all {
		if all[i].Version == latest.Version {
			target = &all[i]
			break
		}
	}
	if target == nil {
		return errors.Errorf("migration %s not found", latest.Version)
	}
	if target.DownSQL == "" {
		return errors.Errorf("migration %s has no down SQL", latest.Version)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
		return errors.Wrap(err, "execute down SQL")
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = "+m.dialect.placeholder(1),
		target.Version,
	); err != nil {
		return errors.Wrap(err, "remove migration record")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Status returns the applied records and the migrations still pending.
func (m *Migrator) Status(ctx context.Context) (applied []Record, pending []Migration, err error) {
	if err := m.createLedger(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "create schema_migrations")
	}

	applied, err = m.applied(ctx)
	if err != nil {
		return nil, nil, err
	}

	all, err := m.load()
	if err != nil {
		return nil, nil, err
	}

	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}
	for _, mig := range all {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return applied, pending, nil
}

func (m *Migrator) createLedger(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (m *Migrator) applied(ctx context.Context) ([]Record, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, errors.Wrap(err, "query schema_migrations")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r         Record
			appliedAt string
		)
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // written by apply
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate schema_migrations")
	}
	return records, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, mig.UpSQL); err != nil {
		return errors.Wrap(err, "execute up SQL")
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES ("+
			m.dialect.placeholder(1)+", "+m.dialect.placeholder(2)+")",
		mig.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return errors.Wrap(err, "record migration")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// load reads every migration in m.dir, sorted by version.
func (m *Migrator) load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read migrations dir %s", m.dir)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, isUp, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(m.fsys, path.Join(m.dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", entry.Name())
		}

		mig, seen := byVersion[version]
		if !seen {
			mig = &Migration{Version: version, Name: name}
			byVersion[version] = mig
		}
		if isUp {
			mig.UpSQL = string(body)
		} else {
			mig.DownSQL = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.UpSQL == "" {
			return nil, errors.Errorf("migration %s has no up SQL", mig.Version)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseFilename splits "20261019_090000_create_etudiants.up.sql" into its
// version, name and direction.
func parseFilename(filename string) (version, name string, isUp, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		isUp = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	parts := strings.SplitN(base, "_", filenameParts)
	if len(parts) < minVersionParts {
		return "", "", false, false
	}

	version = parts[0] + "_" + parts[1]
	name = version
	if len(parts) == filenameParts {
		name = parts[2]
	}
	return version, name, isUp, true
}
