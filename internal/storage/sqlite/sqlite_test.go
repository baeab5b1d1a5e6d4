package sqlite_test

import (
	"testing"

	"github.com/aanand-mishra/etudiants-api/internal/storage"
	"github.com/aanand-mishra/etudiants-api/internal/storage/sqlite/sqlitetest"
	"github.com/aanand-mishra/etudiants-api/internal/storage/storagetest"
)

func TestSQLite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return sqlitetest.New(t)
	})
}
