package testutil

import (
	"path/filepath"
	"testing"

	"geowarden/internal/database"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Logger returns a logger that only surfaces errors during tests.
func Logger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
}

// SetupTestDatabase opens a migrated SQLite database in a temporary directory.
// A single connection keeps concurrent test goroutines from racing on the file lock.
func SetupTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewConnection(&database.Config{
		Type:         database.TypeSQLite,
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, Logger())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
