package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRunAppliesSqliteMigrations(t *testing.T) {
	source, err := filepath.Abs("../../../migrations/sqlite")
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	require.NoError(t, Run("file://"+source, "sqlite://"+dbPath))

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('checkpoints') WHERE name = 'thread_title'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "thread_title column should exist after migrating up")

	// A second run is a no-op, not a failure.
	require.NoError(t, Run("file://"+source, "sqlite://"+dbPath))
}
