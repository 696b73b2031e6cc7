package migrations

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("files")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_video_events.up.sql")
	assert.Contains(t, names, "000001_create_video_events.down.sql")
}

func TestMigrateUp(t *testing.T) {
	dbURL := os.Getenv("CVIDEO_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("CVIDEO_TEST_DATABASE_URL env not set")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, MigrateUp(db))
	require.NoError(t, MigrateUp(db))

	version, dirty, err := Version(db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}
