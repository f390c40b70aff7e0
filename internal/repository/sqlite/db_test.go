package sqlite

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirAndAppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode;`).Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	var busyTimeout int
	require.NoError(t, db.QueryRow(`PRAGMA busy_timeout;`).Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}
