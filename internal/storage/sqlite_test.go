package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkedit/silkedit-helper/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "helper", "state.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='package_state';").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "package_state", name)

	require.NoError(t, BootstrapSQLite(context.Background(), db), "bootstrap is idempotent")
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.Error(t, err)
}
