package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/stretchr/testify/require"
)

// NewStore returns a migrated in-memory store that is closed when the test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(ctx, store.MemoryPath, store.Options{Logger: NewTestLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	return s
}

// DataDir returns the repository's canonical CSV fixtures directory.
func DataDir(t testing.TB) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "testdata", "csv")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above working directory")
		}
		dir = parent
	}
}

// CopyDataDir copies the fixtures into a temp dir so a test can edit them.
func CopyDataDir(t testing.TB) string {
	t.Helper()

	src := DataDir(t)
	dst := t.TempDir()
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0o600))
	}
	return dst
}
