package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nhle/issue-rest/internal/seed"
	"github.com/nhle/issue-rest/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	return openStore(t, ":memory:")
}

// NewFileStore creates a SQLiteStore backed by a file in a temporary
// directory, so that the store uses a pool of connections.
func NewFileStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	return openStore(t, filepath.Join(t.TempDir(), "issues.db"))
}

func openStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewSeededStore returns a test store loaded with the built-in demo seed:
// project TST (id 10000), issue types Bug "1", Task "3", Sub-task "5" and
// Story "10000", priorities "1".."5" and the default workflow.
func NewSeededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	return seedStore(t, NewTestStore(t))
}

// NewSeededFileStore is NewSeededStore on a file-backed store.
func NewSeededFileStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	return seedStore(t, NewFileStore(t))
}

func seedStore(t *testing.T, s *store.SQLiteStore) *store.SQLiteStore {
	t.Helper()

	f, err := seed.Default()
	if err != nil {
		t.Fatalf("parsing default seed: %v", err)
	}
	if err := seed.Apply(context.Background(), s, f); err != nil {
		t.Fatalf("applying default seed: %v", err)
	}
	return s
}
