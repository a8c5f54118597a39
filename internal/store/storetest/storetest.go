// Package storetest opens migrated in-memory SQLite stores for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"task-manager-api/internal/config"
	"task-manager-api/internal/store"
)

var seq atomic.Int64

// New returns a migrated store backed by a private in-memory SQLite database.
// The database disappears when the test's cleanup closes the store.
func New(t testing.TB) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Name: dsn})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Migrate("up"); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	return s
}
