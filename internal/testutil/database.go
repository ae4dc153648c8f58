// Package testutil provides shared test helpers: an isolated database per
// test and a fluent builder for seeding user records.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-spice-must-talk/internal/storage"
)

// TestDB wraps a migrated in-memory store that is closed when the test ends.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	testutil.NewRecordBuilder(t, "u1", time.Now()).
//		WithFixture(testutil.FixtureHousehold).
//		Seed(db)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}
