package store_test

import (
	"testing"

	"github.com/contacthub/contacthub/internal/store"
	"github.com/contacthub/contacthub/internal/store/testutil"

	_ "github.com/contacthub/contacthub/internal/store/memory"
	_ "github.com/contacthub/contacthub/internal/store/sqlite"
)

func TestMemoryDriver(t *testing.T) {
	testutil.RunDriverTests(t, "memory", &store.DriverConfig{
		Driver: "memory",
	})
}

func TestSQLiteDriver(t *testing.T) {
	testutil.RunDriverTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
}

func TestUnknownDriver(t *testing.T) {
	_, err := store.New(&store.DriverConfig{Driver: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestAvailableDrivers(t *testing.T) {
	names := store.AvailableDrivers()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["memory"] || !found["sqlite"] {
		t.Errorf("expected memory and sqlite drivers registered, got %v", names)
	}
}
