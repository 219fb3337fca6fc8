package sqlite_test

import (
	"testing"

	"github.com/eventstore/eventstore/internal/eventstore"
	"github.com/eventstore/eventstore/internal/eventstore/drivertest"
	"github.com/eventstore/eventstore/internal/eventstore/sqlite"
)

func TestDriverContract(t *testing.T) {
	drivertest.Run(t, func(t *testing.T) (eventstore.Driver, func()) {
		store, err := sqlite.Open(sqlite.Config{TestMode: true, Name: t.Name()})
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		return store, func() { store.Close() }
	})
}
