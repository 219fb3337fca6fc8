package pebble_test

import (
	"testing"

	"github.com/eventstore/eventstore/internal/eventstore"
	"github.com/eventstore/eventstore/internal/eventstore/drivertest"
	"github.com/eventstore/eventstore/internal/eventstore/pebble"
)

func TestDriverContract(t *testing.T) {
	drivertest.Run(t, func(t *testing.T) (eventstore.Driver, func()) {
		store, err := pebble.Open(pebble.Config{InMemory: true})
		if err != nil {
			t.Fatalf("open pebble: %v", err)
		}
		return store, func() { store.Close() }
	})
}
