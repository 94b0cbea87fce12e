// Package collector provides background workers that feed changes into the
// daemon state.
package collector

import (
	"context"

	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/grovetools/homed/pkg/energy"
)

// Change is a mutation a collector asks the engine to apply. Exactly one
// of Tariff or Patch is set.
type Change struct {
	Source string
	Tariff *energy.Tariff
	Patch  store.Patch
}

// Collector is a background worker that watches something and emits changes.
type Collector interface {
	// Name returns the collector's name for logging.
	Name() string

	// Run starts the collector. It should block until context is canceled.
	// It can read from the store (thread-safe) for context.
	Run(ctx context.Context, st *store.Store, changes chan<- Change) error
}
