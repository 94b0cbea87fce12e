// Package store provides the in-memory home state for the daemon.
package store

import "github.com/grovetools/homed/pkg/models"

// UpdateType defines what caused a snapshot to be emitted.
type UpdateType string

const (
	// UpdateSnapshot is a snapshot sent to a single subscriber on request.
	UpdateSnapshot    UpdateType = "snapshot"
	UpdateDevice      UpdateType = "device"
	UpdateEnvironment UpdateType = "environment"
	UpdateSystem      UpdateType = "system"
	UpdateTariff      UpdateType = "tariff"
)

// Update carries a full snapshot of the state to subscribers.
type Update struct {
	Seq    uint64 // Position in the store's mutation order
	Type   UpdateType
	Source string       // Who caused it (e.g. a session id, "config")
	Path   string       // The patched path, empty for snapshots
	State  models.State // Deep copy, safe to read without the store lock
}
