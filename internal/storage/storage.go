package storage

import (
	"github.com/hnsnap/hnsnap/internal/types"
)

// Storage is the interface for all snapshot output backends.
type Storage interface {
	// Store persists the snapshot, fully replacing any prior output.
	Store(snapshot *types.Snapshot) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}
