// Package store persists the market snapshot as independent named blobs.
// Implementations include PostgreSQL (source of truth), Redis (standalone or
// as a read-through cache in front of PostgreSQL), and in-memory (for
// testing).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists under the key.
var ErrNotFound = errors.New("store: blob not found")

// Store is the persistence interface. Each blob is written and read
// independently; a failure on one key does not affect the others.
type Store interface {
	// Load returns the blob stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the blob stored under key.
	Save(ctx context.Context, key string, blob []byte) error
}
