// Package artifact reads and writes report files in object storage.
package artifact

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a key with no stored object.
	ErrNotFound = errors.New("artifact: not found")
	// ErrWrite wraps every failed Put.
	ErrWrite = errors.New("artifact: write failed")
)

// Store is a flat key/value store for report artifacts. Puts overwrite.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	// Location renders a human readable address for key.
	Location(key string) string
}
