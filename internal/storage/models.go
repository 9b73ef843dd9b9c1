package storage

import "context"

// DefaultRemoteKey is the object key the index blob is mirrored under.
const DefaultRemoteKey = "index.json"

// Mirror is a key-addressed blob store holding a copy of the index.
// Implementations must make Put conditional on version: a put whose version is
// not newer than the stored one fails with ErrVersionConflict.
type Mirror interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, version int64) error
	// Version returns the stored version of key, 0 when absent.
	Version(ctx context.Context, key string) (int64, error)
	Health(ctx context.Context) error
	Close() error
}
