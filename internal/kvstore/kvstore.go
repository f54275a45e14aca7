// Package kvstore provides the durable key-value stores carts are persisted to.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a durable key-value medium.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
}
