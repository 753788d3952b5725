// Package sessionstore persists the admin session roster and each tab's
// current-session pointer in a shared key/value backend.
package sessionstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by a KV backend when a key is absent
var ErrKeyNotFound = errors.New("key not found")

// KV is the durable key/value medium behind a Store. Implementations must
// deliver a change event to every watcher after Publish, including watchers
// in other processes when the backend is shared.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Publish announces that key was mutated
	Publish(ctx context.Context, key string) error
	// Watch calls fn with the mutated key until ctx is cancelled.
	// fn runs on the backend's goroutine and must not block.
	Watch(ctx context.Context, fn func(key string)) error
}
