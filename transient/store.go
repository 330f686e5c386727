// Package transient holds the short-lived key-value storage shared by all
// requests: pending authorization state and persisted HubSpot credentials.
package transient

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// Store is the set-with-expiry / get / delete contract the flow relies on.
// Implementations must give per-key linearizable reads and writes.
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
