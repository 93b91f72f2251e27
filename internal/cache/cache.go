// Package cache provides a TTL key/value store used by every adapter.
// Supports an in-process layer and an optional Redis layer for durability
// across instances; the layering is strictly read-through.
package cache

import (
	"context"
	"strings"
	"time"
)

// Store defines the interface for TTL cache storage.
// Implementations must be safe for concurrent use. Values are serialized on
// Set and deserialized into dest on Get, so callers always receive copies,
// never shared references.
type Store interface {
	// Get looks up key and, on hit, unmarshals the stored value into dest.
	// A read after the entry's TTL has elapsed is a miss and drops the
	// entry. Returns false on miss.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key for ttl. A non-positive ttl stores
	// nothing.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Close releases any resources held by the store.
	Close() error
}

// Key builds a deterministic cache key from an operation name and its
// normalized parameters. Parameters are lowercased and trimmed so that
// "Seoul" and " seoul " address the same entry.
func Key(op string, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, op)
	for _, p := range params {
		parts = append(parts, strings.ToLower(strings.TrimSpace(p)))
	}
	return strings.Join(parts, ":")
}
