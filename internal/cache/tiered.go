package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// TieredStore layers a fast in-process store over a slower durable one.
// Reads check the fast layer first and fall back to the durable layer; only
// a value actually found in the durable layer may satisfy the read — a
// durable miss is a true miss, never a merge of the two layers.
type TieredStore struct {
	fast    Store
	durable Store
	// promoteTTL bounds how long a durable hit lives in the fast layer.
	promoteTTL time.Duration
}

// NewTieredStore composes fast and durable stores. durable may be nil, in
// which case reads and writes touch only the fast layer.
func NewTieredStore(fast, durable Store, promoteTTL time.Duration) *TieredStore {
	if promoteTTL <= 0 {
		promoteTTL = 60 * time.Second
	}
	return &TieredStore{fast: fast, durable: durable, promoteTTL: promoteTTL}
}

// Get performs the read-through: fast hit wins, otherwise the durable layer
// decides. Durable hits are promoted into the fast layer.
func (s *TieredStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	found, err := s.fast.Get(ctx, key, dest)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	if s.durable == nil {
		return false, nil
	}

	var raw json.RawMessage
	found, err = s.durable.Get(ctx, key, &raw)
	if err != nil {
		// A broken durable layer degrades to a miss; the adapter will
		// re-fetch.
		slog.Warn("durable cache read failed", "key", key, "error", err)
		return false, nil
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	if err := s.fast.Set(ctx, key, raw, s.promoteTTL); err != nil {
		slog.Warn("cache promotion failed", "key", key, "error", err)
	}
	return true, nil
}

// Set writes through to both layers.
func (s *TieredStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := s.fast.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if s.durable != nil {
		if err := s.durable.Set(ctx, key, value, ttl); err != nil {
			slog.Warn("durable cache write failed", "key", key, "error", err)
		}
	}
	return nil
}

// Close closes both layers.
func (s *TieredStore) Close() error {
	err := s.fast.Close()
	if s.durable != nil {
		if derr := s.durable.Close(); err == nil {
			err = derr
		}
	}
	return err
}
