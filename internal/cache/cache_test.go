package cache

import (
	"context"
	"testing"
	"time"
)

// fakeClock advances manually so TTL expiry can be tested without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestKey(t *testing.T) {
	tests := []struct {
		name   string
		op     string
		params []string
		want   string
	}{
		{"no params", "weekly_forecast", nil, "weekly_forecast"},
		{"normalizes case and space", "weather", []string{" Seoul "}, "weather:seoul"},
		{"keeps param order", "standings", []string{"CL", "2"}, "standings:cl:2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.op, tt.params...); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var got string
	found, err := store.Get(ctx, "missing", &got)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected miss for unknown key")
	}

	if err := store.Set(ctx, "greeting", "안녕하세요", time.Minute); err != nil {
		t.Fatalf("unexpected error on set: %v", err)
	}
	found, err = store.Get(ctx, "greeting", &got)
	if err != nil {
		t.Fatalf("unexpected error on get: %v", err)
	}
	if !found || got != "안녕하세요" {
		t.Errorf("got (%v, %q), want hit with 안녕하세요", found, got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now))

	if err := store.Set(ctx, "weather:seoul", "맑음", 600*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got string
	found, _ := store.Get(ctx, "weather:seoul", &got)
	if !found {
		t.Fatal("expected hit before TTL elapsed")
	}

	clock.Advance(600 * time.Second)

	found, _ = store.Get(ctx, "weather:seoul", &got)
	if found {
		t.Error("read after TTL must be a miss")
	}
	if store.Len() != 0 {
		t.Errorf("expired entry must be evicted, Len() = %d", store.Len())
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	original := []string{"a", "b"}
	if err := store.Set(ctx, "rows", original, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var first []string
	if found, _ := store.Get(ctx, "rows", &first); !found {
		t.Fatal("expected hit")
	}
	first[0] = "mutated"

	var second []string
	if found, _ := store.Get(ctx, "rows", &second); !found {
		t.Fatal("expected hit")
	}
	if second[0] != "a" {
		t.Errorf("cached value must not share memory with callers, got %q", second[0])
	}
}

func TestMemoryStoreZeroTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got string
	if found, _ := store.Get(ctx, "k", &got); found {
		t.Error("zero TTL must store nothing")
	}
}

// recordingStore counts reads and writes so tiering order can be asserted.
type recordingStore struct {
	inner   *MemoryStore
	gets    int
	sets    int
	getMiss bool
}

func (r *recordingStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	r.gets++
	if r.getMiss {
		return false, nil
	}
	return r.inner.Get(ctx, key, dest)
}

func (r *recordingStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	r.sets++
	return r.inner.Set(ctx, key, value, ttl)
}

func (r *recordingStore) Close() error { return r.inner.Close() }

func TestTieredStoreReadThrough(t *testing.T) {
	ctx := context.Background()

	t.Run("FastHitSkipsDurable", func(t *testing.T) {
		fast := NewMemoryStore()
		durable := &recordingStore{inner: NewMemoryStore()}
		tiered := NewTieredStore(fast, durable, time.Minute)

		if err := fast.Set(ctx, "k", "fast-value", time.Minute); err != nil {
			t.Fatal(err)
		}

		var got string
		found, err := tiered.Get(ctx, "k", &got)
		if err != nil || !found || got != "fast-value" {
			t.Fatalf("got (%v, %q, %v), want fast hit", found, got, err)
		}
		if durable.gets != 0 {
			t.Errorf("durable layer consulted on fast hit: %d gets", durable.gets)
		}
	})

	t.Run("DurableHitPromotes", func(t *testing.T) {
		fast := NewMemoryStore()
		durable := &recordingStore{inner: NewMemoryStore()}
		tiered := NewTieredStore(fast, durable, time.Minute)

		if err := durable.inner.Set(ctx, "k", "durable-value", time.Hour); err != nil {
			t.Fatal(err)
		}

		var got string
		found, err := tiered.Get(ctx, "k", &got)
		if err != nil || !found || got != "durable-value" {
			t.Fatalf("got (%v, %q, %v), want durable hit", found, got, err)
		}

		// Second read must be served by the fast layer.
		var again string
		if found, _ := tiered.Get(ctx, "k", &again); !found || again != "durable-value" {
			t.Fatalf("promotion failed: (%v, %q)", found, again)
		}
		if durable.gets != 1 {
			t.Errorf("durable gets = %d, want 1 (promoted)", durable.gets)
		}
	})

	t.Run("DurableMissIsTrueMiss", func(t *testing.T) {
		fast := NewMemoryStore()
		durable := &recordingStore{inner: NewMemoryStore(), getMiss: true}
		tiered := NewTieredStore(fast, durable, time.Minute)

		var got string
		found, err := tiered.Get(ctx, "k", &got)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found {
			t.Error("a durable miss must be a true miss")
		}
	})

	t.Run("SetWritesBothLayers", func(t *testing.T) {
		fast := NewMemoryStore()
		durable := &recordingStore{inner: NewMemoryStore()}
		tiered := NewTieredStore(fast, durable, time.Minute)

		if err := tiered.Set(ctx, "k", "v", time.Minute); err != nil {
			t.Fatal(err)
		}
		if durable.sets != 1 {
			t.Errorf("durable sets = %d, want 1", durable.sets)
		}
	})
}
