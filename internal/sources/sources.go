// Package sources defines the shared protocol every data adapter follows:
// deterministic cache key → cache hit wins → quota check → retrying fetch →
// format → cache store, with a same-shape fallback when the primary path
// cannot serve.
package sources

import (
	"context"
	"net/http"
	"time"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/observability"
	"chatpilot/internal/quota"
)

// Adapter wraps one external data domain. Answer never returns an error:
// failures are absorbed into the FetchResult.
type Adapter interface {
	// Actions lists the intent actions this adapter serves.
	Actions() []core.Action

	// Answer serves one classified intent.
	Answer(ctx context.Context, intent core.Intent) core.FetchResult
}

// Searcher is the web-search capability that other adapters use as their
// same-shape fallback (drug registry zero-items, for example).
type Searcher interface {
	// Search returns formatted web results for query.
	Search(ctx context.Context, query string, page int) core.FetchResult

	// Summarize returns a short text digest of the top results, shaped
	// like a primary-source text answer.
	Summarize(ctx context.Context, query string) core.FetchResult
}

// Deps holds the shared infrastructure injected into every adapter at
// construction. Nothing here is ambient package state.
type Deps struct {
	Cache   cache.Store
	Quota   *quota.Tracker
	Metrics *observability.Metrics

	// HTTPClient overrides the default pooled client; tests point it at
	// httptest servers.
	HTTPClient *http.Client
}

// Registry maps actions to the adapter serving them.
type Registry struct {
	byAction map[core.Action]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byAction: make(map[core.Action]Adapter)}
}

// Register claims every action of a for the adapter. Later registrations
// win, which lets tests swap a single adapter out.
func (r *Registry) Register(a Adapter) {
	for _, action := range a.Actions() {
		r.byAction[action] = a
	}
}

// For returns the adapter serving action.
func (r *Registry) For(action core.Action) (Adapter, bool) {
	a, ok := r.byAction[action]
	return a, ok
}

// Cached runs the shared cache protocol around fetch: on hit the cached
// response is returned untouched (never re-validated against the remote
// source); on miss, fetch runs and a successful response is stored for ttl.
// The operation name feeds both the metrics labels and nothing else — the
// caller builds the full cache key itself so parameters stay explicit.
func Cached(ctx context.Context, deps Deps, op, key string, ttl time.Duration, fetch func(context.Context) (core.Response, error)) (core.Response, error) {
	var cached core.Response
	if found, err := deps.Cache.Get(ctx, key, &cached); err == nil && found {
		deps.Metrics.ObserveCacheHit(op)
		return cached, nil
	}
	deps.Metrics.ObserveCacheMiss(op)

	resp, err := fetch(ctx)
	if err != nil {
		return core.Response{}, err
	}
	// Cache write failures must not fail the request; the next call simply
	// fetches again.
	_ = deps.Cache.Set(ctx, key, resp, ttl)
	return resp, nil
}
