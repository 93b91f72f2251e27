// Package dispatch turns raw query text into a response: whole-query cache
// lookup, intent classification, adapter invocation, uniform failure
// wrapping. Nothing below this boundary surfaces an error to the caller —
// every outcome is a renderable Response, with causes kept for logging.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/intent"
	"chatpilot/internal/observability"
	"chatpilot/internal/sources"
)

// queryTTL bounds the whole-query cache. It is deliberately shorter than
// any per-adapter TTL: this layer exists to absorb identical repeated text
// (including the classification work), not to own data freshness.
const queryTTL = 300 * time.Second

// failureFallbackText covers the cases where no adapter produced even an
// apology: an unrouteable action or a panicking adapter.
const failureFallbackText = "죄송해요, 요청을 처리하지 못했어요. 잠시 후 다시 시도해 주세요."

// Config wires a Dispatcher. Classifier, Registry, and Cache are required;
// the rest degrade to no-ops when absent.
type Config struct {
	Classifier *intent.Classifier
	Registry   *sources.Registry
	Cache      cache.Store
	Metrics    *observability.Metrics
	Logger     *slog.Logger
	History    *HistoryRing
	Sink       core.HistorySink
}

// Dispatcher routes classified queries to source adapters.
type Dispatcher struct {
	classifier *intent.Classifier
	registry   *sources.Registry
	cache      cache.Store
	metrics    *observability.Metrics
	logger     *slog.Logger
	history    *HistoryRing
	sink       core.HistorySink
	clock      func() time.Time
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	history := cfg.History
	if history == nil {
		history = NewHistoryRing()
	}
	return &Dispatcher{
		classifier: cfg.Classifier,
		registry:   cfg.Registry,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		logger:     logger,
		history:    history,
		sink:       cfg.Sink,
		clock:      time.Now,
	}
}

// WithClock overrides the elapsed-time source. Tests use this.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// Process answers one query. The session id, when present in ctx, scopes
// the conversation history.
func (d *Dispatcher) Process(ctx context.Context, query string) core.Response {
	started := d.clock()
	sessionID := core.GetSessionID(ctx)

	key := cache.Key("query", normalizeQuery(query))
	var cached core.Response
	if found, err := d.cache.Get(ctx, key, &cached); err == nil && found {
		d.metrics.ObserveCacheHit("dispatch")
		d.finish(sessionID, query, cached, started)
		return cached
	}
	d.metrics.ObserveCacheMiss("dispatch")

	in := d.classifier.Classify(query)
	logger := d.logger.With(
		slog.String("request_id", core.GetRequestID(ctx)),
		slog.String("action", string(in.Action)),
	)

	var resp core.Response
	cacheable := false

	if in.Action == core.ActionConversation {
		// Conversation depends on session history, which a text-keyed
		// cache entry shared across sessions would pin wrong.
		resp = conversationReply(query, d.history.Recent(sessionID))
	} else {
		result := d.invoke(ctx, in)
		// Time answers render a wall clock; a cached entry would replay
		// a stale minute. The timezone offset underneath has its own
		// long-lived cache, so recomputing the text is cheap.
		fresh := in.Action != core.ActionTime
		switch result.Status {
		case core.StatusSuccess:
			cacheable = fresh
		case core.StatusDegraded:
			cacheable = fresh
			d.metrics.ObserveFallback(string(in.Action))
			logger.Info("served degraded", slog.String("note", result.Note))
		case core.StatusFailure:
			logger.Warn("fetch failed", slog.Any("cause", result.Err))
		}
		resp = result.Response
	}

	if cacheable {
		// A failed store only costs the next identical query a re-fetch.
		if err := d.cache.Set(ctx, key, resp, queryTTL); err != nil {
			logger.Warn("query cache store failed", slog.Any("error", err))
		}
	}

	d.finish(sessionID, query, resp, started)
	return resp
}

// invoke runs the adapter with a panic guard. An adapter bug must degrade
// to a failure text, never escape to the caller.
func (d *Dispatcher) invoke(ctx context.Context, in core.Intent) (result core.FetchResult) {
	adapter, ok := d.registry.For(in.Action)
	if !ok {
		return core.Failure(failureFallbackText,
			fmt.Errorf("no adapter registered for action %q", in.Action))
	}

	defer func() {
		if r := recover(); r != nil {
			result = core.Failure(failureFallbackText,
				fmt.Errorf("adapter for %q panicked: %v", in.Action, r))
		}
	}()
	return adapter.Answer(ctx, in)
}

// finish records the exchange: the session ring synchronously (the next
// query may read it), the persistence sink fire-and-forget.
func (d *Dispatcher) finish(sessionID, query string, resp core.Response, started time.Time) {
	d.history.Add(sessionID, "user", query)
	d.history.Add(sessionID, "assistant", resp.Text)

	if d.sink != nil {
		elapsed := d.clock().Sub(started).Seconds()
		go d.sink.Save(query, resp, elapsed)
	}
}

// normalizeQuery is the whole-query cache key: identical text modulo case
// and spacing shares one entry, classification included.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
