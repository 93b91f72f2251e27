// Package app wires the application: config → cache tiers → quota →
// metrics → adapters → registry → dispatcher → HTTP server. It owns the
// lifecycle; the caller only starts and shuts down.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"chatpilot/config"
	"chatpilot/internal/cache"
	"chatpilot/internal/core"
	"chatpilot/internal/dispatch"
	"chatpilot/internal/history"
	"chatpilot/internal/intent"
	"chatpilot/internal/observability"
	"chatpilot/internal/quota"
	"chatpilot/internal/server"
	"chatpilot/internal/sources"
	"chatpilot/internal/sources/drug"
	"chatpilot/internal/sources/football"
	"chatpilot/internal/sources/papers"
	"chatpilot/internal/sources/seoul"
	"chatpilot/internal/sources/weather"
	"chatpilot/internal/sources/websearch"
)

// Config holds the options for creating an App.
type Config struct {
	// AppConfig is the loaded application configuration. Required.
	AppConfig *config.Config

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Sink receives answered queries fire-and-forget. Optional.
	Sink core.HistorySink
}

// App holds every long-lived component of the chat gateway.
type App struct {
	config     *config.Config
	store      cache.Store
	sink       *history.SQLiteSink
	dispatcher *dispatch.Dispatcher
	server     *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates an App with all dependencies initialized. The caller must
// call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := buildCache(appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.New(registry)
	tracker := quota.NewTracker(appCfg.QuotaCeilings())

	deps := sources.Deps{
		Cache:   store,
		Quota:   tracker,
		Metrics: metrics,
	}

	sink := cfg.Sink
	var ownedSink *history.SQLiteSink
	if sink == nil && appCfg.History.DBPath != "" {
		ownedSink, err = history.NewSQLiteSink(appCfg.History.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history sink: %w", err)
		}
		sink = ownedSink
	}

	search := websearch.New(appCfg.Naver.ClientID, appCfg.Naver.ClientSecret, deps)

	// The drug registry falls back to a web-search summary on zero items;
	// disabling the fallback turns those into plain not-found answers.
	var drugFallback sources.Searcher
	if appCfg.Drug.FallbackEnabled {
		drugFallback = search
	}

	adapterRegistry := sources.NewRegistry()
	adapterRegistry.Register(weather.New(appCfg.Weather.APIKey, deps))
	adapterRegistry.Register(drug.New(appCfg.Drug.ServiceKey, drugFallback, deps))
	adapterRegistry.Register(football.New(appCfg.Sports.APIToken, deps))
	adapterRegistry.Register(papers.New(appCfg.Pubmed.APIKey, deps))
	adapterRegistry.Register(search)
	adapterRegistry.Register(seoul.New(appCfg.Seoul.APIKey, deps))

	dispatcher := dispatch.New(dispatch.Config{
		Classifier: intent.New(),
		Registry:   adapterRegistry,
		Cache:      store,
		Metrics:    metrics,
		Logger:     logger,
		Sink:       sink,
	})

	srv := server.New(dispatcher, &server.Config{
		MetricsEnabled: appCfg.Server.MetricsEnabled,
		Registry:       registry,
	})

	return &App{
		config:     appCfg,
		store:      store,
		sink:       ownedSink,
		dispatcher: dispatcher,
		server:     srv,
	}, nil
}

// buildCache assembles the cache tiers: always a process-memory layer, and
// a Redis layer underneath when configured so answers survive restarts.
func buildCache(cfg *config.Config) (cache.Store, error) {
	memory := cache.NewMemoryStore()
	if cfg.Cache.RedisURL == "" {
		return memory, nil
	}

	redis, err := cache.NewRedisStore(cache.RedisConfig{
		URL:       cfg.Cache.RedisURL,
		KeyPrefix: cfg.Cache.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	return cache.NewTieredStore(memory, redis, cfg.Cache.PromoteTTL), nil
}

// Dispatcher exposes the query entry point, for embedding the gateway
// without its HTTP surface.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Handler exposes the HTTP surface for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the configured port. It blocks until the
// server stops.
func (a *App) Start() error {
	return a.server.Start(":" + a.config.Server.Port)
}

// Shutdown gracefully stops the server and releases resources. Safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	defer a.shutdownMu.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			return fmt.Errorf("history sink close: %w", err)
		}
	}
	return a.store.Close()
}
