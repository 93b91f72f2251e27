// Package main is the entry point for the chatpilot gateway server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"chatpilot/config"
	"chatpilot/internal/app"
)

func main() {
	prettyFlag := flag.Bool("pretty", false, "Colorized console logs instead of JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := buildLogger(*prettyFlag || cfg.Server.LogPretty)
	slog.SetDefault(logger)

	warnMissingKeys(cfg)

	application, err := app.New(context.Background(), app.Config{
		AppConfig: cfg,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := application.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Server.Port)
	if err := application.Start(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}

func buildLogger(pretty bool) *slog.Logger {
	if pretty {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{TimeFormat: time.Kitchen}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// warnMissingKeys flags unset upstream credentials at startup instead of
// letting the first matching query fail.
func warnMissingKeys(cfg *config.Config) {
	keys := []struct {
		name  string
		value string
	}{
		{"OPENWEATHER_API_KEY", cfg.Weather.APIKey},
		{"MFDS_SERVICE_KEY", cfg.Drug.ServiceKey},
		{"FOOTBALL_DATA_TOKEN", cfg.Sports.APIToken},
		{"NAVER_CLIENT_ID", cfg.Naver.ClientID},
		{"NAVER_CLIENT_SECRET", cfg.Naver.ClientSecret},
		{"SEOUL_OPENDATA_KEY", cfg.Seoul.APIKey},
	}
	for _, key := range keys {
		if key.value == "" {
			slog.Warn("upstream credential not set, its queries will fail", "key", key.name)
		}
	}
}
