// Package server provides the HTTP surface of the chat gateway: one chat
// endpoint over the dispatcher, health, and metrics. Rendering and
// authentication live with the caller.
package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatpilot/internal/core"
)

// defaultBodySizeLimit caps chat request bodies. Queries are short text;
// anything near this size is not a chat message.
const defaultBodySizeLimit int64 = 64 * 1024

// Config holds server configuration options.
type Config struct {
	MetricsEnabled bool
	BodySizeLimit  int64
	// Registry serves /metrics; nil falls back to the default registry.
	Registry prometheus.Gatherer
}

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// New creates the HTTP server over a dispatcher.
func New(d Dispatcher, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true

	handler := NewHandler(d)

	e.Use(middleware.RequestID())
	e.Use(requestContext())
	e.Use(middleware.Recover())

	bodySizeLimit := defaultBodySizeLimit
	if cfg != nil && cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	e.GET("/healthz", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		gatherer := cfg.Registry
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	e.POST("/chat", handler.Chat)

	return &Server{echo: e, handler: handler}
}

// requestContext copies the request id Echo assigned into the request
// context, where the dispatcher and adapters read it for logging.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := core.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, so tests can drive the server with
// httptest directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
