package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"chatpilot/internal/core"
)

// Dispatcher is the one capability the HTTP layer needs.
type Dispatcher interface {
	Process(ctx context.Context, query string) core.Response
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	// SessionID groups queries into one conversation. Empty means a new
	// session; the server mints one and returns it.
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	SessionID string        `json:"session_id"`
	Response  core.Response `json:"response"`
}

// Handler holds the HTTP handlers.
type Handler struct {
	dispatcher Dispatcher
}

// NewHandler creates a handler over the dispatcher.
func NewHandler(d Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Chat handles POST /chat.
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "message is required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := core.WithSessionID(c.Request().Context(), sessionID)
	resp := h.dispatcher.Process(ctx, req.Message)

	return c.JSON(http.StatusOK, ChatResponse{
		SessionID: sessionID,
		Response:  resp,
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"type":    "invalid_request",
			"message": message,
		},
	})
}
