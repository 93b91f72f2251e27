package dispatch

import (
	"sync"

	"chatpilot/internal/core"
)

// historyDepth is how many role/content pairs a session keeps. Only the
// most recent few entries ever matter to the conversation path.
const historyDepth = 5

// HistoryRing keeps a bounded per-session window of recent exchanges.
// It is safe for concurrent sessions.
type HistoryRing struct {
	mu       sync.Mutex
	sessions map[string][]core.HistoryEntry
}

// NewHistoryRing creates an empty ring.
func NewHistoryRing() *HistoryRing {
	return &HistoryRing{sessions: make(map[string][]core.HistoryEntry)}
}

// Add records one entry for the session, discarding the oldest once the
// window is full.
func (h *HistoryRing) Add(sessionID, role, content string) {
	if sessionID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append(h.sessions[sessionID], core.HistoryEntry{Role: role, Content: content})
	if len(entries) > historyDepth {
		entries = entries[len(entries)-historyDepth:]
	}
	h.sessions[sessionID] = entries
}

// Recent returns a copy of the session's window, oldest first.
func (h *HistoryRing) Recent(sessionID string) []core.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.sessions[sessionID]
	out := make([]core.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}
