// Package quota tracks per-provider daily request counts against static
// ceilings. Callers must consult IsOverLimit before issuing a request; the
// tracker checks the ceiling, it does not block.
package quota

import (
	"sync"
	"time"
)

// State is the counter window for one provider.
type State struct {
	ProviderID  string
	Count       int
	WindowStart string // calendar date, "2006-01-02"
}

// Tracker counts request attempts per provider per calendar day. The window
// resets lazily when the current date differs from WindowStart; there is no
// scheduled job. Counters are process-local and deliberately not durable:
// a cold quota after restart is documented behavior.
type Tracker struct {
	mu       sync.Mutex
	ceilings map[string]int
	states   map[string]*State
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker with the given per-provider daily ceilings.
// Providers absent from ceilings are unmetered: IsOverLimit is always false
// for them, but attempts are still counted.
func NewTracker(ceilings map[string]int, opts ...Option) *Tracker {
	t := &Tracker{
		ceilings: make(map[string]int, len(ceilings)),
		states:   make(map[string]*State),
		now:      time.Now,
	}
	for k, v := range ceilings {
		t.ceilings[k] = v
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Increment records one request attempt for providerID. It must be called
// once the request has been dispatched, even if the call later fails with a
// transport error: the quota is about attempts, not successes, so forced
// retries cannot bypass it.
func (t *Tracker) Increment(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window(providerID).Count++
}

// IsOverLimit reports whether providerID has spent its daily ceiling.
func (t *Tracker) IsOverLimit(providerID string) bool {
	ceiling, metered := t.ceilings[providerID]
	if !metered {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window(providerID).Count >= ceiling
}

// Reset clears the counter for providerID immediately.
func (t *Tracker) Reset(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	today := t.now().Format(time.DateOnly)
	t.states[providerID] = &State{ProviderID: providerID, WindowStart: today}
}

// Count returns the attempts recorded for providerID in the current window.
func (t *Tracker) Count(providerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window(providerID).Count
}

// window returns the current-day state for providerID, resetting it if the
// date has rolled over. Callers must hold t.mu.
func (t *Tracker) window(providerID string) *State {
	today := t.now().Format(time.DateOnly)
	st, ok := t.states[providerID]
	if !ok || st.WindowStart != today {
		st = &State{ProviderID: providerID, WindowStart: today}
		t.states[providerID] = st
	}
	return st
}
