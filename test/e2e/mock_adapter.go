package e2e

import (
	"context"
	"errors"
	"sync"

	"github.com/julian-najas/cacp/pkg/models"
)

// ScriptedAdapter stands in for the messaging provider. It records every
// envelope it delivers and can be scripted to fail a number of calls first,
// which drives the retry and dead-letter paths.
type ScriptedAdapter struct {
	mu       sync.Mutex
	sent     []models.Envelope
	failures int
}

// NewScriptedAdapter creates an adapter that succeeds on every call.
func NewScriptedAdapter() *ScriptedAdapter {
	return &ScriptedAdapter{}
}

// FailNext makes the next n Execute calls return an error.
func (a *ScriptedAdapter) FailNext(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = n
}

// Execute returns the scripted outcome, recording the envelope on success.
func (a *ScriptedAdapter) Execute(_ context.Context, envelope models.Envelope) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures > 0 {
		a.failures--
		return nil, errors.New("scripted provider failure")
	}
	a.sent = append(a.sent, envelope)
	return map[string]any{"adapter": "scripted", "status": "sent"}, nil
}

// Sent returns a copy of the envelopes delivered so far.
func (a *ScriptedAdapter) Sent() []models.Envelope {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Envelope, len(a.sent))
	copy(out, a.sent)
	return out
}

// SentCount returns how many envelopes were delivered.
func (a *ScriptedAdapter) SentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}
