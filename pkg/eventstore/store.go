// Package eventstore provides the append-only audit log. Every state change
// in the control plane lands here as an immutable event, which powers the
// audit API, the no-show projection, and plan execution.
package eventstore

import (
	"context"
	"time"

	"github.com/julian-najas/cacp/pkg/models"
)

// DefaultListLimit caps List results when the filter does not set one.
const DefaultListLimit = 100

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	AggregateID string
	EventType   string
	Limit       int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Store is the append-only event log contract.
//
// Append assigns the event id and timestamp, defaults the actor to "system",
// and honors the idempotency key: a second append with the same key is
// dropped and the first event's id is returned (first write wins).
// List returns events newest first. CountByType feeds read-model projections
// without paging the full log.
// DeleteBefore is the retention hook: it removes events of the given types
// created before cutoff and reports how many went. With no types it deletes
// nothing.
type Store interface {
	Append(ctx context.Context, event models.Event) (string, error)
	List(ctx context.Context, filter Filter) ([]models.Event, error)
	CountByType(ctx context.Context, eventTypes ...string) (map[string]int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time, eventTypes ...string) (int, error)
}

const defaultActor = "system"
