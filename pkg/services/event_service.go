package services

import (
	"context"
	"fmt"
	"time"

	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/models"
)

// MaxListLimit caps a single audit query.
const MaxListLimit = 1000

// EventQuery narrows an audit listing. Zero values mean "no filter".
type EventQuery struct {
	AggregateID string
	EventType   string
	Limit       int
}

// EventService serves the audit log read API.
type EventService struct {
	store eventstore.Store
}

// NewEventService creates a new EventService.
func NewEventService(store eventstore.Store) *EventService {
	return &EventService{store: store}
}

// List returns events newest first. Limits are clamped to MaxListLimit and
// default to the store's page size.
func (s *EventService) List(ctx context.Context, query EventQuery) ([]models.Event, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = eventstore.DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	events, err := s.store.List(ctx, eventstore.Filter{
		AggregateID: query.AggregateID,
		EventType:   query.EventType,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

// Record appends a domain event outside the orchestrator lifecycle, such as
// the raw-arrival record written by ingest.
func (s *EventService) Record(ctx context.Context, aggregateID, eventType string, payload map[string]any) error {
	_, err := s.store.Append(ctx, models.Event{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
	})
	if err != nil {
		return fmt.Errorf("record %s event: %w", eventType, err)
	}
	return nil
}

// Execution and delivery telemetry is safe to prune once the retention
// window has passed. The decision trail (risk scores through PR merges),
// consent history, and blocked-action evidence are kept.
var prunableEventTypes = []string{
	models.EventActionExecuted,
	models.EventActionFailed,
	models.EventActionRetryScheduled,
	models.EventActionDeadLettered,
	models.EventSMSQueued,
	models.EventSMSSent,
	models.EventSMSDelivered,
	models.EventSMSUndelivered,
	models.EventSMSFailed,
}

// CleanupExpiredTelemetry deletes telemetry events created before cutoff.
// Returns how many events were removed.
func (s *EventService) CleanupExpiredTelemetry(ctx context.Context, cutoff time.Time) (int, error) {
	deleted, err := s.store.DeleteBefore(ctx, cutoff, prunableEventTypes...)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired telemetry: %w", err)
	}
	return deleted, nil
}

// NoShowStats folds the appointment lifecycle into the no-show read model.
func (s *EventService) NoShowStats(ctx context.Context) (eventstore.NoShowStats, error) {
	counts, err := s.store.CountByType(ctx, eventstore.NoShowEventTypes...)
	if err != nil {
		return eventstore.NoShowStats{}, fmt.Errorf("project no-show stats: %w", err)
	}
	return eventstore.NoShowStatsFromCounts(counts), nil
}
