package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/models"
)

func seedEvents(t *testing.T, store *eventstore.MemoryStore, types ...string) {
	t.Helper()
	for i, eventType := range types {
		_, err := store.Append(t.Context(), models.Event{
			AggregateID: "APT-1",
			EventType:   eventType,
			Payload:     map[string]any{"seq": i},
		})
		require.NoError(t, err)
	}
}

func TestEventServiceList(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, "appointment_received", "risk_scored", "proposal_created")
	service := NewEventService(store)

	events, err := service.List(t.Context(), EventQuery{AggregateID: "APT-1"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "proposal_created", events[0].EventType, "newest first")
}

func TestEventServiceFiltersByType(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, "risk_scored", "risk_scored", "proposal_created")
	service := NewEventService(store)

	events, err := service.List(t.Context(), EventQuery{EventType: "risk_scored"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEventServiceClampsLimit(t *testing.T) {
	store := eventstore.NewMemoryStore()
	types := make([]string, 150)
	for i := range types {
		types[i] = "evt"
	}
	seedEvents(t, store, types...)
	service := NewEventService(store)

	events, err := service.List(t.Context(), EventQuery{Limit: 0})
	require.NoError(t, err)
	assert.Len(t, events, eventstore.DefaultListLimit)

	events, err = service.List(t.Context(), EventQuery{Limit: 5000})
	require.NoError(t, err)
	assert.Len(t, events, 150, "oversized limit clamps, does not fail")

	events, err = service.List(t.Context(), EventQuery{Limit: 7})
	require.NoError(t, err)
	assert.Len(t, events, 7)
}

func TestEventServiceEmptyResultIsNotNil(t *testing.T) {
	service := NewEventService(eventstore.NewMemoryStore())

	events, err := service.List(t.Context(), EventQuery{AggregateID: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestEventServiceCleanupExpiredTelemetry(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store,
		models.EventSMSSent,
		models.EventActionExecuted,
		models.EventConsentGranted,
		models.EventActionBlocked,
		models.EventProposalCreated,
	)
	service := NewEventService(store)

	// Cutoff in the future makes everything appended above eligible.
	deleted, err := service.CleanupExpiredTelemetry(t.Context(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted, "only telemetry types qualify")

	events, err := service.List(t.Context(), EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, event := range events {
		assert.NotContains(t, []string{models.EventSMSSent, models.EventActionExecuted}, event.EventType)
	}
}

func TestEventServiceCleanupKeepsRecentTelemetry(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store, models.EventSMSSent, models.EventSMSDelivered)
	service := NewEventService(store)

	deleted, err := service.CleanupExpiredTelemetry(t.Context(), time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, deleted)

	events, err := service.List(t.Context(), EventQuery{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEventServiceNoShowStats(t *testing.T) {
	store := eventstore.NewMemoryStore()
	seedEvents(t, store,
		models.EventAppointmentIngested,
		models.EventAppointmentIngested,
		models.EventAppointmentIngested,
		models.EventAppointmentIngested,
		models.EventNoShowRecorded,
		models.EventAppointmentConfirmed,
		models.EventAppointmentRescheduled,
		models.EventRiskScored, // uncounted
	)
	service := NewEventService(store)

	stats, err := service.NoShowStats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, eventstore.NoShowStats{
		TotalAppointments: 4,
		NoShows:           1,
		Confirmed:         1,
		Rescheduled:       1,
		NoShowRate:        0.25,
	}, stats)
}

func TestEventServiceNoShowStatsEmpty(t *testing.T) {
	service := NewEventService(eventstore.NewMemoryStore())

	stats, err := service.NoShowStats(t.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAppointments)
	assert.Zero(t, stats.NoShowRate)
}
