package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julian-najas/cacp/pkg/models"
)

// PostgresStore persists events in the events table created by the database
// migrations. Idempotency rides on the partial unique index over
// idempotency_key.
type PostgresStore struct {
	db *sql.DB

	now func() time.Time
}

// NewPostgresStore wraps a migrated database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: time.Now,
	}
}

func (s *PostgresStore) Append(ctx context.Context, event models.Event) (string, error) {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode event payload: %w", err)
	}

	actor := event.Actor
	if actor == "" {
		actor = defaultActor
	}

	eventID := uuid.NewString()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, aggregate_id, event_type, payload, actor, created_at, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		 ON CONFLICT (idempotency_key)
		 WHERE idempotency_key IS NOT NULL AND idempotency_key <> ''
		 DO NOTHING`,
		eventID, event.AggregateID, event.EventType, encoded, actor, s.now().UTC(), event.IdempotencyKey)
	if err != nil {
		return "", fmt.Errorf("append event %s: %w", event.EventType, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("append event %s: %w", event.EventType, err)
	}
	if inserted > 0 {
		return eventID, nil
	}

	// First write won; hand back the id it claimed.
	var existing string
	err = s.db.QueryRowContext(ctx,
		"SELECT event_id FROM events WHERE idempotency_key = $1", event.IdempotencyKey).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("resolve idempotent event %s: %w", event.EventType, err)
	}
	return existing, nil
}

func (s *PostgresStore) CountByType(ctx context.Context, eventTypes ...string) (map[string]int, error) {
	counts := make(map[string]int, len(eventTypes))
	for _, eventType := range eventTypes {
		counts[eventType] = 0
	}
	if len(eventTypes) == 0 {
		return counts, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, COUNT(*)
		 FROM events
		 WHERE event_type = ANY($1)
		 GROUP BY event_type`,
		eventTypes)
	if err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			eventType string
			count     int
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan event count row: %w", err)
		}
		counts[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count events by type: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time, eventTypes ...string) (int, error) {
	if len(eventTypes) == 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM events
		 WHERE event_type = ANY($1)
		   AND created_at < $2`,
		eventTypes, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired events: %w", err)
	}
	return int(deleted), nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, aggregate_id, event_type, payload, actor, created_at, COALESCE(idempotency_key, '')
		 FROM events
		 WHERE ($1 = '' OR aggregate_id = $1)
		   AND ($2 = '' OR event_type = $2)
		 ORDER BY created_at DESC, event_id DESC
		 LIMIT $3`,
		filter.AggregateID, filter.EventType, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			event   models.Event
			payload []byte
		)
		if err := rows.Scan(&event.EventID, &event.AggregateID, &event.EventType,
			&payload, &event.Actor, &event.CreatedAt, &event.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for event %s: %w", event.EventID, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
