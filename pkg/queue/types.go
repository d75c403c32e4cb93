// Package queue provides the Redis-backed work queue, the compliance-rail
// worker, and the worker pool that executes merged plans.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/julian-najas/cacp/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueEmpty indicates no envelope was available before the timeout.
	ErrQueueEmpty = errors.New("queue empty")
)

// Adapter executes one dequeued action envelope.
//
// The returned map is merged into the action_executed event payload. A
// returned error marks the action failed and eligible for retry; adapters
// that want a permanent failure (no retry) return a structured failure map
// with a nil error instead.
type Adapter interface {
	Execute(ctx context.Context, envelope models.Envelope) (map[string]any, error)
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	ActionsProcessed  int       `json:"actions_processed"`
	LastActivity      time.Time `json:"last_activity"`
	CurrentActionType string    `json:"current_action_type,omitempty"`
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy      bool           `json:"is_healthy"`
	RedisReachable bool           `json:"redis_reachable"`
	RedisError     string         `json:"redis_error,omitempty"`
	PodID          string         `json:"pod_id"`
	ActiveWorkers  int            `json:"active_workers"`
	TotalWorkers   int            `json:"total_workers"`
	QueueDepth     int64          `json:"queue_depth"`
	DLQDepth       int64          `json:"dlq_depth"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
}
