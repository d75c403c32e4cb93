package queue

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/metrics"
	"github.com/julian-najas/cacp/pkg/models"
)

// Block reasons emitted by the compliance rails.
const (
	BlockReasonNoPatientID     = "no_patient_id"
	BlockReasonNoConsent       = "no_consent"
	BlockReasonQuietHours      = "quiet_hours"
	BlockReasonRateLimited     = "rate_limited"
	BlockReasonDuplicateAction = "duplicate_action"
)

// Failure reasons emitted on action_failed events.
const (
	FailReasonNoAdapter    = "no_adapter"
	FailReasonAdapterError = "adapter_error"
)

// Worker dequeues action envelopes and runs them through the compliance
// rails before handing them to an adapter.
type Worker struct {
	id       string
	queue    *Queue
	config   *config.QueueConfig
	adapters map[string]Adapter
	events   eventstore.Store
	consents consent.Store
	metrics  *metrics.Metrics
	location *time.Location

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	now func() time.Time

	// Health tracking
	mu                sync.RWMutex
	status            WorkerStatus
	currentActionType string
	actionsProcessed  int
	lastActivity      time.Time
}

// NewWorker creates a queue worker.
// events may be nil (audit disabled), consents may be nil (consent rail
// skipped), m may be nil (metrics disabled).
func NewWorker(id string, queue *Queue, cfg *config.QueueConfig, adapters map[string]Adapter, events eventstore.Store, consents consent.Store, m *metrics.Metrics) *Worker {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("Unknown timezone, quiet hours fall back to UTC",
			"timezone", cfg.Timezone, "error", err)
		location = time.UTC
	}

	return &Worker{
		id:           id,
		queue:        queue,
		config:       cfg,
		adapters:     adapters,
		events:       events,
		consents:     consents,
		metrics:      m,
		location:     location,
		stopCh:       make(chan struct{}),
		now:          time.Now,
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current
// action. It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		ActionsProcessed:  w.actionsProcessed,
		LastActivity:      w.lastActivity,
		CurrentActionType: w.currentActionType,
	}
}

// run is the main worker loop: promote due retries, block on the main queue,
// process.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id)
	log.Info("Worker started", "queue", ActionsKey)

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
		}

		if _, err := w.queue.PromoteDueRetries(ctx, w.now()); err != nil {
			log.Error("Failed to promote due retries", "error", err)
		}

		envelope, err := w.queue.Dequeue(ctx, w.config.DequeueTimeout)
		if errors.Is(err, ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("Dequeue failed", "error", err)
			w.sleep(time.Second)
			continue
		}

		w.process(ctx, envelope)
	}
}

// RunOnce pops and processes a single envelope without blocking. Returns
// ErrQueueEmpty when nothing is queued.
func (w *Worker) RunOnce(ctx context.Context) (models.Envelope, error) {
	envelope, err := w.queue.PopOnce(ctx)
	if err != nil {
		return nil, err
	}
	w.process(ctx, envelope)
	return envelope, nil
}

// ProcessRetries promotes due retry entries back onto the main queue.
func (w *Worker) ProcessRetries(ctx context.Context) (int, error) {
	return w.queue.PromoteDueRetries(ctx, w.now())
}

// process runs one envelope through the full pipeline: adapter lookup,
// compliance rails, execution, retry scheduling.
func (w *Worker) process(ctx context.Context, envelope models.Envelope) {
	actionType := envelope.ActionType()
	aggregateID := envelope.AppointmentID()
	log := slog.With("worker_id", w.id, "action_type", actionType, "appointment_id", aggregateID)

	w.setStatus(WorkerStatusWorking, actionType)
	defer w.setStatus(WorkerStatusIdle, "")

	adapter, ok := w.adapters[actionType]
	if !ok {
		log.Warn("No adapter for action type")
		w.emit(ctx, aggregateID, models.EventActionFailed, map[string]any{
			"reason":      FailReasonNoAdapter,
			"action_type": actionType,
		})
		return
	}

	// Rails guard messaging envelopes; channel-less control envelopes go
	// straight to their adapter.
	if envelope.Channel() != "" {
		if reason := w.checkRails(ctx, envelope); reason != "" {
			log.Info("Action blocked", "reason", reason)
			w.emit(ctx, aggregateID, models.EventActionBlocked, map[string]any{
				"reason":      reason,
				"action_type": actionType,
				"channel":     envelope.Channel(),
			})
			if w.metrics != nil {
				w.metrics.ActionsBlockedTotal.WithLabelValues(reason).Inc()
			}
			return
		}
	}

	result, err := adapter.Execute(ctx, envelope)
	if err != nil {
		log.Error("Adapter execution failed", "error", err)
		w.emit(ctx, aggregateID, models.EventActionFailed, map[string]any{
			"reason":      FailReasonAdapterError,
			"action_type": actionType,
			"error":       err.Error(),
		})
		w.scheduleRetry(ctx, envelope, log)
		return
	}

	payload := map[string]any{"action_type": actionType}
	if channel := envelope.Channel(); channel != "" {
		payload["channel"] = channel
	}
	maps.Copy(payload, result)
	w.emit(ctx, aggregateID, models.EventActionExecuted, payload)
	if w.metrics != nil {
		w.metrics.ActionsExecutedTotal.WithLabelValues(actionType).Inc()
	}

	w.mu.Lock()
	w.actionsProcessed++
	w.mu.Unlock()

	log.Info("Action executed")
}

// checkRails runs the compliance rails in order: consent, quiet hours, rate
// limit, dedup. Returns the block reason, or "" when the action may proceed.
// Rail infrastructure errors fail closed: an unverifiable action never sends.
func (w *Worker) checkRails(ctx context.Context, envelope models.Envelope) string {
	patientID := envelope.PatientID()
	channel := envelope.Channel()

	if w.consents != nil {
		if patientID == "" {
			return BlockReasonNoPatientID
		}
		granted, err := w.consents.HasConsent(ctx, patientID, channel)
		if err != nil {
			slog.Error("Consent lookup failed, blocking", "patient_id", patientID, "error", err)
			return BlockReasonNoConsent
		}
		if !granted {
			return BlockReasonNoConsent
		}
	}

	if w.inQuietHours() {
		return BlockReasonQuietHours
	}

	allowed, err := w.queue.AllowRate(ctx, patientID, channel, w.config.RateLimit, w.config.RateWindow, w.now())
	if err != nil {
		slog.Error("Rate limit check failed, blocking", "patient_id", patientID, "error", err)
		return BlockReasonRateLimited
	}
	if !allowed {
		return BlockReasonRateLimited
	}

	acquired, err := w.queue.AcquireDedup(ctx, envelope.AppointmentID(), channel, w.config.DedupTTL)
	if err != nil {
		slog.Error("Dedup check failed, blocking", "appointment_id", envelope.AppointmentID(), "error", err)
		return BlockReasonDuplicateAction
	}
	if !acquired {
		return BlockReasonDuplicateAction
	}

	return ""
}

// inQuietHours reports whether the current local hour falls inside the
// configured [start, end) window. The window wraps across midnight when
// start > end; start == end disables the rail.
func (w *Worker) inQuietHours() bool {
	start := w.config.QuietHoursStart
	end := w.config.QuietHoursEnd
	if start == end {
		return false
	}

	hour := w.now().In(w.location).Hour()
	if start > end {
		return hour >= start || hour < end
	}
	return hour >= start && hour < end
}

// scheduleRetry increments the retry count and either re-schedules the
// envelope with backoff or dead-letters it past max retries.
func (w *Worker) scheduleRetry(ctx context.Context, envelope models.Envelope, log *slog.Logger) {
	retryCount := envelope.RetryCount() + 1
	envelope.SetRetryCount(retryCount)
	aggregateID := envelope.AppointmentID()

	if retryCount > w.config.MaxRetries {
		if err := w.queue.PushDLQ(ctx, envelope); err != nil {
			log.Error("Failed to dead-letter action", "error", err)
			return
		}
		w.emit(ctx, aggregateID, models.EventActionDeadLettered, map[string]any{
			"action_type": envelope.ActionType(),
			"retry_count": retryCount,
		})
		if w.metrics != nil {
			w.metrics.ActionsDeadLettered.Inc()
		}
		log.Warn("Action dead-lettered", "retry_count", retryCount)
		return
	}

	backoff := w.config.RetryBackoff
	delay := backoff[min(retryCount-1, len(backoff)-1)]
	due := w.now().Add(delay)

	if err := w.queue.ScheduleRetry(ctx, envelope, due); err != nil {
		log.Error("Failed to schedule retry", "error", err)
		return
	}
	w.emit(ctx, aggregateID, models.EventActionRetryScheduled, map[string]any{
		"action_type":   envelope.ActionType(),
		"retry_count":   retryCount,
		"delay_seconds": int(delay.Seconds()),
	})
	if w.metrics != nil {
		w.metrics.ActionRetriesTotal.Inc()
	}
	log.Info("Retry scheduled", "retry_count", retryCount, "delay", delay)
}

// emit appends an audit event. Failures are logged, never fatal.
func (w *Worker) emit(ctx context.Context, aggregateID, eventType string, payload map[string]any) {
	if w.events == nil {
		return
	}
	if _, err := w.events.Append(ctx, models.Event{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
	}); err != nil {
		slog.Warn("Failed to append event", "event_type", eventType, "error", err)
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, actionType string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentActionType = actionType
	w.lastActivity = w.now()
}
