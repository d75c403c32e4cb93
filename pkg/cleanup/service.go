// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/queue"
	"github.com/julian-najas/cacp/pkg/services"
)

// Service periodically enforces retention policies:
//   - Prunes execution and delivery telemetry events past the retention window
//   - Trims the dead-letter list to a bounded length
//
// All operations are idempotent and safe to run from multiple pods. The
// decision trail and consent history are never pruned.
type Service struct {
	config       *config.RetentionConfig
	eventService *services.EventService
	queue        *queue.Queue

	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service. The queue may be nil when the
// process has no Redis connection; DLQ trimming is skipped then.
func NewService(cfg *config.RetentionConfig, eventService *services.EventService, q *queue.Queue) *Service {
	return &Service{
		config:       cfg,
		eventService: eventService,
		queue:        q,
		now:          time.Now,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"event_retention_days", s.config.EventRetentionDays,
		"dlq_max_len", s.config.DLQMaxLen,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneExpiredEvents(ctx)
	s.trimDeadLetters(ctx)
}

func (s *Service) pruneExpiredEvents(ctx context.Context) {
	if s.config.EventRetentionDays <= 0 {
		return
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.config.EventRetentionDays)
	count, err := s.eventService.CleanupExpiredTelemetry(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: telemetry cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned expired telemetry events", "count", count)
	}
}

func (s *Service) trimDeadLetters(ctx context.Context) {
	if s.queue == nil || s.config.DLQMaxLen <= 0 {
		return
	}

	if err := s.queue.TrimDLQ(ctx, s.config.DLQMaxLen); err != nil {
		slog.Error("Retention: DLQ trim failed", "error", err)
	}
}
