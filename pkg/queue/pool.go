package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/julian-najas/cacp/pkg/config"
	"github.com/julian-najas/cacp/pkg/consent"
	"github.com/julian-najas/cacp/pkg/eventstore"
	"github.com/julian-najas/cacp/pkg/metrics"
)

// healthInterval is how often the pool samples queue depths for health
// reporting and gauge updates.
const healthInterval = 15 * time.Second

// WorkerPool manages a set of queue workers sharing one Redis queue.
type WorkerPool struct {
	podID    string
	queue    *Queue
	config   *config.QueueConfig
	adapters map[string]Adapter
	events   eventstore.Store
	consents consent.Store
	metrics  *metrics.Metrics

	mu      sync.Mutex
	workers []*Worker
	started bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorkerPool creates a pool of cfg.WorkerCount workers. The podID
// namespaces worker IDs so multiple replicas stay distinguishable in logs.
func NewWorkerPool(podID string, queue *Queue, cfg *config.QueueConfig, adapters map[string]Adapter, events eventstore.Store, consents consent.Store, m *metrics.Metrics) *WorkerPool {
	return &WorkerPool{
		podID:    podID,
		queue:    queue,
		config:   cfg,
		adapters: adapters,
		events:   events,
		consents: consents,
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the workers and the health sampling loop. Calling Start on
// a running pool is a no-op.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.config.WorkerCount; i++ {
		id := fmt.Sprintf("%s-worker-%d", p.podID, i+1)
		worker := NewWorker(id, p.queue, p.config, p.adapters, p.events, p.consents, p.metrics)
		worker.Start(ctx)
		p.workers = append(p.workers, worker)
	}

	p.wg.Add(1)
	go p.healthLoop(ctx)

	slog.Info("Worker pool started", "pod_id", p.podID, "workers", p.config.WorkerCount)
}

// Stop shuts down all workers and waits for in-flight actions to finish.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	for _, worker := range workers {
		worker.Stop()
	}
	p.wg.Wait()

	slog.Info("Worker pool stopped", "pod_id", p.podID)
}

// Health samples the queue and each worker and returns an aggregate view.
func (p *WorkerPool) Health(ctx context.Context) PoolHealth {
	health := PoolHealth{
		PodID:     p.podID,
		IsHealthy: true,
	}

	if err := p.queue.Client().Ping(ctx).Err(); err != nil {
		health.IsHealthy = false
		health.RedisError = err.Error()
	} else {
		health.RedisReachable = true
	}

	if depth, err := p.queue.Depth(ctx); err == nil {
		health.QueueDepth = depth
	}
	if depth, err := p.queue.DLQDepth(ctx); err == nil {
		health.DLQDepth = depth
		if p.metrics != nil {
			p.metrics.DLQDepth.Set(float64(depth))
		}
	}

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	health.TotalWorkers = len(workers)
	for _, worker := range workers {
		stats := worker.Health()
		health.WorkerStats = append(health.WorkerStats, stats)
		if stats.Status == string(WorkerStatusWorking) {
			health.ActiveWorkers++
		}
	}

	return health
}

// healthLoop periodically refreshes queue depth gauges until the pool stops.
func (p *WorkerPool) healthLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Health(ctx)
		}
	}
}
