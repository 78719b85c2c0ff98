// Package worker hosts the queue-consuming side of the service: the job
// pool, the stream dispatcher and the periodic schedulers.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"mirror_sync/core/domain"
)

// =============================================================================
// go-pkgz/pool based worker pool
// =============================================================================

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers        int
	BatchSize      int
	WorkerChanSize int
	JobTimeout     time.Duration
}

// DefaultPoolConfig returns default pool configuration.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Workers:        8,
		BatchSize:      10,
		WorkerChanSize: 100,
		JobTimeout:     60 * time.Second,
	}
}

// maxJobTimeout caps a single job regardless of configuration.
const maxJobTimeout = 120 * time.Second

// Pool runs sync jobs on a go-pkgz worker group. Job failures are already
// recorded on the row by the executor, so the pool only counts and logs
// them; redelivery is owned by the database-driven retry scheduler.
type Pool struct {
	processor *JobProcessor
	config    *PoolConfig

	group *pool.WorkerGroup[*domain.SyncJob]

	ctx    context.Context
	cancel context.CancelFunc

	metrics *PoolMetrics
	log     zerolog.Logger

	started bool
	mu      sync.Mutex
}

// PoolMetrics holds pool counters.
type PoolMetrics struct {
	JobsProcessed  int64
	JobsFailed     int64
	AvgProcessTime int64 // milliseconds
	QueueSize      int32
}

// jobWorker implements pool.Worker for sync jobs.
type jobWorker struct {
	pool *Pool
}

func (w *jobWorker) Do(ctx context.Context, job *domain.SyncJob) error {
	return w.pool.processJob(ctx, job)
}

// NewPool creates a new worker pool.
func NewPool(processor *JobProcessor, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.JobTimeout <= 0 || config.JobTimeout > maxJobTimeout {
		config.JobTimeout = maxJobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		processor: processor,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		metrics:   &PoolMetrics{},
		log:       log.With().Str("component", "sync_pool").Logger(),
	}
}

// Start starts the worker pool.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	worker := &jobWorker{pool: p}
	p.group = pool.New[*domain.SyncJob](p.config.Workers, worker).
		WithBatchSize(p.config.BatchSize).
		WithWorkerChanSize(p.config.WorkerChanSize).
		WithContinueOnError()

	if err := p.group.Go(p.ctx); err != nil {
		p.log.Error().Err(err).Msg("failed to start pool")
		return
	}
	p.started = true

	go p.metricsReporter()

	p.log.Info().
		Int("workers", p.config.Workers).
		Int("batch_size", p.config.BatchSize).
		Dur("job_timeout", p.config.JobTimeout).
		Msg("worker pool started")
}

// Stop gracefully stops the worker pool.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool...")

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()

	if p.group != nil {
		if err := p.group.Close(closeCtx); err != nil {
			p.log.Warn().Err(err).Msg("error closing pool")
		}
	}
	p.cancel()

	p.log.Info().
		Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
		Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
		Msg("worker pool stopped")
}

// Submit submits a job to the pool.
func (p *Pool) Submit(job *domain.SyncJob) bool {
	p.mu.Lock()
	if !p.started || p.group == nil {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	p.group.Submit(job)
	atomic.AddInt32(&p.metrics.QueueSize, 1)
	return true
}

// processJob runs one job under the job timeout. Timeouts surface as a
// transient push failure recorded on the row.
func (p *Pool) processJob(ctx context.Context, job *domain.SyncJob) error {
	start := time.Now()
	defer atomic.AddInt32(&p.metrics.QueueSize, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	err := p.processor.Process(jobCtx, job)

	elapsed := time.Since(start).Milliseconds()
	p.updateAvgProcessTime(elapsed)

	if err != nil {
		atomic.AddInt64(&p.metrics.JobsFailed, 1)
		p.log.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("job_type", job.Type).
			Str("entity_type", job.EntityType).
			Msg("job processing failed")
		return err
	}

	atomic.AddInt64(&p.metrics.JobsProcessed, 1)
	return nil
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.metrics.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, elapsed)
	} else {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, (current*9+elapsed)/10)
	}
}

func (p *Pool) metricsReporter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.log.Info().
				Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
				Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
				Int64("avg_process_ms", atomic.LoadInt64(&p.metrics.AvgProcessTime)).
				Int32("queue_size", atomic.LoadInt32(&p.metrics.QueueSize)).
				Msg("worker pool metrics")
		}
	}
}

// GetMetrics returns current pool counters.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.metrics.JobsFailed),
		AvgProcessTime: atomic.LoadInt64(&p.metrics.AvgProcessTime),
		QueueSize:      atomic.LoadInt32(&p.metrics.QueueSize),
	}
}
