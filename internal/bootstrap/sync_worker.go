package bootstrap

import (
	"context"
	"sync"
	"time"

	"mirror_sync/adapter/in/worker"
	"mirror_sync/adapter/out/messaging"
	"mirror_sync/config"
	"mirror_sync/core/domain"
	"mirror_sync/pkg/logger"
)

// Worker is the queue-consuming process: the job pool, the stream consumer
// and the periodic schedulers (retry, sweep, tombstone).
type Worker struct {
	pool     *worker.Pool
	consumer *messaging.Consumer
	deps     *Dependencies

	retryScheduler  *worker.RetryScheduler
	sweepScheduler  *worker.SweepScheduler
	tombstoneWorker *worker.TombstoneWorker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "mirror-sync-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	processor := worker.NewJobProcessor(deps.Executor, deps.Log)
	pool := worker.NewPool(processor, &worker.PoolConfig{
		Workers:    cfg.PoolWorkers,
		BatchSize:  cfg.PoolBatchSize,
		JobTimeout: cfg.JobTimeout,
	}, deps.ZLog)
	dispatcher := worker.NewDispatcher(pool, deps.Log)

	consumer := messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
		Group:    cfg.ConsumerGroup,
		Consumer: cfg.WorkerID,
		Streams: []string{
			domain.StreamSyncPush,
			domain.StreamSyncDelete,
		},
		Handler:              dispatcher,
		Logger:               deps.ZLog,
		ReadBatchSize:        cfg.ConsumerBatchSize,
		BlockTimeout:         time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
		PendingCheckInterval: cfg.ConsumerPendingCheck,
		MaxDeliveries:        cfg.ConsumerMaxDelivery,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		pool:            pool,
		consumer:        consumer,
		deps:            deps,
		retryScheduler:  worker.NewRetryScheduler(deps.Registry, deps.Producer, cfg.SyncRetryAttempts, cfg.RetryCheckInterval),
		sweepScheduler:  worker.NewSweepScheduler(deps.Sweeper, cfg.SweepInterval),
		tombstoneWorker: worker.NewTombstoneWorker(deps.TombstoneRepo, deps.Executor, cfg.TombstoneCheckInterval),
		ctx:             ctx,
		cancel:          cancel,
	}
	return w, cleanup, nil
}

// Start runs the worker until Stop is called.
func (w *Worker) Start() {
	w.pool.Start()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Run(w.ctx); err != nil && err != context.Canceled {
			logger.Error("stream consumer error: %v", err)
		}
	}()

	w.retryScheduler.Start()
	w.sweepScheduler.Start()
	w.tombstoneWorker.Start()

	logger.Info("worker started")
	<-w.ctx.Done()
}

// Stop shuts the worker down in dependency order: stop producing work first,
// then drain the pool.
func (w *Worker) Stop() {
	w.retryScheduler.Stop()
	w.sweepScheduler.Stop()
	w.tombstoneWorker.Stop()

	w.cancel()
	w.wg.Wait()
	w.pool.Stop()
}

// GetMetrics exposes pool counters.
func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}

// Dependencies returns the shared dependency graph.
func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
