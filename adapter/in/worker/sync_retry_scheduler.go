package worker

import (
	"context"
	"time"

	"mirror_sync/core/domain"
	"mirror_sync/core/port/out"
	"mirror_sync/core/service/mirror"
	"mirror_sync/pkg/logger"
)

// =============================================================================
// RetryScheduler - database-driven retry
// =============================================================================
//
// Failed pushes carry their own schedule (next_retry_at) and attempt count.
// This scheduler polls for due rows and republishes them as durable jobs, so
// a retry survives process restarts. Rows at the attempt cap are left alone;
// only an operator force-sync touches them again.

type RetryScheduler struct {
	registry      *mirror.Registry
	producer      out.MessageProducer
	maxAttempts   int
	batchLimit    int
	checkInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewRetryScheduler(registry *mirror.Registry, producer out.MessageProducer, maxAttempts int, checkInterval time.Duration) *RetryScheduler {
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RetryScheduler{
		registry:      registry,
		producer:      producer,
		maxAttempts:   maxAttempts,
		batchLimit:    100,
		checkInterval: checkInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start starts the retry scheduler.
func (s *RetryScheduler) Start() {
	logger.Info("[RetryScheduler] starting with interval %v", s.checkInterval)
	go s.run()
}

// Stop stops the retry scheduler.
func (s *RetryScheduler) Stop() {
	logger.Info("[RetryScheduler] stopping...")
	s.cancel()
}

func (s *RetryScheduler) run() {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.processPendingRetries()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[RetryScheduler] stopped")
			return
		case <-ticker.C:
			s.processPendingRetries()
		}
	}
}

func (s *RetryScheduler) processPendingRetries() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()

	for _, repo := range s.registry.Repos() {
		rows, err := repo.GetPendingRetries(ctx, s.maxAttempts, s.batchLimit)
		if err != nil {
			logger.Error("[RetryScheduler] failed to load pending retries for %s: %v", repo.EntityType(), err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		logger.Info("[RetryScheduler] republishing %d %s rows", len(rows), repo.EntityType())
		for _, e := range rows {
			job := domain.NewPushJob(e.EntityType(), e.RowID(), "retry")
			if err := s.producer.Publish(ctx, job); err != nil {
				logger.Error("[RetryScheduler] failed to publish retry for %s/%d: %v", e.EntityType(), e.RowID(), err)
			}
		}
	}
}
