package worker

import (
	"context"
	"time"

	"mirror_sync/core/service/mirror"
	"mirror_sync/pkg/logger"
)

// =============================================================================
// SweepScheduler - periodic reconciliation
// =============================================================================
//
// The sweep is the safety net under the queue: anything that never got a job
// (lost message, crashed worker, rows touched outside the API) is eventually
// pushed by the periodic run.

type SweepScheduler struct {
	sweeper  *mirror.Sweeper
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSweepScheduler(sweeper *mirror.Sweeper, interval time.Duration) *SweepScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SweepScheduler{
		sweeper:  sweeper,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the periodic sweep.
func (s *SweepScheduler) Start() {
	logger.Info("[SweepScheduler] starting with interval %v", s.interval)
	go s.run()
}

// Stop stops the periodic sweep.
func (s *SweepScheduler) Stop() {
	logger.Info("[SweepScheduler] stopping...")
	s.cancel()
}

func (s *SweepScheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[SweepScheduler] stopped")
			return
		case <-ticker.C:
			result, err := s.sweeper.Run(s.ctx, mirror.SweepOptions{})
			if err != nil {
				logger.Error("[SweepScheduler] sweep failed: %v", err)
				continue
			}
			if result.Processed > 0 || result.Failed > 0 {
				logger.Info("[SweepScheduler] sweep done: processed=%d failed=%d truncated=%v",
					result.Processed, result.Failed, result.Truncated)
			}
		}
	}
}
