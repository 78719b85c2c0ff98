package mirror

import (
	"context"
	"time"

	"mirror_sync/pkg/logger"
)

// =============================================================================
// Reconciliation sweep
// =============================================================================

// SweeperConfig bounds a sweep run. A sweep always terminates: full pages keep
// it going, but never past MaxIterations batches or the wall-clock budget.
type SweeperConfig struct {
	BatchSize     int
	MaxIterations int
	Budget        time.Duration
	ItemDelay     time.Duration
}

// SweepOptions narrows a run.
type SweepOptions struct {
	EntityType  string // empty sweeps every registered type
	IncludeDead bool   // operator override: also retry dead rows
}

// SweepResult reports what one run did.
type SweepResult struct {
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"-"`
	DurationS float64       `json:"duration_s"`
}

// Sweeper drains unsynced rows oldest first through the executor. Individual
// failures are logged and counted, never fatal to the run.
type Sweeper struct {
	cfg      SweeperConfig
	registry *Registry
	executor *Executor
	log      *logger.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) bool
}

func NewSweeper(cfg SweeperConfig, registry *Registry, executor *Executor, log *logger.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 5 * time.Minute
	}
	if cfg.ItemDelay < 0 {
		cfg.ItemDelay = 0
	}
	return &Sweeper{
		cfg:      cfg,
		registry: registry,
		executor: executor,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Run executes one bounded sweep and returns the aggregate result.
func (s *Sweeper) Run(ctx context.Context, opts SweepOptions) (*SweepResult, error) {
	start := s.now()
	deadline := start.Add(s.cfg.Budget)
	result := &SweepResult{}

	types := s.registry.Types()
	if opts.EntityType != "" {
		if _, err := s.registry.Get(opts.EntityType); err != nil {
			return nil, err
		}
		types = []string{opts.EntityType}
	}

	iterations := 0
	for _, et := range types {
		done, err := s.sweepType(ctx, et, opts, deadline, &iterations, result)
		if err != nil {
			return result, err
		}
		if done {
			result.Truncated = true
			break
		}
	}

	result.Duration = s.now().Sub(start)
	result.DurationS = result.Duration.Seconds()
	s.log.WithFields(map[string]any{
		"processed": result.Processed,
		"failed":    result.Failed,
		"truncated": result.Truncated,
	}).WithDuration(result.Duration).Info("sweep finished")
	return result, nil
}

// sweepType drains one entity type. Returns true when the run hit a global
// bound and the whole sweep should stop.
func (s *Sweeper) sweepType(ctx context.Context, entityType string, opts SweepOptions, deadline time.Time, iterations *int, result *SweepResult) (bool, error) {
	entry, err := s.registry.Get(entityType)
	if err != nil {
		return false, err
	}

	// Failed rows stay unsynced at the head of the ordering; offsetting by
	// the failure count keeps the next page moving forward.
	failedHere := 0
	for {
		if ctx.Err() != nil {
			return true, nil
		}
		if *iterations >= s.cfg.MaxIterations || !s.now().Before(deadline) {
			return true, nil
		}
		*iterations++

		batch, err := entry.Repo.LoadUnsynced(ctx, s.cfg.BatchSize, failedHere, opts.IncludeDead)
		if err != nil {
			return false, err
		}
		if len(batch) == 0 {
			return false, nil
		}

		for _, e := range batch {
			if err := s.executor.Push(ctx, entry.Repo, e); err != nil {
				result.Failed++
				// A permanent failure parks the row dead and drops it from
				// the pending set, so it must not shift the next page.
				if opts.IncludeDead || Classify(err) != ClassPermanent {
					failedHere++
				}
			} else {
				result.Processed++
			}
			if s.cfg.ItemDelay > 0 {
				if !s.sleep(ctx, s.cfg.ItemDelay) {
					return true, nil
				}
			}
		}

		if len(batch) < s.cfg.BatchSize {
			return false, nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
