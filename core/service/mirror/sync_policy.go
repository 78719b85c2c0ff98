package mirror

import (
	"context"
	"time"

	"mirror_sync/core/domain"
	"mirror_sync/core/port/out"
	"mirror_sync/pkg/logger"
)

// =============================================================================
// Scheduler - immediate-vs-queued policy at mutation time
// =============================================================================

// Sync outcomes surfaced in admin responses.
const (
	OutcomeCompleted = "completed"
	OutcomeQueued    = "queued"
)

const backlogCacheKey = "sync:backlog"

// backlogCache is the slice of pkg/cache the scheduler needs.
type backlogCache interface {
	GetInt64(ctx context.Context, key string) (int64, bool, error)
	SetInt64(ctx context.Context, key string, value int64, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SchedulerConfig controls the immediate-sync decision.
type SchedulerConfig struct {
	AutoSyncEnabled    bool
	ImmediateThreshold int
	ImmediateTimeout   time.Duration
	CacheTTL           time.Duration
}

// Scheduler decides, at mutation time, whether a row is pushed inline or a
// deferred job is enqueued. The admin mutation itself never fails because the
// replica is down: an immediate push failure falls back to the queue.
type Scheduler struct {
	cfg      SchedulerConfig
	registry *Registry
	executor *Executor
	producer out.MessageProducer
	cache    backlogCache
	log      *logger.Logger
}

func NewScheduler(cfg SchedulerConfig, registry *Registry, executor *Executor, producer out.MessageProducer, cache backlogCache, log *logger.Logger) *Scheduler {
	if cfg.ImmediateTimeout <= 0 {
		cfg.ImmediateTimeout = 5 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		executor: executor,
		producer: producer,
		cache:    cache,
		log:      log,
	}
}

// ScheduleSync runs after every create/update. Returns the outcome for the
// admin response: completed (pushed inline) or queued.
func (s *Scheduler) ScheduleSync(ctx context.Context, entityType string, id int64, reason string) string {
	if s.shouldSyncNow(ctx) {
		pushCtx, cancel := context.WithTimeout(ctx, s.cfg.ImmediateTimeout)
		err := s.executor.PushByID(pushCtx, entityType, id, PushOptions{})
		cancel()
		if err == nil {
			return OutcomeCompleted
		}
		s.log.WithEntity(entityType, "").WithError(err).Warn("immediate sync failed, falling back to queue")
	}

	s.enqueuePush(ctx, entityType, id, reason)
	return OutcomeQueued
}

// ScheduleDelete enqueues the durable delete job for a tombstone. Deletes are
// never attempted inline: the tombstone worker owns the replica delete.
func (s *Scheduler) ScheduleDelete(ctx context.Context, entityType string, tombstoneID int64) {
	job := domain.NewDeleteJob(entityType, tombstoneID)
	if err := s.producer.Publish(ctx, job); err != nil {
		// The tombstone row is durable; the tombstone sweep picks it up even
		// if the job is lost.
		s.log.WithEntity(entityType, "").WithError(err).Error("failed to enqueue delete job")
	}
}

func (s *Scheduler) enqueuePush(ctx context.Context, entityType string, id int64, reason string) {
	job := domain.NewPushJob(entityType, id, reason)
	if err := s.producer.Publish(ctx, job); err != nil {
		// The row is already marked unsynced; the reconciliation sweep will
		// catch it if the job is lost.
		s.log.WithEntity(entityType, "").WithError(err).Error("failed to enqueue push job")
	}
}

// shouldSyncNow reports whether the inline path is allowed: auto sync on and
// the pending backlog below the threshold. The backlog count is cached, so a
// burst of mutations does not turn into a burst of COUNT queries.
func (s *Scheduler) shouldSyncNow(ctx context.Context) bool {
	if !s.cfg.AutoSyncEnabled {
		return false
	}

	backlog, err := s.pendingBacklog(ctx)
	if err != nil {
		s.log.WithError(err).Warn("backlog check failed, deferring to queue")
		return false
	}
	return backlog < int64(s.cfg.ImmediateThreshold)
}

func (s *Scheduler) pendingBacklog(ctx context.Context) (int64, error) {
	if n, hit, err := s.cache.GetInt64(ctx, backlogCacheKey); err == nil && hit {
		return n, nil
	}

	var total int64
	for _, repo := range s.registry.Repos() {
		n, err := repo.CountUnsynced(ctx)
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := s.cache.SetInt64(ctx, backlogCacheKey, total, s.cfg.CacheTTL); err != nil {
		s.log.WithError(err).Debug("failed to cache backlog count")
	}
	return total, nil
}

// InvalidateBacklog drops the cached count, forcing a fresh read on the next
// decision. Called after bulk operations like mark-all-unsynced.
func (s *Scheduler) InvalidateBacklog(ctx context.Context) {
	if err := s.cache.Delete(ctx, backlogCacheKey); err != nil {
		s.log.WithError(err).Debug("failed to invalidate backlog cache")
	}
}
