package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"mirror_sync/core/domain"
)

func newScheduler(fx *fixture, producer *fakeProducer, cache *fakeCache, cfg SchedulerConfig) *Scheduler {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return NewScheduler(cfg, fx.registry, fx.executor, producer, cache, testLogger())
}

func TestScheduleSyncImmediateBelowThreshold(t *testing.T) {
	fx := newFixture()
	producer := &fakeProducer{}
	cache := newFakeCache()
	cache.values[backlogCacheKey] = 3

	s := newScheduler(fx, producer, cache, SchedulerConfig{
		AutoSyncEnabled:    true,
		ImmediateThreshold: 5,
	})

	p := fx.repo.add("terms")
	outcome := s.ScheduleSync(context.Background(), p.EntityType(), p.ID, "update")

	if outcome != OutcomeCompleted {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeCompleted)
	}
	if !p.IsSynced() {
		t.Error("row should be synced inline")
	}
	if producer.count() != 0 {
		t.Error("no job should be enqueued on the inline path")
	}
}

func TestScheduleSyncQueuedAtThreshold(t *testing.T) {
	fx := newFixture()
	producer := &fakeProducer{}
	cache := newFakeCache()
	cache.values[backlogCacheKey] = 10

	s := newScheduler(fx, producer, cache, SchedulerConfig{
		AutoSyncEnabled:    true,
		ImmediateThreshold: 5,
	})

	p := fx.repo.add("terms")
	outcome := s.ScheduleSync(context.Background(), p.EntityType(), p.ID, "update")

	if outcome != OutcomeQueued {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeQueued)
	}
	if fx.replica.puts != 0 {
		t.Error("backlog at threshold must not push inline")
	}
	if producer.count() != 1 {
		t.Fatalf("published = %d jobs, want 1", producer.count())
	}
	job := producer.published[0]
	if job.Type != domain.JobTypePush || job.EntityID != p.ID {
		t.Errorf("job = %+v", job)
	}
}

func TestScheduleSyncImmediateFailureFallsBackToQueue(t *testing.T) {
	fx := newFixture()
	producer := &fakeProducer{}
	cache := newFakeCache()
	cache.values[backlogCacheKey] = 0
	fx.replica.failAll = errors.New("replica down")

	s := newScheduler(fx, producer, cache, SchedulerConfig{
		AutoSyncEnabled:    true,
		ImmediateThreshold: 5,
	})

	p := fx.repo.add("terms")
	outcome := s.ScheduleSync(context.Background(), p.EntityType(), p.ID, "update")

	if outcome != OutcomeQueued {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeQueued)
	}
	if producer.count() != 1 {
		t.Error("failed immediate push must enqueue a deferred job")
	}
	if p.SyncStatus != domain.SyncStatusFailed {
		t.Errorf("status = %s, failure must still be recorded", p.SyncStatus)
	}
}

func TestScheduleSyncDisabledAlwaysQueues(t *testing.T) {
	fx := newFixture()
	producer := &fakeProducer{}
	cache := newFakeCache()
	cache.values[backlogCacheKey] = 0

	s := newScheduler(fx, producer, cache, SchedulerConfig{
		AutoSyncEnabled:    false,
		ImmediateThreshold: 5,
	})

	p := fx.repo.add("terms")
	if outcome := s.ScheduleSync(context.Background(), p.EntityType(), p.ID, "create"); outcome != OutcomeQueued {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeQueued)
	}
	if fx.replica.puts != 0 {
		t.Error("auto sync disabled must not push inline")
	}
}

func TestPendingBacklogCachesCount(t *testing.T) {
	fx := newFixture()
	producer := &fakeProducer{}
	cache := newFakeCache()

	fx.repo.add("a")
	fx.repo.add("b")

	s := newScheduler(fx, producer, cache, SchedulerConfig{
		AutoSyncEnabled:    true,
		ImmediateThreshold: 5,
	})

	n, err := s.pendingBacklog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("backlog = %d, want 2", n)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}

	// Second read comes from the cache even after the table changes.
	fx.repo.add("c")
	n, err = s.pendingBacklog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("cached backlog = %d, want 2", n)
	}
}

func TestScheduleDeletePublishesDeleteJob(t *testing.T) {
	fx := newFixture()
	producer := &fakeProducer{}
	cache := newFakeCache()
	s := newScheduler(fx, producer, cache, SchedulerConfig{AutoSyncEnabled: true, ImmediateThreshold: 5})

	s.ScheduleDelete(context.Background(), domain.EntityTypePage, 42)

	if producer.count() != 1 {
		t.Fatalf("published = %d jobs, want 1", producer.count())
	}
	job := producer.published[0]
	if job.Type != domain.JobTypeDelete || job.TombstoneID != 42 {
		t.Errorf("job = %+v", job)
	}
	if job.Stream() != domain.StreamSyncDelete {
		t.Errorf("stream = %q", job.Stream())
	}
}
