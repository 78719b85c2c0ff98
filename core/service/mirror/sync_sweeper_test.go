package mirror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mirror_sync/core/domain"
)

func newTestSweeper(fx *fixture, cfg SweeperConfig) *Sweeper {
	s := NewSweeper(cfg, fx.registry, fx.executor, testLogger())
	s.sleep = func(ctx context.Context, d time.Duration) bool { return ctx.Err() == nil }
	return s
}

func TestSweepProcessesBatchCountingFailures(t *testing.T) {
	fx := newFixture()
	for i := 0; i < 10; i++ {
		p := fx.repo.add(fmt.Sprintf("page-%d", i))
		if i == 2 || i == 7 {
			fx.replica.failKeys[docKey(p.Collection(), p.DocumentKey())] = errors.New("write refused")
		}
	}

	s := newTestSweeper(fx, SweeperConfig{BatchSize: 10, MaxIterations: 5, Budget: time.Minute})
	result, err := s.Run(context.Background(), SweepOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Processed != 8 {
		t.Errorf("processed = %d, want 8", result.Processed)
	}
	if result.Failed != 2 {
		t.Errorf("failed = %d, want 2", result.Failed)
	}
	if result.Truncated {
		t.Error("run should not be truncated")
	}
}

func TestSweepContinuesThroughFullPages(t *testing.T) {
	fx := newFixture()
	for i := 0; i < 25; i++ {
		fx.repo.add(fmt.Sprintf("page-%d", i))
	}

	s := newTestSweeper(fx, SweeperConfig{BatchSize: 10, MaxIterations: 10, Budget: time.Minute})
	result, err := s.Run(context.Background(), SweepOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Processed != 25 {
		t.Errorf("processed = %d, want 25", result.Processed)
	}
}

func TestSweepStopsAtIterationCap(t *testing.T) {
	fx := newFixture()
	// Every push fails, so the same rows come back page after page.
	fx.replica.failAll = errors.New("replica down")
	for i := 0; i < 30; i++ {
		fx.repo.add(fmt.Sprintf("page-%d", i))
	}

	s := newTestSweeper(fx, SweeperConfig{BatchSize: 10, MaxIterations: 3, Budget: time.Minute})
	result, err := s.Run(context.Background(), SweepOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Truncated {
		t.Error("run hitting the iteration cap must report truncated")
	}
	if result.Failed != 30 {
		t.Errorf("failed = %d, want 30 (3 batches of 10)", result.Failed)
	}
}

func TestSweepSkipsDeadRowsByDefault(t *testing.T) {
	fx := newFixture()
	live := fx.repo.add("live")
	poisoned := fx.repo.add("poisoned")
	if err := fx.repo.MarkDead(context.Background(), poisoned.ID, "bad"); err != nil {
		t.Fatal(err)
	}

	s := newTestSweeper(fx, SweeperConfig{BatchSize: 10, MaxIterations: 5, Budget: time.Minute})
	result, err := s.Run(context.Background(), SweepOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1", result.Processed)
	}
	if !live.IsSynced() {
		t.Error("live row should be synced")
	}
	if poisoned.SyncStatus != domain.SyncStatusDead {
		t.Error("dead row must be untouched without include_dead")
	}

	// include_dead revives the parked row.
	result, err = s.Run(context.Background(), SweepOptions{IncludeDead: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 1 {
		t.Errorf("include_dead processed = %d, want 1", result.Processed)
	}
	if !poisoned.IsSynced() {
		t.Errorf("dead row status = %s after forced sweep, want synced", poisoned.SyncStatus)
	}
}

// A permanently failing row drops out of the pending set when it is parked
// dead, so it must not push the next page's offset past a live row.
func TestSweepPermanentFailureDoesNotShiftPage(t *testing.T) {
	fx := newFixture()
	poison := fx.repo.add("poison")
	second := fx.repo.add("second")
	third := fx.repo.add("third")
	fx.replica.failKeys[docKey(poison.Collection(), poison.DocumentKey())] =
		Permanent(errors.New("unsupported document"))

	s := newTestSweeper(fx, SweeperConfig{BatchSize: 1, MaxIterations: 10, Budget: time.Minute})
	result, err := s.Run(context.Background(), SweepOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Processed != 2 {
		t.Errorf("processed = %d, want 2", result.Processed)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if poison.SyncStatus != domain.SyncStatusDead {
		t.Errorf("poison row status = %s, want dead", poison.SyncStatus)
	}
	if !second.IsSynced() || !third.IsSynced() {
		t.Errorf("live rows synced = %v/%v, want both synced in one run",
			second.IsSynced(), third.IsSynced())
	}
}

func TestSweepUnknownEntityType(t *testing.T) {
	fx := newFixture()
	s := newTestSweeper(fx, SweeperConfig{BatchSize: 10, MaxIterations: 5, Budget: time.Minute})
	if _, err := s.Run(context.Background(), SweepOptions{EntityType: "rides"}); err == nil {
		t.Error("expected error for unregistered entity type")
	}
}
