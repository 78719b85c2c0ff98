package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"mirror_sync/core/domain"
)

func TestPushSuccessMarksSynced(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("terms")

	if err := fx.executor.Push(context.Background(), fx.repo, p); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if !p.IsSynced() {
		t.Errorf("status = %s, want synced", p.SyncStatus)
	}
	if p.SyncError != nil {
		t.Errorf("sync_error = %q, want cleared", *p.SyncError)
	}
	if p.SyncedAt == nil {
		t.Error("synced_at not set")
	}
	if doc := fx.replica.get(p.Collection(), p.DocumentKey()); doc == nil {
		t.Error("document not written to replica")
	} else if doc["slug"] != "terms" {
		t.Errorf("replica slug = %v", doc["slug"])
	}
}

func TestPushFailureWalksBackoffLadder(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("privacy")
	fx.replica.failAll = errors.New("connection refused")

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	fx.executor.now = func() time.Time { return base }

	wantDelays := []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second, 120 * time.Second}
	for i, want := range wantDelays {
		if err := fx.executor.Push(context.Background(), fx.repo, p); err == nil {
			t.Fatalf("attempt %d: expected error", i+1)
		}
		if p.SyncStatus != domain.SyncStatusFailed {
			t.Fatalf("attempt %d: status = %s, want failed", i+1, p.SyncStatus)
		}
		if p.SyncAttempts != i+1 {
			t.Errorf("attempt %d: sync_attempts = %d", i+1, p.SyncAttempts)
		}
		if p.NextRetryAt == nil {
			t.Fatalf("attempt %d: next_retry_at not set", i+1)
		}
		if got := p.NextRetryAt.Sub(base); got != want {
			t.Errorf("attempt %d: backoff = %v, want %v", i+1, got, want)
		}
	}
}

func TestPushPermanentFailureParksDead(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("help")
	fx.replica.failAll = Permanent(errors.New("document rejected"))

	if err := fx.executor.Push(context.Background(), fx.repo, p); err == nil {
		t.Fatal("expected error")
	}

	if p.SyncStatus != domain.SyncStatusDead {
		t.Errorf("status = %s, want dead", p.SyncStatus)
	}
	if p.NextRetryAt != nil {
		t.Error("dead row should not carry next_retry_at")
	}
}

func TestPushStaleGuardLeavesUnsynced(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("about")

	// Simulate a concurrent admin update landing between the replica write
	// and the mark-synced statement.
	fx.replica.onPut = func(collection, key string) {
		p.UpdatedAt = p.UpdatedAt.Add(time.Second)
		p.Synced = false
		p.SyncStatus = domain.SyncStatusUnsynced
	}

	if err := fx.executor.Push(context.Background(), fx.repo, p); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if p.IsSynced() {
		t.Error("stale push must not mark the row synced")
	}
	if p.SyncStatus != domain.SyncStatusUnsynced {
		t.Errorf("status = %s, want unsynced", p.SyncStatus)
	}
}

func TestSuccessAfterFailuresResetsAttempts(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("faq")
	fx.replica.failAll = errors.New("down")

	for i := 0; i < 2; i++ {
		_ = fx.executor.Push(context.Background(), fx.repo, p)
	}
	if p.SyncAttempts != 2 {
		t.Fatalf("sync_attempts = %d, want 2", p.SyncAttempts)
	}

	fx.replica.failAll = nil
	if err := fx.executor.Push(context.Background(), fx.repo, p); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if p.SyncAttempts != 0 {
		t.Errorf("sync_attempts = %d after success, want 0", p.SyncAttempts)
	}
	if p.SyncError != nil {
		t.Errorf("sync_error = %q, want cleared", *p.SyncError)
	}
}

func TestPushByIDSkipsDeadUnlessIncluded(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("contact")
	if err := fx.repo.MarkDead(context.Background(), p.ID, "poisoned"); err != nil {
		t.Fatal(err)
	}

	if err := fx.executor.PushByID(context.Background(), p.EntityType(), p.ID, PushOptions{}); err != nil {
		t.Fatalf("PushByID() error = %v", err)
	}
	if fx.replica.puts != 0 {
		t.Error("dead row must not reach the replica without include_dead")
	}

	if err := fx.executor.PushByID(context.Background(), p.EntityType(), p.ID, PushOptions{IncludeDead: true}); err != nil {
		t.Fatalf("PushByID(include_dead) error = %v", err)
	}
	if fx.replica.puts != 1 {
		t.Error("include_dead should push the row")
	}
	if !p.IsSynced() {
		t.Errorf("status = %s after forced push, want synced", p.SyncStatus)
	}
}

func TestPushByIDMissingRowIsNoop(t *testing.T) {
	fx := newFixture()
	if err := fx.executor.PushByID(context.Background(), domain.EntityTypePage, 999, PushOptions{}); err != nil {
		t.Fatalf("PushByID() error = %v", err)
	}
	if fx.replica.puts != 0 {
		t.Error("no replica write expected for a deleted row")
	}
}

func TestDeleteTombstoneRemovesDocumentAndTombstone(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("old-page")
	if err := fx.executor.Push(context.Background(), fx.repo, p); err != nil {
		t.Fatal(err)
	}

	ts, err := fx.repo.DeleteWithTombstone(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := fx.executor.DeleteByTombstoneID(context.Background(), ts.ID); err != nil {
		t.Fatalf("DeleteByTombstoneID() error = %v", err)
	}

	if fx.replica.get(ts.Collection, ts.DocumentKey) != nil {
		t.Error("replica document still present after delete")
	}
	if fx.tombstones.count() != 0 {
		t.Error("tombstone should be removed after a successful delete")
	}
}

func TestDeleteTombstoneFailureReschedules(t *testing.T) {
	fx := newFixture()
	ts := fx.tombstones.add(&domain.Tombstone{
		Collection:  domain.EntityTypePage,
		DocumentKey: "gone",
		CreatedAt:   time.Now().UTC(),
	})
	fx.replica.failAll = errors.New("replica down")

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	fx.executor.now = func() time.Time { return base }

	if err := fx.executor.DeleteTombstone(context.Background(), ts); err == nil {
		t.Fatal("expected error")
	}

	if fx.tombstones.count() != 1 {
		t.Fatal("tombstone must survive a failed delete")
	}
	if ts.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", ts.Attempts)
	}
	if ts.NextRetryAt == nil || ts.NextRetryAt.Sub(base) != 30*time.Second {
		t.Errorf("next_retry_at = %v, want base+30s", ts.NextRetryAt)
	}
}
