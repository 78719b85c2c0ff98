package mirror

import (
	"context"
	"testing"
	"time"

	"mirror_sync/core/domain"
)

func TestPendingRetriesSkipRowsAtAttemptCap(t *testing.T) {
	fx := newFixture()
	capped := fx.repo.add("capped")
	due := fx.repo.add("due")

	past := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		if err := fx.repo.MarkFailed(context.Background(), capped.ID, "replica down", past); err != nil {
			t.Fatal(err)
		}
	}
	if err := fx.repo.MarkFailed(context.Background(), due.ID, "replica down", past); err != nil {
		t.Fatal(err)
	}

	rows, err := fx.repo.GetPendingRetries(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("GetPendingRetries() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("pending retries = %d rows, want 1", len(rows))
	}
	if rows[0].RowID() != due.ID {
		t.Errorf("pending retry row = %d, want %d", rows[0].RowID(), due.ID)
	}
	if capped.SyncStatus != domain.SyncStatusFailed {
		t.Errorf("capped row status = %s, want failed (not dead)", capped.SyncStatus)
	}
}

func TestPendingRetriesSkipRowsNotYetDue(t *testing.T) {
	fx := newFixture()
	p := fx.repo.add("waiting")

	future := time.Now().UTC().Add(time.Minute)
	if err := fx.repo.MarkFailed(context.Background(), p.ID, "replica down", future); err != nil {
		t.Fatal(err)
	}

	rows, err := fx.repo.GetPendingRetries(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("GetPendingRetries() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("pending retries = %d rows before next_retry_at, want 0", len(rows))
	}
}

// A row that exhausted its automatic retries stays failed, outside the retry
// scheduler's reach, but the reconciliation sweep still drains it.
func TestSweepPicksUpRowAtAttemptCap(t *testing.T) {
	fx := newFixture()
	capped := fx.repo.add("capped")

	past := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		if err := fx.repo.MarkFailed(context.Background(), capped.ID, "replica down", past); err != nil {
			t.Fatal(err)
		}
	}

	if rows, err := fx.repo.GetPendingRetries(context.Background(), 3, 10); err != nil || len(rows) != 0 {
		t.Fatalf("pending retries = %d rows (err %v), want 0 at cap", len(rows), err)
	}

	s := newTestSweeper(fx, SweeperConfig{BatchSize: 10, MaxIterations: 5, Budget: time.Minute})
	result, err := s.Run(context.Background(), SweepOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1", result.Processed)
	}
	if !capped.IsSynced() {
		t.Errorf("capped row status = %s after sweep, want synced", capped.SyncStatus)
	}
	if capped.SyncAttempts != 0 {
		t.Errorf("attempts = %d after successful sweep, want 0", capped.SyncAttempts)
	}
}
