package mirror

import (
	"context"
	"testing"

	"mirror_sync/core/domain"
)

func TestRegistryLookup(t *testing.T) {
	fx := newFixture()

	entry, err := fx.registry.Get(domain.EntityTypePage)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry.Repo.EntityType() != domain.EntityTypePage {
		t.Errorf("repo type = %s", entry.Repo.EntityType())
	}
	if _, ok := entry.New().(*domain.Page); !ok {
		t.Error("factory should build a *domain.Page")
	}

	if _, err := fx.registry.Get("drivers"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestStatsServiceCollect(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	synced := fx.repo.add("a")
	if err := fx.executor.Push(ctx, fx.repo, synced); err != nil {
		t.Fatal(err)
	}
	fx.repo.add("b")
	dead := fx.repo.add("c")
	if err := fx.repo.MarkDead(ctx, dead.ID, "bad"); err != nil {
		t.Fatal(err)
	}

	stats, err := NewStatsService(fx.registry).Collect(ctx)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d", len(stats))
	}

	st := stats[0]
	if st.Total != 3 || st.Synced != 1 || st.Unsynced != 1 || st.Dead != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Pending() != 2 {
		t.Errorf("pending = %d, want 2", st.Pending())
	}
}

func TestMarkAllUnsynced(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	for _, slug := range []string{"a", "b"} {
		p := fx.repo.add(slug)
		if err := fx.executor.Push(ctx, fx.repo, p); err != nil {
			t.Fatal(err)
		}
	}

	n, err := NewStatsService(fx.registry).MarkAllUnsynced(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("touched = %d, want 2", n)
	}

	count, err := fx.repo.CountUnsynced(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("unsynced = %d, want 2", count)
	}
}
