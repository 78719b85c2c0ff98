package mirror

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"mirror_sync/core/domain"
	"mirror_sync/core/port/out"
	"mirror_sync/pkg/logger"
)

// =============================================================================
// Executor - one push or delete per call
// =============================================================================

const maxErrorLen = 500

// PushOptions tweaks executor behavior for operator-triggered syncs.
type PushOptions struct {
	// IncludeDead lets a force-sync revive rows parked in the dead state.
	IncludeDead bool
}

// Executor performs a single replica push or delete and records the outcome
// on the row. It never swallows a reported failure: the caller always sees
// the error that was recorded.
type Executor struct {
	registry   *Registry
	replica    out.ReplicaStore
	tombstones out.TombstoneRepository
	serializer *Serializer
	group      singleflight.Group
	log        *logger.Logger
	now        func() time.Time
}

func NewExecutor(registry *Registry, replica out.ReplicaStore, tombstones out.TombstoneRepository, log *logger.Logger) *Executor {
	return &Executor{
		registry:   registry,
		replica:    replica,
		tombstones: tombstones,
		serializer: NewSerializer(),
		log:        log,
		now:        time.Now,
	}
}

// PushByID re-reads the row and pushes its current state. Concurrent pushes
// for the same row collapse into one flight; redundant pushes are safe
// (whole-document upsert) but wasteful.
func (x *Executor) PushByID(ctx context.Context, entityType string, id int64, opts PushOptions) error {
	entry, err := x.registry.Get(entityType)
	if err != nil {
		return Permanent(err)
	}

	key := fmt.Sprintf("%s:%d", entityType, id)
	_, err, _ = x.group.Do(key, func() (any, error) {
		return nil, x.pushCurrent(ctx, entry.Repo, id, opts)
	})
	return err
}

func (x *Executor) pushCurrent(ctx context.Context, repo out.EntityRepository, id int64, opts PushOptions) error {
	e, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		// Row deleted since the job was enqueued. The tombstone path owns
		// the replica delete.
		x.log.WithField("id", id).Debug("push skipped, row gone")
		return nil
	}
	if e.Meta().IsDead() && !opts.IncludeDead {
		return nil
	}
	if e.Meta().IsSynced() {
		return nil
	}
	return x.Push(ctx, repo, e)
}

// Push serializes and writes one entity, then marks the row synced only if
// updated_at still equals the value observed before the write. A stale token
// means a newer mutation owns the next push; the row stays unsynced.
func (x *Executor) Push(ctx context.Context, repo out.EntityRepository, e domain.Syncable) error {
	start := x.now()
	observed := e.RowUpdatedAt()
	lg := x.log.WithEntity(e.EntityType(), e.DocumentKey())

	doc, err := x.serializer.Serialize(e)
	if err != nil {
		return x.recordFailure(ctx, repo, e, err)
	}

	if err := x.replica.Put(ctx, e.Collection(), e.DocumentKey(), doc); err != nil {
		return x.recordFailure(ctx, repo, e, err)
	}

	ok, err := repo.MarkSynced(ctx, e.RowID(), observed)
	if err != nil {
		return err
	}
	if !ok {
		lg.Warn("row changed during push, leaving unsynced")
		return nil
	}

	lg.WithDuration(x.now().Sub(start)).Info("push completed")
	return nil
}

func (x *Executor) recordFailure(ctx context.Context, repo out.EntityRepository, e domain.Syncable, cause error) error {
	class := Classify(cause)
	msg := truncate(cause.Error(), maxErrorLen)
	lg := x.log.WithEntity(e.EntityType(), e.DocumentKey()).WithError(cause)

	// The push context may already be expired (job timeout); bookkeeping
	// writes must still land.
	ctx = detach(ctx)

	if class == ClassPermanent {
		if err := repo.MarkDead(ctx, e.RowID(), msg); err != nil {
			lg.WithField("mark_error", err.Error()).Error("failed to mark row dead")
		}
		lg.Error("push failed permanently, row parked as dead")
		return cause
	}

	delay := domain.GetRetryDelay(e.Meta().SyncAttempts)
	next := x.now().UTC().Add(delay)
	if err := repo.MarkFailed(ctx, e.RowID(), msg, next); err != nil {
		lg.WithField("mark_error", err.Error()).Error("failed to record push failure")
	}
	lg.WithFields(map[string]any{
		"class":      class.String(),
		"attempts":   e.Meta().SyncAttempts + 1,
		"retry_in_s": delay.Seconds(),
	}).Warn("push failed, retry scheduled")
	return cause
}

// DeleteByTombstoneID runs one replica delete attempt for a stored tombstone.
func (x *Executor) DeleteByTombstoneID(ctx context.Context, id int64) error {
	ts, err := x.tombstones.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ts == nil {
		return nil // already completed
	}
	return x.DeleteTombstone(ctx, ts)
}

// DeleteTombstone deletes the replica document and removes the tombstone on
// success. Failures reschedule with the same backoff ladder as pushes; the
// tombstone is retried until the replica delete succeeds.
func (x *Executor) DeleteTombstone(ctx context.Context, ts *domain.Tombstone) error {
	lg := x.log.WithEntity(ts.Collection, ts.DocumentKey)

	if err := x.replica.Delete(ctx, ts.Collection, ts.DocumentKey); err != nil {
		next := x.now().UTC().Add(domain.GetRetryDelay(ts.Attempts))
		if markErr := x.tombstones.MarkAttempt(detach(ctx), ts.ID, truncate(err.Error(), maxErrorLen), next); markErr != nil {
			lg.WithError(markErr).Error("failed to record tombstone attempt")
		}
		lg.WithError(err).Warn("replica delete failed, retry scheduled")
		return err
	}

	if err := x.tombstones.Delete(ctx, ts.ID); err != nil {
		return err
	}
	lg.Info("replica delete completed")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// detach swaps an expired context for a fresh one so failure bookkeeping is
// not lost to the deadline that caused the failure.
func detach(ctx context.Context) context.Context {
	if ctx.Err() == nil {
		return ctx
	}
	return context.Background()
}
