package out

import (
	"context"
	"time"

	"mirror_sync/core/domain"
)

// =============================================================================
// Outbound ports - implemented by adapter/out
// =============================================================================

// EntityRepository is the relational-store port for one entity type. One
// generic adapter implements it for every mirrored type.
type EntityRepository interface {
	EntityType() string

	// CRUD. Insert and Update unconditionally reset the row to unsynced.
	Insert(ctx context.Context, e domain.Syncable) (int64, error)
	Update(ctx context.Context, e domain.Syncable) error
	// DeleteWithTombstone removes the row and writes the replica tombstone in
	// one transaction, returning the tombstone for enqueueing.
	DeleteWithTombstone(ctx context.Context, id int64) (*domain.Tombstone, error)
	GetByID(ctx context.Context, id int64) (domain.Syncable, error)
	List(ctx context.Context, limit, offset int) ([]domain.Syncable, error)

	// Sync-state operations.
	LoadUnsynced(ctx context.Context, limit, offset int, includeDead bool) ([]domain.Syncable, error)
	CountUnsynced(ctx context.Context) (int64, error)
	// MarkSynced flips the row to synced only if updated_at still equals the
	// observed token. Returns false when no row matched.
	MarkSynced(ctx context.Context, id int64, observedUpdatedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error
	MarkDead(ctx context.Context, id int64, errMsg string) error
	MarkAllUnsynced(ctx context.Context) (int64, error)
	// GetPendingRetries returns failed rows whose next_retry_at is due and
	// whose attempt count is below the cap.
	GetPendingRetries(ctx context.Context, maxAttempts, limit int) ([]domain.Syncable, error)
	Stats(ctx context.Context) (*domain.SyncStats, error)
}

// TombstoneRepository persists pending replica deletes.
type TombstoneRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Tombstone, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Tombstone, error)
	MarkAttempt(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error
	Delete(ctx context.Context, id int64) error
}

// ReplicaStore is the document-replica port. Put is a whole-document upsert,
// so pushes are idempotent.
type ReplicaStore interface {
	Put(ctx context.Context, collection, key string, fields map[string]any) error
	Delete(ctx context.Context, collection, key string) error
	Ping(ctx context.Context) error
}

// MessageProducer publishes durable sync jobs.
type MessageProducer interface {
	Publish(ctx context.Context, job *domain.SyncJob) error
}
