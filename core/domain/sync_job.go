package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Sync jobs - durable queue payloads
// =============================================================================

// Job types carried on the stream.
const (
	JobTypePush   = "sync.push"
	JobTypeDelete = "sync.delete"
)

// Stream names.
const (
	StreamSyncPush   = "sync:push"
	StreamSyncDelete = "sync:delete"
)

// SyncJob is the durable queue payload. Push jobs carry the row ID and the
// worker re-reads the row, so a job always mirrors the latest state. Delete
// jobs carry the tombstone ID.
type SyncJob struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	EntityType  string    `json:"entity_type"`
	EntityID    int64     `json:"entity_id"`
	TombstoneID int64     `json:"tombstone_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// NewPushJob builds a push job for one row.
func NewPushJob(entityType string, entityID int64, reason string) *SyncJob {
	return &SyncJob{
		ID:         uuid.NewString(),
		Type:       JobTypePush,
		EntityType: entityType,
		EntityID:   entityID,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewDeleteJob builds a delete job referencing a tombstone row.
func NewDeleteJob(entityType string, tombstoneID int64) *SyncJob {
	return &SyncJob{
		ID:          uuid.NewString(),
		Type:        JobTypeDelete,
		EntityType:  entityType,
		TombstoneID: tombstoneID,
		EnqueuedAt:  time.Now().UTC(),
	}
}

// Stream returns the stream a job of this type is published to.
func (j *SyncJob) Stream() string {
	if j.Type == JobTypeDelete {
		return StreamSyncDelete
	}
	return StreamSyncPush
}
