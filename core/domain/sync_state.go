package domain

import "time"

// =============================================================================
// Sync Status - replica mirror state machine
// =============================================================================

type SyncStatus string

const (
	SyncStatusUnsynced SyncStatus = "unsynced" // never pushed, or mutated since last push
	SyncStatusSynced   SyncStatus = "synced"   // replica document matches the last known row state
	SyncStatusFailed   SyncStatus = "failed"   // last push failed, eligible for retry
	SyncStatusDead     SyncStatus = "dead"     // permanent failure, excluded from automatic retry
)

// SyncMeta is the per-row replica bookkeeping embedded on every mirrored entity.
// Invariant: SyncStatus == synced implies SyncError == nil and SyncedAt != nil.
type SyncMeta struct {
	Synced        bool       `db:"synced" json:"synced"`
	SyncStatus    SyncStatus `db:"sync_status" json:"sync_status"`
	SyncError     *string    `db:"sync_error" json:"sync_error,omitempty"`
	SyncAttempts  int        `db:"sync_attempts" json:"sync_attempts"`
	SyncedAt      *time.Time `db:"synced_at" json:"synced_at,omitempty"`
	LastAttemptAt *time.Time `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	NextRetryAt   *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
}

// IsSynced reports whether the replica is believed current.
func (m *SyncMeta) IsSynced() bool {
	return m.Synced && m.SyncStatus == SyncStatusSynced
}

// IsDead reports whether the row reached the terminal failure state.
func (m *SyncMeta) IsDead() bool {
	return m.SyncStatus == SyncStatusDead
}

// CanAutoRetry reports whether the retry scheduler may still pick this row up.
// The reconciliation sweep intentionally ignores this cap.
func (m *SyncMeta) CanAutoRetry(maxAttempts int) bool {
	return !m.IsDead() && m.SyncAttempts < maxAttempts
}

// NeedsRetry reports whether a scheduled retry is due.
func (m *SyncMeta) NeedsRetry(now time.Time) bool {
	if m.SyncStatus != SyncStatusFailed || m.NextRetryAt == nil {
		return false
	}
	return !now.Before(*m.NextRetryAt)
}

// =============================================================================
// Retry backoff
// =============================================================================

// RetryDelays is the backoff ladder applied between failed push attempts.
var RetryDelays = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	120 * time.Second,
}

// GetRetryDelay returns the delay before the next attempt, given the number of
// failures recorded so far. Clamps to the last tier.
func GetRetryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(RetryDelays) {
		return RetryDelays[len(RetryDelays)-1]
	}
	return RetryDelays[attempts]
}

// =============================================================================
// Statistics
// =============================================================================

// SyncStats summarizes replica state counts for one entity type.
type SyncStats struct {
	EntityType string `json:"entity_type"`
	Total      int64  `json:"total"`
	Synced     int64  `json:"synced"`
	Unsynced   int64  `json:"unsynced"`
	Failed     int64  `json:"failed"`
	Dead       int64  `json:"dead"`
}

// Pending returns the number of rows the replica is behind on, including
// rows parked in the terminal state.
func (s *SyncStats) Pending() int64 {
	return s.Total - s.Synced
}
