package domain

import "time"

// Tombstone records a pending replica delete. It is written in the same
// transaction that removes the source row, so the remote delete survives the
// local record's lifecycle. Rows are removed only after the replica delete
// succeeds.
type Tombstone struct {
	ID          int64      `db:"id" json:"id"`
	Collection  string     `db:"collection" json:"collection"`
	DocumentKey string     `db:"document_key" json:"document_key"`
	Attempts    int        `db:"attempts" json:"attempts"`
	LastError   *string    `db:"last_error" json:"last_error,omitempty"`
	NextRetryAt *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Due reports whether the tombstone is ready for another delete attempt.
func (t *Tombstone) Due(now time.Time) bool {
	return t.NextRetryAt == nil || !now.Before(*t.NextRetryAt)
}
