package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mirror_sync/core/domain"
)

// TombstoneAdapter persists pending replica deletes. Rows are created inside
// the entity delete transaction (see EntityAdapter.DeleteWithTombstone) and
// removed here once the replica delete succeeds.
type TombstoneAdapter struct {
	db *sqlx.DB
}

func NewTombstoneAdapter(db *sqlx.DB) *TombstoneAdapter {
	return &TombstoneAdapter{db: db}
}

func (a *TombstoneAdapter) GetByID(ctx context.Context, id int64) (*domain.Tombstone, error) {
	var rows []*domain.Tombstone
	err := a.db.SelectContext(ctx, &rows,
		"SELECT * FROM sync_tombstones WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get tombstone %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListDue returns tombstones whose backoff expired, oldest first.
func (a *TombstoneAdapter) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Tombstone, error) {
	var rows []*domain.Tombstone
	err := a.db.SelectContext(ctx, &rows, `
		SELECT * FROM sync_tombstones
		WHERE next_retry_at IS NULL OR next_retry_at <= $1
		ORDER BY created_at ASC
		LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due tombstones: %w", err)
	}
	return rows, nil
}

func (a *TombstoneAdapter) MarkAttempt(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE sync_tombstones SET
			attempts = attempts + 1,
			last_error = $2,
			next_retry_at = $3
		WHERE id = $1`,
		id, errMsg, nextRetryAt)
	if err != nil {
		return fmt.Errorf("mark tombstone attempt %d: %w", id, err)
	}
	return nil
}

func (a *TombstoneAdapter) Delete(ctx context.Context, id int64) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM sync_tombstones WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete tombstone %d: %w", id, err)
	}
	return nil
}
