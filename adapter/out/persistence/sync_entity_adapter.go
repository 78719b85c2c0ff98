package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"mirror_sync/core/domain"
)

// =============================================================================
// Generic entity adapter - one engine for every mirrored table
// =============================================================================

// TableSpec describes one mirrored table. Column lists cover business columns
// only; bookkeeping columns are managed by the adapter itself.
type TableSpec struct {
	Table         string
	EntityType    string
	InsertColumns []string
	UpdateColumns []string
}

// EntityAdapter implements out.EntityRepository for one entity type on top of
// sqlx. The concrete type T must be a pointer to the entity struct so sqlx
// can scan into it.
type EntityAdapter[T domain.Syncable] struct {
	db   *sqlx.DB
	spec TableSpec

	insertQuery string
	updateQuery string
}

func NewEntityAdapter[T domain.Syncable](db *sqlx.DB, spec TableSpec) *EntityAdapter[T] {
	return &EntityAdapter[T]{
		db:          db,
		spec:        spec,
		insertQuery: buildInsertQuery(spec),
		updateQuery: buildUpdateQuery(spec),
	}
}

func buildInsertQuery(spec TableSpec) string {
	placeholders := make([]string, len(spec.InsertColumns))
	for i, col := range spec.InsertColumns {
		placeholders[i] = ":" + col
	}
	return fmt.Sprintf(`
		INSERT INTO %s (%s, created_at, updated_at, synced, sync_status, sync_attempts)
		VALUES (%s, NOW(), NOW(), FALSE, 'unsynced', 0)
		RETURNING id`,
		spec.Table,
		strings.Join(spec.InsertColumns, ", "),
		strings.Join(placeholders, ", "),
	)
}

func buildUpdateQuery(spec TableSpec) string {
	assignments := make([]string, len(spec.UpdateColumns))
	for i, col := range spec.UpdateColumns {
		assignments[i] = col + " = :" + col
	}
	// Every update resets the row for re-sync.
	return fmt.Sprintf(`
		UPDATE %s SET %s,
			updated_at = NOW(),
			synced = FALSE,
			sync_status = 'unsynced',
			sync_error = NULL,
			sync_attempts = 0,
			next_retry_at = NULL
		WHERE id = :id`,
		spec.Table,
		strings.Join(assignments, ", "),
	)
}

func (a *EntityAdapter[T]) EntityType() string { return a.spec.EntityType }

// Insert creates the row already flagged unsynced and returns the new ID.
func (a *EntityAdapter[T]) Insert(ctx context.Context, e domain.Syncable) (int64, error) {
	rows, err := a.db.NamedQueryContext(ctx, a.insertQuery, e)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", a.spec.EntityType, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, fmt.Errorf("insert %s: no id returned", a.spec.EntityType)
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: scan id: %w", a.spec.EntityType, err)
	}
	return id, rows.Err()
}

// Update rewrites the business columns and resets the row to unsynced.
func (a *EntityAdapter[T]) Update(ctx context.Context, e domain.Syncable) error {
	result, err := a.db.NamedExecContext(ctx, a.updateQuery, e)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", a.spec.EntityType, e.RowID(), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteWithTombstone removes the row and records the replica tombstone in one
// transaction, so the remote delete can never be lost.
func (a *EntityAdapter[T]) DeleteWithTombstone(ctx context.Context, id int64) (*domain.Tombstone, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete %s %d: begin: %w", a.spec.EntityType, id, err)
	}
	defer tx.Rollback()

	var rows []T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1 FOR UPDATE", a.spec.Table)
	if err := tx.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("delete %s %d: load: %w", a.spec.EntityType, id, err)
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	e := rows[0]

	ts := &domain.Tombstone{
		Collection:  e.Collection(),
		DocumentKey: e.DocumentKey(),
		CreatedAt:   time.Now().UTC(),
	}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO sync_tombstones (collection, document_key, attempts, created_at)
		 VALUES ($1, $2, 0, NOW())
		 RETURNING id, created_at`,
		ts.Collection, ts.DocumentKey,
	).Scan(&ts.ID, &ts.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("delete %s %d: tombstone: %w", a.spec.EntityType, id, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", a.spec.Table), id); err != nil {
		return nil, fmt.Errorf("delete %s %d: %w", a.spec.EntityType, id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete %s %d: commit: %w", a.spec.EntityType, id, err)
	}
	return ts, nil
}

// GetByID returns nil without error when the row is gone.
func (a *EntityAdapter[T]) GetByID(ctx context.Context, id int64) (domain.Syncable, error) {
	var rows []T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", a.spec.Table)
	if err := a.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("get %s %d: %w", a.spec.EntityType, id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (a *EntityAdapter[T]) List(ctx context.Context, limit, offset int) ([]domain.Syncable, error) {
	var rows []T
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY id LIMIT $1 OFFSET $2", a.spec.Table)
	if err := a.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list %s: %w", a.spec.EntityType, err)
	}
	return toSyncables(rows), nil
}

// LoadUnsynced returns pending rows oldest first. The offset lets a sweep
// step over rows that just failed without reloading them.
func (a *EntityAdapter[T]) LoadUnsynced(ctx context.Context, limit, offset int, includeDead bool) ([]domain.Syncable, error) {
	cond := "sync_status NOT IN ('synced', 'dead')"
	if includeDead {
		cond = "sync_status <> 'synced'"
	}
	var rows []T
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s ORDER BY updated_at ASC, id ASC LIMIT $1 OFFSET $2",
		a.spec.Table, cond,
	)
	if err := a.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("load unsynced %s: %w", a.spec.EntityType, err)
	}
	return toSyncables(rows), nil
}

func (a *EntityAdapter[T]) CountUnsynced(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE sync_status NOT IN ('synced', 'dead')",
		a.spec.Table,
	)
	if err := a.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("count unsynced %s: %w", a.spec.EntityType, err)
	}
	return n, nil
}

// MarkSynced is the optimistic guard: the row flips to synced only when
// updated_at still equals the value observed before the replica write.
func (a *EntityAdapter[T]) MarkSynced(ctx context.Context, id int64, observedUpdatedAt time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET
			synced = TRUE,
			sync_status = 'synced',
			sync_error = NULL,
			sync_attempts = 0,
			synced_at = NOW(),
			last_attempt_at = NOW(),
			next_retry_at = NULL
		WHERE id = $1 AND updated_at = $2`,
		a.spec.Table,
	)
	result, err := a.db.ExecContext(ctx, query, id, observedUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("mark synced %s %d: %w", a.spec.EntityType, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *EntityAdapter[T]) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			synced = FALSE,
			sync_status = 'failed',
			sync_error = $2,
			sync_attempts = sync_attempts + 1,
			last_attempt_at = NOW(),
			next_retry_at = $3
		WHERE id = $1`,
		a.spec.Table,
	)
	if _, err := a.db.ExecContext(ctx, query, id, errMsg, nextRetryAt); err != nil {
		return fmt.Errorf("mark failed %s %d: %w", a.spec.EntityType, id, err)
	}
	return nil
}

func (a *EntityAdapter[T]) MarkDead(ctx context.Context, id int64, errMsg string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			synced = FALSE,
			sync_status = 'dead',
			sync_error = $2,
			sync_attempts = sync_attempts + 1,
			last_attempt_at = NOW(),
			next_retry_at = NULL
		WHERE id = $1`,
		a.spec.Table,
	)
	if _, err := a.db.ExecContext(ctx, query, id, errMsg); err != nil {
		return fmt.Errorf("mark dead %s %d: %w", a.spec.EntityType, id, err)
	}
	return nil
}

func (a *EntityAdapter[T]) MarkAllUnsynced(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET
			synced = FALSE,
			sync_status = 'unsynced',
			sync_error = NULL,
			sync_attempts = 0,
			next_retry_at = NULL`,
		a.spec.Table,
	)
	result, err := a.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("mark all unsynced %s: %w", a.spec.EntityType, err)
	}
	return result.RowsAffected()
}

// GetPendingRetries returns failed rows whose backoff expired and whose
// attempt count is still below the cap.
func (a *EntityAdapter[T]) GetPendingRetries(ctx context.Context, maxAttempts, limit int) ([]domain.Syncable, error) {
	var rows []T
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE sync_status = 'failed'
		  AND sync_attempts < $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY next_retry_at ASC NULLS FIRST
		LIMIT $2`,
		a.spec.Table,
	)
	if err := a.db.SelectContext(ctx, &rows, query, maxAttempts, limit); err != nil {
		return nil, fmt.Errorf("pending retries %s: %w", a.spec.EntityType, err)
	}
	return toSyncables(rows), nil
}

func (a *EntityAdapter[T]) Stats(ctx context.Context) (*domain.SyncStats, error) {
	var st domain.SyncStats
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE sync_status = 'synced')   AS synced,
			COUNT(*) FILTER (WHERE sync_status = 'unsynced') AS unsynced,
			COUNT(*) FILTER (WHERE sync_status = 'failed')   AS failed,
			COUNT(*) FILTER (WHERE sync_status = 'dead')     AS dead
		FROM %s`,
		a.spec.Table,
	)
	if err := a.db.GetContext(ctx, &st, query); err != nil {
		return nil, fmt.Errorf("stats %s: %w", a.spec.EntityType, err)
	}
	st.EntityType = a.spec.EntityType
	return &st, nil
}

// IsNotFound reports whether err is the adapter's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func toSyncables[T domain.Syncable](rows []T) []domain.Syncable {
	out := make([]domain.Syncable, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
