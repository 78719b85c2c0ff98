package mirror

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"mirror_sync/core/domain"
	"mirror_sync/pkg/logger"
)

// Shared in-memory fakes for the service tests.

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelFatal, Output: io.Discard})
}

// ----- entity repository -----

type fakeRepo struct {
	mu         sync.Mutex
	entityType string
	order      []int64
	rows       map[int64]*domain.Page
	nextID     int64
	tombstones *fakeTombstones
}

func newFakeRepo(entityType string) *fakeRepo {
	return &fakeRepo{
		entityType: entityType,
		rows:       make(map[int64]*domain.Page),
		nextID:     1,
	}
}

func (r *fakeRepo) add(slug string) *domain.Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &domain.Page{
		ID:        r.nextID,
		Slug:      slug,
		Title:     "title " + slug,
		Body:      "body",
		Published: true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	p.SyncStatus = domain.SyncStatusUnsynced
	r.rows[p.ID] = p
	r.order = append(r.order, p.ID)
	r.nextID++
	return p
}

func (r *fakeRepo) EntityType() string { return r.entityType }

func (r *fakeRepo) Insert(ctx context.Context, e domain.Syncable) (int64, error) {
	p := e.(*domain.Page)
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	p.SyncStatus = domain.SyncStatusUnsynced
	r.rows[p.ID] = p
	r.order = append(r.order, p.ID)
	return p.ID, nil
}

func (r *fakeRepo) Update(ctx context.Context, e domain.Syncable) error {
	p := e.(*domain.Page)
	r.mu.Lock()
	defer r.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	p.Synced = false
	p.SyncStatus = domain.SyncStatusUnsynced
	r.rows[p.ID] = p
	return nil
}

func (r *fakeRepo) DeleteWithTombstone(ctx context.Context, id int64) (*domain.Tombstone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, fmt.Errorf("row %d not found", id)
	}
	delete(r.rows, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	ts := &domain.Tombstone{
		Collection:  p.Collection(),
		DocumentKey: p.DocumentKey(),
		CreatedAt:   time.Now().UTC(),
	}
	if r.tombstones != nil {
		r.tombstones.add(ts)
	}
	return ts, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id int64) (domain.Syncable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (r *fakeRepo) List(ctx context.Context, limit, offset int) ([]domain.Syncable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Syncable
	for i := offset; i < len(r.order) && len(out) < limit; i++ {
		out = append(out, r.rows[r.order[i]])
	}
	return out, nil
}

func (r *fakeRepo) LoadUnsynced(ctx context.Context, limit, offset int, includeDead bool) ([]domain.Syncable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*domain.Page
	for _, id := range r.order {
		p := r.rows[id]
		if p.SyncStatus == domain.SyncStatusSynced {
			continue
		}
		if p.SyncStatus == domain.SyncStatusDead && !includeDead {
			continue
		}
		pending = append(pending, p)
	}
	var out []domain.Syncable
	for i := offset; i < len(pending) && len(out) < limit; i++ {
		out = append(out, pending[i])
	}
	return out, nil
}

func (r *fakeRepo) CountUnsynced(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		if p.SyncStatus != domain.SyncStatusSynced && p.SyncStatus != domain.SyncStatusDead {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) MarkSynced(ctx context.Context, id int64, observed time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok || !p.UpdatedAt.Equal(observed) {
		return false, nil
	}
	now := time.Now().UTC()
	p.Synced = true
	p.SyncStatus = domain.SyncStatusSynced
	p.SyncError = nil
	p.SyncAttempts = 0
	p.SyncedAt = &now
	p.LastAttemptAt = &now
	p.NextRetryAt = nil
	return true, nil
}

func (r *fakeRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("row %d not found", id)
	}
	now := time.Now().UTC()
	p.Synced = false
	p.SyncStatus = domain.SyncStatusFailed
	p.SyncError = &errMsg
	p.SyncAttempts++
	p.LastAttemptAt = &now
	p.NextRetryAt = &nextRetryAt
	return nil
}

func (r *fakeRepo) MarkDead(ctx context.Context, id int64, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("row %d not found", id)
	}
	now := time.Now().UTC()
	p.Synced = false
	p.SyncStatus = domain.SyncStatusDead
	p.SyncError = &errMsg
	p.SyncAttempts++
	p.LastAttemptAt = &now
	p.NextRetryAt = nil
	return nil
}

func (r *fakeRepo) MarkAllUnsynced(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rows {
		p.Synced = false
		p.SyncStatus = domain.SyncStatusUnsynced
		p.SyncError = nil
		p.SyncAttempts = 0
		p.NextRetryAt = nil
		n++
	}
	return n, nil
}

func (r *fakeRepo) GetPendingRetries(ctx context.Context, maxAttempts, limit int) ([]domain.Syncable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []domain.Syncable
	for _, id := range r.order {
		p := r.rows[id]
		if p.SyncStatus != domain.SyncStatusFailed || p.SyncAttempts >= maxAttempts {
			continue
		}
		if p.NextRetryAt != nil && now.Before(*p.NextRetryAt) {
			continue
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeRepo) Stats(ctx context.Context) (*domain.SyncStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &domain.SyncStats{EntityType: r.entityType}
	for _, p := range r.rows {
		st.Total++
		switch p.SyncStatus {
		case domain.SyncStatusSynced:
			st.Synced++
		case domain.SyncStatusFailed:
			st.Failed++
		case domain.SyncStatusDead:
			st.Dead++
		default:
			st.Unsynced++
		}
	}
	return st, nil
}

// ----- replica store -----

type fakeReplica struct {
	mu       sync.Mutex
	docs     map[string]map[string]any
	deleted  []string
	puts     int
	failKeys map[string]error // collection/key -> error
	failAll  error
	onPut    func(collection, key string)
}

func newFakeReplica() *fakeReplica {
	return &fakeReplica{
		docs:     make(map[string]map[string]any),
		failKeys: make(map[string]error),
	}
}

func docKey(collection, key string) string { return collection + "/" + key }

func (f *fakeReplica) Put(ctx context.Context, collection, key string, fields map[string]any) error {
	f.mu.Lock()
	f.puts++
	err := f.failAll
	if err == nil {
		err = f.failKeys[docKey(collection, key)]
	}
	hook := f.onPut
	if err == nil {
		f.docs[docKey(collection, key)] = fields
	}
	f.mu.Unlock()
	if hook != nil {
		hook(collection, key)
	}
	return err
}

func (f *fakeReplica) Delete(ctx context.Context, collection, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if err := f.failKeys[docKey(collection, key)]; err != nil {
		return err
	}
	delete(f.docs, docKey(collection, key))
	f.deleted = append(f.deleted, docKey(collection, key))
	return nil
}

func (f *fakeReplica) Ping(ctx context.Context) error { return nil }

func (f *fakeReplica) get(collection, key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[docKey(collection, key)]
}

// ----- message producer -----

type fakeProducer struct {
	mu        sync.Mutex
	published []*domain.SyncJob
	failErr   error
}

func (f *fakeProducer) Publish(ctx context.Context, job *domain.SyncJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.published = append(f.published, job)
	return nil
}

func (f *fakeProducer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// ----- backlog cache -----

type fakeCache struct {
	mu     sync.Mutex
	values map[string]int64
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]int64)}
}

func (f *fakeCache) GetInt64(ctx context.Context, key string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCache) SetInt64(ctx context.Context, key string, value int64, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.sets++
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

// ----- tombstone repository -----

type fakeTombstones struct {
	mu     sync.Mutex
	rows   map[int64]*domain.Tombstone
	nextID int64
}

func newFakeTombstones() *fakeTombstones {
	return &fakeTombstones{rows: make(map[int64]*domain.Tombstone), nextID: 1}
}

func (f *fakeTombstones) add(ts *domain.Tombstone) *domain.Tombstone {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts.ID = f.nextID
	f.nextID++
	f.rows[ts.ID] = ts
	return ts
}

func (f *fakeTombstones) GetByID(ctx context.Context, id int64) (*domain.Tombstone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return ts, nil
}

func (f *fakeTombstones) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Tombstone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Tombstone
	for _, ts := range f.rows {
		if ts.Due(now) {
			out = append(out, ts)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTombstones) MarkAttempt(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("tombstone %d not found", id)
	}
	ts.Attempts++
	ts.LastError = &errMsg
	ts.NextRetryAt = &nextRetryAt
	return nil
}

func (f *fakeTombstones) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeTombstones) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// ----- wiring helper -----

type fixture struct {
	repo       *fakeRepo
	replica    *fakeReplica
	tombstones *fakeTombstones
	registry   *Registry
	executor   *Executor
}

func newFixture() *fixture {
	repo := newFakeRepo(domain.EntityTypePage)
	tombstones := newFakeTombstones()
	repo.tombstones = tombstones
	replica := newFakeReplica()
	registry := NewRegistry()
	registry.Register(repo, func() domain.Syncable { return &domain.Page{} })
	executor := NewExecutor(registry, replica, tombstones, testLogger())
	return &fixture{
		repo:       repo,
		replica:    replica,
		tombstones: tombstones,
		registry:   registry,
		executor:   executor,
	}
}
