package mirror

import (
	"fmt"

	"mirror_sync/core/domain"
	"mirror_sync/core/port/out"
)

// =============================================================================
// Registry - entity type -> repository + constructor
// =============================================================================

// Entry binds one mirrored entity type to its repository and a constructor
// used to decode request bodies and job payloads into the concrete type.
type Entry struct {
	Repo out.EntityRepository
	New  func() domain.Syncable
}

// Registry is the single lookup table the engine, workers and HTTP layer use
// instead of per-entity services.
type Registry struct {
	entries map[string]*Entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds an entity type. Registration happens once at bootstrap;
// duplicate registration is a programming error.
func (r *Registry) Register(repo out.EntityRepository, newFn func() domain.Syncable) {
	et := repo.EntityType()
	if _, dup := r.entries[et]; dup {
		panic(fmt.Sprintf("registry: duplicate entity type %q", et))
	}
	r.entries[et] = &Entry{Repo: repo, New: newFn}
	r.order = append(r.order, et)
}

// Get returns the entry for an entity type.
func (r *Registry) Get(entityType string) (*Entry, error) {
	e, ok := r.entries[entityType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	return e, nil
}

// Types returns registered entity types in registration order.
func (r *Registry) Types() []string {
	return r.order
}

// Repos returns repositories in registration order.
func (r *Registry) Repos() []out.EntityRepository {
	repos := make([]out.EntityRepository, 0, len(r.order))
	for _, et := range r.order {
		repos = append(repos, r.entries[et].Repo)
	}
	return repos
}
