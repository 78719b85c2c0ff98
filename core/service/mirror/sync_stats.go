package mirror

import (
	"context"

	"mirror_sync/core/domain"
)

// StatsService aggregates replica sync counters across entity types.
type StatsService struct {
	registry *Registry
}

func NewStatsService(registry *Registry) *StatsService {
	return &StatsService{registry: registry}
}

// Collect returns one SyncStats per registered entity type, in registry order.
func (s *StatsService) Collect(ctx context.Context) ([]*domain.SyncStats, error) {
	stats := make([]*domain.SyncStats, 0, len(s.registry.Types()))
	for _, repo := range s.registry.Repos() {
		st, err := repo.Stats(ctx)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// MarkAllUnsynced flags every row of every type for re-sync and returns the
// number of rows touched. Used before a full rebuild of the replica.
func (s *StatsService) MarkAllUnsynced(ctx context.Context) (int64, error) {
	var total int64
	for _, repo := range s.registry.Repos() {
		n, err := repo.MarkAllUnsynced(ctx)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
