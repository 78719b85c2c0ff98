package worker

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"mirror_sync/core/domain"
	"mirror_sync/core/service/mirror"
	"mirror_sync/pkg/logger"
)

// =============================================================================
// Job processing
// =============================================================================

// JobProcessor executes one sync job. Push failures are recorded on the row
// by the executor before they surface here, so the caller never needs to
// re-enqueue: the retry scheduler reads the schedule back out of the table.
type JobProcessor struct {
	executor *mirror.Executor
	log      *logger.Logger
}

func NewJobProcessor(executor *mirror.Executor, log *logger.Logger) *JobProcessor {
	return &JobProcessor{executor: executor, log: log}
}

// Process routes one job by type.
func (p *JobProcessor) Process(ctx context.Context, job *domain.SyncJob) error {
	switch job.Type {
	case domain.JobTypePush:
		return p.executor.PushByID(ctx, job.EntityType, job.EntityID, mirror.PushOptions{})
	case domain.JobTypeDelete:
		return p.executor.DeleteByTombstoneID(ctx, job.TombstoneID)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// =============================================================================
// Stream dispatcher
// =============================================================================

// Dispatcher adapts the stream consumer to the pool: it decodes each message
// and hands the job off. Dispatch acknowledges the message; outcome durability
// lives in the row's sync state, not in stream redelivery.
type Dispatcher struct {
	pool *Pool
	log  *logger.Logger
}

func NewDispatcher(pool *Pool, log *logger.Logger) *Dispatcher {
	return &Dispatcher{pool: pool, log: log}
}

// Handle implements messaging.JobHandler.
func (d *Dispatcher) Handle(ctx context.Context, stream string, data []byte) error {
	var job domain.SyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("decode job from %s: %w", stream, err)
	}

	if !d.pool.Submit(&job) {
		return fmt.Errorf("pool not accepting jobs (stream %s)", stream)
	}

	d.log.WithFields(map[string]any{
		"job_id":      job.ID,
		"job_type":    job.Type,
		"entity_type": job.EntityType,
	}).Debug("job dispatched")
	return nil
}
