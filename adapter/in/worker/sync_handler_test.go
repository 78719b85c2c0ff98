package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mirror_sync/core/domain"
	"mirror_sync/pkg/logger"
)

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelFatal, Output: io.Discard})
}

func TestDispatcherRejectsMalformedPayload(t *testing.T) {
	d := NewDispatcher(NewPool(nil, nil, zerolog.Nop()), testLog())

	if err := d.Handle(context.Background(), domain.StreamSyncPush, []byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func TestDispatcherFailsWhenPoolNotStarted(t *testing.T) {
	d := NewDispatcher(NewPool(nil, nil, zerolog.Nop()), testLog())
	job := domain.NewPushJob(domain.EntityTypePage, 1, "update")

	data := []byte(`{"id":"` + job.ID + `","type":"sync.push","entity_type":"pages","entity_id":1}`)
	if err := d.Handle(context.Background(), domain.StreamSyncPush, data); err == nil {
		t.Error("expected error when pool is not accepting jobs")
	}
}

func TestProcessorRejectsUnknownJobType(t *testing.T) {
	p := NewJobProcessor(nil, testLog())
	err := p.Process(context.Background(), &domain.SyncJob{ID: "x", Type: "sync.compact"})
	if err == nil {
		t.Error("expected error for unknown job type")
	}
}

func TestPoolConfigClampsJobTimeout(t *testing.T) {
	p := NewPool(nil, &PoolConfig{Workers: 2, JobTimeout: 10 * time.Minute}, zerolog.Nop())
	if p.config.JobTimeout != maxJobTimeout {
		t.Errorf("job timeout = %v, want clamped to %v", p.config.JobTimeout, maxJobTimeout)
	}

	p = NewPool(nil, &PoolConfig{Workers: 2, JobTimeout: 30 * time.Second}, zerolog.Nop())
	if p.config.JobTimeout != 30*time.Second {
		t.Errorf("job timeout = %v, want 30s", p.config.JobTimeout)
	}
}
