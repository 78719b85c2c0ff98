package worker

import (
	"context"
	"time"

	"mirror_sync/core/port/out"
	"mirror_sync/core/service/mirror"
	"mirror_sync/pkg/logger"
)

// =============================================================================
// TombstoneWorker - durable delete propagation
// =============================================================================
//
// Tombstones are written in the same transaction that deletes the source row,
// so the replica delete is independent of the record's lifecycle. Jobs cover
// the fast path; this worker sweeps whatever is due and keeps retrying with
// clamped backoff until the replica delete succeeds.

type TombstoneWorker struct {
	tombstones    out.TombstoneRepository
	executor      *mirror.Executor
	checkInterval time.Duration
	batchLimit    int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewTombstoneWorker(tombstones out.TombstoneRepository, executor *mirror.Executor, checkInterval time.Duration) *TombstoneWorker {
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TombstoneWorker{
		tombstones:    tombstones,
		executor:      executor,
		checkInterval: checkInterval,
		batchLimit:    100,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start starts the tombstone worker.
func (w *TombstoneWorker) Start() {
	logger.Info("[TombstoneWorker] starting with interval %v", w.checkInterval)
	go w.run()
}

// Stop stops the tombstone worker.
func (w *TombstoneWorker) Stop() {
	logger.Info("[TombstoneWorker] stopping...")
	w.cancel()
}

func (w *TombstoneWorker) run() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	w.processDue()

	for {
		select {
		case <-w.ctx.Done():
			logger.Info("[TombstoneWorker] stopped")
			return
		case <-ticker.C:
			w.processDue()
		}
	}
}

func (w *TombstoneWorker) processDue() {
	ctx, cancel := context.WithTimeout(w.ctx, 2*time.Minute)
	defer cancel()

	due, err := w.tombstones.ListDue(ctx, time.Now().UTC(), w.batchLimit)
	if err != nil {
		logger.Error("[TombstoneWorker] failed to list due tombstones: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	logger.Info("[TombstoneWorker] processing %d due tombstones", len(due))
	for _, ts := range due {
		if ctx.Err() != nil {
			return
		}
		if err := w.executor.DeleteTombstone(ctx, ts); err != nil {
			// Already rescheduled with backoff; keep going.
			continue
		}
	}
}
