// Package broadcast fans refreshed queue snapshots out to live subscribers.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"

	"gymqueue-backend/internal/queue"
)

// SnapshotReader reads the current queue of an equipment.
type SnapshotReader interface {
	GetQueue(ctx context.Context, equipmentID int64) (queue.Snapshot, error)
}

// Publisher delivers an encoded snapshot to whoever watches the equipment.
type Publisher interface {
	Publish(equipmentID int64, payload []byte)
}

// WorkerPool re-reads and publishes snapshots for dispatched equipment ids.
type WorkerPool struct {
	size      int
	jobs      chan int64
	reader    SnapshotReader
	publisher Publisher
	logger    *slog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, reader SnapshotReader, publisher Publisher, logger *slog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		size:      size,
		jobs:      make(chan int64, size*16),
		reader:    reader,
		publisher: publisher,
		logger:    logger.With("component", "broadcast"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", "worker", id)
	for {
		select {
		case equipmentID := <-wp.jobs:
			wp.publishSnapshot(ctx, equipmentID)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a snapshot refresh. When the queue is full the refresh is dropped;
// a later mutation on the same equipment publishes the newer state anyway.
func (wp *WorkerPool) Dispatch(equipmentID int64) {
	select {
	case wp.jobs <- equipmentID:
	default:
		wp.logger.Warn("broadcast queue full, dropping refresh", "equipment_id", equipmentID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

func (wp *WorkerPool) publishSnapshot(ctx context.Context, equipmentID int64) {
	snap, err := wp.reader.GetQueue(ctx, equipmentID)
	if err != nil {
		wp.logger.Warn("failed to read snapshot", "equipment_id", equipmentID, "error", err)
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		wp.logger.Error("failed to encode snapshot", "equipment_id", equipmentID, "error", err)
		return
	}
	wp.publisher.Publish(equipmentID, payload)
}
