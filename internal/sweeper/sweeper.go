// Package sweeper reports overdue invitations as LATE on a cron schedule.
// It plays the caller-side timer loop; the queue engine itself never sleeps.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"gymqueue-backend/internal/clock"
	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/queue"
	"gymqueue-backend/internal/store"
)

// Engine is the part of the queue service the sweeper drives.
type Engine interface {
	GetQueue(ctx context.Context, equipmentID int64) (queue.Snapshot, error)
	Dispatch(ctx context.Context, ev queue.Event) (queue.Result, error)
}

// Catalog lists the equipment to sweep.
type Catalog interface {
	ListEquipment(ctx context.Context, filter store.EquipmentFilter) ([]model.Equipment, error)
}

// Notifier is told about every equipment whose queue changed.
type Notifier interface {
	Dispatch(equipmentID int64)
}

// Service finds overdue invitations and reports them late.
type Service struct {
	engine   Engine
	catalog  Catalog
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger
}

// NewService creates a sweeper. notifier and logger may be nil.
func NewService(engine Engine, catalog Catalog, c clock.Clock, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:   engine,
		catalog:  catalog,
		clock:    c,
		notifier: notifier,
		logger:   logger.With("component", "sweeper"),
	}
}

// Schedule registers SweepOnce on a cron spec with a seconds field. The caller
// starts and stops the returned scheduler.
func (s *Service) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() { s.SweepOnce(ctx) }); err != nil {
		return nil, err
	}
	return c, nil
}

// SweepOnce fires LATE for every equipment whose invited head has passed its
// deadline and returns the ids it reported.
func (s *Service) SweepOnce(ctx context.Context) []int64 {
	equipment, err := s.catalog.ListEquipment(ctx, store.EquipmentFilter{})
	if err != nil {
		s.logger.Error("failed to list equipment", "error", err)
		return nil
	}

	var reported []int64
	for _, e := range equipment {
		if ctx.Err() != nil {
			break
		}
		snap, err := s.engine.GetQueue(ctx, e.ID)
		if err != nil {
			s.logger.Warn("failed to read queue", "equipment_id", e.ID, "error", err)
			continue
		}
		if !snap.Overdue(s.clock.Now()) {
			continue
		}

		// The deadline is checked again under the equipment lock; a head that moved
		// on since the read turns the event into a no-op.
		head := snap.Head()
		res, err := s.engine.Dispatch(ctx, queue.Late{EquipmentID: e.ID, Head: head.ID})
		if err != nil {
			s.logger.Warn("failed to report late reservation", "equipment_id", e.ID, "reservation_id", head.ID, "error", err)
			continue
		}
		if hasWarning(res.Snapshot, queue.WarningNoOp) {
			s.logger.Debug("late reservation already handled", "equipment_id", e.ID, "reservation_id", head.ID)
			continue
		}
		s.logger.Info("reported late reservation", "equipment_id", e.ID, "reservation_id", head.ID)
		reported = append(reported, e.ID)
		if s.notifier != nil {
			s.notifier.Dispatch(e.ID)
		}
	}
	return reported
}

func hasWarning(snap queue.Snapshot, code queue.WarningCode) bool {
	for _, w := range snap.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
