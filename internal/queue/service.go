package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"gymqueue-backend/internal/clock"
	"gymqueue-backend/internal/logging"
	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/store"
)

// Options holds the timing constants and late handling choice of a Service.
type Options struct {
	LateThreshold time.Duration
	Grace         time.Duration
	PolicySource  PolicySource
	Logger        *slog.Logger
}

// Service is the entry point for reservations and equipment events. Operations on
// one equipment are serialized; different equipment proceed in parallel.
type Service struct {
	store  store.Store
	clock  clock.Clock
	opts   Options
	locks  *lockRegistry
	logger *slog.Logger
}

// NewService creates a Service. An empty PolicySource means PolicySourceSelf.
func NewService(s store.Store, c clock.Clock, opts Options) *Service {
	if opts.PolicySource == "" {
		opts.PolicySource = PolicySourceSelf
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		clock:  c,
		opts:   opts,
		locks:  newLockRegistry(),
		logger: logger.With("component", "queue"),
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// CreateReservation puts a user in line for an equipment, or seats them at once
// when the equipment is idle and nobody is waiting.
func (s *Service) CreateReservation(ctx context.Context, userID, equipmentID int64, desiredMinutes int, policy model.LatePolicy) (*model.Reservation, error) {
	res, err := s.Dispatch(ctx, Create{
		UserID:         userID,
		EquipmentID:    equipmentID,
		DesiredMinutes: desiredMinutes,
		LatePolicy:     policy,
	})
	if err != nil {
		return nil, err
	}
	return res.Reservation, nil
}

// ReportEvent applies a real-world event to an equipment and returns the refreshed snapshot.
func (s *Service) ReportEvent(ctx context.Context, equipmentID int64, eventType EventType) (Snapshot, error) {
	ev, err := NewEvent(equipmentID, eventType)
	if err != nil {
		return Snapshot{}, err
	}
	res, err := s.Dispatch(ctx, ev)
	if err != nil {
		return Snapshot{}, err
	}
	return res.Snapshot, nil
}

// Dispatch validates ev, then runs its transition under the equipment's lock in one transaction.
func (s *Service) Dispatch(ctx context.Context, ev Event) (Result, error) {
	if ev == nil {
		return Result{}, invalidInput("event is required")
	}
	equipmentID := ev.Equipment()
	if equipmentID <= 0 {
		return Result{}, invalidInput("equipmentId must be positive, got %d", equipmentID)
	}
	if c, ok := ev.(Create); ok {
		if err := c.validate(); err != nil {
			return Result{}, err
		}
	}

	logger := logging.FromContext(ctx, s.logger).With("equipment_id", equipmentID, "event", eventName(ev))
	unlock := s.locks.Lock(equipmentID)
	defer unlock()

	var result Result
	err := s.withRetry(ctx, logger, func() error {
		return s.store.Transaction(ctx, func(tx store.Store) error {
			m := s.newMachine(tx, equipmentID, logger)
			r, err := m.run(ctx, ev)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// GetQueue returns the occupant and ordered line of an equipment without writing anything.
func (s *Service) GetQueue(ctx context.Context, equipmentID int64) (Snapshot, error) {
	if equipmentID <= 0 {
		return Snapshot{}, invalidInput("equipmentId must be positive, got %d", equipmentID)
	}

	logger := logging.FromContext(ctx, s.logger).With("equipment_id", equipmentID)
	unlock := s.locks.RLock(equipmentID)
	defer unlock()

	var snap Snapshot
	err := s.withRetry(ctx, logger, func() error {
		return s.store.Transaction(ctx, func(tx store.Store) error {
			m := s.newMachine(tx, equipmentID, logger)
			if err := m.requireEquipment(ctx); err != nil {
				return err
			}
			st, err := m.load(ctx)
			if err != nil {
				return err
			}
			ordered := Recompute(m.now, st.occupancy(), st.queued)
			snap = buildSnapshot(equipmentID, m.now, s.opts, st.occupant, ordered)
			return nil
		})
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// GetUserActiveReservations lists the user's waiting, skipped-once and in-progress reservations.
func (s *Service) GetUserActiveReservations(ctx context.Context, userID int64) ([]model.Reservation, error) {
	if userID <= 0 {
		return nil, invalidInput("userId must be positive, got %d", userID)
	}

	logger := logging.FromContext(ctx, s.logger).With("user_id", userID)
	var reservations []model.Reservation
	err := s.withRetry(ctx, logger, func() error {
		var err error
		reservations, err = s.store.ListActiveByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	return reservations, nil
}

// CancelReservation withdraws a waiting reservation. Cancelling the occupant ends
// its session like END_EXERCISE. The refreshed snapshot of the equipment is returned.
func (s *Service) CancelReservation(ctx context.Context, reservationID int64) (Snapshot, error) {
	if reservationID <= 0 {
		return Snapshot{}, invalidInput("reservationId must be positive, got %d", reservationID)
	}

	logger := logging.FromContext(ctx, s.logger).With("reservation_id", reservationID, "event", "CANCEL")

	var equipmentID int64
	err := s.withRetry(ctx, logger, func() error {
		r, err := s.store.FindReservation(ctx, reservationID)
		if store.IsKind(err, store.KindNotFound) {
			return notFound("reservation %d not found", reservationID)
		}
		if err != nil {
			return err
		}
		equipmentID = r.EquipmentID
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	logger = logger.With("equipment_id", equipmentID)
	unlock := s.locks.Lock(equipmentID)
	defer unlock()

	var snap Snapshot
	err = s.withRetry(ctx, logger, func() error {
		return s.store.Transaction(ctx, func(tx store.Store) error {
			m := s.newMachine(tx, equipmentID, logger)
			if err := m.cancel(ctx, reservationID); err != nil {
				return err
			}
			var err error
			snap, err = m.settle(ctx)
			return err
		})
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) newMachine(tx store.Store, equipmentID int64, logger *slog.Logger) *machine {
	return &machine{
		tx:          tx,
		now:         s.now(),
		opts:        s.opts,
		logger:      logger,
		equipmentID: equipmentID,
	}
}

// withRetry runs fn, and once more on a store failure with state re-read by fn.
// Caller mistakes are returned as they are. A second failure is marked Conflict or Unavailable.
func (s *Service) withRetry(ctx context.Context, logger *slog.Logger, fn func() error) error {
	err := fn()
	if err == nil || isDomainError(err) {
		return err
	}
	if ctx.Err() != nil {
		return errors.Mark(errors.Wrap(ctx.Err(), "operation abandoned"), ErrUnavailable)
	}

	logger.Warn("retrying after store failure", "error", err)
	err = fn()
	if err == nil || isDomainError(err) {
		return err
	}
	if store.IsKind(err, store.KindConflict) {
		logger.Error("conflict persisted after retry", "error", err)
		return errors.Mark(errors.Wrap(err, "conflicting update"), ErrConflict)
	}
	logger.Error("store unavailable after retry", "error", err)
	return errors.Mark(errors.Wrap(err, "store unavailable"), ErrUnavailable)
}

func eventName(ev Event) string {
	switch ev.(type) {
	case Create:
		return "CREATE"
	case Arrive:
		return string(EventArrive)
	case StartExercise:
		return string(EventStartExercise)
	case EndExercise:
		return string(EventEndExercise)
	case Late:
		return string(EventLate)
	}
	return "UNKNOWN"
}
