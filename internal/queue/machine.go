package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/store"
)

// machine runs one transition against one equipment inside a single store transaction.
// A fresh machine is built for every attempt.
type machine struct {
	tx          store.Store
	now         time.Time
	opts        Options
	logger      *slog.Logger
	equipmentID int64
	warnings    []Warning
}

// state is what the store holds for one equipment at the start of a transition.
type state struct {
	occupant *model.Reservation
	usage    *model.Usage
	queued   []model.Reservation
}

func (m *machine) warn(code WarningCode, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	m.warnings = append(m.warnings, Warning{Code: code, Message: msg})
	if code == WarningInconsistent {
		m.logger.Warn("inconsistent event", "equipment_id", m.equipmentID, "detail", msg)
	} else {
		m.logger.Debug("event had no effect", "equipment_id", m.equipmentID, "detail", msg)
	}
}

func (m *machine) requireEquipment(ctx context.Context) error {
	e, err := m.tx.FindEquipment(ctx, m.equipmentID)
	if store.IsKind(err, store.KindNotFound) {
		return notFound("equipment %d not found", m.equipmentID)
	}
	if err != nil {
		return err
	}
	if !e.IsActive {
		return notFound("equipment %d is not active", m.equipmentID)
	}
	return nil
}

func (m *machine) load(ctx context.Context) (state, error) {
	var st state
	var err error
	if st.occupant, err = m.tx.FindOccupant(ctx, m.equipmentID); err != nil {
		return st, err
	}
	if st.usage, err = m.tx.FindOpenUsage(ctx, m.equipmentID); err != nil {
		return st, err
	}
	if st.queued, err = m.tx.ListQueued(ctx, m.equipmentID); err != nil {
		return st, err
	}
	return st, nil
}

// occupancy pairs the occupant with its usage start. A missing usage record falls
// back to the occupant's estimated start.
func (st state) occupancy() *Occupancy {
	if st.occupant == nil {
		return nil
	}
	o := &Occupancy{Reservation: *st.occupant, StartedAt: st.occupant.EstimatedStart}
	if st.usage != nil && st.usage.ReservationID == st.occupant.ID {
		o.StartedAt = st.usage.StartTime
	}
	return o
}

func (m *machine) run(ctx context.Context, ev Event) (Result, error) {
	if err := m.requireEquipment(ctx); err != nil {
		return Result{}, err
	}
	st, err := m.load(ctx)
	if err != nil {
		return Result{}, err
	}

	var created *model.Reservation
	switch e := ev.(type) {
	case Create:
		created, err = m.create(ctx, st, e)
	case Arrive:
		err = m.arrive(ctx, st)
	case StartExercise:
		m.startExercise(st)
	case EndExercise:
		err = m.endExercise(ctx, st)
	case Late:
		err = m.late(ctx, st, e)
	default:
		err = invalidInput("unsupported event %T", ev)
	}
	if err != nil {
		return Result{}, err
	}

	snap, err := m.settle(ctx)
	if err != nil {
		return Result{}, err
	}
	if created != nil {
		for _, r := range snap.WaitingUsers {
			if r.ID == created.ID {
				created.EstimatedStart = r.EstimatedStart
				created.InvitedAt = r.InvitedAt
			}
		}
	}
	return Result{Reservation: created, Snapshot: snap}, nil
}

func (m *machine) create(ctx context.Context, st state, e Create) (*model.Reservation, error) {
	r := &model.Reservation{
		UserID:         e.UserID,
		EquipmentID:    e.EquipmentID,
		DesiredMinutes: e.DesiredMinutes,
		LatePolicy:     e.LatePolicy,
		ReservedAt:     m.now,
		EstimatedStart: m.now,
		IsActive:       true,
	}

	if st.occupant == nil && len(st.queued) == 0 {
		r.Status = model.StatusInProgress
		if err := m.tx.CreateReservation(ctx, r); err != nil {
			return nil, err
		}
		if err := m.openUsage(ctx, r); err != nil {
			return nil, err
		}
		m.logger.Info("reservation started immediately", "equipment_id", m.equipmentID, "reservation_id", r.ID, "user_id", r.UserID)
		return r, nil
	}

	// Keep reservedAt strictly increasing along the line so a swap always changes order.
	r.Status = model.StatusWaiting
	if n := len(st.queued); n > 0 {
		if tail := st.queued[n-1].ReservedAt; !r.ReservedAt.After(tail) {
			r.ReservedAt = tail.Add(time.Microsecond)
		}
	}
	if err := m.tx.CreateReservation(ctx, r); err != nil {
		return nil, err
	}
	m.logger.Info("reservation queued", "equipment_id", m.equipmentID, "reservation_id", r.ID, "user_id", r.UserID, "position", len(st.queued)+1)
	return r, nil
}

func (m *machine) openUsage(ctx context.Context, r *model.Reservation) error {
	return m.tx.OpenUsage(ctx, &model.Usage{
		ReservationID: r.ID,
		UserID:        r.UserID,
		EquipmentID:   r.EquipmentID,
		StartTime:     m.now,
	})
}

func (m *machine) arrive(ctx context.Context, st state) error {
	if st.occupant != nil {
		m.warn(WarningNoOp, "equipment is in use by reservation %d", st.occupant.ID)
		return nil
	}
	if len(st.queued) == 0 {
		m.warn(WarningNoOp, "no reservation is waiting")
		return nil
	}

	head := st.queued[0]
	head.Status = model.StatusInProgress
	head.EstimatedStart = m.now
	head.InvitedAt = nil
	if err := m.tx.UpdateReservation(ctx, &head); err != nil {
		return err
	}
	if err := m.openUsage(ctx, &head); err != nil {
		return err
	}
	m.logger.Info("reservation arrived", "equipment_id", m.equipmentID, "reservation_id", head.ID, "user_id", head.UserID)
	return nil
}

func (m *machine) startExercise(st state) {
	if st.occupant == nil {
		m.warn(WarningInconsistent, "start reported but no reservation is in progress")
	}
}

func (m *machine) endExercise(ctx context.Context, st state) error {
	if st.occupant == nil {
		m.warn(WarningInconsistent, "end reported but no reservation is in progress")
		if st.usage != nil {
			m.warn(WarningInconsistent, "closing orphaned usage %d of reservation %d", st.usage.ID, st.usage.ReservationID)
			return m.tx.CloseUsage(ctx, st.usage.ID, m.now)
		}
		return nil
	}
	return m.complete(ctx, st)
}

// complete closes the occupant's usage and finalizes its reservation.
func (m *machine) complete(ctx context.Context, st state) error {
	occupant := *st.occupant
	if st.usage == nil || st.usage.ReservationID != occupant.ID {
		m.warn(WarningInconsistent, "reservation %d has no open usage record", occupant.ID)
	} else if err := m.tx.CloseUsage(ctx, st.usage.ID, m.now); err != nil {
		return err
	}

	occupant.Status = model.StatusCompleted
	occupant.IsActive = false
	if err := m.tx.UpdateReservation(ctx, &occupant); err != nil {
		return err
	}
	m.logger.Info("reservation completed", "equipment_id", m.equipmentID, "reservation_id", occupant.ID, "user_id", occupant.UserID)
	return nil
}

func (m *machine) late(ctx context.Context, st state, e Late) error {
	if st.occupant != nil {
		m.warn(WarningNoOp, "equipment is in use by reservation %d", st.occupant.ID)
		return nil
	}
	if len(st.queued) == 0 {
		m.warn(WarningNoOp, "no reservation is waiting")
		return nil
	}
	if e.Head != 0 {
		head := st.queued[0]
		if head.ID != e.Head {
			m.warn(WarningNoOp, "reservation %d is no longer at the head of the line", e.Head)
			return nil
		}
		if head.InvitedAt == nil || !m.now.After(head.InvitedAt.Add(m.opts.LateThreshold)) {
			m.warn(WarningNoOp, "reservation %d is not past its deadline", e.Head)
			return nil
		}
	}

	var successor *model.Reservation
	if len(st.queued) > 1 {
		successor = &st.queued[1]
	}
	res := ResolveLate(m.opts.PolicySource, st.queued[0], successor)
	for _, r := range res.Apply() {
		r.InvitedAt = nil
		if err := m.tx.UpdateReservation(ctx, &r); err != nil {
			return err
		}
	}
	m.logger.Info("late reservation resolved",
		"equipment_id", m.equipmentID,
		"reservation_id", res.Late.ID,
		"policy", res.Policy,
		"outcome", res.Outcome.String(),
		"skip_budget_spent", res.SkipBudgetSpent,
	)
	return nil
}

// cancel takes a reservation out of the line. Cancelling the occupant completes it.
func (m *machine) cancel(ctx context.Context, id int64) error {
	r, err := m.tx.FindReservation(ctx, id)
	if store.IsKind(err, store.KindNotFound) {
		return notFound("reservation %d not found", id)
	}
	if err != nil {
		return err
	}
	if !r.IsActive || r.Status.IsTerminal() {
		return notFound("reservation %d is not active", id)
	}
	if r.EquipmentID != m.equipmentID {
		return notFound("reservation %d moved off equipment %d", id, m.equipmentID)
	}

	if r.Status == model.StatusInProgress {
		st, err := m.load(ctx)
		if err != nil {
			return err
		}
		if st.occupant == nil || st.occupant.ID != r.ID {
			m.warn(WarningInconsistent, "reservation %d is in progress but not the occupant", r.ID)
			st.occupant = r
		}
		return m.complete(ctx, st)
	}

	r.Status = model.StatusCancelled
	r.IsActive = false
	r.InvitedAt = nil
	if err := m.tx.UpdateReservation(ctx, r); err != nil {
		return err
	}
	m.logger.Info("reservation cancelled", "equipment_id", m.equipmentID, "reservation_id", r.ID, "user_id", r.UserID)
	return nil
}

// settle re-reads the equipment, recomputes estimated starts, moves the invitation
// to the current head and builds the snapshot. Only changed rows are written.
func (m *machine) settle(ctx context.Context) (Snapshot, error) {
	st, err := m.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	stored := make(map[int64]model.Reservation, len(st.queued))
	for _, r := range st.queued {
		stored[r.ID] = r
	}

	ordered := Recompute(m.now, st.occupancy(), st.queued)
	for i := range ordered {
		r := &ordered[i]
		switch {
		case i == 0 && st.occupant == nil:
			if r.InvitedAt == nil {
				at := m.now
				r.InvitedAt = &at
			}
		default:
			r.InvitedAt = nil
		}

		before := stored[r.ID]
		switch {
		case (before.InvitedAt == nil) != (r.InvitedAt == nil):
			err = m.tx.UpdateReservation(ctx, r)
		case !before.EstimatedStart.Equal(r.EstimatedStart):
			err = m.tx.SetEstimatedStart(ctx, r.ID, r.EstimatedStart)
		}
		if err != nil {
			return Snapshot{}, err
		}
	}

	snap := buildSnapshot(m.equipmentID, m.now, m.opts, st.occupant, ordered)
	snap.Warnings = m.warnings
	return snap, nil
}

// buildSnapshot assembles the read model. ordered must already be sorted and estimated.
func buildSnapshot(equipmentID int64, now time.Time, opts Options, occupant *model.Reservation, ordered []model.Reservation) Snapshot {
	snap := Snapshot{
		EquipmentID:  equipmentID,
		CurrentUser:  occupant,
		WaitingUsers: ordered,
		GeneratedAt:  now,
	}
	if snap.WaitingUsers == nil {
		snap.WaitingUsers = []model.Reservation{}
	}
	if occupant == nil && len(ordered) > 0 && ordered[0].InvitedAt != nil {
		deadline := ordered[0].InvitedAt.Add(opts.LateThreshold)
		grace := ordered[0].InvitedAt.Add(opts.Grace)
		snap.InvitedDeadline = &deadline
		snap.GraceEndsAt = &grace
	}
	return snap
}
