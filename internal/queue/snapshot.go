package queue

import (
	"time"

	"gymqueue-backend/internal/model"
)

// WarningCode classifies a non-fatal observation attached to a snapshot.
type WarningCode string

const (
	// WarningInconsistent flags an event that did not match the stored state.
	WarningInconsistent WarningCode = "INCONSISTENT"
	// WarningNoOp flags an event that had nothing to act on.
	WarningNoOp WarningCode = "NO_OP"
)

type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// Snapshot is the current occupant plus the ordered waiting line of one equipment.
type Snapshot struct {
	EquipmentID  int64               `json:"equipmentId"`
	CurrentUser  *model.Reservation  `json:"currentUser"`
	WaitingUsers []model.Reservation `json:"waitingUsers"`
	// InvitedDeadline is set when the equipment is free and the head of the line
	// is expected: past it, the caller reports LATE.
	InvitedDeadline *time.Time `json:"invitedDeadline"`
	GraceEndsAt     *time.Time `json:"graceEndsAt"`
	Warnings        []Warning  `json:"warnings,omitempty"`
	GeneratedAt     time.Time  `json:"generatedAt"`
}

// Head returns the first waiting reservation, if any.
func (s Snapshot) Head() *model.Reservation {
	if len(s.WaitingUsers) == 0 {
		return nil
	}
	return &s.WaitingUsers[0]
}

// Overdue reports whether the invited head has passed its lateness deadline at now.
func (s Snapshot) Overdue(now time.Time) bool {
	return s.InvitedDeadline != nil && now.After(*s.InvitedDeadline)
}

// Result is what Dispatch returns: the snapshot and, for Create, the new reservation.
type Result struct {
	Reservation *model.Reservation
	Snapshot    Snapshot
}
