package model

import (
	"fmt"
	"strings"
	"time"
)

// LatePolicy decides what happens to a reservation whose holder does not arrive in time.
type LatePolicy string

const (
	LatePolicyDrop       LatePolicy = "DROP"
	LatePolicyMoveToNext LatePolicy = "MOVE_TO_NEXT"
)

// ParseLatePolicy accepts the canonical names plus the legacy SKIP/CANCELLED spelling of DROP.
func ParseLatePolicy(s string) (LatePolicy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DROP", "SKIP", "CANCELLED":
		return LatePolicyDrop, nil
	case "MOVE_TO_NEXT", "MOVETONEXT":
		return LatePolicyMoveToNext, nil
	}
	return "", fmt.Errorf("unknown late policy %q", s)
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusWaiting    ReservationStatus = "WAITING"
	StatusInProgress ReservationStatus = "IN_PROGRESS"
	StatusOneSkipped ReservationStatus = "ONE_SKIPPED"
	StatusSkipped    ReservationStatus = "SKIPPED"
	StatusCompleted  ReservationStatus = "COMPLETED"
	StatusCancelled  ReservationStatus = "CANCELLED"
)

// IsQueued reports whether the status places a reservation in the waiting line.
func (s ReservationStatus) IsQueued() bool {
	return s == StatusWaiting || s == StatusOneSkipped
}

// IsTerminal reports whether no further transition is possible.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case StatusSkipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Reservation is one person's claim on one equipment unit. InvitedAt is when it
// became head of an idle equipment's line; lateness deadlines are measured from it.
type Reservation struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	UserID         int64             `gorm:"not null;index" json:"userId"`
	EquipmentID    int64             `gorm:"not null;index:idx_reservation_queue,priority:1" json:"equipmentId"`
	DesiredMinutes int               `gorm:"not null" json:"desiredMinutes"`
	LatePolicy     LatePolicy        `gorm:"size:16;not null" json:"latePolicy"`
	Status         ReservationStatus `gorm:"size:16;not null;index:idx_reservation_queue,priority:2" json:"status"`
	ReservedAt     time.Time         `gorm:"not null" json:"reservedAt"`
	EstimatedStart time.Time         `gorm:"not null" json:"estimatedStart"`
	InvitedAt      *time.Time        `json:"invitedAt,omitempty"`
	IsActive       bool              `gorm:"not null;default:true" json:"isActive"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Less orders two queued reservations: reservedAt ascending, then id ascending.
func (r Reservation) Less(o Reservation) bool {
	if !r.ReservedAt.Equal(o.ReservedAt) {
		return r.ReservedAt.Before(o.ReservedAt)
	}
	return r.ID < o.ID
}

// Desired returns the intended usage length as a duration.
func (r Reservation) Desired() time.Duration {
	return time.Duration(r.DesiredMinutes) * time.Minute
}
