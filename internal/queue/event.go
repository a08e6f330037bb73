package queue

import (
	"fmt"
	"strings"

	"gymqueue-backend/internal/model"
)

// EventType names a real-world event reported against an equipment.
type EventType string

const (
	EventArrive        EventType = "ARRIVE"
	EventStartExercise EventType = "START_EXERCISE"
	EventEndExercise   EventType = "END_EXERCISE"
	EventLate          EventType = "LATE"
)

// ParseEventType accepts the event names case-insensitively.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EventArrive, EventStartExercise, EventEndExercise, EventLate:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Event is one request to the dispatcher. The concrete types below are the only implementations.
type Event interface {
	Equipment() int64
	isEvent()
}

// Create asks for a new reservation.
type Create struct {
	UserID         int64
	EquipmentID    int64
	DesiredMinutes int
	LatePolicy     model.LatePolicy
}

// Arrive confirms that the invited head of the line is at the equipment.
type Arrive struct{ EquipmentID int64 }

// StartExercise is an idempotence probe for the current occupant.
type StartExercise struct{ EquipmentID int64 }

// EndExercise finishes the current occupant's session and invites the next user.
type EndExercise struct{ EquipmentID int64 }

// Late reports that the invited head did not arrive in time. When Head is set the
// event only applies while that reservation is still the invited head and past its
// deadline; otherwise it is a no-op.
type Late struct {
	EquipmentID int64
	Head        int64
}

func (e Create) Equipment() int64        { return e.EquipmentID }
func (e Arrive) Equipment() int64        { return e.EquipmentID }
func (e StartExercise) Equipment() int64 { return e.EquipmentID }
func (e EndExercise) Equipment() int64   { return e.EquipmentID }
func (e Late) Equipment() int64          { return e.EquipmentID }

func (Create) isEvent()        {}
func (Arrive) isEvent()        {}
func (StartExercise) isEvent() {}
func (EndExercise) isEvent()   {}
func (Late) isEvent()          {}

// NewEvent builds the typed event for a reported event type.
func NewEvent(equipmentID int64, t EventType) (Event, error) {
	switch t {
	case EventArrive:
		return Arrive{EquipmentID: equipmentID}, nil
	case EventStartExercise:
		return StartExercise{EquipmentID: equipmentID}, nil
	case EventEndExercise:
		return EndExercise{EquipmentID: equipmentID}, nil
	case EventLate:
		return Late{EquipmentID: equipmentID}, nil
	}
	return nil, invalidInput("unknown event type %q", t)
}

func (e Create) validate() error {
	if e.UserID <= 0 {
		return invalidInput("userId must be positive, got %d", e.UserID)
	}
	if e.EquipmentID <= 0 {
		return invalidInput("equipmentId must be positive, got %d", e.EquipmentID)
	}
	if e.DesiredMinutes <= 0 {
		return invalidInput("desiredMinutes must be positive, got %d", e.DesiredMinutes)
	}
	switch e.LatePolicy {
	case model.LatePolicyDrop, model.LatePolicyMoveToNext:
	default:
		return invalidInput("unknown late policy %q", e.LatePolicy)
	}
	return nil
}
