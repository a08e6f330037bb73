package queue

import (
	"slices"
	"time"

	"gymqueue-backend/internal/model"
)

// Occupancy is the current user of an equipment and when they started.
type Occupancy struct {
	Reservation model.Reservation
	StartedAt   time.Time
}

// Remaining returns how much of the occupant's desired time is left at now, floored at zero.
func (o Occupancy) Remaining(now time.Time) time.Duration {
	left := o.Reservation.Desired() - now.Sub(o.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// SortQueue orders queued reservations by reservedAt, ties broken by id. It sorts in place.
func SortQueue(queued []model.Reservation) {
	slices.SortStableFunc(queued, func(a, b model.Reservation) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
}

// Recompute returns a sorted copy of queued with EstimatedStart assigned.
// The head starts when the occupant's remaining time runs out (or now, with no
// occupant); each later entry starts after the desired minutes of those ahead.
// Only EstimatedStart is touched.
func Recompute(now time.Time, occupant *Occupancy, queued []model.Reservation) []model.Reservation {
	ordered := slices.Clone(queued)
	SortQueue(ordered)

	next := now
	if occupant != nil {
		next = now.Add(occupant.Remaining(now))
	}
	for i := range ordered {
		ordered[i].EstimatedStart = next
		next = next.Add(ordered[i].Desired())
	}
	return ordered
}
