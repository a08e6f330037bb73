// Package usage reports on finished and running occupancy intervals.
package usage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gymqueue-backend/internal/clock"
	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/store"
)

// EquipmentStat is one user's accumulated time on one equipment.
type EquipmentStat struct {
	EquipmentID   int64  `json:"equipmentId"`
	EquipmentName string `json:"equipmentName"`
	EquipmentType string `json:"equipmentType"`
	TotalMinutes  int    `json:"totalMinutes"`
	Sessions      int    `json:"sessions"`
}

// Current is the running session of an equipment.
type Current struct {
	Usage            model.Usage `json:"usage"`
	UserID           int64       `json:"userId"`
	TotalMinutes     int         `json:"totalMinutes"`
	RemainingMinutes int         `json:"remainingMinutes"`
}

type Service struct {
	store store.Store
	clock clock.Clock
}

func NewService(s store.Store, c clock.Clock) *Service {
	return &Service{store: s, clock: c}
}

// History returns the user's finished sessions, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]model.Usage, error) {
	usages, err := s.store.ListClosedUsageByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if usages == nil {
		usages = []model.Usage{}
	}
	return usages, nil
}

// Stats sums whole minutes per equipment over the user's finished sessions.
// Each session is floored to whole minutes before summing.
func (s *Service) Stats(ctx context.Context, userID int64) ([]EquipmentStat, error) {
	usages, err := s.store.ListClosedUsageByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byEquipment := make(map[int64]*EquipmentStat)
	for _, u := range usages {
		st, ok := byEquipment[u.EquipmentID]
		if !ok {
			st = &EquipmentStat{EquipmentID: u.EquipmentID}
			e, err := s.store.FindEquipment(ctx, u.EquipmentID)
			switch {
			case err == nil:
				st.EquipmentName, st.EquipmentType = e.Name, e.Type
			case store.IsKind(err, store.KindNotFound):
				st.EquipmentName = fmt.Sprintf("equipment %d", u.EquipmentID)
			default:
				return nil, err
			}
			byEquipment[u.EquipmentID] = st
		}
		st.TotalMinutes += int(u.EndTime.Sub(u.StartTime) / time.Minute)
		st.Sessions++
	}

	stats := make([]EquipmentStat, 0, len(byEquipment))
	for _, st := range byEquipment {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].EquipmentName != stats[j].EquipmentName {
			return stats[i].EquipmentName < stats[j].EquipmentName
		}
		return stats[i].EquipmentID < stats[j].EquipmentID
	})
	return stats, nil
}

// Current returns the open session on an equipment, or nil when it is idle.
func (s *Service) Current(ctx context.Context, equipmentID int64) (*Current, error) {
	u, err := s.store.FindOpenUsage(ctx, equipmentID)
	if err != nil || u == nil {
		return nil, err
	}
	r, err := s.store.FindReservation(ctx, u.ReservationID)
	if err != nil {
		return nil, err
	}

	left := r.Desired() - s.clock.Now().Sub(u.StartTime)
	if left < 0 {
		left = 0
	}
	return &Current{
		Usage:            *u,
		UserID:           u.UserID,
		TotalMinutes:     r.DesiredMinutes,
		RemainingMinutes: int(left / time.Minute),
	}, nil
}
