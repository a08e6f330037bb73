package model

import "time"

// Usage is the concrete occupancy interval of a reservation that reached IN_PROGRESS.
// Rows are append-only: once EndTime is set the row is never written again.
type Usage struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	ReservationID int64      `gorm:"not null;uniqueIndex" json:"reservationId"`
	UserID        int64      `gorm:"not null;index" json:"userId"`
	EquipmentID   int64      `gorm:"not null;index" json:"equipmentId"`
	StartTime     time.Time  `gorm:"not null" json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
}

// IsOpen reports whether the occupancy interval is still running.
func (u Usage) IsOpen() bool {
	return u.EndTime == nil
}
