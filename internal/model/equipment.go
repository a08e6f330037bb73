package model

import "time"

// Equipment represents a single shared machine in a gym. Each one has its own queue.
type Equipment struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Type      string    `gorm:"size:64;index" json:"type"`
	GymName   string    `gorm:"size:128;index" json:"gymName"`
	ImageURL  string    `gorm:"size:512" json:"imageUrl,omitempty"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
