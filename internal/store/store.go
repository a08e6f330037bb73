package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gymqueue-backend/internal/model"
)

// EquipmentFilter narrows ListEquipment. Empty fields match everything.
type EquipmentFilter struct {
	GymName string
	Type    string
}

// Store is the reservation store the queue engine runs against.
type Store interface {
	FindEquipment(ctx context.Context, id int64) (*model.Equipment, error)
	ListEquipment(ctx context.Context, filter EquipmentFilter) ([]model.Equipment, error)
	CreateEquipment(ctx context.Context, e *model.Equipment) error

	FindReservation(ctx context.Context, id int64) (*model.Reservation, error)
	// FindOccupant returns the active IN_PROGRESS reservation of an equipment, or nil.
	FindOccupant(ctx context.Context, equipmentID int64) (*model.Reservation, error)
	// ListQueued returns active WAITING/ONE_SKIPPED reservations ordered by reserved_at, id.
	ListQueued(ctx context.Context, equipmentID int64) ([]model.Reservation, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	SetEstimatedStart(ctx context.Context, id int64, at time.Time) error

	OpenUsage(ctx context.Context, u *model.Usage) error
	FindOpenUsage(ctx context.Context, equipmentID int64) (*model.Usage, error)
	CloseUsage(ctx context.Context, id int64, end time.Time) error
	ListClosedUsageByUser(ctx context.Context, userID int64) ([]model.Usage, error)

	// Transaction runs fn against a Store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) FindEquipment(ctx context.Context, id int64) (*model.Equipment, error) {
	var e model.Equipment
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, wrap(err, fmt.Sprintf("find equipment %d", id))
	}
	return &e, nil
}

func (s *gormStore) ListEquipment(ctx context.Context, filter EquipmentFilter) ([]model.Equipment, error) {
	q := s.db.WithContext(ctx).Where("is_active = ?", true)
	if filter.GymName != "" {
		q = q.Where("gym_name = ?", filter.GymName)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}

	var equipment []model.Equipment
	if err := q.Order("type ASC").Order("id ASC").Find(&equipment).Error; err != nil {
		return nil, wrap(err, "list equipment")
	}
	return equipment, nil
}

func (s *gormStore) CreateEquipment(ctx context.Context, e *model.Equipment) error {
	return wrap(s.db.WithContext(ctx).Create(e).Error, "create equipment")
}

func (s *gormStore) FindReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	var r model.Reservation
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, wrap(err, fmt.Sprintf("find reservation %d", id))
	}
	return &r, nil
}

func (s *gormStore) FindOccupant(ctx context.Context, equipmentID int64) (*model.Reservation, error) {
	var occupants []model.Reservation
	err := s.db.WithContext(ctx).
		Where("equipment_id = ? AND status = ? AND is_active = ?", equipmentID, model.StatusInProgress, true).
		Order("id ASC").
		Find(&occupants).Error
	if err != nil {
		return nil, wrap(err, fmt.Sprintf("find occupant of equipment %d", equipmentID))
	}
	switch len(occupants) {
	case 0:
		return nil, nil
	case 1:
		return &occupants[0], nil
	default:
		return nil, conflict(fmt.Sprintf("equipment %d has %d occupants", equipmentID, len(occupants)))
	}
}

func (s *gormStore) ListQueued(ctx context.Context, equipmentID int64) ([]model.Reservation, error) {
	var queued []model.Reservation
	err := s.db.WithContext(ctx).
		Where("equipment_id = ? AND status IN ? AND is_active = ?",
			equipmentID, []model.ReservationStatus{model.StatusWaiting, model.StatusOneSkipped}, true).
		Order("reserved_at ASC").
		Order("id ASC").
		Find(&queued).Error
	if err != nil {
		return nil, wrap(err, fmt.Sprintf("list queue of equipment %d", equipmentID))
	}
	return queued, nil
}

func (s *gormStore) ListActiveByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	var reservations []model.Reservation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND status IN ?", userID, true,
			[]model.ReservationStatus{model.StatusWaiting, model.StatusOneSkipped, model.StatusInProgress}).
		Order("reserved_at ASC").
		Order("id ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, wrap(err, fmt.Sprintf("list reservations of user %d", userID))
	}
	return reservations, nil
}

func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation) error {
	return wrap(s.db.WithContext(ctx).Create(r).Error, "create reservation")
}

func (s *gormStore) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	res := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"status":          r.Status,
			"reserved_at":     r.ReservedAt,
			"estimated_start": r.EstimatedStart,
			"is_active":       r.IsActive,
			"invited_at":      r.InvitedAt,
		})
	if res.Error != nil {
		return wrap(res.Error, fmt.Sprintf("update reservation %d", r.ID))
	}
	if res.RowsAffected == 0 {
		return notFound(fmt.Sprintf("reservation %d", r.ID))
	}
	return nil
}

func (s *gormStore) SetEstimatedStart(ctx context.Context, id int64, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ?", id).
		Update("estimated_start", at).Error
	return wrap(err, fmt.Sprintf("set estimated start of reservation %d", id))
}

func (s *gormStore) OpenUsage(ctx context.Context, u *model.Usage) error {
	return wrap(s.db.WithContext(ctx).Create(u).Error, "open usage")
}

func (s *gormStore) FindOpenUsage(ctx context.Context, equipmentID int64) (*model.Usage, error) {
	var usages []model.Usage
	err := s.db.WithContext(ctx).
		Where("equipment_id = ? AND end_time IS NULL", equipmentID).
		Order("start_time DESC").
		Limit(1).
		Find(&usages).Error
	if err != nil {
		return nil, wrap(err, fmt.Sprintf("find open usage of equipment %d", equipmentID))
	}
	if len(usages) == 0 {
		return nil, nil
	}
	return &usages[0], nil
}

// CloseUsage sets end_time once. Closing an already closed record is a conflict.
func (s *gormStore) CloseUsage(ctx context.Context, id int64, end time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Usage{}).
		Where("id = ? AND end_time IS NULL", id).
		Update("end_time", end)
	if res.Error != nil {
		return wrap(res.Error, fmt.Sprintf("close usage %d", id))
	}
	if res.RowsAffected == 0 {
		return conflict(fmt.Sprintf("usage %d is not open", id))
	}
	return nil
}

func (s *gormStore) ListClosedUsageByUser(ctx context.Context, userID int64) ([]model.Usage, error) {
	var usages []model.Usage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND end_time IS NOT NULL", userID).
		Order("start_time DESC").
		Find(&usages).Error
	if err != nil {
		return nil, wrap(err, fmt.Sprintf("list usage of user %d", userID))
	}
	return usages, nil
}
