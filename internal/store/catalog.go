package store

import (
	"context"

	"gymqueue-backend/internal/model"
)

// SeedCatalog creates every item that has no active equipment of the same name in
// the same gym. It returns how many rows were created.
func SeedCatalog(ctx context.Context, s Store, items []model.Equipment) (int, error) {
	created := 0
	err := s.Transaction(ctx, func(tx Store) error {
		for _, item := range items {
			existing, err := tx.ListEquipment(ctx, EquipmentFilter{GymName: item.GymName})
			if err != nil {
				return err
			}
			if containsName(existing, item.Name) {
				continue
			}
			e := item
			e.ID = 0
			e.IsActive = true
			if err := tx.CreateEquipment(ctx, &e); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func containsName(equipment []model.Equipment, name string) bool {
	for _, e := range equipment {
		if e.Name == name {
			return true
		}
	}
	return false
}
