package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/testdb"
)

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.Open(t))
	items := []model.Equipment{
		{Name: "Squat Rack 1", Type: "rack", GymName: "Downtown"},
		{Name: "Squat Rack 1", Type: "rack", GymName: "Uptown"},
		{Name: "Bench 1", Type: "bench", GymName: "Downtown"},
	}

	created, err := SeedCatalog(ctx, s, items)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	created, err = SeedCatalog(ctx, s, items)
	require.NoError(t, err)
	assert.Zero(t, created)

	downtown, err := s.ListEquipment(ctx, EquipmentFilter{GymName: "Downtown"})
	require.NoError(t, err)
	require.Len(t, downtown, 2)
	assert.Equal(t, "bench", downtown[0].Type)

	racks, err := s.ListEquipment(ctx, EquipmentFilter{Type: "rack"})
	require.NoError(t, err)
	assert.Len(t, racks, 2)
}
