package migrations

import (
	"context"
	"testing"

	"decal_manager/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	logger := zaptest.NewLogger(t)

	require.NoError(t, SeedCatalog(ctx, store, logger))

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(seedProducts))

	slots, err := store.Scheduling().ListSlots(ctx)
	require.NoError(t, err)
	assert.Len(t, slots, len(seedSlots))

	employees, err := store.Employees().List(ctx)
	require.NoError(t, err)
	require.Len(t, employees, len(seedEmployees))
	for _, e := range employees {
		assert.True(t, e.IsActive, e.FullName)
	}

	skus := make(map[uint]string, len(products))
	for _, p := range products {
		skus[p.ID] = p.SKU
	}
	// Ids are handed out in seed order, so the first service follows the products.
	hood, err := store.Catalog().GetService(ctx, uint(len(seedProducts))+1)
	require.NoError(t, err)
	assert.Equal(t, "Hood wrap", hood.Name)
	assert.Equal(t, "2", hood.StandardWorkUnits.String())

	components, err := store.Catalog().ListComponents(ctx, hood.ID)
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, "VNL-GLS-BLK", skus[components[0].ProductID])
	assert.Equal(t, 3, components[0].QuantityPerUnit)
}

func TestSeedCatalogIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, SeedCatalog(ctx, store, nil))
	require.NoError(t, SeedCatalog(ctx, store, nil))

	products, err := store.Products().List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(seedProducts))

	employees, err := store.Employees().List(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, len(seedEmployees))
}
