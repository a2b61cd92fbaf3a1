package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/app"
	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
	"github.com/uteshop/uteshop-api/internal/platform/token"
	"github.com/uteshop/uteshop-api/internal/store/memory"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := app.MemoryRepos(memory.New())
	svc := app.NewServices(repos, app.Adapters{
		Tokens:   token.NewJWTService("a", "b", time.Hour, time.Hour),
		Revoker:  token.NewMemoryRevoker(),
		Throttle: memory.NewThrottle(),
	}, app.Settings{}, logging.Discard())

	first, err := seed(ctx, svc, repos, demoCatalog)
	require.NoError(t, err)
	assert.Equal(t, seedReport{
		Brands:     len(demoCatalog.Brands),
		Categories: len(demoCatalog.Categories),
		Products:   len(demoCatalog.Products),
		Vouchers:   len(demoCatalog.Vouchers),
	}, first)

	again, err := seed(ctx, svc, repos, demoCatalog)
	require.NoError(t, err)
	assert.Zero(t, again)

	products, err := svc.Products.AdminList(ctx, core.ProductFilter{Page: core.Page{Page: 1, Limit: 50}})
	require.NoError(t, err)
	assert.EqualValues(t, len(demoCatalog.Products), products.Total)
	for _, p := range products.Items {
		assert.NotEmpty(t, p.BrandID, p.Name)
		assert.NotEmpty(t, p.CategoryID, p.Name)
	}

	v, err := repos.Vouchers.GetByCode(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.True(t, v.EndDate.After(v.StartDate))

	cfg, err := repos.PointsConfig.Get(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.UpdatedAt.IsZero())
	assert.Equal(t, core.DefaultPointsConfig().PointsValue, cfg.PointsValue)
}

func TestFindByNameIgnoresCase(t *testing.T) {
	brands := []core.Brand{{ID: "b1", Name: "Dior"}, {ID: "b2", Name: "Chanel"}}
	key := func(b core.Brand) (string, string) { return b.ID, b.Name }
	assert.Equal(t, "b2", findByName(brands, "chanel", key))
	assert.Empty(t, findByName(brands, "Innisfree", key))
}
