package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/cache"
	"gitlab.connectwisedev.com/backoffice-service/pkg/pack"
	"gitlab.connectwisedev.com/backoffice-service/pkg/storage/memory"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newService(t *testing.T) (*Service, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := memory.New()
	svc := NewService(store, pack.NewEngine(), WithCache(cache.NewProductCache(client, time.Minute, nil)))
	return svc, store, mr
}

func TestBuildProductDetectsAlcoholAndConvertsUnitPrices(t *testing.T) {
	p, err := BuildProduct(ProductInput{
		Name:      "Castle Lager 340ml",
		UnitPrice: d("4.50"),
		CostPrice: d("2.50"),
	}, pack.NewEngine())
	require.NoError(t, err)

	assert.True(t, p.IsSixPack)
	assert.Equal(t, 6, p.PackQuantity)
	assert.True(t, p.UnitPrice.Equal(d("27.00")))
	assert.True(t, p.CostPrice.Equal(d("15.00")))
	assert.Equal(t, models.ProductActive, p.Status)
	assert.Equal(t, models.DefaultMinimumStockLevel, p.MinimumStockLevel)
}

func TestBuildProductKeepsPackPricesAtOrAboveCeiling(t *testing.T) {
	p, err := BuildProduct(ProductInput{Name: "Heineken Lager", UnitPrice: d("120.00"), CostPrice: d("80.00")}, pack.NewEngine())
	require.NoError(t, err)
	assert.True(t, p.IsSixPack)
	assert.True(t, p.UnitPrice.Equal(d("120.00")))
}

func TestBuildProductExplicitFlagWins(t *testing.T) {
	p, err := BuildProduct(ProductInput{Name: "Craft Beer", UnitPrice: d("25.00"), IsSixPack: true, PackQuantity: 4}, pack.NewEngine())
	require.NoError(t, err)
	assert.Equal(t, 4, p.PackQuantity)
	assert.True(t, p.UnitPrice.Equal(d("25.00")))
}

func TestBuildProductClampsAndValidates(t *testing.T) {
	negative := -5
	p, err := BuildProduct(ProductInput{Name: "Beef Burger", UnitPrice: d("80"), StockLevel: -3, MinimumStockLevel: &negative}, pack.NewEngine())
	require.NoError(t, err)
	assert.False(t, p.IsSixPack)
	assert.Equal(t, 0, p.StockLevel)
	assert.Equal(t, 0, p.MinimumStockLevel)

	_, err = BuildProduct(ProductInput{Name: "  "}, pack.NewEngine())
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = BuildProduct(ProductInput{Name: "Pie", UnitPrice: d("-1")}, pack.NewEngine())
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestListActiveReadsThroughCache(t *testing.T) {
	svc, store, mr := newService(t)
	ctx := context.Background()

	burger, err := svc.Create(ctx, ProductInput{Name: "Beef Burger", UnitPrice: d("80"), StockLevel: 20})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ProductInput{Name: "Chips", UnitPrice: d("25"), StockLevel: 20})
	require.NoError(t, err)

	products, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.True(t, mr.Exists("all_product_ids"))

	// A write that bypasses the service is invisible until the cache is dropped.
	_, err = store.AdjustStock(ctx, burger.ID, -5)
	require.NoError(t, err)
	cached, err := svc.ListActive(ctx)
	require.NoError(t, err)
	for _, p := range cached {
		if p.ID == burger.ID {
			assert.Equal(t, 20, p.StockLevel)
		}
	}

	_, err = svc.Retire(ctx, burger.ID)
	require.NoError(t, err)
	products, err = svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Chips", products[0].Name)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateDoesNotRescalePrices(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, ProductInput{Name: "House Snack", UnitPrice: d("30")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, ProductInput{Name: "House Snack", Description: "served with cider", UnitPrice: d("30")})
	require.NoError(t, err)
	assert.True(t, updated.IsSixPack)
	assert.True(t, updated.UnitPrice.Equal(d("30")))

	_, err = svc.Update(ctx, "missing", ProductInput{Name: "x"})
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

// checkoutOnRead deducts units right after the product is read, the way a
// checkout committing between a read and a write would.
type checkoutOnRead struct {
	*memory.Store
	units int
}

func (s *checkoutOnRead) GetProduct(ctx context.Context, id string) (models.Product, error) {
	p, err := s.Store.GetProduct(ctx, id)
	if err == nil && s.units > 0 {
		_, err = s.Store.AdjustStock(ctx, id, -s.units)
		s.units = 0
	}
	return p, err
}

func TestUpdateKeepsConcurrentStockMoves(t *testing.T) {
	store := &checkoutOnRead{Store: memory.New()}
	svc := NewService(store, pack.NewEngine())
	ctx := context.Background()

	burger, err := svc.Create(ctx, ProductInput{Name: "Beef Burger", UnitPrice: d("80"), StockLevel: 100})
	require.NoError(t, err)

	store.units = 60
	updated, err := svc.Update(ctx, burger.ID, ProductInput{Name: "Beef Burger", UnitPrice: d("85")})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.StockLevel)
	assert.True(t, updated.UnitPrice.Equal(d("85")))

	stored, err := store.Store.GetProduct(ctx, burger.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.StockLevel)
	assert.Equal(t, models.ProductActive, stored.Status)
}

func TestRetireKeepsStockLevel(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	burger, err := svc.Create(ctx, ProductInput{Name: "Beef Burger", UnitPrice: d("80"), StockLevel: 100})
	require.NoError(t, err)
	_, err = store.AdjustStock(ctx, burger.ID, -60)
	require.NoError(t, err)

	retired, err := svc.Retire(ctx, burger.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProductRetired, retired.Status)
	assert.Equal(t, 40, retired.StockLevel)

	again, err := svc.Retire(ctx, burger.ID)
	require.NoError(t, err)
	assert.Equal(t, retired.UpdatedAt, again.UpdatedAt)

	_, err = svc.Retire(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestViews(t *testing.T) {
	svc, _, _ := newService(t)
	views := svc.Views([]models.Product{{Name: "Lager", UnitPrice: d("25.00"), CostPrice: d("15.00"), IsSixPack: true, PackQuantity: 6, StockLevel: 3, MinimumStockLevel: 10}})

	require.Len(t, views, 1)
	assert.Equal(t, "Low Stock", views[0].StockStatus)
	assert.True(t, views[0].Metrics.UnitPrice.Equal(d("4.17")))
}

func TestImportCSV(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{Name: "Beef Burger", UnitPrice: d("80"), StockLevel: 5})
	require.NoError(t, err)

	csvData := strings.Join([]string{
		"name,description,price,cost,qty,min_stock,is_six_pack,pack_quantity",
		"Beef Burger,,85.00,40.00,30,5,false,",
		"Castle Lager,,4.50,2.50,120,,,",
		"Broken Row,,abc,1,1,,,",
		",,10,1,1,,,",
		"Red Wine Case,,300,180,12,,true,12",
	}, "\n")

	result, err := svc.ImportCSV(ctx, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Len(t, result.Imported, 3)
	require.Len(t, result.Skipped, 2)
	lines := []int{result.Skipped[0].Line, result.Skipped[1].Line}
	assert.ElementsMatch(t, []int{4, 5}, lines)

	all, err := store.ListProducts(ctx, true)
	require.NoError(t, err)
	byName := map[string]models.Product{}
	for _, p := range all {
		byName[p.Name] = p
	}
	assert.Len(t, byName, 3)
	assert.Equal(t, 30, byName["Beef Burger"].StockLevel)
	assert.True(t, byName["Beef Burger"].UnitPrice.Equal(d("85.00")))
	assert.True(t, byName["Castle Lager"].IsSixPack)
	assert.True(t, byName["Castle Lager"].UnitPrice.Equal(d("27.00")))
	assert.Equal(t, 12, byName["Red Wine Case"].PackQuantity)
}

func TestImportCSVRejectsBadFiles(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.ImportCSV(ctx, strings.NewReader("name,price\n"))
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	_, err = svc.ImportCSV(ctx, strings.NewReader("name,qty\nBurger,1\n"))
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}
