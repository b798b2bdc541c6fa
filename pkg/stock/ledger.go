// Package stock owns every change to product stock levels.
package stock

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/money"
	"gitlab.connectwisedev.com/backoffice-service/pkg/pack"
)

// Store is the product persistence the ledger adjusts.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context, includeRetired bool) ([]models.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

// Invalidator drops cached products after their stock moves.
type Invalidator interface {
	Invalidate(ctx context.Context, productIDs ...string) error
}

// Ledger is the only writer of stock levels after a product is created.
type Ledger struct {
	store  Store
	engine *pack.Engine
	cache  Invalidator
	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCache invalidates c after every committed adjustment.
func WithCache(c Invalidator) Option {
	return func(l *Ledger) { l.cache = c }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger builds a ledger over store.
func NewLedger(store Store, engine *pack.Engine, opts ...Option) *Ledger {
	l := &Ledger{store: store, engine: engine, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Adjust applies delta to the product's stock level and returns the new
// level. It fails with ErrInsufficientStock, leaving the level untouched, if
// the result would be negative. Adjust joins the caller's transaction when ctx
// carries one and leaves cache invalidation to the caller.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int) (int, error) {
	if productID == "" {
		return 0, models.ErrInvalidID
	}
	if delta == 0 {
		p, err := l.store.GetProduct(ctx, productID)
		if err != nil {
			return 0, err
		}
		return p.StockLevel, nil
	}
	return l.store.AdjustStock(ctx, productID, delta)
}

// Reserve takes units out of stock.
func (l *Ledger) Reserve(ctx context.Context, productID string, units int) (int, error) {
	if units <= 0 {
		return 0, fmt.Errorf("%w: reserve %d units", models.ErrInvalidQuantity, units)
	}
	return l.Adjust(ctx, productID, -units)
}

// Return puts units back into stock.
func (l *Ledger) Return(ctx context.Context, productID string, units int) (int, error) {
	if units <= 0 {
		return 0, fmt.Errorf("%w: return %d units", models.ErrInvalidQuantity, units)
	}
	return l.Adjust(ctx, productID, units)
}

// SellPacks deducts whole packs of a pack product and returns the number of
// units removed.
func (l *Ledger) SellPacks(ctx context.Context, productID string, packs int) (int, error) {
	if packs <= 0 {
		return 0, fmt.Errorf("%w: sell %d packs", models.ErrInvalidQuantity, packs)
	}

	var units int
	err := l.store.WithTx(ctx, func(ctx context.Context) error {
		p, err := l.store.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !p.IsActive() {
			return fmt.Errorf("%w: %s", models.ErrProductInactive, p.Name)
		}
		if !p.IsSixPack {
			return fmt.Errorf("%w: %s", models.ErrNotPackProduct, p.Name)
		}
		units = l.engine.UnitsToDeduct(packs, true, p.PackQuantity)
		_, err = l.Reserve(ctx, productID, units)
		return err
	})
	if err != nil {
		return 0, err
	}
	l.Invalidate(ctx, productID)
	return units, nil
}

// SellUnits deducts single units and returns their price at the single-unit
// rate, derived from the pack price for pack products.
func (l *Ledger) SellUnits(ctx context.Context, productID string, units int) (decimal.Decimal, error) {
	if units <= 0 {
		return decimal.Zero, fmt.Errorf("%w: sell %d units", models.ErrInvalidQuantity, units)
	}

	var total decimal.Decimal
	err := l.store.WithTx(ctx, func(ctx context.Context) error {
		p, err := l.store.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !p.IsActive() {
			return fmt.Errorf("%w: %s", models.ErrProductInactive, p.Name)
		}
		if _, err := l.Reserve(ctx, productID, units); err != nil {
			return err
		}
		quote := l.engine.Quote(p, models.SaleUnitUnit)
		total, _, _ = quote.Line(units)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	l.Invalidate(ctx, productID)
	return total, nil
}

// LowStock lists active products at or below their minimum level, emptiest
// first.
func (l *Ledger) LowStock(ctx context.Context) ([]models.Product, error) {
	products, err := l.store.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	var low []models.Product
	for _, p := range products {
		if p.StockLevel <= p.MinimumStockLevel {
			low = append(low, p)
		}
	}
	sort.SliceStable(low, func(i, j int) bool { return low[i].StockLevel < low[j].StockLevel })
	return low, nil
}

// InventoryValue is the cost value of active stock: stock level times stored
// cost price, summed.
func (l *Ledger) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	products, err := l.store.ListProducts(ctx, false)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.CostPrice.Mul(decimal.NewFromInt(int64(p.StockLevel))))
	}
	return money.Round(total), nil
}

// Invalidate drops cached copies of the given products. Failures are logged.
func (l *Ledger) Invalidate(ctx context.Context, productIDs ...string) {
	if l.cache == nil || len(productIDs) == 0 {
		return
	}
	if err := l.cache.Invalidate(ctx, productIDs...); err != nil {
		l.logger.Warn("failed to invalidate product cache", zap.Strings("product_ids", productIDs), zap.Error(err))
	}
}
