// Package catalog manages product definitions: creation with pack detection,
// updates, soft retirement and the cached active listing.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/clock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/pack"
)

// Store is the product persistence the catalog needs.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateProduct(ctx context.Context, p models.Product) error
	UpdateProduct(ctx context.Context, p models.Product) (models.Product, error)
	RetireProduct(ctx context.Context, id string, at time.Time) (models.Product, error)
	UpsertProductByName(ctx context.Context, p models.Product) (models.Product, error)
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context, includeRetired bool) ([]models.Product, error)
}

// Cache is the read-through store for the active listing.
type Cache interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	SetAll(ctx context.Context, products []models.Product) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

// Service owns product definitions. Stock levels are only set on creation
// and import; afterwards they move through the stock ledger.
type Service struct {
	store  Store
	engine *pack.Engine
	cache  Cache
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the Redis read-through listing.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the system clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds a catalog over store.
func NewService(store Store, engine *pack.Engine, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: engine,
		clock:  clock.NewSystem(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	StockLevel        int             `json:"stock_level"` // creation only
	MinimumStockLevel *int            `json:"minimum_stock_level"`
	IsSixPack         bool            `json:"is_six_pack"`
	PackQuantity      int             `json:"pack_quantity"`
}

// singleUnitPriceCeiling is the price under which a newly detected alcoholic
// product is assumed to have been entered per unit rather than per pack.
var singleUnitPriceCeiling = decimal.NewFromInt(50)

// BuildProduct validates in and derives a new product from it. Products the
// engine recognises as alcoholic become six-packs, and their prices are
// scaled to pack prices when they look like single-unit prices.
func BuildProduct(in ProductInput, engine *pack.Engine) (models.Product, error) {
	p, err := applyInput(models.Product{Status: models.ProductActive}, in, engine)
	if err != nil {
		return models.Product{}, err
	}
	if !in.IsSixPack && p.IsSixPack && p.UnitPrice.LessThan(singleUnitPriceCeiling) {
		p.UnitPrice = engine.PackPrice(p.UnitPrice, p.PackQuantity)
		p.CostPrice = engine.PackCost(p.CostPrice, p.PackQuantity)
	}
	return p, nil
}

func applyInput(p models.Product, in ProductInput, engine *pack.Engine) (models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Product{}, models.NewError(models.KindValidation, "product name is required")
	}
	if in.UnitPrice.IsNegative() || in.CostPrice.IsNegative() {
		return models.Product{}, models.NewError(models.KindValidation, "prices must not be negative")
	}

	p.Name = name
	p.Description = nil
	if d := strings.TrimSpace(in.Description); d != "" {
		p.Description = &d
	}
	p.UnitPrice = in.UnitPrice.Round(2)
	p.CostPrice = in.CostPrice.Round(2)
	p.StockLevel = max(in.StockLevel, 0)
	p.MinimumStockLevel = models.DefaultMinimumStockLevel
	if in.MinimumStockLevel != nil {
		p.MinimumStockLevel = max(*in.MinimumStockLevel, 0)
	}
	p.IsSixPack = in.IsSixPack
	p.PackQuantity = pack.UnitsInPack(in.PackQuantity)

	if !p.IsSixPack && engine.IsAlcoholic(p.Name, p.DescriptionText()) {
		p.IsSixPack = true
		p.PackQuantity = models.DefaultPackQuantity
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, in ProductInput) (models.Product, error) {
	p, err := BuildProduct(in, s.engine)
	if err != nil {
		return models.Product{}, err
	}
	now := s.clock.Now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.store.CreateProduct(ctx, p); err != nil {
		return models.Product{}, err
	}
	s.invalidate(ctx, p.ID)
	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("name", p.Name), zap.Bool("six_pack", p.IsSixPack))
	return p, nil
}

// Update replaces the editable fields of an existing product. Prices are
// stored as given; only creation reinterprets single-unit prices. The stock
// level and status of the stored row are never touched.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (models.Product, error) {
	existing, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	p, err := applyInput(existing, in, s.engine)
	if err != nil {
		return models.Product{}, err
	}
	p.UpdatedAt = s.clock.Now()

	stored, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return models.Product{}, err
	}
	s.invalidate(ctx, stored.ID)
	return stored, nil
}

// Retire hides a product from the active catalog without deleting the rows
// that reference it.
func (s *Service) Retire(ctx context.Context, id string) (models.Product, error) {
	if id == "" {
		return models.Product{}, models.ErrInvalidID
	}
	p, err := s.store.RetireProduct(ctx, id, s.clock.Now())
	if err != nil {
		return models.Product{}, err
	}
	s.invalidate(ctx, p.ID)
	s.logger.Info("product retired", zap.String("product_id", p.ID))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListActive serves the active catalog from the cache, falling back to the
// database and repopulating the cache on a miss.
func (s *Service) ListActive(ctx context.Context) ([]models.Product, error) {
	if s.cache != nil {
		products, err := s.cache.GetAll(ctx)
		if err == nil {
			return products, nil
		}
		s.logger.Debug("product cache unavailable, reading database", zap.Error(err))
	}

	products, err := s.store.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetAll(ctx, products); err != nil {
			s.logger.Warn("failed to populate product cache", zap.Error(err))
		}
	}
	return products, nil
}

func (s *Service) ListAll(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx, true)
}

// ProductView is a product with its derived pack figures, as listed to clients.
type ProductView struct {
	models.Product
	StockStatus string       `json:"stock_status"`
	Metrics     pack.Metrics `json:"metrics"`
}

func (s *Service) Views(products []models.Product) []ProductView {
	out := make([]ProductView, len(products))
	for i, p := range products {
		out[i] = ProductView{Product: p, StockStatus: p.StockStatus(), Metrics: s.engine.Metrics(p)}
	}
	return out
}

func (s *Service) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to invalidate product cache", zap.Strings("product_ids", ids), zap.Error(err))
	}
}
