// Package cart keeps per-customer carts and prices them from current product
// records. Stock checks here are advisory; checkout enforces them.
package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/clock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/money"
	"gitlab.connectwisedev.com/backoffice-service/pkg/pack"
)

// Store is the cart and product persistence the service needs.
type Store interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	GetCart(ctx context.Context, customerID string) (models.Cart, error)
	GetCartLine(ctx context.Context, lineID string) (models.CartLine, error)
	SaveCartLine(ctx context.Context, line models.CartLine) error
	DeleteCartLine(ctx context.Context, lineID string) error
	DeleteCart(ctx context.Context, customerID string) error
}

// Service keeps one cart per customer.
type Service struct {
	store  Store
	engine *pack.Engine
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for line timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds a cart service over store.
func NewService(store Store, engine *pack.Engine, opts ...Option) *Service {
	s := &Service{store: store, engine: engine, clock: clock.NewSystem(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem puts qty units of sale of a product in the customer's cart, merging
// with an existing line for the same product.
func (s *Service) AddItem(ctx context.Context, customerID, productID string, qty int) (models.CartLine, error) {
	if customerID == "" || productID == "" {
		return models.CartLine{}, models.ErrInvalidID
	}
	if qty <= 0 {
		return models.CartLine{}, models.ErrInvalidQuantity
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return models.CartLine{}, err
	}
	if !product.IsActive() {
		return models.CartLine{}, fmt.Errorf("%w: %s", models.ErrProductInactive, product.Name)
	}

	cart, err := s.store.GetCart(ctx, customerID)
	if err != nil {
		return models.CartLine{}, err
	}

	now := s.clock.Now()
	line := models.CartLine{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		ProductID:  productID,
		AddedAt:    now,
	}
	for _, existing := range cart.Lines {
		if existing.ProductID == productID {
			line = existing
			break
		}
	}
	line.Quantity += qty

	if err := s.checkStock(product, line.Quantity); err != nil {
		return models.CartLine{}, err
	}
	line.UnitPriceSnapshot = s.engine.Quote(product, models.SaleUnitPack).Price
	line.UpdatedAt = now

	if err := s.store.SaveCartLine(ctx, line); err != nil {
		return models.CartLine{}, err
	}
	s.logger.Debug("cart item added", zap.String("customer_id", customerID), zap.String("product_id", productID), zap.Int("quantity", line.Quantity))
	return line, nil
}

// UpdateQuantity sets a line's quantity. A quantity of zero or less removes
// the line and returns a zero CartLine.
func (s *Service) UpdateQuantity(ctx context.Context, lineID string, qty int) (models.CartLine, error) {
	line, err := s.store.GetCartLine(ctx, lineID)
	if err != nil {
		return models.CartLine{}, err
	}
	if qty <= 0 {
		return models.CartLine{}, s.store.DeleteCartLine(ctx, lineID)
	}

	product, err := s.store.GetProduct(ctx, line.ProductID)
	if err != nil {
		return models.CartLine{}, err
	}
	if err := s.checkStock(product, qty); err != nil {
		return models.CartLine{}, err
	}

	line.Quantity = qty
	line.UnitPriceSnapshot = s.engine.Quote(product, models.SaleUnitPack).Price
	line.UpdatedAt = s.clock.Now()
	if err := s.store.SaveCartLine(ctx, line); err != nil {
		return models.CartLine{}, err
	}
	return line, nil
}

// RemoveItem deletes a line. Removing a missing line is not an error.
func (s *Service) RemoveItem(ctx context.Context, lineID string) error {
	return s.store.DeleteCartLine(ctx, lineID)
}

// Clear deletes the customer's cart and all of its lines.
func (s *Service) Clear(ctx context.Context, customerID string) error {
	if customerID == "" {
		return models.ErrInvalidID
	}
	return s.store.DeleteCart(ctx, customerID)
}

// Get returns the customer's cart as stored, without repricing.
func (s *Service) Get(ctx context.Context, customerID string) (models.Cart, error) {
	if customerID == "" {
		return models.Cart{}, models.ErrInvalidID
	}
	return s.store.GetCart(ctx, customerID)
}

func (s *Service) checkStock(p models.Product, qty int) error {
	units := s.engine.UnitsToDeduct(qty, p.IsSixPack, p.PackQuantity)
	if units > p.StockLevel {
		return fmt.Errorf("%w: %s has %d units, %d needed", models.ErrInsufficientStock, p.Name, p.StockLevel, units)
	}
	return nil
}

// SummaryLine is one cart line priced from the current product.
type SummaryLine struct {
	LineID          string          `json:"line_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	SingleUnitPrice decimal.Decimal `json:"single_unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	IsSixPack       bool            `json:"is_six_pack"`
	PackQuantity    int             `json:"pack_quantity"`
	ActualUnits     int             `json:"actual_units"`
}

// Summary is the priced cart with VAT.
type Summary struct {
	CustomerID string          `json:"customer_id"`
	Lines      []SummaryLine   `json:"lines"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	VAT        decimal.Decimal `json:"vat"`
	Total      decimal.Decimal `json:"total"`
}

// Summarize prices the cart from current product records without writing
// anything. Snapshotted line prices are ignored.
func (s *Service) Summarize(ctx context.Context, customerID string) (Summary, error) {
	cart, err := s.Get(ctx, customerID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{CustomerID: customerID, Lines: []SummaryLine{}, Subtotal: decimal.Zero}
	for _, line := range cart.Lines {
		product, err := s.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return Summary{}, err
		}
		quote := s.engine.Quote(product, models.SaleUnitPack)
		total, _, units := quote.Line(line.Quantity)

		summary.Lines = append(summary.Lines, SummaryLine{
			LineID:          line.ID,
			ProductID:       product.ID,
			ProductName:     product.Name,
			Quantity:        line.Quantity,
			UnitPrice:       quote.Price,
			SingleUnitPrice: quote.SingleUnitPrice,
			TotalPrice:      total,
			IsSixPack:       product.IsSixPack,
			PackQuantity:    product.UnitsPerPack(),
			ActualUnits:     units,
		})
		summary.TotalItems += line.Quantity
		summary.Subtotal = summary.Subtotal.Add(total)
	}
	summary.Subtotal = money.Round(summary.Subtotal)
	summary.VAT = money.VAT(summary.Subtotal)
	summary.Total = summary.Subtotal.Add(summary.VAT)
	return summary, nil
}
