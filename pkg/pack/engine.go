// Package pack converts between pack-level product definitions and the
// single units they contain.
package pack

import (
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/money"
)

var defaultKeywords = []string{
	"beer", "lager", "ale", "stout", "wine", "whisky", "whiskey", "vodka",
	"gin", "rum", "tequila", "brandy", "cider", "champagne", "cocktail",
	"brew", "draught", "bottle", "can", "alcohol", "alcoholic",
}

// Engine holds the pack conversion rules. It is safe for concurrent use.
type Engine struct {
	keywords []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeywords replaces the alcohol detection keyword list.
func WithKeywords(words ...string) Option {
	return func(e *Engine) {
		e.keywords = e.keywords[:0]
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				e.keywords = append(e.keywords, w)
			}
		}
	}
}

// NewEngine returns an engine with the default alcohol keywords.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{keywords: append([]string(nil), defaultKeywords...)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UnitsInPack returns n, or the default pack size when n is not positive.
func UnitsInPack(n int) int {
	if n < 1 {
		return models.DefaultPackQuantity
	}
	return n
}

// UnitPrice is the pack price spread over the units in the pack.
func (e *Engine) UnitPrice(packPrice decimal.Decimal, n int) decimal.Decimal {
	return money.Round(packPrice.Div(decimal.NewFromInt(int64(UnitsInPack(n)))))
}

// UnitCost is the pack cost spread over the units in the pack.
func (e *Engine) UnitCost(packCost decimal.Decimal, n int) decimal.Decimal {
	return money.Round(packCost.Div(decimal.NewFromInt(int64(UnitsInPack(n)))))
}

// UnitProfit is UnitPrice less UnitCost.
func (e *Engine) UnitProfit(packPrice, packCost decimal.Decimal, n int) decimal.Decimal {
	return money.Round(e.UnitPrice(packPrice, n).Sub(e.UnitCost(packCost, n)))
}

// PackPrice scales a single-unit price up to a whole pack.
func (e *Engine) PackPrice(unitPrice decimal.Decimal, n int) decimal.Decimal {
	return money.Round(unitPrice.Mul(decimal.NewFromInt(int64(UnitsInPack(n)))))
}

// PackCost scales a single-unit cost up to a whole pack.
func (e *Engine) PackCost(unitCost decimal.Decimal, n int) decimal.Decimal {
	return money.Round(unitCost.Mul(decimal.NewFromInt(int64(UnitsInPack(n)))))
}

// UnitsToDeduct is the number of stock units consumed by selling qty.
func (e *Engine) UnitsToDeduct(qty int, isPack bool, n int) int {
	if !isPack {
		return qty
	}
	return qty * UnitsInPack(n)
}

// IsAlcoholic is a keyword heuristic over name and description. An explicit
// product flag always takes precedence over it.
func (e *Engine) IsAlcoholic(name, description string) bool {
	name = strings.ToLower(name)
	description = strings.ToLower(description)
	for _, k := range e.keywords {
		if strings.Contains(name, k) || strings.Contains(description, k) {
			return true
		}
	}
	return false
}

// Metrics are the per-unit and per-pack figures shown with a product.
type Metrics struct {
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	UnitProfit   decimal.Decimal `json:"unit_profit"`
	PackPrice    decimal.Decimal `json:"pack_price"`
	PackCost     decimal.Decimal `json:"pack_cost"`
	PackProfit   decimal.Decimal `json:"pack_profit"`
	UnitsPerPack int             `json:"units_per_pack"`
}

// Metrics derives per-unit and per-pack figures for p. A product that is not
// sold in packs is its own single unit.
func (e *Engine) Metrics(p models.Product) Metrics {
	if !p.IsSixPack {
		return Metrics{
			UnitPrice:    p.UnitPrice,
			UnitCost:     p.CostPrice,
			UnitProfit:   money.Round(p.UnitPrice.Sub(p.CostPrice)),
			PackPrice:    p.UnitPrice,
			PackCost:     p.CostPrice,
			PackProfit:   money.Round(p.UnitPrice.Sub(p.CostPrice)),
			UnitsPerPack: 1,
		}
	}
	n := p.UnitsPerPack()
	return Metrics{
		UnitPrice:    e.UnitPrice(p.UnitPrice, n),
		UnitCost:     e.UnitCost(p.CostPrice, n),
		UnitProfit:   e.UnitProfit(p.UnitPrice, p.CostPrice, n),
		PackPrice:    p.UnitPrice,
		PackCost:     p.CostPrice,
		PackProfit:   money.Round(p.UnitPrice.Sub(p.CostPrice)),
		UnitsPerPack: n,
	}
}

// Quote is the price of one unit of sale and the stock units it consumes.
type Quote struct {
	Price            decimal.Decimal
	Cost             decimal.Decimal
	SingleUnitPrice  decimal.Decimal
	UnitsPerQuantity int
	IsPack           bool
}

// Quote prices p when sold by the given unit. Pack products sold by the pack
// use the stored pack price; sold by the unit they use the derived unit price.
func (e *Engine) Quote(p models.Product, unit models.SaleUnit) Quote {
	if !p.IsSixPack {
		return Quote{
			Price:            p.UnitPrice,
			Cost:             p.CostPrice,
			SingleUnitPrice:  p.UnitPrice,
			UnitsPerQuantity: 1,
		}
	}
	n := p.UnitsPerPack()
	single := e.UnitPrice(p.UnitPrice, n)
	if unit == models.SaleUnitUnit {
		return Quote{
			Price:            single,
			Cost:             e.UnitCost(p.CostPrice, n),
			SingleUnitPrice:  single,
			UnitsPerQuantity: 1,
			IsPack:           true,
		}
	}
	return Quote{
		Price:            p.UnitPrice,
		Cost:             p.CostPrice,
		SingleUnitPrice:  single,
		UnitsPerQuantity: n,
		IsPack:           true,
	}
}

// Line prices qty units of sale of p.
func (q Quote) Line(qty int) (total, cost decimal.Decimal, units int) {
	n := decimal.NewFromInt(int64(qty))
	return money.Round(q.Price.Mul(n)), money.Round(q.Cost.Mul(n)), qty * q.UnitsPerQuantity
}
