package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultPackQuantity      = 6
	DefaultMinimumStockLevel = 10
)

// ProductStatus replaces a boolean "is active" flag so every query states
// whether retired products are included.
type ProductStatus string

const (
	ProductActive  ProductStatus = "active"
	ProductRetired ProductStatus = "retired"
)

// Product is a sellable catalog item. For pack products UnitPrice and CostPrice
// are the price and cost of a whole pack.
type Product struct {
	ID                string          `json:"id"` // UUID as string
	Name              string          `json:"name"`
	Description       *string         `json:"description"` // Pointer for nullable field
	StockLevel        int             `json:"stock_level"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	MinimumStockLevel int             `json:"minimum_stock_level"`
	IsSixPack         bool            `json:"is_six_pack"`
	PackQuantity      int             `json:"pack_quantity"`
	Status            ProductStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// UnitsPerPack is the pack size, falling back to the default for unset values.
func (p Product) UnitsPerPack() int {
	if p.PackQuantity < 1 {
		return DefaultPackQuantity
	}
	return p.PackQuantity
}

func (p Product) IsActive() bool {
	return p.Status == "" || p.Status == ProductActive
}

func (p Product) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

// StockStatus is the label shown on stock listings.
func (p Product) StockStatus() string {
	switch {
	case p.StockLevel <= 0:
		return "Out of Stock"
	case p.StockLevel <= p.MinimumStockLevel:
		return "Low Stock"
	default:
		return "In Stock"
	}
}

// ProductCSV represents a product as read from an import file
type ProductCSV struct {
	ID                string `csv:"id"` // Optional: if CSV has ID, else generate
	Name              string `csv:"name"`
	Description       string `csv:"description"`
	Price             string `csv:"price"`
	Cost              string `csv:"cost"`
	Qty               int    `csv:"qty"`
	MinimumStockLevel int    `csv:"min_stock"`
	IsSixPack         bool   `csv:"is_six_pack"`
	PackQuantity      int    `csv:"pack_quantity"`
}
