package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in a customer's cart. Quantity counts packs for pack
// products; UnitPriceSnapshot is the price per unit of sale when last touched.
type CartLine struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	ProductID         string          `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price"`
	AddedAt           time.Time       `json:"added_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type Cart struct {
	CustomerID  string     `json:"customer_id"`
	Lines       []CartLine `json:"lines"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated time.Time  `json:"last_updated"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
