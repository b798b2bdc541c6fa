package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderApproved, OrderCancelled},
	OrderApproved:  {OrderCompleted, OrderCancelled},
	OrderCompleted: {OrderCancelled, OrderRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderApproved, OrderCompleted, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the order lifecycle allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderSourcesFor lists the statuses from which an order may move to next.
func OrderSourcesFor(next OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, from := range []OrderStatus{OrderPending, OrderApproved, OrderCompleted} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentEFT        PaymentMethod = "eft"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentEFT:
		return true
	}
	return false
}

// SaleUnit says whether an order line quantity counts whole packs or single units.
type SaleUnit string

const (
	SaleUnitPack SaleUnit = "pack"
	SaleUnitUnit SaleUnit = "unit"
)

func (u SaleUnit) Valid() bool {
	return u == SaleUnitPack || u == SaleUnitUnit
}

// OrderLine is an immutable pricing snapshot taken when the order committed.
type OrderLine struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	SaleUnit         SaleUnit        `json:"sale_unit"`
	IsPackProduct    bool            `json:"is_pack_product"`
	Quantity         int             `json:"quantity"`
	UnitsPerQuantity int             `json:"units_per_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	SingleUnitPrice  decimal.Decimal `json:"single_unit_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	UnitsDeducted    int             `json:"units_deducted"`
}

type Order struct {
	ID                 string              `json:"id"`
	CustomerID         string              `json:"customer_id,omitempty"`
	ProcessedBy        string              `json:"processed_by,omitempty"`
	ApprovedBy         string              `json:"approved_by,omitempty"`
	Status             OrderStatus         `json:"status"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	VATAmount          decimal.Decimal     `json:"vat_amount"`
	TotalAmount        decimal.Decimal     `json:"total_amount"`
	TotalCost          decimal.Decimal     `json:"total_cost"`
	GrossProfit        decimal.Decimal     `json:"gross_profit"`
	PaymentMethod      PaymentMethod       `json:"payment_method,omitempty"`
	PaymentReference   string              `json:"payment_reference,omitempty"`
	RefundAmount       decimal.NullDecimal `json:"refund_amount"`
	RefundDate         *time.Time          `json:"refund_date,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	OrderDate          time.Time           `json:"order_date"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Lines              []OrderLine         `json:"lines"`
}

// ProfitMargin is gross profit as a percentage of the subtotal, 0 for empty sales.
func (o Order) ProfitMargin() decimal.Decimal {
	if o.Subtotal.IsZero() {
		return decimal.Zero
	}
	return o.GrossProfit.Div(o.Subtotal).Mul(decimal.NewFromInt(100)).Round(2)
}

// StatusChange carries the metadata written alongside an order status flip.
type StatusChange struct {
	Status             OrderStatus
	ApprovedBy         string
	CancellationReason string
	RefundAmount       decimal.NullDecimal
	RefundDate         *time.Time
	At                 time.Time
}

// OrderFilter selects orders whose OrderDate falls in [From, To]. Zero bounds
// are open and an empty Statuses matches every status.
type OrderFilter struct {
	From     time.Time
	To       time.Time
	Statuses []OrderStatus
}

func (f OrderFilter) Matches(o Order) bool {
	if !f.From.IsZero() && o.OrderDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.OrderDate.After(f.To) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if o.Status == s {
			return true
		}
	}
	return false
}
