// Package order commits, cancels and refunds orders. Every stock movement
// caused by an order happens in the same transaction as the order write.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/clock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/money"
	"gitlab.connectwisedev.com/backoffice-service/pkg/pack"
	"gitlab.connectwisedev.com/backoffice-service/pkg/telemetry"
)

// Store is the persistence the coordinator writes orders through.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProduct(ctx context.Context, id string) (models.Product, error)
	GetCart(ctx context.Context, customerID string) (models.Cart, error)
	ConsumeCartLine(ctx context.Context, lineID string, qty int) error
	InsertOrder(ctx context.Context, o models.Order) error
	GetOrder(ctx context.Context, id string) (models.Order, error)
	ChangeOrderStatus(ctx context.Context, id string, from []models.OrderStatus, change models.StatusChange) (bool, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
}

// Ledger is the subset of stock.Ledger the coordinator needs.
type Ledger interface {
	Adjust(ctx context.Context, productID string, delta int) (int, error)
	Invalidate(ctx context.Context, productIDs ...string)
}

// Coordinator commits orders and their stock movements together.
type Coordinator struct {
	store  Store
	ledger Ledger
	engine *pack.Engine
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the clock used for order and refund dates.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// NewCoordinator builds a coordinator over store and ledger.
func NewCoordinator(store Store, ledger Ledger, engine *pack.Engine, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, ledger: ledger, engine: engine, clock: clock.NewSystem(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LineInput requests Quantity units of sale of a product. An empty SaleUnit
// means packs.
type LineInput struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	SaleUnit  models.SaleUnit `json:"sale_unit,omitempty"`
}

// CreateInput describes an order built from explicit lines.
type CreateInput struct {
	CustomerID       string               `json:"customer_id"`
	ProcessedBy      string               `json:"processed_by"`
	Lines            []LineInput          `json:"lines"`
	PaymentMethod    models.PaymentMethod `json:"payment_method"`
	PaymentReference string               `json:"payment_reference"`
	Status           models.OrderStatus   `json:"status"`
}

// CheckoutOptions carry the payment details of a cart checkout.
type CheckoutOptions struct {
	PaymentMethod    models.PaymentMethod `json:"payment_method"`
	PaymentReference string               `json:"payment_reference"`
	Status           models.OrderStatus   `json:"status"`
}

// Summary is the priced view of a set of lines.
type Summary struct {
	Lines       []models.OrderLine `json:"lines"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	VAT         decimal.Decimal    `json:"vat"`
	Total       decimal.Decimal    `json:"total"`
	TotalCost   decimal.Decimal    `json:"total_cost"`
	GrossProfit decimal.Decimal    `json:"gross_profit"`
}

// CreateFromCart turns the customer's cart into an order priced from current
// product records. After the order commits, the ordered quantities are taken
// off their cart lines; anything added meanwhile stays in the cart.
func (c *Coordinator) CreateFromCart(ctx context.Context, customerID, processorID string, opts CheckoutOptions) (o models.Order, err error) {
	ctx, span := telemetry.Start(ctx, "order.CreateFromCart", attribute.String("customer_id", customerID))
	defer func() { telemetry.End(span, err) }()

	if customerID == "" {
		return models.Order{}, models.ErrInvalidID
	}
	cart, err := c.store.GetCart(ctx, customerID)
	if err != nil {
		return models.Order{}, err
	}
	if cart.IsEmpty() {
		return models.Order{}, models.ErrEmptyCart
	}

	lines := make([]LineInput, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, LineInput{ProductID: l.ProductID, Quantity: l.Quantity, SaleUnit: models.SaleUnitPack})
	}

	o, err = c.commit(ctx, CreateInput{
		CustomerID:       customerID,
		ProcessedBy:      processorID,
		Lines:            lines,
		PaymentMethod:    opts.PaymentMethod,
		PaymentReference: opts.PaymentReference,
		Status:           opts.Status,
	})
	if err != nil {
		return models.Order{}, err
	}

	for _, l := range cart.Lines {
		if err := c.store.ConsumeCartLine(ctx, l.ID, l.Quantity); err != nil {
			c.logger.Warn("failed to clear cart line after checkout",
				zap.String("customer_id", customerID), zap.String("order_id", o.ID),
				zap.String("line_id", l.ID), zap.Error(err))
		}
	}
	return o, nil
}

// CreateOrder commits an order from explicit lines.
func (c *Coordinator) CreateOrder(ctx context.Context, in CreateInput) (o models.Order, err error) {
	ctx, span := telemetry.Start(ctx, "order.CreateOrder", attribute.Int("lines", len(in.Lines)))
	defer func() { telemetry.End(span, err) }()

	if len(in.Lines) == 0 {
		return models.Order{}, models.NewError(models.KindValidation, "order has no lines")
	}
	return c.commit(ctx, in)
}

// Preview prices lines without writing anything.
func (c *Coordinator) Preview(ctx context.Context, lines []LineInput) (Summary, error) {
	if len(lines) == 0 {
		return Summary{}, models.NewError(models.KindValidation, "order has no lines")
	}
	return c.price(ctx, lines)
}

func (c *Coordinator) commit(ctx context.Context, in CreateInput) (models.Order, error) {
	status := in.Status
	if status == "" {
		status = models.OrderCompleted
	}
	if status != models.OrderCompleted && status != models.OrderPending {
		return models.Order{}, models.NewError(models.KindValidation, "orders are created as pending or completed, not %s", status)
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return models.Order{}, models.NewError(models.KindValidation, "unknown payment method %q", in.PaymentMethod)
	}

	now := c.clock.Now()
	o := models.Order{
		ID:               uuid.NewString(),
		CustomerID:       in.CustomerID,
		ProcessedBy:      in.ProcessedBy,
		Status:           status,
		PaymentMethod:    in.PaymentMethod,
		PaymentReference: in.PaymentReference,
		OrderDate:        now,
		UpdatedAt:        now,
	}

	err := c.store.WithTx(ctx, func(ctx context.Context) error {
		summary, err := c.price(ctx, in.Lines)
		if err != nil {
			return err
		}
		o.Subtotal = summary.Subtotal
		o.VATAmount = summary.VAT
		o.TotalAmount = summary.Total
		o.TotalCost = summary.TotalCost
		o.GrossProfit = summary.GrossProfit
		o.Lines = summary.Lines
		for i := range o.Lines {
			o.Lines[i].ID = uuid.NewString()
			o.Lines[i].OrderID = o.ID
		}

		if err := c.store.InsertOrder(ctx, o); err != nil {
			return err
		}
		for _, l := range o.Lines {
			if _, err := c.ledger.Adjust(ctx, l.ProductID, -l.UnitsDeducted); err != nil {
				return fmt.Errorf("%s: %w", l.ProductName, err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	c.ledger.Invalidate(ctx, productIDs(o)...)
	c.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("customer_id", o.CustomerID),
		zap.String("status", string(o.Status)),
		zap.String("total", o.TotalAmount.StringFixed(2)),
	)
	return o, nil
}

// price reads every product once per line and builds the order lines and
// totals. Retired products cannot be sold.
func (c *Coordinator) price(ctx context.Context, lines []LineInput) (Summary, error) {
	s := Summary{Subtotal: decimal.Zero, TotalCost: decimal.Zero}
	for _, in := range lines {
		if in.ProductID == "" {
			return Summary{}, models.ErrInvalidID
		}
		if in.Quantity <= 0 {
			return Summary{}, fmt.Errorf("%w: %d", models.ErrInvalidQuantity, in.Quantity)
		}
		unit := in.SaleUnit
		if unit == "" {
			unit = models.SaleUnitPack
		}
		if !unit.Valid() {
			return Summary{}, models.NewError(models.KindValidation, "unknown sale unit %q", unit)
		}

		p, err := c.store.GetProduct(ctx, in.ProductID)
		if err != nil {
			return Summary{}, err
		}
		if !p.IsActive() {
			return Summary{}, fmt.Errorf("%w: %s", models.ErrProductInactive, p.Name)
		}

		quote := c.engine.Quote(p, unit)
		total, cost, units := quote.Line(in.Quantity)
		s.Lines = append(s.Lines, models.OrderLine{
			ProductID:        p.ID,
			ProductName:      p.Name,
			SaleUnit:         unit,
			IsPackProduct:    p.IsSixPack,
			Quantity:         in.Quantity,
			UnitsPerQuantity: quote.UnitsPerQuantity,
			UnitPrice:        quote.Price,
			UnitCost:         quote.Cost,
			SingleUnitPrice:  quote.SingleUnitPrice,
			TotalPrice:       total,
			TotalCost:        cost,
			UnitsDeducted:    units,
		})
		s.Subtotal = s.Subtotal.Add(total)
		s.TotalCost = s.TotalCost.Add(cost)
	}
	s.Subtotal = money.Round(s.Subtotal)
	s.TotalCost = money.Round(s.TotalCost)
	s.VAT = money.VAT(s.Subtotal)
	s.Total = s.Subtotal.Add(s.VAT)
	s.GrossProfit = money.Round(s.Subtotal.Sub(s.TotalCost))
	return s, nil
}

// Cancel moves an order to cancelled and returns its stock. Cancelling a
// cancelled order returns it unchanged.
func (c *Coordinator) Cancel(ctx context.Context, orderID, reason string) (o models.Order, err error) {
	ctx, span := telemetry.Start(ctx, "order.Cancel", attribute.String("order_id", orderID))
	defer func() { telemetry.End(span, err) }()

	return c.reverse(ctx, orderID, models.StatusChange{
		Status:             models.OrderCancelled,
		CancellationReason: reason,
	})
}

// Refund moves a completed order to refunded, returns its stock and records
// the full amount as refunded.
func (c *Coordinator) Refund(ctx context.Context, orderID, reason string) (o models.Order, err error) {
	ctx, span := telemetry.Start(ctx, "order.Refund", attribute.String("order_id", orderID))
	defer func() { telemetry.End(span, err) }()

	return c.reverse(ctx, orderID, models.StatusChange{
		Status:             models.OrderRefunded,
		CancellationReason: reason,
	})
}

func (c *Coordinator) reverse(ctx context.Context, orderID string, change models.StatusChange) (models.Order, error) {
	if orderID == "" {
		return models.Order{}, models.ErrInvalidID
	}

	var (
		out     models.Order
		changed bool
	)
	err := c.store.WithTx(ctx, func(ctx context.Context) error {
		o, err := c.store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == change.Status {
			out = o
			return nil
		}
		if !o.Status.CanTransitionTo(change.Status) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, o.Status, change.Status)
		}

		now := c.clock.Now()
		change.At = now
		if change.Status == models.OrderRefunded {
			change.RefundAmount = decimal.NewNullDecimal(o.TotalAmount)
			change.RefundDate = &now
		}
		ok, err := c.store.ChangeOrderStatus(ctx, orderID, []models.OrderStatus{o.Status}, change)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %s", models.ErrConcurrentUpdate, orderID)
		}

		for _, l := range o.Lines {
			if l.UnitsDeducted == 0 {
				continue
			}
			if _, err := c.ledger.Adjust(ctx, l.ProductID, l.UnitsDeducted); err != nil {
				return err
			}
		}
		changed = true
		out, err = c.store.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return models.Order{}, err
	}

	if changed {
		c.ledger.Invalidate(ctx, productIDs(out)...)
		c.logger.Info("order reversed", zap.String("order_id", orderID), zap.String("status", string(change.Status)))
	}
	return out, nil
}

// UpdateStatus moves an order along its lifecycle. Cancellation and refund go
// through Cancel and Refund so stock is returned exactly once.
func (c *Coordinator) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus, actorID string) (models.Order, error) {
	if !status.Valid() {
		return models.Order{}, models.NewError(models.KindValidation, "unknown order status %q", status)
	}
	switch status {
	case models.OrderCancelled:
		return c.Cancel(ctx, orderID, "")
	case models.OrderRefunded:
		return c.Refund(ctx, orderID, "")
	}

	o, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if !o.Status.CanTransitionTo(status) {
		return models.Order{}, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, o.Status, status)
	}

	change := models.StatusChange{Status: status, At: c.clock.Now()}
	if status == models.OrderApproved {
		change.ApprovedBy = actorID
	}
	ok, err := c.store.ChangeOrderStatus(ctx, orderID, []models.OrderStatus{o.Status}, change)
	if err != nil {
		return models.Order{}, err
	}
	if !ok {
		return models.Order{}, fmt.Errorf("%w: order %s", models.ErrConcurrentUpdate, orderID)
	}
	return c.store.GetOrder(ctx, orderID)
}

// Get returns an order with its lines.
func (c *Coordinator) Get(ctx context.Context, orderID string) (models.Order, error) {
	if orderID == "" {
		return models.Order{}, models.ErrInvalidID
	}
	return c.store.GetOrder(ctx, orderID)
}

// ListByCustomer returns a customer's orders, newest first.
func (c *Coordinator) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	if customerID == "" {
		return nil, models.ErrInvalidID
	}
	return c.store.ListOrdersByCustomer(ctx, customerID)
}

// ListByDateRange returns orders of any status dated within [from, to].
func (c *Coordinator) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, models.NewError(models.KindValidation, "start %s is after end %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return c.store.ListOrders(ctx, models.OrderFilter{From: from, To: to})
}

func productIDs(o models.Order) []string {
	seen := make(map[string]bool, len(o.Lines))
	var ids []string
	for _, l := range o.Lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}
