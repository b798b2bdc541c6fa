// Package report builds read-only sales, financial and attendance reports.
// Only completed orders count towards sales figures.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/money"
)

const DefaultTopProducts = 10

const (
	CategoryBeverages = "Beverages"
	CategoryFood      = "Food"
)

// Store is the read-only persistence reports aggregate over.
type Store interface {
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	ListEvents(ctx context.Context, from, to time.Time) ([]models.Event, error)
	ListBookingsByEvent(ctx context.Context, eventID string) ([]models.EventBooking, error)
}

// Aggregator builds sales, financial and attendance reports.
type Aggregator struct {
	store       Store
	topProducts int
	logger      *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTopProducts sets how many products the sales report ranks.
func WithTopProducts(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.topProducts = n
		}
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// NewAggregator builds an aggregator over store.
func NewAggregator(store Store, opts ...Option) *Aggregator {
	a := &Aggregator{store: store, topProducts: DefaultTopProducts, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProductSales is one product's share of a sales report.
type ProductSales struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	IsSixPack       bool            `json:"is_six_pack"`
	TotalQuantity   int             `json:"total_quantity"`
	ActualUnitsSold int             `json:"actual_units_sold"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
}

// SalesReport summarizes completed orders in a window.
type SalesReport struct {
	StartDate           time.Time       `json:"start_date"`
	EndDate             time.Time       `json:"end_date"`
	TotalOrders         int             `json:"total_orders"`
	TotalSales          decimal.Decimal `json:"total_sales"`
	TotalVAT            decimal.Decimal `json:"total_vat"`
	TotalGrossProfit    decimal.Decimal `json:"total_gross_profit"`
	AverageProfitMargin decimal.Decimal `json:"average_profit_margin"`
	TopProducts         []ProductSales  `json:"top_products"`
}

// CategoryRevenue is revenue for one product category.
type CategoryRevenue struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MonthlySummary totals one calendar month.
type MonthlySummary struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
}

// FinancialReport splits completed order revenue by category and month.
type FinancialReport struct {
	StartDate         time.Time         `json:"start_date"`
	EndDate           time.Time         `json:"end_date"`
	TotalRevenue      decimal.Decimal   `json:"total_revenue"`
	TotalCosts        decimal.Decimal   `json:"total_costs"`
	GrossProfit       decimal.Decimal   `json:"gross_profit"`
	NetProfit         decimal.Decimal   `json:"net_profit"`
	RevenueByCategory []CategoryRevenue `json:"revenue_by_category"`
	MonthlySummaries  []MonthlySummary  `json:"monthly_summaries"`
}

// EventAttendance is one event's bookings and ticket revenue.
type EventAttendance struct {
	EventID            string             `json:"event_id"`
	EventName          string             `json:"event_name"`
	EventDate          time.Time          `json:"event_date"`
	Status             models.EventStatus `json:"status"`
	MaxAttendees       int                `json:"max_attendees"`
	TicketsBooked      int                `json:"tickets_booked"`
	TicketsAttended    int                `json:"tickets_attended"`
	Cancellations      int                `json:"cancellations"`
	TicketRevenue      decimal.Decimal    `json:"ticket_revenue"`
	UtilizationPercent decimal.Decimal    `json:"utilization_percent"`
}

// AttendanceReport covers events dated in a window.
type AttendanceReport struct {
	StartDate          time.Time         `json:"start_date"`
	EndDate            time.Time         `json:"end_date"`
	Events             []EventAttendance `json:"events"`
	TotalTicketsBooked int               `json:"total_tickets_booked"`
	TotalAttended      int               `json:"total_attended"`
	TotalRevenue       decimal.Decimal   `json:"total_revenue"`
}

func (a *Aggregator) completedOrders(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	if start.After(end) {
		return nil, models.NewError(models.KindValidation, "start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return a.store.ListOrders(ctx, models.OrderFilter{From: start, To: end, Statuses: []models.OrderStatus{models.OrderCompleted}})
}

// SalesReport summarises completed orders dated within [start, end].
func (a *Aggregator) SalesReport(ctx context.Context, start, end time.Time) (SalesReport, error) {
	orders, err := a.completedOrders(ctx, start, end)
	if err != nil {
		return SalesReport{}, err
	}

	r := SalesReport{
		StartDate:        start,
		EndDate:          end,
		TotalOrders:      len(orders),
		TotalSales:       decimal.Zero,
		TotalVAT:         decimal.Zero,
		TotalGrossProfit: decimal.Zero,
		TopProducts:      []ProductSales{},
	}
	byProduct := map[string]*ProductSales{}
	for _, o := range orders {
		r.TotalSales = r.TotalSales.Add(o.TotalAmount)
		r.TotalVAT = r.TotalVAT.Add(o.VATAmount)
		r.TotalGrossProfit = r.TotalGrossProfit.Add(o.GrossProfit)
		for _, l := range o.Lines {
			ps, ok := byProduct[l.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: l.ProductID, ProductName: l.ProductName, IsSixPack: l.IsPackProduct, TotalRevenue: decimal.Zero}
				byProduct[l.ProductID] = ps
			}
			ps.TotalQuantity += l.Quantity
			ps.ActualUnitsSold += l.UnitsDeducted
			ps.TotalRevenue = ps.TotalRevenue.Add(l.TotalPrice)
		}
	}
	r.AverageProfitMargin = money.Percent(r.TotalGrossProfit, r.TotalSales)

	for _, ps := range byProduct {
		r.TopProducts = append(r.TopProducts, *ps)
	}
	sort.Slice(r.TopProducts, func(i, j int) bool {
		if c := r.TopProducts[i].TotalRevenue.Cmp(r.TopProducts[j].TotalRevenue); c != 0 {
			return c > 0
		}
		return r.TopProducts[i].ProductName < r.TopProducts[j].ProductName
	})
	if len(r.TopProducts) > a.topProducts {
		r.TopProducts = r.TopProducts[:a.topProducts]
	}

	a.logger.Debug("sales report built", zap.Int("orders", r.TotalOrders), zap.String("total_sales", r.TotalSales.StringFixed(2)))
	return r, nil
}

// FinancialReport splits revenue of completed orders by category and month.
// Category shares are taken of the ex-VAT line total so they add up to 100.
func (a *Aggregator) FinancialReport(ctx context.Context, start, end time.Time) (FinancialReport, error) {
	orders, err := a.completedOrders(ctx, start, end)
	if err != nil {
		return FinancialReport{}, err
	}

	r := FinancialReport{
		StartDate:         start,
		EndDate:           end,
		TotalRevenue:      decimal.Zero,
		TotalCosts:        decimal.Zero,
		GrossProfit:       decimal.Zero,
		RevenueByCategory: []CategoryRevenue{},
		MonthlySummaries:  []MonthlySummary{},
	}
	categories := map[string]decimal.Decimal{}
	lineTotal := decimal.Zero
	months := map[string]*MonthlySummary{}
	for _, o := range orders {
		r.TotalRevenue = r.TotalRevenue.Add(o.TotalAmount)
		r.GrossProfit = r.GrossProfit.Add(o.GrossProfit)
		for _, l := range o.Lines {
			r.TotalCosts = r.TotalCosts.Add(l.TotalCost)
			category := CategoryFood
			if l.IsPackProduct {
				category = CategoryBeverages
			}
			categories[category] = categories[category].Add(l.TotalPrice)
			lineTotal = lineTotal.Add(l.TotalPrice)
		}

		key := o.OrderDate.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &MonthlySummary{Month: key, Revenue: decimal.Zero, Profit: decimal.Zero}
			months[key] = m
		}
		m.Revenue = m.Revenue.Add(o.TotalAmount)
		m.Profit = m.Profit.Add(o.GrossProfit)
	}
	r.NetProfit = r.GrossProfit

	for _, name := range []string{CategoryBeverages, CategoryFood} {
		amount, ok := categories[name]
		if !ok {
			continue
		}
		r.RevenueByCategory = append(r.RevenueByCategory, CategoryRevenue{
			Category:   name,
			Amount:     amount,
			Percentage: money.Percent(amount, lineTotal),
		})
	}
	for _, m := range months {
		r.MonthlySummaries = append(r.MonthlySummaries, *m)
	}
	sort.Slice(r.MonthlySummaries, func(i, j int) bool { return r.MonthlySummaries[i].Month < r.MonthlySummaries[j].Month })
	return r, nil
}

// AttendanceReport covers events dated within [start, end].
func (a *Aggregator) AttendanceReport(ctx context.Context, start, end time.Time) (AttendanceReport, error) {
	if start.After(end) {
		return AttendanceReport{}, models.NewError(models.KindValidation, "start is after end")
	}
	events, err := a.store.ListEvents(ctx, start, end)
	if err != nil {
		return AttendanceReport{}, err
	}

	r := AttendanceReport{StartDate: start, EndDate: end, Events: []EventAttendance{}, TotalRevenue: decimal.Zero}
	for _, e := range events {
		bookings, err := a.store.ListBookingsByEvent(ctx, e.ID)
		if err != nil {
			return AttendanceReport{}, err
		}
		ea := EventAttendance{
			EventID:       e.ID,
			EventName:     e.Name,
			EventDate:     e.EventDate,
			Status:        e.Status,
			MaxAttendees:  e.MaxAttendees,
			TicketRevenue: decimal.Zero,
		}
		for _, b := range bookings {
			switch b.Status {
			case models.BookingCancelled:
				ea.Cancellations++
				continue
			case models.BookingAttended:
				ea.TicketsAttended += b.NumberOfTickets
				ea.TicketsBooked += b.NumberOfTickets
			case models.BookingConfirmed:
				ea.TicketsBooked += b.NumberOfTickets
			default:
				continue
			}
			ea.TicketRevenue = ea.TicketRevenue.Add(b.TotalAmount)
		}
		ea.UtilizationPercent = money.Percent(decimal.NewFromInt(int64(ea.TicketsBooked)), decimal.NewFromInt(int64(e.MaxAttendees)))

		r.Events = append(r.Events, ea)
		r.TotalTicketsBooked += ea.TicketsBooked
		r.TotalAttended += ea.TicketsAttended
		r.TotalRevenue = r.TotalRevenue.Add(ea.TicketRevenue)
	}
	return r, nil
}

// DailySales is the total amount of completed orders on the calendar day of
// day, in day's location.
func (a *Aggregator) DailySales(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	orders, err := a.completedOrders(ctx, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
	}
	return total, nil
}
