package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/storage/memory"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(month time.Month, day int) time.Time {
	return time.Date(2025, month, day, 12, 0, 0, 0, time.UTC)
}

func beerLine(packs int) models.OrderLine {
	total := d("25.00").Mul(decimal.NewFromInt(int64(packs)))
	return models.OrderLine{
		ProductID: "lager", ProductName: "Castle Lager", IsPackProduct: true, SaleUnit: models.SaleUnitPack,
		Quantity: packs, UnitsPerQuantity: 6, UnitPrice: d("25.00"), TotalPrice: total,
		TotalCost: d("15.00").Mul(decimal.NewFromInt(int64(packs))), UnitsDeducted: packs * 6,
	}
}

func steakLine(qty int) models.OrderLine {
	return models.OrderLine{
		ProductID: "steak", ProductName: "T-Bone Steak", SaleUnit: models.SaleUnitPack,
		Quantity: qty, UnitsPerQuantity: 1, UnitPrice: d("120.00"), TotalPrice: d("120.00").Mul(decimal.NewFromInt(int64(qty))),
		TotalCost: d("70.00").Mul(decimal.NewFromInt(int64(qty))), UnitsDeducted: qty,
	}
}

func order(id string, date time.Time, status models.OrderStatus, lines ...models.OrderLine) models.Order {
	subtotal, cost := decimal.Zero, decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.TotalPrice)
		cost = cost.Add(l.TotalCost)
	}
	vat := subtotal.Mul(d("0.15")).Round(2)
	return models.Order{
		ID: id, Status: status, OrderDate: date, Lines: lines,
		Subtotal: subtotal, VATAmount: vat, TotalAmount: subtotal.Add(vat),
		TotalCost: cost, GrossProfit: subtotal.Sub(cost),
	}
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, o := range []models.Order{
		order("o1", at(time.January, 10), models.OrderCompleted, beerLine(2), steakLine(1)),
		order("o2", at(time.February, 3), models.OrderCompleted, steakLine(3)),
		order("o3", at(time.February, 3), models.OrderCancelled, steakLine(5)),
		order("o4", at(time.February, 4), models.OrderPending, beerLine(1)),
		order("o5", at(time.April, 1), models.OrderCompleted, beerLine(10)),
	} {
		require.NoError(t, store.InsertOrder(ctx, o))
	}
	return store
}

func TestSalesReport(t *testing.T) {
	a := NewAggregator(seed(t))

	r, err := a.SalesReport(context.Background(), at(time.January, 1), at(time.March, 1))
	require.NoError(t, err)

	// o1: 170 + 25.50 VAT, o2: 360 + 54 VAT.
	assert.Equal(t, 2, r.TotalOrders)
	assert.True(t, r.TotalSales.Equal(d("609.50")), "got %s", r.TotalSales)
	assert.True(t, r.TotalVAT.Equal(d("79.50")))
	assert.True(t, r.TotalGrossProfit.Equal(d("220.00")))
	assert.True(t, r.AverageProfitMargin.Equal(d("36.10")), "got %s", r.AverageProfitMargin)

	require.Len(t, r.TopProducts, 2)
	assert.Equal(t, "steak", r.TopProducts[0].ProductID)
	assert.Equal(t, 4, r.TopProducts[0].TotalQuantity)
	assert.True(t, r.TopProducts[0].TotalRevenue.Equal(d("480.00")))
	assert.Equal(t, "lager", r.TopProducts[1].ProductID)
	assert.True(t, r.TopProducts[1].IsSixPack)
	assert.Equal(t, 2, r.TopProducts[1].TotalQuantity)
	assert.Equal(t, 12, r.TopProducts[1].ActualUnitsSold)
}

func TestSalesReportWindowIsInclusiveAndLimited(t *testing.T) {
	a := NewAggregator(seed(t), WithTopProducts(1))

	r, err := a.SalesReport(context.Background(), at(time.April, 1), at(time.April, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, r.TotalOrders)
	require.Len(t, r.TopProducts, 1)

	empty, err := a.SalesReport(context.Background(), at(time.June, 1), at(time.June, 30))
	require.NoError(t, err)
	assert.True(t, empty.AverageProfitMargin.IsZero())
	assert.Empty(t, empty.TopProducts)

	_, err = a.SalesReport(context.Background(), at(time.June, 30), at(time.June, 1))
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestFinancialReport(t *testing.T) {
	a := NewAggregator(seed(t))

	r, err := a.FinancialReport(context.Background(), at(time.January, 1), at(time.December, 31))
	require.NoError(t, err)

	assert.True(t, r.TotalRevenue.Equal(d("897.00")), "got %s", r.TotalRevenue)
	assert.True(t, r.TotalCosts.Equal(d("460.00")))
	assert.True(t, r.GrossProfit.Equal(d("320.00")))
	assert.True(t, r.NetProfit.Equal(r.GrossProfit))

	require.Len(t, r.RevenueByCategory, 2)
	assert.Equal(t, CategoryBeverages, r.RevenueByCategory[0].Category)
	assert.True(t, r.RevenueByCategory[0].Amount.Equal(d("300.00")))
	assert.True(t, r.RevenueByCategory[0].Percentage.Equal(d("38.46")))
	assert.True(t, r.RevenueByCategory[1].Percentage.Equal(d("61.54")))

	require.Len(t, r.MonthlySummaries, 3)
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-04"},
		[]string{r.MonthlySummaries[0].Month, r.MonthlySummaries[1].Month, r.MonthlySummaries[2].Month})
	assert.True(t, r.MonthlySummaries[1].Revenue.Equal(d("414.00")))
}

func TestAttendanceReport(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.InsertEvent(ctx, models.Event{ID: "e1", Name: "Quiz", EventDate: at(time.March, 5), Status: models.EventCompleted, MaxAttendees: 20, CurrentAttendees: 6}))
	require.NoError(t, store.InsertEvent(ctx, models.Event{ID: "e2", Name: "Later", EventDate: at(time.May, 5), Status: models.EventScheduled, MaxAttendees: 20}))
	for _, b := range []models.EventBooking{
		{ID: "b1", EventID: "e1", NumberOfTickets: 4, TotalAmount: d("200"), Status: models.BookingAttended, BookingDate: at(time.March, 1)},
		{ID: "b2", EventID: "e1", NumberOfTickets: 2, TotalAmount: d("100"), Status: models.BookingConfirmed, BookingDate: at(time.March, 2)},
		{ID: "b3", EventID: "e1", NumberOfTickets: 3, TotalAmount: d("150"), Status: models.BookingCancelled, BookingDate: at(time.March, 2)},
	} {
		require.NoError(t, store.InsertBooking(ctx, b))
	}

	r, err := NewAggregator(store).AttendanceReport(ctx, at(time.March, 1), at(time.March, 31))
	require.NoError(t, err)
	require.Len(t, r.Events, 1)
	e := r.Events[0]
	assert.Equal(t, 6, e.TicketsBooked)
	assert.Equal(t, 4, e.TicketsAttended)
	assert.Equal(t, 1, e.Cancellations)
	assert.True(t, e.TicketRevenue.Equal(d("300")))
	assert.True(t, e.UtilizationPercent.Equal(d("30")))
	assert.True(t, r.TotalRevenue.Equal(d("300")))
}

func TestDailySales(t *testing.T) {
	a := NewAggregator(seed(t))

	total, err := a.DailySales(context.Background(), time.Date(2025, time.February, 3, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, total.Equal(d("414.00")))
}
