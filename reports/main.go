package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/api"
	"gitlab.connectwisedev.com/backoffice-service/pkg/bootstrap"
)

var app *bootstrap.App

func init() {
	var err error
	app, err = bootstrap.New("reports")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
}

type dailySales struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type inventoryReport struct {
	TotalValue decimal.Decimal  `json:"total_value"`
	LowStock   []models.Product `json:"low_stock"`
}

func salesReport(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	start, end, err := api.DateRange(req, app.Clock.Now())
	if err != nil {
		return api.Error(app.Logger, err)
	}
	r, err := app.Reports.SalesReport(ctx, start, end)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, r)
}

func financialReport(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	start, end, err := api.DateRange(req, app.Clock.Now())
	if err != nil {
		return api.Error(app.Logger, err)
	}
	r, err := app.Reports.FinancialReport(ctx, start, end)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, r)
}

func attendanceReport(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	start, end, err := api.DateRange(req, app.Clock.Now())
	if err != nil {
		return api.Error(app.Logger, err)
	}
	r, err := app.Reports.AttendanceReport(ctx, start, end)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, r)
}

func daily(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	day := app.Clock.Now()
	if s := req.QueryStringParameters["date"]; s != "" {
		t, err := api.ParseTime(s, false)
		if err != nil {
			return api.Error(app.Logger, err)
		}
		day = t
	}
	total, err := app.Reports.DailySales(ctx, day)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, dailySales{Date: day.Format(time.DateOnly), Total: total})
}

func inventory(ctx context.Context, _ api.Request, _ models.Identity) (api.Response, error) {
	value, err := app.Ledger.InventoryValue(ctx)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	low, err := app.Ledger.LowStock(ctx)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if low == nil {
		low = []models.Product{}
	}
	return api.JSON(http.StatusOK, inventoryReport{TotalValue: value, LowStock: low})
}

func main() {
	defer app.Close()

	router := api.NewRouter(app.Logger, app.Config.AppEnv)
	router.Handle(http.MethodGet, "/reports/sales", api.Manager(salesReport))
	router.Handle(http.MethodGet, "/reports/financial", api.Manager(financialReport))
	router.Handle(http.MethodGet, "/reports/attendance", api.Manager(attendanceReport))
	router.Handle(http.MethodGet, "/reports/daily", api.Manager(daily))
	router.Handle(http.MethodGet, "/reports/inventory", api.Manager(inventory))

	lambda.Start(router.Serve)
}
