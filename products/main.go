package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/api"
	"gitlab.connectwisedev.com/backoffice-service/pkg/bootstrap"
	"gitlab.connectwisedev.com/backoffice-service/pkg/catalog"
)

var app *bootstrap.App

func init() {
	var err error
	app, err = bootstrap.New("products")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

type stockLevel struct {
	ProductID  string `json:"product_id"`
	StockLevel int    `json:"stock_level"`
}

type sellRequest struct {
	SaleUnit models.SaleUnit `json:"sale_unit"`
	Quantity int             `json:"quantity"`
}

type saleResult struct {
	ProductID     string           `json:"product_id"`
	UnitsDeducted int              `json:"units_deducted"`
	Total         *decimal.Decimal `json:"total,omitempty"`
}

func getProduct(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "productId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	p, err := app.Catalog.Get(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if !p.IsActive() && !caller.IsStaff() {
		return api.Error(app.Logger, models.ErrProductNotFound)
	}
	return api.JSON(http.StatusOK, app.Catalog.Views([]models.Product{p})[0])
}

func createProduct(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	var in catalog.ProductInput
	if err := api.Decode(req, &in); err != nil {
		return api.Error(app.Logger, err)
	}
	p, err := app.Catalog.Create(ctx, in)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusCreated, p)
}

func updateProduct(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "productId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var in catalog.ProductInput
	if err := api.Decode(req, &in); err != nil {
		return api.Error(app.Logger, err)
	}
	p, err := app.Catalog.Update(ctx, id, in)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, p)
}

func retireProduct(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "productId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	p, err := app.Catalog.Retire(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, p)
}

// adjustStock records deliveries (positive delta) and write-offs (negative).
func adjustStock(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "productId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body adjustRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	if body.Delta == 0 {
		return api.Error(app.Logger, models.NewError(models.KindValidation, "delta must not be zero"))
	}
	level, err := app.Ledger.Adjust(ctx, id, body.Delta)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, stockLevel{ProductID: id, StockLevel: level})
}

// sell handles counter sales that skip the order flow.
func sell(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "productId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body sellRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}

	result := saleResult{ProductID: id}
	switch body.SaleUnit {
	case models.SaleUnitUnit:
		total, err := app.Ledger.SellUnits(ctx, id, body.Quantity)
		if err != nil {
			return api.Error(app.Logger, err)
		}
		result.UnitsDeducted = body.Quantity
		result.Total = &total
	case models.SaleUnitPack, "":
		units, err := app.Ledger.SellPacks(ctx, id, body.Quantity)
		if err != nil {
			return api.Error(app.Logger, err)
		}
		result.UnitsDeducted = units
	default:
		return api.Error(app.Logger, models.NewError(models.KindValidation, "unknown sale unit %q", body.SaleUnit))
	}
	return api.JSON(http.StatusOK, result)
}

func main() {
	defer app.Close()

	router := api.NewRouter(app.Logger, app.Config.AppEnv)
	router.Handle(http.MethodGet, "/products/{productId}", getProduct)
	router.Handle(http.MethodPost, "/products", api.Manager(createProduct))
	router.Handle(http.MethodPut, "/products/{productId}", api.Manager(updateProduct))
	router.Handle(http.MethodDelete, "/products/{productId}", api.Manager(retireProduct))
	router.Handle(http.MethodPost, "/products/{productId}/stock", api.Manager(adjustStock))
	router.Handle(http.MethodPost, "/products/{productId}/sell", api.Staff(sell))

	lambda.Start(router.Serve)
}
