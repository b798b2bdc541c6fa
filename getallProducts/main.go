package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/pkg/api"
	"gitlab.connectwisedev.com/backoffice-service/pkg/bootstrap"
)

var app *bootstrap.App

func init() {
	var err error
	app, err = bootstrap.New("get-all-products")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	app.Logger.Debug("received request", zap.String("path", request.Path))

	identity := api.Identity(request, app.Config.IsLocal())
	if request.QueryStringParameters["include_retired"] == "true" {
		if !identity.IsStaff() {
			return api.Forbidden()
		}
		products, err := app.Catalog.ListAll(ctx)
		if err != nil {
			return api.Error(app.Logger, err)
		}
		return api.JSON(http.StatusOK, app.Catalog.Views(products))
	}

	products, err := app.Catalog.ListActive(ctx)
	if err != nil {
		return api.Error(app.Logger, err)
	}

	// Cache for 5 minutes, revalidate after
	return api.Cached(app.Catalog.Views(products), 300)
}

func main() {
	defer app.Close()
	lambda.Start(handler)
}
