package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/api"
	"gitlab.connectwisedev.com/backoffice-service/pkg/bootstrap"
	"gitlab.connectwisedev.com/backoffice-service/pkg/order"
)

var app *bootstrap.App

func init() {
	var err error
	app, err = bootstrap.New("orders")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
}

type previewRequest struct {
	Lines []order.LineInput `json:"lines"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

// loadOwned fetches an order the caller may see: staff see every order,
// customers only their own.
func loadOwned(ctx context.Context, req api.Request, caller models.Identity) (models.Order, error) {
	id, err := api.PathParam(req, "orderId")
	if err != nil {
		return models.Order{}, err
	}
	o, err := app.Orders.Get(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if !caller.IsStaff() && o.CustomerID != caller.UserID {
		return models.Order{}, models.ErrOrderNotFound
	}
	return o, nil
}

func createOrder(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	var in order.CreateInput
	if err := api.Decode(req, &in); err != nil {
		return api.Error(app.Logger, err)
	}
	in.ProcessedBy = caller.UserID
	o, err := app.Orders.CreateOrder(ctx, in)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusCreated, o)
}

func previewOrder(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	var body previewRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	summary, err := app.Orders.Preview(ctx, body.Lines)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, summary)
}

func listOrders(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	var (
		orders []models.Order
		err    error
	)
	if caller.IsStaff() {
		start, end, rerr := api.DateRange(req, app.Clock.Now())
		if rerr != nil {
			return api.Error(app.Logger, rerr)
		}
		orders, err = app.Orders.ListByDateRange(ctx, start, end)
	} else {
		orders, err = app.Orders.ListByCustomer(ctx, caller.UserID)
	}
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return api.JSON(http.StatusOK, orders)
}

func getOrder(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	o, err := loadOwned(ctx, req, caller)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, o)
}

func cancelOrder(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	o, err := loadOwned(ctx, req, caller)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body reasonRequest
	if req.Body != "" {
		if err := api.Decode(req, &body); err != nil {
			return api.Error(app.Logger, err)
		}
	}
	o, err = app.Orders.Cancel(ctx, o.ID, body.Reason)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, o)
}

func refundOrder(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "orderId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body reasonRequest
	if req.Body != "" {
		if err := api.Decode(req, &body); err != nil {
			return api.Error(app.Logger, err)
		}
	}
	o, err := app.Orders.Refund(ctx, id, body.Reason)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, o)
}

func updateStatus(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "orderId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body statusRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	o, err := app.Orders.UpdateStatus(ctx, id, body.Status, caller.UserID)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, o)
}

func main() {
	defer app.Close()

	router := api.NewRouter(app.Logger, app.Config.AppEnv)
	router.Handle(http.MethodPost, "/orders", api.Staff(createOrder))
	router.Handle(http.MethodPost, "/orders/preview", previewOrder)
	router.Handle(http.MethodGet, "/orders", listOrders)
	router.Handle(http.MethodGet, "/orders/{orderId}", getOrder)
	router.Handle(http.MethodPost, "/orders/{orderId}/cancel", cancelOrder)
	router.Handle(http.MethodPost, "/orders/{orderId}/refund", api.Manager(refundOrder))
	router.Handle(http.MethodPut, "/orders/{orderId}/status", api.Staff(updateStatus))

	lambda.Start(router.Serve)
}
