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
	app, err = bootstrap.New("cart")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

// customerFor lets staff act on a customer's cart through ?customer_id=.
func customerFor(req api.Request, caller models.Identity) string {
	if id := req.QueryStringParameters["customer_id"]; id != "" && caller.IsStaff() {
		return id
	}
	return caller.UserID
}

// ownsLine reports whether lineID is in the customer's cart.
func ownsLine(ctx context.Context, customerID, lineID string) (bool, error) {
	c, err := app.Carts.Get(ctx, customerID)
	if err != nil {
		return false, err
	}
	for _, l := range c.Lines {
		if l.ID == lineID {
			return true, nil
		}
	}
	return false, nil
}

func getCart(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	summary, err := app.Carts.Summarize(ctx, customerFor(req, caller))
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, summary)
}

func addItem(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	var body addItemRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	line, err := app.Carts.AddItem(ctx, customerFor(req, caller), body.ProductID, body.Quantity)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusCreated, line)
}

func updateLine(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	lineID, err := api.PathParam(req, "lineId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body updateLineRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	ok, err := ownsLine(ctx, customerFor(req, caller), lineID)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if !ok {
		return api.Error(app.Logger, models.ErrCartLineNotFound)
	}

	line, err := app.Carts.UpdateQuantity(ctx, lineID, body.Quantity)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if body.Quantity <= 0 {
		return api.NoContent()
	}
	return api.JSON(http.StatusOK, line)
}

func removeLine(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	lineID, err := api.PathParam(req, "lineId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	ok, err := ownsLine(ctx, customerFor(req, caller), lineID)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if ok {
		if err := app.Carts.RemoveItem(ctx, lineID); err != nil {
			return api.Error(app.Logger, err)
		}
	}
	return api.NoContent()
}

func clearCart(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	if err := app.Carts.Clear(ctx, customerFor(req, caller)); err != nil {
		return api.Error(app.Logger, err)
	}
	return api.NoContent()
}

func checkout(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	var opts order.CheckoutOptions
	if req.Body != "" {
		if err := api.Decode(req, &opts); err != nil {
			return api.Error(app.Logger, err)
		}
	}
	processor := ""
	if caller.IsStaff() {
		processor = caller.UserID
	}
	o, err := app.Orders.CreateFromCart(ctx, customerFor(req, caller), processor, opts)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusCreated, o)
}

func main() {
	defer app.Close()

	router := api.NewRouter(app.Logger, app.Config.AppEnv)
	router.Handle(http.MethodGet, "/cart", getCart)
	router.Handle(http.MethodPost, "/cart/items", addItem)
	router.Handle(http.MethodPut, "/cart/items/{lineId}", updateLine)
	router.Handle(http.MethodDelete, "/cart/items/{lineId}", removeLine)
	router.Handle(http.MethodDelete, "/cart", clearCart)
	router.Handle(http.MethodPost, "/cart/checkout", checkout)

	lambda.Start(router.Serve)
}
