package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/api"
	"gitlab.connectwisedev.com/backoffice-service/pkg/bootstrap"
	"gitlab.connectwisedev.com/backoffice-service/pkg/event"
)

var app *bootstrap.App

func init() {
	var err error
	app, err = bootstrap.New("events")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
}

type bookRequest struct {
	Tickets int `json:"number_of_tickets"`
}

type allocateRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type usageRequest struct {
	QuantityUsed int `json:"quantity_used"`
}

func listEvents(ctx context.Context, _ api.Request, _ models.Identity) (api.Response, error) {
	events, err := app.Events.ListUpcoming(ctx)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return api.Cached(events, 60)
}

func createEvent(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	var in event.EventInput
	if err := api.Decode(req, &in); err != nil {
		return api.Error(app.Logger, err)
	}
	in.CreatedBy = caller.UserID
	e, err := app.Events.CreateEvent(ctx, in)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusCreated, e)
}

func getEvent(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "eventId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	e, err := app.Events.Get(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, e)
}

func cancelEvent(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "eventId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	e, err := app.Events.CancelEvent(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, e)
}

func book(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "eventId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body bookRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	b, err := app.Events.Book(ctx, id, caller.UserID, body.Tickets)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusCreated, b)
}

// listBookings returns the caller's bookings, or every booking for an event
// when staff pass ?event_id=.
func listBookings(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	var (
		bookings []models.EventBooking
		err      error
	)
	if eventID := req.QueryStringParameters["event_id"]; eventID != "" && caller.IsStaff() {
		bookings, err = app.Events.ListEventBookings(ctx, eventID)
	} else {
		bookings, err = app.Events.ListBookings(ctx, caller.UserID)
	}
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if bookings == nil {
		bookings = []models.EventBooking{}
	}
	return api.JSON(http.StatusOK, bookings)
}

func cancelBooking(ctx context.Context, req api.Request, caller models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "bookingId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if !caller.IsStaff() {
		own, err := app.Events.ListBookings(ctx, caller.UserID)
		if err != nil {
			return api.Error(app.Logger, err)
		}
		found := false
		for _, b := range own {
			if b.ID == id {
				found = true
				break
			}
		}
		if !found {
			return api.Error(app.Logger, models.ErrBookingNotFound)
		}
	}
	b, err := app.Events.CancelBooking(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, b)
}

func checkIn(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "bookingId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	b, err := app.Events.CheckIn(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, b)
}

func allocateStock(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "eventId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body allocateRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	a, err := app.Events.AllocateStock(ctx, id, body.ProductID, body.Quantity)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusCreated, a)
}

func listAllocations(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "eventId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	allocations, err := app.Events.ListAllocations(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	if allocations == nil {
		allocations = []models.EventStockAllocation{}
	}
	return api.JSON(http.StatusOK, allocations)
}

func recordUsage(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "allocationId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	var body usageRequest
	if err := api.Decode(req, &body); err != nil {
		return api.Error(app.Logger, err)
	}
	a, err := app.Events.RecordUsage(ctx, id, body.QuantityUsed)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, a)
}

func releaseStock(ctx context.Context, req api.Request, _ models.Identity) (api.Response, error) {
	id, err := api.PathParam(req, "allocationId")
	if err != nil {
		return api.Error(app.Logger, err)
	}
	a, err := app.Events.ReleaseStock(ctx, id)
	if err != nil {
		return api.Error(app.Logger, err)
	}
	return api.JSON(http.StatusOK, a)
}

func main() {
	defer app.Close()

	router := api.NewRouter(app.Logger, app.Config.AppEnv)
	router.Handle(http.MethodGet, "/events", listEvents)
	router.Handle(http.MethodPost, "/events", api.Manager(createEvent))
	router.Handle(http.MethodGet, "/events/{eventId}", getEvent)
	router.Handle(http.MethodPost, "/events/{eventId}/cancel", api.Manager(cancelEvent))
	router.Handle(http.MethodPost, "/events/{eventId}/bookings", book)
	router.Handle(http.MethodGet, "/bookings", listBookings)
	router.Handle(http.MethodPost, "/bookings/{bookingId}/cancel", cancelBooking)
	router.Handle(http.MethodPost, "/bookings/{bookingId}/checkin", api.Staff(checkIn))
	router.Handle(http.MethodPost, "/events/{eventId}/stock", api.Staff(allocateStock))
	router.Handle(http.MethodGet, "/events/{eventId}/stock", api.Staff(listAllocations))
	router.Handle(http.MethodPost, "/allocations/{allocationId}/usage", api.Staff(recordUsage))
	router.Handle(http.MethodPost, "/allocations/{allocationId}/release", api.Staff(releaseStock))

	lambda.Start(router.Serve)
}
