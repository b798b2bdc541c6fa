// Package event manages event capacity, bookings and stock set aside for
// events.
package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/clock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/money"
	"gitlab.connectwisedev.com/backoffice-service/pkg/telemetry"
)

// Store is the event, booking and allocation persistence.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertEvent(ctx context.Context, e models.Event) error
	GetEvent(ctx context.Context, id string) (models.Event, error)
	ListEvents(ctx context.Context, from, to time.Time) ([]models.Event, error)
	ChangeEventStatus(ctx context.Context, id string, from []models.EventStatus, to models.EventStatus) (bool, error)
	AdjustAttendees(ctx context.Context, id string, delta int) (int, error)

	InsertBooking(ctx context.Context, b models.EventBooking) error
	GetBooking(ctx context.Context, id string) (models.EventBooking, error)
	ChangeBookingStatus(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) (bool, error)
	ListBookingsByCustomer(ctx context.Context, customerID string) ([]models.EventBooking, error)
	ListBookingsByEvent(ctx context.Context, eventID string) ([]models.EventBooking, error)

	InsertStockAllocation(ctx context.Context, a models.EventStockAllocation) error
	GetStockAllocation(ctx context.Context, id string) (models.EventStockAllocation, error)
	UpdateStockAllocation(ctx context.Context, prev, next models.EventStockAllocation) (bool, error)
	ListStockAllocations(ctx context.Context, eventID string) ([]models.EventStockAllocation, error)
}

// Ledger is the subset of stock.Ledger used for event allocations.
type Ledger interface {
	Reserve(ctx context.Context, productID string, units int) (int, error)
	Return(ctx context.Context, productID string, units int) (int, error)
	Invalidate(ctx context.Context, productIDs ...string)
}

// Manager books seats and allocates stock for events.
type Manager struct {
	store  Store
	ledger Ledger
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for booking dates and upcoming listings.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds a manager over store and ledger.
func NewManager(store Store, ledger Ledger, opts ...Option) *Manager {
	m := &Manager{store: store, ledger: ledger, clock: clock.NewSystem(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EventInput carries the fields of a new event.
type EventInput struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	EventDate    time.Time       `json:"event_date"`
	EndDate      *time.Time      `json:"end_date"`
	MaxAttendees int             `json:"max_attendees"`
	TicketPrice  decimal.Decimal `json:"ticket_price"`
	CreatedBy    string          `json:"created_by"`
}

// CreateEvent validates in and stores a scheduled event with no attendees.
func (m *Manager) CreateEvent(ctx context.Context, in EventInput) (models.Event, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return models.Event{}, models.NewError(models.KindValidation, "event name is required")
	case in.EventDate.IsZero():
		return models.Event{}, models.NewError(models.KindValidation, "event date is required")
	case in.EndDate != nil && in.EndDate.Before(in.EventDate):
		return models.Event{}, models.NewError(models.KindValidation, "event ends before it starts")
	case in.MaxAttendees <= 0:
		return models.Event{}, models.NewError(models.KindValidation, "max attendees must be positive")
	case in.TicketPrice.IsNegative():
		return models.Event{}, models.NewError(models.KindValidation, "ticket price cannot be negative")
	}

	e := models.Event{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		EventDate:    in.EventDate,
		EndDate:      in.EndDate,
		Status:       models.EventScheduled,
		MaxAttendees: in.MaxAttendees,
		TicketPrice:  money.Round(in.TicketPrice),
		CreatedBy:    in.CreatedBy,
		CreatedAt:    m.clock.Now(),
	}
	if err := m.store.InsertEvent(ctx, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// Get returns an event.
func (m *Manager) Get(ctx context.Context, eventID string) (models.Event, error) {
	if eventID == "" {
		return models.Event{}, models.ErrInvalidID
	}
	return m.store.GetEvent(ctx, eventID)
}

// ListUpcoming returns scheduled events from now on, earliest first.
func (m *Manager) ListUpcoming(ctx context.Context) ([]models.Event, error) {
	events, err := m.store.ListEvents(ctx, m.clock.Now(), time.Time{})
	if err != nil {
		return nil, err
	}
	out := events[:0]
	for _, e := range events {
		if e.Status == models.EventScheduled {
			out = append(out, e)
		}
	}
	return out, nil
}

// Book reserves seats and records a confirmed booking priced at tickets times
// the ticket price. The seat count never exceeds the event's capacity.
func (m *Manager) Book(ctx context.Context, eventID, customerID string, tickets int) (b models.EventBooking, err error) {
	ctx, span := telemetry.Start(ctx, "event.Book", attribute.String("event_id", eventID), attribute.Int("tickets", tickets))
	defer func() { telemetry.End(span, err) }()

	if eventID == "" || customerID == "" {
		return models.EventBooking{}, models.ErrInvalidID
	}
	if tickets <= 0 {
		return models.EventBooking{}, fmt.Errorf("%w: %d tickets", models.ErrInvalidQuantity, tickets)
	}

	e, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return models.EventBooking{}, err
	}
	if e.Status != models.EventScheduled {
		return models.EventBooking{}, fmt.Errorf("%w: %s is %s", models.ErrEventNotAvailable, e.Name, e.Status)
	}
	if e.CurrentAttendees+tickets > e.MaxAttendees {
		return models.EventBooking{}, fmt.Errorf("%w: %d seats left, %d requested", models.ErrCapacityExceeded, e.AvailableSeats(), tickets)
	}

	b = models.EventBooking{
		ID:              uuid.NewString(),
		EventID:         eventID,
		CustomerID:      customerID,
		NumberOfTickets: tickets,
		TotalAmount:     money.Round(e.TicketPrice.Mul(decimal.NewFromInt(int64(tickets)))),
		Status:          models.BookingConfirmed,
		BookingDate:     m.clock.Now(),
	}
	err = m.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := m.store.AdjustAttendees(ctx, eventID, tickets); err != nil {
			return err
		}
		return m.store.InsertBooking(ctx, b)
	})
	if err != nil {
		return models.EventBooking{}, err
	}

	m.logger.Info("event booked", zap.String("event_id", eventID), zap.String("booking_id", b.ID), zap.Int("tickets", tickets))
	return b, nil
}

// CancelBooking cancels a booking and frees its seats if they were taken.
// Cancelling a cancelled booking returns it unchanged.
func (m *Manager) CancelBooking(ctx context.Context, bookingID string) (out models.EventBooking, err error) {
	ctx, span := telemetry.Start(ctx, "event.CancelBooking", attribute.String("booking_id", bookingID))
	defer func() { telemetry.End(span, err) }()

	if bookingID == "" {
		return models.EventBooking{}, models.ErrInvalidID
	}

	err = m.store.WithTx(ctx, func(ctx context.Context) error {
		b, err := m.store.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case models.BookingCancelled:
			out = b
			return nil
		case models.BookingAttended:
			return fmt.Errorf("%w: booking %s was attended", models.ErrInvalidTransition, bookingID)
		}

		ok, err := m.store.ChangeBookingStatus(ctx, bookingID, []models.BookingStatus{b.Status}, models.BookingCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: booking %s", models.ErrConcurrentUpdate, bookingID)
		}
		if b.Status == models.BookingConfirmed {
			if _, err := m.store.AdjustAttendees(ctx, b.EventID, -b.NumberOfTickets); err != nil {
				return err
			}
		}
		b.Status = models.BookingCancelled
		out = b
		return nil
	})
	if err != nil {
		return models.EventBooking{}, err
	}
	return out, nil
}

// CheckIn marks a confirmed booking as attended.
func (m *Manager) CheckIn(ctx context.Context, bookingID string) (models.EventBooking, error) {
	b, err := m.store.GetBooking(ctx, bookingID)
	if err != nil {
		return models.EventBooking{}, err
	}
	if b.Status == models.BookingAttended {
		return b, nil
	}
	if b.Status != models.BookingConfirmed {
		return models.EventBooking{}, fmt.Errorf("%w: booking is %s", models.ErrInvalidTransition, b.Status)
	}

	ok, err := m.store.ChangeBookingStatus(ctx, bookingID, []models.BookingStatus{models.BookingConfirmed}, models.BookingAttended)
	if err != nil {
		return models.EventBooking{}, err
	}
	if !ok {
		return models.EventBooking{}, fmt.Errorf("%w: booking %s", models.ErrConcurrentUpdate, bookingID)
	}
	b.Status = models.BookingAttended
	return b, nil
}

// ListBookings returns a customer's bookings.
func (m *Manager) ListBookings(ctx context.Context, customerID string) ([]models.EventBooking, error) {
	if customerID == "" {
		return nil, models.ErrInvalidID
	}
	return m.store.ListBookingsByCustomer(ctx, customerID)
}

// ListEventBookings returns every booking for an event.
func (m *Manager) ListEventBookings(ctx context.Context, eventID string) ([]models.EventBooking, error) {
	if eventID == "" {
		return nil, models.ErrInvalidID
	}
	return m.store.ListBookingsByEvent(ctx, eventID)
}

// UpdateStatus sets an event's status. Cancelled and completed events are
// final.
func (m *Manager) UpdateStatus(ctx context.Context, eventID string, status models.EventStatus) (models.Event, error) {
	if !status.Valid() {
		return models.Event{}, models.NewError(models.KindValidation, "unknown event status %q", status)
	}
	if status == models.EventCancelled {
		return m.CancelEvent(ctx, eventID)
	}

	e, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return models.Event{}, err
	}
	if isFinal(e.Status) {
		return models.Event{}, fmt.Errorf("%w: event is %s", models.ErrInvalidTransition, e.Status)
	}
	ok, err := m.store.ChangeEventStatus(ctx, eventID, openStatuses, status)
	if err != nil {
		return models.Event{}, err
	}
	if !ok {
		return models.Event{}, fmt.Errorf("%w: event %s", models.ErrConcurrentUpdate, eventID)
	}
	e.Status = status
	return e, nil
}

// CancelEvent closes an event to bookings and returns the unused part of its
// stock allocations. Existing bookings are left for staff to cancel.
func (m *Manager) CancelEvent(ctx context.Context, eventID string) (models.Event, error) {
	var (
		out      models.Event
		released []string
	)
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		e, err := m.store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e.Status == models.EventCancelled {
			out = e
			return nil
		}
		if e.Status == models.EventCompleted {
			return fmt.Errorf("%w: event is completed", models.ErrInvalidTransition)
		}
		ok, err := m.store.ChangeEventStatus(ctx, eventID, openStatuses, models.EventCancelled)
		if err != nil {
			return err
		}
		if !ok {
			// Another caller closed the event first and owns the release.
			if e, err = m.store.GetEvent(ctx, eventID); err != nil {
				return err
			}
			if e.Status != models.EventCancelled {
				return fmt.Errorf("%w: event is %s", models.ErrInvalidTransition, e.Status)
			}
			out = e
			return nil
		}

		allocations, err := m.store.ListStockAllocations(ctx, eventID)
		if err != nil {
			return err
		}
		for _, a := range allocations {
			if a.Unused() == 0 {
				continue
			}
			if err := m.release(ctx, a); err != nil {
				return err
			}
			released = append(released, a.ProductID)
		}
		e.Status = models.EventCancelled
		out = e
		return nil
	})
	if err != nil {
		return models.Event{}, err
	}
	m.ledger.Invalidate(ctx, released...)
	return out, nil
}

// AllocateStock takes qty units of a product out of stock for an event.
func (m *Manager) AllocateStock(ctx context.Context, eventID, productID string, qty int) (a models.EventStockAllocation, err error) {
	ctx, span := telemetry.Start(ctx, "event.AllocateStock", attribute.String("event_id", eventID), attribute.String("product_id", productID))
	defer func() { telemetry.End(span, err) }()

	if eventID == "" || productID == "" {
		return models.EventStockAllocation{}, models.ErrInvalidID
	}
	if qty <= 0 {
		return models.EventStockAllocation{}, fmt.Errorf("%w: allocate %d units", models.ErrInvalidQuantity, qty)
	}

	a = models.EventStockAllocation{
		ID:                uuid.NewString(),
		EventID:           eventID,
		ProductID:         productID,
		QuantityAllocated: qty,
		CreatedAt:         m.clock.Now(),
	}
	err = m.store.WithTx(ctx, func(ctx context.Context) error {
		e, err := m.store.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if isFinal(e.Status) {
			return fmt.Errorf("%w: event is %s", models.ErrEventNotAvailable, e.Status)
		}
		if _, err := m.ledger.Reserve(ctx, productID, qty); err != nil {
			return err
		}
		return m.store.InsertStockAllocation(ctx, a)
	})
	if err != nil {
		return models.EventStockAllocation{}, err
	}
	m.ledger.Invalidate(ctx, productID)
	return a, nil
}

// RecordUsage marks used units of an allocation as consumed.
func (m *Manager) RecordUsage(ctx context.Context, allocationID string, used int) (models.EventStockAllocation, error) {
	if used <= 0 {
		return models.EventStockAllocation{}, fmt.Errorf("%w: %d used", models.ErrInvalidQuantity, used)
	}
	var out models.EventStockAllocation
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		a, err := m.store.GetStockAllocation(ctx, allocationID)
		if err != nil {
			return err
		}
		if used > a.Unused() {
			return models.NewError(models.KindValidation, "only %d allocated units left, %d used", a.Unused(), used)
		}
		next := a
		next.QuantityUsed += used
		ok, err := m.store.UpdateStockAllocation(ctx, a, next)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: allocation %s", models.ErrConcurrentUpdate, allocationID)
		}
		out = next
		return nil
	})
	return out, err
}

// ReleaseStock returns the unused part of an allocation to stock and shrinks
// the allocation to what was used.
func (m *Manager) ReleaseStock(ctx context.Context, allocationID string) (models.EventStockAllocation, error) {
	var out models.EventStockAllocation
	err := m.store.WithTx(ctx, func(ctx context.Context) error {
		a, err := m.store.GetStockAllocation(ctx, allocationID)
		if err != nil {
			return err
		}
		out = a
		if a.Unused() == 0 {
			return nil
		}
		if err := m.release(ctx, a); err != nil {
			return err
		}
		out.QuantityAllocated = a.QuantityUsed
		return nil
	})
	if err != nil {
		return models.EventStockAllocation{}, err
	}
	m.ledger.Invalidate(ctx, out.ProductID)
	return out, nil
}

// ListAllocations returns an event's stock allocations, oldest first.
func (m *Manager) ListAllocations(ctx context.Context, eventID string) ([]models.EventStockAllocation, error) {
	return m.store.ListStockAllocations(ctx, eventID)
}

// release shrinks the allocation to what was used, then credits the difference
// back to stock. A lost conditional update credits nothing.
func (m *Manager) release(ctx context.Context, a models.EventStockAllocation) error {
	next := a
	next.QuantityAllocated = a.QuantityUsed
	ok, err := m.store.UpdateStockAllocation(ctx, a, next)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: allocation %s", models.ErrConcurrentUpdate, a.ID)
	}
	_, err = m.ledger.Return(ctx, a.ProductID, a.Unused())
	return err
}

var openStatuses = []models.EventStatus{models.EventScheduled, models.EventOngoing}

func isFinal(s models.EventStatus) bool {
	return s == models.EventCancelled || s == models.EventCompleted
}
