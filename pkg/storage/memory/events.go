package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

func (s *Store) InsertEvent(ctx context.Context, e models.Event) error {
	defer s.lock(ctx)()

	s.data.events[e.ID] = e
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (models.Event, error) {
	defer s.lock(ctx)()

	e, ok := s.data.events[id]
	if !ok {
		return models.Event{}, models.ErrEventNotFound
	}
	return e, nil
}

// ListEvents returns events dated within [from, to], earliest first. A zero
// bound is open.
func (s *Store) ListEvents(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	defer s.lock(ctx)()

	var out []models.Event
	for _, e := range s.data.events {
		if !from.IsZero() && e.EventDate.Before(from) {
			continue
		}
		if !to.IsZero() && e.EventDate.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDate.Before(out[j].EventDate) })
	return out, nil
}

// ChangeEventStatus moves the event to `to` only while it is in one of from.
func (s *Store) ChangeEventStatus(ctx context.Context, id string, from []models.EventStatus, to models.EventStatus) (bool, error) {
	defer s.lock(ctx)()

	e, ok := s.data.events[id]
	if !ok {
		return false, models.ErrEventNotFound
	}
	for _, f := range from {
		if e.Status == f {
			e.Status = to
			s.data.events[id] = e
			return true, nil
		}
	}
	return false, nil
}

// AdjustAttendees moves the seat count by delta. Increments require a
// scheduled event with room left; decrements never go below zero.
func (s *Store) AdjustAttendees(ctx context.Context, id string, delta int) (int, error) {
	defer s.lock(ctx)()

	e, ok := s.data.events[id]
	if !ok {
		return 0, models.ErrEventNotFound
	}
	next := e.CurrentAttendees + delta
	if delta > 0 {
		if e.Status != models.EventScheduled {
			return e.CurrentAttendees, fmt.Errorf("%w: status %s", models.ErrEventNotAvailable, e.Status)
		}
		if next > e.MaxAttendees {
			return e.CurrentAttendees, fmt.Errorf("%w: %d of %d seats taken, %d requested",
				models.ErrCapacityExceeded, e.CurrentAttendees, e.MaxAttendees, delta)
		}
	}
	if next < 0 {
		return e.CurrentAttendees, fmt.Errorf("%w: attendee count would go negative", models.ErrInvalidTransition)
	}
	e.CurrentAttendees = next
	s.data.events[id] = e
	return next, nil
}

func (s *Store) InsertBooking(ctx context.Context, b models.EventBooking) error {
	defer s.lock(ctx)()

	s.data.bookings[b.ID] = b
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (models.EventBooking, error) {
	defer s.lock(ctx)()

	b, ok := s.data.bookings[id]
	if !ok {
		return models.EventBooking{}, models.ErrBookingNotFound
	}
	return b, nil
}

// ChangeBookingStatus moves the booking to `to` only while it is in one of from.
func (s *Store) ChangeBookingStatus(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	defer s.lock(ctx)()

	b, ok := s.data.bookings[id]
	if !ok {
		return false, models.ErrBookingNotFound
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			s.data.bookings[id] = b
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListBookingsByCustomer(ctx context.Context, customerID string) ([]models.EventBooking, error) {
	return s.listBookings(ctx, func(b models.EventBooking) bool { return b.CustomerID == customerID })
}

func (s *Store) ListBookingsByEvent(ctx context.Context, eventID string) ([]models.EventBooking, error) {
	return s.listBookings(ctx, func(b models.EventBooking) bool { return b.EventID == eventID })
}

func (s *Store) listBookings(ctx context.Context, keep func(models.EventBooking) bool) ([]models.EventBooking, error) {
	defer s.lock(ctx)()

	var out []models.EventBooking
	for _, b := range s.data.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].BookingDate.Before(out[j].BookingDate)
	})
	return out, nil
}

func (s *Store) InsertStockAllocation(ctx context.Context, a models.EventStockAllocation) error {
	defer s.lock(ctx)()

	s.data.allocations[a.ID] = a
	return nil
}

func (s *Store) GetStockAllocation(ctx context.Context, id string) (models.EventStockAllocation, error) {
	defer s.lock(ctx)()

	a, ok := s.data.allocations[id]
	if !ok {
		return models.EventStockAllocation{}, models.ErrAllocationNotFound
	}
	return a, nil
}

// UpdateStockAllocation writes next only while the stored allocation still
// holds prev's quantities.
func (s *Store) UpdateStockAllocation(ctx context.Context, prev, next models.EventStockAllocation) (bool, error) {
	defer s.lock(ctx)()

	a, ok := s.data.allocations[prev.ID]
	if !ok {
		return false, models.ErrAllocationNotFound
	}
	if a.QuantityAllocated != prev.QuantityAllocated || a.QuantityUsed != prev.QuantityUsed {
		return false, nil
	}
	a.QuantityAllocated = next.QuantityAllocated
	a.QuantityUsed = next.QuantityUsed
	s.data.allocations[prev.ID] = a
	return true, nil
}

func (s *Store) ListStockAllocations(ctx context.Context, eventID string) ([]models.EventStockAllocation, error) {
	defer s.lock(ctx)()

	var out []models.EventStockAllocation
	for _, a := range s.data.allocations {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
