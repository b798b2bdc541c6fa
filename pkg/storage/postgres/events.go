package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

const eventColumns = `id, name, description, event_date, end_date, status, max_attendees,
	current_attendees, ticket_price, created_by, created_at`

const bookingColumns = `id, event_id, customer_id, number_of_tickets, total_amount, status, booking_date`

const allocationColumns = `id, event_id, product_id, quantity_allocated, quantity_used, created_at`

func scanEvent(row rowScanner) (models.Event, error) {
	var e models.Event
	var description, createdBy sql.NullString
	var endDate sql.NullTime
	err := row.Scan(&e.ID, &e.Name, &description, &e.EventDate, &endDate, &e.Status, &e.MaxAttendees,
		&e.CurrentAttendees, &e.TicketPrice, &createdBy, &e.CreatedAt)
	if err != nil {
		return models.Event{}, err
	}
	e.Description = description.String
	e.CreatedBy = createdBy.String
	if endDate.Valid {
		e.EndDate = &endDate.Time
	}
	return e, nil
}

func scanBooking(row rowScanner) (models.EventBooking, error) {
	var b models.EventBooking
	err := row.Scan(&b.ID, &b.EventID, &b.CustomerID, &b.NumberOfTickets, &b.TotalAmount, &b.Status, &b.BookingDate)
	return b, err
}

func scanAllocation(row rowScanner) (models.EventStockAllocation, error) {
	var a models.EventStockAllocation
	err := row.Scan(&a.ID, &a.EventID, &a.ProductID, &a.QuantityAllocated, &a.QuantityUsed, &a.CreatedAt)
	return a, err
}

func (s *Store) InsertEvent(ctx context.Context, e models.Event) error {
	var endDate sql.NullTime
	if e.EndDate != nil {
		endDate = nullTime(*e.EndDate)
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Name, nullString(e.Description), e.EventDate, endDate, e.Status, e.MaxAttendees,
		e.CurrentAttendees, e.TicketPrice, nullString(e.CreatedBy), e.CreatedAt)
	return mapError("insert event", err)
}

func (s *Store) GetEvent(ctx context.Context, id string) (models.Event, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return models.Event{}, models.ErrEventNotFound
	}
	if err != nil {
		return models.Event{}, mapError("get event", err)
	}
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE ($1::timestamptz IS NULL OR event_date >= $1)
		  AND ($2::timestamptz IS NULL OR event_date <= $2)
		ORDER BY event_date`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, mapError("list events", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mapError("scan event", err)
		}
		out = append(out, e)
	}
	return out, mapError("iterate events", rows.Err())
}

// ChangeEventStatus moves the event to `to` only while it is in one of from.
func (s *Store) ChangeEventStatus(ctx context.Context, id string, from []models.EventStatus, to models.EventStatus) (bool, error) {
	statuses := make([]string, len(from))
	for i, f := range from {
		statuses[i] = string(f)
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE events SET status = $2
		WHERE id = $1 AND status = ANY($3)`, id, to, pq.Array(statuses))
	if isInvalidUUID(err) {
		return false, models.ErrEventNotFound
	}
	if err != nil {
		return false, mapError("update event status", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if _, err := s.GetEvent(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// AdjustAttendees moves the seat count in one conditional statement.
// Increments need a scheduled event with room for all of delta.
func (s *Store) AdjustAttendees(ctx context.Context, id string, delta int) (int, error) {
	var current int
	err := s.q(ctx).QueryRowContext(ctx, `
		UPDATE events
		SET current_attendees = current_attendees + $2
		WHERE id = $1
		  AND current_attendees + $2 >= 0
		  AND ($2 <= 0 OR (status = 'scheduled' AND current_attendees + $2 <= max_attendees))
		RETURNING current_attendees`, id, delta).Scan(&current)
	if err == nil {
		return current, nil
	}
	if isInvalidUUID(err) {
		return 0, models.ErrEventNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, mapError("adjust attendees", err)
	}

	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return 0, err
	}
	switch {
	case delta > 0 && e.Status != models.EventScheduled:
		return e.CurrentAttendees, fmt.Errorf("%w: status %s", models.ErrEventNotAvailable, e.Status)
	case delta > 0:
		return e.CurrentAttendees, fmt.Errorf("%w: %d of %d seats taken, %d requested",
			models.ErrCapacityExceeded, e.CurrentAttendees, e.MaxAttendees, delta)
	default:
		return e.CurrentAttendees, fmt.Errorf("%w: attendee count would go negative", models.ErrInvalidTransition)
	}
}

func (s *Store) InsertBooking(ctx context.Context, b models.EventBooking) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO event_bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.EventID, b.CustomerID, b.NumberOfTickets, b.TotalAmount, b.Status, b.BookingDate)
	return mapError("insert booking", err)
}

func (s *Store) GetBooking(ctx context.Context, id string) (models.EventBooking, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM event_bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return models.EventBooking{}, models.ErrBookingNotFound
	}
	if err != nil {
		return models.EventBooking{}, mapError("get booking", err)
	}
	return b, nil
}

func (s *Store) ChangeBookingStatus(ctx context.Context, id string, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	statuses := make([]string, len(from))
	for i, f := range from {
		statuses[i] = string(f)
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE event_bookings SET status = $2
		WHERE id = $1 AND status = ANY($3)`, id, to, pq.Array(statuses))
	if isInvalidUUID(err) {
		return false, models.ErrBookingNotFound
	}
	if err != nil {
		return false, mapError("update booking status", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if _, err := s.GetBooking(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ListBookingsByCustomer(ctx context.Context, customerID string) ([]models.EventBooking, error) {
	return s.listBookings(ctx, `
		SELECT `+bookingColumns+` FROM event_bookings
		WHERE customer_id = $1 ORDER BY booking_date, id`, customerID)
}

func (s *Store) ListBookingsByEvent(ctx context.Context, eventID string) ([]models.EventBooking, error) {
	return s.listBookings(ctx, `
		SELECT `+bookingColumns+` FROM event_bookings
		WHERE event_id = $1 ORDER BY booking_date, id`, eventID)
}

func (s *Store) listBookings(ctx context.Context, query string, args ...any) ([]models.EventBooking, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("list bookings", err)
	}
	defer rows.Close()

	var out []models.EventBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, mapError("scan booking", err)
		}
		out = append(out, b)
	}
	return out, mapError("iterate bookings", rows.Err())
}

func (s *Store) InsertStockAllocation(ctx context.Context, a models.EventStockAllocation) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO event_stock (`+allocationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.EventID, a.ProductID, a.QuantityAllocated, a.QuantityUsed, a.CreatedAt)
	return mapError("insert stock allocation", err)
}

func (s *Store) GetStockAllocation(ctx context.Context, id string) (models.EventStockAllocation, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+allocationColumns+` FROM event_stock WHERE id = $1`, id)
	a, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return models.EventStockAllocation{}, models.ErrAllocationNotFound
	}
	if err != nil {
		return models.EventStockAllocation{}, mapError("get stock allocation", err)
	}
	return a, nil
}

// UpdateStockAllocation writes next only while the row still holds prev's
// quantities. A concurrent writer makes it report false.
func (s *Store) UpdateStockAllocation(ctx context.Context, prev, next models.EventStockAllocation) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE event_stock SET quantity_allocated = $2, quantity_used = $3
		WHERE id = $1 AND quantity_allocated = $4 AND quantity_used = $5`,
		prev.ID, next.QuantityAllocated, next.QuantityUsed, prev.QuantityAllocated, prev.QuantityUsed)
	if isInvalidUUID(err) {
		return false, models.ErrAllocationNotFound
	}
	if err != nil {
		return false, mapError("update stock allocation", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if _, err := s.GetStockAllocation(ctx, prev.ID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ListStockAllocations(ctx context.Context, eventID string) ([]models.EventStockAllocation, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+allocationColumns+` FROM event_stock
		WHERE event_id = $1 ORDER BY created_at`, eventID)
	if isInvalidUUID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("list stock allocations", err)
	}
	defer rows.Close()

	var out []models.EventStockAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, mapError("scan stock allocation", err)
		}
		out = append(out, a)
	}
	return out, mapError("iterate stock allocations", rows.Err())
}
