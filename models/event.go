package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventScheduled EventStatus = "scheduled"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventScheduled, EventOngoing, EventCompleted, EventCancelled:
		return true
	}
	return false
}

type Event struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	EventDate        time.Time       `json:"event_date"`
	EndDate          *time.Time      `json:"end_date,omitempty"`
	Status           EventStatus     `json:"status"`
	MaxAttendees     int             `json:"max_attendees"`
	CurrentAttendees int             `json:"current_attendees"`
	TicketPrice      decimal.Decimal `json:"ticket_price"`
	CreatedBy        string          `json:"created_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (e Event) AvailableSeats() int {
	return e.MaxAttendees - e.CurrentAttendees
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingAttended  BookingStatus = "attended"
)

type EventBooking struct {
	ID              string          `json:"id"`
	EventID         string          `json:"event_id"`
	CustomerID      string          `json:"customer_id"`
	NumberOfTickets int             `json:"number_of_tickets"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          BookingStatus   `json:"status"`
	BookingDate     time.Time       `json:"booking_date"`
}

// EventStockAllocation reserves product units for use at an event.
type EventStockAllocation struct {
	ID                string    `json:"id"`
	EventID           string    `json:"event_id"`
	ProductID         string    `json:"product_id"`
	QuantityAllocated int       `json:"quantity_allocated"`
	QuantityUsed      int       `json:"quantity_used"`
	CreatedAt         time.Time `json:"created_at"`
}

func (a EventStockAllocation) Unused() int {
	return a.QuantityAllocated - a.QuantityUsed
}
