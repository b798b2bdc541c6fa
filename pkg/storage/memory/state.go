package memory

import "gitlab.connectwisedev.com/backoffice-service/models"

type state struct {
	products    map[string]models.Product
	carts       map[string]models.Cart
	cartLines   map[string]models.CartLine
	orders      map[string]models.Order
	events      map[string]models.Event
	bookings    map[string]models.EventBooking
	allocations map[string]models.EventStockAllocation
}

func newState() *state {
	return &state{
		products:    map[string]models.Product{},
		carts:       map[string]models.Cart{},
		cartLines:   map[string]models.CartLine{},
		orders:      map[string]models.Order{},
		events:      map[string]models.Event{},
		bookings:    map[string]models.EventBooking{},
		allocations: map[string]models.EventStockAllocation{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = copyProduct(v)
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartLines {
		c.cartLines[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	return c
}

func copyProduct(p models.Product) models.Product {
	if p.Description != nil {
		d := *p.Description
		p.Description = &d
	}
	return p
}

func copyOrder(o models.Order) models.Order {
	o.Lines = append([]models.OrderLine(nil), o.Lines...)
	if o.RefundDate != nil {
		t := *o.RefundDate
		o.RefundDate = &t
	}
	return o
}
