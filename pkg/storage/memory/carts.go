package memory

import (
	"context"
	"sort"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

// GetCart returns the customer's cart. A customer without a cart gets an
// empty one.
func (s *Store) GetCart(ctx context.Context, customerID string) (models.Cart, error) {
	defer s.lock(ctx)()

	cart, ok := s.data.carts[customerID]
	if !ok {
		return models.Cart{CustomerID: customerID}, nil
	}
	for _, line := range s.data.cartLines {
		if line.CustomerID == customerID {
			cart.Lines = append(cart.Lines, line)
		}
	}
	sort.Slice(cart.Lines, func(i, j int) bool {
		if cart.Lines[i].AddedAt.Equal(cart.Lines[j].AddedAt) {
			return cart.Lines[i].ID < cart.Lines[j].ID
		}
		return cart.Lines[i].AddedAt.Before(cart.Lines[j].AddedAt)
	})
	return cart, nil
}

func (s *Store) GetCartLine(ctx context.Context, lineID string) (models.CartLine, error) {
	defer s.lock(ctx)()

	line, ok := s.data.cartLines[lineID]
	if !ok {
		return models.CartLine{}, models.ErrCartLineNotFound
	}
	return line, nil
}

// SaveCartLine inserts or replaces line, creating the customer's cart first
// when needed.
func (s *Store) SaveCartLine(ctx context.Context, line models.CartLine) error {
	defer s.lock(ctx)()

	cart, ok := s.data.carts[line.CustomerID]
	if !ok {
		cart = models.Cart{CustomerID: line.CustomerID, CreatedAt: line.UpdatedAt}
	}
	cart.LastUpdated = line.UpdatedAt
	s.data.carts[line.CustomerID] = cart
	s.data.cartLines[line.ID] = line
	return nil
}

func (s *Store) DeleteCartLine(ctx context.Context, lineID string) error {
	defer s.lock(ctx)()

	delete(s.data.cartLines, lineID)
	return nil
}

// ConsumeCartLine takes qty off a line and drops the line once nothing is
// left. A missing line is not an error.
func (s *Store) ConsumeCartLine(ctx context.Context, lineID string, qty int) error {
	defer s.lock(ctx)()

	line, ok := s.data.cartLines[lineID]
	if !ok {
		return nil
	}
	line.Quantity -= qty
	if line.Quantity <= 0 {
		delete(s.data.cartLines, lineID)
		return nil
	}
	s.data.cartLines[lineID] = line
	return nil
}

func (s *Store) DeleteCart(ctx context.Context, customerID string) error {
	defer s.lock(ctx)()

	for id, line := range s.data.cartLines {
		if line.CustomerID == customerID {
			delete(s.data.cartLines, id)
		}
	}
	delete(s.data.carts, customerID)
	return nil
}
