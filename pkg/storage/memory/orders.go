package memory

import (
	"context"
	"sort"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

func (s *Store) InsertOrder(ctx context.Context, o models.Order) error {
	defer s.lock(ctx)()

	s.data.orders[o.ID] = copyOrder(o)
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (models.Order, error) {
	defer s.lock(ctx)()

	o, ok := s.data.orders[id]
	if !ok {
		return models.Order{}, models.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

// ChangeOrderStatus applies change only while the order is in one of from.
// It reports false when the order exists but is in another status.
func (s *Store) ChangeOrderStatus(ctx context.Context, id string, from []models.OrderStatus, change models.StatusChange) (bool, error) {
	defer s.lock(ctx)()

	o, ok := s.data.orders[id]
	if !ok {
		return false, models.ErrOrderNotFound
	}
	if !containsStatus(from, o.Status) {
		return false, nil
	}

	o.Status = change.Status
	o.UpdatedAt = change.At
	if change.ApprovedBy != "" {
		o.ApprovedBy = change.ApprovedBy
	}
	if change.CancellationReason != "" {
		o.CancellationReason = change.CancellationReason
	}
	if change.RefundAmount.Valid {
		o.RefundAmount = change.RefundAmount
	}
	if change.RefundDate != nil {
		t := *change.RefundDate
		o.RefundDate = &t
	}
	s.data.orders[id] = o
	return true, nil
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	defer s.lock(ctx)()

	var out []models.Order
	for _, o := range s.data.orders {
		if o.CustomerID == customerID {
			out = append(out, copyOrder(o))
		}
	}
	sortOrders(out)
	return out, nil
}

func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	defer s.lock(ctx)()

	var out []models.Order
	for _, o := range s.data.orders {
		if filter.Matches(o) {
			out = append(out, copyOrder(o))
		}
	}
	sortOrders(out)
	return out, nil
}

// sortOrders orders newest first.
func sortOrders(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].OrderDate.After(orders[j].OrderDate)
	})
}

func containsStatus(set []models.OrderStatus, s models.OrderStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
