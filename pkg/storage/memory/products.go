package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

func (s *Store) CreateProduct(ctx context.Context, p models.Product) error {
	defer s.lock(ctx)()

	if _, ok := s.data.products[p.ID]; ok {
		return fmt.Errorf("%w: id %s", models.ErrDuplicateProduct, p.ID)
	}
	if s.productByName(p.Name) != nil {
		return fmt.Errorf("%w: %s", models.ErrDuplicateProduct, p.Name)
	}
	s.data.products[p.ID] = copyProduct(p)
	return nil
}

// UpdateProduct writes the catalog fields of p, keeping the stored stock
// level and status.
func (s *Store) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	defer s.lock(ctx)()

	stored, ok := s.data.products[p.ID]
	if !ok {
		return models.Product{}, models.ErrProductNotFound
	}
	if other := s.productByName(p.Name); other != nil && other.ID != p.ID {
		return models.Product{}, fmt.Errorf("%w: %s", models.ErrDuplicateProduct, p.Name)
	}
	p.StockLevel = stored.StockLevel
	p.Status = stored.Status
	p.CreatedAt = stored.CreatedAt
	s.data.products[p.ID] = copyProduct(p)
	return copyProduct(p), nil
}

func (s *Store) RetireProduct(ctx context.Context, id string, at time.Time) (models.Product, error) {
	defer s.lock(ctx)()

	p, ok := s.data.products[id]
	if !ok {
		return models.Product{}, models.ErrProductNotFound
	}
	if p.Status != models.ProductRetired {
		p.Status = models.ProductRetired
		p.UpdatedAt = at
		s.data.products[id] = p
	}
	return copyProduct(p), nil
}

// UpsertProductByName inserts p or, when a product with the same name exists,
// overwrites its catalog fields while keeping its id and creation time.
func (s *Store) UpsertProductByName(ctx context.Context, p models.Product) (models.Product, error) {
	defer s.lock(ctx)()

	if existing := s.productByName(p.Name); existing != nil {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	}
	s.data.products[p.ID] = copyProduct(p)
	return copyProduct(p), nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (models.Product, error) {
	defer s.lock(ctx)()

	p, ok := s.data.products[id]
	if !ok {
		return models.Product{}, models.ErrProductNotFound
	}
	return copyProduct(p), nil
}

func (s *Store) ListProducts(ctx context.Context, includeRetired bool) ([]models.Product, error) {
	defer s.lock(ctx)()

	out := make([]models.Product, 0, len(s.data.products))
	for _, p := range s.data.products {
		if !includeRetired && !p.IsActive() {
			continue
		}
		out = append(out, copyProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AdjustStock applies delta only when the resulting level stays non-negative.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	defer s.lock(ctx)()

	p, ok := s.data.products[id]
	if !ok {
		return 0, models.ErrProductNotFound
	}
	if p.StockLevel+delta < 0 {
		return p.StockLevel, fmt.Errorf("%w: product %s has %d units, %d requested", models.ErrInsufficientStock, id, p.StockLevel, -delta)
	}
	p.StockLevel += delta
	p.UpdatedAt = time.Now().UTC()
	s.data.products[id] = p
	return p.StockLevel, nil
}

func (s *Store) productByName(name string) *models.Product {
	for _, p := range s.data.products {
		if p.Name == name {
			p := p
			return &p
		}
	}
	return nil
}
