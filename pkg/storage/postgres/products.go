package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

const productColumns = `id, name, description, stock_level, unit_price, cost_price,
	minimum_stock_level, is_six_pack, pack_quantity, status, created_at, updated_at`

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	var description sql.NullString // Use sql.NullString for nullable columns
	err := row.Scan(&p.ID, &p.Name, &description, &p.StockLevel, &p.UnitPrice, &p.CostPrice,
		&p.MinimumStockLevel, &p.IsSixPack, &p.PackQuantity, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Product{}, err
	}
	if description.Valid {
		p.Description = &description.String
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Name, nullStringPtr(p.Description), p.StockLevel, p.UnitPrice, p.CostPrice,
		p.MinimumStockLevel, p.IsSixPack, p.PackQuantity, p.Status, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", models.ErrDuplicateProduct, p.Name)
	}
	return mapError("insert product", err)
}

// UpdateProduct writes the catalog fields of p and returns the stored row.
// Stock level and status are left alone; they change through AdjustStock and
// RetireProduct.
func (s *Store) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		UPDATE products SET
			name = $2, description = $3, unit_price = $4, cost_price = $5,
			minimum_stock_level = $6, is_six_pack = $7, pack_quantity = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, nullStringPtr(p.Description), p.UnitPrice, p.CostPrice,
		p.MinimumStockLevel, p.IsSixPack, p.PackQuantity, p.UpdatedAt)

	stored, err := scanProduct(row)
	switch {
	case isUniqueViolation(err):
		return models.Product{}, fmt.Errorf("%w: %s", models.ErrDuplicateProduct, p.Name)
	case errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err):
		return models.Product{}, models.ErrProductNotFound
	case err != nil:
		return models.Product{}, mapError("update product", err)
	}
	return stored, nil
}

// RetireProduct flips the status in one statement and returns the stored row.
// Retiring a retired product keeps its original timestamp.
func (s *Store) RetireProduct(ctx context.Context, id string, at time.Time) (models.Product, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		UPDATE products SET
			status = 'retired',
			updated_at = CASE WHEN status = 'retired' THEN updated_at ELSE $2 END
		WHERE id = $1
		RETURNING `+productColumns, id, at)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return models.Product{}, models.ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, mapError("retire product", err)
	}
	return p, nil
}

// UpsertProductByName inserts p, or overwrites the catalog fields of the
// product with the same name, and returns the stored row.
func (s *Store) UpsertProductByName(ctx context.Context, p models.Product) (models.Product, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			stock_level = EXCLUDED.stock_level,
			unit_price = EXCLUDED.unit_price,
			cost_price = EXCLUDED.cost_price,
			minimum_stock_level = EXCLUDED.minimum_stock_level,
			is_six_pack = EXCLUDED.is_six_pack,
			pack_quantity = EXCLUDED.pack_quantity,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING `+productColumns,
		p.ID, p.Name, nullStringPtr(p.Description), p.StockLevel, p.UnitPrice, p.CostPrice,
		p.MinimumStockLevel, p.IsSixPack, p.PackQuantity, p.Status, p.CreatedAt, p.UpdatedAt)

	stored, err := scanProduct(row)
	if err != nil {
		return models.Product{}, mapError("upsert product", err)
	}
	return stored, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (models.Product, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return models.Product{}, models.ErrProductNotFound
	}
	if err != nil {
		return models.Product{}, mapError("get product", err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, includeRetired bool) ([]models.Product, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE $1 OR status = 'active'
		ORDER BY name ASC`, includeRetired)
	if err != nil {
		return nil, mapError("list products", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapError("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate products", err)
	}
	return products, nil
}

// AdjustStock applies delta in one conditional statement. When no row
// matches, a follow-up read tells a missing product from a short one.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var level int
	err := s.q(ctx).QueryRowContext(ctx, `
		UPDATE products
		SET stock_level = stock_level + $2, updated_at = NOW()
		WHERE id = $1 AND stock_level + $2 >= 0
		RETURNING stock_level`, id, delta).Scan(&level)
	if err == nil {
		return level, nil
	}
	if isInvalidUUID(err) {
		return 0, models.ErrProductNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, mapError("adjust stock", err)
	}

	var current int
	err = s.q(ctx).QueryRowContext(ctx, `SELECT stock_level FROM products WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrProductNotFound
	}
	if err != nil {
		return 0, mapError("read stock", err)
	}
	return current, fmt.Errorf("%w: product %s has %d units, %d requested", models.ErrInsufficientStock, id, current, -delta)
}
