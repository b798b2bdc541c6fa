package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

const cartLineColumns = `id, customer_id, product_id, quantity, unit_price, added_at, updated_at`

func scanCartLine(row rowScanner) (models.CartLine, error) {
	var l models.CartLine
	err := row.Scan(&l.ID, &l.CustomerID, &l.ProductID, &l.Quantity, &l.UnitPriceSnapshot, &l.AddedAt, &l.UpdatedAt)
	return l, err
}

func (s *Store) GetCart(ctx context.Context, customerID string) (models.Cart, error) {
	cart := models.Cart{CustomerID: customerID}
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT created_at, last_updated FROM carts WHERE customer_id = $1`, customerID,
	).Scan(&cart.CreatedAt, &cart.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return cart, nil
	}
	if err != nil {
		return models.Cart{}, mapError("get cart", err)
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+cartLineColumns+` FROM cart_items
		WHERE customer_id = $1
		ORDER BY added_at, id`, customerID)
	if err != nil {
		return models.Cart{}, mapError("list cart items", err)
	}
	defer rows.Close()

	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return models.Cart{}, mapError("scan cart item", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return models.Cart{}, mapError("iterate cart items", err)
	}
	return cart, nil
}

func (s *Store) GetCartLine(ctx context.Context, lineID string) (models.CartLine, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+cartLineColumns+` FROM cart_items WHERE id = $1`, lineID)
	line, err := scanCartLine(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return models.CartLine{}, models.ErrCartLineNotFound
	}
	if err != nil {
		return models.CartLine{}, mapError("get cart item", err)
	}
	return line, nil
}

// SaveCartLine creates the cart on first use and inserts or replaces the line.
func (s *Store) SaveCartLine(ctx context.Context, line models.CartLine) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO carts (customer_id, created_at, last_updated)
			VALUES ($1, $2, $2)
			ON CONFLICT (customer_id) DO UPDATE SET last_updated = EXCLUDED.last_updated`,
			line.CustomerID, line.UpdatedAt); err != nil {
			return mapError("upsert cart", err)
		}

		_, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO cart_items (`+cartLineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				quantity = EXCLUDED.quantity,
				unit_price = EXCLUDED.unit_price,
				updated_at = EXCLUDED.updated_at`,
			line.ID, line.CustomerID, line.ProductID, line.Quantity, line.UnitPriceSnapshot, line.AddedAt, line.UpdatedAt)
		return mapError("upsert cart item", err)
	})
}

func (s *Store) DeleteCartLine(ctx context.Context, lineID string) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, lineID)
	if isInvalidUUID(err) {
		return nil
	}
	return mapError("delete cart item", err)
}

// ConsumeCartLine takes qty off a line in one statement and drops the line
// once nothing is left. Quantities added after the caller read the line stay.
func (s *Store) ConsumeCartLine(ctx context.Context, lineID string, qty int) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		var left int
		err := s.q(ctx).QueryRowContext(ctx, `
			UPDATE cart_items SET quantity = quantity - $2, updated_at = NOW()
			WHERE id = $1
			RETURNING quantity`, lineID, qty).Scan(&left)
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil
		}
		if err != nil {
			return mapError("consume cart item", err)
		}
		if left > 0 {
			return nil
		}
		_, err = s.q(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, lineID)
		return mapError("delete cart item", err)
	})
}

// DeleteCart removes the cart; its lines go with it through ON DELETE CASCADE.
func (s *Store) DeleteCart(ctx context.Context, customerID string) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM carts WHERE customer_id = $1`, customerID)
	return mapError("delete cart", err)
}
