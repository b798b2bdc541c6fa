package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

const orderColumns = `id, customer_id, processed_by, approved_by, status, subtotal, vat_amount,
	total_amount, total_cost, gross_profit, payment_method, payment_reference, refund_amount,
	refund_date, cancellation_reason, order_date, updated_at`

const orderLineColumns = `id, order_id, product_id, product_name, sale_unit, is_pack_product,
	quantity, units_per_quantity, unit_price, unit_cost, single_unit_price, total_price,
	total_cost, units_deducted`

func scanOrder(row rowScanner) (models.Order, error) {
	var o models.Order
	var customerID, processedBy, approvedBy, paymentMethod, paymentRef, reason sql.NullString
	var refundDate sql.NullTime
	err := row.Scan(&o.ID, &customerID, &processedBy, &approvedBy, &o.Status, &o.Subtotal, &o.VATAmount,
		&o.TotalAmount, &o.TotalCost, &o.GrossProfit, &paymentMethod, &paymentRef, &o.RefundAmount,
		&refundDate, &reason, &o.OrderDate, &o.UpdatedAt)
	if err != nil {
		return models.Order{}, err
	}
	o.CustomerID = customerID.String
	o.ProcessedBy = processedBy.String
	o.ApprovedBy = approvedBy.String
	o.PaymentMethod = models.PaymentMethod(paymentMethod.String)
	o.PaymentReference = paymentRef.String
	o.CancellationReason = reason.String
	if refundDate.Valid {
		o.RefundDate = &refundDate.Time
	}
	return o, nil
}

func scanOrderLine(row rowScanner) (models.OrderLine, error) {
	var l models.OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.SaleUnit, &l.IsPackProduct,
		&l.Quantity, &l.UnitsPerQuantity, &l.UnitPrice, &l.UnitCost, &l.SingleUnitPrice, &l.TotalPrice,
		&l.TotalCost, &l.UnitsDeducted)
	return l, err
}

// InsertOrder writes the header and every line in one transaction.
func (s *Store) InsertOrder(ctx context.Context, o models.Order) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		var refundDate sql.NullTime
		if o.RefundDate != nil {
			refundDate = nullTime(*o.RefundDate)
		}
		if _, err := s.q(ctx).ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			o.ID, nullString(o.CustomerID), nullString(o.ProcessedBy), nullString(o.ApprovedBy), o.Status,
			o.Subtotal, o.VATAmount, o.TotalAmount, o.TotalCost, o.GrossProfit,
			nullString(string(o.PaymentMethod)), nullString(o.PaymentReference), o.RefundAmount,
			refundDate, nullString(o.CancellationReason), o.OrderDate, o.UpdatedAt); err != nil {
			return mapError("insert order", err)
		}

		for i, l := range o.Lines {
			if _, err := s.q(ctx).ExecContext(ctx, `
				INSERT INTO order_items (`+orderLineColumns+`, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				l.ID, o.ID, l.ProductID, l.ProductName, l.SaleUnit, l.IsPackProduct,
				l.Quantity, l.UnitsPerQuantity, l.UnitPrice, l.UnitCost, l.SingleUnitPrice, l.TotalPrice,
				l.TotalCost, l.UnitsDeducted, i); err != nil {
				return mapError("insert order item", err)
			}
		}
		return nil
	})
}

func (s *Store) GetOrder(ctx context.Context, id string) (models.Order, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
		return models.Order{}, models.ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, mapError("get order", err)
	}

	orders := []models.Order{o}
	if err := s.attachLines(ctx, orders); err != nil {
		return models.Order{}, err
	}
	return orders[0], nil
}

// ChangeOrderStatus flips the status only while the row is still in one of
// from. Metadata left empty in change keeps its stored value.
func (s *Store) ChangeOrderStatus(ctx context.Context, id string, from []models.OrderStatus, change models.StatusChange) (bool, error) {
	var refundDate sql.NullTime
	if change.RefundDate != nil {
		refundDate = nullTime(*change.RefundDate)
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE orders SET
			status = $2,
			updated_at = $3,
			approved_by = COALESCE($4, approved_by),
			cancellation_reason = COALESCE($5, cancellation_reason),
			refund_amount = COALESCE($6, refund_amount),
			refund_date = COALESCE($7, refund_date)
		WHERE id = $1 AND status = ANY($8)`,
		id, change.Status, change.At, nullString(change.ApprovedBy), nullString(change.CancellationReason),
		change.RefundAmount, refundDate, pq.Array(statusStrings(from)))
	if isInvalidUUID(err) {
		return false, models.ErrOrderNotFound
	}
	if err != nil {
		return false, mapError("update order status", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	var exists bool
	if err := s.q(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, mapError("check order", err)
	}
	if !exists {
		return false, models.ErrOrderNotFound
	}
	return false, nil
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	return s.listOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = $1
		ORDER BY order_date DESC, id`, customerID)
}

func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	return s.listOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1::timestamptz IS NULL OR order_date >= $1)
		  AND ($2::timestamptz IS NULL OR order_date <= $2)
		  AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		ORDER BY order_date DESC, id`,
		nullTime(filter.From), nullTime(filter.To), pq.Array(statusStrings(filter.Statuses)))
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list orders", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapError("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate orders", err)
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines loads the lines of every order with a single query.
func (s *Store) attachLines(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+orderLineColumns+` FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, pq.Array(ids))
	if err != nil {
		return mapError("list order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanOrderLine(rows)
		if err != nil {
			return mapError("scan order item", err)
		}
		i := index[l.OrderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return mapError("iterate order items", rows.Err())
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
