package postgres

import (
	"context"

	"github.com/teranga-app/api/internal/domain"
)

const orderItemColumns = `id, order_id, product_id, name, sku, unit_price, quantity,
	line_total, status, created_at, updated_at`

type orderItemRepository struct {
	provider *Provider
}

func (r *orderItemRepository) Insert(ctx context.Context, orderID string, item domain.OrderItem) error {
	_, err := r.provider.querier(ctx).ExecContext(ctx,
		`INSERT INTO order_items (`+orderItemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, orderID, item.ProductID, item.Name, item.SKU,
		item.UnitPrice, item.Quantity, item.LineTotal, string(item.Status),
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return classify("insert order item", err)
	}
	return nil
}

func (r *orderItemRepository) Update(ctx context.Context, orderID string, item domain.OrderItem) error {
	result, err := r.provider.querier(ctx).ExecContext(ctx,
		`UPDATE order_items SET
			product_id = $3, name = $4, sku = $5, unit_price = $6, quantity = $7,
			line_total = $8, status = $9, updated_at = $10
		 WHERE id = $1 AND order_id = $2`,
		item.ID, orderID, item.ProductID, item.Name, item.SKU,
		item.UnitPrice, item.Quantity, item.LineTotal, string(item.Status),
		item.UpdatedAt)
	if err != nil {
		return classify("update order item", err)
	}
	return requireRow(result, "update order item")
}

func (r *orderItemRepository) Delete(ctx context.Context, orderID string, itemID string) error {
	result, err := r.provider.querier(ctx).ExecContext(ctx,
		`DELETE FROM order_items WHERE id = $1 AND order_id = $2`, itemID, orderID)
	if err != nil {
		return classify("delete order item", err)
	}
	return requireRow(result, "delete order item")
}

func (r *orderItemRepository) FindByID(ctx context.Context, orderID string, itemID string) (domain.OrderItem, error) {
	row := r.provider.querier(ctx).QueryRowContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE id = $1 AND order_id = $2`,
		itemID, orderID)
	item, err := scanOrderItem(row)
	if err != nil {
		return domain.OrderItem{}, classify("find order item", err)
	}
	return item, nil
}

func (r *orderItemRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.provider.querier(ctx).QueryContext(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, classify("list order items", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0, 8)
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, classify("scan order item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list order items", err)
	}
	return items, nil
}

func scanOrderItem(row rowScanner) (domain.OrderItem, error) {
	var (
		item   domain.OrderItem
		status string
	)
	err := row.Scan(
		&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.SKU,
		&item.UnitPrice, &item.Quantity, &item.LineTotal, &status,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return domain.OrderItem{}, err
	}
	item.Status = domain.ItemStatus(status)
	return item, nil
}
