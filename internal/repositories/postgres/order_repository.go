package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teranga-app/api/internal/domain"
	"github.com/teranga-app/api/internal/repositories"
)

const orderColumns = `id, user_id, code, subtotal, tax, shipping, total, currency,
	status, payment_status, payment_method, payment_reference,
	shipping_address, billing_address, notes, created_at, updated_at`

type orderRepository struct {
	provider *Provider
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	shippingAddr, err := marshalAddress(order.ShippingAddress)
	if err != nil {
		return repositories.NewUnknown("postgres: encode shipping address", err)
	}
	billingAddr, err := marshalAddress(order.BillingAddress)
	if err != nil {
		return repositories.NewUnknown("postgres: encode billing address", err)
	}

	_, err = r.provider.querier(ctx).ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		order.ID, order.UserID, order.Code,
		order.Subtotal, order.Tax, order.Shipping, order.Total, order.Currency,
		string(order.Status), string(order.PaymentStatus), order.PaymentMethod, order.PaymentReference,
		shippingAddr, billingAddr, order.Notes, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return classify("insert order", err)
	}
	return nil
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	shippingAddr, err := marshalAddress(order.ShippingAddress)
	if err != nil {
		return repositories.NewUnknown("postgres: encode shipping address", err)
	}
	billingAddr, err := marshalAddress(order.BillingAddress)
	if err != nil {
		return repositories.NewUnknown("postgres: encode billing address", err)
	}

	result, err := r.provider.querier(ctx).ExecContext(ctx,
		`UPDATE orders SET
			subtotal = $2, tax = $3, shipping = $4, total = $5, currency = $6,
			status = $7, payment_status = $8, payment_method = $9, payment_reference = $10,
			shipping_address = $11, billing_address = $12, notes = $13, updated_at = $14
		 WHERE id = $1`,
		order.ID,
		order.Subtotal, order.Tax, order.Shipping, order.Total, order.Currency,
		string(order.Status), string(order.PaymentStatus), order.PaymentMethod, order.PaymentReference,
		shippingAddr, billingAddr, order.Notes, order.UpdatedAt)
	if err != nil {
		return classify("update order", err)
	}
	return requireRow(result, "update order")
}

func (r *orderRepository) Delete(ctx context.Context, orderID string) error {
	result, err := r.provider.querier(ctx).ExecContext(ctx,
		`DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return classify("delete order", err)
	}
	return requireRow(result, "delete order")
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	row := r.provider.querier(ctx).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, classify("find order", err)
	}
	return order, nil
}

func (r *orderRepository) FindByIDForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	row := r.provider.querier(ctx).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, classify("lock order", err)
	}
	return order, nil
}

func (r *orderRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.provider.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, classify("check order code", err)
	}
	return exists, nil
}

func (r *orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	pageSize := normalisePageSize(filter.Pagination.PageSize)
	cursor, hasCursor, err := decodeCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewUnknown("postgres: list orders", err)
	}

	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)
	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.UserID != "" {
		addCondition("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		addCondition("status = $%d", filter.Status)
	}
	if filter.PaymentStatus != "" {
		addCondition("payment_status = $%d", filter.PaymentStatus)
	}
	if hasCursor {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.provider.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, classify("list orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, pageSize)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, classify("scan order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Order]{}, classify("list orders", err)
	}

	page := domain.CursorPage[domain.Order]{Items: orders}
	if len(orders) > pageSize {
		page.Items = orders[:pageSize]
		last := page.Items[pageSize-1]
		page.NextPageToken = encodeCursor(listCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order        domain.Order
		status       string
		payStatus    string
		shippingAddr []byte
		billingAddr  []byte
	)
	err := row.Scan(
		&order.ID, &order.UserID, &order.Code,
		&order.Subtotal, &order.Tax, &order.Shipping, &order.Total, &order.Currency,
		&status, &payStatus, &order.PaymentMethod, &order.PaymentReference,
		&shippingAddr, &billingAddr, &order.Notes, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(payStatus)
	if order.ShippingAddress, err = unmarshalAddress(shippingAddr); err != nil {
		return domain.Order{}, err
	}
	if order.BillingAddress, err = unmarshalAddress(billingAddr); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func marshalAddress(addr *domain.Address) ([]byte, error) {
	if addr == nil {
		return nil, nil
	}
	return json.Marshal(addr)
}

func unmarshalAddress(data []byte) (*domain.Address, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var addr domain.Address
	if err := json.Unmarshal(data, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func requireRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return repositories.NewUnknown("postgres: "+op, err)
	}
	if affected == 0 {
		return repositories.NewNotFound("postgres: "+op, sql.ErrNoRows)
	}
	return nil
}
