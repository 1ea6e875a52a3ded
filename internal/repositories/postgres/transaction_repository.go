package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teranga-app/api/internal/domain"
	"github.com/teranga-app/api/internal/repositories"
)

const transactionColumns = `id, user_id, order_id, service_id, task_id, type, amount, currency,
	payment_method, description, status, proof, created_at, updated_at`

type transactionRepository struct {
	provider *Provider
}

func (r *transactionRepository) Insert(ctx context.Context, txn domain.Transaction) error {
	proof, err := marshalProof(txn.Proof)
	if err != nil {
		return repositories.NewUnknown("postgres: encode proof", err)
	}

	_, err = r.provider.querier(ctx).ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		txn.ID, txn.UserID, txn.OrderID, txn.ServiceID, txn.TaskID,
		string(txn.Type), txn.Amount, txn.Currency,
		txn.PaymentMethod, txn.Description, string(txn.Status), proof,
		txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		return classify("insert transaction", err)
	}
	return nil
}

func (r *transactionRepository) Update(ctx context.Context, txn domain.Transaction) error {
	proof, err := marshalProof(txn.Proof)
	if err != nil {
		return repositories.NewUnknown("postgres: encode proof", err)
	}

	result, err := r.provider.querier(ctx).ExecContext(ctx,
		`UPDATE transactions SET
			order_id = $2, service_id = $3, task_id = $4, type = $5, amount = $6,
			currency = $7, payment_method = $8, description = $9, status = $10,
			proof = $11, updated_at = $12
		 WHERE id = $1`,
		txn.ID, txn.OrderID, txn.ServiceID, txn.TaskID, string(txn.Type), txn.Amount,
		txn.Currency, txn.PaymentMethod, txn.Description, string(txn.Status),
		proof, txn.UpdatedAt)
	if err != nil {
		return classify("update transaction", err)
	}
	return requireRow(result, "update transaction")
}

func (r *transactionRepository) Delete(ctx context.Context, txnID string) error {
	result, err := r.provider.querier(ctx).ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1`, txnID)
	if err != nil {
		return classify("delete transaction", err)
	}
	return requireRow(result, "delete transaction")
}

func (r *transactionRepository) FindByID(ctx context.Context, txnID string) (domain.Transaction, error) {
	row := r.provider.querier(ctx).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, txnID)
	txn, err := scanTransaction(row)
	if err != nil {
		return domain.Transaction{}, classify("find transaction", err)
	}
	return txn, nil
}

func (r *transactionRepository) FindAutomatic(ctx context.Context, orderID, userID, txnType string) (domain.Transaction, error) {
	row := r.provider.querier(ctx).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE order_id = $1 AND user_id = $2 AND type = $3
		 ORDER BY created_at LIMIT 1`,
		orderID, userID, txnType)
	txn, err := scanTransaction(row)
	if err != nil {
		return domain.Transaction{}, classify("find automatic transaction", err)
	}
	return txn, nil
}

func (r *transactionRepository) List(ctx context.Context, filter repositories.TransactionListFilter) (domain.CursorPage[domain.Transaction], error) {
	pageSize := normalisePageSize(filter.Pagination.PageSize)
	cursor, hasCursor, err := decodeCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Transaction]{}, repositories.NewUnknown("postgres: list transactions", err)
	}

	conditions := make([]string, 0, 5)
	args := make([]any, 0, 7)
	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.UserID != "" {
		addCondition("user_id = $%d", filter.UserID)
	}
	if filter.OrderID != "" {
		addCondition("order_id = $%d", filter.OrderID)
	}
	if filter.Type != "" {
		addCondition("type = $%d", filter.Type)
	}
	if filter.Status != "" {
		addCondition("status = $%d", filter.Status)
	}
	if hasCursor {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.provider.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Transaction]{}, classify("list transactions", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, pageSize)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return domain.CursorPage[domain.Transaction]{}, classify("scan transaction", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Transaction]{}, classify("list transactions", err)
	}

	page := domain.CursorPage[domain.Transaction]{Items: txns}
	if len(txns) > pageSize {
		page.Items = txns[:pageSize]
		last := page.Items[pageSize-1]
		page.NextPageToken = encodeCursor(listCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		txn     domain.Transaction
		txnType string
		status  string
		proof   []byte
	)
	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.OrderID, &txn.ServiceID, &txn.TaskID,
		&txnType, &txn.Amount, &txn.Currency,
		&txn.PaymentMethod, &txn.Description, &status, &proof,
		&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	txn.Type = domain.TransactionType(txnType)
	txn.Status = domain.TransactionStatus(status)
	if txn.Proof, err = unmarshalProof(proof); err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

func marshalProof(proof *domain.ProofOfPayment) ([]byte, error) {
	if proof == nil {
		return nil, nil
	}
	return json.Marshal(proof)
}

func unmarshalProof(data []byte) (*domain.ProofOfPayment, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var proof domain.ProofOfPayment
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}
