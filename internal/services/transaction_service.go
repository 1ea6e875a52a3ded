package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/teranga-app/api/internal/domain"
	"github.com/teranga-app/api/internal/repositories"
)

const transactionIDPrefix = "txn_"

var (
	// ErrTransactionInvalidInput signals the caller provided invalid data.
	ErrTransactionInvalidInput = errors.New("transaction: invalid input")
	// ErrTransactionNotFound indicates the entry could not be located.
	ErrTransactionNotFound = errors.New("transaction: not found")
	// ErrTransactionForbidden indicates the caller lacks access to the entry.
	ErrTransactionForbidden = errors.New("transaction: forbidden")
	// ErrTransactionConflict indicates duplicates or constraint violations.
	ErrTransactionConflict = errors.New("transaction: conflict")
)

// TransactionServiceDeps bundles collaborators required to construct the transaction service.
type TransactionServiceDeps struct {
	Transactions repositories.TransactionRepository
	Orders       repositories.OrderRepository
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
}

type transactionService struct {
	transactions repositories.TransactionRepository
	orders       repositories.OrderRepository
	unitOfWork   repositories.UnitOfWork
	clock        func() time.Time
	newID        func() string
}

// NewTransactionService wires dependencies into a concrete TransactionService implementation.
func NewTransactionService(deps TransactionServiceDeps) (TransactionService, error) {
	if deps.Transactions == nil {
		return nil, errors.New("transaction service: transaction repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("transaction service: order repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return strings.ToLower(ulid.Make().String())
		}
	}

	return &transactionService{
		transactions: deps.Transactions,
		orders:       deps.Orders,
		unitOfWork:   unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *transactionService) Create(ctx context.Context, actor Actor, cmd CreateTransactionCommand) (Transaction, error) {
	txnType := domain.TransactionType(strings.TrimSpace(cmd.Type))
	if _, ok := domain.ValidTransactionTypes[txnType]; !ok {
		return Transaction{}, fmt.Errorf("%w: unknown transaction type %q", ErrTransactionInvalidInput, cmd.Type)
	}

	status := domain.TransactionStatusPending
	if cmd.Status != "" {
		status = domain.TransactionStatus(strings.TrimSpace(cmd.Status))
		if _, ok := domain.ValidTransactionStatuses[status]; !ok {
			return Transaction{}, fmt.Errorf("%w: unknown transaction status %q", ErrTransactionInvalidInput, cmd.Status)
		}
	}
	// Only admins pick the initial status.
	if !actor.isAdmin() {
		status = domain.TransactionStatusPending
	}

	ownerID := strings.TrimSpace(cmd.UserID)
	if ownerID == "" {
		ownerID = actor.ID
	}
	if ownerID != actor.ID && !actor.isAdmin() {
		return Transaction{}, fmt.Errorf("%w: cannot create transactions for another user", ErrTransactionForbidden)
	}

	currency := normaliseCurrency(cmd.Currency)

	var settledOrder bool
	if cmd.OrderID != nil {
		order, err := s.orders.FindByID(ctx, *cmd.OrderID)
		if err != nil {
			return Transaction{}, mapTransactionRepoErr("find linked order", err)
		}
		if !canReadOrder(actor, order) {
			return Transaction{}, fmt.Errorf("%w: order %s", ErrTransactionForbidden, *cmd.OrderID)
		}
		// Order-linked entries belong to the order owner, not the caller.
		ownerID = order.UserID
		if cmd.Currency == "" {
			currency = normaliseCurrency(order.Currency)
		}
		settledOrder = domain.IsSettled(order.Status)
	}

	amount, _ := domain.CoerceAmount(cmd.Amount)
	now := s.clock()

	txn := domain.Transaction{
		ID:            transactionIDPrefix + s.newID(),
		UserID:        ownerID,
		OrderID:       cmd.OrderID,
		ServiceID:     cmd.ServiceID,
		TaskID:        cmd.TaskID,
		Type:          txnType,
		Amount:        domain.Round2(domain.ClampNonNegative(amount)),
		Currency:      currency,
		PaymentMethod: strings.TrimSpace(cmd.PaymentMethod),
		Description:   cmd.Description,
		Status:        status,
		Proof:         cmd.Proof,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Standalone entries have no confirmation step to wait on, and entries
	// against an already settled order are completed by definition.
	if cmd.OrderID == nil || settledOrder {
		txn.Status = domain.TransactionStatusCompleted
	}

	if err := s.transactions.Insert(ctx, txn); err != nil {
		return Transaction{}, mapTransactionRepoErr("insert transaction", err)
	}
	return txn, nil
}

func (s *transactionService) Get(ctx context.Context, actor Actor, txnID string) (Transaction, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return Transaction{}, fmt.Errorf("%w: transaction id is required", ErrTransactionInvalidInput)
	}

	txn, err := s.transactions.FindByID(ctx, txnID)
	if err != nil {
		return Transaction{}, mapTransactionRepoErr("find transaction", err)
	}
	if !canReadTransaction(actor, txn) {
		return Transaction{}, fmt.Errorf("%w: transaction %s", ErrTransactionForbidden, txnID)
	}
	return txn, nil
}

func (s *transactionService) List(ctx context.Context, actor Actor, query TransactionListQuery) (CursorPage[Transaction], error) {
	filter := repositories.TransactionListFilter{
		UserID:     strings.TrimSpace(query.UserID),
		OrderID:    strings.TrimSpace(query.OrderID),
		Type:       strings.TrimSpace(query.Type),
		Status:     strings.TrimSpace(query.Status),
		Pagination: query.Pagination,
	}
	if !actor.isAdmin() {
		filter.UserID = actor.ID
	}
	if filter.Type != "" {
		if _, ok := domain.ValidTransactionTypes[domain.TransactionType(filter.Type)]; !ok {
			return CursorPage[Transaction]{}, fmt.Errorf("%w: unknown transaction type %q", ErrTransactionInvalidInput, filter.Type)
		}
	}
	if filter.Status != "" {
		if _, ok := domain.ValidTransactionStatuses[domain.TransactionStatus(filter.Status)]; !ok {
			return CursorPage[Transaction]{}, fmt.Errorf("%w: unknown transaction status %q", ErrTransactionInvalidInput, filter.Status)
		}
	}

	page, err := s.transactions.List(ctx, filter)
	if err != nil {
		return CursorPage[Transaction]{}, mapTransactionRepoErr("list transactions", err)
	}
	return page, nil
}

func (s *transactionService) Update(ctx context.Context, actor Actor, cmd UpdateTransactionCommand) (Transaction, error) {
	txnID := strings.TrimSpace(cmd.TransactionID)
	if txnID == "" {
		return Transaction{}, fmt.Errorf("%w: transaction id is required", ErrTransactionInvalidInput)
	}
	if cmd.Status != nil {
		if _, ok := domain.ValidTransactionStatuses[domain.TransactionStatus(*cmd.Status)]; !ok {
			return Transaction{}, fmt.Errorf("%w: unknown transaction status %q", ErrTransactionInvalidInput, *cmd.Status)
		}
	}

	var txn domain.Transaction
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		txn, err = s.transactions.FindByID(ctx, txnID)
		if err != nil {
			return mapTransactionRepoErr("find transaction", err)
		}
		if !canWriteTransaction(actor, txn) {
			return fmt.Errorf("%w: transaction %s", ErrTransactionForbidden, txnID)
		}

		if cmd.Amount != nil {
			amount, _ := domain.CoerceAmount(cmd.Amount)
			txn.Amount = domain.Round2(domain.ClampNonNegative(amount))
		}
		if cmd.Description != nil {
			txn.Description = *cmd.Description
		}
		if cmd.PaymentMethod != nil {
			txn.PaymentMethod = strings.TrimSpace(*cmd.PaymentMethod)
		}
		if cmd.Proof != nil {
			txn.Proof = cmd.Proof
		}
		if cmd.Status != nil {
			// Non-admin owners may not move the entry out of pending.
			if actor.isAdmin() {
				txn.Status = domain.TransactionStatus(*cmd.Status)
			}
		}

		// One-directional consistency: entries linked to a settled order stay
		// completed regardless of caller input.
		if txn.OrderID != nil {
			order, err := s.orders.FindByID(ctx, *txn.OrderID)
			if err == nil && domain.IsSettled(order.Status) {
				txn.Status = domain.TransactionStatusCompleted
			} else if err != nil && !repositories.IsNotFound(err) {
				return mapTransactionRepoErr("find linked order", err)
			}
		}

		txn.UpdatedAt = s.clock()
		if err := s.transactions.Update(ctx, txn); err != nil {
			return mapTransactionRepoErr("update transaction", err)
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func (s *transactionService) Delete(ctx context.Context, actor Actor, txnID string) error {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrTransactionInvalidInput)
	}

	return s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		txn, err := s.transactions.FindByID(ctx, txnID)
		if err != nil {
			return mapTransactionRepoErr("find transaction", err)
		}
		if !canWriteTransaction(actor, txn) {
			return fmt.Errorf("%w: transaction %s", ErrTransactionForbidden, txnID)
		}
		if err := s.transactions.Delete(ctx, txnID); err != nil {
			return mapTransactionRepoErr("delete transaction", err)
		}
		return nil
	})
}

func mapTransactionRepoErr(op string, err error) error {
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, op)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %s", ErrTransactionConflict, op)
	default:
		return fmt.Errorf("transaction: %s: %w", op, err)
	}
}
