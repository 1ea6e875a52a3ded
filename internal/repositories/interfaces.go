package repositories

import (
	"context"

	"github.com/teranga-app/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Transactions() TransactionRepository
	Products() ProductCatalog
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter narrows and paginates order listings.
type OrderListFilter struct {
	UserID        string
	Status        string
	PaymentStatus string
	Pagination    domain.Pagination
}

// OrderRepository persists order headers together with their embedded items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByIDForUpdate locks the order row for the remainder of the enclosing
	// transaction. Callers must run inside RunInTx.
	FindByIDForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

// OrderItemRepository manages order line persistence.
type OrderItemRepository interface {
	Insert(ctx context.Context, orderID string, item domain.OrderItem) error
	Update(ctx context.Context, orderID string, item domain.OrderItem) error
	Delete(ctx context.Context, orderID string, itemID string) error
	FindByID(ctx context.Context, orderID string, itemID string) (domain.OrderItem, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error)
}

// TransactionListFilter narrows and paginates transaction listings.
type TransactionListFilter struct {
	UserID     string
	OrderID    string
	Type       string
	Status     string
	Pagination domain.Pagination
}

// TransactionRepository persists financial transaction records.
type TransactionRepository interface {
	Insert(ctx context.Context, txn domain.Transaction) error
	Update(ctx context.Context, txn domain.Transaction) error
	Delete(ctx context.Context, txnID string) error
	FindByID(ctx context.Context, txnID string) (domain.Transaction, error)
	// FindAutomatic locates the side-effect transaction previously recorded for
	// an order, keyed by order, owner and type.
	FindAutomatic(ctx context.Context, orderID, userID, txnType string) (domain.Transaction, error)
	List(ctx context.Context, filter TransactionListFilter) (domain.CursorPage[domain.Transaction], error)
}

// ProductCatalog resolves product snapshots referenced by order lines.
type ProductCatalog interface {
	Snapshot(ctx context.Context, productID string) (domain.ProductSnapshot, error)
}

// HealthRepository reports backing-store connectivity for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
