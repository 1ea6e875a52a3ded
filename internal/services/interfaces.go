package services

import (
	"context"

	"github.com/teranga-app/api/internal/domain"
)

// Aliases keep service signatures terse while the canonical types live in domain.
type (
	Pagination        = domain.Pagination
	Order             = domain.Order
	OrderItem         = domain.OrderItem
	OrderStatus       = domain.OrderStatus
	PaymentStatus     = domain.PaymentStatus
	ItemStatus        = domain.ItemStatus
	Address           = domain.Address
	Transaction       = domain.Transaction
	TransactionType   = domain.TransactionType
	TransactionStatus = domain.TransactionStatus
	ProofOfPayment    = domain.ProofOfPayment
)

// CursorPage re-exports the generic page container.
type CursorPage[T any] = domain.CursorPage[T]

// Actor identifies the authenticated caller applying an operation.
type Actor struct {
	ID   string
	Role string
}

// CreateOrderItemCommand carries one requested line. Monetary fields accept
// loosely-typed input and are coerced server-side.
type CreateOrderItemCommand struct {
	ProductID *string
	Name      string
	SKU       string
	UnitPrice any
	Quantity  int
	Status    string
}

// CreateOrderCommand captures a new order request.
type CreateOrderCommand struct {
	UserID          string
	Currency        string
	Tax             any
	Shipping        any
	PaymentMethod   string
	Notes           string
	ShippingAddress *Address
	BillingAddress  *Address
	Items           []CreateOrderItemCommand
}

// UpdateOrderCommand applies a partial update to an order header. Nil fields
// are left untouched.
type UpdateOrderCommand struct {
	OrderID          string
	Status           *string
	PaymentStatus    *string
	Tax              any
	Shipping         any
	PaymentMethod    *string
	PaymentReference *string
	Notes            *string
	ShippingAddress  *Address
	BillingAddress   *Address
}

// UpdateOrderItemCommand applies a partial update to one line.
type UpdateOrderItemCommand struct {
	Name      *string
	SKU       *string
	UnitPrice any
	Quantity  *int
	Status    *string
}

// OrderListQuery filters order listings.
type OrderListQuery struct {
	UserID        string
	Status        string
	PaymentStatus string
	Pagination    Pagination
}

// OrderService owns the order aggregate and its derived monetary state.
type OrderService interface {
	Create(ctx context.Context, actor Actor, cmd CreateOrderCommand) (Order, error)
	Get(ctx context.Context, actor Actor, orderID string) (Order, error)
	List(ctx context.Context, actor Actor, query OrderListQuery) (CursorPage[Order], error)
	Update(ctx context.Context, actor Actor, cmd UpdateOrderCommand) (Order, error)
	Delete(ctx context.Context, actor Actor, orderID string) error

	AddItem(ctx context.Context, actor Actor, orderID string, cmd CreateOrderItemCommand) (Order, error)
	UpdateItem(ctx context.Context, actor Actor, orderID, itemID string, cmd UpdateOrderItemCommand) (Order, error)
	RemoveItem(ctx context.Context, actor Actor, orderID, itemID string) (Order, error)
}

// CreateTransactionCommand captures a new ledger entry request.
type CreateTransactionCommand struct {
	UserID        string
	OrderID       *string
	ServiceID     *string
	TaskID        *string
	Type          string
	Amount        any
	Currency      string
	PaymentMethod string
	Description   string
	Status        string
	Proof         *ProofOfPayment
}

// UpdateTransactionCommand applies a partial update to a ledger entry.
type UpdateTransactionCommand struct {
	TransactionID string
	Amount        any
	Status        *string
	Description   *string
	PaymentMethod *string
	Proof         *ProofOfPayment
}

// TransactionListQuery filters transaction listings.
type TransactionListQuery struct {
	UserID     string
	OrderID    string
	Type       string
	Status     string
	Pagination Pagination
}

// TransactionService owns financial ledger entries.
type TransactionService interface {
	Create(ctx context.Context, actor Actor, cmd CreateTransactionCommand) (Transaction, error)
	Get(ctx context.Context, actor Actor, txnID string) (Transaction, error)
	List(ctx context.Context, actor Actor, query TransactionListQuery) (CursorPage[Transaction], error)
	Update(ctx context.Context, actor Actor, cmd UpdateTransactionCommand) (Transaction, error)
	Delete(ctx context.Context, actor Actor, txnID string) error
}
