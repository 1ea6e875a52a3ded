package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results plus the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// DefaultCurrency is applied when an order or transaction omits a currency code.
const DefaultCurrency = "XOF"

// OrderStatus describes the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusCreated is the initial state of every order.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusPaid indicates payment has been received.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFulfilled indicates all items have been prepared or handed off.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusShipped indicates the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is a terminal state reached before settlement.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded is a terminal state reached after a refund.
	OrderStatusRefunded OrderStatus = "refunded"
)

// PaymentStatus describes the payment state carried on an order.
type PaymentStatus string

const (
	// PaymentStatusUnpaid is the initial payment state.
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPaid indicates the order has been settled.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusRefunded indicates the payment was returned.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ItemStatus is the small per-line lifecycle. Values beyond the named constants
// are accepted as-is: the item state machine is intentionally unvalidated.
type ItemStatus string

const (
	ItemStatusPending     ItemStatus = "pending"
	ItemStatusPrepared    ItemStatus = "prepared"
	ItemStatusFulfilled   ItemStatus = "fulfilled"
	ItemStatusBackordered ItemStatus = "backordered"
	ItemStatusReturned    ItemStatus = "returned"
	ItemStatusCancelled   ItemStatus = "cancelled"
	ItemStatusDelivered   ItemStatus = "delivered"
	ItemStatusDone        ItemStatus = "done"
)

// TransactionType categorises the direction of a ledger entry.
type TransactionType string

const (
	TransactionTypeRevenue    TransactionType = "revenue"
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeCommission TransactionType = "commission"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// TransactionStatus describes the lifecycle of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Address carries a structured postal address. The financial core treats it as
// opaque data attached to orders.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Order aggregates line items and derived monetary totals for one purchase.
type Order struct {
	ID               string
	UserID           string
	Code             string
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Shipping         decimal.Decimal
	Total            decimal.Decimal
	Currency         string
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	PaymentMethod    string
	PaymentReference string
	ShippingAddress  *Address
	BillingAddress   *Address
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Items is populated by read paths that join line items; write paths load
	// items through the item repository instead.
	Items []OrderItem
}

// OrderItem is one line entry within an order. LineTotal is always derived
// server-side from Quantity and UnitPrice, never trusted from caller input.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID *string
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
	Status    ItemStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProofOfPayment references an uploaded evidence file. Storage itself lives
// outside this service; only the metadata is persisted.
type ProofOfPayment struct {
	Path         string
	OriginalName string
	SizeBytes    int64
	MimeType     string
}

// Transaction is a financial ledger entry, optionally tied to an order. When
// order-linked, UserID is copied from the order owner rather than the caller.
type Transaction struct {
	ID            string
	UserID        string
	OrderID       *string
	ServiceID     *string
	TaskID        *string
	Type          TransactionType
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	Description   string
	Status        TransactionStatus
	Proof         *ProofOfPayment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductSnapshot is the catalog projection used to default item fields at
// creation time. A missing product yields caller-supplied or blank defaults.
type ProductSnapshot struct {
	ID    string
	Name  string
	SKU   string
	Price decimal.Decimal
}

// DeliveredItemStatuses are the item states that block order deletion.
var DeliveredItemStatuses = map[ItemStatus]struct{}{
	ItemStatusDelivered: {},
	ItemStatusFulfilled: {},
	ItemStatusDone:      {},
}

// HasDeliveredItem reports whether any item is in a state that forbids
// deleting the parent order.
func HasDeliveredItem(items []OrderItem) bool {
	for _, item := range items {
		if _, ok := DeliveredItemStatuses[item.Status]; ok {
			return true
		}
	}
	return false
}

// ValidOrderStatuses enumerates every accepted order lifecycle state.
var ValidOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusCreated:    {},
	OrderStatusProcessing: {},
	OrderStatusPaid:       {},
	OrderStatusFulfilled:  {},
	OrderStatusShipped:    {},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// ValidPaymentStatuses enumerates every accepted payment state.
var ValidPaymentStatuses = map[PaymentStatus]struct{}{
	PaymentStatusUnpaid:   {},
	PaymentStatusPaid:     {},
	PaymentStatusRefunded: {},
}

// ValidTransactionTypes enumerates every accepted ledger entry type.
var ValidTransactionTypes = map[TransactionType]struct{}{
	TransactionTypeRevenue:    {},
	TransactionTypeExpense:    {},
	TransactionTypeCommission: {},
	TransactionTypeAdjustment: {},
}

// ValidTransactionStatuses enumerates every accepted ledger entry state.
var ValidTransactionStatuses = map[TransactionStatus]struct{}{
	TransactionStatusPending:   {},
	TransactionStatusCompleted: {},
	TransactionStatusCancelled: {},
}
