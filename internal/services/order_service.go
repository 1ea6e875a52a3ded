package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/teranga-app/api/internal/domain"
	"github.com/teranga-app/api/internal/repositories"
)

const (
	orderIDPrefix = "ord_"
	itemIDPrefix  = "itm_"

	orderCodePrefix = "CMD"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order or item could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the caller lacks access to the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates duplicates or constraint violations.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Items        repositories.OrderItemRepository
	Transactions repositories.TransactionRepository
	Products     repositories.ProductCatalog
	UnitOfWork   repositories.UnitOfWork
	Clock        func() time.Time
	IDGenerator  func() string
	CodeRandom   func() int
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	items        repositories.OrderItemRepository
	transactions repositories.TransactionRepository
	products     repositories.ProductCatalog
	unitOfWork   repositories.UnitOfWork
	clock        func() time.Time
	newID        func() string
	codeRandom   func() int
	logger       func(context.Context, string, map[string]any)
	orderLocks   *keyedLock
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("order service: item repository is required")
	}
	if deps.Transactions == nil {
		return nil, errors.New("order service: transaction repository is required")
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

	codeRandom := deps.CodeRandom
	if codeRandom == nil {
		codeRandom = func() int { return rand.Intn(10000) }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:       deps.Orders,
		items:        deps.Items,
		transactions: deps.Transactions,
		products:     deps.Products,
		unitOfWork:   unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:      idGen,
		codeRandom: codeRandom,
		logger:     logger,
		orderLocks: newKeyedLock(),
	}, nil
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *orderService) Create(ctx context.Context, actor Actor, cmd CreateOrderCommand) (Order, error) {
	ownerID := strings.TrimSpace(cmd.UserID)
	if ownerID == "" {
		ownerID = actor.ID
	}
	if ownerID == "" {
		return Order{}, fmt.Errorf("%w: owner id is required", ErrOrderInvalidInput)
	}
	if ownerID != actor.ID && !actor.isAdmin() {
		return Order{}, fmt.Errorf("%w: cannot create orders for another user", ErrOrderForbidden)
	}

	now := s.clock()
	order := domain.Order{
		ID:               orderIDPrefix + s.newID(),
		UserID:           ownerID,
		Code:             s.generateOrderCode(now),
		Currency:         normaliseCurrency(cmd.Currency),
		Status:           domain.OrderStatusCreated,
		PaymentStatus:    domain.PaymentStatusUnpaid,
		PaymentMethod:    strings.TrimSpace(cmd.PaymentMethod),
		ShippingAddress:  cmd.ShippingAddress,
		BillingAddress:   cmd.BillingAddress,
		Notes:            cmd.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	exists, err := s.orders.CodeExists(ctx, order.Code)
	if err != nil {
		return Order{}, mapOrderRepoErr("check order code", err)
	}
	if exists {
		return Order{}, fmt.Errorf("%w: order code %q already exists", ErrOrderConflict, order.Code)
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, itemCmd := range cmd.Items {
		item, err := s.buildItem(ctx, order.ID, itemCmd, now)
		if err != nil {
			return Order{}, err
		}
		items = append(items, item)
	}

	tax, _ := domain.CoerceAmount(cmd.Tax)
	shipping, _ := domain.CoerceAmount(cmd.Shipping)
	applyTotals(&order, items, tax, shipping)
	domain.SyncPaymentStatus(&order)

	err = s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Insert(ctx, order); err != nil {
			return mapOrderRepoErr("insert order", err)
		}
		for _, item := range items {
			if err := s.items.Insert(ctx, order.ID, item); err != nil {
				return mapOrderRepoErr("insert order item", err)
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	order.Items = items
	return order, nil
}

func (s *orderService) Get(ctx context.Context, actor Actor, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepoErr("find order", err)
	}
	if !canReadOrder(actor, order) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
	}

	items, err := s.items.ListByOrder(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepoErr("list order items", err)
	}
	order.Items = items
	return order, nil
}

func (s *orderService) List(ctx context.Context, actor Actor, query OrderListQuery) (CursorPage[Order], error) {
	filter := repositories.OrderListFilter{
		UserID:        strings.TrimSpace(query.UserID),
		Status:        strings.TrimSpace(query.Status),
		PaymentStatus: strings.TrimSpace(query.PaymentStatus),
		Pagination:    query.Pagination,
	}
	if !actor.isStaff() {
		filter.UserID = actor.ID
	}
	if filter.Status != "" {
		if _, ok := domain.ValidOrderStatuses[domain.OrderStatus(filter.Status)]; !ok {
			return CursorPage[Order]{}, fmt.Errorf("%w: unknown order status %q", ErrOrderInvalidInput, filter.Status)
		}
	}
	if filter.PaymentStatus != "" {
		if _, ok := domain.ValidPaymentStatuses[domain.PaymentStatus(filter.PaymentStatus)]; !ok {
			return CursorPage[Order]{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, filter.PaymentStatus)
		}
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return CursorPage[Order]{}, mapOrderRepoErr("list orders", err)
	}
	return page, nil
}

func (s *orderService) Update(ctx context.Context, actor Actor, cmd UpdateOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if cmd.Status != nil {
		if _, ok := domain.ValidOrderStatuses[domain.OrderStatus(*cmd.Status)]; !ok {
			return Order{}, fmt.Errorf("%w: unknown order status %q", ErrOrderInvalidInput, *cmd.Status)
		}
	}
	if cmd.PaymentStatus != nil {
		if _, ok := domain.ValidPaymentStatuses[domain.PaymentStatus(*cmd.PaymentStatus)]; !ok {
			return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrOrderInvalidInput, *cmd.PaymentStatus)
		}
	}

	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	var order domain.Order
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderRepoErr("lock order", err)
		}
		if !canWriteOrder(actor, order) {
			return fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
		}

		now := s.clock()
		if cmd.Status != nil {
			order.Status = domain.OrderStatus(*cmd.Status)
		}
		if cmd.PaymentStatus != nil {
			order.PaymentStatus = domain.PaymentStatus(*cmd.PaymentStatus)
		}
		if cmd.Tax != nil {
			tax, _ := domain.CoerceAmount(cmd.Tax)
			order.Tax = domain.ClampNonNegative(tax)
		}
		if cmd.Shipping != nil {
			shipping, _ := domain.CoerceAmount(cmd.Shipping)
			order.Shipping = domain.ClampNonNegative(shipping)
		}
		if cmd.PaymentMethod != nil {
			order.PaymentMethod = strings.TrimSpace(*cmd.PaymentMethod)
		}
		if cmd.PaymentReference != nil {
			order.PaymentReference = strings.TrimSpace(*cmd.PaymentReference)
		}
		if cmd.Notes != nil {
			order.Notes = *cmd.Notes
		}
		if cmd.ShippingAddress != nil {
			order.ShippingAddress = cmd.ShippingAddress
		}
		if cmd.BillingAddress != nil {
			order.BillingAddress = cmd.BillingAddress
		}

		if err := s.recompute(ctx, &order, now); err != nil {
			return err
		}
		domain.SyncPaymentStatus(&order)
		order.UpdatedAt = now

		if err := s.orders.Update(ctx, order); err != nil {
			return mapOrderRepoErr("update order", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.ensureSettlementTransaction(ctx, order)
	return order, nil
}

func (s *orderService) Delete(ctx context.Context, actor Actor, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	return s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderRepoErr("lock order", err)
		}
		if !canDeleteOrder(actor, order) {
			return fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
		}

		items, err := s.items.ListByOrder(ctx, orderID)
		if err != nil {
			return mapOrderRepoErr("list order items", err)
		}
		if domain.HasDeliveredItem(items) {
			return fmt.Errorf("%w: cannot delete an order with delivered items", ErrOrderConflict)
		}

		// Items cascade with the order row.
		if err := s.orders.Delete(ctx, orderID); err != nil {
			return mapOrderRepoErr("delete order", err)
		}
		return nil
	})
}

func (s *orderService) AddItem(ctx context.Context, actor Actor, orderID string, cmd CreateOrderItemCommand) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	var order domain.Order
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderRepoErr("lock order", err)
		}
		if !canWriteOrder(actor, order) {
			return fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
		}

		now := s.clock()
		item, err := s.buildItem(ctx, orderID, cmd, now)
		if err != nil {
			return err
		}
		if err := s.items.Insert(ctx, orderID, item); err != nil {
			return mapOrderRepoErr("insert order item", err)
		}

		return s.saveRecomputed(ctx, &order, now)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) UpdateItem(ctx context.Context, actor Actor, orderID, itemID string, cmd UpdateOrderItemCommand) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	itemID = strings.TrimSpace(itemID)
	if orderID == "" || itemID == "" {
		return Order{}, fmt.Errorf("%w: order id and item id are required", ErrOrderInvalidInput)
	}

	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	var order domain.Order
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderRepoErr("lock order", err)
		}
		if !canWriteOrder(actor, order) {
			return fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
		}

		item, err := s.items.FindByID(ctx, orderID, itemID)
		if err != nil {
			return mapOrderRepoErr("find order item", err)
		}

		now := s.clock()
		if cmd.Name != nil {
			item.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.SKU != nil {
			item.SKU = strings.TrimSpace(*cmd.SKU)
		}
		if cmd.UnitPrice != nil {
			price, _ := domain.CoerceAmount(cmd.UnitPrice)
			item.UnitPrice = domain.ClampNonNegative(price)
		}
		if cmd.Quantity != nil {
			item.Quantity = domain.ClampQuantity(*cmd.Quantity)
		}
		// Item status swaps are opaque. No transition table exists.
		if cmd.Status != nil {
			item.Status = domain.ItemStatus(strings.TrimSpace(*cmd.Status))
		}
		item.LineTotal = domain.ComputeLineTotal(item.Quantity, item.UnitPrice)
		item.UpdatedAt = now

		if err := s.items.Update(ctx, orderID, item); err != nil {
			return mapOrderRepoErr("update order item", err)
		}

		return s.saveRecomputed(ctx, &order, now)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) RemoveItem(ctx context.Context, actor Actor, orderID, itemID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	itemID = strings.TrimSpace(itemID)
	if orderID == "" || itemID == "" {
		return Order{}, fmt.Errorf("%w: order id and item id are required", ErrOrderInvalidInput)
	}

	unlock := s.orderLocks.Lock(orderID)
	defer unlock()

	var order domain.Order
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderRepoErr("lock order", err)
		}
		if !canWriteOrder(actor, order) {
			return fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
		}

		if err := s.items.Delete(ctx, orderID, itemID); err != nil {
			return mapOrderRepoErr("delete order item", err)
		}

		return s.saveRecomputed(ctx, &order, s.clock())
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// buildItem resolves catalog defaults and derives the line total for one
// requested line. A missing catalog product falls back to caller fields.
func (s *orderService) buildItem(ctx context.Context, orderID string, cmd CreateOrderItemCommand, now time.Time) (domain.OrderItem, error) {
	if cmd.ProductID == nil && strings.TrimSpace(cmd.Name) == "" {
		return domain.OrderItem{}, fmt.Errorf("%w: item requires a product reference or a name", ErrOrderInvalidInput)
	}

	// A new line always carries at least one unit; absent or negative
	// quantities fall back to 1. Updates keep the plain non-negative clamp.
	quantity := domain.ClampQuantity(cmd.Quantity)
	if quantity < 1 {
		quantity = 1
	}

	item := domain.OrderItem{
		ID:        itemIDPrefix + s.newID(),
		OrderID:   orderID,
		ProductID: cmd.ProductID,
		Name:      strings.TrimSpace(cmd.Name),
		SKU:       strings.TrimSpace(cmd.SKU),
		Quantity:  quantity,
		Status:    domain.ItemStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cmd.Status != "" {
		item.Status = domain.ItemStatus(strings.TrimSpace(cmd.Status))
	}

	price, priceProvided := domain.CoerceAmount(cmd.UnitPrice)
	if cmd.UnitPrice == nil {
		priceProvided = false
	}

	if cmd.ProductID != nil && s.products != nil {
		snapshot, err := s.products.Snapshot(ctx, *cmd.ProductID)
		switch {
		case err == nil:
			if item.Name == "" {
				item.Name = snapshot.Name
			}
			if item.SKU == "" {
				item.SKU = snapshot.SKU
			}
			if !priceProvided {
				price = snapshot.Price
				priceProvided = true
			}
		case repositories.IsNotFound(err):
			// Catalog miss keeps caller-supplied fields.
		default:
			return domain.OrderItem{}, mapOrderRepoErr("snapshot product", err)
		}
	}

	item.UnitPrice = domain.ClampNonNegative(price)
	item.LineTotal = domain.ComputeLineTotal(item.Quantity, item.UnitPrice)
	return item, nil
}

// recompute reloads the live items, self-heals stale line totals and derives
// the order totals. Running it twice without item changes is a no-op.
func (s *orderService) recompute(ctx context.Context, order *domain.Order, now time.Time) error {
	items, err := s.items.ListByOrder(ctx, order.ID)
	if err != nil {
		return mapOrderRepoErr("list order items", err)
	}

	for i := range items {
		expected := domain.ComputeLineTotal(items[i].Quantity, items[i].UnitPrice)
		if !expected.Equal(items[i].LineTotal) {
			items[i].LineTotal = expected
			items[i].UpdatedAt = now
			if err := s.items.Update(ctx, order.ID, items[i]); err != nil {
				return mapOrderRepoErr("heal order item", err)
			}
		}
	}

	applyTotals(order, items, order.Tax, order.Shipping)
	return nil
}

// saveRecomputed recomputes totals, re-syncs the payment status and persists
// the order header. Shared by every item mutation path.
func (s *orderService) saveRecomputed(ctx context.Context, order *domain.Order, now time.Time) error {
	if err := s.recompute(ctx, order, now); err != nil {
		return err
	}
	domain.SyncPaymentStatus(order)
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, *order); err != nil {
		return mapOrderRepoErr("update order", err)
	}
	return nil
}

// ensureSettlementTransaction upserts the automatic expense entry once an
// order sits in a settled status. Failures are logged, never surfaced: the
// order mutation already committed and must stand on its own.
func (s *orderService) ensureSettlementTransaction(ctx context.Context, order domain.Order) {
	if !domain.IsSettled(order.Status) {
		return
	}

	existing, err := s.transactions.FindAutomatic(ctx, order.ID, order.UserID, string(domain.TransactionTypeExpense))
	switch {
	case err == nil:
		if existing.Status == domain.TransactionStatusCompleted {
			return
		}
		existing.Status = domain.TransactionStatusCompleted
		existing.UpdatedAt = s.clock()
		if err := s.transactions.Update(ctx, existing); err != nil {
			s.logger(ctx, "order.settlement_transaction_update_failed", map[string]any{
				"order_id":       order.ID,
				"transaction_id": existing.ID,
				"error":          err.Error(),
			})
		}
	case repositories.IsNotFound(err):
		now := s.clock()
		method := order.PaymentMethod
		if method == "" {
			method = "unknown"
		}
		orderID := order.ID
		txn := domain.Transaction{
			ID:            transactionIDPrefix + s.newID(),
			UserID:        order.UserID,
			OrderID:       &orderID,
			Type:          domain.TransactionTypeExpense,
			Amount:        order.Total,
			Currency:      order.Currency,
			PaymentMethod: method,
			Description:   fmt.Sprintf("Order %s settlement", order.Code),
			Status:        domain.TransactionStatusCompleted,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.transactions.Insert(ctx, txn); err != nil {
			if repositories.IsConflict(err) {
				// Another process inserted the entry first; complete theirs.
				s.completeSettlementWinner(ctx, order)
				return
			}
			s.logger(ctx, "order.settlement_transaction_create_failed", map[string]any{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	default:
		s.logger(ctx, "order.settlement_transaction_lookup_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
}

// completeSettlementWinner resolves a lost insert race on the unique
// (order_id, user_id, type) expense index by completing the surviving row.
func (s *orderService) completeSettlementWinner(ctx context.Context, order domain.Order) {
	existing, err := s.transactions.FindAutomatic(ctx, order.ID, order.UserID, string(domain.TransactionTypeExpense))
	if err != nil {
		s.logger(ctx, "order.settlement_transaction_lookup_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return
	}
	if existing.Status == domain.TransactionStatusCompleted {
		return
	}
	existing.Status = domain.TransactionStatusCompleted
	existing.UpdatedAt = s.clock()
	if err := s.transactions.Update(ctx, existing); err != nil {
		s.logger(ctx, "order.settlement_transaction_update_failed", map[string]any{
			"order_id":       order.ID,
			"transaction_id": existing.ID,
			"error":          err.Error(),
		})
	}
}

func (s *orderService) generateOrderCode(now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", orderCodePrefix, now.Format("20060102"), s.codeRandom()%10000)
}

// applyTotals writes the derived monetary state and the live item list onto
// the order.
func applyTotals(order *domain.Order, items []domain.OrderItem, tax, shipping decimal.Decimal) {
	totals := domain.ComputeTotals(items, tax, shipping)
	order.Subtotal = totals.Subtotal
	order.Tax = totals.Tax
	order.Shipping = totals.Shipping
	order.Total = totals.Total
	order.Items = items
}

func normaliseCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.DefaultCurrency
	}
	return code
}

func mapOrderRepoErr(op string, err error) error {
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", ErrOrderNotFound, op)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %s", ErrOrderConflict, op)
	default:
		return fmt.Errorf("order: %s: %w", op, err)
	}
}
