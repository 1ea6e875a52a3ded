package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/teranga-app/api/internal/platform/auth"
	"github.com/teranga-app/api/internal/platform/idempotency"
	"github.com/teranga-app/api/internal/services"
)

type stubOrderService struct {
	createFn     func(context.Context, services.Actor, services.CreateOrderCommand) (services.Order, error)
	getFn        func(context.Context, services.Actor, string) (services.Order, error)
	listFn       func(context.Context, services.Actor, services.OrderListQuery) (services.CursorPage[services.Order], error)
	updateFn     func(context.Context, services.Actor, services.UpdateOrderCommand) (services.Order, error)
	deleteFn     func(context.Context, services.Actor, string) error
	addItemFn    func(context.Context, services.Actor, string, services.CreateOrderItemCommand) (services.Order, error)
	updateItemFn func(context.Context, services.Actor, string, string, services.UpdateOrderItemCommand) (services.Order, error)
	removeItemFn func(context.Context, services.Actor, string, string) (services.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, actor services.Actor, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, actor, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Get(ctx context.Context, actor services.Actor, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) List(ctx context.Context, actor services.Actor, query services.OrderListQuery) (services.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, actor, query)
	}
	return services.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) Update(ctx context.Context, actor services.Actor, cmd services.UpdateOrderCommand) (services.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, actor, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Delete(ctx context.Context, actor services.Actor, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, actor, orderID)
	}
	return errors.New("not implemented")
}

func (s *stubOrderService) AddItem(ctx context.Context, actor services.Actor, orderID string, cmd services.CreateOrderItemCommand) (services.Order, error) {
	if s.addItemFn != nil {
		return s.addItemFn(ctx, actor, orderID, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateItem(ctx context.Context, actor services.Actor, orderID, itemID string, cmd services.UpdateOrderItemCommand) (services.Order, error) {
	if s.updateItemFn != nil {
		return s.updateItemFn(ctx, actor, orderID, itemID, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) RemoveItem(ctx context.Context, actor services.Actor, orderID, itemID string) (services.Order, error) {
	if s.removeItemFn != nil {
		return s.removeItemFn(ctx, actor, orderID, itemID)
	}
	return services.Order{}, errors.New("not implemented")
}

func sampleOrder() services.Order {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return services.Order{
		ID:            "ord_01",
		UserID:        "usr_client",
		Code:          "CMD-20260901-1234",
		Subtotal:      decimal.NewFromInt(6000),
		Tax:           decimal.NewFromInt(500),
		Shipping:      decimal.NewFromInt(1000),
		Total:         decimal.NewFromInt(7500),
		Currency:      "XOF",
		Status:        "created",
		PaymentStatus: "unpaid",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func newOrderServer(svc services.OrderService) http.Handler {
	h := NewOrderHandlers(nil, svc, nil)
	return NewRouter(WithOrderRoutes(h.Routes))
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	identity := &auth.Identity{ID: "usr_client", Role: auth.RoleClient}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestCreateOrderNormalisesAliasFields(t *testing.T) {
	var captured services.CreateOrderCommand
	svc := &stubOrderService{
		createFn: func(_ context.Context, _ services.Actor, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(), nil
		},
	}

	body := `{
		"taxAmount": 500,
		"deliveryFee": "1000",
		"paymentMethod": "wave",
		"customerNote": "leave at the gate",
		"items": [{"productId": "prd_p1", "qty": 3, "price": 2000}]
	}`
	rec := httptest.NewRecorder()
	newOrderServer(svc).ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/orders", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if captured.PaymentMethod != "wave" {
		t.Fatalf("PaymentMethod = %q", captured.PaymentMethod)
	}
	if captured.Notes != "leave at the gate" {
		t.Fatalf("Notes = %q", captured.Notes)
	}
	if captured.Tax == nil || captured.Shipping == nil {
		t.Fatal("alias tax/shipping fields were dropped")
	}
	if len(captured.Items) != 1 {
		t.Fatalf("len(Items) = %d", len(captured.Items))
	}
	item := captured.Items[0]
	if item.ProductID == nil || *item.ProductID != "prd_p1" {
		t.Fatalf("ProductID = %v", item.ProductID)
	}
	if item.Quantity != 3 {
		t.Fatalf("Quantity = %d", item.Quantity)
	}
	if item.UnitPrice == nil {
		t.Fatal("price alias was dropped")
	}
}

func TestGetOrderRendersMoneyWithTwoDecimals(t *testing.T) {
	svc := &stubOrderService{
		getFn: func(_ context.Context, _ services.Actor, orderID string) (services.Order, error) {
			if orderID != "ord_01" {
				t.Fatalf("orderID = %q", orderID)
			}
			return sampleOrder(), nil
		},
	}

	rec := httptest.NewRecorder()
	newOrderServer(svc).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/ord_01", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["total"] != "7500.00" {
		t.Fatalf("total = %v, want 7500.00", resp["total"])
	}
	if resp["subtotal"] != "6000.00" {
		t.Fatalf("subtotal = %v, want 6000.00", resp["subtotal"])
	}
}

func TestGetOrderEmbedsLinkedTransactions(t *testing.T) {
	orderSvc := &stubOrderService{
		getFn: func(context.Context, services.Actor, string) (services.Order, error) {
			return sampleOrder(), nil
		},
	}
	txnSvc := &stubTransactionService{
		listFn: func(_ context.Context, _ services.Actor, query services.TransactionListQuery) (services.CursorPage[services.Transaction], error) {
			if query.OrderID != "ord_01" {
				t.Fatalf("OrderID filter = %q", query.OrderID)
			}
			return services.CursorPage[services.Transaction]{Items: []services.Transaction{sampleTransaction()}}, nil
		},
	}

	h := NewOrderHandlers(nil, orderSvc, txnSvc)
	rec := httptest.NewRecorder()
	NewRouter(WithOrderRoutes(h.Routes)).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/ord_01", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	txns, ok := resp["transactions"].([]any)
	if !ok || len(txns) != 1 {
		t.Fatalf("transactions = %v", resp["transactions"])
	}
}

func TestOrderErrorsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", services.ErrOrderInvalidInput, http.StatusBadRequest},
		{"forbidden", services.ErrOrderForbidden, http.StatusForbidden},
		{"not found", services.ErrOrderNotFound, http.StatusNotFound},
		{"conflict", services.ErrOrderConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrderService{
				getFn: func(context.Context, services.Actor, string) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			rec := httptest.NewRecorder()
			newOrderServer(svc).ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/orders/ord_01", ""))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestOrdersRequireAuthentication(t *testing.T) {
	svc := &stubOrderService{
		listFn: func(context.Context, services.Actor, services.OrderListQuery) (services.CursorPage[services.Order], error) {
			return services.CursorPage[services.Order]{}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	newOrderServer(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestDeleteOrderReturnsNoContent(t *testing.T) {
	svc := &stubOrderService{
		deleteFn: func(_ context.Context, actor services.Actor, orderID string) error {
			if actor.ID != "usr_client" || orderID != "ord_01" {
				t.Fatalf("actor = %+v, orderID = %q", actor, orderID)
			}
			return nil
		},
	}

	rec := httptest.NewRecorder()
	newOrderServer(svc).ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/orders/ord_01", ""))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestUpdateItemRoutesParams(t *testing.T) {
	svc := &stubOrderService{
		updateItemFn: func(_ context.Context, _ services.Actor, orderID, itemID string, cmd services.UpdateOrderItemCommand) (services.Order, error) {
			if orderID != "ord_01" || itemID != "itm_02" {
				t.Fatalf("params = %q/%q", orderID, itemID)
			}
			if cmd.Quantity == nil || *cmd.Quantity != 5 {
				t.Fatalf("Quantity = %v", cmd.Quantity)
			}
			return sampleOrder(), nil
		},
	}

	rec := httptest.NewRecorder()
	newOrderServer(svc).ServeHTTP(rec, authedRequest(http.MethodPatch, "/api/v1/orders/ord_01/items/itm_02", `{"quantity": 5}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestIdempotencyKeysScopePerAuthenticatedUser(t *testing.T) {
	calls := 0
	svc := &stubOrderService{
		createFn: func(context.Context, services.Actor, services.CreateOrderCommand) (services.Order, error) {
			calls++
			return sampleOrder(), nil
		},
	}
	h := NewOrderHandlers(nil, svc, nil, idempotency.Middleware(idempotency.NewMemoryStore()))
	server := NewRouter(WithOrderRoutes(h.Routes))

	body := `{"items": [{"productId": "prd_p1", "qty": 1}]}`
	send := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "key-1")
		identity := &auth.Identity{ID: userID, Role: auth.RoleClient}
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("usr_a"); rec.Code != http.StatusCreated {
		t.Fatalf("first create: status = %d (body: %s)", rec.Code, rec.Body.String())
	}
	if rec := send("usr_b"); rec.Code != http.StatusCreated {
		t.Fatalf("second user create: status = %d (body: %s)", rec.Code, rec.Body.String())
	}
	if calls != 2 {
		t.Fatalf("service calls = %d, want 2: the same key from another user must not replay", calls)
	}

	replay := send("usr_a")
	if replay.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatal("same user retry should replay the cached response")
	}
	if calls != 2 {
		t.Fatalf("service calls = %d after replay, want 2", calls)
	}
}
