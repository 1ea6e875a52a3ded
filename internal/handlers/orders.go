package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teranga-app/api/internal/platform/auth"
	"github.com/teranga-app/api/internal/platform/httpx"
	"github.com/teranga-app/api/internal/services"
)

const maxRequestBodySize = 64 * 1024

// OrderHandlers exposes the order endpoints for authenticated users. The
// transaction service is optional; when present, single-order responses embed
// the ledger entries linked to the order.
type OrderHandlers struct {
	authn        *auth.Authenticator
	orders       services.OrderService
	transactions services.TransactionService
	middlewares  []func(http.Handler) http.Handler
}

// NewOrderHandlers constructs a new OrderHandlers instance. Extra middlewares
// run after authentication so they see the caller identity.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, transactions services.TransactionService, middlewares ...func(http.Handler) http.Handler) *OrderHandlers {
	return &OrderHandlers{
		authn:        authn,
		orders:       orders,
		transactions: transactions,
		middlewares:  middlewares,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	for _, mw := range h.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}", h.updateOrder)
	r.Put("/{orderID}", h.updateOrder)
	r.Delete("/{orderID}", h.deleteOrder)

	r.Post("/{orderID}/items", h.addItem)
	r.Patch("/{orderID}/items/{itemID}", h.updateItem)
	r.Delete("/{orderID}/items/{itemID}", h.removeItem)
}

// Incoming payloads tolerate the alias field names used by older clients.
// Normalisation happens here once; everything behind the handler boundary
// sees a single canonical shape.

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

func (p *addressPayload) toDomain() *services.Address {
	if p == nil {
		return nil
	}
	return &services.Address{
		Line1:      p.Line1,
		Line2:      p.Line2,
		City:       p.City,
		Region:     p.Region,
		PostalCode: p.PostalCode,
		Country:    p.Country,
	}
}

func addressToPayload(addr *services.Address) *addressPayload {
	if addr == nil {
		return nil
	}
	return &addressPayload{
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		Region:     addr.Region,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

type orderItemPayload struct {
	ProductID      *string `json:"product_id"`
	ProductIDAlias *string `json:"productId"`
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	UnitPrice      any     `json:"unit_price"`
	UnitPriceAlias any     `json:"unitPrice"`
	Price          any     `json:"price"`
	Quantity       *int    `json:"quantity"`
	Qty            *int    `json:"qty"`
	Status         string  `json:"status"`
}

func (p orderItemPayload) toCommand() services.CreateOrderItemCommand {
	cmd := services.CreateOrderItemCommand{
		ProductID: firstPtr(p.ProductID, p.ProductIDAlias),
		Name:      p.Name,
		SKU:       p.SKU,
		UnitPrice: firstAny(p.UnitPrice, p.UnitPriceAlias, p.Price),
		Status:    p.Status,
	}
	if q := firstPtr(p.Quantity, p.Qty); q != nil {
		cmd.Quantity = *q
	}
	return cmd
}

type createOrderRequest struct {
	UserID        string `json:"user_id"`
	UserIDAlias   string `json:"userId"`
	Currency      string `json:"currency"`
	Tax           any    `json:"tax"`
	TaxAlias      any    `json:"taxAmount"`
	Shipping      any    `json:"shipping"`
	ShippingAlias any    `json:"shippingCost"`
	DeliveryFee   any    `json:"deliveryFee"`
	PaymentMethod string `json:"payment_method"`
	PaymentAlias  string `json:"paymentMethod"`
	Notes         string `json:"notes"`
	Note          string `json:"note"`
	CustomerNote  string `json:"customerNote"`

	ShippingAddress *addressPayload    `json:"shipping_address"`
	BillingAddress  *addressPayload    `json:"billing_address"`
	Items           []orderItemPayload `json:"items"`
}

func (req createOrderRequest) toCommand() services.CreateOrderCommand {
	cmd := services.CreateOrderCommand{
		UserID:          firstStr(req.UserID, req.UserIDAlias),
		Currency:        req.Currency,
		Tax:             firstAny(req.Tax, req.TaxAlias),
		Shipping:        firstAny(req.Shipping, req.ShippingAlias, req.DeliveryFee),
		PaymentMethod:   firstStr(req.PaymentMethod, req.PaymentAlias),
		Notes:           firstStr(req.Notes, req.Note, req.CustomerNote),
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, item.toCommand())
	}
	return cmd
}

type updateOrderRequest struct {
	Status           *string `json:"status"`
	OrderStatus      *string `json:"orderStatus"`
	PaymentStatus    *string `json:"payment_status"`
	PayStatusAlias   *string `json:"paymentStatus"`
	Tax              any     `json:"tax"`
	TaxAlias         any     `json:"taxAmount"`
	Shipping         any     `json:"shipping"`
	ShippingAlias    any     `json:"shippingCost"`
	DeliveryFee      any     `json:"deliveryFee"`
	PaymentMethod    *string `json:"payment_method"`
	PaymentAlias     *string `json:"paymentMethod"`
	PaymentReference *string `json:"payment_reference"`
	PayRefAlias      *string `json:"paymentReference"`
	Notes            *string `json:"notes"`
	Note             *string `json:"note"`
	CustomerNote     *string `json:"customerNote"`

	ShippingAddress *addressPayload `json:"shipping_address"`
	BillingAddress  *addressPayload `json:"billing_address"`
}

func (req updateOrderRequest) toCommand(orderID string) services.UpdateOrderCommand {
	return services.UpdateOrderCommand{
		OrderID:          orderID,
		Status:           firstPtr(req.Status, req.OrderStatus),
		PaymentStatus:    firstPtr(req.PaymentStatus, req.PayStatusAlias),
		Tax:              firstAny(req.Tax, req.TaxAlias),
		Shipping:         firstAny(req.Shipping, req.ShippingAlias, req.DeliveryFee),
		PaymentMethod:    firstPtr(req.PaymentMethod, req.PaymentAlias),
		PaymentReference: firstPtr(req.PaymentReference, req.PayRefAlias),
		Notes:            firstPtr(req.Notes, req.Note, req.CustomerNote),
		ShippingAddress:  req.ShippingAddress.toDomain(),
		BillingAddress:   req.BillingAddress.toDomain(),
	}
}

type updateOrderItemRequest struct {
	Name           *string `json:"name"`
	SKU            *string `json:"sku"`
	UnitPrice      any     `json:"unit_price"`
	UnitPriceAlias any     `json:"unitPrice"`
	Price          any     `json:"price"`
	Quantity       *int    `json:"quantity"`
	Qty            *int    `json:"qty"`
	Status         *string `json:"status"`
}

func (req updateOrderItemRequest) toCommand() services.UpdateOrderItemCommand {
	return services.UpdateOrderItemCommand{
		Name:      req.Name,
		SKU:       req.SKU,
		UnitPrice: firstAny(req.UnitPrice, req.UnitPriceAlias, req.Price),
		Quantity:  firstPtr(req.Quantity, req.Qty),
		Status:    req.Status,
	}
}

type orderItemResponse struct {
	ID        string  `json:"id"`
	ProductID *string `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku,omitempty"`
	UnitPrice string  `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	LineTotal string  `json:"line_total"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	UserID           string              `json:"user_id"`
	Code             string              `json:"code"`
	Subtotal         string              `json:"subtotal"`
	Tax              string              `json:"tax"`
	Shipping         string              `json:"shipping"`
	Total            string              `json:"total"`
	Currency         string              `json:"currency"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"payment_status"`
	PaymentMethod    string              `json:"payment_method,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	ShippingAddress  *addressPayload     `json:"shipping_address,omitempty"`
	BillingAddress   *addressPayload     `json:"billing_address,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	Items            []orderItemResponse `json:"items"`
	CreatedAt        string              `json:"created_at"`
	UpdatedAt        string              `json:"updated_at"`

	Transactions []transactionResponse `json:"transactions,omitempty"`
}

func toOrderResponse(order services.Order) orderResponse {
	resp := orderResponse{
		ID:               order.ID,
		UserID:           order.UserID,
		Code:             order.Code,
		Subtotal:         order.Subtotal.StringFixed(2),
		Tax:              order.Tax.StringFixed(2),
		Shipping:         order.Shipping.StringFixed(2),
		Total:            order.Total.StringFixed(2),
		Currency:         order.Currency,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		PaymentMethod:    order.PaymentMethod,
		PaymentReference: order.PaymentReference,
		ShippingAddress:  addressToPayload(order.ShippingAddress),
		BillingAddress:   addressToPayload(order.BillingAddress),
		Notes:            order.Notes,
		Items:            make([]orderItemResponse, 0, len(order.Items)),
		CreatedAt:        order.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        order.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal.StringFixed(2),
			Status:    string(item.Status),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}

type orderListResponse struct {
	Items         []orderResponse `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	query := r.URL.Query()
	page, err := h.orders.List(ctx, actor, services.OrderListQuery{
		UserID:        query.Get("user_id"),
		Status:        query.Get("status"),
		PaymentStatus: query.Get("payment_status"),
		Pagination:    paginationFromQuery(r),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	resp := orderListResponse{
		Items:         make([]orderResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		resp.Items = append(resp.Items, toOrderResponse(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createOrderRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.Create(ctx, actor, req.toCommand())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	order, err := h.orders.Get(ctx, actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	resp := toOrderResponse(order)
	if h.transactions != nil {
		// Best effort: a ledger read failure must not break the order fetch.
		page, err := h.transactions.List(ctx, actor, services.TransactionListQuery{OrderID: order.ID})
		if err == nil {
			for _, txn := range page.Items {
				resp.Transactions = append(resp.Transactions, toTransactionResponse(txn))
			}
		}
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req updateOrderRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.Update(ctx, actor, req.toCommand(chi.URLParam(r, "orderID")))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.orders.Delete(ctx, actor, chi.URLParam(r, "orderID")); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req orderItemPayload
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.AddItem(ctx, actor, chi.URLParam(r, "orderID"), req.toCommand())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req updateOrderItemRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}

	order, err := h.orders.UpdateItem(ctx, actor, chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"), req.toCommand())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	order, err := h.orders.RemoveItem(ctx, actor, chi.URLParam(r, "orderID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderResponse(order))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "access denied", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected failure", http.StatusInternalServerError))
	}
}

// Shared handler plumbing.

func actorFromContext(ctx context.Context) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.ID) == "" {
		return services.Actor{}, false
	}
	return services.Actor{ID: identity.ID, Role: identity.Role}, true
}

func writeUnauthenticated(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
}

// decodeJSONBody decodes with json.Number so monetary fields survive without
// float rounding until coercion.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func paginationFromQuery(r *http.Request) services.Pagination {
	query := r.URL.Query()
	pagination := services.Pagination{PageToken: query.Get("page_token")}
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			pagination.PageSize = size
		}
	}
	return pagination
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func firstStr(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPtr[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstAny(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
