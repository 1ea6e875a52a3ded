package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/teranga-app/api/internal/platform/auth"
	"github.com/teranga-app/api/internal/platform/httpx"
	"github.com/teranga-app/api/internal/services"
)

// TransactionHandlers exposes the financial ledger endpoints.
type TransactionHandlers struct {
	authn        *auth.Authenticator
	transactions services.TransactionService
	middlewares  []func(http.Handler) http.Handler
}

// NewTransactionHandlers constructs a new TransactionHandlers instance. Extra
// middlewares run after authentication so they see the caller identity.
func NewTransactionHandlers(authn *auth.Authenticator, transactions services.TransactionService, middlewares ...func(http.Handler) http.Handler) *TransactionHandlers {
	return &TransactionHandlers{
		authn:        authn,
		transactions: transactions,
		middlewares:  middlewares,
	}
}

// Routes registers the /transactions endpoints.
func (h *TransactionHandlers) Routes(r chi.Router) {
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
	r.Get("/", h.listTransactions)
	r.Post("/", h.createTransaction)
	r.Get("/{transactionID}", h.getTransaction)
	r.Patch("/{transactionID}", h.updateTransaction)
	r.Delete("/{transactionID}", h.deleteTransaction)
}

type proofPayload struct {
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
	SizeBytes    int64  `json:"size_bytes"`
	MimeType     string `json:"mime_type"`
}

func (p *proofPayload) toDomain() *services.ProofOfPayment {
	if p == nil {
		return nil
	}
	return &services.ProofOfPayment{
		Path:         p.Path,
		OriginalName: p.OriginalName,
		SizeBytes:    p.SizeBytes,
		MimeType:     p.MimeType,
	}
}

func proofToPayload(proof *services.ProofOfPayment) *proofPayload {
	if proof == nil {
		return nil
	}
	return &proofPayload{
		Path:         proof.Path,
		OriginalName: proof.OriginalName,
		SizeBytes:    proof.SizeBytes,
		MimeType:     proof.MimeType,
	}
}

type createTransactionRequest struct {
	UserID         string        `json:"user_id"`
	UserIDAlias    string        `json:"userId"`
	OrderID        *string       `json:"order_id"`
	OrderIDAlias   *string       `json:"orderId"`
	ServiceID      *string       `json:"service_id"`
	ServiceIDAlias *string       `json:"serviceId"`
	TaskID         *string       `json:"task_id"`
	TaskIDAlias    *string       `json:"taskId"`
	Type           string        `json:"type"`
	Amount         any           `json:"amount"`
	Currency       string        `json:"currency"`
	PaymentMethod  string        `json:"payment_method"`
	PaymentAlias   string        `json:"paymentMethod"`
	Description    string        `json:"description"`
	Status         string        `json:"status"`
	Proof          *proofPayload `json:"proof"`
}

func (req createTransactionRequest) toCommand() services.CreateTransactionCommand {
	return services.CreateTransactionCommand{
		UserID:        firstStr(req.UserID, req.UserIDAlias),
		OrderID:       firstPtr(req.OrderID, req.OrderIDAlias),
		ServiceID:     firstPtr(req.ServiceID, req.ServiceIDAlias),
		TaskID:        firstPtr(req.TaskID, req.TaskIDAlias),
		Type:          req.Type,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: firstStr(req.PaymentMethod, req.PaymentAlias),
		Description:   req.Description,
		Status:        req.Status,
		Proof:         req.Proof.toDomain(),
	}
}

type updateTransactionRequest struct {
	Amount        any           `json:"amount"`
	Status        *string       `json:"status"`
	Description   *string       `json:"description"`
	PaymentMethod *string       `json:"payment_method"`
	PaymentAlias  *string       `json:"paymentMethod"`
	Proof         *proofPayload `json:"proof"`
}

func (req updateTransactionRequest) toCommand(txnID string) services.UpdateTransactionCommand {
	return services.UpdateTransactionCommand{
		TransactionID: txnID,
		Amount:        req.Amount,
		Status:        req.Status,
		Description:   req.Description,
		PaymentMethod: firstPtr(req.PaymentMethod, req.PaymentAlias),
		Proof:         req.Proof.toDomain(),
	}
}

type transactionResponse struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	OrderID       *string       `json:"order_id,omitempty"`
	ServiceID     *string       `json:"service_id,omitempty"`
	TaskID        *string       `json:"task_id,omitempty"`
	Type          string        `json:"type"`
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	Description   string        `json:"description,omitempty"`
	Status        string        `json:"status"`
	Proof         *proofPayload `json:"proof,omitempty"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

func toTransactionResponse(txn services.Transaction) transactionResponse {
	return transactionResponse{
		ID:            txn.ID,
		UserID:        txn.UserID,
		OrderID:       txn.OrderID,
		ServiceID:     txn.ServiceID,
		TaskID:        txn.TaskID,
		Type:          string(txn.Type),
		Amount:        txn.Amount.StringFixed(2),
		Currency:      txn.Currency,
		PaymentMethod: txn.PaymentMethod,
		Description:   txn.Description,
		Status:        string(txn.Status),
		Proof:         proofToPayload(txn.Proof),
		CreatedAt:     txn.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     txn.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type transactionListResponse struct {
	Items         []transactionResponse `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

func (h *TransactionHandlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	query := r.URL.Query()
	page, err := h.transactions.List(ctx, actor, services.TransactionListQuery{
		UserID:     query.Get("user_id"),
		OrderID:    query.Get("order_id"),
		Type:       query.Get("type"),
		Status:     query.Get("status"),
		Pagination: paginationFromQuery(r),
	})
	if err != nil {
		writeTransactionError(ctx, w, err)
		return
	}

	resp := transactionListResponse{
		Items:         make([]transactionResponse, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, txn := range page.Items {
		resp.Items = append(resp.Items, toTransactionResponse(txn))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *TransactionHandlers) createTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req createTransactionRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}

	txn, err := h.transactions.Create(ctx, actor, req.toCommand())
	if err != nil {
		writeTransactionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *TransactionHandlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	txn, err := h.transactions.Get(ctx, actor, chi.URLParam(r, "transactionID"))
	if err != nil {
		writeTransactionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *TransactionHandlers) updateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req updateTransactionRequest
	if !decodeJSONBody(ctx, w, r, &req) {
		return
	}

	txn, err := h.transactions.Update(ctx, actor, req.toCommand(chi.URLParam(r, "transactionID")))
	if err != nil {
		writeTransactionError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *TransactionHandlers) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	if err := h.transactions.Delete(ctx, actor, chi.URLParam(r, "transactionID")); err != nil {
		writeTransactionError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeTransactionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrTransactionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTransactionForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "access denied", http.StatusForbidden))
	case errors.Is(err, services.ErrTransactionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("transaction_not_found", "transaction not found", http.StatusNotFound))
	case errors.Is(err, services.ErrTransactionConflict):
		httpx.WriteError(ctx, w, httpx.NewError("transaction_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected failure", http.StatusInternalServerError))
	}
}
