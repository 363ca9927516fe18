package handler

import (
	"net/http"

	"github.com/damon-houk/paylog/internal/application/service"
	"github.com/damon-houk/paylog/internal/infrastructure/invoice"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// TransactionHandler handles HTTP requests for the caller's own transactions
type TransactionHandler struct {
	service  *service.TransactionService
	invoices *invoice.Renderer
	logger   logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(service *service.TransactionService, invoices *invoice.Renderer, log logger.Logger) *TransactionHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &TransactionHandler{
		service:  service,
		invoices: invoices,
		logger:   log,
	}
}

// ListTransactions handles listing the caller's transactions
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	txs, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	resp := make([]TransactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = newTransactionResponse(tx)
	}

	h.logger.Debug("Transactions listed", map[string]interface{}{
		"request_id": requestID,
		"count":      len(resp),
	})

	sendJSON(w, h.logger, http.StatusOK, resp)
}

// CreateTransaction handles the creation of a new transaction
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	// Parse request body
	var req CreateTransactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendInvalidBody(w, h.logger, err, requestID)
		return
	}

	h.logger.Debug("Request parsed", map[string]interface{}{
		"request_id": requestID,
		"name":       req.Name,
		"type":       req.Type,
		"amount":     req.Amount,
	})

	input := service.CreateTransactionInput{
		Name:    req.Name,
		Type:    req.Type,
		Remarks: req.Remarks,
	}
	if req.Amount != nil {
		amount := req.Amount.InexactFloat64()
		input.Amount = &amount
	}
	if req.Date != nil {
		date := req.Date.Time
		input.Date = &date
	}

	tx, err := h.service.Create(r.Context(), ownerID, input)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusCreated, newTransactionResponse(tx))
}

// GetTransaction handles retrieving one of the caller's transactions by ID
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())
	id := mux.Vars(r)["id"]

	tx, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, newTransactionResponse(tx))
}

// UpdateTransaction handles a partial update of one of the caller's transactions
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	var req UpdateTransactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendInvalidBody(w, h.logger, err, requestID)
		return
	}

	if req.ID == "" {
		h.logger.Warn("Missing transaction id", map[string]interface{}{
			"request_id": requestID,
		})
		sendErrorResponse(w, h.logger, "Transaction ID is required",
			"The request body must include the id of the transaction to update", http.StatusBadRequest, requestID)
		return
	}

	tx, err := h.service.Update(r.Context(), ownerID, req.ID, req.Patch())
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, newTransactionResponse(tx))
}

// DeleteTransactions handles deleting one transaction ({id}) or several ({ids})
func (h *TransactionHandler) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	var req DeleteTransactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendInvalidBody(w, h.logger, err, requestID)
		return
	}

	switch {
	case req.IDs != nil:
		deleted, err := h.service.DeleteMany(r.Context(), ownerID, req.IDs)
		if err != nil {
			sendServiceError(w, h.logger, err, requestID)
			return
		}

		if deleted == 0 {
			h.logger.Warn("Bulk delete matched nothing", map[string]interface{}{
				"request_id": requestID,
				"requested":  len(req.IDs),
			})
			sendErrorResponse(w, h.logger, "No transactions deleted",
				"None of the listed transactions belong to the caller", http.StatusNotFound, requestID)
			return
		}

		sendJSON(w, h.logger, http.StatusOK, DeleteResponse{
			Message: "Transactions deleted successfully",
			Deleted: deleted,
		})

	case req.ID != "":
		if err := h.service.Delete(r.Context(), ownerID, req.ID); err != nil {
			sendServiceError(w, h.logger, err, requestID)
			return
		}

		sendJSON(w, h.logger, http.StatusOK, DeleteResponse{
			Message: "Transaction deleted successfully",
			Deleted: 1,
		})

	default:
		h.logger.Warn("Delete request without ids", map[string]interface{}{
			"request_id": requestID,
		})
		sendErrorResponse(w, h.logger, "Invalid request body",
			"The request body must include either id or ids", http.StatusBadRequest, requestID)
	}
}

// GetSummary handles computing the caller's balances
func (h *TransactionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())

	summary, err := h.service.Summary(r.Context(), ownerID)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, SummaryResponse{
		NetBalance:  summary.NetBalance,
		Receivables: summary.Receivables,
		Payables:    summary.Payables,
		Count:       summary.Count,
	})
}

// GetInvoice handles rendering a PDF invoice for one of the caller's transactions
func (h *TransactionHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())
	id := mux.Vars(r)["id"]

	tx, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendInvoice(w, h.logger, h.invoices, tx, tx.ID, requestID)
}

// RegisterRoutes registers the transaction handler routes behind auth
func (h *TransactionHandler) RegisterRoutes(router *mux.Router, auth func(http.Handler) http.Handler) {
	router.Handle("/transactions", auth(http.HandlerFunc(h.ListTransactions))).Methods(http.MethodGet)
	router.Handle("/transactions", auth(http.HandlerFunc(h.CreateTransaction))).Methods(http.MethodPost)
	router.Handle("/transactions", auth(http.HandlerFunc(h.UpdateTransaction))).Methods(http.MethodPatch)
	router.Handle("/transactions", auth(http.HandlerFunc(h.DeleteTransactions))).Methods(http.MethodDelete)
	router.Handle("/transactions/summary", auth(http.HandlerFunc(h.GetSummary))).Methods(http.MethodGet)
	router.Handle("/transactions/{id}", auth(http.HandlerFunc(h.GetTransaction))).Methods(http.MethodGet)
	router.Handle("/transactions/{id}/invoice", auth(http.HandlerFunc(h.GetInvoice))).Methods(http.MethodGet)

	h.logger.Info("Transaction routes registered", map[string]interface{}{
		"routes": []string{
			"GET /transactions",
			"POST /transactions",
			"PATCH /transactions",
			"DELETE /transactions",
			"GET /transactions/summary",
			"GET /transactions/{id}",
			"GET /transactions/{id}/invoice",
		},
	})
}
