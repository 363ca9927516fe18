package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/damon-houk/paylog/internal/application/service"
	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/infrastructure/invoice"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// ShareHandler handles issuing share links and serving shared transactions
type ShareHandler struct {
	service  *service.ShareService
	invoices *invoice.Renderer
	logger   logger.Logger
}

// NewShareHandler creates a new share handler
func NewShareHandler(service *service.ShareService, invoices *invoice.Renderer, log logger.Logger) *ShareHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ShareHandler{
		service:  service,
		invoices: invoices,
		logger:   log,
	}
}

// ShareTransaction handles generating (or returning the existing) share link
func (h *ShareHandler) ShareTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ownerID := middleware.GetOwnerID(r.Context())
	id := mux.Vars(r)["id"]

	h.logger.Info("Handling share transaction request", map[string]interface{}{
		"request_id": requestID,
		"id":         id,
	})

	tx, err := h.service.Share(r.Context(), ownerID, id)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, ShareResponse{
		SharedID: tx.SharedID,
		URL:      sharedURL(r, tx.SharedID),
	})
}

// GetSharedTransaction handles the public, unauthenticated read of a shared transaction
func (h *ShareHandler) GetSharedTransaction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	sharedID := mux.Vars(r)["sharedId"]

	tx, err := h.service.Resolve(r.Context(), sharedID)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendJSON(w, h.logger, http.StatusOK, newSharedTransactionResponse(tx))
}

// GetSharedInvoice handles the public invoice download for a shared transaction
func (h *ShareHandler) GetSharedInvoice(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	sharedID := mux.Vars(r)["sharedId"]

	tx, err := h.service.Resolve(r.Context(), sharedID)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendInvoice(w, h.logger, h.invoices, tx, sharedID, requestID)
}

// RegisterRoutes registers the share handler routes. The shared read paths are
// public; they must be registered before /transactions/{id}.
func (h *ShareHandler) RegisterRoutes(router *mux.Router, auth func(http.Handler) http.Handler) {
	router.HandleFunc("/transactions/shared/{sharedId}", h.GetSharedTransaction).Methods(http.MethodGet)
	router.HandleFunc("/transactions/shared/{sharedId}/invoice", h.GetSharedInvoice).Methods(http.MethodGet)
	router.Handle("/transactions/{id}/share", auth(http.HandlerFunc(h.ShareTransaction))).Methods(http.MethodPost)

	h.logger.Info("Share routes registered", map[string]interface{}{
		"routes": []string{
			"GET /transactions/shared/{sharedId}",
			"GET /transactions/shared/{sharedId}/invoice",
			"POST /transactions/{id}/share",
		},
	})
}

// sharedURL builds the public link for token from the request's host
func sharedURL(r *http.Request, token string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	u := url.URL{
		Scheme: scheme,
		Host:   r.Host,
		Path:   "/transactions/shared/" + token,
	}
	return u.String()
}

// sendInvoice renders tx as a PDF attachment
func sendInvoice(w http.ResponseWriter, log logger.Logger, renderer *invoice.Renderer, tx *entity.Transaction, reference, requestID string) {
	data, err := renderer.Render(tx, reference)
	if err != nil {
		sendServiceError(w, log, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"invoice-%s.pdf\"", reference))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error("Failed to write invoice", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}
