package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/damon-houk/paylog/internal/domain/repository"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

const healthTimeout = 5 * time.Second

// HealthHandler reports whether the backing store is reachable
type HealthHandler struct {
	repo   repository.TransactionRepository
	logger logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(repo repository.TransactionRepository, log logger.Logger) *HealthHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &HealthHandler{repo: repo, logger: log}
}

// Health handles the health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", map[string]interface{}{
			"request_id": middleware.GetRequestID(r.Context()),
			"error":      err.Error(),
		})
		sendJSON(w, h.logger, http.StatusInternalServerError, HealthResponse{
			Status:    "error",
			Database:  "connection failed",
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}

	sendJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:    "ok",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
	})
}

// RegisterRoutes registers the health route
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}
