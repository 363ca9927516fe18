package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON request body of bounded size into v
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// sendJSON writes v with the given status
func sendJSON(w http.ResponseWriter, log logger.Logger, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	sendJSON(w, log, statusCode, ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	})
}

// sendServiceError maps a service error onto its HTTP status
func sendServiceError(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	fields := map[string]interface{}{
		"request_id": requestID,
		"error":      err.Error(),
	}

	var verr *entity.ValidationError
	switch {
	case errors.Is(err, entity.ErrUnauthenticated):
		log.Warn("Unauthenticated request", fields)
		sendErrorResponse(w, log, "Unauthorized",
			"A valid session is required", http.StatusUnauthorized, requestID)
	case errors.As(err, &verr):
		log.Warn("Validation failed", fields)
		sendErrorResponse(w, log, "Validation failed", verr.Error(), http.StatusBadRequest, requestID)
	case errors.Is(err, entity.ErrNotFoundOrForbidden):
		log.Warn("Transaction not found or not owned by caller", fields)
		sendErrorResponse(w, log, entity.ErrNotFoundOrForbidden.Error(),
			"No transaction with this id belongs to the caller", http.StatusNotFound, requestID)
	case errors.Is(err, entity.ErrNotFound):
		log.Warn("Shared transaction not found", fields)
		sendErrorResponse(w, log, "Transaction not found",
			"No transaction is shared under this link", http.StatusNotFound, requestID)
	case errors.Is(err, entity.ErrConflict):
		log.Warn("Conflicting write", fields)
		sendErrorResponse(w, log, "Conflict", err.Error(), http.StatusConflict, requestID)
	case errors.Is(err, entity.ErrStorageUnavailable):
		log.Error("Storage unavailable", fields)
		sendErrorResponse(w, log, "Storage unavailable",
			"The data store could not be reached. Please try again later.",
			http.StatusInternalServerError, requestID)
	default:
		log.Error("Unexpected error", fields)
		sendErrorResponse(w, log, "Internal server error",
			"An unexpected error occurred. Please try again later.",
			http.StatusInternalServerError, requestID)
	}
}

// sendInvalidBody answers a body that could not be decoded
func sendInvalidBody(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	log.Warn("Invalid request body", map[string]interface{}{
		"request_id": requestID,
		"error":      err.Error(),
	})
	sendErrorResponse(w, log, "Invalid request body",
		"The request body could not be parsed as valid JSON: "+err.Error(), http.StatusBadRequest, requestID)
}
