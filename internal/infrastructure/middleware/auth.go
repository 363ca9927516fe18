package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/domain/service"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
)

// SessionCookie is the cookie the web client keeps its session token in
const SessionCookie = "__session"

type unauthorizedResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// AuthMiddleware resolves the caller's session to an owner id. Requests
// without a verifiable session are answered with 401 and never reach next.
func AuthMiddleware(verifier service.IdentityVerifier, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			token := sessionToken(r)
			if token == "" {
				writeUnauthorized(w, requestID, "No session token provided")
				return
			}

			ownerID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				fields := map[string]interface{}{
					"request_id": requestID,
					"error":      err.Error(),
				}
				if errors.Is(err, entity.ErrUnauthenticated) {
					log.Warn("Session rejected", fields)
				} else {
					log.Error("Session verification failed", fields)
				}
				writeUnauthorized(w, requestID, "Session could not be verified")
				return
			}

			if session, ok := r.Context().Value(sessionKey).(*requestSession); ok {
				session.ownerID = ownerID
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

// sessionToken reads a bearer token, falling back to the session cookie
func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, requestID, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(unauthorizedResponse{
		Error:       "Unauthorized",
		Status:      http.StatusUnauthorized,
		Description: description,
		RequestID:   requestID,
	})
}

// WithOwnerID returns a context carrying the authenticated owner id
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// GetOwnerID retrieves the authenticated owner id, or "" if the request was not authenticated
func GetOwnerID(ctx context.Context) string {
	ownerID, _ := ctx.Value(ownerIDKey).(string)
	return ownerID
}
