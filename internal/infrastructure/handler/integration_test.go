// internal/infrastructure/handler/integration_test.go
package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/damon-houk/paylog/internal/application/service"
	"github.com/damon-houk/paylog/internal/infrastructure/auth"
	"github.com/damon-houk/paylog/internal/infrastructure/cache"
	"github.com/damon-houk/paylog/internal/infrastructure/db"
	"github.com/damon-houk/paylog/internal/infrastructure/handler"
	"github.com/damon-houk/paylog/internal/infrastructure/invoice"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "integration-test-secret"

type testServer struct {
	*httptest.Server
	verifier *auth.JWTVerifier
}

// setupTestServer wires the full stack against a badger store in a temp dir
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewJSONLogger(io.Discard, logger.ErrorLevel)

	repo := db.NewBadgerTransactionRepository(db.BadgerOptions{
		Path:           t.TempDir(),
		ConnectTimeout: 5 * time.Second,
	}, log)

	verifier, err := auth.NewJWTVerifier(testSecret, "", "")
	require.NoError(t, err)

	sharedCache := cache.NewSharedTransactionCache(time.Minute)
	txService := service.NewTransactionService(repo, sharedCache, log)
	shareService := service.NewShareService(repo, sharedCache, log)
	renderer := invoice.NewRenderer("INR", "PayLog")

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	requireAuth := middleware.AuthMiddleware(verifier, log)

	handler.NewHealthHandler(repo, log).RegisterRoutes(router)
	handler.NewShareHandler(shareService, renderer, log).RegisterRoutes(router, requireAuth)
	handler.NewTransactionHandler(txService, renderer, log).RegisterRoutes(router, requireAuth)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		_ = repo.Close()
	})

	return &testServer{Server: server, verifier: verifier}
}

func (s *testServer) token(t *testing.T, ownerID string) string {
	t.Helper()
	token, err := s.verifier.Sign(ownerID, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends a request as ownerID; an empty ownerID sends it anonymously
func (s *testServer) do(t *testing.T, method, path, ownerID, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if ownerID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, ownerID))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) create(t *testing.T, ownerID, body string) handler.TransactionResponse {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/transactions", ownerID, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[handler.TransactionResponse](t, resp)
}

func TestTransactionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	created := s.create(t, "alice", `{"name":"Rent","type":"debit","amount":"1200.50","date":"2024-03-01","remarks":"March"}`)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.OwnerID)
	assert.Equal(t, "debit", created.Type)
	assert.Equal(t, 1200.50, created.Amount)
	assert.Equal(t, "2024-03-01", created.Date.Format("2006-01-02"))
	assert.Empty(t, created.SharedID)

	t.Run("Get own transaction", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/transactions/"+created.ID, "alice", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[handler.TransactionResponse](t, resp)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Rent", got.Name)
	})

	t.Run("Other owner sees not found", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/transactions/"+created.ID, "bob", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = s.do(t, http.MethodPatch, "/transactions", "bob", `{"id":"`+created.ID+`","name":"Stolen"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = s.do(t, http.MethodDelete, "/transactions", "bob", `{"id":"`+created.ID+`"}`)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Partial update keeps other fields", func(t *testing.T) {
		resp := s.do(t, http.MethodPatch, "/transactions", "alice", `{"id":"`+created.ID+`","remarks":"paid late"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[handler.TransactionResponse](t, resp)
		assert.Equal(t, "paid late", got.Remarks)
		assert.Equal(t, "Rent", got.Name)
		assert.Equal(t, 1200.50, got.Amount)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("List returns only own transactions", func(t *testing.T) {
		s.create(t, "bob", `{"name":"Coffee","type":"debit","amount":3}`)

		resp := s.do(t, http.MethodGet, "/transactions", "alice", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		list := decode[[]handler.TransactionResponse](t, resp)
		require.Len(t, list, 1)
		assert.Equal(t, created.ID, list[0].ID)
	})

	t.Run("Delete single", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/transactions", "alice", `{"id":"`+created.ID+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, decode[handler.DeleteResponse](t, resp).Deleted)

		resp = s.do(t, http.MethodGet, "/transactions/"+created.ID, "alice", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSummaryEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	resp := s.do(t, http.MethodGet, "/transactions/summary", "carol", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decode[handler.SummaryResponse](t, resp)
	assert.Equal(t, handler.SummaryResponse{}, empty)

	s.create(t, "carol", `{"name":"Salary","type":"credit","amount":5000}`)
	s.create(t, "carol", `{"name":"Rent","type":"debit","amount":1200}`)
	s.create(t, "carol", `{"name":"Refund","type":"CREDIT","amount":0.1}`)
	s.create(t, "dave", `{"name":"Other","type":"credit","amount":999}`)

	resp = s.do(t, http.MethodGet, "/transactions/summary", "carol", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[handler.SummaryResponse](t, resp)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 5000.1, summary.Receivables)
	assert.Equal(t, 1200.0, summary.Payables)
	assert.Equal(t, 3800.1, summary.NetBalance)
}

func TestDebitMovesSummary(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)
	s.create(t, "erin", `{"name":"Salary","type":"credit","amount":5000}`)

	resp := s.do(t, http.MethodGet, "/transactions/summary", "erin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	before := decode[handler.SummaryResponse](t, resp)

	created := s.create(t, "erin", `{"name":"Rent","amount":1000,"type":"Debit"}`)
	assert.Equal(t, "debit", created.Type)
	assert.Equal(t, 1000.0, created.Amount)

	resp = s.do(t, http.MethodGet, "/transactions/summary", "erin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[handler.SummaryResponse](t, resp)

	assert.Equal(t, before.Count+1, after.Count)
	assert.Equal(t, before.Receivables, after.Receivables)
	assert.InDelta(t, before.Payables+1000, after.Payables, 1e-9)
	assert.InDelta(t, before.NetBalance-1000, after.NetBalance, 1e-9)

	resp = s.do(t, http.MethodGet, "/transactions/"+created.ID, "erin", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored := decode[handler.TransactionResponse](t, resp)
	assert.Equal(t, "debit", stored.Type)
}

func TestBulkDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	mine := s.create(t, "erin", `{"name":"Groceries","type":"debit","amount":40}`)
	theirs := s.create(t, "frank", `{"name":"Fuel","type":"debit","amount":60}`)

	t.Run("Only owned records are counted", func(t *testing.T) {
		body := `{"ids":["` + mine.ID + `","` + theirs.ID + `","missing"]}`
		resp := s.do(t, http.MethodDelete, "/transactions", "erin", body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, decode[handler.DeleteResponse](t, resp).Deleted)

		resp = s.do(t, http.MethodGet, "/transactions/"+theirs.ID, "frank", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Nothing matched", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/transactions", "erin", `{"ids":["`+theirs.ID+`"]}`)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		errResp := decode[handler.ErrorResponse](t, resp)
		assert.Equal(t, "No transactions deleted", errResp.Error)
	})

	t.Run("Empty list", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/transactions", "erin", `{"ids":[]}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Neither id nor ids", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/transactions", "erin", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestShareFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	tx := s.create(t, "gina", `{"name":"Dinner","type":"credit","amount":85.25,"remarks":"split with Hal"}`)

	resp := s.do(t, http.MethodPost, "/transactions/"+tx.ID+"/share", "gina", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[handler.ShareResponse](t, resp)
	assert.Len(t, first.SharedID, 32)
	assert.Equal(t, s.URL+"/transactions/shared/"+first.SharedID, first.URL)

	t.Run("Sharing again returns the same token", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/transactions/"+tx.ID+"/share", "gina", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, first.SharedID, decode[handler.ShareResponse](t, resp).SharedID)
	})

	t.Run("Another owner cannot share it", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/transactions/"+tx.ID+"/share", "hal", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Public read exposes only the projection", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/transactions/shared/"+first.SharedID, "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var raw map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		assert.Equal(t, "Dinner", raw["name"])
		assert.Equal(t, "credit", raw["type"])
		assert.Equal(t, 85.25, raw["amount"])
		assert.Equal(t, "split with Hal", raw["remarks"])
		assert.NotContains(t, raw, "id")
		assert.NotContains(t, raw, "ownerId")
		assert.NotContains(t, raw, "sharedId")
		assert.NotContains(t, raw, "updatedAt")
	})

	t.Run("Public read reflects updates", func(t *testing.T) {
		resp := s.do(t, http.MethodPatch, "/transactions", "gina", `{"id":"`+tx.ID+`","name":"Late dinner"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = s.do(t, http.MethodGet, "/transactions/shared/"+first.SharedID, "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Late dinner", decode[handler.SharedTransactionResponse](t, resp).Name)
	})

	t.Run("Token cannot be replaced", func(t *testing.T) {
		resp := s.do(t, http.MethodPatch, "/transactions", "gina", `{"id":"`+tx.ID+`","sharedId":"ffffffffffffffffffffffffffffffff"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Shared invoice", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/transactions/shared/"+first.SharedID+"/invoice", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
	})

	t.Run("Deleted transaction is no longer shared", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/transactions", "gina", `{"id":"`+tx.ID+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = s.do(t, http.MethodGet, "/transactions/shared/"+first.SharedID, "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSharedLookupNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	for _, token := range []string{"0123456789abcdef0123456789abcdef", "short", "has.dots.in.it.and.more"} {
		resp := s.do(t, http.MethodGet, "/transactions/shared/"+token, "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, token)

		// a session changes nothing for an unknown token
		resp = s.do(t, http.MethodGet, "/transactions/shared/"+token, "mallory", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, token)
	}
}

func TestAuthentication(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	t.Run("Missing session", func(t *testing.T) {
		for _, path := range []string{"/transactions", "/transactions/summary", "/transactions/some-id"} {
			resp := s.do(t, http.MethodGet, path, "", "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		}
	})

	t.Run("Invalid token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, s.URL+"/transactions", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer not-a-jwt")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Unauthorized", decode[handler.ErrorResponse](t, resp).Error)
	})

	t.Run("Session cookie", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, s.URL+"/transactions", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: s.token(t, "ivy")})

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, decode[[]handler.TransactionResponse](t, resp))
	})
}

func TestErrorHandling(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"Malformed JSON", `{"name":`},
		{"Missing name", `{"type":"debit","amount":10}`},
		{"Unknown type", `{"name":"Rent","type":"transfer","amount":10}`},
		{"Missing amount", `{"name":"Rent","type":"debit"}`},
		{"Negative amount", `{"name":"Rent","type":"debit","amount":-10}`},
		{"Invalid date", `{"name":"Rent","type":"debit","amount":10,"date":"yesterday"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/transactions", "jack", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	t.Run("Update without id", func(t *testing.T) {
		resp := s.do(t, http.MethodPatch, "/transactions", "jack", `{"name":"Rent"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Error body carries request id", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/transactions/non-existent-id", "jack", "")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		errResp := decode[handler.ErrorResponse](t, resp)
		assert.Equal(t, "transaction not found or unauthorized", errResp.Error)
		assert.NotEmpty(t, errResp.RequestID)
		assert.Equal(t, errResp.RequestID, resp.Header.Get("X-Request-ID"))
	})
}

func TestInvoiceAndHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := setupTestServer(t)

	tx := s.create(t, "kim", `{"name":"Consulting","type":"credit","amount":2500}`)

	resp := s.do(t, http.MethodGet, "/transactions/"+tx.ID+"/invoice", "kim", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "invoice-"+tx.ID+".pdf")

	resp = s.do(t, http.MethodGet, "/transactions/"+tx.ID+"/invoice", "lee", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[handler.HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "connected", health.Database)
}
