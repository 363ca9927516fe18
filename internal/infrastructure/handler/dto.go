package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date accepts either an RFC 3339 timestamp or a YYYY-MM-DD calendar date.
// An empty string decodes to the zero time.
type Date struct {
	time.Time
}

// UnmarshalJSON parses the accepted date formats
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("date must be RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	d.Time = t
	return nil
}

// CreateTransactionRequest represents the request body for creating a transaction.
// Amount accepts a JSON number or a numeric string.
type CreateTransactionRequest struct {
	Name    string           `json:"name"`
	Type    string           `json:"type"`
	Amount  *decimal.Decimal `json:"amount"`
	Date    *Date            `json:"date"`
	Remarks string           `json:"remarks"`
}

// UpdateTransactionRequest represents the request body for a partial update.
// Absent and null fields are left unchanged.
type UpdateTransactionRequest struct {
	ID       string           `json:"id"`
	Name     *string          `json:"name"`
	Type     *string          `json:"type"`
	Amount   *decimal.Decimal `json:"amount"`
	Date     *Date            `json:"date"`
	Remarks  *string          `json:"remarks"`
	SharedID *string          `json:"sharedId"`
}

// Patch converts the request into a domain patch
func (r UpdateTransactionRequest) Patch() entity.TransactionPatch {
	patch := entity.TransactionPatch{
		Name:     r.Name,
		Type:     r.Type,
		Remarks:  r.Remarks,
		SharedID: r.SharedID,
	}
	if r.Amount != nil {
		amount := r.Amount.InexactFloat64()
		patch.Amount = &amount
	}
	if r.Date != nil {
		date := r.Date.Time
		patch.Date = &date
	}
	return patch
}

// DeleteTransactionRequest selects either one transaction or a list of them
type DeleteTransactionRequest struct {
	ID  string   `json:"id"`
	IDs []string `json:"ids"`
}

// TransactionResponse represents a transaction as returned to its owner
type TransactionResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Remarks   string    `json:"remarks"`
	SharedID  string    `json:"sharedId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newTransactionResponse(tx *entity.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        tx.ID,
		OwnerID:   tx.OwnerID,
		Name:      tx.Name,
		Type:      string(tx.Type),
		Amount:    tx.Amount,
		Date:      tx.Date,
		Remarks:   tx.Remarks,
		SharedID:  tx.SharedID,
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
}

// SharedTransactionResponse is the public projection served for a share token.
// It never carries the id, owner or token.
type SharedTransactionResponse struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Remarks   string    `json:"remarks"`
	CreatedAt time.Time `json:"createdAt"`
}

func newSharedTransactionResponse(tx *entity.Transaction) SharedTransactionResponse {
	return SharedTransactionResponse{
		Name:      tx.Name,
		Type:      string(tx.Type),
		Amount:    tx.Amount,
		Date:      tx.Date,
		Remarks:   tx.Remarks,
		CreatedAt: tx.CreatedAt,
	}
}

// ShareResponse represents the response for the share endpoint
type ShareResponse struct {
	SharedID string `json:"sharedId"`
	URL      string `json:"url"`
}

// SummaryResponse represents the aggregate balances of the caller's transactions
type SummaryResponse struct {
	NetBalance  float64 `json:"netBalance"`
	Receivables float64 `json:"receivables"`
	Payables    float64 `json:"payables"`
	Count       int     `json:"count"`
}

// DeleteResponse represents the response for the delete endpoint
type DeleteResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

// HealthResponse represents the response for the health endpoint
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}
