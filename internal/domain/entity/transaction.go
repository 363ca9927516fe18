package entity

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Type is the direction of money flow for a transaction
type Type string

const (
	// Credit is money received
	Credit Type = "credit"
	// Debit is money paid out
	Debit Type = "debit"
)

// ParseType normalizes s to a known Type, ignoring case and surrounding space
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case Credit, Debit:
		return t, nil
	case "":
		return "", &ValidationError{Field: "type", Reason: "is required"}
	default:
		return "", &ValidationError{Field: "type", Reason: "must be either credit or debit"}
	}
}

// Transaction represents a single credit or debit recorded by its owner
type Transaction struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	Type      Type      `json:"type"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Remarks   string    `json:"remarks,omitempty"`
	SharedID  string    `json:"sharedId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate ensures the transaction meets all requirements
func (t *Transaction) Validate() error {
	if t.OwnerID == "" {
		return &ValidationError{Field: "ownerId", Reason: "is required"}
	}

	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}

	if _, err := ParseType(string(t.Type)); err != nil {
		return err
	}

	if err := validateAmount(t.Amount); err != nil {
		return err
	}

	if t.SharedID != "" {
		return ValidateShareToken(t.SharedID)
	}

	return nil
}

// Shared reports whether a share token has been generated for the transaction
func (t *Transaction) Shared() bool {
	return t.SharedID != ""
}

// Clone returns a copy that can be mutated independently
func (t *Transaction) Clone() *Transaction {
	c := *t
	return &c
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return &ValidationError{Field: "amount", Reason: "must be a finite number"}
	}
	if amount < 0 {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	return nil
}

var shareTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// ValidateShareToken checks that token is usable as a public share token
func ValidateShareToken(token string) error {
	if !shareTokenPattern.MatchString(token) {
		return &ValidationError{Field: "sharedId", Reason: "must be 16-128 characters of letters, digits, '-' or '_'"}
	}
	return nil
}

// TransactionPatch is a partial update. Nil fields are left untouched.
type TransactionPatch struct {
	Name     *string
	Type     *string
	Amount   *float64
	Date     *time.Time
	Remarks  *string
	SharedID *string
}

// Empty reports whether the patch changes nothing
func (p TransactionPatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Amount == nil && p.Date == nil && p.Remarks == nil && p.SharedID == nil
}

// Normalize validates the supplied fields and returns a patch ready to apply.
// A supplied required field may not be blanked.
func (p TransactionPatch) Normalize() (TransactionPatch, error) {
	out := p

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return TransactionPatch{}, &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		out.Name = &name
	}

	if p.Type != nil {
		t, err := ParseType(*p.Type)
		if err != nil {
			return TransactionPatch{}, err
		}
		s := string(t)
		out.Type = &s
	}

	if p.Amount != nil {
		if err := validateAmount(*p.Amount); err != nil {
			return TransactionPatch{}, err
		}
	}

	if p.Date != nil && p.Date.IsZero() {
		return TransactionPatch{}, &ValidationError{Field: "date", Reason: "must be a valid date"}
	}

	if p.SharedID != nil {
		if err := ValidateShareToken(*p.SharedID); err != nil {
			return TransactionPatch{}, err
		}
	}

	return out, nil
}

// Apply writes the patch onto t. The share token may be set once; replacing
// an existing token with a different one fails with ErrShareTokenImmutable.
func (p TransactionPatch) Apply(t *Transaction) error {
	if p.SharedID != nil && t.SharedID != "" && t.SharedID != *p.SharedID {
		return ErrShareTokenImmutable
	}

	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Type != nil {
		t.Type = Type(*p.Type)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = p.Date.UTC()
	}
	if p.Remarks != nil {
		t.Remarks = *p.Remarks
	}
	if p.SharedID != nil {
		t.SharedID = *p.SharedID
	}

	return nil
}
