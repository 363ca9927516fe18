package repository

import (
	"context"
	"errors"

	"github.com/damon-houk/paylog/internal/domain/entity"
)

var (
	// ErrRecordNotFound is returned when no record matches the lookup
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateSharedID is returned when a share token is already used by another record
	ErrDuplicateSharedID = errors.New("shared id already in use")
)

// TransactionRepository defines the interface for transaction storage.
// Every owner-scoped method matches on both id and owner, so a record owned by
// someone else is indistinguishable from a missing one.
type TransactionRepository interface {
	// FindByOwner lists the owner's transactions, newest created first
	FindByOwner(ctx context.Context, ownerID string) ([]*entity.Transaction, error)

	// FindByIDAndOwner retrieves one of the owner's transactions
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error)

	// FindBySharedID retrieves the transaction carrying the share token, regardless of owner
	FindBySharedID(ctx context.Context, sharedID string) (*entity.Transaction, error)

	// Store inserts a new transaction and stamps CreatedAt and UpdatedAt on it
	Store(ctx context.Context, tx *entity.Transaction) error

	// UpdateByIDAndOwner applies patch to one of the owner's transactions and returns the result
	UpdateByIDAndOwner(ctx context.Context, id, ownerID string, patch entity.TransactionPatch) (*entity.Transaction, error)

	// AssignSharedID sets the share token only if the transaction has none yet.
	// The returned transaction carries whichever token is stored afterwards.
	AssignSharedID(ctx context.Context, id, ownerID, sharedID string) (*entity.Transaction, error)

	// DeleteByIDAndOwner removes one of the owner's transactions and returns it
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error)

	// DeleteManyByIDsAndOwner removes the listed transactions that belong to the owner
	// and returns the ones that were removed
	DeleteManyByIDsAndOwner(ctx context.Context, ids []string, ownerID string) ([]*entity.Transaction, error)

	// Ping reports whether the backing store is reachable
	Ping(ctx context.Context) error

	// Close releases the connection, if one was opened
	Close() error
}
