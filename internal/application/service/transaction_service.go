package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/domain/repository"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/infrastructure/middleware"
	"github.com/google/uuid"
)

// CreateTransactionInput carries the client-supplied fields of a new transaction.
// Nil Amount means the field was missing; nil Date defaults to now.
type CreateTransactionInput struct {
	Name    string
	Type    string
	Amount  *float64
	Date    *time.Time
	Remarks string
}

// TransactionService handles business logic for transactions. Every operation
// is scoped to the calling owner.
type TransactionService struct {
	repo   repository.TransactionRepository
	cache  repository.SharedTransactionCache
	logger logger.Logger
	now    func() time.Time
}

// NewTransactionService creates a new transaction service. cache may be nil.
func NewTransactionService(repo repository.TransactionRepository, cache repository.SharedTransactionCache, log logger.Logger) *TransactionService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &TransactionService{
		repo:   repo,
		cache:  cache,
		logger: log,
		now:    time.Now,
	}
}

// List returns the owner's transactions, newest created first
func (s *TransactionService) List(ctx context.Context, ownerID string) ([]*entity.Transaction, error) {
	if ownerID == "" {
		return nil, entity.ErrUnauthenticated
	}

	txs, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.storeError(ctx, "list", err)
	}

	if txs == nil {
		txs = []*entity.Transaction{}
	}
	return txs, nil
}

// Create validates and stores a new transaction for the owner
func (s *TransactionService) Create(ctx context.Context, ownerID string, input CreateTransactionInput) (*entity.Transaction, error) {
	if ownerID == "" {
		return nil, entity.ErrUnauthenticated
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &entity.ValidationError{Field: "name", Reason: "is required"}
	}

	txType, err := entity.ParseType(input.Type)
	if err != nil {
		return nil, err
	}

	if input.Amount == nil {
		return nil, &entity.ValidationError{Field: "amount", Reason: "is required"}
	}

	date := s.now().UTC()
	if input.Date != nil && !input.Date.IsZero() {
		date = input.Date.UTC()
	}

	tx := &entity.Transaction{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Name:    name,
		Type:    txType,
		Amount:  *input.Amount,
		Date:    date,
		Remarks: input.Remarks,
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Store(ctx, tx); err != nil {
		return nil, s.storeError(ctx, "create", err)
	}

	s.logger.Info("Transaction created", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"owner_id":   ownerID,
		"id":         tx.ID,
		"type":       string(tx.Type),
		"amount":     tx.Amount,
	})

	return tx, nil
}

// Get retrieves one of the owner's transactions
func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (*entity.Transaction, error) {
	if ownerID == "" {
		return nil, entity.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return nil, &entity.ValidationError{Field: "id", Reason: "is required"}
	}

	tx, err := s.repo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, s.storeError(ctx, "get", err)
	}
	return tx, nil
}

// Update applies a partial update to one of the owner's transactions and
// returns the full updated record. An empty patch returns the record unchanged.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, patch entity.TransactionPatch) (*entity.Transaction, error) {
	if ownerID == "" {
		return nil, entity.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return nil, &entity.ValidationError{Field: "id", Reason: "is required"}
	}

	normalized, err := patch.Normalize()
	if err != nil {
		return nil, err
	}

	if normalized.Empty() {
		return s.Get(ctx, ownerID, id)
	}

	tx, err := s.repo.UpdateByIDAndOwner(ctx, id, ownerID, normalized)
	if err != nil {
		return nil, s.storeError(ctx, "update", err)
	}

	s.evict(ctx, tx)

	s.logger.Info("Transaction updated", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"owner_id":   ownerID,
		"id":         id,
	})

	return tx, nil
}

// Delete removes one of the owner's transactions
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return entity.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return &entity.ValidationError{Field: "id", Reason: "is required"}
	}

	tx, err := s.repo.DeleteByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return s.storeError(ctx, "delete", err)
	}

	s.evict(ctx, tx)

	s.logger.Info("Transaction deleted", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"owner_id":   ownerID,
		"id":         id,
	})

	return nil
}

// DeleteMany removes the listed transactions that belong to the owner and
// reports how many were removed. Ids owned by someone else are skipped.
func (s *TransactionService) DeleteMany(ctx context.Context, ownerID string, ids []string) (int, error) {
	if ownerID == "" {
		return 0, entity.ErrUnauthenticated
	}
	if len(ids) == 0 {
		return 0, &entity.ValidationError{Field: "ids", Reason: "must be a non-empty list"}
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return 0, &entity.ValidationError{Field: "ids", Reason: "must not contain empty values"}
		}
	}

	deleted, err := s.repo.DeleteManyByIDsAndOwner(ctx, ids, ownerID)
	if err != nil {
		return 0, s.storeError(ctx, "delete many", err)
	}

	for _, tx := range deleted {
		s.evict(ctx, tx)
	}

	s.logger.Info("Transactions deleted", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"owner_id":   ownerID,
		"requested":  len(ids),
		"deleted":    len(deleted),
	})

	return len(deleted), nil
}

// Summary aggregates the owner's transactions
func (s *TransactionService) Summary(ctx context.Context, ownerID string) (entity.Summary, error) {
	txs, err := s.List(ctx, ownerID)
	if err != nil {
		return entity.Summary{}, err
	}
	return entity.Summarize(txs), nil
}

// evict drops the cached public projection of a shared transaction
func (s *TransactionService) evict(ctx context.Context, tx *entity.Transaction) {
	if s.cache == nil || tx == nil || tx.SharedID == "" {
		return
	}

	if err := s.cache.Evict(ctx, tx.SharedID); err != nil {
		s.logger.Warn("Failed to evict shared transaction from cache", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"id":         tx.ID,
			"error":      err.Error(),
		})
	}
}

// storeError translates repository failures into the service error taxonomy
func (s *TransactionService) storeError(ctx context.Context, op string, err error) error {
	return translateStoreError(ctx, s.logger, op, err)
}

func translateStoreError(ctx context.Context, log logger.Logger, op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		return entity.ErrNotFoundOrForbidden
	case errors.Is(err, repository.ErrDuplicateSharedID):
		return fmt.Errorf("%w: share token is already in use", entity.ErrConflict)
	case errors.Is(err, entity.ErrConflict),
		errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrNotFoundOrForbidden):
		return err
	}

	log.Error("Storage operation failed", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"operation":  op,
		"error":      err.Error(),
	})

	if errors.Is(err, entity.ErrStorageUnavailable) {
		return err
	}
	return entity.StorageError(op, err)
}
