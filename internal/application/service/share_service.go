// Package service internal/application/service/share_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/domain/repository"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/infrastructure/middleware"
	"github.com/google/uuid"
)

const maxShareAttempts = 3

// NewShareToken returns 32 hex characters drawn from a random UUID
func NewShareToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ShareService issues share tokens and resolves them to transactions
type ShareService struct {
	repo     repository.TransactionRepository
	cache    repository.SharedTransactionCache
	logger   logger.Logger
	newToken func() string
}

// NewShareService creates a new share service. cache may be nil.
func NewShareService(repo repository.TransactionRepository, cache repository.SharedTransactionCache, log logger.Logger) *ShareService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ShareService{
		repo:     repo,
		cache:    cache,
		logger:   log,
		newToken: NewShareToken,
	}
}

// Share returns the transaction with its share token, generating one on the
// first call. Later calls return the existing token.
func (s *ShareService) Share(ctx context.Context, ownerID, id string) (*entity.Transaction, error) {
	requestID := middleware.GetRequestID(ctx)

	if ownerID == "" {
		return nil, entity.ErrUnauthenticated
	}
	if strings.TrimSpace(id) == "" {
		return nil, &entity.ValidationError{Field: "id", Reason: "is required"}
	}

	for attempt := 1; attempt <= maxShareAttempts; attempt++ {
		token := s.newToken()

		tx, err := s.repo.AssignSharedID(ctx, id, ownerID, token)
		if errors.Is(err, repository.ErrDuplicateSharedID) {
			s.logger.Warn("Share token collision, retrying", map[string]interface{}{
				"request_id": requestID,
				"id":         id,
				"attempt":    attempt,
			})
			continue
		}
		if err != nil {
			return nil, translateStoreError(ctx, s.logger, "share", err)
		}

		s.logger.Info("Transaction shared", map[string]interface{}{
			"request_id": requestID,
			"owner_id":   ownerID,
			"id":         id,
			"new_token":  tx.SharedID == token,
		})

		return tx, nil
	}

	return nil, fmt.Errorf("%w: could not allocate a unique share token", entity.ErrConflict)
}

// Resolve returns the transaction a share token points at. No ownership
// check is made; callers must expose only the public projection.
func (s *ShareService) Resolve(ctx context.Context, sharedID string) (*entity.Transaction, error) {
	requestID := middleware.GetRequestID(ctx)

	// a token that could never have been issued cannot match
	if entity.ValidateShareToken(sharedID) != nil {
		return nil, entity.ErrNotFound
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, sharedID)
		if err != nil {
			s.logger.Warn("Shared transaction cache lookup failed", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
		}
		if cached != nil {
			s.logger.Debug("Shared transaction served from cache", map[string]interface{}{
				"request_id": requestID,
			})
			return cached, nil
		}
	}

	tx, err := s.repo.FindBySharedID(ctx, sharedID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, translateStoreError(ctx, s.logger, "resolve share", err)
	}

	if s.cache != nil {
		if tx = s.fill(ctx, tx); tx == nil {
			return nil, entity.ErrNotFound
		}
	}

	return tx, nil
}

// fill caches tx and reads the store again. Writers evict after they commit,
// so a write that landed between the first read and the put shows up here and
// the entry is dropped; anything later evicts after the put.
func (s *ShareService) fill(ctx context.Context, tx *entity.Transaction) *entity.Transaction {
	requestID := middleware.GetRequestID(ctx)

	if err := s.cache.Put(ctx, tx); err != nil {
		s.logger.Warn("Failed to cache shared transaction", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return tx
	}

	current, err := s.repo.FindBySharedID(ctx, tx.SharedID)
	if err == nil && current.UpdatedAt.Equal(tx.UpdatedAt) {
		return tx
	}

	s.logger.Debug("Shared transaction changed while caching", map[string]interface{}{
		"request_id": requestID,
		"id":         tx.ID,
	})
	if err := s.cache.Evict(ctx, tx.SharedID); err != nil {
		s.logger.Warn("Failed to evict shared transaction", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}

	switch {
	case err == nil:
		return current
	case errors.Is(err, repository.ErrRecordNotFound):
		return nil
	default:
		return tx
	}
}
