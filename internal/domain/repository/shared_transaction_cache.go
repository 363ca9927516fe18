package repository

import (
	"context"

	"github.com/damon-houk/paylog/internal/domain/entity"
)

// SharedTransactionCache holds transactions keyed by share token for the public read path
type SharedTransactionCache interface {
	// Get returns the cached transaction, or nil on a miss
	Get(ctx context.Context, sharedID string) (*entity.Transaction, error)

	// Put caches a shared transaction under its token
	Put(ctx context.Context, tx *entity.Transaction) error

	// Evict drops the entry for the token
	Evict(ctx context.Context, sharedID string) error
}
