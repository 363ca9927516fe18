package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/domain/repository"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/damon-houk/paylog/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func testLogger() logger.Logger {
	return logger.NewJSONLogger(&bytes.Buffer{}, logger.ErrorLevel)
}

func TestCreateTransaction(t *testing.T) {
	repo := new(mocks.MockTransactionRepository)
	service := NewTransactionService(repo, nil, testLogger())
	ctx := context.Background()

	t.Run("Valid transaction", func(t *testing.T) {
		date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

		repo.On("Store", ctx, mock.MatchedBy(func(tx *entity.Transaction) bool {
			return tx.Name == "Rent" && tx.Type == entity.Debit && tx.Amount == 1000 &&
				tx.OwnerID == "user-1" && tx.ID != "" && tx.Date.Equal(date) && tx.Date.Location() == time.UTC
		})).Return(nil).Once()

		tx, err := service.Create(ctx, "user-1", CreateTransactionInput{
			Name:   "  Rent ",
			Type:   "Debit",
			Amount: floatPtr(1000),
			Date:   &date,
		})

		require.NoError(t, err)
		assert.Equal(t, "Rent", tx.Name)
		assert.Equal(t, entity.Debit, tx.Type)
		assert.NotEmpty(t, tx.ID)
		repo.AssertExpectations(t)
	})

	t.Run("Date defaults to now", func(t *testing.T) {
		fixed := time.Date(2024, 5, 5, 10, 0, 0, 0, time.UTC)
		service.now = func() time.Time { return fixed }
		defer func() { service.now = time.Now }()

		repo.On("Store", ctx, mock.MatchedBy(func(tx *entity.Transaction) bool {
			return tx.Date.Equal(fixed)
		})).Return(nil).Once()

		tx, err := service.Create(ctx, "user-1", CreateTransactionInput{Name: "Salary", Type: "credit", Amount: floatPtr(0)})
		require.NoError(t, err)
		assert.Equal(t, 0.0, tx.Amount)
		repo.AssertExpectations(t)
	})

	invalid := []struct {
		name  string
		input CreateTransactionInput
		field string
	}{
		{"Missing name", CreateTransactionInput{Type: "credit", Amount: floatPtr(1)}, "name"},
		{"Blank name", CreateTransactionInput{Name: "   ", Type: "credit", Amount: floatPtr(1)}, "name"},
		{"Missing type", CreateTransactionInput{Name: "x", Amount: floatPtr(1)}, "type"},
		{"Unknown type", CreateTransactionInput{Name: "x", Type: "transfer", Amount: floatPtr(1)}, "type"},
		{"Missing amount", CreateTransactionInput{Name: "x", Type: "credit"}, "amount"},
		{"Negative amount", CreateTransactionInput{Name: "x", Type: "credit", Amount: floatPtr(-5)}, "amount"},
	}

	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			tx, err := service.Create(ctx, "user-1", tc.input)

			assert.Nil(t, tx)
			assert.ErrorIs(t, err, entity.ErrValidation)

			var verr *entity.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := service.Create(ctx, "", CreateTransactionInput{Name: "x", Type: "credit", Amount: floatPtr(1)})
		assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	})

	t.Run("Repository error", func(t *testing.T) {
		repo.On("Store", ctx, mock.Anything).Return(errors.New("disk full")).Once()

		tx, err := service.Create(ctx, "user-1", CreateTransactionInput{Name: "x", Type: "credit", Amount: floatPtr(1)})

		assert.Nil(t, tx)
		assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
		assert.Contains(t, err.Error(), "disk full")
		repo.AssertExpectations(t)
	})
}

func TestListTransactions(t *testing.T) {
	repo := new(mocks.MockTransactionRepository)
	service := NewTransactionService(repo, nil, testLogger())
	ctx := context.Background()

	t.Run("Owner scoped", func(t *testing.T) {
		txs := []*entity.Transaction{{ID: "a", OwnerID: "user-1"}}
		repo.On("FindByOwner", ctx, "user-1").Return(txs, nil).Once()

		result, err := service.List(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, txs, result)
	})

	t.Run("Empty list is not nil", func(t *testing.T) {
		repo.On("FindByOwner", ctx, "user-2").Return(nil, nil).Once()

		result, err := service.List(ctx, "user-2")
		require.NoError(t, err)
		assert.NotNil(t, result)
		assert.Empty(t, result)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := service.List(ctx, "")
		assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	})

	t.Run("Storage unavailable", func(t *testing.T) {
		repo.On("FindByOwner", ctx, "user-3").Return(nil, entity.StorageError("find by owner", errors.New("connection refused"))).Once()

		_, err := service.List(ctx, "user-3")
		assert.ErrorIs(t, err, entity.ErrStorageUnavailable)
	})

	repo.AssertExpectations(t)
}

func TestUpdateTransaction(t *testing.T) {
	repo := new(mocks.MockTransactionRepository)
	cache := new(mocks.MockSharedTransactionCache)
	service := NewTransactionService(repo, cache, testLogger())
	ctx := context.Background()

	t.Run("Normalizes patch and evicts shared projection", func(t *testing.T) {
		updated := &entity.Transaction{ID: "tx-1", OwnerID: "user-1", Type: entity.Credit, SharedID: "token000000000001"}
		repo.On("UpdateByIDAndOwner", ctx, "tx-1", "user-1", mock.MatchedBy(func(p entity.TransactionPatch) bool {
			return p.Type != nil && *p.Type == "credit" && p.Name != nil && *p.Name == "Refund"
		})).Return(updated, nil).Once()
		cache.On("Evict", ctx, "token000000000001").Return(nil).Once()

		tx, err := service.Update(ctx, "user-1", "tx-1", entity.TransactionPatch{Type: strPtr(" CREDIT "), Name: strPtr(" Refund ")})

		require.NoError(t, err)
		assert.Equal(t, updated, tx)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("Cache failure does not fail the update", func(t *testing.T) {
		updated := &entity.Transaction{ID: "tx-2", OwnerID: "user-1", SharedID: "token000000000002"}
		repo.On("UpdateByIDAndOwner", ctx, "tx-2", "user-1", mock.Anything).Return(updated, nil).Once()
		cache.On("Evict", ctx, "token000000000002").Return(errors.New("redis down")).Once()

		_, err := service.Update(ctx, "user-1", "tx-2", entity.TransactionPatch{Amount: floatPtr(3)})
		assert.NoError(t, err)
	})

	t.Run("Not found or forbidden", func(t *testing.T) {
		repo.On("UpdateByIDAndOwner", ctx, "tx-other", "user-1", mock.Anything).Return(nil, repository.ErrRecordNotFound).Once()

		_, err := service.Update(ctx, "user-1", "tx-other", entity.TransactionPatch{Amount: floatPtr(3)})
		assert.ErrorIs(t, err, entity.ErrNotFoundOrForbidden)
	})

	t.Run("Missing id", func(t *testing.T) {
		_, err := service.Update(ctx, "user-1", "", entity.TransactionPatch{Amount: floatPtr(3)})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("Required field cannot be blanked", func(t *testing.T) {
		_, err := service.Update(ctx, "user-1", "tx-1", entity.TransactionPatch{Name: strPtr("  ")})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("Empty patch returns current record", func(t *testing.T) {
		current := &entity.Transaction{ID: "tx-3", OwnerID: "user-1"}
		repo.On("FindByIDAndOwner", ctx, "tx-3", "user-1").Return(current, nil).Once()

		tx, err := service.Update(ctx, "user-1", "tx-3", entity.TransactionPatch{})
		require.NoError(t, err)
		assert.Equal(t, current, tx)
	})

	t.Run("Share token conflicts", func(t *testing.T) {
		repo.On("UpdateByIDAndOwner", ctx, "tx-4", "user-1", mock.Anything).Return(nil, repository.ErrDuplicateSharedID).Once()
		_, err := service.Update(ctx, "user-1", "tx-4", entity.TransactionPatch{SharedID: strPtr("takentoken0000001")})
		assert.ErrorIs(t, err, entity.ErrConflict)

		repo.On("UpdateByIDAndOwner", ctx, "tx-5", "user-1", mock.Anything).Return(nil, entity.ErrShareTokenImmutable).Once()
		_, err = service.Update(ctx, "user-1", "tx-5", entity.TransactionPatch{SharedID: strPtr("othertoken0000001")})
		assert.ErrorIs(t, err, entity.ErrConflict)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := service.Update(ctx, "", "tx-1", entity.TransactionPatch{Amount: floatPtr(3)})
		assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	})
}

func TestDeleteTransaction(t *testing.T) {
	repo := new(mocks.MockTransactionRepository)
	cache := new(mocks.MockSharedTransactionCache)
	service := NewTransactionService(repo, cache, testLogger())
	ctx := context.Background()

	t.Run("Deletes and evicts", func(t *testing.T) {
		repo.On("DeleteByIDAndOwner", ctx, "tx-1", "user-1").
			Return(&entity.Transaction{ID: "tx-1", SharedID: "token000000000001"}, nil).Once()
		cache.On("Evict", ctx, "token000000000001").Return(nil).Once()

		assert.NoError(t, service.Delete(ctx, "user-1", "tx-1"))
		cache.AssertExpectations(t)
	})

	t.Run("Unshared record does not touch cache", func(t *testing.T) {
		repo.On("DeleteByIDAndOwner", ctx, "tx-2", "user-1").Return(&entity.Transaction{ID: "tx-2"}, nil).Once()

		assert.NoError(t, service.Delete(ctx, "user-1", "tx-2"))
	})

	t.Run("Not found or forbidden", func(t *testing.T) {
		repo.On("DeleteByIDAndOwner", ctx, "tx-other", "user-1").Return(nil, repository.ErrRecordNotFound).Once()

		assert.ErrorIs(t, service.Delete(ctx, "user-1", "tx-other"), entity.ErrNotFoundOrForbidden)
	})

	t.Run("Missing id", func(t *testing.T) {
		assert.ErrorIs(t, service.Delete(ctx, "user-1", " "), entity.ErrValidation)
	})

	repo.AssertExpectations(t)
}

func TestDeleteManyTransactions(t *testing.T) {
	repo := new(mocks.MockTransactionRepository)
	cache := new(mocks.MockSharedTransactionCache)
	service := NewTransactionService(repo, cache, testLogger())
	ctx := context.Background()

	t.Run("Counts deleted records", func(t *testing.T) {
		repo.On("DeleteManyByIDsAndOwner", ctx, []string{"x", "y"}, "user-1").
			Return([]*entity.Transaction{{ID: "x", SharedID: "token000000000001"}}, nil).Once()
		cache.On("Evict", ctx, "token000000000001").Return(nil).Once()

		count, err := service.DeleteMany(ctx, "user-1", []string{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Nothing matched", func(t *testing.T) {
		repo.On("DeleteManyByIDsAndOwner", ctx, []string{"z"}, "user-1").Return(nil, nil).Once()

		count, err := service.DeleteMany(ctx, "user-1", []string{"z"})
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Empty list", func(t *testing.T) {
		_, err := service.DeleteMany(ctx, "user-1", nil)
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("Malformed list", func(t *testing.T) {
		_, err := service.DeleteMany(ctx, "user-1", []string{"x", ""})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestSummary(t *testing.T) {
	repo := new(mocks.MockTransactionRepository)
	service := NewTransactionService(repo, nil, testLogger())
	ctx := context.Background()

	repo.On("FindByOwner", ctx, "user-1").Return([]*entity.Transaction{
		{Type: entity.Credit, Amount: 5000},
		{Type: entity.Debit, Amount: 1000},
		{Type: entity.Debit, Amount: 250.5},
	}, nil).Once()

	summary, err := service.Summary(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, summary.Receivables)
	assert.Equal(t, 1250.5, summary.Payables)
	assert.Equal(t, 3749.5, summary.NetBalance)
	assert.Equal(t, 3, summary.Count)
}
