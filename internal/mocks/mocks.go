// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/stretchr/testify/mock"
)

// MockTransactionRepository mocks the TransactionRepository interface
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindByOwner(ctx context.Context, ownerID string) ([]*entity.Transaction, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error) {
	args := m.Called(ctx, id, ownerID)
	return transactionArg(args)
}

func (m *MockTransactionRepository) FindBySharedID(ctx context.Context, sharedID string) (*entity.Transaction, error) {
	args := m.Called(ctx, sharedID)
	return transactionArg(args)
}

func (m *MockTransactionRepository) Store(ctx context.Context, tx *entity.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateByIDAndOwner(ctx context.Context, id, ownerID string, patch entity.TransactionPatch) (*entity.Transaction, error) {
	args := m.Called(ctx, id, ownerID, patch)
	return transactionArg(args)
}

func (m *MockTransactionRepository) AssignSharedID(ctx context.Context, id, ownerID, sharedID string) (*entity.Transaction, error) {
	args := m.Called(ctx, id, ownerID, sharedID)
	return transactionArg(args)
}

func (m *MockTransactionRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error) {
	args := m.Called(ctx, id, ownerID)
	return transactionArg(args)
}

func (m *MockTransactionRepository) DeleteManyByIDsAndOwner(ctx context.Context, ids []string, ownerID string) ([]*entity.Transaction, error) {
	args := m.Called(ctx, ids, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTransactionRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSharedTransactionCache mocks the SharedTransactionCache interface
type MockSharedTransactionCache struct {
	mock.Mock
}

func (m *MockSharedTransactionCache) Get(ctx context.Context, sharedID string) (*entity.Transaction, error) {
	args := m.Called(ctx, sharedID)
	return transactionArg(args)
}

func (m *MockSharedTransactionCache) Put(ctx context.Context, tx *entity.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockSharedTransactionCache) Evict(ctx context.Context, sharedID string) error {
	args := m.Called(ctx, sharedID)
	return args.Error(0)
}

// MockIdentityVerifier mocks the identity provider boundary
type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func transactionArg(args mock.Arguments) (*entity.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Transaction), args.Error(1)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	args := m.Called(key, value)
	return args.Get(0).(logger.Logger)
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	args := m.Called(fields)
	return args.Get(0).(logger.Logger)
}
