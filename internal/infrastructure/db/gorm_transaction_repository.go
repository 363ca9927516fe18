package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/domain/repository"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Supported SQL drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLOptions configures the relational store
type SQLOptions struct {
	Driver         string
	DSN            string
	Debug          bool
	ConnectTimeout time.Duration
}

// TransactionEntity is the relational row for a transaction
type TransactionEntity struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	OwnerID   string    `gorm:"column:owner_id;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Type      string    `gorm:"column:type;not null"`
	Amount    float64   `gorm:"column:amount;not null"`
	Date      time.Time `gorm:"column:date;not null"`
	Remarks   string    `gorm:"column:remarks;not null;default:''"`
	SharedID  *string   `gorm:"column:shared_id;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *entity.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	e := &TransactionEntity{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Name:      m.Name,
		Type:      string(m.Type),
		Amount:    m.Amount,
		Date:      m.Date,
		Remarks:   m.Remarks,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.SharedID != "" {
		shared := m.SharedID
		e.SharedID = &shared
	}
	return e
}

func toTransactionModel(e *TransactionEntity) *entity.Transaction {
	if e == nil {
		return nil
	}
	m := &entity.Transaction{
		ID:        e.ID,
		OwnerID:   e.OwnerID,
		Name:      e.Name,
		Type:      entity.Type(e.Type),
		Amount:    e.Amount,
		Date:      e.Date.UTC(),
		Remarks:   e.Remarks,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
	if e.SharedID != nil {
		m.SharedID = *e.SharedID
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*entity.Transaction {
	models := make([]*entity.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

// GormTransactionRepository implements the transaction repository interface on a SQL database through GORM
type GormTransactionRepository struct {
	conn *Connection[*gorm.DB]
}

// NewGormTransactionRepository creates a new relational transaction repository.
// The database is opened and migrated on first use.
func NewGormTransactionRepository(opts SQLOptions, log logger.Logger) *GormTransactionRepository {
	open := func(ctx context.Context) (*gorm.DB, error) {
		return openGorm(ctx, opts)
	}
	closeFn := func(db *gorm.DB) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return &GormTransactionRepository{
		conn: NewConnection("sql/"+opts.Driver, opts.ConnectTimeout, open, closeFn, log),
	}
}

func openGorm(ctx context.Context, opts SQLOptions) (*gorm.DB, error) {
	var (
		dialector gorm.Dialector
		dialect   goose.Dialect
	)

	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
		dialect = goose.DialectPostgres
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", opts.Driver)
	}

	logMode := gormlogger.Silent
	if opts.Debug {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(logMode),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if opts.Driver == DriverSQLite {
		// one connection keeps ":memory:" databases alive and serialises writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := migrate(ctx, sqlDB, dialect); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

// FindByOwner lists the owner's transactions, newest created first
func (r *GormTransactionRepository) FindByOwner(ctx context.Context, ownerID string) ([]*entity.Transaction, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var entities []*TransactionEntity
	err = db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&entities).Error
	if err != nil {
		return nil, translateGormError("find by owner", err)
	}

	return toTransactionModels(entities), nil
}

// FindByIDAndOwner retrieves one of the owner's transactions
func (r *GormTransactionRepository) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var e TransactionEntity
	if err := db.Where("id = ? AND owner_id = ?", id, ownerID).First(&e).Error; err != nil {
		return nil, translateGormError("find by id", err)
	}

	return toTransactionModel(&e), nil
}

// FindBySharedID retrieves the transaction carrying the share token
func (r *GormTransactionRepository) FindBySharedID(ctx context.Context, sharedID string) (*entity.Transaction, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var e TransactionEntity
	if err := db.Where("shared_id = ?", sharedID).First(&e).Error; err != nil {
		return nil, translateGormError("find by shared id", err)
	}

	return toTransactionModel(&e), nil
}

// Store saves a new transaction
func (r *GormTransactionRepository) Store(ctx context.Context, tx *entity.Transaction) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	e := toTransactionEntity(tx)
	if err := db.Create(e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && tx.SharedID != "" {
			return repository.ErrDuplicateSharedID
		}
		return entity.StorageError("store", err)
	}

	return nil
}

// UpdateByIDAndOwner applies patch to one of the owner's transactions
func (r *GormTransactionRepository) UpdateByIDAndOwner(ctx context.Context, id, ownerID string, patch entity.TransactionPatch) (*entity.Transaction, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var updated *entity.Transaction
	err = db.Transaction(func(tx *gorm.DB) error {
		// the row stays locked until commit so concurrent patches apply in turn
		var e TransactionEntity
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_id = ?", id, ownerID).First(&e).Error; err != nil {
			return err
		}

		next := toTransactionModel(&e)
		if err := patch.Apply(next); err != nil {
			return err
		}

		next.UpdatedAt = time.Now().UTC()
		row := toTransactionEntity(next)

		// never an upsert: a row deleted under us must stay deleted
		res := tx.Model(&TransactionEntity{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(map[string]interface{}{
				"name":       row.Name,
				"type":       row.Type,
				"amount":     row.Amount,
				"date":       row.Date,
				"remarks":    row.Remarks,
				"shared_id":  row.SharedID,
				"updated_at": row.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		updated = toTransactionModel(row)
		return nil
	})
	if err != nil {
		return nil, translateGormError("update", err)
	}

	return updated, nil
}

// AssignSharedID sets the share token only if the transaction has none yet
func (r *GormTransactionRepository) AssignSharedID(ctx context.Context, id, ownerID, sharedID string) (*entity.Transaction, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var result *entity.Transaction
	err = db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&TransactionEntity{}).
			Where("id = ? AND owner_id = ? AND shared_id IS NULL", id, ownerID).
			Updates(map[string]interface{}{
				"shared_id":  sharedID,
				"updated_at": time.Now().UTC(),
			}).Error
		if err != nil {
			return err
		}

		var e TransactionEntity
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&e).Error; err != nil {
			return err
		}

		result = toTransactionModel(&e)
		return nil
	})
	if err != nil {
		return nil, translateGormError("assign shared id", err)
	}

	return result, nil
}

// DeleteByIDAndOwner removes one of the owner's transactions
func (r *GormTransactionRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var deleted *entity.Transaction
	err = db.Transaction(func(tx *gorm.DB) error {
		var e TransactionEntity
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&e).Error; err != nil {
			return err
		}

		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&TransactionEntity{}).Error; err != nil {
			return err
		}

		deleted = toTransactionModel(&e)
		return nil
	})
	if err != nil {
		return nil, translateGormError("delete", err)
	}

	return deleted, nil
}

// DeleteManyByIDsAndOwner removes the listed transactions that belong to the owner
func (r *GormTransactionRepository) DeleteManyByIDsAndOwner(ctx context.Context, ids []string, ownerID string) ([]*entity.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []*entity.Transaction
	err = db.Transaction(func(tx *gorm.DB) error {
		var entities []*TransactionEntity
		if err := tx.Where("id IN ? AND owner_id = ?", ids, ownerID).Find(&entities).Error; err != nil {
			return err
		}
		if len(entities) == 0 {
			deleted = nil
			return nil
		}

		matched := make([]string, len(entities))
		for i, e := range entities {
			matched[i] = e.ID
		}

		if err := tx.Where("id IN ? AND owner_id = ?", matched, ownerID).Delete(&TransactionEntity{}).Error; err != nil {
			return err
		}

		deleted = toTransactionModels(entities)
		return nil
	})
	if err != nil {
		return nil, translateGormError("delete many", err)
	}

	return deleted, nil
}

// Ping reports whether the database answers
func (r *GormTransactionRepository) Ping(ctx context.Context) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return entity.StorageError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return entity.StorageError("ping", err)
	}
	return nil
}

// Close closes the database if it was opened
func (r *GormTransactionRepository) Close() error {
	return r.conn.Close()
}

func (r *GormTransactionRepository) db(ctx context.Context) (*gorm.DB, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

func translateGormError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repository.ErrDuplicateSharedID
	case errors.Is(err, entity.ErrConflict):
		return err
	default:
		return entity.StorageError(op, err)
	}
}
