package db

import (
	"fmt"
	"time"

	"github.com/damon-houk/paylog/internal/domain/repository"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
)

// Storage backends
const (
	BackendBadger = "badger"
	BackendSQL    = "sql"
)

// StoreConfig selects and configures the transaction store
type StoreConfig struct {
	Backend        string
	ConnectTimeout time.Duration
	Badger         BadgerOptions
	SQL            SQLOptions
}

// OpenTransactionRepository builds the repository for the configured backend.
// Nothing is opened until the repository is first used.
func OpenTransactionRepository(cfg StoreConfig, log logger.Logger) (repository.TransactionRepository, error) {
	switch cfg.Backend {
	case BackendBadger, "":
		opts := cfg.Badger
		if opts.ConnectTimeout == 0 {
			opts.ConnectTimeout = cfg.ConnectTimeout
		}
		return NewBadgerTransactionRepository(opts, log), nil
	case BackendSQL:
		opts := cfg.SQL
		if opts.ConnectTimeout == 0 {
			opts.ConnectTimeout = cfg.ConnectTimeout
		}
		if opts.Driver != DriverSQLite && opts.Driver != DriverPostgres {
			return nil, fmt.Errorf("unsupported sql driver %q", opts.Driver)
		}
		return NewGormTransactionRepository(opts, log), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
