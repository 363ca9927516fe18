package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	"github.com/damon-houk/paylog/internal/domain/repository"
	"github.com/damon-houk/paylog/internal/infrastructure/logger"
	"github.com/dgraph-io/badger/v3"
)

// Key layout:
//
//	tx:<id>                 JSON encoded transaction
//	owner:<owner>\x00<id>   empty, lists an owner's transactions
//	shared:<token>          transaction id
const (
	txPrefix     = "tx:"
	ownerPrefix  = "owner:"
	sharedPrefix = "shared:"

	maxConflictRetries = 5
)

func txKey(id string) []byte { return []byte(txPrefix + id) }

func ownerScanPrefix(ownerID string) []byte { return []byte(ownerPrefix + ownerID + "\x00") }

func ownerKey(ownerID, id string) []byte { return append(ownerScanPrefix(ownerID), id...) }

func sharedKey(token string) []byte { return []byte(sharedPrefix + token) }

// BadgerOptions configures the document-style store
type BadgerOptions struct {
	Path           string
	InMemory       bool
	ConnectTimeout time.Duration
}

// BadgerTransactionRepository implements the transaction repository interface using BadgerDB
type BadgerTransactionRepository struct {
	conn *Connection[*badger.DB]
}

// NewBadgerTransactionRepository creates a new BadgerDB transaction repository.
// The database is opened on first use.
func NewBadgerTransactionRepository(opts BadgerOptions, log logger.Logger) *BadgerTransactionRepository {
	open := func(ctx context.Context) (*badger.DB, error) {
		return openBadger(opts)
	}
	closeFn := func(db *badger.DB) error {
		return db.Close()
	}

	return &BadgerTransactionRepository{
		conn: NewConnection("badger", opts.ConnectTimeout, open, closeFn, log),
	}
}

func openBadger(opts BadgerOptions) (*badger.DB, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}

	// Disable Badger's default logger
	badgerOpts = badgerOpts.WithLogger(nil)

	return badger.Open(badgerOpts)
}

// FindByOwner lists the owner's transactions, newest created first
func (r *BadgerTransactionRepository) FindByOwner(ctx context.Context, ownerID string) ([]*entity.Transaction, error) {
	var txs []*entity.Transaction

	err := r.view(ctx, "find by owner", func(txn *badger.Txn) error {
		txs = nil
		prefix := ownerScanPrefix(ownerID)

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			tx, err := readTransaction(txn, id)
			if errors.Is(err, repository.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			txs = append(txs, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})

	return txs, nil
}

// FindByIDAndOwner retrieves one of the owner's transactions
func (r *BadgerTransactionRepository) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error) {
	var tx *entity.Transaction

	err := r.view(ctx, "find by id", func(txn *badger.Txn) error {
		var err error
		tx, err = readOwned(txn, id, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

// FindBySharedID retrieves the transaction carrying the share token
func (r *BadgerTransactionRepository) FindBySharedID(ctx context.Context, sharedID string) (*entity.Transaction, error) {
	var tx *entity.Transaction

	err := r.view(ctx, "find by shared id", func(txn *badger.Txn) error {
		item, err := txn.Get(sharedKey(sharedID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return repository.ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		tx, err = readTransaction(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

// Store saves a new transaction
func (r *BadgerTransactionRepository) Store(ctx context.Context, tx *entity.Transaction) error {
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	return r.update(ctx, "store", func(txn *badger.Txn) error {
		_, err := txn.Get(txKey(tx.ID))
		if err == nil {
			return fmt.Errorf("transaction %s already exists", tx.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if tx.SharedID != "" {
			if err := claimSharedID(txn, tx.SharedID, tx.ID); err != nil {
				return err
			}
		}

		if err := writeTransaction(txn, tx); err != nil {
			return err
		}
		return txn.Set(ownerKey(tx.OwnerID, tx.ID), []byte{})
	})
}

// UpdateByIDAndOwner applies patch to one of the owner's transactions
func (r *BadgerTransactionRepository) UpdateByIDAndOwner(ctx context.Context, id, ownerID string, patch entity.TransactionPatch) (*entity.Transaction, error) {
	var updated *entity.Transaction

	err := r.update(ctx, "update", func(txn *badger.Txn) error {
		current, err := readOwned(txn, id, ownerID)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := patch.Apply(next); err != nil {
			return err
		}

		if next.SharedID != current.SharedID {
			if err := claimSharedID(txn, next.SharedID, id); err != nil {
				return err
			}
		}

		next.UpdatedAt = time.Now().UTC()
		if err := writeTransaction(txn, next); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// AssignSharedID sets the share token only if the transaction has none yet
func (r *BadgerTransactionRepository) AssignSharedID(ctx context.Context, id, ownerID, sharedID string) (*entity.Transaction, error) {
	var result *entity.Transaction

	err := r.update(ctx, "assign shared id", func(txn *badger.Txn) error {
		current, err := readOwned(txn, id, ownerID)
		if err != nil {
			return err
		}

		if current.SharedID != "" {
			result = current
			return nil
		}

		if err := claimSharedID(txn, sharedID, id); err != nil {
			return err
		}

		current.SharedID = sharedID
		current.UpdatedAt = time.Now().UTC()
		if err := writeTransaction(txn, current); err != nil {
			return err
		}

		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteByIDAndOwner removes one of the owner's transactions
func (r *BadgerTransactionRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.Transaction, error) {
	var deleted *entity.Transaction

	err := r.update(ctx, "delete", func(txn *badger.Txn) error {
		current, err := readOwned(txn, id, ownerID)
		if err != nil {
			return err
		}

		if err := deleteTransaction(txn, current); err != nil {
			return err
		}

		deleted = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

// DeleteManyByIDsAndOwner removes the listed transactions that belong to the owner
func (r *BadgerTransactionRepository) DeleteManyByIDsAndOwner(ctx context.Context, ids []string, ownerID string) ([]*entity.Transaction, error) {
	var deleted []*entity.Transaction

	err := r.update(ctx, "delete many", func(txn *badger.Txn) error {
		deleted = nil
		seen := make(map[string]struct{}, len(ids))

		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			current, err := readOwned(txn, id, ownerID)
			if errors.Is(err, repository.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			if err := deleteTransaction(txn, current); err != nil {
				return err
			}
			deleted = append(deleted, current)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}

// Ping reports whether the database is open
func (r *BadgerTransactionRepository) Ping(ctx context.Context) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	if db.IsClosed() {
		return entity.StorageError("ping", errors.New("database is closed"))
	}
	return nil
}

// Close closes the database if it was opened
func (r *BadgerTransactionRepository) Close() error {
	return r.conn.Close()
}

func (r *BadgerTransactionRepository) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	return translateBadgerError(op, db.View(fn))
}

// update runs fn in a read-write transaction, retrying when badger reports a
// conflicting concurrent commit
func (r *BadgerTransactionRepository) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = db.Update(fn)
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		return translateBadgerError(op, err)
	}
}

func translateBadgerError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrRecordNotFound),
		errors.Is(err, repository.ErrDuplicateSharedID),
		errors.Is(err, entity.ErrConflict):
		return err
	default:
		return entity.StorageError(op, err)
	}
}

func readTransaction(txn *badger.Txn, id string) (*entity.Transaction, error) {
	item, err := txn.Get(txKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, repository.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	var tx entity.Transaction
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}

	return &tx, nil
}

func readOwned(txn *badger.Txn, id, ownerID string) (*entity.Transaction, error) {
	tx, err := readTransaction(txn, id)
	if err != nil {
		return nil, err
	}
	if tx.OwnerID != ownerID {
		return nil, repository.ErrRecordNotFound
	}
	return tx, nil
}

func writeTransaction(txn *badger.Txn, tx *entity.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return txn.Set(txKey(tx.ID), data)
}

func deleteTransaction(txn *badger.Txn, tx *entity.Transaction) error {
	if err := txn.Delete(txKey(tx.ID)); err != nil {
		return err
	}
	if err := txn.Delete(ownerKey(tx.OwnerID, tx.ID)); err != nil {
		return err
	}
	if tx.SharedID != "" {
		return txn.Delete(sharedKey(tx.SharedID))
	}
	return nil
}

// claimSharedID points token at id, failing if another record already holds it
func claimSharedID(txn *badger.Txn, token, id string) error {
	item, err := txn.Get(sharedKey(token))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return txn.Set(sharedKey(token), []byte(id))
	case err != nil:
		return err
	}

	holder, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if string(holder) != id {
		return repository.ErrDuplicateSharedID
	}
	return nil
}
