package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/paylog/internal/domain/entity"
	goredis "github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis-backed cache
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisSharedTransactionCache caches shared transactions in redis so every
// instance of the service sees the same entries
type RedisSharedTransactionCache struct {
	conn       goredis.UniversalClient
	prefix     string
	expiration time.Duration
}

// NewRedisClient creates a universal client for opts. The connection is
// established lazily by the first command.
func NewRedisClient(opts RedisOptions) goredis.UniversalClient {
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{opts.Addr},
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// NewRedisSharedTransactionCache wraps an existing redis client
func NewRedisSharedTransactionCache(conn goredis.UniversalClient, prefix string, expiration time.Duration) *RedisSharedTransactionCache {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &RedisSharedTransactionCache{
		conn:       conn,
		prefix:     prefix,
		expiration: expiration,
	}
}

func (c *RedisSharedTransactionCache) key(sharedID string) string {
	return c.prefix + "shared:" + sharedID
}

// Get retrieves a shared transaction, or nil when the token is not cached
func (c *RedisSharedTransactionCache) Get(ctx context.Context, sharedID string) (*entity.Transaction, error) {
	data, err := c.conn.Get(ctx, c.key(sharedID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var tx entity.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode cached transaction: %w", err)
	}

	return &tx, nil
}

// Put stores the transaction under its token with the configured expiration
func (c *RedisSharedTransactionCache) Put(ctx context.Context, tx *entity.Transaction) error {
	if tx == nil || tx.SharedID == "" {
		return nil
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	if err := c.conn.Set(ctx, c.key(tx.SharedID), data, c.expiration).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Evict removes the entry for the token
func (c *RedisSharedTransactionCache) Evict(ctx context.Context, sharedID string) error {
	if err := c.conn.Del(ctx, c.key(sharedID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks that redis answers
func (c *RedisSharedTransactionCache) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx).Err()
}

// Close closes the underlying client
func (c *RedisSharedTransactionCache) Close() error {
	return c.conn.Close()
}
