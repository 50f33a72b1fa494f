package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "ledger:generation"

// LedgerCache stores rendered ledger responses. Invalidate drops every entry at once.
//
// Key binds a ledger key to the current generation. Resolve it once before
// loading data and pass the result to both Get and Set: a report built while a
// write invalidated the cache is then stored under a dead generation.
type LedgerCache interface {
	Key(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context) error
}

// LedgerKey identifies one customer ledger for one period.
func LedgerKey(customerID uint, month, year string) string {
	return fmt.Sprintf("customer:%d:month:%s:year:%s", customerID, month, year)
}

type RedisLedgerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func NewRedisLedgerCache(rdb *redis.Client, ttl time.Duration) *RedisLedgerCache {
	return &RedisLedgerCache{rdb: rdb, ttl: ttl}
}

// generation is bumped on every write so stale entries are never read again;
// they expire on their own TTL.
func (c *RedisLedgerCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisLedgerCache) Key(ctx context.Context, key string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ledger:%d:%s", gen, key), nil
}

func (c *RedisLedgerCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisLedgerCache) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func (c *RedisLedgerCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}

// Noop is used when the ledger cache is disabled.
type Noop struct{}

func (Noop) Key(_ context.Context, key string) (string, error) { return key, nil }
func (Noop) Get(context.Context, string, any) (bool, error)    { return false, nil }
func (Noop) Set(context.Context, string, any) error            { return nil }
func (Noop) Invalidate(context.Context) error                  { return nil }
