// Package redis provides the read-through TTL cache for derived market
// data. Prices and pool snapshots each get a fixed TTL; mutations call
// the matching Invalidate so staleness is bounded by the TTL window.
// The ledger itself is never cached.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qverse/engine/internal/core/domain"
	"github.com/qverse/engine/internal/metrics"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// TTLs per cache category.
const (
	PriceTTL = 5 * time.Second
	PoolTTL  = 30 * time.Second
)

// Cache wraps Redis operations for derived market data.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a new Redis-backed cache.
func NewCache(cfg Config) (*Cache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Health checks the Redis connection.
func (c *Cache) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func priceKey(token string) string {
	return fmt.Sprintf("price:%s", token)
}

func poolKey(tokenA, tokenB string) string {
	return fmt.Sprintf("pool:%s", domain.PairKey(tokenA, tokenB))
}

// GetPrice returns a cached derived price, if fresh.
func (c *Cache) GetPrice(ctx context.Context, token string) (float64, bool) {
	val, err := c.rdb.Get(ctx, priceKey(token)).Result()
	if err != nil {
		metrics.CacheRequests.WithLabelValues("price", "miss").Inc()
		return 0, false
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	metrics.CacheRequests.WithLabelValues("price", "hit").Inc()
	return price, true
}

// SetPrice caches a derived price for PriceTTL.
func (c *Cache) SetPrice(ctx context.Context, token string, price float64) error {
	return c.rdb.Set(ctx, priceKey(token), strconv.FormatFloat(price, 'f', -1, 64), PriceTTL).Err()
}

// GetPool returns a cached pool snapshot, if fresh.
func (c *Cache) GetPool(ctx context.Context, tokenA, tokenB string) (*domain.LiquidityPool, bool) {
	val, err := c.rdb.Get(ctx, poolKey(tokenA, tokenB)).Bytes()
	if err != nil {
		metrics.CacheRequests.WithLabelValues("pool", "miss").Inc()
		return nil, false
	}
	var pool domain.LiquidityPool
	if err := json.Unmarshal(val, &pool); err != nil {
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues("pool", "hit").Inc()
	return &pool, true
}

// SetPool caches a pool snapshot for PoolTTL.
func (c *Cache) SetPool(ctx context.Context, pool *domain.LiquidityPool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, poolKey(pool.TokenA, pool.TokenB), data, PoolTTL).Err()
}

// InvalidatePool drops a pool snapshot after a reserve mutation.
func (c *Cache) InvalidatePool(ctx context.Context, tokenA, tokenB string) error {
	return c.rdb.Del(ctx, poolKey(tokenA, tokenB)).Err()
}
