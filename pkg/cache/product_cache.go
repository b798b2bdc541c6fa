package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

const allProductIDsKey = "all_product_ids"

// ErrCacheMiss means the cached catalog is absent or incomplete and the caller
// should fall back to the database.
var ErrCacheMiss = errors.New("product cache miss")

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// ProductCache stores active catalog products as individual JSON keys plus a
// set of their ids.
type ProductCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewProductCache stores products in client, each expiring after ttl.
func NewProductCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *ProductCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductCache{client: client, ttl: ttl, logger: logger}
}

// GetAll returns every cached product, or ErrCacheMiss when any member of the
// id set has expired or cannot be decoded.
func (c *ProductCache) GetAll(ctx context.Context) ([]models.Product, error) {
	productIDs, err := c.client.SMembers(ctx, allProductIDsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get %s from Redis: %w", allProductIDsKey, err)
	}
	if len(productIDs) == 0 {
		return nil, ErrCacheMiss
	}

	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}

	results, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to MGET products from Redis: %w", err)
	}

	products := make([]models.Product, 0, len(results))
	for i, res := range results {
		productJSON, ok := res.(string)
		if !ok {
			c.logger.Debug("product key missing from cache", zap.String("key", keys[i]))
			return nil, ErrCacheMiss
		}
		var product models.Product
		if err := json.Unmarshal([]byte(productJSON), &product); err != nil {
			c.logger.Warn("failed to unmarshal cached product", zap.String("key", keys[i]), zap.Error(err))
			return nil, ErrCacheMiss
		}
		products = append(products, product)
	}
	return products, nil
}

// SetAll replaces the cached catalog with products in one MULTI/EXEC block.
func (c *ProductCache) SetAll(ctx context.Context, products []models.Product) error {
	pipe := c.client.TxPipeline()
	ids := make([]interface{}, 0, len(products))

	for _, p := range products {
		productJSON, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal product %s: %w", p.ID, err)
		}
		pipe.Set(ctx, productKey(p.ID), productJSON, c.ttl)
		ids = append(ids, p.ID)
	}

	pipe.Del(ctx, allProductIDsKey)
	if len(ids) > 0 {
		pipe.SAdd(ctx, allProductIDsKey, ids...)
		if c.ttl > 0 {
			pipe.Expire(ctx, allProductIDsKey, c.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute Redis pipeline for cache population: %w", err)
	}
	c.logger.Debug("product cache populated", zap.Int("count", len(products)))
	return nil
}

// Invalidate drops the given products and the id set so the next listing is
// rebuilt from the database.
func (c *ProductCache) Invalidate(ctx context.Context, productIDs ...string) error {
	keys := make([]string, 0, len(productIDs)+1)
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	keys = append(keys, allProductIDsKey)

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate product cache: %w", err)
	}
	return nil
}
