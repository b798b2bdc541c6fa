package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/pkg/config"
)

// RedisClient holds the Redis client connection
type RedisClient struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisClient connects to the Redis instance in cfg and pings it.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*RedisClient, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR environment variable not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Addr))

	return &RedisClient{client: client, logger: logger}, nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() {
	if c.client != nil {
		c.client.Close()
		c.logger.Info("Redis connection closed")
	}
}

// GetClient returns the underlying *redis.Client instance
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}
