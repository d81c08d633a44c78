package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/selivandex/whale-monitor/internal/adapters/config"
	"github.com/selivandex/whale-monitor/pkg/logger"
)

// Client wraps a RedLock manager for distributed job locking plus a
// standard Redis client for the shared label cache tier
type Client struct {
	lockManager *redlock.RedLock
	cache       *redis.Client
	redisAddrs  []string
}

// New creates the Redis client with RedLock support
func New(cfg *config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	// A production cluster would list several addresses here; a single
	// instance works but tolerates fewer failures
	redisAddrs := []string{addr}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lockManager, err := redlock.NewRedLock(ctx, redisAddrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	cacheClient := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := cacheClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
	}

	logger.Info("redis client initialized",
		zap.String("address", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
	)

	return &Client{
		lockManager: lockManager,
		redisAddrs:  redisAddrs,
		cache:       cacheClient,
	}, nil
}

// Cache returns the underlying client for the label cache tier
func (c *Client) Cache() *redis.Client {
	return c.cache
}

// NewJobLock creates a distributed lock for a named maintenance job
func (c *Client) NewJobLock(jobName string) *JobLock {
	return NewJobLock(c.lockManager, jobName)
}

// Close closes redis connections
func (c *Client) Close() error {
	if c.cache != nil {
		logger.Info("closing redis cache client")
		if err := c.cache.Close(); err != nil {
			return fmt.Errorf("failed to close redis cache: %w", err)
		}
	}
	return nil
}

// Health checks redis by cycling a test lock
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	testLock := "health:check"
	expiry, err := c.lockManager.Lock(ctx, testLock, 1*time.Second)
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	if expiry <= 0 {
		return fmt.Errorf("redis health check failed: invalid expiry")
	}
	_ = c.lockManager.UnLock(ctx, testLock)
	return nil
}
