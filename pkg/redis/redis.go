// Package redis connects the gateway to the Redis instance that carries
// the monitoring event stream. The connection is optional; when Redis is
// unreachable the gateway degrades to a no-op sink rather than refusing
// to start.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mocknhire/interview-gateway/pkg/events"
)

const pingTimeout = 3 * time.Second

// Client is the gateway's handle on the monitoring Redis. It exists to
// mint event sinks; nothing else in the gateway talks to Redis directly.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient dials Redis and verifies connectivity with a bounded ping, so
// a misconfigured address surfaces at startup instead of on the first
// published event.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("monitoring redis connected", zap.String("addr", addr), zap.Int("db", db))
	return &Client{rdb: rdb, logger: logger}, nil
}

// Sink returns an event sink publishing on the monitoring channel.
func (c *Client) Sink() *events.RedisSink {
	return events.NewRedisSink(c.rdb, c.logger)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
