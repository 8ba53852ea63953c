// Package redisadapter adapts github.com/redis/go-redis/v9 to
// dbpool.PhysicalFactory. go-redis ships its own internal connection pool;
// this adapter deliberately pins it to a single connection per client
// (PoolSize: 1) so dbpool's Worker, not go-redis, is what decides reuse,
// lifetime, and validation policy.
package redisadapter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaysql/dbpool"
)

// Factory dials a Redis server and hands out one dedicated *redis.Conn
// per Open call.
type Factory struct {
	opts *redis.Options
}

// NewFactory builds a Factory from go-redis options. PoolSize is forced
// to 1 regardless of what's passed in.
func NewFactory(opts *redis.Options) *Factory {
	cp := *opts
	cp.PoolSize = 1
	return &Factory{opts: &cp}
}

// Open implements dbpool.PhysicalFactory.
func (f *Factory) Open(ctx context.Context) (dbpool.PhysicalConnection, error) {
	client := redis.NewClient(f.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Connection{client: client, conn: client.Conn()}, nil
}

// Connection wraps one go-redis *redis.Client pinned to PoolSize 1.
type Connection struct {
	client *redis.Client
	conn   *redis.Conn
	closed bool
}

// Conn returns the dedicated *redis.Conn for driver-specific calls.
func (c *Connection) Conn() *redis.Conn {
	return c.conn
}

func (c *Connection) IsClosed() bool {
	return c.closed
}

func (c *Connection) IsValid(timeoutSeconds int) bool {
	if c.closed {
		return false
	}
	ctx, cancel := withOptionalTimeout(timeoutSeconds)
	defer cancel()
	return c.conn.Ping(ctx).Err() == nil
}

func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

func withOptionalTimeout(timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
}
