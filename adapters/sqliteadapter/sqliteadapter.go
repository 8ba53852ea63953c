// Package sqliteadapter adapts modernc.org/sqlite to dbpool.PhysicalFactory.
// Unlike the MySQL/Postgres case, SQLite connections are cheap file
// handles rather than network sockets, but the same Worker reuse policy
// still applies: a pinned *sql.Conn per Slot, validated with a no-op
// query instead of a network ping.
package sqliteadapter

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/relaysql/dbpool"
)

// Factory opens a modernc.org/sqlite database at path and pins one
// *sql.Conn per Open call.
type Factory struct {
	db *sql.DB
}

// NewFactory opens the sqlite database at path.
func NewFactory(ctx context.Context, path string) (*Factory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(0)
	return &Factory{db: db}, nil
}

// Open implements dbpool.PhysicalFactory.
func (f *Factory) Open(ctx context.Context) (dbpool.PhysicalConnection, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &Connection{conn: conn}, nil
}

// Close shuts down the underlying *sql.DB.
func (f *Factory) Close() error {
	return f.db.Close()
}

// Connection wraps a single pinned sqlite *sql.Conn.
type Connection struct {
	conn   *sql.Conn
	closed bool
}

// Conn returns the underlying *sql.Conn for driver-specific calls.
func (c *Connection) Conn() *sql.Conn {
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
	return c.conn.QueryRowContext(ctx, "SELECT 1").Err() == nil
}

func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func withOptionalTimeout(timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
}
