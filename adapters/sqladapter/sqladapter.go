// Package sqladapter adapts database/sql to dbpool.PhysicalFactory, for
// callers who want dbpool's worker/rendezvous reuse policy layered on top
// of a single pinned *sql.Conn rather than database/sql's own pool.
package sqladapter

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/relaysql/dbpool"
)

// Factory dials driverName/dsn and pins one *sql.Conn per Open call.
// database/sql's own pooling is bypassed by leaving the *sql.DB's open
// connection limit unbounded and pinning one *sql.Conn per Open, so
// dbpool's Worker, not database/sql, owns reuse policy.
type Factory struct {
	db *sql.DB
}

// NewFactory opens db (validating the DSN with a Ping) and configures it
// to hand out exactly one underlying connection per pinned *sql.Conn.
func NewFactory(ctx context.Context, driverName, dsn string) (*Factory, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(0) // unbounded: each Factory.Open call pins its own conn
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

// Close shuts down the underlying *sql.DB. Call once, after every Worker
// owning a connection from this factory has stopped.
func (f *Factory) Close() error {
	return f.db.Close()
}

// Connection wraps a single pinned *sql.Conn as a dbpool.PhysicalConnection.
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
	ctx, cancel := contextWithOptionalTimeout(timeoutSeconds)
	defer cancel()
	return c.conn.PingContext(ctx) == nil
}

func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func contextWithOptionalTimeout(timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
}
