package dbpool

import "context"

// Connection is what Acquire hands back to a caller. It behaves like a
// PhysicalConnection, with Close reinterpreted: for a pooled connection,
// Close releases the permit back to its worker without touching the
// physical connection; for an overflow connection (opened directly
// because no reusable Slot arrived in time), Close actually closes the
// physical connection, since nothing else owns it.
type Connection struct {
	pool *Pool

	// Exactly one of (slot set) or (overflow set) is true for any
	// Connection value.
	slot      *Slot
	workerIdx int

	overflow PhysicalConnection

	leakTracked bool
	leakID      uint64
}

func pooledConnection(pool *Pool, slot *Slot, workerIdx int) *Connection {
	return &Connection{pool: pool, slot: slot, workerIdx: workerIdx}
}

func overflowConnection(pool *Pool, phys PhysicalConnection) *Connection {
	return &Connection{pool: pool, overflow: phys}
}

func (c *Connection) isOverflow() bool {
	return c.overflow != nil
}

// Unwrap materializes (if necessary) and returns the real physical
// connection, for driver-specific calls the pool itself never makes.
func (c *Connection) Unwrap(ctx context.Context) (PhysicalConnection, error) {
	if c.isOverflow() {
		return c.overflow, nil
	}
	return c.slot.Unwrap(ctx)
}

// IsWrapperFor reports whether this Connection wraps a real
// PhysicalConnection capability — always true, since a Connection never
// exists without one.
func (c *Connection) IsWrapperFor() bool {
	return true
}

// IsClosed passes through to the wrapped physical connection. A pooled
// connection whose physical has never been materialized is vacuously not
// closed.
func (c *Connection) IsClosed() bool {
	if c.isOverflow() {
		return c.overflow.IsClosed()
	}
	return c.slot.IsClosed()
}

// IsValid passes through to the wrapped physical connection.
func (c *Connection) IsValid(timeoutSeconds int) bool {
	if c.isOverflow() {
		return c.overflow.IsValid(timeoutSeconds)
	}
	return c.slot.IsValid(timeoutSeconds)
}

// Close releases a pooled Connection's Slot permit back to the owning
// worker; an overflow Connection is closed for real, since it was never
// handed to any worker and nothing else will ever close it.
func (c *Connection) Close() error {
	if c.leakTracked {
		c.pool.leak.untrack(c.leakID)
	}
	if c.isOverflow() {
		return c.overflow.Close()
	}
	c.slot.Release()
	return nil
}
