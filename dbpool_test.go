package dbpool

import (
	"context"
	"errors"
	"sync/atomic"
)

// stubConn is a PhysicalConnection stand-in used across the test suite.
// Every field that can be read concurrently with a worker goroutine is an
// atomic, never a plain field guarded by a forgotten mutex.
type stubConn struct {
	id      int32
	closed  atomic.Bool
	valid   atomic.Bool
	opened  atomic.Bool
	onClose func()
}

func newStubConn(id int32) *stubConn {
	c := &stubConn{id: id}
	c.valid.Store(true)
	c.opened.Store(true)
	return c
}

func (c *stubConn) IsClosed() bool { return c.closed.Load() }

func (c *stubConn) IsValid(timeoutSeconds int) bool {
	return !c.closed.Load() && c.valid.Load()
}

func (c *stubConn) Close() error {
	c.closed.Store(true)
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

// stubFactory hands out sequentially-numbered stubConns and can be told
// to fail the next N opens, to simulate transient dial failures.
type stubFactory struct {
	nextID    atomic.Int32
	opens     atomic.Int32
	failNext  atomic.Int32
	onOpen    func(*stubConn)
	failError error
}

func (f *stubFactory) Open(ctx context.Context) (PhysicalConnection, error) {
	f.opens.Add(1)
	if f.failNext.Load() > 0 {
		f.failNext.Add(-1)
		err := f.failError
		if err == nil {
			err = errors.New("stub: simulated dial failure")
		}
		return nil, err
	}
	c := newStubConn(f.nextID.Add(1))
	if f.onOpen != nil {
		f.onOpen(c)
	}
	return c, nil
}

func (f *stubFactory) setFailNext(n int32) {
	f.failNext.Store(n)
}

func (f *stubFactory) openCount() int32 {
	return f.opens.Load()
}
