package dbpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ColdPoolLazyOpen(t *testing.T) {
	factory := &stubFactory{}
	p := runPool(t, factory, Options{PoolSize: 3})

	for i := 0; i < 10; i++ {
		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		_, err = conn.Unwrap(context.Background())
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	}

	assert.LessOrEqual(t, factory.openCount(), int32(3), "factory should open at most one connection per worker")
}

func TestPool_ConcurrentLoad(t *testing.T) {
	factory := &stubFactory{}
	p := runPool(t, factory, Options{PoolSize: 5})

	const callers = 50
	const cycles = 5

	var wg sync.WaitGroup
	errCh := make(chan error, callers*cycles)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := 0; c < cycles; c++ {
				conn, err := p.Acquire(context.Background())
				if err != nil {
					errCh <- err
					continue
				}
				if _, err := conn.Unwrap(context.Background()); err != nil {
					errCh <- err
				}
				time.Sleep(time.Millisecond)
				if err := conn.Close(); err != nil {
					errCh <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPool_DeadSlotOnCheckout(t *testing.T) {
	factory := &stubFactory{}
	p := runPool(t, factory, Options{
		PoolSize:               1,
		IdleTimeout:            5 * time.Second,
		MaxLifetime:            10 * time.Second,
		ConnectionTimeout:      2 * time.Second,
		SkipValidateOnCheckout: true, // exercise the IsClosed() branch directly
	})

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	phys, err := conn.Unwrap(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	phys.(*stubConn).closed.Store(true)

	conn2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	phys2, err := conn2.Unwrap(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, phys, phys2, "a closed slot must never be handed back out")
	assert.False(t, conn2.isOverflow(), "the worker must replenish and offer a fresh pooled slot, not fall through to overflow")
	require.NoError(t, conn2.Close())
}

func TestPool_OverflowPath(t *testing.T) {
	factory := &stubFactory{}
	p := runPool(t, factory, Options{
		PoolSize:                 1,
		ConnectionTimeout:        40 * time.Millisecond,
		ThrowOnConnectionTimeout: false,
	})

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	overflow, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, overflow.isOverflow())

	phys, err := overflow.Unwrap(context.Background())
	require.NoError(t, err)
	require.NoError(t, overflow.Close())
	assert.True(t, phys.IsClosed(), "closing an overflow connection actually closes the physical")

	require.NoError(t, held.Close())
}

func TestPool_ThrowOnConnectionTimeout(t *testing.T) {
	factory := &stubFactory{}
	p := runPool(t, factory, Options{
		PoolSize:                 1,
		ConnectionTimeout:        30 * time.Millisecond,
		ThrowOnConnectionTimeout: true,
	})

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrAcquireTimeout)

	require.NoError(t, held.Close())
}

func TestPool_CloseDuringUse(t *testing.T) {
	factory := &stubFactory{}
	p, err := New(factory, Options{PoolSize: 1})
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())

	require.NoError(t, conn.Close(), "Release after Close must still succeed")

	p.Wait()

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	p, err := New(&stubFactory{}, Options{PoolSize: 1})
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	p.Wait()
}

func TestPool_ZeroPoolSizeGoesThroughOverflow(t *testing.T) {
	factory := &stubFactory{}
	p := runPool(t, factory, Options{PoolSize: 0, ConnectionTimeout: 20 * time.Millisecond})

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, conn.isOverflow())
	require.NoError(t, conn.Close())
}

func TestPool_NilFactoryRejected(t *testing.T) {
	_, err := New(nil, Options{PoolSize: 1})
	assert.ErrorIs(t, err, ErrNilFactory)
}

func TestPool_MaxCheckoutRetriesBounds(t *testing.T) {
	factory := &stubFactory{}
	p := runPool(t, factory, Options{
		PoolSize:               1,
		MaxCheckoutRetries:     1,
		SkipValidateOnCheckout: true,
	})

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	phys, err := conn.Unwrap(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	phys.(*stubConn).closed.Store(true)

	// The worker needs a moment to replenish after being interrupted;
	// poll Acquire until it either succeeds (fresh slot in place) or the
	// retry cap surfaces ErrInvalidConnection.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c, err := p.Acquire(context.Background())
		if err == nil {
			require.NoError(t, c.Close())
			return
		}
		if err == ErrInvalidConnection {
			return
		}
	}
	t.Fatal("Acquire neither recovered nor surfaced ErrInvalidConnection")
}
