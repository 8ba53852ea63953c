package dbpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Pool is the user-facing facade: it spawns a fixed number of Workers,
// multiplexes Acquire onto the Rendezvous they offer through, and handles
// the overflow and shutdown paths. This Pool never scales up or down once
// started, so Acquire's wait is a straight timed-vs-untimed select on the
// rendezvous, with no "maybe spawn another worker" branch.
type Pool struct {
	factory    PhysicalFactory
	opts       Options
	workers    []*Worker
	rendezvous *Rendezvous

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	leak *leakDetector
}

// New constructs a Pool, normalizes opts, and starts PoolSize worker
// goroutines. It never opens a physical connection itself — that only
// happens lazily, the first time some caller actually uses a Slot.
func New(factory PhysicalFactory, opts Options) (*Pool, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	opts = opts.Normalize()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		factory:    factory,
		opts:       opts,
		rendezvous: newRendezvous(),
		cancel:     cancel,
	}

	p.workers = make([]*Worker, opts.PoolSize)
	for i := 0; i < opts.PoolSize; i++ {
		w := newWorker(i, p)
		p.workers[i] = w
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run(ctx)
		}(w)
	}

	if opts.LeakDetectionThreshold > 0 {
		p.leak = newLeakDetector(opts.LeakDetectionThreshold, opts.LogFunc)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.leak.run(ctx)
		}()
	}

	return p, nil
}

// Acquire blocks per ConnectionTimeout policy and returns a Connection:
// the fast path hands back a reusable Slot taken off the rendezvous,
// falling back to a non-reusable overflow connection on timeout, and
// looping (bounded by MaxCheckoutRetries) if a checked-out Slot turns out
// to be dead.
func (p *Pool) Acquire(ctx context.Context) (*Connection, error) {
	attempts := 0
	for {
		if p.closed.Load() {
			return nil, ErrPoolClosed
		}

		item, outcome := p.rendezvous.Take(ctx, p.opts.ConnectionTimeout)

		switch outcome {
		case Transferred:
			slot, idx := item.slot, item.index

			// Claim the permit the offering worker released before
			// posting the offer: until we do, the worker's next loop
			// iteration would see the permit already free and race ahead
			// instead of waiting for our eventual Release.
			if _, err := slot.Acquire(ctx); err != nil {
				return nil, err
			}

			var valid bool
			if !p.opts.SkipValidateOnCheckout {
				valid = slot.IsValid(p.opts.validationTimeoutSeconds())
			} else {
				valid = !slot.IsClosed()
			}
			if !valid {
				p.opts.LogFunc("Got a closed/invalid connection - retrying", map[string]any{"worker": idx})
				// We never close this Slot ourselves; the owning worker's
				// replenish path closes the stale physical. But we do give
				// back the permit we just took above before telling the
				// worker to replenish: the worker is blocked waiting on
				// exactly that permit (its step-3 resync wait), and it can
				// only notice the replenish signal on its next loop pass.
				// Releasing first, then signalling, is what lets it get
				// there.
				slot.Release()
				p.workers[idx].requestReplenish()

				attempts++
				if p.opts.MaxCheckoutRetries > 0 && attempts >= p.opts.MaxCheckoutRetries {
					return nil, ErrInvalidConnection
				}
				continue
			}

			conn := pooledConnection(p, slot, idx)
			if p.leak != nil {
				p.leak.track(conn)
			}
			return conn, nil

		case TimedOut:
			if p.opts.ThrowOnConnectionTimeout {
				return nil, ErrAcquireTimeout
			}
			p.opts.LogFunc("Creating non-reusable connection (slow path)", nil)
			phys, err := p.factory.Open(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFactoryFailure, err)
			}
			return overflowConnection(p, phys), nil

		case Interrupted:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, ErrPoolClosed

		default:
			// Unreachable: Take only ever returns one of the three
			// outcomes above.
			return nil, ErrPoolClosed
		}
	}
}

// Close marks the pool closed and cancels every worker. It is idempotent
// and returns immediately: in-flight callers already holding a Connection
// finish normally, and the owning worker closes the physical connection
// once they Release.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	return nil
}

// WorkerStates returns the current WorkerState of every worker, in index
// order. Observability only, for the demo's /status endpoint; nothing in
// the pool itself depends on it.
func (p *Pool) WorkerStates() []WorkerState {
	states := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.State()
	}
	return states
}

// Wait blocks until every worker goroutine (and the leak detector, if
// enabled) has exited. Provided for tests and graceful-shutdown callers
// that want to know every physical connection has actually been closed,
// not just that cancellation was requested.
func (p *Pool) Wait() {
	p.wg.Wait()
}
