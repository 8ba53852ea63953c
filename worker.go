package dbpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WorkerState is the worker's position in its lazy-open/offer/replenish
// state machine. It is tracked purely for observability (the demo's
// status endpoint reports it per worker); the loop itself is driven by its
// current-slot local variable and the worker's replenishSignal mailbox,
// not by switching on this value.
type WorkerState int32

const (
	WorkerFresh WorkerState = iota
	WorkerOffering
	WorkerHeld
	WorkerReplenishing
	WorkerTerminal
)

func (s WorkerState) String() string {
	switch s {
	case WorkerFresh:
		return "fresh"
	case WorkerOffering:
		return "offering"
	case WorkerHeld:
		return "held"
	case WorkerReplenishing:
		return "replenishing"
	case WorkerTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Worker owns exactly one Slot at a time and runs the state machine that
// lazily opens, offers, replenishes, and closes its physical connection.
type Worker struct {
	index int
	pool  *Pool

	state atomic.Int32

	// replenishSignal is a one-slot non-blocking mailbox: a caller that
	// found this worker's last-offered slot dead uses it to tell the
	// worker "replenish", without needing the worker to be inside any
	// particular call to receive it; it's only consumed at the top of
	// the run loop.
	replenishSignal chan struct{}
}

func newWorker(index int, p *Pool) *Worker {
	return &Worker{
		index:           index,
		pool:            p,
		replenishSignal: make(chan struct{}, 1),
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *Worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

// requestReplenish tells this worker a caller found its last-offered slot
// dead and it should discard and rebuild it. It never blocks: if a request
// is already pending the new one is redundant.
func (w *Worker) requestReplenish() {
	select {
	case w.replenishSignal <- struct{}{}:
	default:
	}
}

func (w *Worker) consumeReplenishSignal() bool {
	select {
	case <-w.replenishSignal:
		return true
	default:
		return false
	}
}

// run is the worker's state-machine loop. It returns when ctx is
// cancelled, closing the current physical connection first if one was
// opened — a cancelled worker must never leak a dialed connection.
func (w *Worker) run(ctx context.Context) {
	opts := w.pool.opts
	log := opts.LogFunc

	current := newSlot(w.pool.factory)
	w.setState(WorkerFresh)

	for {
		// Step 1: cancellation.
		if ctx.Err() != nil {
			w.setState(WorkerTerminal)
			current.Close()
			return
		}

		// Step 2: needs-replenish, entered via a request from a caller
		// that found this slot dead (see requestReplenish).
		if w.consumeReplenishSignal() {
			current = w.replenish(ctx, current, "Replenishing connection")
			continue
		}

		// Step 3: synchronize with whoever last held the slot. A fresh
		// slot's permit is already available, so this returns at once;
		// otherwise it blocks until the current holder Releases. This
		// wait deliberately ignores ctx: a caller already holding the
		// slot must be allowed to finish using it even across a
		// concurrent Close — Close itself returns immediately, and this
		// worker only reclaims and closes the physical connection once
		// the caller actually gives the permit back.
		w.setState(WorkerHeld)
		current.Acquire(context.Background()) //nolint:errcheck // ignores ctx by design, see comment above; never returns Cancelled

		if ctx.Err() != nil {
			w.setState(WorkerTerminal)
			current.Close()
			return
		}

		// Step 4: age check.
		maxLifetime := opts.MaxLifetime
		age := time.Duration(current.AgeMillis()) * time.Millisecond
		if current.opened() && age >= maxLifetime {
			current.Release()
			current = w.replenish(ctx, current, "Max lifetime exceeded")
			continue
		}
		remaining := maxLifetime - age

		// Arm the expiry timer on a context derived from ctx, so Offer's
		// own select can race "lifetime expired" against "idle timeout"
		// and "shutdown" uniformly, instead of a separate goroutine per
		// iteration.
		lifetimeCtx, lifetimeCancel := context.WithCancel(ctx)
		timer := time.AfterFunc(remaining, lifetimeCancel)

		// Step 5: release the permit — an offered Slot always has its
		// permit available — and post the offer.
		current.Release()
		w.setState(WorkerOffering)
		log("Offering reusable connection", map[string]any{"worker": w.index})

		outcome := w.pool.rendezvous.Offer(lifetimeCtx, offer{slot: current, index: w.index}, opts.IdleTimeout)
		timer.Stop()
		lifetimeCancel()

		switch {
		case outcome == Transferred:
			// The caller now holds the permit (it called Slot.Acquire
			// itself on receipt, see pool.go Acquire). We touch nothing
			// further until they Release.
			continue

		case ctx.Err() != nil:
			// The outer context, not just the lifetime timer, is done:
			// this is shutdown, not an expiry.
			log("Breaking recursion", map[string]any{"worker": w.index})
			w.setState(WorkerTerminal)
			current.Acquire(context.Background()) //nolint:errcheck // best-effort reclaim before close
			current.Close()
			return

		case outcome == TimedOut:
			// Idle timeout: reclaim the permit, then validate. This is the
			// only place a health check ever happens — never on the hot
			// rendezvous path.
			log("Idle timeout - checking validity", map[string]any{"worker": w.index})
			if _, err := current.Acquire(ctx); err != nil {
				continue
			}
			valid := current.IsValid(opts.validationTimeoutSeconds())
			current.Release()
			if !valid {
				current = w.replenish(ctx, current, "Replenishing connection")
			}
			continue

		default: // Interrupted, and it was the lifetime timer, not shutdown.
			if _, err := current.Acquire(ctx); err != nil {
				continue
			}
			if !current.opened() {
				// Nothing was ever opened, so there is no age to expire;
				// offer the same lazy slot again.
				current.Release()
				continue
			}
			current = w.replenish(ctx, current, "Max lifetime exceeded")
			continue
		}
	}
}

// replenish closes old (if opened) and eagerly opens a replacement,
// retrying with backoff on a failed open rather than busy-spinning.
// Eagerly opening here — rather than leaving the replacement as lazy as a
// brand-new pool's initial slots — is what makes a dial failure observable
// to the worker at all; it does not regress the zero-workload-opens-zero-
// connections property, since replenish only runs after a slot has already
// been used once.
//
// Each failed attempt gets a brand new Slot instead of retrying Phys on
// the same one: Phys memoizes its result (including an error) exactly
// once per Slot, by design, so a retry has to be a new Slot.
func (w *Worker) replenish(ctx context.Context, old *Slot, reason string) *Slot {
	w.setState(WorkerReplenishing)
	opts := w.pool.opts
	log := opts.LogFunc
	log(reason, map[string]any{"worker": w.index})

	old.Close()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // bounded by ctx cancellation, not wall-clock elapsed time

	for {
		if ctx.Err() != nil {
			return newSlot(w.pool.factory)
		}

		var hookErr error
		if opts.PreReconnectHook != nil {
			if hookErr = opts.PreReconnectHook(ctx); hookErr != nil {
				log("Pre-reconnect hook failed", map[string]any{"worker": w.index, "error": hookErr.Error()})
			}
		}

		fresh := newSlot(w.pool.factory)
		if hookErr != nil {
			// A failed hook aborts this attempt; wait out the backoff below.
		} else if _, err := fresh.Phys(ctx); err == nil {
			return fresh
		} else { //nolint:staticcheck // explicit for clarity alongside the retry wait below
			log("Factory failed to open connection, retrying", map[string]any{"worker": w.index, "error": err.Error()})
		}

		wait := bo.NextBackOff()
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
}
