package dbpool

import "errors"

// ErrPoolClosed is returned by Acquire once Close has been called.
var ErrPoolClosed = errors.New("dbpool: pool is closed")

// ErrAcquireTimeout is returned by Acquire when connectionTimeout elapses
// and overflow connections are disabled (ThrowOnConnectionTimeout is true).
var ErrAcquireTimeout = errors.New("dbpool: timed out waiting for a connection")

// ErrFactoryFailure wraps an error returned by PhysicalFactory.Open. It
// only ever reaches a caller through the overflow path — workers that hit
// it log and loop with a fresh slot instead of surfacing it synchronously.
var ErrFactoryFailure = errors.New("dbpool: factory failed to open a physical connection")

// ErrInvalidConnection is returned by Acquire when Options.MaxCheckoutRetries
// is positive and that many consecutive dead slots were observed on
// checkout. With the default of 0 (unbounded) Acquire never returns this;
// it keeps retrying.
var ErrInvalidConnection = errors.New("dbpool: exceeded checkout retries on invalid connections")

// ErrNilFactory is returned by New when given a nil PhysicalFactory.
var ErrNilFactory = errors.New("dbpool: factory must not be nil")
