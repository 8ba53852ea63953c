package dbpool

import (
	"context"
	"time"
)

// Default option values.
const (
	DefaultPoolSize                 = 10
	DefaultConnectionTimeout        = 30 * time.Second
	DefaultIdleTimeout              = 10 * time.Minute
	DefaultMaxLifetime              = 30 * time.Minute
	DefaultValidationTimeout        = 5 * time.Second
	DefaultThrowOnConnectionTimeout = false
)

// Options configures a Pool. The zero value is not ready to use; build one
// with NewOptions or fill in a literal and call Normalize (New does this
// for you).
type Options struct {
	// PoolSize is the number of workers, each owning at most one reusable
	// connection. Zero is legal: every Acquire goes through the overflow
	// path.
	PoolSize int

	// ConnectionTimeout bounds how long Acquire waits for a reusable
	// connection before falling back to overflow (or failing, see
	// ThrowOnConnectionTimeout). Zero or negative disables the timeout:
	// Acquire waits forever.
	ConnectionTimeout time.Duration

	// IdleTimeout is how long a worker will offer its slot on the
	// rendezvous before treating the wait as "idle long enough to
	// validate".
	IdleTimeout time.Duration

	// MaxLifetime is the age at which a slot is replenished rather than
	// offered again. Measured from the first materialization of the
	// physical connection, not from the Slot's construction.
	MaxLifetime time.Duration

	// ValidationTimeout is passed to PhysicalConnection.IsValid, converted
	// to whole seconds (sub-second values round up to 1 rather than
	// truncating to 0, so "0" never silently means "driver default").
	ValidationTimeout time.Duration

	// ThrowOnConnectionTimeout selects Acquire's behavior when
	// ConnectionTimeout elapses: true surfaces ErrAcquireTimeout, false
	// (the default) opens a non-reusable overflow connection instead.
	ThrowOnConnectionTimeout bool

	// SkipValidateOnCheckout selects the checkout validity check: the
	// default, false, calls IsValid(ValidationTimeout); true calls the
	// cheaper IsClosed instead. Named so the zero value is the safer,
	// default behavior rather than an easy-to-miss opt-in.
	SkipValidateOnCheckout bool

	// MaxCheckoutRetries bounds the Acquire retry loop on the dead-slot
	// path. Zero means unbounded.
	MaxCheckoutRetries int

	// LeakDetectionThreshold, if positive, enables the background leak
	// detector: any Slot held longer than this duration without being
	// released is logged once as a possible leak. Zero disables it.
	LeakDetectionThreshold time.Duration

	// PreReconnectHook, if set, is called by a Worker immediately before
	// a replenishing factory.Open. A non-nil error aborts that attempt
	// the same way a factory failure would (logged, retried with
	// backoff).
	PreReconnectHook func(ctx context.Context) error

	// LogFunc is the pool's diagnostic sink. Nil means no-op.
	LogFunc LogFunc
}

// NewOptions returns an Options literal with every field set to its
// documented default, including PoolSize (Normalize deliberately leaves a
// bare zero PoolSize alone; start from NewOptions if you want the default
// worker count instead).
func NewOptions() Options {
	return Options{
		PoolSize:                 DefaultPoolSize,
		ConnectionTimeout:        DefaultConnectionTimeout,
		IdleTimeout:              DefaultIdleTimeout,
		MaxLifetime:              DefaultMaxLifetime,
		ValidationTimeout:        DefaultValidationTimeout,
		ThrowOnConnectionTimeout: DefaultThrowOnConnectionTimeout,
		SkipValidateOnCheckout:   false,
		LogFunc:                  noopLog,
	}
}

// Normalize fills in zero-valued fields with their defaults and returns the
// result. PoolSize and ConnectionTimeout are exceptions: zero is a
// meaningful value for both and is kept. It does not mutate the receiver.
func (o Options) Normalize() Options {
	if o.PoolSize < 0 {
		o.PoolSize = 0
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.MaxLifetime <= 0 {
		o.MaxLifetime = DefaultMaxLifetime
	}
	if o.ValidationTimeout <= 0 {
		o.ValidationTimeout = DefaultValidationTimeout
	}
	if o.LogFunc == nil {
		o.LogFunc = noopLog
	}
	return o
}

// validationTimeoutSeconds converts ValidationTimeout to the whole-second
// granularity PhysicalConnection.IsValid expects, rounding sub-second
// values up to 1 instead of truncating to 0 (a sub-second ValidationTimeout
// would otherwise silently become "use the driver's own default").
func (o Options) validationTimeoutSeconds() int {
	ms := o.ValidationTimeout.Milliseconds()
	if ms <= 0 {
		return 0
	}
	secs := ms / 1000
	if ms%1000 != 0 {
		secs++
	}
	if secs == 0 {
		secs = 1
	}
	return int(secs)
}
