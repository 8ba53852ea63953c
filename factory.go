package dbpool

import "context"

// PhysicalConnection is the real transport to the database server, held by
// a driver. The pool never interprets its driver-specific surface; it only
// calls the three methods below to manage the connection's lifecycle.
type PhysicalConnection interface {
	// IsClosed reports whether the connection has already been closed.
	IsClosed() bool
	// IsValid reports whether the connection is still usable. The timeout
	// is expressed in seconds, per the driver convention this pool targets
	// (see Options.ValidationTimeout).
	IsValid(timeoutSeconds int) bool
	// Close releases the underlying resource. It is called exactly once
	// per physical connection successfully opened.
	Close() error
}

// PhysicalFactory dials the database and produces physical connections. It
// is the pool's only collaborator with the driver layer; statement caching,
// transactions, and dialect-specific SQL are never the pool's concern.
type PhysicalFactory interface {
	Open(ctx context.Context) (PhysicalConnection, error)
}

// FactoryFunc adapts a plain function to a PhysicalFactory.
type FactoryFunc func(ctx context.Context) (PhysicalConnection, error)

// Open calls f.
func (f FactoryFunc) Open(ctx context.Context) (PhysicalConnection, error) {
	return f(ctx)
}
