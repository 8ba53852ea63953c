// Package dbpool implements a lightweight database-connection pool.
//
// Instead of guarding a slice of connections with a mutex, the pool runs a
// fixed number of worker goroutines, each owning at most one reusable
// connection at a time. Workers and callers meet through a [Rendezvous]: a
// worker offers its connection, a caller takes it, uses it, and releases it
// back. Physical connections are opened lazily, replenished once they
// exceed their maximum lifetime, and validated only when they have sat idle
// long enough to be worth checking.
package dbpool
