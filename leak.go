package dbpool

import (
	"context"
	"sync"
	"time"
)

// leakDetector tracks outstanding acquired Connections and logs (never
// evicts) any one held past LeakDetectionThreshold: a ticker-driven sweep
// over a map of outstanding checkouts, the same shape as a TTL sweeper,
// repurposed to watch for leaked checkouts instead of expiring anything —
// a leaked Connection still belongs to its caller, the detector only
// reports it.
type leakDetector struct {
	threshold time.Duration
	log       LogFunc

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*leakEntry
}

type leakEntry struct {
	started time.Time
	warned  bool
}

func newLeakDetector(threshold time.Duration, log LogFunc) *leakDetector {
	return &leakDetector{
		threshold: threshold,
		log:       log,
		pending:   make(map[uint64]*leakEntry),
	}
}

// track registers conn as outstanding. conn.Close removes it again (via
// leakTracked/leakID, set here) once the caller actually releases it.
func (d *leakDetector) track(conn *Connection) {
	d.mu.Lock()
	id := d.seq
	d.seq++
	d.pending[id] = &leakEntry{started: time.Now()}
	d.mu.Unlock()

	conn.leakTracked = true
	conn.leakID = id
}

func (d *leakDetector) untrack(id uint64) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// run sweeps every sweepInterval until ctx is cancelled, logging any entry
// held longer than threshold exactly once.
func (d *leakDetector) run(ctx context.Context) {
	const sweepInterval = 5 * time.Second
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *leakDetector) sweep() {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, entry := range d.pending {
		if entry.warned {
			continue
		}
		if now.Sub(entry.started) >= d.threshold {
			entry.warned = true
			d.log("Possible connection leak: checked out longer than threshold", map[string]any{
				"held_ms":   now.Sub(entry.started).Milliseconds(),
				"leak_id":   id,
				"threshold": d.threshold.String(),
			})
		}
	}
}
