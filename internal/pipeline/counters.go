package pipeline

import "sync/atomic"

// Counters are the per-stage tallies reported by stats and health
type Counters struct {
	Received   atomic.Int64
	Duplicates atomic.Int64
	Enriched   atomic.Int64
	Classified atomic.Int64
	Skipped    atomic.Int64
	Suppressed atomic.Int64
	Stored     atomic.Int64
	Dropped    atomic.Int64
	Errors     atomic.Int64
}

// Snapshot returns the current counter values
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"received":   c.Received.Load(),
		"duplicates": c.Duplicates.Load(),
		"enriched":   c.Enriched.Load(),
		"classified": c.Classified.Load(),
		"skipped":    c.Skipped.Load(),
		"suppressed": c.Suppressed.Load(),
		"stored":     c.Stored.Load(),
		"dropped":    c.Dropped.Load(),
		"errors":     c.Errors.Load(),
	}
}
