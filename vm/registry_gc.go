package vm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Reaper: periodic removal of finished units
// ---------------------------------------------------------------------------

// DefaultReapInterval is the default sweep interval.
const DefaultReapInterval = 30 * time.Second

// ReaperStats describes one sweep: how many units were dropped from the
// registry and what their heaps had done by the time they were released.
type ReaperStats struct {
	Units     int // units removed from the registry
	Faulted   int // of those, units that ended with a fault
	Finalized int // foreign entries their trackers finalized
	Collected int // collections their heaps ran over their lifetime
	Remaining int

	SweepDuration time.Duration
	Timestamp     time.Time
}

func (s *ReaperStats) account(u *Unit) {
	s.Units++
	if u.Err() != nil {
		s.Faulted++
	}
	gc := u.heap.stats
	s.Finalized += gc.Finalized
	s.Collected += gc.Collections
}

// Reaper drops released units from a registry, on demand or on a timer,
// so programs spawning many short-lived units do not accumulate dead
// entries.
type Reaper struct {
	units    *UnitRegistry
	interval time.Duration
	enabled  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	sweeps atomic.Uint64
	last   atomic.Pointer[ReaperStats]
}

// NewReaper creates a stopped reaper over units. A non-positive interval
// selects DefaultReapInterval.
func NewReaper(units *UnitRegistry, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	r := &Reaper{units: units, interval: interval}
	r.enabled.Store(true)
	return r
}

// Start launches the timer loop unless it is already running.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel, r.done = cancel, make(chan struct{})
	go r.run(ctx, r.done)
}

// Stop ends the timer loop and waits for it. Stopping a reaper that is
// not running does nothing.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Reaper) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	tick := time.NewTicker(r.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if r.enabled.Load() {
				r.sweep()
			}
		}
	}
}

// SetEnabled pauses or resumes timed sweeps. SweepNow always runs.
func (r *Reaper) SetEnabled(enabled bool) { r.enabled.Store(enabled) }

// Interval returns the sweep interval.
func (r *Reaper) Interval() time.Duration { return r.interval }

// SweepCount returns how many sweeps have run.
func (r *Reaper) SweepCount() uint64 { return r.sweeps.Load() }

// LastStats returns the most recent sweep, or nil before the first.
func (r *Reaper) LastStats() *ReaperStats { return r.last.Load() }

// SweepNow sweeps immediately.
func (r *Reaper) SweepNow() *ReaperStats {
	return r.sweep()
}

func (r *Reaper) sweep() *ReaperStats {
	stats := &ReaperStats{Timestamp: time.Now()}
	for _, u := range r.units.Sweep() {
		stats.account(u)
	}
	stats.Remaining = r.units.Count()
	stats.SweepDuration = time.Since(stats.Timestamp)

	r.sweeps.Add(1)
	r.last.Store(stats)
	if stats.Units > 0 {
		log.Debugf("reaper: dropped %d units (%d faulted, %d foreign entries finalized), %d remain",
			stats.Units, stats.Faulted, stats.Finalized, stats.Remaining)
	}
	return stats
}
