package vm

import (
	"sync/atomic"

	"github.com/librift/librift/rifterr"
)

// Stats accumulates per-pattern match telemetry. All fields are
// updated with atomics; one Stats value may be shared by every
// machine compiled from the same pattern.
type Stats struct {
	searches       atomic.Int64
	prefilterHits  atomic.Int64
	prefilterSkips atomic.Int64
	timeouts       atomic.Int64
	stepLimits     atomic.Int64
	depthLimits    atomic.Int64
	peakDepth      atomic.Int64
}

// StatsSnapshot is a point-in-time copy of a Stats.
type StatsSnapshot struct {
	// Searches counts Search invocations, matched or not.
	Searches int64

	// PrefilterHits counts candidate starts the prefilter proposed;
	// PrefilterSkips counts searches the prefilter ended early by
	// proving no candidate remained.
	PrefilterHits  int64
	PrefilterSkips int64

	// Bailouts by kind.
	Timeouts    int64
	StepLimits  int64
	DepthLimits int64

	// PeakDepth is the deepest backtrack stack any search reached.
	PeakDepth int64
}

// Snapshot returns a consistent-enough copy for reporting; individual
// counters are read atomically.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Searches:       s.searches.Load(),
		PrefilterHits:  s.prefilterHits.Load(),
		PrefilterSkips: s.prefilterSkips.Load(),
		Timeouts:       s.timeouts.Load(),
		StepLimits:     s.stepLimits.Load(),
		DepthLimits:    s.depthLimits.Load(),
		PeakDepth:      s.peakDepth.Load(),
	}
}

// Reset zeroes every counter. Searches running concurrently may land
// updates on either side of the reset.
func (s *Stats) Reset() {
	s.searches.Store(0)
	s.prefilterHits.Store(0)
	s.prefilterSkips.Store(0)
	s.timeouts.Store(0)
	s.stepLimits.Store(0)
	s.depthLimits.Store(0)
	s.peakDepth.Store(0)
}

func (s *Stats) notePeakDepth(d int) {
	for {
		cur := s.peakDepth.Load()
		if int64(d) <= cur || s.peakDepth.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

func (s *Stats) noteOutcome(err error) {
	if err == nil {
		return
	}
	switch rifterr.KindOf(err) {
	case rifterr.KindTimeout:
		s.timeouts.Add(1)
	case rifterr.KindBacktrackLimit:
		s.stepLimits.Add(1)
	case rifterr.KindRecursionLimit:
		s.depthLimits.Add(1)
	}
}
