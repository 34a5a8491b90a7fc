package vm

import (
	"sync"
	"time"
)

// Limits bounds one match operation. A zero field means "no bound for
// this dimension"; merging keeps the tightest non-zero value.
type Limits struct {
	// MaxDepth caps the backtrack stack. Exceeding it surfaces
	// RecursionLimit.
	MaxDepth int

	// MaxDuration is the wall-clock budget for a single search,
	// including all restart positions. Exceeding it surfaces Timeout.
	MaxDuration time.Duration

	// MaxTransitions caps executed instructions across the whole
	// search. Exceeding it surfaces BacktrackLimit.
	MaxTransitions int
}

// DefaultLimits returns the engine defaults: depth 1000, duration 5s,
// 100000 transitions.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:       1000,
		MaxDuration:    5 * time.Second,
		MaxTransitions: 100000,
	}
}

// Tighten merges o into l, keeping the stricter bound per dimension.
func (l Limits) Tighten(o Limits) Limits {
	if o.MaxDepth > 0 && (l.MaxDepth == 0 || o.MaxDepth < l.MaxDepth) {
		l.MaxDepth = o.MaxDepth
	}
	if o.MaxDuration > 0 && (l.MaxDuration == 0 || o.MaxDuration < l.MaxDuration) {
		l.MaxDuration = o.MaxDuration
	}
	if o.MaxTransitions > 0 && (l.MaxTransitions == 0 || o.MaxTransitions < l.MaxTransitions) {
		l.MaxTransitions = o.MaxTransitions
	}
	return l
}

// LimitRegistry resolves effective limits from three scopes: a global
// default, per-pattern overrides keyed by pattern id, and per-match
// overrides keyed by a caller-chosen match id. The effective limit for
// a (pattern, match) pair is the tightest bound across all three.
//
// The registry is safe for concurrent use.
type LimitRegistry struct {
	mu      sync.RWMutex
	global  Limits
	pattern map[uint64]Limits
	match   map[uint64]Limits
}

// NewLimitRegistry returns a registry seeded with DefaultLimits.
func NewLimitRegistry() *LimitRegistry {
	return &LimitRegistry{
		global:  DefaultLimits(),
		pattern: make(map[uint64]Limits),
		match:   make(map[uint64]Limits),
	}
}

// SetGlobal replaces the global scope.
func (r *LimitRegistry) SetGlobal(l Limits) {
	r.mu.Lock()
	r.global = l
	r.mu.Unlock()
}

// Global returns the global scope.
func (r *LimitRegistry) Global() Limits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global
}

// SetPattern installs a per-pattern override.
func (r *LimitRegistry) SetPattern(id uint64, l Limits) {
	r.mu.Lock()
	r.pattern[id] = l
	r.mu.Unlock()
}

// ClearPattern removes a per-pattern override.
func (r *LimitRegistry) ClearPattern(id uint64) {
	r.mu.Lock()
	delete(r.pattern, id)
	r.mu.Unlock()
}

// SetMatch installs a per-match override.
func (r *LimitRegistry) SetMatch(id uint64, l Limits) {
	r.mu.Lock()
	r.match[id] = l
	r.mu.Unlock()
}

// ClearMatch removes a per-match override.
func (r *LimitRegistry) ClearMatch(id uint64) {
	r.mu.Lock()
	delete(r.match, id)
	r.mu.Unlock()
}

// Effective resolves the limits for one match operation. Zero ids skip
// their scope.
func (r *LimitRegistry) Effective(patternID, matchID uint64) Limits {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l := r.global
	if patternID != 0 {
		if o, ok := r.pattern[patternID]; ok {
			l = l.Tighten(o)
		}
	}
	if matchID != 0 {
		if o, ok := r.match[matchID]; ok {
			l = l.Tighten(o)
		}
	}
	return l
}
