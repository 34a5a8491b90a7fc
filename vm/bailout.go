package vm

import "github.com/librift/librift/rifterr"

// Bailout is a bitmask of abort checks the machine polls between
// instructions. Strategies compose; a search stops at the first check
// that trips.
type Bailout uint8

const (
	// BailoutTimeout aborts when the run's wall-clock deadline passes.
	BailoutTimeout Bailout = 1 << iota

	// BailoutMaxSteps aborts when the transition counter exceeds the
	// run's MaxTransitions limit.
	BailoutMaxSteps

	// BailoutStepCounter keeps the transition counter observable
	// without enforcing a bound. BailoutMaxSteps implies it.
	BailoutStepCounter

	// BailoutProgress aborts a run that keeps backtracking without
	// ever reaching a new input position. The stagnation threshold
	// counts consecutive non-advancing pops.
	BailoutProgress
)

// BailoutNone disables all abort checks; only explicit limits on the
// backtrack stack still apply.
const BailoutNone Bailout = 0

// DefaultBailout is the strategy new machines start with.
const DefaultBailout = BailoutTimeout | BailoutMaxSteps

// ShouldBailout reports whether the current run must stop, and under
// which error kind. The machine polls it once per dispatched
// instruction.
func (b Bailout) ShouldBailout(ctx *Context) (rifterr.Kind, bool) {
	if b&BailoutTimeout != 0 && ctx.deadlineExpired() {
		return rifterr.KindTimeout, true
	}
	if b&BailoutMaxSteps != 0 && ctx.maxSteps > 0 && ctx.steps > ctx.maxSteps {
		return rifterr.KindBacktrackLimit, true
	}
	if b&BailoutProgress != 0 && ctx.stagnationLimit > 0 && ctx.stagnation > ctx.stagnationLimit {
		return rifterr.KindBacktrackLimit, true
	}
	return rifterr.KindNone, false
}

func bailoutErr(kind rifterr.Kind) error {
	switch kind {
	case rifterr.KindTimeout:
		return rifterr.New(kind, rifterr.NoPos, "match deadline exceeded")
	case rifterr.KindBacktrackLimit:
		return rifterr.New(kind, rifterr.NoPos, "backtrack budget exhausted")
	default:
		return rifterr.New(rifterr.KindInternal, rifterr.NoPos, "unknown bailout kind")
	}
}
