package vm

import (
	"time"

	"github.com/librift/librift/bytecode"
	"github.com/librift/librift/syntax"
)

// Context is the mutable state of one match execution: the subject
// slice, the capture slot vector, and the backtrack stack, plus the
// resource counters the bailout checks read. A Context belongs to one
// goroutine at a time; use ThreadContext to share across goroutines.
type Context struct {
	// Input is the subject. The context borrows the slice; callers
	// must not mutate it while a search runs.
	Input []byte

	// Pos is the machine's input cursor. Dispatch works on a local
	// copy and publishes it here at poll points and on completion.
	Pos int

	// Slots holds capture bounds followed by loop-guard cells. Slots
	// 2g and 2g+1 bound group g, with pair 0 the overall match; the
	// cells from loopBase on record loop entry positions. Unset cells
	// are -1.
	Slots []int

	bt Backtracker

	// Per-run bookkeeping, reset by beginRun.
	steps           int
	maxSteps        int
	deadline        time.Time
	highWater       int
	stagnation      int
	stagnationLimit int

	flags    syntax.Flags
	nm       syntax.NewlineMode
	loopBase int

	// gen stamps which ThreadContext generation this context was
	// borrowed under; stale generations are discarded, not reused.
	gen uint64
}

// NewContext returns a context sized for prog: the slot vector covers
// every capture pair and loop guard the program can touch.
func NewContext(prog *bytecode.Program) *Context {
	ctx := &Context{
		Slots:    make([]int, prog.NumSlots()),
		flags:    prog.Flags,
		nm:       prog.Flags.NewlineMode(),
		loopBase: 2 * (prog.NumGroups + 1),
	}
	ctx.clearSlots()
	return ctx
}

// SetInput swaps the subject and resets all match state.
func (c *Context) SetInput(input []byte) {
	c.Input = input
	c.Reset()
}

// Reset clears captures, position, and pending alternatives while
// retaining allocated capacity.
func (c *Context) Reset() {
	c.Pos = 0
	c.clearSlots()
	c.bt.Reset()
}

// Backtracker exposes the context's alternative stack.
func (c *Context) Backtracker() *Backtracker { return &c.bt }

// Steps returns the number of instructions executed in the current
// run.
func (c *Context) Steps() int { return c.steps }

func (c *Context) clearSlots() {
	for i := range c.Slots {
		c.Slots[i] = -1
	}
}

// beginRun arms the resource counters for one search.
func (c *Context) beginRun(l Limits, stagnationLimit int) {
	c.steps = 0
	c.maxSteps = l.MaxTransitions
	if l.MaxDuration > 0 {
		c.deadline = time.Now().Add(l.MaxDuration)
	} else {
		c.deadline = time.Time{}
	}
	c.bt.SetMaxDepth(l.MaxDepth)
	c.highWater = -1
	c.stagnation = 0
	c.stagnationLimit = stagnationLimit
}

// prepareAttempt clears per-start state between restart positions.
// The resource counters deliberately survive: limits cover the whole
// search, not each start.
func (c *Context) prepareAttempt() {
	c.clearSlots()
	c.bt.Reset()
}

// deadlineCheckMask throttles the wall-clock poll: time.Now is far
// more expensive than an instruction dispatch.
const deadlineCheckMask = 0xFF

func (c *Context) deadlineExpired() bool {
	if c.deadline.IsZero() || c.steps&deadlineCheckMask != 0 {
		return false
	}
	return time.Now().After(c.deadline)
}
