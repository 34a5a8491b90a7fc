package vm

import "github.com/librift/librift/rifterr"

// Frame is one saved alternative on the backtrack stack: the program
// counter and input position to resume at, and the slot vector as it
// was when the alternative was recorded. Mark frames are atomic-region
// sentinels; they carry no resume point and are skipped by ordinary
// backtracking.
type Frame struct {
	PC    int
	Pos   int
	Slots []int
	Mark  bool
}

// Backtracker is a stack of pending alternatives. Frames own their
// slot snapshots; popped frames keep their backing arrays so a
// push/pop cycle at steady depth does not allocate.
type Backtracker struct {
	frames   []Frame
	maxDepth int

	// peak tracks the deepest the stack has been since the last Reset,
	// for stats reporting.
	peak int
}

// MaxDepth returns the configured depth bound, 0 meaning unbounded.
func (b *Backtracker) MaxDepth() int { return b.maxDepth }

// SetMaxDepth bounds the stack. It does not shrink an already deeper
// stack; the bound applies to subsequent pushes.
func (b *Backtracker) SetMaxDepth(n int) { b.maxDepth = n }

// Depth returns the current number of frames.
func (b *Backtracker) Depth() int { return len(b.frames) }

// IsEmpty reports whether no frames are pending.
func (b *Backtracker) IsEmpty() bool { return len(b.frames) == 0 }

// PeakDepth returns the deepest stack size since the last Reset.
func (b *Backtracker) PeakDepth() int { return b.peak }

// Reset drops all frames, retaining capacity.
func (b *Backtracker) Reset() {
	b.frames = b.frames[:0]
	b.peak = 0
}

// Push records an alternative. slots is copied into the frame. Pushing
// past the depth bound reports RecursionLimit.
func (b *Backtracker) Push(pc, pos int, slots []int, mark bool) error {
	if b.maxDepth > 0 && len(b.frames) >= b.maxDepth {
		return rifterr.New(rifterr.KindRecursionLimit, rifterr.NoPos,
			"backtrack stack depth limit reached")
	}
	if cap(b.frames) > len(b.frames) {
		// Reuse the retired frame's snapshot buffer.
		b.frames = b.frames[:len(b.frames)+1]
	} else {
		b.frames = append(b.frames, Frame{})
	}
	f := &b.frames[len(b.frames)-1]
	f.PC = pc
	f.Pos = pos
	f.Mark = mark
	f.Slots = append(f.Slots[:0], slots...)
	if len(b.frames) > b.peak {
		b.peak = len(b.frames)
	}
	return nil
}

// Pop removes and returns the top frame. The returned frame's slot
// slice is only valid until the next Push.
func (b *Backtracker) Pop() (Frame, bool) {
	if len(b.frames) == 0 {
		return Frame{}, false
	}
	f := b.frames[len(b.frames)-1]
	b.frames = b.frames[:len(b.frames)-1]
	return f, true
}

// Peek returns the top frame without removing it.
func (b *Backtracker) Peek() (Frame, bool) {
	if len(b.frames) == 0 {
		return Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}

// truncate drops frames until depth n remain. Used to unwind nested
// sub-program runs, which may not leak alternatives into the caller.
func (b *Backtracker) truncate(n int) {
	if n < len(b.frames) {
		b.frames = b.frames[:n]
	}
}
