// Package vm executes compiled programs by explicit-stack backtracking.
// The machine walks instructions with a program counter and an input
// cursor; SPLIT records the losing branch on the backtrack stack, and
// failure pops the most recent viable alternative. Capture slots are
// snapshotted into each stack frame, so popping restores the exact
// group state of the alternative.
//
// Every run is bounded: a transition counter, a wall-clock deadline,
// and a stack depth cap guard against pathological patterns. Hitting a
// bound is an error distinct from "no match".
package vm

import (
	"bytes"
	"unicode/utf8"

	"github.com/librift/librift/bytecode"
	"github.com/librift/librift/rifterr"
	"github.com/librift/librift/syntax"
)

// Prefilter proposes candidate match starts for unanchored search.
// Implementations must be safe for concurrent use; the machine calls
// Next from whatever goroutine runs the search.
type Prefilter interface {
	// Next returns the next plausible start position at or after from,
	// or -1 when no candidate remains. Positions it skips are
	// guaranteed not to begin a match.
	Next(input []byte, from int) int
}

// defaultStagnationLimit bounds consecutive non-advancing backtrack
// pops when BailoutProgress is enabled.
const defaultStagnationLimit = 1 << 14

// Machine executes one compiled program. It is immutable during
// matching and safe to share across goroutines; all mutable state
// lives in the Context passed to Search.
type Machine struct {
	prog *bytecode.Program
	pre  Prefilter
	bail Bailout

	limits          Limits
	stagnationLimit int

	stats *Stats
}

// NewMachine returns a machine for prog with default limits and the
// default bailout strategy.
func NewMachine(prog *bytecode.Program) *Machine {
	return &Machine{
		prog:            prog,
		bail:            DefaultBailout,
		limits:          DefaultLimits(),
		stagnationLimit: defaultStagnationLimit,
	}
}

// Program returns the compiled program this machine executes.
func (m *Machine) Program() *bytecode.Program { return m.prog }

// SetLimits replaces the per-search resource limits.
func (m *Machine) SetLimits(l Limits) { m.limits = l }

// Limits returns the current per-search resource limits.
func (m *Machine) Limits() Limits { return m.limits }

// SetBailout replaces the bailout strategy mask.
func (m *Machine) SetBailout(b Bailout) { m.bail = b }

// SetStagnationLimit adjusts the BailoutProgress threshold.
func (m *Machine) SetStagnationLimit(n int) { m.stagnationLimit = n }

// SetPrefilter installs a candidate-start filter for unanchored
// search. A nil filter disables acceleration.
func (m *Machine) SetPrefilter(p Prefilter) { m.pre = p }

// SetStats attaches a stats sink. A nil sink disables recording.
func (m *Machine) SetStats(s *Stats) { m.stats = s }

// NewContext returns a context sized for this machine's program.
func (m *Machine) NewContext() *Context { return NewContext(m.prog) }

// Search looks for the leftmost match at or after from, leaving the
// winning capture state in ctx.Slots. It applies the machine's limits
// to the whole search, across every restart position.
func (m *Machine) Search(ctx *Context, from int) (matched bool, err error) {
	ctx.beginRun(m.limits, m.stagnationLimit)
	peak := 0
	if m.stats != nil {
		m.stats.searches.Add(1)
		defer func() {
			m.stats.notePeakDepth(peak)
			m.stats.noteOutcome(err)
		}()
	}

	n := len(ctx.Input)
	if from < 0 {
		from = 0
	}
	if from > n {
		return false, nil
	}

	anchored := m.prog.Flags.Has(syntax.Anchored)
	if m.prog.StartAnchored() {
		if from > 0 {
			return false, nil
		}
		anchored = true
	}

	minW := m.prog.MinW
	for start := from; start <= n; start++ {
		if minW > 0 && start+minW > n {
			return false, nil
		}
		if !anchored && m.pre != nil {
			next := m.pre.Next(ctx.Input, start)
			if next < 0 {
				if m.stats != nil {
					m.stats.prefilterSkips.Add(1)
				}
				return false, nil
			}
			if next < start {
				next = start
			}
			if m.stats != nil {
				m.stats.prefilterHits.Add(1)
			}
			start = next
			if minW > 0 && start+minW > n {
				return false, nil
			}
		}

		ctx.prepareAttempt()
		ok, err := m.match(ctx, m.prog, start, -1)
		if p := ctx.bt.PeakDepth(); p > peak {
			peak = p
		}
		if err != nil || ok {
			return ok, err
		}
		if anchored {
			return false, nil
		}
	}
	return false, nil
}

// match runs prog anchored at start. A non-negative target puts the
// machine in ends-at mode: MATCH succeeds only when the cursor sits
// exactly at target, which is how lookbehind windows are verified.
//
//nolint:gocyclo,cyclop,funlen // dispatch over the full opcode set is inherently branchy
func (m *Machine) match(ctx *Context, prog *bytecode.Program, start, target int) (bool, error) {
	insts := prog.Insts
	input := ctx.Input
	pc := 0
	pos := start
	base := ctx.bt.Depth()

	// fail pops the next viable alternative, skipping atomic-region
	// marks, and restores its snapshot. False means no alternative
	// above base remains.
	fail := func() bool {
		if pos > ctx.highWater {
			ctx.highWater = pos
			ctx.stagnation = 0
		} else {
			ctx.stagnation++
		}
		for ctx.bt.Depth() > base {
			f, _ := ctx.bt.Pop()
			if f.Mark {
				continue
			}
			copy(ctx.Slots, f.Slots)
			pc, pos = f.PC, f.Pos
			return true
		}
		return false
	}

	for {
		ctx.steps++
		ctx.Pos = pos
		if kind, bail := m.bail.ShouldBailout(ctx); bail {
			return false, bailoutErr(kind)
		}
		if pc < 0 || pc >= len(insts) {
			return false, rifterr.Newf(rifterr.KindInternal, rifterr.NoPos,
				"program counter %d out of range", pc)
		}
		in := insts[pc]
		if traceEnabled {
			trace("pc=%-4d pos=%-4d depth=%-3d %s\n", pc, pos, ctx.bt.Depth(), in.String())
		}

		switch in.Op {
		case bytecode.OpChar:
			if pos < len(input) {
				b := input[pos]
				if b == byte(in.X) || (in.Y != 0 && foldEq(b, byte(in.X))) {
					pos++
					pc++
					continue
				}
			}

		case bytecode.OpAny:
			if pos < len(input) {
				if in.Y&bytecode.AnyUTF8 != 0 {
					r, size := utf8.DecodeRune(input[pos:])
					if (r != utf8.RuneError || size > 1) &&
						(in.Y&bytecode.AnyDotAll != 0 || r > 0xFF || !ctx.nm.ExcludesFromDot(byte(r))) {
						pos += size
						pc++
						continue
					}
				} else if in.Y&bytecode.AnyDotAll != 0 || !ctx.nm.ExcludesFromDot(input[pos]) {
					pos++
					pc++
					continue
				}
			}

		case bytecode.OpClass:
			// Case folding is baked into the bitmap at parse time.
			if pos < len(input) && prog.Classes[in.X].Contains(input[pos]) {
				pos++
				pc++
				continue
			}

		case bytecode.OpMatch:
			if target < 0 || pos == target {
				ctx.Pos = pos
				return true, nil
			}

		case bytecode.OpFail:
			// Always backtracks.

		case bytecode.OpJmp:
			pc += int(in.X)
			continue

		case bytecode.OpSplit:
			if err := ctx.bt.Push(pc+int(in.Y), pos, ctx.Slots, false); err != nil {
				return false, err
			}
			pc += int(in.X)
			continue

		case bytecode.OpSaveStart:
			ctx.Slots[2*int(in.X)] = pos
			pc++
			continue

		case bytecode.OpSaveEnd:
			ctx.Slots[2*int(in.X)+1] = pos
			pc++
			continue

		case bytecode.OpBackref:
			g := int(in.X)
			s, e := ctx.Slots[2*g], ctx.Slots[2*g+1]
			if s >= 0 && e >= s && pos+(e-s) <= len(input) &&
				foldableEqual(input[pos:pos+(e-s)], input[s:e], in.Y != 0) {
				pos += e - s
				pc++
				continue
			}

		case bytecode.OpAssertStart:
			switch in.X {
			case bytecode.AssertInput:
				if pos == 0 {
					pc++
					continue
				}
			case bytecode.AssertLine:
				if pos == 0 || ctx.nm.BreakEndingAt(input, pos) > 0 {
					pc++
					continue
				}
			}

		case bytecode.OpAssertEnd:
			switch in.X {
			case bytecode.AssertInput:
				if pos == len(input) {
					pc++
					continue
				}
			case bytecode.AssertLine:
				if pos == len(input) || ctx.nm.BreakAt(input, pos) > 0 {
					pc++
					continue
				}
			case bytecode.AssertEndOrBreak:
				if pos == len(input) || ctx.nm.BreakAt(input, pos) == len(input)-pos {
					pc++
					continue
				}
			}

		case bytecode.OpAssertWordBoundary:
			before := pos > 0 && syntax.IsWordByte(input[pos-1])
			after := pos < len(input) && syntax.IsWordByte(input[pos])
			if (before != after) == (in.X == 0) {
				pc++
				continue
			}

		case bytecode.OpLookahead, bytecode.OpLookbehind:
			holds, err := m.lookaround(ctx, prog, in, pos)
			if err != nil {
				return false, err
			}
			if holds {
				pc++
				continue
			}

		case bytecode.OpMark:
			if err := ctx.bt.Push(0, 0, nil, true); err != nil {
				return false, err
			}
			pc++
			continue

		case bytecode.OpCut:
			cut := false
			for ctx.bt.Depth() > base {
				f, _ := ctx.bt.Pop()
				if f.Mark {
					cut = true
					break
				}
			}
			if !cut {
				return false, rifterr.New(rifterr.KindInternal, rifterr.NoPos,
					"atomic-region cut without mark")
			}
			pc++
			continue

		case bytecode.OpLoopSave:
			ctx.Slots[ctx.loopBase+int(in.X)] = pos
			pc++
			continue

		case bytecode.OpLoopCheck:
			// A loop iteration that consumed nothing exits here
			// instead of spinning forever.
			if ctx.Slots[ctx.loopBase+int(in.X)] == pos {
				pc += int(in.Y)
			} else {
				pc++
			}
			continue

		default:
			return false, rifterr.Newf(rifterr.KindInternal, rifterr.NoPos,
				"invalid opcode %d at pc %d", uint8(in.Op), pc)
		}

		// The instruction rejected; take the next alternative.
		if !fail() {
			ctx.Pos = pos
			return false, nil
		}
	}
}

// lookaround evaluates a LOOKAHEAD or LOOKBEHIND instruction at pos.
// Captures written by a successful positive assertion persist; every
// other outcome restores the slot snapshot taken on entry.
func (m *Machine) lookaround(ctx *Context, prog *bytecode.Program, in bytecode.Inst, pos int) (bool, error) {
	sub := prog.Subs[in.X]
	negated := in.Y != 0
	saved := append([]int(nil), ctx.Slots...)
	depth := ctx.bt.Depth()

	var matched bool
	var err error
	if in.Op == bytecode.OpLookahead {
		matched, err = m.match(ctx, sub, pos, -1)
		ctx.bt.truncate(depth)
	} else {
		if sub.MaxW < 0 {
			return false, rifterr.New(rifterr.KindInternal, rifterr.NoPos,
				"unbounded lookbehind window")
		}
		// Try candidate windows shortest first; the sub-program must
		// end exactly at pos.
		for w := sub.MinW; w <= sub.MaxW && w <= pos; w++ {
			matched, err = m.match(ctx, sub, pos-w, pos)
			ctx.bt.truncate(depth)
			if err != nil || matched {
				break
			}
			copy(ctx.Slots, saved)
		}
	}
	if err != nil {
		return false, err
	}

	if matched && !negated {
		return true, nil
	}
	copy(ctx.Slots, saved)
	return matched != negated, nil
}

// foldEq reports ASCII case-insensitive byte equality.
func foldEq(a, b byte) bool {
	return lowerByte(a) == lowerByte(b)
}

func lowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// foldableEqual compares equal-length slices, byte-wise or
// case-folded.
func foldableEqual(got, want []byte, fold bool) bool {
	if !fold {
		return bytes.Equal(got, want)
	}
	for i := range want {
		if !foldEq(got[i], want[i]) {
			return false
		}
	}
	return true
}
