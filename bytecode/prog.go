package bytecode

import (
	"fmt"
	"strings"

	"github.com/librift/librift/syntax"
)

// Program is an immutable compiled pattern. It is safe to share across
// goroutines; all mutable match state lives in the executing context.
type Program struct {
	// Insts is the instruction vector. Execution starts at 0.
	Insts []Inst

	// NumGroups is the number of capturing groups, excluding the overall
	// match. Capture slots number 2*(NumGroups+1).
	NumGroups int

	// NumLoops is the number of loop-guard slots the program uses. They
	// follow the capture slots in the context's slot vector.
	NumLoops int

	// Flags is the resolved top-level flag set the program was compiled
	// under. Per-construct flag effects are baked into operands; the VM
	// consults this only for pattern-wide modes (newline convention,
	// anchoring).
	Flags syntax.Flags

	// Classes is the interned character-class pool referenced by OpClass.
	Classes []syntax.ClassSet

	// Names maps capturing indices to group names; index 0 and unnamed
	// groups hold "". Populated on the root program only.
	Names []string

	// Subs holds lookaround sub-programs referenced by OpLookahead and
	// OpLookbehind. Sub-programs share the root's capture and loop slot
	// space.
	Subs []*Program

	// MinW and MaxW bound the input bytes a match can consume. MaxW is
	// -1 when unbounded. On lookbehind sub-programs these delimit the
	// window widths the VM probes.
	MinW, MaxW int
}

// NumSlots returns the size of the slot vector a context needs to run
// this program: capture pairs plus loop guards.
func (p *Program) NumSlots() int {
	return 2*(p.NumGroups+1) + p.NumLoops
}

// GroupNames returns the names of groups 1..NumGroups in index order,
// "" for unnamed groups.
func (p *Program) GroupNames() []string {
	if len(p.Names) <= 1 {
		return make([]string, p.NumGroups)
	}
	return p.Names[1:]
}

// NameIndex resolves a group name to its lowest capturing index.
func (p *Program) NameIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for i, n := range p.Names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// widthInf is the internal "unbounded" sentinel for the instruction
// width analysis.
const widthInf = 1 << 30

// recomputeWidths rederives MinW and MaxW from the instruction graph,
// for programs that arrive without them (deserialization). A single
// reverse-order pass suffices: the compiler only emits backward edges
// for unbounded loops, so treating a backward edge as "zero to
// unbounded" reproduces the exact bounds for every compiler-produced
// program.
func (p *Program) recomputeWidths() {
	for _, sub := range p.Subs {
		sub.recomputeWidths()
	}

	n := len(p.Insts)
	mins := make([]int, n+1)
	maxs := make([]int, n+1)
	dead := make([]bool, n+1)
	// Falling off the end is a dead path; only OpMatch terminates.
	dead[n] = true

	succ := func(pc, rel int) (int, int, bool) {
		t := pc + rel
		if t <= pc || t > n {
			// Backward edge: a loop, hence possibly empty and unbounded.
			return 0, widthInf, false
		}
		return mins[t], maxs[t], dead[t]
	}

	for pc := n - 1; pc >= 0; pc-- {
		in := p.Insts[pc]
		switch in.Op {
		case OpMatch:
			mins[pc], maxs[pc] = 0, 0
		case OpFail:
			dead[pc] = true
		case OpChar, OpClass:
			lo, hi, d := succ(pc, 1)
			mins[pc], maxs[pc], dead[pc] = addWidth(lo, 1), addWidth(hi, 1), d
		case OpAny:
			step := 1
			if in.Y&AnyUTF8 != 0 {
				step = 4
			}
			lo, hi, d := succ(pc, 1)
			mins[pc], maxs[pc], dead[pc] = addWidth(lo, 1), addWidth(hi, step), d
		case OpBackref:
			lo, _, d := succ(pc, 1)
			mins[pc], maxs[pc], dead[pc] = lo, widthInf, d
		case OpJmp:
			mins[pc], maxs[pc], dead[pc] = succ(pc, int(in.X))
		case OpSplit:
			aLo, aHi, aDead := succ(pc, int(in.X))
			bLo, bHi, bDead := succ(pc, int(in.Y))
			mins[pc], maxs[pc], dead[pc] = joinWidth(aLo, aHi, aDead, bLo, bHi, bDead)
		case OpLoopCheck:
			aLo, aHi, aDead := succ(pc, 1)
			bLo, bHi, bDead := succ(pc, int(in.Y))
			mins[pc], maxs[pc], dead[pc] = joinWidth(aLo, aHi, aDead, bLo, bHi, bDead)
		default:
			// Zero-width: saves, asserts, lookarounds, mark/cut/loop-save.
			mins[pc], maxs[pc], dead[pc] = succ(pc, 1)
		}
	}

	if n == 0 || dead[0] {
		p.MinW, p.MaxW = 0, 0
		return
	}
	p.MinW = mins[0]
	if maxs[0] >= widthInf {
		p.MaxW = -1
	} else {
		p.MaxW = maxs[0]
	}
}

func addWidth(w, d int) int {
	if w+d > widthInf {
		return widthInf
	}
	return w + d
}

func joinWidth(aLo, aHi int, aDead bool, bLo, bHi int, bDead bool) (int, int, bool) {
	if aDead {
		return bLo, bHi, bDead
	}
	if bDead {
		return aLo, aHi, false
	}
	lo, hi := aLo, aHi
	if bLo < lo {
		lo = bLo
	}
	if bHi > hi {
		hi = bHi
	}
	return lo, hi, false
}

// Dump renders a disassembly listing of the program and its
// sub-programs.
func (p *Program) Dump() string {
	var b strings.Builder
	p.dump(&b, "")
	return b.String()
}

func (p *Program) dump(b *strings.Builder, label string) {
	if label != "" {
		fmt.Fprintf(b, "%s: groups=%d width=[%d,%d]\n", label, p.NumGroups, p.MinW, p.MaxW)
	} else {
		fmt.Fprintf(b, "groups=%d loops=%d width=[%d,%d]\n", p.NumGroups, p.NumLoops, p.MinW, p.MaxW)
	}
	for pc, in := range p.Insts {
		fmt.Fprintf(b, "%4d  %s\n", pc, in)
	}
	for i, sub := range p.Subs {
		sub.dump(b, fmt.Sprintf("sub %d", i))
	}
}
