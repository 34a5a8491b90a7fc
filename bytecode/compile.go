package bytecode

import (
	"github.com/librift/librift/rifterr"
	"github.com/librift/librift/syntax"
)

// maxInsts caps the instruction count of a single program so quantifier
// unrolling cannot exhaust memory. Bounded repeats multiply; the cap
// keeps every relative jump inside the serialized 24-bit operand range.
const maxInsts = 1 << 20

// Compile lowers a parsed tree into an executable program. Group
// numbering and name bookkeeping come from the tree; per-construct flag
// effects (case folding, dot modes, assertion variants) are baked into
// instruction operands from each node's flag snapshot.
func Compile(tree *syntax.Tree) (*Program, error) {
	var loops int
	c := &compiler{
		flags:      tree.Flags.Resolve(),
		groups:     tree.GroupCount,
		loops:      &loops,
		classIndex: make(map[syntax.ClassSet]int),
	}

	body := tree.Root.Children[0]

	c.emit(OpSaveStart, 0, 0)
	if err := c.node(body); err != nil {
		return nil, err
	}
	c.emit(OpSaveEnd, 0, 0)
	c.emit(OpMatch, 0, 0)

	// Sub-compilers share the slot counter, so this bounds the whole
	// program tree at the serialized form's loop-slot limit.
	if loops > maxWireLoops {
		return nil, rifterr.New(rifterr.KindMemory, rifterr.NoPos, "compiled program too large")
	}

	// Canonical form: the name table exists only when some group is
	// actually named, so serialization round-trips to identical bytes.
	names := tree.Names
	named := false
	for _, name := range names {
		if name != "" {
			named = true
			break
		}
	}
	if !named {
		names = nil
	}

	prog := &Program{
		Insts:     c.insts,
		NumGroups: tree.GroupCount,
		NumLoops:  loops,
		Flags:     c.flags,
		Classes:   c.classes,
		Names:     names,
		Subs:      c.subs,
	}
	setLoopCount(prog, loops)
	// Widths come from the instruction graph, not the tree, so a decoded
	// program carries the same bounds as a freshly compiled one.
	prog.recomputeWidths()
	return prog, nil
}

// setLoopCount propagates the final loop-slot count to every
// sub-program; they execute in the root's slot vector.
func setLoopCount(p *Program, loops int) {
	p.NumLoops = loops
	for _, sub := range p.Subs {
		setLoopCount(sub, loops)
	}
}

type compiler struct {
	insts   []Inst
	classes []syntax.ClassSet
	subs    []*Program

	// classIndex interns class bitmaps; identical classes share one
	// pool entry.
	classIndex map[syntax.ClassSet]int

	flags  syntax.Flags
	groups int

	// loops allocates guard slots. Shared with sub-compilers so nested
	// programs draw from the same slot space.
	loops *int
}

// emit appends an instruction and returns its PC.
func (c *compiler) emit(op Opcode, x, y int32) int {
	c.insts = append(c.insts, Inst{Op: op, X: x, Y: y})
	return len(c.insts) - 1
}

// patchX points the X operand of pc at target.
func (c *compiler) patchX(pc, target int) {
	c.insts[pc].X = int32(target - pc)
}

// patchY points the Y operand of pc at target.
func (c *compiler) patchY(pc, target int) {
	c.insts[pc].Y = int32(target - pc)
}

func (c *compiler) here() int {
	return len(c.insts)
}

func (c *compiler) allocLoop() int32 {
	k := *c.loops
	*c.loops++
	return int32(k)
}

func (c *compiler) tooLarge(pos int) error {
	return rifterr.New(rifterr.KindMemory, pos, "compiled program too large")
}

func (c *compiler) node(n *syntax.Node) error {
	if len(c.insts) > maxInsts {
		return c.tooLarge(n.Pos)
	}

	switch n.Kind {
	case syntax.NodeConcat:
		for _, child := range n.Children {
			if err := c.node(child); err != nil {
				return err
			}
		}
		return nil

	case syntax.NodeAlternation:
		return c.alternation(n)

	case syntax.NodeLiteral:
		var y int32
		if n.Flags.Has(syntax.CaseInsensitive) {
			y = foldCompare
		}
		c.emit(OpChar, int32(n.Byte), y)
		return nil

	case syntax.NodeDot:
		var y int32
		if n.Flags.Has(syntax.DotAll) {
			y |= AnyDotAll
		}
		if n.Flags.Has(syntax.UTF8) {
			y |= AnyUTF8
		}
		c.emit(OpAny, 0, y)
		return nil

	case syntax.NodeClass:
		c.emit(OpClass, c.internClass(n.Class), 0)
		return nil

	case syntax.NodeAnchorStart:
		kind := AssertInput
		if n.Flags.Has(syntax.Multiline) {
			kind = AssertLine
		}
		c.emit(OpAssertStart, kind, 0)
		return nil

	case syntax.NodeInputStart:
		c.emit(OpAssertStart, AssertInput, 0)
		return nil

	case syntax.NodeAnchorEnd:
		kind := AssertEndOrBreak
		if n.Flags.Has(syntax.Multiline) {
			kind = AssertLine
		} else if n.Flags.Has(syntax.DollarEndOnly) {
			kind = AssertInput
		}
		c.emit(OpAssertEnd, kind, 0)
		return nil

	case syntax.NodeInputEnd:
		kind := AssertInput
		if n.Negated {
			kind = AssertEndOrBreak
		}
		c.emit(OpAssertEnd, kind, 0)
		return nil

	case syntax.NodeWordBoundary:
		c.emit(OpAssertWordBoundary, 0, 0)
		return nil

	case syntax.NodeNotWordBoundary:
		c.emit(OpAssertWordBoundary, 1, 0)
		return nil

	case syntax.NodeBackrefReset:
		// \K restarts the reported match at the current position.
		c.emit(OpSaveStart, 0, 0)
		return nil

	case syntax.NodeAnyBreak:
		return c.anyBreak(n)

	case syntax.NodeGroup:
		c.emit(OpSaveStart, int32(n.Index), 0)
		if err := c.node(n.Children[0]); err != nil {
			return err
		}
		c.emit(OpSaveEnd, int32(n.Index), 0)
		return nil

	case syntax.NodeNonCapGroup:
		return c.node(n.Children[0])

	case syntax.NodeAtomicGroup:
		c.emit(OpMark, 0, 0)
		if err := c.node(n.Children[0]); err != nil {
			return err
		}
		c.emit(OpCut, 0, 0)
		return nil

	case syntax.NodeBackref:
		if n.Index < 1 || n.Index > c.groups {
			return rifterr.Newf(rifterr.KindInternal, n.Pos,
				"backreference to group %d of %d", n.Index, c.groups)
		}
		var y int32
		if n.Flags.Has(syntax.CaseInsensitive) {
			y = foldCompare
		}
		c.emit(OpBackref, int32(n.Index), y)
		return nil

	case syntax.NodeLookahead, syntax.NodeLookbehind:
		id, err := c.sub(n.Children[0])
		if err != nil {
			return err
		}
		var y int32
		if n.Negated {
			y = 1
		}
		op := OpLookahead
		if n.Kind == syntax.NodeLookbehind {
			op = OpLookbehind
		}
		c.emit(op, id, y)
		return nil

	case syntax.NodeQuantifier:
		return c.quantifier(n)

	default:
		return rifterr.Newf(rifterr.KindInternal, n.Pos, "unhandled node %s", n.Kind)
	}
}

// alternation chains SPLITs so branches are tried in source order.
func (c *compiler) alternation(n *syntax.Node) error {
	last := len(n.Children) - 1
	var exits []int
	for i, branch := range n.Children {
		if i == last {
			if err := c.node(branch); err != nil {
				return err
			}
			break
		}
		sp := c.emit(OpSplit, 0, 0)
		c.patchX(sp, sp+1)
		if err := c.node(branch); err != nil {
			return err
		}
		exits = append(exits, c.emit(OpJmp, 0, 0))
		c.patchY(sp, c.here())
	}
	end := c.here()
	for _, j := range exits {
		c.patchX(j, end)
	}
	return nil
}

// internClass returns the pool id for set, reusing an existing entry
// when the same bitmap was seen before.
func (c *compiler) internClass(set syntax.ClassSet) int32 {
	if id, ok := c.classIndex[set]; ok {
		return int32(id)
	}
	id := len(c.classes)
	c.classes = append(c.classes, set)
	c.classIndex[set] = id
	return int32(id)
}

// anyBreak emits \R: a CRLF pair or one lone break byte, atomically so
// backtracking cannot split a CRLF into just its CR.
func (c *compiler) anyBreak(n *syntax.Node) error {
	bsr := syntax.BSRClass(n.Flags.BSRMode())

	c.emit(OpMark, 0, 0)
	sp := c.emit(OpSplit, 0, 0)
	c.patchX(sp, sp+1)
	c.emit(OpChar, '\r', 0)
	c.emit(OpChar, '\n', 0)
	j := c.emit(OpJmp, 0, 0)
	c.patchY(sp, c.here())
	c.emit(OpClass, c.internClass(bsr), 0)
	c.patchX(j, c.here())
	c.emit(OpCut, 0, 0)
	return nil
}

// quantifier emits repetition. Unbounded loops over a body that can
// match emptily get a loop guard so a stagnant iteration exits instead
// of spinning until the backtrack stack fills.
func (c *compiler) quantifier(n *syntax.Node) error {
	child := n.Children[0]
	min, max := n.Min, n.Max

	if n.Possessive {
		c.emit(OpMark, 0, 0)
	}

	var err error
	switch {
	case max == 0:
		// {0}: matches emptily.
	case min == 0 && max == 1:
		err = c.question(child, n.Greedy)
	case min == 0 && max < 0:
		err = c.star(child, n.Greedy)
	case min == 1 && max < 0:
		err = c.plus(child, n.Greedy)
	default:
		err = c.repeat(n, child, min, max)
	}
	if err != nil {
		return err
	}

	if n.Possessive {
		c.emit(OpCut, 0, 0)
	}
	return nil
}

func needGuard(child *syntax.Node) bool {
	return child.MinWidth() == 0
}

func (c *compiler) question(child *syntax.Node, greedy bool) error {
	sp := c.emit(OpSplit, 0, 0)
	if err := c.node(child); err != nil {
		return err
	}
	end := c.here()
	if greedy {
		c.patchX(sp, sp+1)
		c.patchY(sp, end)
	} else {
		c.patchX(sp, end)
		c.patchY(sp, sp+1)
	}
	return nil
}

func (c *compiler) star(child *syntax.Node, greedy bool) error {
	guard := needGuard(child)
	sp := c.emit(OpSplit, 0, 0)
	var slot int32
	var check int
	if guard {
		slot = c.allocLoop()
		c.emit(OpLoopSave, slot, 0)
	}
	if err := c.node(child); err != nil {
		return err
	}
	if guard {
		check = c.emit(OpLoopCheck, slot, 0)
	}
	j := c.emit(OpJmp, 0, 0)
	c.patchX(j, sp)
	end := c.here()
	if greedy {
		c.patchX(sp, sp+1)
		c.patchY(sp, end)
	} else {
		c.patchX(sp, end)
		c.patchY(sp, sp+1)
	}
	if guard {
		c.patchY(check, end)
	}
	return nil
}

func (c *compiler) plus(child *syntax.Node, greedy bool) error {
	guard := needGuard(child)
	loop := c.here()
	var slot int32
	if guard {
		slot = c.allocLoop()
		c.emit(OpLoopSave, slot, 0)
	}
	if err := c.node(child); err != nil {
		return err
	}
	var check int
	if guard {
		check = c.emit(OpLoopCheck, slot, 0)
	}
	sp := c.emit(OpSplit, 0, 0)
	end := c.here()
	if greedy {
		c.patchX(sp, loop)
		c.patchY(sp, end)
	} else {
		c.patchX(sp, end)
		c.patchY(sp, loop)
	}
	if guard {
		c.patchY(check, end)
	}
	return nil
}

// repeat handles the general {m,n} and {m,} forms by unrolling: m
// mandatory copies, then optional copies or an unbounded tail.
func (c *compiler) repeat(n *syntax.Node, child *syntax.Node, min, max int) error {
	for i := 0; i < min; i++ {
		if len(c.insts) > maxInsts {
			return c.tooLarge(n.Pos)
		}
		if err := c.node(child); err != nil {
			return err
		}
	}
	if max < 0 {
		return c.star(child, n.Greedy)
	}

	var splits []int
	for i := 0; i < max-min; i++ {
		if len(c.insts) > maxInsts {
			return c.tooLarge(n.Pos)
		}
		splits = append(splits, c.emit(OpSplit, 0, 0))
		if err := c.node(child); err != nil {
			return err
		}
	}
	end := c.here()
	for _, sp := range splits {
		if n.Greedy {
			c.patchX(sp, sp+1)
			c.patchY(sp, end)
		} else {
			c.patchX(sp, end)
			c.patchY(sp, sp+1)
		}
	}
	return nil
}

// sub compiles a lookaround body into a nested program. Sub-programs
// share the outer capture and loop slot space but keep their own class
// pools and nested subs.
func (c *compiler) sub(body *syntax.Node) (int32, error) {
	sc := &compiler{
		flags:      c.flags,
		groups:     c.groups,
		loops:      c.loops,
		classIndex: make(map[syntax.ClassSet]int),
	}
	if err := sc.node(body); err != nil {
		return 0, err
	}
	sc.emit(OpMatch, 0, 0)

	sub := &Program{
		Insts:     sc.insts,
		NumGroups: c.groups,
		Flags:     c.flags,
		Classes:   sc.classes,
		Subs:      sc.subs,
	}
	c.subs = append(c.subs, sub)
	return int32(len(c.subs) - 1), nil
}

// StartAnchored reports whether every match must begin at the search
// start: the program opens with an absolute input-start assertion.
// Multiline ^ does not qualify.
func (p *Program) StartAnchored() bool {
	for _, in := range p.Insts {
		switch in.Op {
		case OpSaveStart, OpSaveEnd, OpMark:
			continue
		case OpAssertStart:
			return in.X == AssertInput
		default:
			return false
		}
	}
	return false
}
