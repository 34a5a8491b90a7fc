// Package bytecode defines the compiled program form and the compiler
// that lowers a parsed tree into it.
//
// A program is a flat instruction vector executed by the vm package.
// Control flow is expressed with relative jumps; SPLIT orders its two
// targets by preference, with the second taken on backtrack. Character
// classes are interned in a per-program pool and lookarounds compile to
// nested sub-programs sharing the outer capture-slot space.
package bytecode

import "fmt"

// Opcode selects an instruction's operation. Values are wire-stable:
// serialized programs store them verbatim, so new opcodes are appended,
// never renumbered. Zero is deliberately unused so an all-zero
// instruction cannot decode to anything.
type Opcode uint8

const (
	// OpChar matches one byte. X is the byte; Y&1 requests ASCII
	// case-folded comparison.
	OpChar Opcode = iota + 1

	// OpAny matches any byte or rune. Y carries AnyDotAll and AnyUTF8.
	OpAny

	// OpClass matches one byte against the class pool entry X.
	OpClass

	// OpMatch reports overall success at the current position.
	OpMatch

	// OpFail backtracks unconditionally.
	OpFail

	// OpJmp transfers to PC+X.
	OpJmp

	// OpSplit tries PC+X first, pushing PC+Y as the backtrack target.
	OpSplit

	// OpSaveStart records the current position as the start of group X.
	OpSaveStart

	// OpSaveEnd records the current position as the end of group X.
	OpSaveEnd

	// OpBackref matches the text captured by group X. Y&1 requests
	// case-folded comparison. An unset group backtracks.
	OpBackref

	// OpAssertStart is the zero-width start assertion; X is an AssertKind.
	OpAssertStart

	// OpAssertEnd is the zero-width end assertion; X is an AssertKind.
	OpAssertEnd

	// OpAssertWordBoundary asserts a word boundary, or with X=1 the
	// absence of one.
	OpAssertWordBoundary

	// OpLookahead runs sub-program X forward from the current position.
	// Y&1 negates the requirement. Zero-width.
	OpLookahead

	// OpLookbehind runs sub-program X so that it ends exactly at the
	// current position, trying window widths within the sub-program's
	// static bounds. Y&1 negates. Zero-width.
	OpLookbehind

	// OpMark opens an atomic region by pushing a barrier entry.
	OpMark

	// OpCut closes an atomic region, discarding backtrack entries pushed
	// since the matching OpMark.
	OpCut

	// OpLoopSave stores the current position in loop slot X. Paired with
	// OpLoopCheck to stop unbounded loops whose body matched emptily.
	OpLoopSave

	// OpLoopCheck jumps to PC+Y when the position still equals loop slot
	// X, breaking out of a stagnant iteration.
	OpLoopCheck
)

var opcodeNames = [...]string{
	OpChar:               "CHAR",
	OpAny:                "ANY",
	OpClass:              "CLASS",
	OpMatch:              "MATCH",
	OpFail:               "FAIL",
	OpJmp:                "JMP",
	OpSplit:              "SPLIT",
	OpSaveStart:          "SAVE_START",
	OpSaveEnd:            "SAVE_END",
	OpBackref:            "BACKREF",
	OpAssertStart:        "ASSERT_START",
	OpAssertEnd:          "ASSERT_END",
	OpAssertWordBoundary: "ASSERT_WB",
	OpLookahead:          "LOOKAHEAD",
	OpLookbehind:         "LOOKBEHIND",
	OpMark:               "MARK",
	OpCut:                "CUT",
	OpLoopSave:           "LOOP_SAVE",
	OpLoopCheck:          "LOOP_CHECK",
}

// String returns the opcode's mnemonic.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return op >= OpChar && op <= OpLoopCheck
}

// AssertKind is the X operand of the start and end assertions.
const (
	// AssertInput anchors to the absolute input boundary (\A, \z).
	AssertInput int32 = 0
	// AssertLine also accepts line boundaries (multiline ^ and $).
	AssertLine int32 = 1
	// AssertEndOrBreak accepts the input end or the position before a
	// final line break (\Z and the default $).
	AssertEndOrBreak int32 = 2
)

// OpAny Y bits.
const (
	// AnyDotAll lifts the line-break exclusion.
	AnyDotAll int32 = 1 << 0
	// AnyUTF8 consumes one well-formed rune instead of one byte.
	AnyUTF8 int32 = 1 << 1
)

// foldCompare is the Y bit requesting ASCII case-folded comparison on
// OpChar and OpBackref.
const foldCompare int32 = 1

// Inst is one fixed-width instruction. X and Y are interpreted per
// opcode; jump operands are relative to the instruction holding them.
type Inst struct {
	Op   Opcode
	X, Y int32
}

// String renders the instruction in disassembly form.
func (in Inst) String() string {
	switch in.Op {
	case OpChar:
		if in.Y&foldCompare != 0 {
			return fmt.Sprintf("CHAR %q /i", byte(in.X))
		}
		return fmt.Sprintf("CHAR %q", byte(in.X))
	case OpAny:
		return fmt.Sprintf("ANY %d", in.Y)
	case OpClass:
		return fmt.Sprintf("CLASS %d", in.X)
	case OpMatch, OpFail, OpMark, OpCut:
		return in.Op.String()
	case OpJmp:
		return fmt.Sprintf("JMP %+d", in.X)
	case OpSplit:
		return fmt.Sprintf("SPLIT %+d, %+d", in.X, in.Y)
	case OpSaveStart, OpSaveEnd, OpLoopSave:
		return fmt.Sprintf("%s %d", in.Op, in.X)
	case OpBackref:
		if in.Y&foldCompare != 0 {
			return fmt.Sprintf("BACKREF %d /i", in.X)
		}
		return fmt.Sprintf("BACKREF %d", in.X)
	case OpAssertStart, OpAssertEnd:
		return fmt.Sprintf("%s %d", in.Op, in.X)
	case OpAssertWordBoundary:
		if in.X != 0 {
			return "ASSERT_WB neg"
		}
		return "ASSERT_WB"
	case OpLookahead, OpLookbehind:
		if in.Y&foldCompare != 0 {
			return fmt.Sprintf("%s sub=%d neg", in.Op, in.X)
		}
		return fmt.Sprintf("%s sub=%d", in.Op, in.X)
	case OpLoopCheck:
		return fmt.Sprintf("LOOP_CHECK %d, %+d", in.X, in.Y)
	default:
		return fmt.Sprintf("%s %d, %d", in.Op, in.X, in.Y)
	}
}
