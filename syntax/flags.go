// Package syntax implements the compile-time half of the engine: option
// flags, the pattern tokenizer, the abstract syntax tree, and the parser
// that turns a token stream into a validated tree.
//
// The package is deliberately free of execution concerns. Its output — a
// *Root with group bookkeeping and per-node flag snapshots — is consumed
// by the bytecode compiler.
package syntax

import (
	"strings"

	"github.com/librift/librift/rifterr"
)

// Flags is the bit-set of compilation and matching options. The bit values
// are wire-stable: they appear verbatim in serialized programs.
type Flags uint32

const (
	// CaseInsensitive makes literals, classes, and backreferences match
	// without regard to ASCII case.
	CaseInsensitive Flags = 0x00000001

	// Multiline makes ^ and $ match at line boundaries as well as at the
	// input boundaries.
	Multiline Flags = 0x00000002

	// DotAll makes . match line-break bytes.
	DotAll Flags = 0x00000004

	// Extended ignores unescaped whitespace and #-comments in the pattern.
	Extended Flags = 0x00000008

	// Anchored pins the match start to the search start position.
	Anchored Flags = 0x00000010

	// DollarEndOnly makes $ match only at the very end of input, not
	// before a trailing line break.
	DollarEndOnly Flags = 0x00000020

	// Ungreedy inverts the greediness of un-annotated quantifiers.
	Ungreedy Flags = 0x00000040

	// UTF8 declares the pattern and input to be UTF-8.
	UTF8 Flags = 0x00000080

	// NoAutoCapture makes bare (…) groups non-capturing; only named
	// groups capture.
	NoAutoCapture Flags = 0x00000100

	// DupNames permits several groups to share one name.
	DupNames Flags = 0x00001000

	// Newline modes. At most one may be set; unset means NewlineLF.
	NewlineCR      Flags = 0x00002000
	NewlineLF      Flags = 0x00004000
	NewlineCRLF    Flags = 0x00008000
	NewlineAny     Flags = 0x00010000
	NewlineAnyCRLF Flags = 0x00020000

	// Backslash-R modes. At most one may be set; unset means BSRUnicode.
	BSRAnyCRLF Flags = 0x00040000
	BSRUnicode Flags = 0x00080000

	// UCP requests Unicode property support for \p{…}. The engine
	// recognizes the syntax but matching stays byte-oriented, so
	// compiling a \p escape reports an unsupported-feature diagnostic.
	UCP Flags = 0x00200000

	// NoStartOptimize disables the literal prefilter for unanchored
	// searches.
	NoStartOptimize Flags = 0x00400000

	// Rift enables the extended r'…' / r"…" quoting syntax.
	Rift Flags = 0x40000000
)

const newlineMask = NewlineCR | NewlineLF | NewlineCRLF | NewlineAny | NewlineAnyCRLF

const bsrMask = BSRAnyCRLF | BSRUnicode

// flagLetters maps single-letter modifiers in their canonical emission
// order. The letter set follows the original engine (i m s x U r) extended
// with the remaining documented options.
var flagLetters = []struct {
	letter byte
	flag   Flags
}{
	{'i', CaseInsensitive},
	{'m', Multiline},
	{'s', DotAll},
	{'x', Extended},
	{'A', Anchored},
	{'D', DollarEndOnly},
	{'U', Ungreedy},
	{'u', UTF8},
	{'n', NoAutoCapture},
	{'J', DupNames},
	{'r', Rift},
}

// flagVerbs maps parenthesized modifiers, for options with no letter form.
var flagVerbs = []struct {
	name string
	flag Flags
}{
	{"CR", NewlineCR},
	{"LF", NewlineLF},
	{"CRLF", NewlineCRLF},
	{"ANY", NewlineAny},
	{"ANYCRLF", NewlineAnyCRLF},
	{"BSR_ANYCRLF", BSRAnyCRLF},
	{"BSR_UNICODE", BSRUnicode},
	{"UCP", UCP},
	{"NO_START_OPT", NoStartOptimize},
}

// ParseModifiers decodes a modifier string such as "imx" or
// "im(CRLF)(UCP)" into a flag set. Letters and verbs may repeat; within a
// mutually exclusive group the last occurrence wins. Unknown letters and
// verbs are rejected with an invalid-argument diagnostic whose position is
// the offset of the offending modifier.
func ParseModifiers(s string) (Flags, error) {
	var f Flags
	for i := 0; i < len(s); {
		c := s[i]
		if c == '(' {
			end := strings.IndexByte(s[i:], ')')
			if end < 0 {
				return 0, rifterr.New(rifterr.KindInvalidArgument, i, "unterminated modifier verb")
			}
			name := s[i+1 : i+end]
			verb, ok := lookupVerb(name)
			if !ok {
				return 0, rifterr.Newf(rifterr.KindInvalidArgument, i, "unknown modifier verb %q", name)
			}
			f = f.set(verb)
			i += end + 1
			continue
		}
		letter, ok := lookupLetter(c)
		if !ok {
			return 0, rifterr.Newf(rifterr.KindInvalidArgument, i, "unknown modifier %q", string(c))
		}
		f = f.set(letter)
		i++
	}
	return f, nil
}

// Modifiers serializes the flag set back to modifier-string form. The
// result round-trips: ParseModifiers(f.Modifiers()) equals f.Resolve().
func (f Flags) Modifiers() string {
	f = f.Resolve()
	var b strings.Builder
	for _, e := range flagLetters {
		if f&e.flag != 0 {
			b.WriteByte(e.letter)
		}
	}
	for _, e := range flagVerbs {
		if f&e.flag != 0 {
			b.WriteByte('(')
			b.WriteString(e.name)
			b.WriteByte(')')
		}
	}
	return b.String()
}

// set ors in flag, clearing the rest of its exclusive group first so that
// later modifiers override earlier ones.
func (f Flags) set(flag Flags) Flags {
	if flag&newlineMask != 0 {
		f &^= newlineMask
	}
	if flag&bsrMask != 0 {
		f &^= bsrMask
	}
	return f | flag
}

// Compatible reports whether the flag set is internally consistent: at
// most one newline mode and at most one backslash-R mode.
func (f Flags) Compatible() error {
	if n := f & newlineMask; n&(n-1) != 0 {
		return rifterr.New(rifterr.KindInvalidArgument, rifterr.NoPos, "conflicting newline modes")
	}
	if n := f & bsrMask; n&(n-1) != 0 {
		return rifterr.New(rifterr.KindInvalidArgument, rifterr.NoPos, "conflicting backslash-R modes")
	}
	return nil
}

// Resolve normalizes an inconsistent flag set: within each mutually
// exclusive group, the mode latest in declaration order survives. A
// compatible set is returned unchanged.
func (f Flags) Resolve() Flags {
	if n := f & newlineMask; n&(n-1) != 0 {
		f = f&^newlineMask | highestBit(n)
	}
	if n := f & bsrMask; n&(n-1) != 0 {
		f = f&^bsrMask | highestBit(n)
	}
	return f
}

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// NewlineMode returns the effective line-break convention.
func (f Flags) NewlineMode() NewlineMode {
	switch f & newlineMask {
	case NewlineCR:
		return BreakCR
	case NewlineCRLF:
		return BreakCRLF
	case NewlineAny:
		return BreakAny
	case NewlineAnyCRLF:
		return BreakAnyCRLF
	default:
		return BreakLF
	}
}

// BSRMode reports whether \R matches only CR, LF, and CRLF (true) or the
// full line-break repertoire (false, the default).
func (f Flags) BSRMode() (anyCRLFOnly bool) {
	return f&BSRAnyCRLF != 0
}

func lookupLetter(c byte) (Flags, bool) {
	for _, e := range flagLetters {
		if e.letter == c {
			return e.flag, true
		}
	}
	return 0, false
}

func lookupVerb(name string) (Flags, bool) {
	for _, e := range flagVerbs {
		if e.name == name {
			return e.flag, true
		}
	}
	return 0, false
}

func highestBit(f Flags) Flags {
	for f&(f-1) != 0 {
		f &= f - 1
	}
	return f
}

// NewlineMode is the resolved line-break convention used by anchors and
// by dot exclusion.
type NewlineMode uint8

const (
	// BreakLF treats \n as the line break (the default).
	BreakLF NewlineMode = iota
	// BreakCR treats \r as the line break.
	BreakCR
	// BreakCRLF treats only the two-byte \r\n sequence as a line break.
	BreakCRLF
	// BreakAny treats \r, \n, \v, \f, \x85, and \r\n as line breaks.
	BreakAny
	// BreakAnyCRLF treats \r, \n, and \r\n as line breaks.
	BreakAnyCRLF
)

// BreakAt returns the length of the line-break sequence starting at pos,
// or 0 if none starts there. CRLF counts as a single two-byte break in
// every mode that recognizes it.
func (m NewlineMode) BreakAt(input []byte, pos int) int {
	if pos >= len(input) {
		return 0
	}
	b := input[pos]
	switch m {
	case BreakLF:
		if b == '\n' {
			return 1
		}
	case BreakCR:
		if b == '\r' {
			return 1
		}
	case BreakCRLF:
		if b == '\r' && pos+1 < len(input) && input[pos+1] == '\n' {
			return 2
		}
	case BreakAny:
		if b == '\r' {
			if pos+1 < len(input) && input[pos+1] == '\n' {
				return 2
			}
			return 1
		}
		if b == '\n' || b == '\v' || b == '\f' || b == 0x85 {
			return 1
		}
	case BreakAnyCRLF:
		if b == '\r' {
			if pos+1 < len(input) && input[pos+1] == '\n' {
				return 2
			}
			return 1
		}
		if b == '\n' {
			return 1
		}
	}
	return 0
}

// BreakEndingAt returns the length of the line-break sequence that ends
// exactly at pos, or 0 if none does.
func (m NewlineMode) BreakEndingAt(input []byte, pos int) int {
	if pos >= 2 && m.BreakAt(input, pos-2) == 2 {
		return 2
	}
	if pos >= 1 && m.BreakAt(input, pos-1) == 1 {
		return 1
	}
	return 0
}

// ExcludesFromDot reports whether a dot without DotAll refuses byte b
// under this convention.
func (m NewlineMode) ExcludesFromDot(b byte) bool {
	switch m {
	case BreakLF:
		return b == '\n'
	case BreakCR:
		return b == '\r'
	case BreakCRLF, BreakAnyCRLF:
		return b == '\r' || b == '\n'
	case BreakAny:
		return b == '\r' || b == '\n' || b == '\v' || b == '\f' || b == 0x85
	}
	return false
}
