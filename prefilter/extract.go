package prefilter

import (
	"github.com/librift/librift/syntax"
)

// Config bounds literal extraction. Extraction abandons a pattern
// rather than exceed these caps.
type Config struct {
	// MaxLiterals caps the number of alternative literals.
	MaxLiterals int

	// MaxLiteralLen caps the length of a single literal; longer ones
	// are truncated and frozen.
	MaxLiteralLen int

	// MaxClassSize caps how many members a character class may have
	// and still be expanded into alternatives.
	MaxClassSize int
}

// DefaultConfig returns the caps Build extracts under.
func DefaultConfig() Config {
	return Config{
		MaxLiterals:   64,
		MaxLiteralLen: 64,
		MaxClassSize:  8,
	}
}

// maxExtractDepth bounds AST recursion independently of the parser's
// own nesting checks.
const maxExtractDepth = 100

// Extractor derives the literal set a match can start with.
type Extractor struct {
	cfg Config
}

// NewExtractor returns an extractor operating under cfg.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Prefixes returns the start literals of the subtree rooted at n, or
// nil when no finite set describes them. Every match of the subtree
// begins with one of the returned literals; the converse does not hold.
func (e *Extractor) Prefixes(n *syntax.Node) *Seq {
	return e.prefixes(n, 0)
}

func (e *Extractor) prefixes(n *syntax.Node, depth int) *Seq {
	if n == nil || depth > maxExtractDepth {
		return nil
	}
	switch n.Kind {
	case syntax.NodeRoot, syntax.NodeConcat,
		syntax.NodeGroup, syntax.NodeNonCapGroup, syntax.NodeAtomicGroup:
		return e.concat(n.Children, depth+1)

	case syntax.NodeAlternation:
		return e.alternation(n.Children, depth+1)

	case syntax.NodeLiteral:
		return e.literal(n)

	case syntax.NodeClass:
		return e.class(&n.Class)

	case syntax.NodeAnyBreak:
		return e.anyBreak(n)

	case syntax.NodeQuantifier:
		return e.quantifier(n, depth+1)

	case syntax.NodeAnchorStart, syntax.NodeAnchorEnd,
		syntax.NodeInputStart, syntax.NodeInputEnd,
		syntax.NodeWordBoundary, syntax.NodeNotWordBoundary,
		syntax.NodeLookahead, syntax.NodeLookbehind,
		syntax.NodeBackrefReset:
		// Zero-width: constrains the match without consuming bytes.
		return NewSeq(Literal{Complete: true})

	default:
		// Dot and backreferences admit arbitrary bytes.
		return nil
	}
}

// concat threads the children left to right, extending every literal
// that is still open. An unknown child freezes the set instead of
// poisoning it: the bytes gathered so far remain a valid prefix.
func (e *Extractor) concat(children []*syntax.Node, depth int) *Seq {
	seq := NewSeq(Literal{Complete: true})
	for _, c := range children {
		if seq.allIncomplete() {
			break
		}
		cs := e.prefixes(c, depth)
		if cs == nil {
			seq.markIncomplete()
			break
		}
		seq = seq.cross(cs, e.cfg)
		if seq == nil {
			return nil
		}
	}
	return seq
}

// alternation unions the branch sets. A single branch without a finite
// set invalidates the whole alternation, since the scanner must cover
// every way a match can start.
func (e *Extractor) alternation(children []*syntax.Node, depth int) *Seq {
	var out *Seq
	for _, c := range children {
		cs := e.prefixes(c, depth)
		if cs == nil {
			return nil
		}
		out = out.union(cs, e.cfg.MaxLiterals)
		if out == nil {
			return nil
		}
	}
	return out
}

func (e *Extractor) literal(n *syntax.Node) *Seq {
	if n.Flags.Has(syntax.CaseInsensitive) {
		if lower, upper, ok := casePair(n.Byte); ok {
			return NewSeq(
				Literal{Bytes: []byte{lower}, Complete: true},
				Literal{Bytes: []byte{upper}, Complete: true},
			)
		}
	}
	return NewSeq(Literal{Bytes: []byte{n.Byte}, Complete: true})
}

// class expands a small character class into one literal per member.
// The parser has already applied case folding and negation to the
// bitmap.
func (e *Extractor) class(set *syntax.ClassSet) *Seq {
	if set.Count() > e.cfg.MaxClassSize {
		return nil
	}
	var lits []Literal
	for b := 0; b < 256; b++ {
		if set.Contains(byte(b)) {
			lits = append(lits, Literal{Bytes: []byte{byte(b)}, Complete: true})
		}
	}
	if len(lits) == 0 {
		return nil
	}
	return NewSeq(lits...)
}

// anyBreak expands \R into the CRLF pair plus the lone break bytes of
// the effective backslash-R mode.
func (e *Extractor) anyBreak(n *syntax.Node) *Seq {
	cls := syntax.BSRClass(n.Flags.BSRMode())
	lits := []Literal{{Bytes: []byte("\r\n"), Complete: true}}
	for b := 0; b < 256; b++ {
		if cls.Contains(byte(b)) {
			lits = append(lits, Literal{Bytes: []byte{byte(b)}, Complete: true})
		}
	}
	return NewSeq(lits...)
}

// quantifier reduces x{m,n} to its first iteration. Repeatable bodies
// are frozen because a second iteration may follow the first; an
// optional construct contributes the empty literal alongside.
func (e *Extractor) quantifier(n *syntax.Node, depth int) *Seq {
	if n.Max == 0 {
		return NewSeq(Literal{Complete: true})
	}
	child := e.prefixes(n.Children[0], depth)
	if child != nil && n.Max != 1 {
		child.markIncomplete()
	}
	if n.Min > 0 {
		return child
	}
	if child == nil {
		return nil
	}
	return NewSeq(Literal{Complete: true}).union(child, e.cfg.MaxLiterals)
}

// casePair returns both ASCII cases of a letter.
func casePair(b byte) (lower, upper byte, ok bool) {
	switch {
	case b >= 'a' && b <= 'z':
		return b, b - 'a' + 'A', true
	case b >= 'A' && b <= 'Z':
		return b + 'a' - 'A', b, true
	}
	return 0, 0, false
}
