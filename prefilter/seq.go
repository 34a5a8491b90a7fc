// Package prefilter accelerates unanchored search by scanning the
// haystack for byte sequences every match must start with.
//
// The extractor walks a parsed pattern and collects its possible start
// literals: /hello/ yields "hello", /foo|bar/ yields both branches,
// /[ab]c/ expands to "ac" and "bc". When the set is finite and none of
// its members is empty, Build wraps it in the cheapest scanner that can
// locate it:
//
//   - one single-byte literal: a bytes.IndexByte sweep
//   - one longer literal: a sweep on its rarest byte, verified in place
//   - several literals: an Aho-Corasick automaton
//
// A scanner only proposes candidates. Positions it skips are guaranteed
// not to begin a match; positions it reports still need full
// verification by the matcher.
package prefilter

import (
	"bytes"
	"sort"
)

// Literal is one byte sequence a match may start with. Complete means
// extraction saw that alternative through to a point where extension is
// still valid; an incomplete literal is a frozen prefix that must not
// grow during concatenation.
type Literal struct {
	Bytes    []byte
	Complete bool
}

// Len returns the literal's length in bytes.
func (l Literal) Len() int { return len(l.Bytes) }

// Seq is a finite set of alternative start literals. A nil Seq means
// extraction failed and the pattern's match starts cannot be described
// by such a set.
type Seq struct {
	lits []Literal
}

// NewSeq builds a sequence from explicit literals.
func NewSeq(lits ...Literal) *Seq {
	return &Seq{lits: lits}
}

// Len returns the number of literals.
func (s *Seq) Len() int {
	if s == nil {
		return 0
	}
	return len(s.lits)
}

// Get returns the i-th literal.
func (s *Seq) Get(i int) Literal { return s.lits[i] }

// IsEmpty reports whether the sequence holds no literals.
func (s *Seq) IsEmpty() bool {
	return s == nil || len(s.lits) == 0
}

// MinLen returns the length of the shortest literal, 0 for an empty
// sequence.
func (s *Seq) MinLen() int {
	if s.IsEmpty() {
		return 0
	}
	n := len(s.lits[0].Bytes)
	for _, l := range s.lits[1:] {
		if len(l.Bytes) < n {
			n = len(l.Bytes)
		}
	}
	return n
}

// Minimize drops every literal that has another, shorter literal as a
// prefix: any occurrence of the longer one is already found through the
// shorter one.
func (s *Seq) Minimize() {
	if s.IsEmpty() {
		return
	}
	sort.SliceStable(s.lits, func(i, j int) bool {
		return len(s.lits[i].Bytes) < len(s.lits[j].Bytes)
	})
	kept := s.lits[:0]
	for _, lit := range s.lits {
		redundant := false
		for _, k := range kept {
			if bytes.HasPrefix(lit.Bytes, k.Bytes) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, lit)
		}
	}
	s.lits = kept
}

// cross concatenates other onto every complete literal, leaving
// incomplete ones untouched. Literals that outgrow cfg.MaxLiteralLen
// are truncated and frozen. Returns nil when the product exceeds
// cfg.MaxLiterals.
func (s *Seq) cross(other *Seq, cfg Config) *Seq {
	out := make([]Literal, 0, len(s.lits))
	for _, a := range s.lits {
		if !a.Complete {
			out = append(out, a)
			continue
		}
		for _, b := range other.lits {
			joined := make([]byte, 0, len(a.Bytes)+len(b.Bytes))
			joined = append(joined, a.Bytes...)
			joined = append(joined, b.Bytes...)
			lit := Literal{Bytes: joined, Complete: b.Complete}
			if len(lit.Bytes) > cfg.MaxLiteralLen {
				lit.Bytes = lit.Bytes[:cfg.MaxLiteralLen]
				lit.Complete = false
			}
			out = append(out, lit)
			if len(out) > cfg.MaxLiterals {
				return nil
			}
		}
	}
	return &Seq{lits: out}
}

// union appends other's literals. Returns nil when the combined set
// exceeds maxLiterals. A nil receiver acts as an empty sequence.
func (s *Seq) union(other *Seq, maxLiterals int) *Seq {
	var lits []Literal
	if s != nil {
		lits = append(lits, s.lits...)
	}
	if other != nil {
		lits = append(lits, other.lits...)
	}
	if len(lits) > maxLiterals {
		return nil
	}
	return &Seq{lits: lits}
}

// markIncomplete freezes every literal against further extension.
func (s *Seq) markIncomplete() {
	for i := range s.lits {
		s.lits[i].Complete = false
	}
}

// allIncomplete reports whether no literal can be extended further.
func (s *Seq) allIncomplete() bool {
	if s.IsEmpty() {
		return false
	}
	for _, l := range s.lits {
		if l.Complete {
			return false
		}
	}
	return true
}
