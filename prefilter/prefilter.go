package prefilter

import (
	"bytes"
	"fmt"

	"github.com/coregx/ahocorasick"

	"github.com/librift/librift/syntax"
)

// Filter locates candidate match starts. Next returns the smallest
// offset at or after from where a match could begin, or -1 when no
// candidate remains. Offsets it skips are guaranteed not to begin a
// match.
type Filter interface {
	Next(input []byte, from int) int
}

// Build derives the cheapest usable scanner for a parsed pattern. It
// returns nil when scanning ahead cannot help: start optimization is
// disabled, the match start is pinned by the Anchored option, or no
// finite set of non-empty start literals exists.
func Build(tree *syntax.Tree, cfg Config) Filter {
	if tree == nil || tree.Root == nil {
		return nil
	}
	if tree.Flags.Has(syntax.NoStartOptimize) || tree.Flags.Has(syntax.Anchored) {
		return nil
	}
	seq := NewExtractor(cfg).Prefixes(tree.Root)
	if seq.IsEmpty() {
		return nil
	}
	seq.Minimize()
	if seq.MinLen() == 0 {
		// An empty start literal admits every position.
		return nil
	}
	return FromSeq(seq)
}

// FromSeq wraps an explicit literal set in a scanner: a byte sweep for
// one single-byte literal, a substring sweep for one longer literal,
// and an Aho-Corasick automaton otherwise. Returns nil for an empty
// set or when the automaton cannot be built.
func FromSeq(seq *Seq) Filter {
	switch {
	case seq.IsEmpty():
		return nil

	case seq.Len() == 1 && seq.Get(0).Len() == 1:
		return &byteScanner{needle: seq.Get(0).Bytes[0]}

	case seq.Len() == 1:
		return newSubstringScanner(seq.Get(0).Bytes)

	default:
		builder := ahocorasick.NewBuilder()
		for i := 0; i < seq.Len(); i++ {
			builder.AddPattern(seq.Get(i).Bytes)
		}
		auto, err := builder.Build()
		if err != nil {
			return nil
		}
		return &multiScanner{auto: auto, patterns: seq.Len()}
	}
}

// byteScanner serves patterns that must start with one fixed byte.
type byteScanner struct {
	needle byte
}

func (s *byteScanner) Next(input []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(input) {
		return -1
	}
	i := bytes.IndexByte(input[from:], s.needle)
	if i < 0 {
		return -1
	}
	return from + i
}

func (s *byteScanner) String() string {
	return fmt.Sprintf("byte(%q)", s.needle)
}

// substringScanner serves patterns with one fixed multi-byte prefix.
// The sweep drives on the needle's rarest byte; every hit is verified
// against the whole needle in place, so a common leading character
// never forces a candidate check per occurrence.
type substringScanner struct {
	needle  []byte
	rare    byte
	rareOff int
}

func newSubstringScanner(needle []byte) *substringScanner {
	s := &substringScanner{needle: append([]byte(nil), needle...)}
	s.rare, s.rareOff = rarest(s.needle)
	return s
}

func (s *substringScanner) Next(input []byte, from int) int {
	if from < 0 {
		from = 0
	}
	at := from + s.rareOff
	for at < len(input) {
		i := bytes.IndexByte(input[at:], s.rare)
		if i < 0 {
			return -1
		}
		at += i
		start := at - s.rareOff
		if start+len(s.needle) <= len(input) &&
			bytes.Equal(input[start:start+len(s.needle)], s.needle) {
			return start
		}
		at++
	}
	return -1
}

func (s *substringScanner) String() string {
	return fmt.Sprintf("substring(%q)", s.needle)
}

// multiScanner runs an Aho-Corasick automaton over the haystack when
// several alternative start literals exist.
type multiScanner struct {
	auto     *ahocorasick.Automaton
	patterns int
}

func (s *multiScanner) Next(input []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(input) {
		return -1
	}
	m := s.auto.Find(input, from)
	if m == nil {
		return -1
	}
	return m.Start
}

func (s *multiScanner) String() string {
	return fmt.Sprintf("multi(%d literals)", s.patterns)
}
