package syntax

// ClassSet is a 256-bit membership bitmap over byte values. It is the
// parsed form of a character class and the pooled form the compiled
// program carries.
type ClassSet [32]byte

// Add inserts a single byte.
func (s *ClassSet) Add(b byte) {
	s[b>>3] |= 1 << (b & 7)
}

// AddRange inserts every byte in [lo, hi]. An inverted range is a no-op;
// the parser validates ranges before calling.
func (s *ClassSet) AddRange(lo, hi byte) {
	for b := int(lo); b <= int(hi); b++ {
		s.Add(byte(b))
	}
}

// Contains reports membership of b.
func (s *ClassSet) Contains(b byte) bool {
	return s[b>>3]&(1<<(b&7)) != 0
}

// Negate flips membership of every byte value.
func (s *ClassSet) Negate() {
	for i := range s {
		s[i] = ^s[i]
	}
}

// Union adds every member of other.
func (s *ClassSet) Union(other *ClassSet) {
	for i := range s {
		s[i] |= other[i]
	}
}

// Fold closes the set under ASCII case: for every cased letter present,
// its counterpart is added.
func (s *ClassSet) Fold() {
	for b := byte('A'); b <= 'Z'; b++ {
		if s.Contains(b) {
			s.Add(b + 'a' - 'A')
		}
	}
	for b := byte('a'); b <= 'z'; b++ {
		if s.Contains(b) {
			s.Add(b - ('a' - 'A'))
		}
	}
}

// IsEmpty reports whether no byte is a member.
func (s *ClassSet) IsEmpty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of member bytes.
func (s *ClassSet) Count() int {
	n := 0
	for b := 0; b < 256; b++ {
		if s.Contains(byte(b)) {
			n++
		}
	}
	return n
}

// Shorthand class constructors. Each returns a fresh set so callers may
// mutate the result.

// DigitClass is \d: [0-9].
func DigitClass() ClassSet {
	var s ClassSet
	s.AddRange('0', '9')
	return s
}

// WordClass is \w: [0-9A-Za-z_].
func WordClass() ClassSet {
	var s ClassSet
	s.AddRange('0', '9')
	s.AddRange('A', 'Z')
	s.AddRange('a', 'z')
	s.Add('_')
	return s
}

// SpaceClass is \s: [\t\n\v\f\r ].
func SpaceClass() ClassSet {
	var s ClassSet
	for _, b := range []byte{'\t', '\n', '\v', '\f', '\r', ' '} {
		s.Add(b)
	}
	return s
}

// BSRClass is the single-byte repertoire of \R. CRLF pairs are handled
// separately by the compiler; this set covers the lone-byte breaks:
// CR and LF always, plus VT, FF, and NEL unless restricted to CRLF.
func BSRClass(anyCRLFOnly bool) ClassSet {
	var s ClassSet
	s.Add('\r')
	s.Add('\n')
	if !anyCRLFOnly {
		s.Add('\v')
		s.Add('\f')
		s.Add(0x85)
	}
	return s
}

// IsWordByte reports the \b word-character predicate for a single byte.
func IsWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z')
}

// PosixClass returns the named POSIX class ([:alpha:] and friends).
// The second result is false for an unknown name.
func PosixClass(name string) (ClassSet, bool) {
	var s ClassSet
	switch name {
	case "alnum":
		s.AddRange('0', '9')
		s.AddRange('A', 'Z')
		s.AddRange('a', 'z')
	case "alpha":
		s.AddRange('A', 'Z')
		s.AddRange('a', 'z')
	case "ascii":
		s.AddRange(0, 0x7F)
	case "blank":
		s.Add(' ')
		s.Add('\t')
	case "cntrl":
		s.AddRange(0, 0x1F)
		s.Add(0x7F)
	case "digit":
		s.AddRange('0', '9')
	case "graph":
		s.AddRange(0x21, 0x7E)
	case "lower":
		s.AddRange('a', 'z')
	case "print":
		s.AddRange(0x20, 0x7E)
	case "punct":
		s.AddRange(0x21, 0x2F)
		s.AddRange(0x3A, 0x40)
		s.AddRange(0x5B, 0x60)
		s.AddRange(0x7B, 0x7E)
	case "space":
		for _, b := range []byte{'\t', '\n', '\v', '\f', '\r', ' '} {
			s.Add(b)
		}
	case "upper":
		s.AddRange('A', 'Z')
	case "word":
		s = WordClass()
	case "xdigit":
		s.AddRange('0', '9')
		s.AddRange('A', 'F')
		s.AddRange('a', 'f')
	default:
		return s, false
	}
	return s, true
}
