package syntax

import (
	"strings"

	"github.com/librift/librift/rifterr"
)

// Tokenizer scans a pattern left to right, one token per Next call. It is
// single-pass and not restartable; after End (or an Error token) every
// subsequent call returns End.
//
// The tokenizer decodes escapes, recognizes group-start syntax, scans
// quantifier braces, and captures character-class bodies raw. Grammar-level
// judgments (bound validity, backreference targets, option scoping) belong
// to the parser.
type Tokenizer struct {
	pattern string
	pos     int
	flags   Flags

	// riftDelim is the active rift-quote delimiter, 0 when outside one.
	riftDelim byte

	done bool
}

// NewTokenizer returns a tokenizer over pattern with the given starting
// flags. Extended and Rift are the only flags the tokenizer itself
// consults.
func NewTokenizer(pattern string, flags Flags) *Tokenizer {
	return &Tokenizer{pattern: pattern, flags: flags}
}

// SetFlags updates the flags mid-scan. The parser calls this when inline
// options change the Extended setting.
func (t *Tokenizer) SetFlags(flags Flags) {
	t.flags = flags
}

// Pos returns the current byte offset.
func (t *Tokenizer) Pos() int {
	return t.pos
}

// Next returns the next token. The End token is sticky.
func (t *Tokenizer) Next() Token {
	if t.done {
		return Token{Kind: TokenEnd, Pos: t.pos}
	}
	if t.flags.Has(Extended) {
		t.skipExtended()
	}
	if t.pos >= len(t.pattern) {
		t.done = true
		return Token{Kind: TokenEnd, Pos: t.pos}
	}

	// Rift quoting wraps the whole pattern: recognize the opener only at
	// the very start of the scan.
	if t.pos == 0 {
		if tok, ok := t.scanRiftStart(); ok {
			return tok
		}
	}

	start := t.pos
	c := t.pattern[t.pos]

	if t.riftDelim != 0 && c == t.riftDelim {
		return t.scanRiftEnd()
	}

	switch c {
	case '.':
		t.pos++
		return Token{Kind: TokenDot, Pos: start, Lexeme: "."}
	case '^':
		t.pos++
		return Token{Kind: TokenCaret, Pos: start, Lexeme: "^"}
	case '$':
		t.pos++
		return Token{Kind: TokenDollar, Pos: start, Lexeme: "$"}
	case '*', '+', '?':
		return t.scanQuantChar(c)
	case '|':
		t.pos++
		return Token{Kind: TokenPipe, Pos: start, Lexeme: "|"}
	case '(':
		return t.scanGroupStart()
	case ')':
		t.pos++
		return Token{Kind: TokenRParen, Pos: start, Lexeme: ")"}
	case '[':
		return t.scanClass()
	case ']':
		t.pos++
		return Token{Kind: TokenRBracket, Pos: start, Lexeme: "]"}
	case '{':
		return t.scanBraces()
	case '}':
		t.pos++
		return Token{Kind: TokenRBrace, Pos: start, Lexeme: "}"}
	case ',':
		t.pos++
		return Token{Kind: TokenComma, Pos: start, Lexeme: ","}
	case '\\':
		return t.scanEscape()
	default:
		t.pos++
		return Token{Kind: TokenLiteral, Pos: start, Lexeme: t.pattern[start:t.pos], Byte: c}
	}
}

// skipExtended consumes unescaped whitespace and #-comments.
func (t *Tokenizer) skipExtended() {
	for t.pos < len(t.pattern) {
		switch t.pattern[t.pos] {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			t.pos++
		case '#':
			for t.pos < len(t.pattern) && t.pattern[t.pos] != '\n' {
				t.pos++
			}
		default:
			return
		}
	}
}

// scanRiftStart recognizes the r'…' / R"…" opener. Without the Rift flag
// a fully formed wrapper is an unsupported feature; a bare r stays a
// literal.
func (t *Tokenizer) scanRiftStart() (Token, bool) {
	if len(t.pattern) < 2 {
		return Token{}, false
	}
	c := t.pattern[0]
	if c != 'r' && c != 'R' {
		return Token{}, false
	}
	delim := t.pattern[1]
	if delim != '\'' && delim != '"' {
		return Token{}, false
	}
	if !t.flags.Has(Rift) {
		if t.closesRiftQuote(delim) {
			t.done = true
			err := rifterr.New(rifterr.KindUnsupportedFeature, 0, "rift quoting requires the Rift flag")
			return Token{Kind: TokenError, Pos: 0, Err: err}, true
		}
		return Token{}, false
	}
	t.riftDelim = delim
	t.pos = 2
	return Token{Kind: TokenRiftQuoteStart, Pos: 0, Lexeme: t.pattern[:2], Byte: delim}, true
}

// closesRiftQuote reports whether an unescaped delim appears after the
// two-byte opener.
func (t *Tokenizer) closesRiftQuote(delim byte) bool {
	for i := 2; i < len(t.pattern); i++ {
		switch t.pattern[i] {
		case '\\':
			i++
		case delim:
			return true
		}
	}
	return false
}

// scanRiftEnd consumes the closing delimiter plus any trailing modifier
// letters, which ride on the token's Set field.
func (t *Tokenizer) scanRiftEnd() Token {
	start := t.pos
	delim := t.riftDelim
	t.riftDelim = 0
	t.pos++

	var set Flags
	for t.pos < len(t.pattern) {
		f, ok := lookupLetter(t.pattern[t.pos])
		if !ok {
			t.done = true
			err := rifterr.Newf(rifterr.KindSyntax, t.pos,
				"unexpected %q after rift quote", string(t.pattern[t.pos]))
			return Token{Kind: TokenError, Pos: t.pos, Err: err}
		}
		set = set.set(f)
		t.pos++
	}
	return Token{Kind: TokenRiftQuoteEnd, Pos: start, Lexeme: t.pattern[start:t.pos], Byte: delim, Set: set}
}

// scanQuantChar handles * + ? with optional lazy/possessive suffix.
func (t *Tokenizer) scanQuantChar(c byte) Token {
	start := t.pos
	t.pos++

	min, max := 0, -1
	switch c {
	case '+':
		min = 1
	case '?':
		max = 1
	}

	if t.pos < len(t.pattern) {
		switch t.pattern[t.pos] {
		case '?':
			t.pos++
			return Token{Kind: TokenQuantifier, Pos: start, Lexeme: t.pattern[start:t.pos],
				Min: min, Max: max, Greedy: false}
		case '+':
			t.pos++
			return Token{Kind: TokenQuantifier, Pos: start, Lexeme: t.pattern[start:t.pos],
				Min: min, Max: max, Greedy: true, Possessive: true}
		}
	}

	kind := TokenStar
	switch c {
	case '+':
		kind = TokenPlus
	case '?':
		kind = TokenQuestion
	}
	return Token{Kind: kind, Pos: start, Lexeme: t.pattern[start:t.pos]}
}

// scanBraces recognizes {m}, {m,}, and {m,n} with optional lazy or
// possessive suffix. Anything else leaves the brace as a plain token.
func (t *Tokenizer) scanBraces() Token {
	start := t.pos
	i := t.pos + 1

	min, mok, i := scanInt(t.pattern, i)
	if !mok {
		t.pos++
		return Token{Kind: TokenLBrace, Pos: start, Lexeme: "{"}
	}
	max := min
	if i < len(t.pattern) && t.pattern[i] == ',' {
		i++
		max = -1
		if n, ok, j := scanInt(t.pattern, i); ok {
			max, i = n, j
		}
	}
	if i >= len(t.pattern) || t.pattern[i] != '}' {
		t.pos++
		return Token{Kind: TokenLBrace, Pos: start, Lexeme: "{"}
	}
	i++

	greedy, possessive := true, false
	if i < len(t.pattern) {
		switch t.pattern[i] {
		case '?':
			greedy = false
			i++
		case '+':
			possessive = true
			i++
		}
	}
	t.pos = i
	return Token{Kind: TokenQuantifier, Pos: start, Lexeme: t.pattern[start:i],
		Min: min, Max: max, Greedy: greedy, Possessive: possessive}
}

// scanInt reads a decimal run starting at i. Overflow saturates; the
// parser rejects out-of-range bounds.
func scanInt(s string, i int) (n int, ok bool, next int) {
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		if n < 1<<24 {
			n = n*10 + int(s[i]-'0')
		}
		i++
	}
	return n, i > start, i
}

// scanClass captures a raw class body through the closing bracket. A ']'
// directly after '[' or '[^' is a literal member; POSIX [:name:] items
// keep their brackets inside the body.
func (t *Tokenizer) scanClass() Token {
	start := t.pos
	i := t.pos + 1
	if i < len(t.pattern) && t.pattern[i] == '^' {
		i++
	}
	if i < len(t.pattern) && t.pattern[i] == ']' {
		i++
	}
	for i < len(t.pattern) {
		switch t.pattern[i] {
		case '\\':
			i += 2
			continue
		case '[':
			if i+1 < len(t.pattern) && t.pattern[i+1] == ':' {
				if end := strings.Index(t.pattern[i+2:], ":]"); end >= 0 {
					i += 2 + end + 2
					continue
				}
			}
			i++
			continue
		case ']':
			body := t.pattern[start+1 : i]
			t.pos = i + 1
			return Token{Kind: TokenCharClass, Pos: start, Lexeme: body}
		default:
			i++
		}
	}
	t.done = true
	err := rifterr.New(rifterr.KindUnclosedClass, len(t.pattern), "missing ']'")
	return Token{Kind: TokenError, Pos: start, Err: err}
}

// scanGroupStart classifies '(' and the (?… constructs.
func (t *Tokenizer) scanGroupStart() Token {
	start := t.pos
	if t.pos+1 >= len(t.pattern) || t.pattern[t.pos+1] != '?' {
		t.pos++
		return Token{Kind: TokenLParen, Pos: start, Lexeme: "("}
	}

	// Past "(?".
	i := t.pos + 2
	if i >= len(t.pattern) {
		t.done = true
		err := rifterr.New(rifterr.KindUnclosedGroup, start, "dangling (?")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}

	switch t.pattern[i] {
	case ':':
		t.pos = i + 1
		return Token{Kind: TokenGroupStart, Pos: start, Group: GroupNonCapturing,
			Lexeme: t.pattern[start:t.pos]}
	case '=':
		t.pos = i + 1
		return Token{Kind: TokenGroupStart, Pos: start, Group: GroupLookaheadPos,
			Lexeme: t.pattern[start:t.pos]}
	case '!':
		t.pos = i + 1
		return Token{Kind: TokenGroupStart, Pos: start, Group: GroupLookaheadNeg,
			Lexeme: t.pattern[start:t.pos]}
	case '>':
		t.pos = i + 1
		return Token{Kind: TokenGroupStart, Pos: start, Group: GroupAtomic,
			Lexeme: t.pattern[start:t.pos]}
	case '#':
		end := strings.IndexByte(t.pattern[i:], ')')
		if end < 0 {
			t.done = true
			err := rifterr.New(rifterr.KindUnclosedGroup, start, "unterminated comment")
			return Token{Kind: TokenError, Pos: start, Err: err}
		}
		body := t.pattern[i+1 : i+end]
		t.pos = i + end + 1
		return Token{Kind: TokenGroupStart, Pos: start, Group: GroupComment, Lexeme: body}
	case '<':
		if i+1 < len(t.pattern) {
			switch t.pattern[i+1] {
			case '=':
				t.pos = i + 2
				return Token{Kind: TokenGroupStart, Pos: start, Group: GroupLookbehindPos,
					Lexeme: t.pattern[start:t.pos]}
			case '!':
				t.pos = i + 2
				return Token{Kind: TokenGroupStart, Pos: start, Group: GroupLookbehindNeg,
					Lexeme: t.pattern[start:t.pos]}
			}
		}
		return t.scanGroupName(start, i+1, '>')
	case '\'':
		return t.scanGroupName(start, i+1, '\'')
	case 'P':
		if i+1 < len(t.pattern) {
			switch t.pattern[i+1] {
			case '<':
				return t.scanGroupName(start, i+2, '>')
			case '=':
				return t.scanNamedBackrefParen(start, i+2)
			}
		}
		t.done = true
		err := rifterr.New(rifterr.KindSyntax, start, "malformed (?P construct")
		return Token{Kind: TokenError, Pos: start, Err: err}
	default:
		return t.scanOptions(start, i)
	}
}

// maxNameLen bounds group names so they always fit the serialized
// name-table length prefix.
const maxNameLen = 128

// scanGroupName reads a named-group opener, stopping at close.
func (t *Tokenizer) scanGroupName(start, i int, close byte) Token {
	j := i
	for j < len(t.pattern) && isNameByte(t.pattern[j]) {
		j++
	}
	if j == i || j >= len(t.pattern) || t.pattern[j] != close {
		t.done = true
		err := rifterr.New(rifterr.KindSyntax, start, "malformed group name")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	if j-i > maxNameLen {
		t.done = true
		err := rifterr.New(rifterr.KindSyntax, start, "group name too long")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	name := t.pattern[i:j]
	t.pos = j + 1
	return Token{Kind: TokenGroupStart, Pos: start, Group: GroupNamed, Name: name,
		Lexeme: t.pattern[start:t.pos]}
}

// scanNamedBackrefParen reads the (?P=name) backreference form.
func (t *Tokenizer) scanNamedBackrefParen(start, i int) Token {
	j := i
	for j < len(t.pattern) && isNameByte(t.pattern[j]) {
		j++
	}
	if j == i || j >= len(t.pattern) || t.pattern[j] != ')' {
		t.done = true
		err := rifterr.New(rifterr.KindSyntax, start, "malformed (?P= backreference")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	name := t.pattern[i:j]
	t.pos = j + 1
	return Token{Kind: TokenNamedBackref, Pos: start, Name: name, Lexeme: t.pattern[start:t.pos]}
}

// scanOptions reads inline modifiers: (?flags) applies from here on,
// (?flags:…) opens a non-capturing group with scoped deltas. Conditionals
// (?(…)…) are recognized and reported as unsupported.
func (t *Tokenizer) scanOptions(start, i int) Token {
	if t.pattern[i] == '(' {
		t.done = true
		err := rifterr.New(rifterr.KindUnsupportedFeature, start, "conditional groups")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}

	var set, clear Flags
	clearing := false
	j := i
	for ; j < len(t.pattern); j++ {
		c := t.pattern[j]
		if c == ')' || c == ':' {
			break
		}
		if c == '-' {
			if clearing {
				t.done = true
				err := rifterr.New(rifterr.KindSyntax, start, "repeated '-' in options")
				return Token{Kind: TokenError, Pos: start, Err: err}
			}
			clearing = true
			continue
		}
		f, ok := lookupLetter(c)
		if !ok {
			t.done = true
			err := rifterr.Newf(rifterr.KindSyntax, j, "unknown option %q", string(c))
			return Token{Kind: TokenError, Pos: j, Err: err}
		}
		if clearing {
			clear |= f
		} else {
			set = set.set(f)
		}
	}
	if j >= len(t.pattern) {
		t.done = true
		err := rifterr.New(rifterr.KindUnclosedGroup, start, "unterminated options")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}

	if t.pattern[j] == ':' {
		t.pos = j + 1
		return Token{Kind: TokenGroupStart, Pos: start, Group: GroupNonCapturing,
			Set: set, Clear: clear, Lexeme: t.pattern[start:t.pos]}
	}
	t.pos = j + 1
	return Token{Kind: TokenGroupStart, Pos: start, Group: GroupOption,
		Set: set, Clear: clear, Lexeme: t.pattern[start:t.pos]}
}

// scanEscape decodes a backslash sequence.
func (t *Tokenizer) scanEscape() Token {
	start := t.pos
	if t.pos+1 >= len(t.pattern) {
		t.pos++
		return Token{Kind: TokenBackslash, Pos: start, Lexeme: "\\"}
	}
	c := t.pattern[t.pos+1]
	t.pos += 2

	switch c {
	case 'd', 'D', 'w', 'W', 's', 'S':
		esc := map[byte]EscapeKind{
			'd': EscDigit, 'D': EscNotDigit,
			'w': EscWord, 'W': EscNotWord,
			's': EscSpace, 'S': EscNotSpace,
		}[c]
		return Token{Kind: TokenEscape, Pos: start, Esc: esc, Lexeme: t.pattern[start:t.pos]}
	case 'b':
		return Token{Kind: TokenWordBoundary, Pos: start, Lexeme: t.pattern[start:t.pos]}
	case 'B':
		return Token{Kind: TokenNotWordBoundary, Pos: start, Lexeme: t.pattern[start:t.pos]}
	case 'A':
		return Token{Kind: TokenStartOfInput, Pos: start, Lexeme: t.pattern[start:t.pos]}
	case 'z', 'Z':
		return Token{Kind: TokenEndOfInput, Pos: start, Byte: c, Lexeme: t.pattern[start:t.pos]}
	case 'K':
		return Token{Kind: TokenBackrefReset, Pos: start, Lexeme: t.pattern[start:t.pos]}
	case 'R':
		return Token{Kind: TokenEscape, Pos: start, Esc: EscAnyBreak, Lexeme: t.pattern[start:t.pos]}
	case 'n':
		return t.byteEscape(start, '\n')
	case 'r':
		return t.byteEscape(start, '\r')
	case 't':
		return t.byteEscape(start, '\t')
	case 'f':
		return t.byteEscape(start, '\f')
	case 'v':
		return t.byteEscape(start, '\v')
	case 'a':
		return t.byteEscape(start, 0x07)
	case 'e':
		return t.byteEscape(start, 0x1B)
	case '0':
		return t.byteEscape(start, 0)
	case 'x':
		return t.scanHexEscape(start)
	case 'c':
		return t.scanControlEscape(start)
	case 'p', 'P':
		return t.scanUniProp(start, c == 'P')
	case 'k':
		return t.scanNamedBackref(start)
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		n := int(c - '0')
		for t.pos < len(t.pattern) && t.pattern[t.pos] >= '0' && t.pattern[t.pos] <= '9' {
			if n < 1<<24 {
				n = n*10 + int(t.pattern[t.pos]-'0')
			}
			t.pos++
		}
		return Token{Kind: TokenBackref, Pos: start, Index: n, Lexeme: t.pattern[start:t.pos]}
	default:
		// Escaped punctuation is that literal byte; an unknown letter
		// escape is an error.
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			t.done = true
			err := rifterr.Newf(rifterr.KindInvalidEscape, start, "unrecognized escape \\%s", string(c))
			return Token{Kind: TokenError, Pos: start, Err: err}
		}
		return t.byteEscape(start, c)
	}
}

func (t *Tokenizer) byteEscape(start int, b byte) Token {
	return Token{Kind: TokenEscape, Pos: start, Esc: EscByte, Byte: b, Lexeme: t.pattern[start:t.pos]}
}

// scanHexEscape decodes \xHH and \x{HH}.
func (t *Tokenizer) scanHexEscape(start int) Token {
	braced := t.pos < len(t.pattern) && t.pattern[t.pos] == '{'
	i := t.pos
	if braced {
		i++
	}
	val, digits := 0, 0
	for i < len(t.pattern) {
		d, ok := hexDigit(t.pattern[i])
		if !ok {
			break
		}
		if val <= 0x10FFFF {
			val = val<<4 | d
		}
		digits++
		i++
	}
	if braced {
		if i >= len(t.pattern) || t.pattern[i] != '}' || digits == 0 {
			t.done = true
			err := rifterr.New(rifterr.KindInvalidEscape, start, "malformed \\x{…}")
			return Token{Kind: TokenError, Pos: start, Err: err}
		}
		i++
	} else if digits == 0 || digits > 2 {
		if digits == 0 {
			t.done = true
			err := rifterr.New(rifterr.KindInvalidEscape, start, "\\x needs hex digits")
			return Token{Kind: TokenError, Pos: start, Err: err}
		}
		// Unbraced form takes at most two digits.
		i = t.pos + 2
		d1, _ := hexDigit(t.pattern[t.pos])
		d2, _ := hexDigit(t.pattern[t.pos+1])
		val = d1<<4 | d2
	}
	if val > 0xFF {
		t.done = true
		err := rifterr.Newf(rifterr.KindUnsupportedFeature, start,
			"code point U+%04X outside byte range", val)
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	t.pos = i
	return t.byteEscape(start, byte(val))
}

// scanControlEscape decodes \cX into the control byte.
func (t *Tokenizer) scanControlEscape(start int) Token {
	if t.pos >= len(t.pattern) {
		t.done = true
		err := rifterr.New(rifterr.KindInvalidEscape, start, "\\c needs a following character")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	c := t.pattern[t.pos]
	t.pos++
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return t.byteEscape(start, c^0x40)
}

// scanUniProp reads \p{Name}, \P{Name}, or the single-letter \pL form.
func (t *Tokenizer) scanUniProp(start int, negated bool) Token {
	if t.pos < len(t.pattern) && t.pattern[t.pos] == '{' {
		end := strings.IndexByte(t.pattern[t.pos:], '}')
		if end <= 1 {
			t.done = true
			err := rifterr.New(rifterr.KindInvalidEscape, start, "malformed \\p{…}")
			return Token{Kind: TokenError, Pos: start, Err: err}
		}
		name := t.pattern[t.pos+1 : t.pos+end]
		t.pos += end + 1
		return Token{Kind: TokenEscape, Pos: start, Esc: EscUniProp, Name: name,
			Negated: negated, Lexeme: t.pattern[start:t.pos]}
	}
	if t.pos < len(t.pattern) {
		name := t.pattern[t.pos : t.pos+1]
		t.pos++
		return Token{Kind: TokenEscape, Pos: start, Esc: EscUniProp, Name: name,
			Negated: negated, Lexeme: t.pattern[start:t.pos]}
	}
	t.done = true
	err := rifterr.New(rifterr.KindInvalidEscape, start, "\\p needs a property")
	return Token{Kind: TokenError, Pos: start, Err: err}
}

// scanNamedBackref reads \k<name>, \k{name}, and \k'name'.
func (t *Tokenizer) scanNamedBackref(start int) Token {
	if t.pos >= len(t.pattern) {
		t.done = true
		err := rifterr.New(rifterr.KindInvalidEscape, start, "\\k needs a group name")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	var close byte
	switch t.pattern[t.pos] {
	case '<':
		close = '>'
	case '{':
		close = '}'
	case '\'':
		close = '\''
	default:
		t.done = true
		err := rifterr.New(rifterr.KindInvalidEscape, start, "malformed \\k backreference")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	i := t.pos + 1
	j := i
	for j < len(t.pattern) && isNameByte(t.pattern[j]) {
		j++
	}
	if j == i || j >= len(t.pattern) || t.pattern[j] != close {
		t.done = true
		err := rifterr.New(rifterr.KindInvalidEscape, start, "malformed \\k backreference")
		return Token{Kind: TokenError, Pos: start, Err: err}
	}
	name := t.pattern[i:j]
	t.pos = j + 1
	return Token{Kind: TokenNamedBackref, Pos: start, Name: name, Lexeme: t.pattern[start:t.pos]}
}

func isNameByte(b byte) bool {
	return b == '_' ||
		b >= '0' && b <= '9' ||
		b >= 'A' && b <= 'Z' ||
		b >= 'a' && b <= 'z'
}

func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	}
	return 0, false
}
