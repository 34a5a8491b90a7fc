package syntax

import (
	"strings"

	"github.com/librift/librift/rifterr"
)

// maxRepeat is the largest quantifier bound the engine accepts.
const maxRepeat = 65535

// maxGroupDepth bounds group nesting. It keeps parse and compile
// recursion shallow and holds lookaround nesting within the serialized
// form's sub-program depth cap.
const maxGroupDepth = 64

// maxGroups is the highest capturing-group index. It matches the
// serialized form's group field width.
const maxGroups = 65535

// Parser consumes a token stream and produces a Tree. It owns group
// numbering, name bookkeeping, inline-option scoping, and all grammar
// validation.
type Parser struct {
	tok     *Tokenizer
	pattern string
	flags   Flags
	cur     Token

	groupCount int
	names      []string
	nameIndex  map[string][]int

	depth  int
	inRift bool
}

// Parse turns a pattern into a Tree under the given flags. The returned
// error, if any, is a *rifterr.Error positioned into the pattern.
func Parse(pattern string, flags Flags) (*Tree, error) {
	if err := flags.Compatible(); err != nil {
		return nil, err
	}

	// Modifier letters after a rift-quote wrapper apply to the whole
	// pattern, so they must be known before the body is scanned: an x
	// suffix changes lexing itself.
	if flags.Has(Rift) {
		suffix, ok := riftSuffix(pattern)
		if ok && suffix != "" {
			sf, err := ParseModifiers(suffix)
			if err != nil {
				return nil, err
			}
			for _, e := range flagLetters {
				if sf&e.flag != 0 {
					flags = flags.set(e.flag)
				}
			}
		}
	}

	p := &Parser{
		tok:       NewTokenizer(pattern, flags),
		pattern:   pattern,
		flags:     flags,
		names:     []string{""},
		nameIndex: make(map[string][]int),
	}
	p.advance()

	if p.cur.Kind == TokenRiftQuoteStart {
		p.inRift = true
		p.advance()
	}

	body, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}

	switch p.cur.Kind {
	case TokenEnd:
		if p.inRift {
			return nil, rifterr.New(rifterr.KindSyntax, len(pattern), "unterminated rift quote")
		}
	case TokenRiftQuoteEnd:
		p.inRift = false
		p.advance()
		if p.cur.Kind != TokenEnd {
			return nil, rifterr.New(rifterr.KindSyntax, p.cur.Pos, "trailing input after rift quote")
		}
	case TokenRParen:
		return nil, rifterr.New(rifterr.KindSyntax, p.cur.Pos, "unmatched closing parenthesis")
	case TokenError:
		return nil, p.cur.Err
	default:
		return nil, rifterr.Newf(rifterr.KindInternal, p.cur.Pos, "parser stopped at %s", p.cur)
	}

	root := NewNode(NodeRoot, 0)
	root.Flags = p.flags
	root.AddChild(body)

	return &Tree{
		Root:       root,
		GroupCount: p.groupCount,
		Names:      p.names,
		NameIndex:  p.nameIndex,
		Flags:      p.flags,
	}, nil
}

// riftSuffix returns the modifier letters after a complete r'…' wrapper.
func riftSuffix(pattern string) (string, bool) {
	if len(pattern) < 2 || (pattern[0] != 'r' && pattern[0] != 'R') {
		return "", false
	}
	delim := pattern[1]
	if delim != '\'' && delim != '"' {
		return "", false
	}
	for i := 2; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case delim:
			return pattern[i+1:], true
		}
	}
	return "", false
}

func (p *Parser) advance() {
	p.cur = p.tok.Next()
}

// setFlags switches the effective flags, keeping the tokenizer's view of
// Extended in sync.
func (p *Parser) setFlags(f Flags) {
	p.flags = f
	p.tok.SetFlags(f)
}

// atSequenceEnd reports whether the current token terminates a concat.
func (p *Parser) atSequenceEnd() bool {
	switch p.cur.Kind {
	case TokenPipe, TokenRParen, TokenEnd, TokenRiftQuoteEnd, TokenError:
		return true
	}
	return false
}

func (p *Parser) parseAlternation() (*Node, error) {
	first, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokenPipe {
		return first, nil
	}

	alt := NewNode(NodeAlternation, first.Pos)
	alt.Flags = p.flags
	alt.AddChild(first)
	for p.cur.Kind == TokenPipe {
		p.advance()
		branch, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		alt.AddChild(branch)
	}
	return alt, nil
}

// parseConcat parses a run of quantified atoms. An empty run yields an
// empty Concat node, the ε branch of constructs like "a|".
func (p *Parser) parseConcat() (*Node, error) {
	pos := p.cur.Pos
	var items []*Node

	for !p.atSequenceEnd() {
		tok := p.cur

		if tok.IsQuantifier() {
			if len(items) == 0 {
				return nil, rifterr.New(rifterr.KindSyntax, tok.Pos, "nothing to repeat")
			}
			if items[len(items)-1].Kind == NodeQuantifier {
				return nil, rifterr.New(rifterr.KindSyntax, tok.Pos, "nested quantifiers")
			}
			wrapped, err := p.applyQuantifier(items[len(items)-1], tok)
			if err != nil {
				return nil, err
			}
			items[len(items)-1] = wrapped
			p.advance()
			continue
		}

		// Bare option groups and comments produce no node.
		if tok.Kind == TokenGroupStart {
			switch tok.Group {
			case GroupOption:
				p.setFlags((p.flags | tok.Set) &^ tok.Clear)
				p.advance()
				continue
			case GroupComment:
				p.advance()
				continue
			}
		}

		atom, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		if atom != nil {
			items = append(items, atom)
		}
	}

	if p.cur.Kind == TokenError {
		return nil, p.cur.Err
	}

	switch len(items) {
	case 0:
		empty := NewNode(NodeConcat, pos)
		empty.Flags = p.flags
		return empty, nil
	case 1:
		return items[0], nil
	default:
		concat := NewNode(NodeConcat, pos)
		concat.Flags = p.flags
		for _, it := range items {
			concat.AddChild(it)
		}
		return concat, nil
	}
}

func (p *Parser) parseAtom() (*Node, error) {
	tok := p.cur
	switch tok.Kind {
	case TokenLiteral:
		p.advance()
		return p.leaf(NodeLiteral, tok.Pos, func(n *Node) { n.Byte = tok.Byte }), nil

	case TokenDot:
		p.advance()
		return p.leaf(NodeDot, tok.Pos, nil), nil

	case TokenCaret:
		p.advance()
		return p.leaf(NodeAnchorStart, tok.Pos, nil), nil

	case TokenDollar:
		p.advance()
		return p.leaf(NodeAnchorEnd, tok.Pos, nil), nil

	case TokenWordBoundary:
		p.advance()
		return p.leaf(NodeWordBoundary, tok.Pos, nil), nil

	case TokenNotWordBoundary:
		p.advance()
		return p.leaf(NodeNotWordBoundary, tok.Pos, nil), nil

	case TokenStartOfInput:
		p.advance()
		return p.leaf(NodeInputStart, tok.Pos, nil), nil

	case TokenEndOfInput:
		p.advance()
		return p.leaf(NodeInputEnd, tok.Pos, func(n *Node) { n.Negated = tok.Byte == 'Z' }), nil

	case TokenBackrefReset:
		p.advance()
		return p.leaf(NodeBackrefReset, tok.Pos, nil), nil

	case TokenCharClass:
		set, err := p.parseClassBody(tok.Lexeme, tok.Pos+1)
		if err != nil {
			return nil, err
		}
		p.advance()
		return p.leaf(NodeClass, tok.Pos, func(n *Node) { n.Class = set }), nil

	case TokenEscape:
		return p.parseEscapeAtom(tok)

	case TokenBackref:
		if tok.Index > p.groupCount {
			return nil, rifterr.Newf(rifterr.KindInvalidBackref, tok.Pos,
				"group %d is not defined at this point", tok.Index)
		}
		p.advance()
		return p.leaf(NodeBackref, tok.Pos, func(n *Node) { n.Index = tok.Index }), nil

	case TokenNamedBackref:
		idxs := p.nameIndex[tok.Name]
		if len(idxs) == 0 {
			return nil, rifterr.Newf(rifterr.KindUnknownGroupName, tok.Pos,
				"no group named %q", tok.Name)
		}
		p.advance()
		return p.leaf(NodeBackref, tok.Pos, func(n *Node) {
			n.Index = idxs[0]
			n.Name = tok.Name
		}), nil

	case TokenLParen, TokenGroupStart:
		return p.parseGroup(tok)

	case TokenRBracket:
		p.advance()
		return p.leaf(NodeLiteral, tok.Pos, func(n *Node) { n.Byte = ']' }), nil

	case TokenLBrace:
		p.advance()
		return p.leaf(NodeLiteral, tok.Pos, func(n *Node) { n.Byte = '{' }), nil

	case TokenRBrace:
		p.advance()
		return p.leaf(NodeLiteral, tok.Pos, func(n *Node) { n.Byte = '}' }), nil

	case TokenComma:
		p.advance()
		return p.leaf(NodeLiteral, tok.Pos, func(n *Node) { n.Byte = ',' }), nil

	case TokenBackslash:
		return nil, rifterr.New(rifterr.KindInvalidEscape, tok.Pos, "trailing backslash")

	case TokenError:
		return nil, tok.Err

	default:
		return nil, rifterr.Newf(rifterr.KindInternal, tok.Pos, "unhandled token %s", tok)
	}
}

// leaf builds a childless node carrying the current flag snapshot.
func (p *Parser) leaf(kind NodeKind, pos int, init func(*Node)) *Node {
	n := NewNode(kind, pos)
	n.Flags = p.flags
	if init != nil {
		init(n)
	}
	return n
}

func (p *Parser) parseEscapeAtom(tok Token) (*Node, error) {
	p.advance()
	switch tok.Esc {
	case EscByte:
		return p.leaf(NodeLiteral, tok.Pos, func(n *Node) { n.Byte = tok.Byte }), nil
	case EscDigit, EscNotDigit, EscWord, EscNotWord, EscSpace, EscNotSpace:
		set := shorthandClass(tok.Esc)
		return p.leaf(NodeClass, tok.Pos, func(n *Node) { n.Class = set }), nil
	case EscAnyBreak:
		return p.leaf(NodeAnyBreak, tok.Pos, nil), nil
	case EscUniProp:
		return nil, rifterr.Newf(rifterr.KindUnsupportedFeature, tok.Pos,
			"unicode property \\p{%s}", tok.Name)
	default:
		return nil, rifterr.Newf(rifterr.KindInternal, tok.Pos, "unhandled escape %d", tok.Esc)
	}
}

func shorthandClass(esc EscapeKind) ClassSet {
	var s ClassSet
	switch esc {
	case EscDigit:
		s = DigitClass()
	case EscNotDigit:
		s = DigitClass()
		s.Negate()
	case EscWord:
		s = WordClass()
	case EscNotWord:
		s = WordClass()
		s.Negate()
	case EscSpace:
		s = SpaceClass()
	case EscNotSpace:
		s = SpaceClass()
		s.Negate()
	}
	return s
}

func (p *Parser) parseGroup(open Token) (*Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxGroupDepth {
		return nil, rifterr.New(rifterr.KindSyntax, open.Pos, "groups nest too deeply")
	}

	saved := p.flags

	kind := GroupCapturing
	if open.Kind == TokenGroupStart {
		kind = open.Group
	}

	var node *Node
	switch kind {
	case GroupCapturing:
		if p.flags.Has(NoAutoCapture) {
			node = NewNode(NodeNonCapGroup, open.Pos)
		} else {
			node = p.newCaptureNode(open.Pos, "")
		}
	case GroupNamed:
		if !p.flags.Has(DupNames) && len(p.nameIndex[open.Name]) > 0 {
			return nil, rifterr.Newf(rifterr.KindSyntax, open.Pos,
				"duplicate group name %q", open.Name)
		}
		node = p.newCaptureNode(open.Pos, open.Name)
	case GroupNonCapturing:
		node = NewNode(NodeNonCapGroup, open.Pos)
		p.setFlags((p.flags | open.Set) &^ open.Clear)
	case GroupAtomic:
		node = NewNode(NodeAtomicGroup, open.Pos)
	case GroupLookaheadPos, GroupLookaheadNeg:
		node = NewNode(NodeLookahead, open.Pos)
		node.Negated = kind == GroupLookaheadNeg
	case GroupLookbehindPos, GroupLookbehindNeg:
		node = NewNode(NodeLookbehind, open.Pos)
		node.Negated = kind == GroupLookbehindNeg
	default:
		return nil, rifterr.Newf(rifterr.KindInternal, open.Pos, "unhandled group kind %s", kind)
	}
	node.Flags = p.flags

	if p.groupCount > maxGroups {
		return nil, rifterr.New(rifterr.KindSyntax, open.Pos, "too many capture groups")
	}

	p.advance()
	body, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokenRParen {
		if p.cur.Kind == TokenError {
			return nil, p.cur.Err
		}
		return nil, rifterr.New(rifterr.KindUnclosedGroup, open.Pos, "missing ')'")
	}
	p.advance()
	p.setFlags(saved)

	node.AddChild(body)

	if node.Kind == NodeLookbehind {
		if _, bounded := body.MaxWidth(); !bounded {
			return nil, rifterr.New(rifterr.KindUnsupportedFeature, open.Pos,
				"lookbehind is not statically bounded")
		}
	}
	return node, nil
}

func (p *Parser) newCaptureNode(pos int, name string) *Node {
	p.groupCount++
	idx := p.groupCount
	p.names = append(p.names, name)
	if name != "" {
		p.nameIndex[name] = append(p.nameIndex[name], idx)
	}
	n := NewNode(NodeGroup, pos)
	n.Index = idx
	n.Name = name
	return n
}

func (p *Parser) applyQuantifier(atom *Node, tok Token) (*Node, error) {
	min, max := tok.Min, tok.Max
	greedy := true
	switch tok.Kind {
	case TokenStar:
		min, max = 0, -1
	case TokenPlus:
		min, max = 1, -1
	case TokenQuestion:
		min, max = 0, 1
	case TokenQuantifier:
		greedy = tok.Greedy
	}

	if max >= 0 && min > max {
		return nil, rifterr.Newf(rifterr.KindInvalidQuantifier, tok.Pos,
			"{%d,%d} has min greater than max", min, max)
	}
	if min > maxRepeat || max > maxRepeat {
		return nil, rifterr.Newf(rifterr.KindInvalidQuantifier, tok.Pos,
			"bound exceeds %d", maxRepeat)
	}
	if p.flags.Has(Ungreedy) {
		greedy = !greedy
	}
	if tok.Possessive {
		// Possessive quantifiers stay greedy under the Ungreedy flag.
		greedy = true
	}

	q := NewNode(NodeQuantifier, atom.Pos)
	q.Flags = p.flags
	q.Min, q.Max = min, max
	q.Greedy, q.Possessive = greedy, tok.Possessive
	q.AddChild(atom)
	return q, nil
}

// parseClassBody turns a raw class body into a bitmap. bodyPos is the
// offset of the body's first byte, used to position diagnostics.
func (p *Parser) parseClassBody(body string, bodyPos int) (ClassSet, error) {
	var set ClassSet

	i := 0
	negated := false
	if i < len(body) && body[i] == '^' {
		negated = true
		i++
	}

	// A ']' in first position is a member, not a terminator; the
	// tokenizer guarantees the body reflects that.
	for i < len(body) {
		lo, isClass, sub, n, err := p.classItem(body, i, bodyPos)
		if err != nil {
			return set, err
		}
		i += n

		if isClass {
			set.Union(&sub)
			continue
		}

		// Possible range.
		if i < len(body) && body[i] == '-' && i+1 < len(body) {
			hi, hiClass, _, hn, err := p.classItem(body, i+1, bodyPos)
			if err != nil {
				return set, err
			}
			if hiClass {
				// "a-\d" keeps the dash literal.
				set.Add(lo)
				continue
			}
			if hi < lo {
				return set, rifterr.Newf(rifterr.KindSyntax, bodyPos+i,
					"class range out of order")
			}
			set.AddRange(lo, hi)
			i += 1 + hn
			continue
		}
		set.Add(lo)
	}

	if p.flags.Has(CaseInsensitive) {
		set.Fold()
	}
	if negated {
		set.Negate()
	}
	return set, nil
}

// classItem decodes one member at body[i]: a plain byte, an escape, or a
// POSIX class. It returns either a byte or a sub-bitmap.
func (p *Parser) classItem(body string, i, bodyPos int) (b byte, isClass bool, sub ClassSet, n int, err error) {
	c := body[i]

	if c == '[' && i+1 < len(body) && body[i+1] == ':' {
		end := strings.Index(body[i+2:], ":]")
		if end < 0 {
			return 0, false, sub, 0, rifterr.New(rifterr.KindSyntax, bodyPos+i,
				"unterminated POSIX class")
		}
		name := body[i+2 : i+2+end]
		cls, ok := PosixClass(name)
		if !ok {
			return 0, false, sub, 0, rifterr.Newf(rifterr.KindSyntax, bodyPos+i,
				"unknown POSIX class %q", name)
		}
		return 0, true, cls, 2 + end + 2, nil
	}

	if c != '\\' {
		return c, false, sub, 1, nil
	}
	if i+1 >= len(body) {
		return 0, false, sub, 0, rifterr.New(rifterr.KindInvalidEscape, bodyPos+i,
			"trailing backslash in class")
	}

	e := body[i+1]
	switch e {
	case 'd', 'D', 'w', 'W', 's', 'S':
		esc := map[byte]EscapeKind{
			'd': EscDigit, 'D': EscNotDigit,
			'w': EscWord, 'W': EscNotWord,
			's': EscSpace, 'S': EscNotSpace,
		}[e]
		return 0, true, shorthandClass(esc), 2, nil
	case 'n':
		return '\n', false, sub, 2, nil
	case 'r':
		return '\r', false, sub, 2, nil
	case 't':
		return '\t', false, sub, 2, nil
	case 'f':
		return '\f', false, sub, 2, nil
	case 'v':
		return '\v', false, sub, 2, nil
	case 'a':
		return 0x07, false, sub, 2, nil
	case 'e':
		return 0x1B, false, sub, 2, nil
	case 'b':
		// Inside a class \b is backspace.
		return 0x08, false, sub, 2, nil
	case '0':
		return 0, false, sub, 2, nil
	case 'x':
		val, n, err := hexInClass(body, i+2, bodyPos+i)
		if err != nil {
			return 0, false, sub, 0, err
		}
		return val, false, sub, 2 + n, nil
	case 'c':
		if i+2 >= len(body) {
			return 0, false, sub, 0, rifterr.New(rifterr.KindInvalidEscape, bodyPos+i,
				"\\c needs a following character")
		}
		ctl := body[i+2]
		if ctl >= 'a' && ctl <= 'z' {
			ctl -= 'a' - 'A'
		}
		return ctl ^ 0x40, false, sub, 3, nil
	case 'p', 'P':
		return 0, false, sub, 0, rifterr.New(rifterr.KindUnsupportedFeature, bodyPos+i,
			"unicode property in class")
	default:
		if e >= 'a' && e <= 'z' || e >= 'A' && e <= 'Z' || e >= '1' && e <= '9' {
			return 0, false, sub, 0, rifterr.Newf(rifterr.KindInvalidEscape, bodyPos+i,
				"unrecognized class escape \\%s", string(e))
		}
		return e, false, sub, 2, nil
	}
}

// hexInClass decodes the digits of \xHH or \x{HH} inside a class body,
// returning the byte and the input length consumed after "\x".
func hexInClass(body string, i, errPos int) (byte, int, error) {
	if i < len(body) && body[i] == '{' {
		end := strings.IndexByte(body[i:], '}')
		if end < 2 {
			return 0, 0, rifterr.New(rifterr.KindInvalidEscape, errPos, "malformed \\x{…}")
		}
		val := 0
		for _, c := range []byte(body[i+1 : i+end]) {
			d, ok := hexDigit(c)
			if !ok {
				return 0, 0, rifterr.New(rifterr.KindInvalidEscape, errPos, "malformed \\x{…}")
			}
			if val <= 0x10FFFF {
				val = val<<4 | d
			}
		}
		if val > 0xFF {
			return 0, 0, rifterr.Newf(rifterr.KindUnsupportedFeature, errPos,
				"code point U+%04X outside byte range", val)
		}
		return byte(val), end + 1, nil
	}

	val, digits := 0, 0
	for i+digits < len(body) && digits < 2 {
		d, ok := hexDigit(body[i+digits])
		if !ok {
			break
		}
		val = val<<4 | d
		digits++
	}
	if digits == 0 {
		return 0, 0, rifterr.New(rifterr.KindInvalidEscape, errPos, "\\x needs hex digits")
	}
	return byte(val), digits, nil
}
