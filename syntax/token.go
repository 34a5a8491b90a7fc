package syntax

import (
	"fmt"

	"github.com/librift/librift/rifterr"
)

// TokenKind classifies a token produced by the Tokenizer.
type TokenKind uint8

const (
	TokenLiteral TokenKind = iota
	TokenDot
	TokenCaret
	TokenDollar
	TokenStar
	TokenPlus
	TokenQuestion
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenPipe
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenBackslash
	TokenCharClass
	TokenGroupStart
	TokenBackref
	TokenNamedBackref
	TokenEscape
	TokenWordBoundary
	TokenNotWordBoundary
	TokenStartOfInput
	TokenEndOfInput
	TokenBackrefReset
	TokenQuantifier
	TokenRiftQuoteStart
	TokenRiftQuoteEnd
	TokenError
	TokenEnd
)

var tokenKindNames = [...]string{
	TokenLiteral:         "Literal",
	TokenDot:             "Dot",
	TokenCaret:           "Caret",
	TokenDollar:          "Dollar",
	TokenStar:            "Star",
	TokenPlus:            "Plus",
	TokenQuestion:        "Question",
	TokenLParen:          "LParen",
	TokenRParen:          "RParen",
	TokenLBracket:        "LBracket",
	TokenRBracket:        "RBracket",
	TokenPipe:            "Pipe",
	TokenLBrace:          "LBrace",
	TokenRBrace:          "RBrace",
	TokenComma:           "Comma",
	TokenBackslash:       "Backslash",
	TokenCharClass:       "CharClass",
	TokenGroupStart:      "GroupStart",
	TokenBackref:         "Backref",
	TokenNamedBackref:    "NamedBackref",
	TokenEscape:          "Escape",
	TokenWordBoundary:    "WordBoundary",
	TokenNotWordBoundary: "NotWordBoundary",
	TokenStartOfInput:    "StartOfInput",
	TokenEndOfInput:      "EndOfInput",
	TokenBackrefReset:    "BackrefReset",
	TokenQuantifier:      "Quantifier",
	TokenRiftQuoteStart:  "RiftQuoteStart",
	TokenRiftQuoteEnd:    "RiftQuoteEnd",
	TokenError:           "Error",
	TokenEnd:             "End",
}

// String returns the kind's name.
func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// GroupKind is the sub-kind payload of a GroupStart token.
type GroupKind uint8

const (
	GroupCapturing GroupKind = iota
	GroupNonCapturing
	GroupNamed
	GroupLookaheadPos
	GroupLookaheadNeg
	GroupLookbehindPos
	GroupLookbehindNeg
	GroupAtomic
	GroupOption
	GroupComment
)

var groupKindNames = [...]string{
	GroupCapturing:     "Capturing",
	GroupNonCapturing:  "NonCapturing",
	GroupNamed:         "Named",
	GroupLookaheadPos:  "LookaheadPos",
	GroupLookaheadNeg:  "LookaheadNeg",
	GroupLookbehindPos: "LookbehindPos",
	GroupLookbehindNeg: "LookbehindNeg",
	GroupAtomic:        "Atomic",
	GroupOption:        "Option",
	GroupComment:       "Comment",
}

// String returns the sub-kind's name.
func (g GroupKind) String() string {
	if int(g) < len(groupKindNames) {
		return groupKindNames[g]
	}
	return fmt.Sprintf("GroupKind(%d)", uint8(g))
}

// EscapeKind classifies the payload of an Escape token: a decoded byte or
// a class shorthand.
type EscapeKind uint8

const (
	// EscByte is a single decoded byte (\n, \x41, \0, …).
	EscByte EscapeKind = iota
	// EscDigit .. EscNotSpace are the \d \D \w \W \s \S shorthands.
	EscDigit
	EscNotDigit
	EscWord
	EscNotWord
	EscSpace
	EscNotSpace
	// EscAnyBreak is \R.
	EscAnyBreak
	// EscUniProp is \p{…} / \P{…}; Name carries the property.
	EscUniProp
)

// Token is one lexical element of a pattern. Tokens are ephemeral values:
// the tokenizer yields them one at a time and the parser consumes each
// before requesting the next.
type Token struct {
	Kind TokenKind

	// Pos is the byte offset of the token's first byte in the pattern.
	Pos int

	// Lexeme is the raw pattern slice. For CharClass it is the class body
	// without the enclosing brackets.
	Lexeme string

	// Byte is the literal byte, the decoded escape byte, or the
	// rift-quote delimiter.
	Byte byte

	// Group is the sub-kind of a GroupStart token.
	Group GroupKind

	// Name is the group name, the named-backreference target, or the
	// \p property name.
	Name string

	// Index is the numeric backreference target.
	Index int

	// Esc classifies an Escape token's payload.
	Esc EscapeKind

	// Negated marks \P.
	Negated bool

	// Quantifier bounds. Max < 0 means unbounded.
	Min, Max           int
	Greedy, Possessive bool

	// Set and Clear are the inline option deltas of (?flags) and
	// (?flags:…) group starts.
	Set, Clear Flags

	// Err is the diagnostic for an Error token.
	Err *rifterr.Error
}

// IsQuantifier reports whether the token quantifies the preceding atom.
func (t Token) IsQuantifier() bool {
	switch t.Kind {
	case TokenStar, TokenPlus, TokenQuestion, TokenQuantifier:
		return true
	}
	return false
}

// IsGroupStart reports whether the token opens a group.
func (t Token) IsGroupStart() bool {
	return t.Kind == TokenLParen || t.Kind == TokenGroupStart
}

// IsAssertion reports whether the token is a zero-width assertion.
func (t Token) IsAssertion() bool {
	switch t.Kind {
	case TokenCaret, TokenDollar, TokenWordBoundary, TokenNotWordBoundary,
		TokenStartOfInput, TokenEndOfInput:
		return true
	}
	return false
}

// String renders the token for diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case TokenLiteral:
		return fmt.Sprintf("Literal(%q)@%d", t.Byte, t.Pos)
	case TokenCharClass:
		return fmt.Sprintf("CharClass(%q)@%d", t.Lexeme, t.Pos)
	case TokenGroupStart:
		if t.Group == GroupNamed {
			return fmt.Sprintf("GroupStart(Named %q)@%d", t.Name, t.Pos)
		}
		return fmt.Sprintf("GroupStart(%s)@%d", t.Group, t.Pos)
	case TokenBackref:
		return fmt.Sprintf("Backref(%d)@%d", t.Index, t.Pos)
	case TokenNamedBackref:
		return fmt.Sprintf("NamedBackref(%q)@%d", t.Name, t.Pos)
	case TokenQuantifier:
		return fmt.Sprintf("Quantifier{%d,%d greedy=%v possessive=%v}@%d",
			t.Min, t.Max, t.Greedy, t.Possessive, t.Pos)
	case TokenError:
		return fmt.Sprintf("Error(%v)@%d", t.Err, t.Pos)
	default:
		return fmt.Sprintf("%s@%d", t.Kind, t.Pos)
	}
}
