// Package rifterr defines the error model shared by every stage of the
// engine: one enumerated kind per failure class plus a structured
// diagnostic carrying the byte position of the failure site.
//
// Compile-time kinds point into the pattern text; runtime kinds point into
// the input (or carry no position). Diagnostics are plain values; building
// one never allocates beyond the struct itself and formatting is
// side-effect-free.
package rifterr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Kind classifies an engine failure.
type Kind uint8

const (
	// KindNone is the zero value and never appears in a returned error.
	KindNone Kind = iota

	// Compile-time failures. Position is a byte offset into the pattern.

	// KindSyntax is a malformed pattern not covered by a more specific kind.
	KindSyntax
	// KindUnclosedGroup is a '(' with no matching ')'.
	KindUnclosedGroup
	// KindUnclosedClass is a '[' with no matching ']'.
	KindUnclosedClass
	// KindInvalidEscape is an escape sequence the engine does not define.
	KindInvalidEscape
	// KindInvalidQuantifier is a malformed or inverted bound, e.g. {5,3}.
	KindInvalidQuantifier
	// KindInvalidBackref is a reference to a group that does not exist at
	// the point of reference.
	KindInvalidBackref
	// KindUnknownGroupName is a named reference to an undefined group name.
	KindUnknownGroupName
	// KindUnsupportedFeature is syntax the engine recognizes but does not
	// implement, such as conditionals or unbounded lookbehind.
	KindUnsupportedFeature

	// Resource and argument failures.

	// KindMemory is an allocation failure surfaced by the host.
	KindMemory
	// KindInvalidArgument is a caller error, such as a truncated
	// serialized program or an out-of-range search start.
	KindInvalidArgument

	// Runtime failures. These terminate a match and are distinct from
	// "no match"; the caller may relax limits and retry.

	// KindRecursionLimit is backtrack stack depth exhaustion.
	KindRecursionLimit
	// KindBacktrackLimit is transition budget exhaustion.
	KindBacktrackLimit
	// KindTimeout is wall-clock deadline expiry.
	KindTimeout

	// KindInternal is an invariant violation. Treat as a bug.
	KindInternal
)

var kindNames = [...]string{
	KindNone:               "none",
	KindSyntax:             "syntax error",
	KindUnclosedGroup:      "unclosed group",
	KindUnclosedClass:      "unclosed character class",
	KindInvalidEscape:      "invalid escape",
	KindInvalidQuantifier:  "invalid quantifier",
	KindInvalidBackref:     "invalid backreference",
	KindUnknownGroupName:   "unknown group name",
	KindUnsupportedFeature: "unsupported feature",
	KindMemory:             "out of memory",
	KindInvalidArgument:    "invalid argument",
	KindRecursionLimit:     "recursion limit exceeded",
	KindBacktrackLimit:     "backtrack limit exceeded",
	KindTimeout:            "timeout",
	KindInternal:           "internal error",
}

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// CompileTime reports whether the kind is produced while compiling a
// pattern. Compile-time diagnostics position into the pattern text.
func (k Kind) CompileTime() bool {
	return k >= KindSyntax && k <= KindUnsupportedFeature
}

// Runtime reports whether the kind is produced while executing a match.
// Runtime failures are retryable with relaxed limits.
func (k Kind) Runtime() bool {
	return k == KindRecursionLimit || k == KindBacktrackLimit || k == KindTimeout
}

// NoPos marks a diagnostic with no meaningful position.
const NoPos = -1

// Error is the structured diagnostic for every engine failure.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Message describes the failure site. It never repeats the kind name.
	Message string

	// Pos is the byte offset of the failure: into the pattern for
	// compile-time kinds, into the input for runtime kinds, or NoPos.
	Pos int
}

// New constructs a diagnostic at the given byte position.
func New(kind Kind, pos int, message string) *Error {
	return &Error{Kind: kind, Message: message, Pos: pos}
}

// Newf constructs a diagnostic with a formatted message.
func Newf(kind Kind, pos int, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Pos == NoPos:
		return e.Kind.String()
	case e.Message == "":
		return fmt.Sprintf("%s at position %d", e.Kind, e.Pos)
	case e.Pos == NoPos:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Message)
	}
}

// Is reports kind equality, so errors.Is(err, &Error{Kind: k}) matches any
// diagnostic of kind k regardless of message and position.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind from err, unwrapping as needed.
// It returns KindNone when err carries no diagnostic.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// FromSystem maps a host error to an engine diagnostic: allocation
// failures become KindMemory, deadline expiry becomes KindTimeout, and
// anything else becomes KindInternal. A nil error maps to nil.
func FromSystem(err error) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ENOMEM):
		return &Error{Kind: KindMemory, Message: err.Error(), Pos: NoPos}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: err.Error(), Pos: NoPos}
	default:
		return &Error{Kind: KindInternal, Message: err.Error(), Pos: NoPos}
	}
}
