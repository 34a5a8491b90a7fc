package rifterr

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "kind position and message",
			err:  New(KindUnclosedClass, 9, "missing ']'"),
			want: "unclosed character class at position 9: missing ']'",
		},
		{
			name: "kind and position",
			err:  New(KindSyntax, 0, ""),
			want: "syntax error at position 0",
		},
		{
			name: "kind and message without position",
			err:  New(KindTimeout, NoPos, "deadline expired after 5s"),
			want: "timeout: deadline expired after 5s",
		},
		{
			name: "bare kind",
			err:  New(KindMemory, NoPos, ""),
			want: "out of memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindPartitions(t *testing.T) {
	compileTime := []Kind{
		KindSyntax, KindUnclosedGroup, KindUnclosedClass, KindInvalidEscape,
		KindInvalidQuantifier, KindInvalidBackref, KindUnknownGroupName,
		KindUnsupportedFeature,
	}
	runtime := []Kind{KindRecursionLimit, KindBacktrackLimit, KindTimeout}
	neither := []Kind{KindNone, KindMemory, KindInvalidArgument, KindInternal}

	for _, k := range compileTime {
		if !k.CompileTime() {
			t.Errorf("%v.CompileTime() = false, want true", k)
		}
		if k.Runtime() {
			t.Errorf("%v.Runtime() = true, want false", k)
		}
	}
	for _, k := range runtime {
		if !k.Runtime() {
			t.Errorf("%v.Runtime() = false, want true", k)
		}
		if k.CompileTime() {
			t.Errorf("%v.CompileTime() = true, want false", k)
		}
	}
	for _, k := range neither {
		if k.CompileTime() || k.Runtime() {
			t.Errorf("%v should be neither compile-time nor runtime", k)
		}
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("compile: %w", New(KindInvalidBackref, 4, "group 2 not defined"))

	if !errors.Is(err, &Error{Kind: KindInvalidBackref}) {
		t.Error("errors.Is should match a diagnostic of the same kind")
	}
	if errors.Is(err, &Error{Kind: KindSyntax}) {
		t.Error("errors.Is should not match a different kind")
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(KindTimeout, NoPos, ""))
	if got := KindOf(wrapped); got != KindTimeout {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindTimeout)
	}
	if got := KindOf(errors.New("plain")); got != KindNone {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindNone)
	}
	if got := KindOf(nil); got != KindNone {
		t.Errorf("KindOf(nil) = %v, want %v", got, KindNone)
	}
}

func TestFromSystem(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"enomem", syscall.ENOMEM, KindMemory},
		{"wrapped enomem", fmt.Errorf("mmap: %w", syscall.ENOMEM), KindMemory},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"other", errors.New("disk on fire"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromSystem(tt.err)
			if tt.want == KindNone {
				if got != nil {
					t.Fatalf("FromSystem(nil) = %v, want nil", got)
				}
				return
			}
			if got == nil || got.Kind != tt.want {
				t.Errorf("FromSystem(%v) kind = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindStringUnknown(t *testing.T) {
	if got := Kind(200).String(); got != "kind(200)" {
		t.Errorf("Kind(200).String() = %q", got)
	}
}
