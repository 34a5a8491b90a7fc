package prefilter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/librift/librift/syntax"
)

func mustParse(t *testing.T, pattern string, flags syntax.Flags) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse(pattern, flags)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", pattern, err)
	}
	return tree
}

// litStrings renders a sequence for comparison; frozen literals carry a
// "..." suffix.
func litStrings(s *Seq) []string {
	if s == nil {
		return nil
	}
	out := make([]string, s.Len())
	for i := 0; i < s.Len(); i++ {
		l := s.Get(i)
		out[i] = string(l.Bytes)
		if !l.Complete {
			out[i] += "..."
		}
	}
	return out
}

func TestPrefixes(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		flags   syntax.Flags
		want    []string
	}{
		{"plain literal", "hello", 0, []string{"hello"}},
		{"alternation", "foo|bar", 0, []string{"foo", "bar"}},
		{"class expands", "[ab]c", 0, []string{"ac", "bc"}},
		{"group alternation", "(ab|cd)ef", 0, []string{"abef", "cdef"}},
		{"plus freezes", "a+b", 0, []string{"a..."}},
		{"star is optional", "x*abc", 0, []string{"abc", "x..."}},
		{"question keeps both", "a?b", 0, []string{"b", "ab"}},
		{"leading dot", ".*x", 0, []string{"..."}},
		{"case pairs multiply", "(?i)ab", 0, []string{"ab", "aB", "Ab", "AB"}},
		{"wide class stops", `\d[abc]`, 0, []string{"..."}},
		{"small class alone", "[abc]", 0, []string{"a", "b", "c"}},
		{"lookahead is zero width", "(?=foo)bar", 0, []string{"bar"}},
		{"start anchor is zero width", "^abc", 0, []string{"abc"}},
		{"word boundary is zero width", `\bword`, 0, []string{"word"}},
		{"backref freezes", `(a)\1`, 0, []string{"a..."}},
		{"zero repeat vanishes", "a{0}b", 0, []string{"b"}},
		{"any break expands", `\R`, 0, []string{"\r\n", "\n", "\v", "\f", "\r", "\x85"}},
		{"open alternation branch", "foo|.", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.pattern, tt.flags)
			seq := NewExtractor(DefaultConfig()).Prefixes(tree.Root)
			if tt.want == nil {
				if seq != nil {
					t.Fatalf("Prefixes(%q) = %v, want nil", tt.pattern, litStrings(seq))
				}
				return
			}
			if diff := cmp.Diff(tt.want, litStrings(seq)); diff != "" {
				t.Errorf("Prefixes(%q) mismatch (-want +got):\n%s", tt.pattern, diff)
			}
		})
	}
}

func TestPrefixesBSRMode(t *testing.T) {
	tree := mustParse(t, `\R`, syntax.BSRAnyCRLF)
	seq := NewExtractor(DefaultConfig()).Prefixes(tree.Root)
	want := []string{"\r\n", "\n", "\r"}
	if diff := cmp.Diff(want, litStrings(seq)); diff != "" {
		t.Errorf("Prefixes(\\R) under BSR_ANYCRLF mismatch (-want +got):\n%s", diff)
	}
}

func TestPrefixesCaps(t *testing.T) {
	cfg := Config{MaxLiterals: 3, MaxLiteralLen: 4, MaxClassSize: 4}
	ex := NewExtractor(cfg)

	t.Run("length cap truncates and freezes", func(t *testing.T) {
		tree := mustParse(t, "abcdefgh", 0)
		got := litStrings(ex.Prefixes(tree.Root))
		want := []string{"abcd..."}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("alternation overflow", func(t *testing.T) {
		tree := mustParse(t, "a|b|c|d", 0)
		if seq := ex.Prefixes(tree.Root); seq != nil {
			t.Errorf("Prefixes = %v, want nil", litStrings(seq))
		}
	})

	t.Run("cross product overflow", func(t *testing.T) {
		tree := mustParse(t, "(a|b)(c|d)", 0)
		if seq := ex.Prefixes(tree.Root); seq != nil {
			t.Errorf("Prefixes = %v, want nil", litStrings(seq))
		}
	})

	t.Run("class over size cap", func(t *testing.T) {
		tree := mustParse(t, "[abcde]", 0)
		if seq := ex.Prefixes(tree.Root); seq != nil {
			t.Errorf("Prefixes = %v, want nil", litStrings(seq))
		}
	})
}

func TestSeqMinimize(t *testing.T) {
	seq := NewSeq(
		Literal{Bytes: []byte("foobar"), Complete: true},
		Literal{Bytes: []byte("foo"), Complete: true},
		Literal{Bytes: []byte("bar"), Complete: true},
	)
	seq.Minimize()
	want := []string{"foo", "bar"}
	if diff := cmp.Diff(want, litStrings(seq)); diff != "" {
		t.Errorf("Minimize mismatch (-want +got):\n%s", diff)
	}
	if got := seq.MinLen(); got != 3 {
		t.Errorf("MinLen() = %d, want 3", got)
	}
}
