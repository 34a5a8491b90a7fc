package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/librift/librift/bytecode"
	"github.com/librift/librift/syntax"
)

func compileProg(t *testing.T, pattern string, flags syntax.Flags) *bytecode.Program {
	t.Helper()
	tree, err := syntax.Parse(pattern, flags)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", pattern, err)
	}
	prog, err := bytecode.Compile(tree)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", pattern, err)
	}
	return prog
}

func span(start, end int) *Span { return &Span{Start: start, End: end} }

func checkFind(t *testing.T, pattern, input string, flags syntax.Flags, want *Span) {
	t.Helper()
	m := NewMachine(compileProg(t, pattern, flags))
	got, err := m.Find([]byte(input), 0)
	if err != nil {
		t.Fatalf("Find(%q, %q) error: %v", pattern, input, err)
	}
	switch {
	case want == nil && got != nil:
		t.Errorf("Find(%q, %q) = %+v, want no match", pattern, input, *got)
	case want != nil && got == nil:
		t.Errorf("Find(%q, %q) = no match, want %+v", pattern, input, *want)
	case want != nil && got != nil && *got != *want:
		t.Errorf("Find(%q, %q) = %+v, want %+v", pattern, input, *got, *want)
	}
}

func TestMatchBasics(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		flags   syntax.Flags
		want    *Span
	}{
		{"literal inside", "abc", "xabcy", 0, span(1, 4)},
		{"literal missing", "abc", "xaby", 0, nil},
		{"alternation", "a|b", "cb", 0, span(1, 2)},
		{"class run", "[a-c]+", "zzabca", 0, span(2, 6)},
		{"negated class", "[^0-9]+", "12ab3", 0, span(2, 4)},
		{"empty pattern", "", "abc", 0, span(0, 0)},
		{"empty input no match", "a*b", "", 0, nil},
		{"star then literal", "a*b", "b", 0, span(0, 1)},
		{"star consumes run", "a*b", "aaab", 0, span(0, 4)},
		{"greedy dot", "a.*b", "axbyb", 0, span(0, 5)},
		{"lazy dot", "a.*?b", "axbyb", 0, span(0, 3)},
		{"lazy plus", "a+?", "aaa", 0, span(0, 1)},
		{"bounded repeat greedy", "a{2,3}", "aaaa", 0, span(0, 3)},
		{"bounded repeat too few", "a{3}", "aa", 0, nil},
		{"case fold", "abc", "ABC", syntax.CaseInsensitive, span(0, 3)},
		{"ungreedy flag", "a*", "aa", syntax.Ungreedy, span(0, 0)},
		{"escaped digit run", `\d{3}-\d{2}-\d{4}`, "123-45-6789", 0, span(0, 11)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, tt.flags, tt.want)
		})
	}
}

func TestMatchAtomicAndPossessive(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    *Span
	}{
		{"atomic refuses to give back", "(?>ab|a)bc", "abc", nil},
		{"backtracking sibling matches", "(?:ab|a)bc", "abc", span(0, 3)},
		{"possessive star", "a*+b", "aaab", span(0, 4)},
		{"possessive starves suffix", "a*+ab", "aaab", nil},
		{"possessive plus", "a++b", "ab", span(0, 2)},
		{"atomic group inert when irrelevant", "(?>abc)d", "abcd", span(0, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, 0, tt.want)
		})
	}
}

func TestMatchAnchors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		flags   syntax.Flags
		want    *Span
	}{
		{"both anchors", "^abc$", "abc", 0, span(0, 3)},
		{"start anchor rejects offset", "^abc", "xabc", 0, nil},
		{"multiline caret", "^b", "a\nb", syntax.Multiline, span(2, 3)},
		{"multiline caret crlf", "^b", "a\r\nb", syntax.Multiline | syntax.NewlineCRLF, span(3, 4)},
		{"multiline dollar crlf", "a$", "a\r\nx", syntax.Multiline | syntax.NewlineCRLF, span(0, 1)},
		{"dollar before final break", "a$", "a\n", 0, span(0, 1)},
		{"dollar before final crlf", "a$", "a\r\n", syntax.NewlineCRLF, span(0, 1)},
		{"dollar end only", "a$", "a\n", syntax.DollarEndOnly, nil},
		{"absolute end", `a\z`, "a\n", 0, nil},
		{"absolute end matches", `a\z`, "a", 0, span(0, 1)},
		{"end or final break", `a\Z`, "a\n", 0, span(0, 1)},
		{"word boundary", `\bfoo\b`, "a foo b", 0, span(2, 5)},
		{"word boundary rejects infix", `\bfoo\b`, "afoob", 0, nil},
		{"non boundary", `\Bob\B`, "jobs", 0, span(1, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, tt.flags, tt.want)
		})
	}
}

func TestMatchDotModes(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		flags   syntax.Flags
		want    *Span
	}{
		{"dot excludes lf", ".", "\n", 0, nil},
		{"dotall takes lf", ".", "\n", syntax.DotAll, span(0, 1)},
		{"dot excludes cr in crlf mode", ".", "\r", syntax.NewlineCRLF, nil},
		{"dot excludes lf in crlf mode", ".", "\n", syntax.NewlineCRLF, nil},
		{"dot takes nel in lf mode", ".", "\x85", 0, span(0, 1)},
		{"dot excludes nel in any mode", ".", "\x85", syntax.NewlineAny, nil},
		{"utf8 dot spans rune", ".", "é", syntax.UTF8, span(0, 2)},
		{"utf8 dot rejects invalid byte", ".", "\xff", syntax.UTF8, nil},
		{"utf8 dotall takes lf", ".", "\n", syntax.UTF8 | syntax.DotAll, span(0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, tt.flags, tt.want)
		})
	}
}

func TestMatchAnyBreak(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		flags   syntax.Flags
		want    *Span
	}{
		{"crlf as one break", `\R`, "\r\n", 0, span(0, 2)},
		{"lone lf", `\R`, "\n", 0, span(0, 1)},
		{"vertical tab default", `\R`, "\v", 0, span(0, 1)},
		{"vertical tab anycrlf", `\R`, "\v", syntax.BSRAnyCRLF, nil},
		// \R consumes CRLF atomically: backtracking may not split the
		// pair to satisfy a following \n.
		{"atomic crlf", `\R\n`, "\r\n", 0, nil},
		{"break then byte", `\Rx`, "\r\nx", 0, span(0, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, tt.flags, tt.want)
		})
	}
}

func TestMatchEmptyLoops(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    *Span
	}{
		{"optional body star", "(a?)*", "b", span(0, 0)},
		{"nested star", "(a*)*", "", span(0, 0)},
		{"empty alternative plus", "(a|)+", "aa", span(0, 2)},
		{"empty group star", "()*", "x", span(0, 0)},
		{"guarded loop still consumes", "(a?)+b", "aab", span(0, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, 0, tt.want)
		})
	}
}

func capture(t *testing.T, pattern, input string, flags syntax.Flags) *MatchResult {
	t.Helper()
	m := NewMachine(compileProg(t, pattern, flags))
	res, err := m.Capture([]byte(input), 0)
	if err != nil {
		t.Fatalf("Capture(%q, %q) error: %v", pattern, input, err)
	}
	return res
}

func TestCaptureGroups(t *testing.T) {
	res := capture(t, "a(b+)c", "abbbc", 0)
	if res == nil {
		t.Fatal("no match")
	}
	want := []Span{{0, 5}, {1, 4}}
	if diff := cmp.Diff(want, res.Spans); diff != "" {
		t.Errorf("spans (-want +got):\n%s", diff)
	}

	res = capture(t, `(?<year>\d{4})-(?<m>\d{2})`, "2025-01", 0)
	if res == nil {
		t.Fatal("no match")
	}
	if got, ok := res.Named("year"); !ok || got != (Span{0, 4}) {
		t.Errorf("year = %+v, %v", got, ok)
	}
	if got, ok := res.Named("m"); !ok || got != (Span{5, 7}) {
		t.Errorf("m = %+v, %v", got, ok)
	}
	if _, ok := res.Named("day"); ok {
		t.Error("unknown name resolved")
	}

	res = capture(t, "(a)|(b)", "b", 0)
	if res == nil {
		t.Fatal("no match")
	}
	if _, ok := res.Group(1); ok {
		t.Error("group 1 should be unset")
	}
	if got, ok := res.Group(2); !ok || got != (Span{0, 1}) {
		t.Errorf("group 2 = %+v, %v", got, ok)
	}

	// The last iteration wins for a group inside a quantifier.
	res = capture(t, "(a|b)+", "ab", 0)
	if got, ok := res.Group(1); !ok || got != (Span{1, 2}) {
		t.Errorf("repeated group = %+v, %v", got, ok)
	}

	// \K moves the reported match start without touching group spans.
	res = capture(t, `a\K(b)`, "ab", 0)
	if res.Spans[0] != (Span{1, 2}) {
		t.Errorf("overall = %+v", res.Spans[0])
	}
	if got, _ := res.Group(1); got != (Span{1, 2}) {
		t.Errorf("group = %+v", got)
	}
}

func TestCaptureDisjointness(t *testing.T) {
	patterns := []struct {
		pattern string
		input   string
	}{
		{"(a+)(b+)", "xaabbb"},
		{"((a)(b))c", "abc"},
		{"(\\w+)@(\\w+)", "user@host"},
	}
	for _, tt := range patterns {
		res := capture(t, tt.pattern, tt.input, 0)
		if res == nil {
			t.Fatalf("%q: no match", tt.pattern)
		}
		overall := res.Spans[0]
		for g := 1; g < len(res.Spans); g++ {
			s, ok := res.Group(g)
			if !ok {
				continue
			}
			if s.Start < overall.Start || s.End > overall.End || s.Start > s.End {
				t.Errorf("%q: group %d %+v escapes overall %+v", tt.pattern, g, s, overall)
			}
		}
	}
}

func TestBackreferences(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		flags   syntax.Flags
		want    *Span
	}{
		{"simple backref", `(ab)\1`, "abab", 0, span(0, 4)},
		{"backref forces giveback", `(a+)\1`, "aaaa", 0, span(0, 4)},
		{"named backref", `(?<x>ab)\k<x>`, "abab", 0, span(0, 4)},
		{"folded backref", `(ab)\1`, "abAB", syntax.CaseInsensitive, span(0, 4)},
		{"unset group fails", `(b)?\1`, "a", 0, nil},
		{"empty group matches", `(b?)\1`, "a", 0, span(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, tt.flags, tt.want)
		})
	}

	res := capture(t, `(a+)\1`, "aaaa", 0)
	if got, _ := res.Group(1); got != (Span{0, 2}) {
		t.Errorf("group after giveback = %+v", got)
	}
}

func TestLookaround(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    *Span
	}{
		{"lookahead holds", "a(?=b)", "ab", span(0, 1)},
		{"lookahead fails", "a(?=b)", "ac", nil},
		{"negative lookahead holds", "a(?!b)", "ac", span(0, 1)},
		{"negative lookahead fails", "a(?!b)", "ab", nil},
		{"lookbehind holds", "(?<=a)b", "ab", span(1, 2)},
		{"lookbehind fails", "(?<=a)b", "xb", nil},
		{"lookbehind at start", "(?<=a)b", "b", nil},
		{"variable window", "(?<=ab|x)c", "abc", span(2, 3)},
		{"variable window short", "(?<=ab|x)c", "xc", span(1, 2)},
		{"negative lookbehind", "(?<!a)b", "cb", span(1, 2)},
		{"negative lookbehind fails", "(?<!a)b", "ab", nil},
		{"anchor inside lookbehind", "(?<=^a)b", "ab", span(1, 2)},
		{"anchor inside lookbehind offset", "(?<=^a)b", "xab", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFind(t, tt.pattern, tt.input, 0, tt.want)
		})
	}
}

func TestLookaroundCaptures(t *testing.T) {
	// A successful positive lookaround keeps its captures.
	res := capture(t, `(?=(ab))a`, "ab", 0)
	if res == nil {
		t.Fatal("no match")
	}
	if got, ok := res.Group(1); !ok || got != (Span{0, 2}) {
		t.Errorf("lookahead capture = %+v, %v", got, ok)
	}

	// A failed branch restores the snapshot before the next
	// alternative runs.
	res = capture(t, `(?=(a))b|b`, "b", 0)
	if res == nil {
		t.Fatal("no match")
	}
	if _, ok := res.Group(1); ok {
		t.Error("capture from failed lookahead survived")
	}

	// Negative lookarounds never export captures.
	res = capture(t, `(?!(a))b`, "b", 0)
	if res == nil {
		t.Fatal("no match")
	}
	if _, ok := res.Group(1); ok {
		t.Error("capture from negative lookahead survived")
	}

	// The shortest viable lookbehind window wins.
	res = capture(t, `(?<=(a|aa))b`, "aab", 0)
	if res == nil {
		t.Fatal("no match")
	}
	if got, _ := res.Group(1); got != (Span{1, 2}) {
		t.Errorf("window capture = %+v, want {1 2}", got)
	}

	// Lookbehind captures persist too.
	res = capture(t, `(?<=(ab))c`, "abc", 0)
	if got, _ := res.Group(1); got != (Span{0, 2}) {
		t.Errorf("lookbehind capture = %+v", got)
	}
}

func TestMatchStartReset(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    *Span
	}{
		{`a\Kb`, "ab", span(1, 2)},
		{`\w+\K\d`, "ab1", span(2, 3)},
	}
	for _, tt := range tests {
		checkFind(t, tt.pattern, tt.input, 0, tt.want)
	}
}

func TestSearchOffsets(t *testing.T) {
	prog := compileProg(t, "ab", 0)
	m := NewMachine(prog)

	got, err := m.Find([]byte("abab"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != (Span{2, 4}) {
		t.Errorf("offset find = %+v", got)
	}

	got, err = m.Find([]byte("abab"), 99)
	if err != nil || got != nil {
		t.Errorf("past-end find = %+v, %v", got, err)
	}

	// The anchored flag pins the start to the search offset.
	m = NewMachine(compileProg(t, "b", syntax.Anchored))
	if got, _ := m.Find([]byte("ab"), 0); got != nil {
		t.Errorf("anchored at 0 = %+v", got)
	}
	if got, _ := m.Find([]byte("ab"), 1); got == nil || *got != (Span{1, 2}) {
		t.Errorf("anchored at 1 = %+v", got)
	}

	// ^ compiles to an input anchor: no match can start past 0.
	m = NewMachine(compileProg(t, "^b", 0))
	if got, _ := m.Find([]byte("ab"), 0); got != nil {
		t.Errorf("input-anchored = %+v", got)
	}
}
