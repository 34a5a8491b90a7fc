package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/librift/librift/rifterr"
)

func collectSpans(t *testing.T, it *Iter) []Span {
	t.Helper()
	var spans []Span
	for it.Next() {
		spans = append(spans, it.Match().Spans[0])
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration error: %v", err)
	}
	return spans
}

func TestIterSpans(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		want    []Span
	}{
		{"disjoint words", `\w+`, "one two", []Span{{0, 3}, {4, 7}}},
		{"adjacent matches", "aa", "aaaa", []Span{{0, 2}, {2, 4}}},
		{"no matches", "x", "abc", nil},
		{"empty pattern walks input", "", "ab", []Span{{0, 0}, {1, 1}, {2, 2}}},
		{"zero width resumes next byte", "a*", "ab", []Span{{0, 1}, {1, 1}, {2, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := FindIter(compileProg(t, tt.pattern, 0), []byte(tt.input))
			got := collectSpans(t, it)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("spans (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIterStartsStrictlyIncrease(t *testing.T) {
	it := FindIter(compileProg(t, "a*", 0), []byte("abaab"))
	prev := -1
	for it.Next() {
		start := it.Match().Spans[0].Start
		if start <= prev {
			t.Fatalf("start %d follows %d", start, prev)
		}
		prev = start
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestIterStopsOnError(t *testing.T) {
	m := NewMachine(compileProg(t, "(a+)+b", 0))
	m.SetLimits(Limits{MaxTransitions: 2000})

	it := m.FindIter([]byte(strings.Repeat("a", 30)))
	if it.Next() {
		t.Fatal("Next succeeded past the transition budget")
	}
	if rifterr.KindOf(it.Err()) != rifterr.KindBacktrackLimit {
		t.Errorf("Err = %v, want backtrack limit", it.Err())
	}
	if it.Next() {
		t.Error("Next advanced after an error")
	}
}

func TestPackageSearchFuncs(t *testing.T) {
	prog := compileProg(t, `(\w+)@(\w+)`, 0)
	input := []byte("mail bob@example today")

	ok, err := Matches(prog, input)
	if err != nil || !ok {
		t.Fatalf("Matches = %v, %v", ok, err)
	}

	sp, err := Find(prog, input, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sp == nil || *sp != (Span{5, 16}) {
		t.Errorf("Find = %+v, want {5 16}", sp)
	}

	res, err := Capture(prog, input, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("Capture returned no match")
	}
	if got := res.Bytes(input, 1); !bytes.Equal(got, []byte("bob")) {
		t.Errorf("group 1 = %q", got)
	}
	if got := res.Bytes(input, 2); !bytes.Equal(got, []byte("example")) {
		t.Errorf("group 2 = %q", got)
	}

	it := FindIter(prog, input)
	if !it.Next() {
		t.Fatal("iterator found nothing")
	}
	if got := it.Match().Spans[0]; got != (Span{5, 16}) {
		t.Errorf("iter span = %+v", got)
	}
}

func TestResultUnsetGroups(t *testing.T) {
	input := []byte("b")
	res, err := Capture(compileProg(t, "(a)|(b)", 0), input, 0)
	if err != nil || res == nil {
		t.Fatalf("Capture = %v, %v", res, err)
	}
	if res.GroupCount() != 2 {
		t.Errorf("GroupCount = %d", res.GroupCount())
	}
	if got := res.Bytes(input, 1); got != nil {
		t.Errorf("unset group bytes = %q, want nil", got)
	}
	if _, ok := res.Group(99); ok {
		t.Error("out-of-range group resolved")
	}
	if _, ok := res.Group(-1); ok {
		t.Error("negative group resolved")
	}
}

func TestSpanHelpers(t *testing.T) {
	s := Span{2, 5}
	if !s.Set() || s.Len() != 3 {
		t.Errorf("Span{2,5}: Set=%v Len=%d", s.Set(), s.Len())
	}
	unset := Span{-1, -1}
	if unset.Set() || unset.Len() != 0 {
		t.Errorf("unset span: Set=%v Len=%d", unset.Set(), unset.Len())
	}
}
