// Fuzz tests for the public API. FuzzCompile pushes arbitrary pattern
// bytes through the whole pipeline and requires a clean diagnostic or a
// working pattern, never a panic. The *Stdlib fuzzers cross-check
// matching against the standard library on the feature subset the two
// engines share; known, deliberate behavior differences are filtered.
//
// Run with:
//
//	go test -fuzz=FuzzCompile -fuzztime=30s
//	go test -fuzz=FuzzMatchStdlib -fuzztime=30s
//	go test -fuzz=FuzzFindAllStdlib -fuzztime=30s
package librift

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/librift/librift/rifterr"
	"github.com/librift/librift/syntax"
	"github.com/librift/librift/vm"
)

// ===========================================================================
// Seed corpus
// ===========================================================================

var seedPatterns = []string{
	`hello`,
	`\d+`,
	`\w+`,
	`\s+`,
	`[a-z]+`,
	`[^0-9]+`,
	`[[:alpha:]]+`,
	`^hello`,
	`world$`,
	`^$`,
	`\bhello\b`,
	`a*`,
	`a+`,
	`a??`,
	`a*?`,
	`a{2,5}`,
	`(?U)a+`,
	`foo|bar`,
	`x|`,
	`(ab|a)(c|bcd)`,
	`(?:ab)+`,
	`(a)(b)`,
	`(?i)hello`,
	`(?P<w>\w+)`,
	`(?<y>\d{4})-(?<m>\d{2})`,
	`\d{3}-\d{4}`,
	`.`,
	`.*\.txt$`,

	// These seed the filters rather than the comparison: the engine
	// rejects \p without UCP support, and both engines reject a**.
	`\p{L}+`,
	`a**`,
}

var seedInputs = []string{
	"",
	"a",
	"ab",
	"abcd",
	"aaa",
	"xaaab",
	"ababab",
	"hello",
	"HeLLo",
	"hello world",
	"foo bar baz",
	"123",
	"abc123",
	"555-1234",
	"file.txt",
	"hello\nworld",
	"  spaces  ",
	"MixedCase",
	"a,b,c",
	"no match here",
	"\ttab",
	"zzz",
}

// ===========================================================================
// Known differences
// ===========================================================================

// isASCII reports whether every byte of s is 7-bit, so byte-wise and
// rune-wise matching coincide.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// hasDigitEscape reports whether the pattern contains backslash-digit.
// This engine reads those as backreferences; the standard library reads
// them as octal escapes.
func hasDigitEscape(pattern string) bool {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] == '\\' {
			if pattern[i+1] >= '0' && pattern[i+1] <= '9' {
				return true
			}
			i++
		}
	}
	return false
}

// skipKnownDifference filters pattern/input pairs where behavior
// legitimately diverges from the standard library: non-ASCII text
// (bytes versus runes), backslash-digit escapes (backreference versus
// octal), and \s against vertical tab (\s includes \v here, the
// standard library's does not).
func skipKnownDifference(pattern, input string) bool {
	if !isASCII(pattern) || !isASCII(input) {
		return true
	}
	if hasDigitEscape(pattern) {
		return true
	}
	if strings.Contains(input, "\v") &&
		(strings.Contains(pattern, `\s`) || strings.Contains(pattern, `\S`)) {
		return true
	}
	return false
}

// bothCompile compiles the pattern in both engines. The engine side
// gets DollarEndOnly so $ matches only at the end of input, which is
// the standard library's default reading.
func bothCompile(t *testing.T, pattern string) (*regexp.Regexp, *Pattern) {
	t.Helper()
	stdRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, nil
	}
	re, err := Compile(pattern, syntax.DollarEndOnly)
	if err != nil {
		return nil, nil
	}
	re.SetLimits(vm.Limits{
		MaxDepth:       500,
		MaxDuration:    250 * time.Millisecond,
		MaxTransitions: 50000,
	})
	return stdRe, re
}

// skipRuntimeErr reports limit bailouts, which the linear-time standard
// library cannot hit. Any other search error is a bug.
func skipRuntimeErr(t *testing.T, op, pattern, input string, err error) bool {
	t.Helper()
	if err == nil {
		return false
	}
	if rifterr.KindOf(err).Runtime() {
		return true
	}
	t.Fatalf("%s(%q, %q): %v", op, pattern, input, err)
	return true
}

// ===========================================================================
// Pipeline robustness
// ===========================================================================

func FuzzCompile(f *testing.F) {
	for _, p := range seedPatterns {
		f.Add(p)
	}
	for _, p := range []string{
		"(((",
		"a)",
		"[z-a",
		`\`,
		"a{2,1}",
		"a{99999}",
		"(?P=w)",
		"(?(1)a)",
		"(?<=a*)b",
		"(?'n'a)b",
		"(?#note)a",
		`r'\d+'x`,
		`\Qa+b\E`,
		"(a|b)*c",
		strings.Repeat("(", 100),
		strings.Repeat("a?", 40) + strings.Repeat("a", 40),
		"(?<" + strings.Repeat("n", 200) + ">a)",
	} {
		f.Add(p)
	}

	probes := [][]byte{
		nil,
		[]byte("a"),
		[]byte("abc\n"),
		[]byte("aaaaaaaaaaaaaaaaaaaaaaaa"),
		[]byte("\x00\xffzz"),
	}

	f.Fuzz(func(t *testing.T, pattern string) {
		re, err := Compile(pattern, 0)
		if err != nil {
			var diag *rifterr.Error
			if !errors.As(err, &diag) {
				t.Fatalf("Compile(%q) error %T is not a diagnostic: %v", pattern, err, err)
			}
			return
		}

		// Whatever compiles must survive the wire and come back to the
		// same bytes.
		data := re.Serialize()
		prog, err := DeserializeProgram(data)
		if err != nil {
			t.Fatalf("round-trip rejected %q: %v", pattern, err)
		}
		if !bytes.Equal(Serialize(prog), data) {
			t.Errorf("unstable serialization for %q", pattern)
		}

		re.SetLimits(vm.Limits{
			MaxDepth:       500,
			MaxDuration:    250 * time.Millisecond,
			MaxTransitions: 50000,
		})
		for _, input := range probes {
			if _, err := re.Matches(input); err != nil && !rifterr.KindOf(err).Runtime() {
				t.Fatalf("Matches(%q, %q): %v", pattern, input, err)
			}
		}

		// Flag variants change lexing; they must be just as crash-free.
		_, _ = Compile(pattern, syntax.Rift|syntax.Extended)
		_, _ = Compile(pattern, syntax.CaseInsensitive|syntax.Multiline|syntax.NewlineCRLF)
	})
}

// ===========================================================================
// Behavior against the standard library
// ===========================================================================

func FuzzMatchStdlib(f *testing.F) {
	for _, p := range seedPatterns {
		for _, i := range seedInputs {
			f.Add(p, i)
		}
	}

	f.Fuzz(func(t *testing.T, pattern, input string) {
		if skipKnownDifference(pattern, input) {
			return
		}
		stdRe, re := bothCompile(t, pattern)
		if re == nil {
			return
		}

		got, err := re.Matches([]byte(input))
		if skipRuntimeErr(t, "Matches", pattern, input, err) {
			return
		}
		if want := stdRe.MatchString(input); got != want {
			t.Errorf("Matches(%q, %q) = %v, stdlib %v", pattern, input, got, want)
		}
	})
}

func FuzzFindStdlib(f *testing.F) {
	for _, p := range seedPatterns {
		for _, i := range seedInputs {
			f.Add(p, i)
		}
	}

	f.Fuzz(func(t *testing.T, pattern, input string) {
		if skipKnownDifference(pattern, input) {
			return
		}
		stdRe, re := bothCompile(t, pattern)
		if re == nil {
			return
		}

		span, err := re.Find([]byte(input), 0)
		if skipRuntimeErr(t, "Find", pattern, input, err) {
			return
		}
		idx := stdRe.FindStringIndex(input)
		switch {
		case (span == nil) != (idx == nil):
			t.Errorf("Find(%q, %q) = %v, stdlib %v", pattern, input, span, idx)
		case span != nil && (span.Start != idx[0] || span.End != idx[1]):
			t.Errorf("Find(%q, %q) = [%d,%d], stdlib %v",
				pattern, input, span.Start, span.End, idx)
		}
	})
}

func FuzzFindAllStdlib(f *testing.F) {
	for _, p := range seedPatterns {
		for _, i := range seedInputs {
			f.Add(p, i)
		}
	}

	f.Fuzz(func(t *testing.T, pattern, input string) {
		if skipKnownDifference(pattern, input) {
			return
		}
		stdRe, re := bothCompile(t, pattern)
		if re == nil {
			return
		}
		// A pattern that can match emptily iterates differently here:
		// empty matches adjacent to non-empty ones are reported.
		if re.Program().MinW == 0 {
			return
		}

		for _, max := range []int{-1, 3} {
			spans, err := re.FindAll([]byte(input), max)
			if skipRuntimeErr(t, "FindAll", pattern, input, err) {
				return
			}
			idx := stdRe.FindAllStringIndex(input, max)
			if len(spans) != len(idx) {
				t.Errorf("FindAll(%q, %q, %d): %d matches, stdlib %d",
					pattern, input, max, len(spans), len(idx))
				continue
			}
			for i, sp := range spans {
				if sp.Start != idx[i][0] || sp.End != idx[i][1] {
					t.Errorf("FindAll(%q, %q, %d)[%d] = [%d,%d], stdlib %v",
						pattern, input, max, i, sp.Start, sp.End, idx[i])
				}
			}
		}
	})
}

func FuzzCaptureStdlib(f *testing.F) {
	capturePatterns := []string{
		`(a)`,
		`(a)(b)`,
		`(a|b)(c|bcd)`,
		`(\d+)`,
		`(\w+)@(\w+)`,
		`(?P<first>\w+)\s+(?P<second>\w+)`,
		`(([a-z]+)(\d+))`,
		`(a)*`,
		`(a+)(b*)`,
	}
	for _, p := range capturePatterns {
		for _, i := range seedInputs {
			f.Add(p, i)
		}
	}

	f.Fuzz(func(t *testing.T, pattern, input string) {
		if skipKnownDifference(pattern, input) {
			return
		}
		stdRe, re := bothCompile(t, pattern)
		if re == nil {
			return
		}

		if got, want := re.GroupCount(), stdRe.NumSubexp(); got != want {
			t.Fatalf("GroupCount(%q) = %d, stdlib %d", pattern, got, want)
		}
		stdNames := stdRe.SubexpNames()
		for i, name := range re.GroupNames() {
			if name != stdNames[i+1] {
				t.Errorf("GroupNames(%q)[%d] = %q, stdlib %q", pattern, i, name, stdNames[i+1])
			}
		}

		m, err := re.Capture([]byte(input), 0)
		if skipRuntimeErr(t, "Capture", pattern, input, err) {
			return
		}
		idx := stdRe.FindStringSubmatchIndex(input)
		if (m == nil) != (idx == nil) {
			t.Fatalf("Capture(%q, %q) = %v, stdlib %v", pattern, input, m, idx)
		}
		if m == nil {
			return
		}
		for g, sp := range m.Spans {
			if sp.Start != idx[2*g] || sp.End != idx[2*g+1] {
				t.Errorf("Capture(%q, %q) group %d = [%d,%d], stdlib [%d,%d]",
					pattern, input, g, sp.Start, sp.End, idx[2*g], idx[2*g+1])
			}
		}
	})
}

func FuzzReplaceStdlib(f *testing.F) {
	replacePatterns := []string{`\d+`, `a+`, `hello`, `\s+`, `[a-z]+`}
	for _, p := range replacePatterns {
		for _, i := range seedInputs {
			for _, r := range []string{"", "X", "--"} {
				f.Add(p, i, r)
			}
		}
	}

	f.Fuzz(func(t *testing.T, pattern, input, replacement string) {
		if skipKnownDifference(pattern, input) {
			return
		}
		// Group expansion syntax differs; compare literal replacement only.
		if strings.Contains(replacement, "$") {
			return
		}
		stdRe, re := bothCompile(t, pattern)
		if re == nil {
			return
		}
		if re.Program().MinW == 0 {
			return
		}

		got, _, err := re.Replace([]byte(input), []byte(replacement), -1)
		if skipRuntimeErr(t, "Replace", pattern, input, err) {
			return
		}
		want := stdRe.ReplaceAllLiteralString(input, replacement)
		if string(got) != want {
			t.Errorf("Replace(%q, %q, %q) = %q, stdlib %q",
				pattern, input, replacement, got, want)
		}
	})
}

func FuzzSplitStdlib(f *testing.F) {
	splitPatterns := []string{`,`, `\s+`, `-`, `[,;]+`, `\d+`}
	splitInputs := []string{
		"a,b,c",
		"a-b-c-d",
		"1a2b3c",
		"a;b,c;d",
		"hello world test",
		"",
		"no delimiter",
	}
	for _, p := range splitPatterns {
		for _, i := range splitInputs {
			f.Add(p, i)
		}
	}

	f.Fuzz(func(t *testing.T, pattern, input string) {
		if skipKnownDifference(pattern, input) {
			return
		}
		stdRe, re := bothCompile(t, pattern)
		if re == nil {
			return
		}
		if re.Program().MinW == 0 {
			return
		}

		for _, max := range []int{-1, 2, 0} {
			parts, err := re.Split([]byte(input), max)
			if skipRuntimeErr(t, "Split", pattern, input, err) {
				return
			}
			var got []string
			for _, p := range parts {
				got = append(got, string(p))
			}
			if want := stdRe.Split(input, max); !stringsEqual(got, want) {
				t.Errorf("Split(%q, %q, %d) = %q, stdlib %q", pattern, input, max, got, want)
			}
		}
	})
}

func FuzzQuoteMeta(f *testing.F) {
	for _, s := range []string{
		"hello",
		"a.b+c",
		"$100",
		"(foo)[bar]",
		"^start$",
		"a|b",
		"100%",
		`\d+`,
		"#note",
		"\x00\xff",
	} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, s string) {
		quoted := QuoteMeta(s)
		re, err := Compile(quoted, 0)
		if err != nil {
			t.Fatalf("QuoteMeta(%q) = %q does not compile: %v", s, quoted, err)
		}
		span, err := re.Find([]byte(s), 0)
		if err != nil {
			t.Fatalf("Find(%q, %q): %v", quoted, s, err)
		}
		if span == nil || span.Start != 0 || span.End != len(s) {
			t.Errorf("QuoteMeta(%q) = %q matches %v, want [0,%d]", s, quoted, span, len(s))
		}
	})
}
