// Package dsl runs conformance suites against the engine.
//
// A suite is the YAML projection of .rift test directives: named
// patterns with option flags, each carrying input and expectation
// cases. The DSL grammar itself lives outside this module; this
// package consumes the exported fixture form and reports per-case
// results.
//
// Fixture shape:
//
//	name: email
//	patterns:
//	  - name: simple-email
//	    pattern: '(\w+)@(\w+)'
//	    flags: [i]
//	    cases:
//	      - input: User@Example
//	        expect_match: true
//	        expected_groups: ['User@Example', 'User', 'Example']
//	      - input: no at sign
//	        expect_match: false
package dsl

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/librift/librift"
	"github.com/librift/librift/syntax"
)

// PatternSpec identifies one pattern directive.
type PatternSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`

	// Flags holds option names: either canonical flag names such as
	// "CaseInsensitive" or modifier strings in the inline-option
	// alphabet such as "im" or "(CRLF)".
	Flags []string `yaml:"flags,omitempty"`
}

// TestCase is one expectation against a pattern. ExpectedGroups, when
// present, lists the matched text per group starting with the whole
// match at index 0; groups that did not participate are expected
// empty.
type TestCase struct {
	Input          string   `yaml:"input"`
	ExpectMatch    bool     `yaml:"expect_match"`
	ExpectedGroups []string `yaml:"expected_groups,omitempty"`
}

// PatternEntry couples a pattern with its cases.
type PatternEntry struct {
	PatternSpec `yaml:",inline"`
	Cases       []TestCase `yaml:"cases"`
}

// Suite is one fixture file.
type Suite struct {
	Name     string         `yaml:"name,omitempty"`
	Patterns []PatternEntry `yaml:"patterns"`
}

// Failure records one failed case. Case is the index within the
// pattern's case list, -1 when the pattern itself failed to compile
// and had no cases to charge it to.
type Failure struct {
	Pattern string
	Case    int
	Input   string
	Reason  string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s[%d] %q: %s", f.Pattern, f.Case, f.Input, f.Reason)
}

// Report aggregates one suite run.
type Report struct {
	Total    int
	Passed   int
	Failed   int
	Failures []Failure
}

// Ok reports whether every case passed.
func (r *Report) Ok() bool { return r.Failed == 0 }

// flagNames maps the canonical option names accepted in fixtures.
var flagNames = map[string]syntax.Flags{
	"CaseInsensitive": syntax.CaseInsensitive,
	"Multiline":       syntax.Multiline,
	"DotAll":          syntax.DotAll,
	"Extended":        syntax.Extended,
	"Anchored":        syntax.Anchored,
	"DollarEndOnly":   syntax.DollarEndOnly,
	"Ungreedy":        syntax.Ungreedy,
	"UTF8":            syntax.UTF8,
	"NoAutoCapture":   syntax.NoAutoCapture,
	"DupNames":        syntax.DupNames,
	"NewlineCR":       syntax.NewlineCR,
	"NewlineLF":       syntax.NewlineLF,
	"NewlineCRLF":     syntax.NewlineCRLF,
	"NewlineAny":      syntax.NewlineAny,
	"NewlineAnyCRLF":  syntax.NewlineAnyCRLF,
	"BSRAnyCRLF":      syntax.BSRAnyCRLF,
	"BSRUnicode":      syntax.BSRUnicode,
	"UCP":             syntax.UCP,
	"NoStartOptimize": syntax.NoStartOptimize,
	"Rift":            syntax.Rift,
}

// ResolveFlags folds fixture flag names into one option set.
func ResolveFlags(names []string) (syntax.Flags, error) {
	var f syntax.Flags
	for _, n := range names {
		if base, ok := flagNames[n]; ok {
			f |= base
			continue
		}
		mod, err := syntax.ParseModifiers(n)
		if err != nil {
			return 0, fmt.Errorf("flag %q: %w", n, err)
		}
		f |= mod
	}
	return f.Resolve(), nil
}

// LoadSuite decodes a YAML fixture stream. Unknown document fields,
// nameless patterns, and unknown flag names are load errors; pattern
// syntax errors are not, they surface as case failures in RunSuite.
func LoadSuite(r io.Reader) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("dsl: decode suite: %w", err)
	}
	for i := range s.Patterns {
		e := &s.Patterns[i]
		if e.Name == "" {
			return nil, fmt.Errorf("dsl: pattern %d: missing name", i)
		}
		if _, err := ResolveFlags(e.Flags); err != nil {
			return nil, fmt.Errorf("dsl: pattern %q: %w", e.Name, err)
		}
	}
	return &s, nil
}

// RunSuite compiles every pattern and evaluates every case. Compile
// failures charge all of the pattern's cases; engine errors during
// matching fail the individual case.
func RunSuite(s *Suite) *Report {
	rep := &Report{}
	for i := range s.Patterns {
		entry := &s.Patterns[i]

		flags, err := ResolveFlags(entry.Flags)
		if err != nil {
			rep.failAll(entry, "flags: "+err.Error())
			continue
		}
		p, err := librift.Compile(entry.Pattern, flags)
		if err != nil {
			rep.failAll(entry, "compile: "+err.Error())
			continue
		}

		for j := range entry.Cases {
			tc := &entry.Cases[j]
			rep.Total++
			if reason := runCase(p, tc); reason != "" {
				rep.Failed++
				rep.Failures = append(rep.Failures, Failure{
					Pattern: entry.Name,
					Case:    j,
					Input:   tc.Input,
					Reason:  reason,
				})
			} else {
				rep.Passed++
			}
		}
	}
	return rep
}

func (r *Report) failAll(entry *PatternEntry, reason string) {
	if len(entry.Cases) == 0 {
		r.Total++
		r.Failed++
		r.Failures = append(r.Failures, Failure{Pattern: entry.Name, Case: -1, Reason: reason})
		return
	}
	for i := range entry.Cases {
		r.Total++
		r.Failed++
		r.Failures = append(r.Failures, Failure{
			Pattern: entry.Name,
			Case:    i,
			Input:   entry.Cases[i].Input,
			Reason:  reason,
		})
	}
}

func runCase(p *librift.Pattern, tc *TestCase) string {
	input := []byte(tc.Input)

	if len(tc.ExpectedGroups) == 0 {
		ok, err := p.Matches(input)
		if err != nil {
			return "match: " + err.Error()
		}
		if ok != tc.ExpectMatch {
			return fmt.Sprintf("matched = %v, want %v", ok, tc.ExpectMatch)
		}
		return ""
	}

	m, err := p.Capture(input, 0)
	if err != nil {
		return "capture: " + err.Error()
	}
	if m == nil {
		if !tc.ExpectMatch {
			return ""
		}
		return "no match, want groups"
	}
	if !tc.ExpectMatch {
		return "matched, want no match"
	}
	for i, want := range tc.ExpectedGroups {
		if got := string(m.Bytes(input, i)); got != want {
			return fmt.Sprintf("group %d = %q, want %q", i, got, want)
		}
	}
	return ""
}
