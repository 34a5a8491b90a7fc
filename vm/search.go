package vm

import "github.com/librift/librift/bytecode"

// Span is a half-open byte range [Start, End) in the input. An unset
// span is {-1, -1}.
type Span struct {
	Start int
	End   int
}

// Set reports whether the span holds a real range.
func (s Span) Set() bool { return s.Start >= 0 }

// Len returns the span's byte length, 0 when unset.
func (s Span) Len() int {
	if !s.Set() {
		return 0
	}
	return s.End - s.Start
}

// MatchResult is the capture state of one successful match. Spans[0]
// is the overall match; Spans[g] bounds capture group g. Groups that
// did not participate are unset.
type MatchResult struct {
	Spans []Span

	names []string
}

// GroupCount returns the number of capture groups, excluding the
// overall match.
func (r *MatchResult) GroupCount() int { return len(r.Spans) - 1 }

// Group returns the span of group i (0 is the overall match) and
// whether that group participated in the match.
func (r *MatchResult) Group(i int) (Span, bool) {
	if i < 0 || i >= len(r.Spans) {
		return Span{-1, -1}, false
	}
	s := r.Spans[i]
	return s, s.Set()
}

// Named returns the span of a named group.
func (r *MatchResult) Named(name string) (Span, bool) {
	for i, n := range r.names {
		if i > 0 && n == name {
			return r.Group(i)
		}
	}
	return Span{-1, -1}, false
}

// Bytes returns the input slice group i matched, nil for unset
// groups.
func (r *MatchResult) Bytes(input []byte, i int) []byte {
	s, ok := r.Group(i)
	if !ok {
		return nil
	}
	return input[s.Start:s.End]
}

// Result snapshots the capture state after a successful Search on
// ctx. Calling it after a failed search yields unset spans.
func (m *Machine) Result(ctx *Context) *MatchResult {
	prog := m.prog
	spans := make([]Span, prog.NumGroups+1)
	for g := range spans {
		s, e := ctx.Slots[2*g], ctx.Slots[2*g+1]
		if s < 0 || e < s {
			spans[g] = Span{-1, -1}
		} else {
			spans[g] = Span{s, e}
		}
	}
	return &MatchResult{Spans: spans, names: prog.Names}
}

// Matches reports whether prog matches anywhere in input.
func Matches(prog *bytecode.Program, input []byte) (bool, error) {
	m := NewMachine(prog)
	ctx := m.NewContext()
	ctx.SetInput(input)
	return m.Search(ctx, 0)
}

// Find returns the span of the leftmost match at or after from, or
// nil when there is none.
func Find(prog *bytecode.Program, input []byte, from int) (*Span, error) {
	m := NewMachine(prog)
	return m.Find(input, from)
}

// Capture returns the full capture state of the leftmost match at or
// after from, or nil when there is none.
func Capture(prog *bytecode.Program, input []byte, from int) (*MatchResult, error) {
	m := NewMachine(prog)
	return m.Capture(input, from)
}

// FindIter returns an iterator over all non-overlapping matches.
func FindIter(prog *bytecode.Program, input []byte) *Iter {
	return NewMachine(prog).FindIter(input)
}

// Matches reports whether the program matches anywhere in input.
func (m *Machine) Matches(input []byte) (bool, error) {
	ctx := m.NewContext()
	ctx.SetInput(input)
	return m.Search(ctx, 0)
}

// Find returns the span of the leftmost match at or after from, or
// nil when there is none.
func (m *Machine) Find(input []byte, from int) (*Span, error) {
	ctx := m.NewContext()
	ctx.SetInput(input)
	ok, err := m.Search(ctx, from)
	if err != nil || !ok {
		return nil, err
	}
	span := Span{ctx.Slots[0], ctx.Slots[1]}
	return &span, nil
}

// Capture returns the full capture state of the leftmost match at or
// after from, or nil when there is none.
func (m *Machine) Capture(input []byte, from int) (*MatchResult, error) {
	ctx := m.NewContext()
	ctx.SetInput(input)
	ok, err := m.Search(ctx, from)
	if err != nil || !ok {
		return nil, err
	}
	return m.Result(ctx), nil
}

// FindIter returns an iterator over all non-overlapping matches in
// input, leftmost first.
func (m *Machine) FindIter(input []byte) *Iter {
	ctx := m.NewContext()
	ctx.SetInput(input)
	return &Iter{m: m, ctx: ctx}
}

// Iter walks the non-overlapping matches of a program over one input.
// Matches are reported in strictly increasing start order; after a
// zero-width match the scan resumes one byte past its start, so the
// iterator always terminates.
type Iter struct {
	m    *Machine
	ctx  *Context
	next int
	cur  *MatchResult
	err  error
	done bool
}

// Next advances to the following match. It returns false at the end
// of input or on error; check Err afterwards.
func (it *Iter) Next() bool {
	if it.done {
		return false
	}
	ok, err := it.m.Search(it.ctx, it.next)
	if err != nil || !ok {
		it.err = err
		it.done = true
		return false
	}
	it.cur = it.m.Result(it.ctx)
	overall := it.cur.Spans[0]
	if overall.End > overall.Start {
		it.next = overall.End
	} else {
		it.next = overall.Start + 1
	}
	return true
}

// Match returns the current match. Valid after Next reports true.
func (it *Iter) Match() *MatchResult { return it.cur }

// Err returns the error that stopped iteration, if any.
func (it *Iter) Err() error { return it.err }
