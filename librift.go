// Package librift is a backtracking regular-expression engine with
// explicit resource bounds.
//
// Patterns compile to bytecode executed by a backtracking virtual
// machine. The dialect is Perl-flavored and byte-oriented: capture
// groups, named groups, backreferences, lookahead, bounded lookbehind,
// atomic groups, and possessive quantifiers are all supported. Every
// search runs under three limits: a backtrack depth cap, a transition
// budget, and a wall-clock deadline, so a pathological pattern returns
// a limit error instead of hanging the process.
//
// Basic usage:
//
//	re, err := librift.Compile(`(\w+)@(\w+)`, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ok, _ := re.Matches([]byte("mail me: user@example"))
//	// ok == true
//
//	m, _ := re.Capture([]byte("mail me: user@example"), 0)
//	// m.Bytes(input, 1) == []byte("user")
//
// Options combine pattern-level flags with inline modifiers:
//
//	re := librift.MustCompile(`^item`, syntax.CaseInsensitive|syntax.Multiline)
//
// Custom resource bounds:
//
//	cfg := librift.DefaultConfig()
//	cfg.Limits.MaxDuration = 50 * time.Millisecond
//	cfg.Limits.MaxDepth = 200
//	re, err := librift.CompileWithConfig(pattern, 0, cfg)
//
// Compiled programs serialize to a stable binary form and can be
// restored without reparsing:
//
//	blob := re.Serialize()
//	re2, err := librift.Deserialize(blob)
//
// A Pattern is safe for concurrent use. SetLimits is the one
// exception; it must not race a running search.
package librift

import (
	"sync"
	"sync/atomic"

	"github.com/librift/librift/bytecode"
	"github.com/librift/librift/prefilter"
	"github.com/librift/librift/syntax"
	"github.com/librift/librift/vm"
)

// Config tunes compilation and matching. The zero value is not useful;
// start from DefaultConfig.
type Config struct {
	// Limits bounds every search run by this pattern.
	Limits vm.Limits

	// Bailout selects which abort strategies the matcher checks.
	Bailout vm.Bailout

	// StagnationLimit overrides the BailoutProgress threshold when
	// positive.
	StagnationLimit int

	// Prefilter enables literal start optimization for unanchored
	// search.
	Prefilter bool

	// PrefilterConfig bounds literal extraction.
	PrefilterConfig prefilter.Config

	// Registry, when non-nil, supplies effective limits per search:
	// the tightest of the registry's global scope, this pattern's
	// scope (keyed by Pattern.ID), and Limits above.
	Registry *vm.LimitRegistry
}

// DefaultConfig returns the configuration Compile uses.
func DefaultConfig() Config {
	return Config{
		Limits:          vm.DefaultLimits(),
		Bailout:         vm.DefaultBailout,
		Prefilter:       true,
		PrefilterConfig: prefilter.DefaultConfig(),
	}
}

// nextPatternID hands out process-unique pattern ids. Ids are never
// reused, so registry entries cannot alias a recompiled pattern.
var nextPatternID atomic.Uint64

// Pattern is a compiled regular expression.
//
// Example:
//
//	re := librift.MustCompile(`\d+`, 0)
//	sp, _ := re.Find([]byte("no 42 here"), 0)
//	// sp.Start == 3, sp.End == 5
type Pattern struct {
	source   string
	flags    syntax.Flags
	prog     *bytecode.Program
	machine  *vm.Machine
	stats    *vm.Stats
	registry *vm.LimitRegistry
	id       uint64

	ctxPool sync.Pool
}

// Compile compiles a pattern under the given option flags plus any
// inline or rift-quote modifiers the pattern itself carries.
func Compile(pattern string, flags syntax.Flags) (*Pattern, error) {
	return CompileWithConfig(pattern, flags, DefaultConfig())
}

// MustCompile is Compile for patterns known valid at build time; it
// panics on error.
//
//	var wordRe = librift.MustCompile(`\w+`, 0)
func MustCompile(pattern string, flags syntax.Flags) *Pattern {
	p, err := Compile(pattern, flags)
	if err != nil {
		panic("librift: Compile(`" + pattern + "`): " + err.Error())
	}
	return p
}

// CompileWithConfig compiles with explicit limits, bailout strategy,
// and prefilter settings.
func CompileWithConfig(pattern string, flags syntax.Flags, cfg Config) (*Pattern, error) {
	tree, err := syntax.Parse(pattern, flags)
	if err != nil {
		return nil, err
	}
	prog, err := bytecode.Compile(tree)
	if err != nil {
		return nil, err
	}

	p := newPattern(pattern, prog, cfg)
	if cfg.Prefilter && !prog.StartAnchored() {
		if f := prefilter.Build(tree, cfg.PrefilterConfig); f != nil {
			p.machine.SetPrefilter(f)
		}
	}
	return p, nil
}

// FromProgram wraps an already compiled program, typically one restored
// by Deserialize. Restored patterns carry no source text and run
// without start optimization, since literal extraction needs the parse
// tree.
func FromProgram(prog *bytecode.Program) *Pattern {
	return FromProgramWithConfig(prog, DefaultConfig())
}

// FromProgramWithConfig is FromProgram with explicit configuration.
func FromProgramWithConfig(prog *bytecode.Program, cfg Config) *Pattern {
	return newPattern("", prog, cfg)
}

func newPattern(source string, prog *bytecode.Program, cfg Config) *Pattern {
	p := &Pattern{
		source:   source,
		flags:    prog.Flags,
		prog:     prog,
		machine:  vm.NewMachine(prog),
		stats:    &vm.Stats{},
		registry: cfg.Registry,
		id:       nextPatternID.Add(1),
	}
	p.machine.SetLimits(cfg.Limits)
	p.machine.SetBailout(cfg.Bailout)
	if cfg.StagnationLimit > 0 {
		p.machine.SetStagnationLimit(cfg.StagnationLimit)
	}
	p.machine.SetStats(p.stats)
	return p
}

// Matches reports whether input contains a match of the pattern.
func Matches(pattern string, input []byte, flags syntax.Flags) (bool, error) {
	p, err := Compile(pattern, flags)
	if err != nil {
		return false, err
	}
	return p.Matches(input)
}

// Matches reports whether input contains a match.
func (p *Pattern) Matches(input []byte) (bool, error) {
	ctx := p.context(input)
	defer p.release(ctx)
	return p.machineFor().Search(ctx, 0)
}

// Find returns the span of the leftmost match at or after from, or nil
// when there is none.
func (p *Pattern) Find(input []byte, from int) (*vm.Span, error) {
	ctx := p.context(input)
	defer p.release(ctx)
	ok, err := p.machineFor().Search(ctx, from)
	if err != nil || !ok {
		return nil, err
	}
	return &vm.Span{Start: ctx.Slots[0], End: ctx.Slots[1]}, nil
}

// Capture returns the leftmost match at or after from with every group
// span, or nil when there is none.
//
//	re := librift.MustCompile(`(?P<user>\w+)@(?P<host>\w+)`, 0)
//	m, _ := re.Capture(input, 0)
//	user, _ := m.Named("user")
func (p *Pattern) Capture(input []byte, from int) (*vm.MatchResult, error) {
	m := p.machineFor()
	ctx := p.context(input)
	defer p.release(ctx)
	ok, err := m.Search(ctx, from)
	if err != nil || !ok {
		return nil, err
	}
	return m.Result(ctx), nil
}

// FindIter returns an iterator over non-overlapping matches.
//
//	it := re.FindIter(input)
//	for it.Next() {
//	    m := it.Match()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
func (p *Pattern) FindIter(input []byte) *vm.Iter {
	return p.machineFor().FindIter(input)
}

// FindAll returns the spans of all non-overlapping matches. A negative
// max means all; max == 0 returns nil.
func (p *Pattern) FindAll(input []byte, max int) ([]vm.Span, error) {
	if max == 0 {
		return nil, nil
	}
	var out []vm.Span
	it := p.FindIter(input)
	for it.Next() {
		sp, _ := it.Match().Group(0)
		out = append(out, sp)
		if max > 0 && len(out) >= max {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GroupCount returns the number of capturing groups, excluding the
// whole-match group 0.
func (p *Pattern) GroupCount() int { return p.prog.NumGroups }

// GroupNames returns the names of groups 1 through GroupCount in
// index order, "" for unnamed groups. The slice is shared and must not
// be modified.
func (p *Pattern) GroupNames() []string { return p.prog.GroupNames() }

// Source returns the pattern text this Pattern was compiled from, ""
// for patterns restored via FromProgram.
func (p *Pattern) Source() string { return p.source }

// Flags returns the resolved pattern-level option set.
func (p *Pattern) Flags() syntax.Flags { return p.flags }

// ID returns the process-unique pattern id used as the limit-registry
// key.
func (p *Pattern) ID() uint64 { return p.id }

// Program exposes the compiled bytecode.
func (p *Pattern) Program() *bytecode.Program { return p.prog }

// Stats returns a snapshot of the pattern's match telemetry.
func (p *Pattern) Stats() vm.StatsSnapshot { return p.stats.Snapshot() }

// ResetStats zeroes the pattern's telemetry counters.
func (p *Pattern) ResetStats() { p.stats.Reset() }

// SetLimits replaces the pattern's base limits. Not safe to call
// concurrently with searches.
func (p *Pattern) SetLimits(l vm.Limits) { p.machine.SetLimits(l) }

// Limits returns the pattern's base limits.
func (p *Pattern) Limits() vm.Limits { return p.machine.Limits() }

// Serialize encodes the compiled program in the RIFT wire form.
func (p *Pattern) Serialize() []byte { return bytecode.Serialize(p.prog) }

// Serialize encodes a compiled program in the RIFT wire form.
func Serialize(prog *bytecode.Program) []byte { return bytecode.Serialize(prog) }

// Deserialize restores a serialized program as a runnable Pattern. The
// encoded form is validated structurally before any of it executes.
func Deserialize(data []byte) (*Pattern, error) {
	prog, err := bytecode.Deserialize(data)
	if err != nil {
		return nil, err
	}
	return FromProgram(prog), nil
}

// DeserializeProgram restores the raw program without wrapping it.
func DeserializeProgram(data []byte) (*bytecode.Program, error) {
	return bytecode.Deserialize(data)
}

// machineFor returns the machine to run one search on. With a registry
// configured, a copy carrying the effective limits is used so that
// concurrent searches never observe each other's limit resolution.
func (p *Pattern) machineFor() *vm.Machine {
	if p.registry == nil {
		return p.machine
	}
	m := *p.machine
	m.SetLimits(p.registry.Effective(p.id, 0).Tighten(p.machine.Limits()))
	return &m
}

func (p *Pattern) context(input []byte) *vm.Context {
	ctx, _ := p.ctxPool.Get().(*vm.Context)
	if ctx == nil {
		ctx = vm.NewContext(p.prog)
	}
	ctx.SetInput(input)
	return ctx
}

func (p *Pattern) release(ctx *vm.Context) {
	ctx.SetInput(nil)
	p.ctxPool.Put(ctx)
}

// QuoteMeta escapes every metacharacter in text; the result matches
// text literally.
//
//	librift.QuoteMeta("1+1") // `1\+1`
func QuoteMeta(text string) string {
	const special = `\.+*?()|[]{}^$#`

	n := 0
	for i := 0; i < len(text); i++ {
		if isSpecial(text[i], special) {
			n++
		}
	}
	if n == 0 {
		return text
	}

	buf := make([]byte, 0, len(text)+n)
	for i := 0; i < len(text); i++ {
		if isSpecial(text[i], special) {
			buf = append(buf, '\\')
		}
		buf = append(buf, text[i])
	}
	return string(buf)
}

func isSpecial(c byte, special string) bool {
	for i := 0; i < len(special); i++ {
		if c == special[i] {
			return true
		}
	}
	return false
}
