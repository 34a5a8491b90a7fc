package vm

import (
	"sync"
	"sync/atomic"

	"github.com/librift/librift/bytecode"
	"github.com/librift/librift/rifterr"
)

// ThreadContext shares one logical match context across goroutines.
// Each borrower gets a private Context seeded from the shared
// template, drawn from an internal pool; concurrent Execute calls
// therefore never contend on match state. A generation counter makes
// ResetAll cheap: stale contexts are discarded on the next borrow
// instead of being chased down.
//
// The wrapper is reference-counted. It starts with one reference;
// Unref to zero releases the pool. Lock/Unlock expose a dedicated
// mutex for callers composing multi-step sequences that must not
// interleave.
type ThreadContext struct {
	mu    sync.Mutex
	prog  *bytecode.Program
	input []byte
	gen   uint64

	pool sync.Pool

	refs atomic.Int64

	// extMu backs Lock/Unlock. Separate from mu so caller-held locks
	// cannot deadlock internal bookkeeping.
	extMu sync.Mutex
}

type pooledContext struct {
	ctx *Context
	gen uint64
}

// NewThreadContext returns a wrapper producing contexts for prog.
func NewThreadContext(prog *bytecode.Program) *ThreadContext {
	t := &ThreadContext{prog: prog}
	t.refs.Store(1)
	return t
}

// SetInput replaces the template input. Contexts already borrowed
// keep their current input; the new input applies from the next
// borrow.
func (t *ThreadContext) SetInput(input []byte) {
	t.mu.Lock()
	t.input = input
	t.mu.Unlock()
}

// ResetAll invalidates every pooled and outstanding context. Stale
// contexts are detected by generation and rebuilt on their next
// borrow; nothing blocks on in-flight work.
func (t *ThreadContext) ResetAll() {
	t.mu.Lock()
	t.gen++
	t.mu.Unlock()
}

// Local borrows a context seeded with the current template input.
// Pair it with Release; Execute does both.
func (t *ThreadContext) Local() *Context {
	t.mu.Lock()
	input, gen := t.input, t.gen
	t.mu.Unlock()

	for {
		v := t.pool.Get()
		if v == nil {
			ctx := NewContext(t.prog)
			ctx.gen = gen
			ctx.SetInput(input)
			return ctx
		}
		p := v.(*pooledContext)
		if p.gen != gen {
			// Stale generation: drop it and try again.
			continue
		}
		p.ctx.gen = gen
		p.ctx.SetInput(input)
		return p.ctx
	}
}

// Release returns a borrowed context to the pool. A context borrowed
// before a ResetAll carries the old generation and will be discarded
// rather than handed out again.
func (t *ThreadContext) Release(ctx *Context) {
	if ctx == nil {
		return
	}
	t.pool.Put(&pooledContext{ctx: ctx, gen: ctx.gen})
}

// Execute runs fn with a borrowed context and returns it afterwards,
// panics included. It is the recommended way to match concurrently.
func (t *ThreadContext) Execute(fn func(*Context) error) error {
	if t.refs.Load() <= 0 {
		return rifterr.New(rifterr.KindInvalidArgument, rifterr.NoPos,
			"thread context already released")
	}
	ctx := t.Local()
	defer t.Release(ctx)
	return fn(ctx)
}

// Ref adds a reference.
func (t *ThreadContext) Ref() {
	t.refs.Add(1)
}

// Unref drops a reference; at zero the pooled contexts are released
// and further Execute calls fail.
func (t *ThreadContext) Unref() {
	if t.refs.Add(-1) == 0 {
		t.mu.Lock()
		t.gen++
		t.pool = sync.Pool{}
		t.mu.Unlock()
	}
}

// Lock acquires the wrapper's external mutex for a caller-defined
// critical section spanning several operations.
func (t *ThreadContext) Lock() { t.extMu.Lock() }

// Unlock releases the external mutex.
func (t *ThreadContext) Unlock() { t.extMu.Unlock() }
