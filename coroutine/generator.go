// Package coroutine implements typed, bidirectional stackful coroutines:
// a Generator runs a user function on its own guarded stack (see the
// sibling stack package), suspending it mid-execution via Yielder.Yield and
// resuming it via Generator.Resume, passing a typed value each way.
//
// Unlike a goroutine, a Generator's body only ever executes synchronously,
// inside a call to Resume, on the calling goroutine — it is cooperative
// scheduling via a raw stack-pointer switch (see the archswitch package),
// not concurrency. Because of that, the Go runtime must not try to migrate
// the calling goroutine to a different OS thread or asynchronously preempt
// it while execution is on the coroutine's stack: Resume brackets the
// switch with runtime.LockOSThread/UnlockOSThread, but callers running many
// coroutines under load should still start the process with
// GODEBUG=asyncpreemptoff=1 to rule out a signal landing mid-switch.
package coroutine

import (
	"runtime"

	"github.com/joeycumines/wormhole/archswitch"
	"github.com/joeycumines/wormhole/internal/obslog"
	"github.com/joeycumines/wormhole/stack"
)

// box is the typed mailbox a Generator and its Yielder share. The original
// this package is modeled on passes a raw pointer to the value through the
// machine register a context switch preserves; that is unsound in Go,
// where the garbage collector does not know about values reachable only
// through a uintptr, so values are instead exchanged through this
// ordinary, GC-visible struct, and the register argument archswitch.Swap
// still carries is used purely as a control signal.
type box[In, Out any] struct {
	in  In
	out Output[Out]
}

// Generator runs a func(*Yielder[In, Out], In) Out on its own stack. The
// zero value is not valid; use New.
type Generator[In, Out any] struct {
	stk      *stack.Stack
	ownsStk  bool
	sp       uintptr
	linkSP   uintptr
	started  bool
	done     bool
	panicErr *PanicError
	box      *box[In, Out]
	trace    *TraceHooks
	logger   *obslog.Logger
}

type config struct {
	stk       *stack.Stack
	size      stack.Size
	stackOpts []stack.Option
	trace     *TraceHooks
	logger    *obslog.Logger
}

// Option configures a Generator at construction time.
type Option func(*config)

// WithStack injects an already-allocated Stack (typically one recycled by
// the pool package) instead of having New allocate a fresh one. The
// Generator runs on it but never releases it; the caller keeps ownership
// and is responsible for reclaiming it once the Generator is no longer in
// use.
func WithStack(s *stack.Stack) Option {
	return func(c *config) { c.stk = s }
}

// WithStackSize overrides the default stack size used when New allocates
// its own stack (ignored if WithStack is also given).
func WithStackSize(size stack.Size) Option {
	return func(c *config) { c.size = size }
}

// WithStackOptions forwards options to stack.New when New allocates its own
// stack (ignored if WithStack is also given).
func WithStackOptions(opts ...stack.Option) Option {
	return func(c *config) { c.stackOpts = opts }
}

// WithTrace attaches resume/yield observation hooks, for tests.
func WithTrace(h *TraceHooks) Option {
	return func(c *config) { c.trace = h }
}

// WithLogger attaches a structured logger for lifecycle and panic events.
func WithLogger(l *obslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New constructs a Generator that will run f the first time Resume is
// called. f receives a Yielder for suspending and the first input value.
func New[In, Out any](f func(*Yielder[In, Out], In) Out, opts ...Option) (*Generator[In, Out], error) {
	c := config{size: stack.EightMB}
	for _, opt := range opts {
		opt(&c)
	}

	g := &Generator[In, Out]{
		box:    &box[In, Out]{},
		trace:  c.trace,
		logger: c.logger,
	}

	if c.stk != nil {
		g.stk = c.stk
	} else {
		stk, err := stack.New(c.size, c.stackOpts...)
		if err != nil {
			return nil, err
		}
		g.stk = stk
		g.ownsStk = true
	}

	entry := func(arg uintptr) {
		defer g.finish()
		y := &Yielder[In, Out]{g: g}
		out := f(y, g.box.in)
		g.box.out = Output[Out]{Kind: Finished, Out: out}
	}

	sp, err := archswitch.Init(g.stk.Bottom(), entry)
	if err != nil {
		if g.ownsStk {
			_ = g.stk.Release()
		}
		return nil, err
	}
	g.sp = sp

	return g, nil
}

// finish runs as the entry function's deferred cleanup: it converts a
// panic into a Panic Output and always performs the final switch back to
// whoever is resuming, since a coroutine body that returns (or panics)
// never runs again.
func (g *Generator[In, Out]) finish() {
	if r := recover(); r != nil {
		g.box.out = Output[Out]{Kind: Panic, Err: &PanicError{Value: r}}
		if g.logger != nil {
			g.logger.Error().Log("coroutine panicked")
		}
	}
	archswitch.Swap(0, g.linkSP)
}

// Resume transfers control into the coroutine, delivering in as its next
// input, and blocks until the coroutine yields, returns, or panics.
//
// Calling Resume again after the coroutine panicked re-raises that panic (as
// a Go panic carrying the same *PanicError) on the caller's own stack,
// mirroring the resumed-unwind behavior of the coroutine this package is
// modeled on. Calling Resume again after a normal return instead yields a
// Panic Output wrapping ErrFinished, since there is no unwind to resume.
func (g *Generator[In, Out]) Resume(in In) Output[Out] {
	if g.done {
		if g.panicErr != nil {
			panic(g.panicErr)
		}
		return Output[Out]{Kind: Panic, Err: ErrFinished}
	}

	g.started = true
	g.box.in = in
	g.trace.resume(any(in))

	stack.SetCurrent(g.stk)
	runtime.LockOSThread()
	_, newSP := archswitch.SwapAndLink(1, g.sp, &g.linkSP)
	runtime.UnlockOSThread()
	stack.ClearCurrent()

	if err := stack.CheckFault(g.stk, newSP); err != nil {
		g.done = true
		return Output[Out]{Kind: Panic, Err: err}
	}

	g.sp = newSP
	out := g.box.out
	g.trace.yield(any(out.Out))

	if out.Kind != Value {
		g.done = true
		if out.Kind == Panic {
			if pErr, ok := out.Err.(*PanicError); ok {
				g.panicErr = pErr
			}
		}
		if g.ownsStk {
			if err := g.stk.Release(); err != nil && g.logger != nil {
				g.logger.Error().Err(err).Log("failed to release coroutine stack")
			}
		}
	}

	return out
}

// Err returns the *PanicError carried by this Generator's terminal Panic
// Output, or nil if it has not panicked (whether because it is still
// running, finished normally, or has not yet been resumed).
func (g *Generator[In, Out]) Err() error {
	if g.panicErr == nil {
		return nil
	}
	return g.panicErr
}

// Drop unwinds a started-but-not-finished coroutine: it delivers one final
// swap carrying the zero sentinel Yield watches for, so the coroutine
// panics on its own stack, any deferred cleanup in its activation runs,
// and finish's recover discards the resulting Output. If the coroutine was
// never resumed, there is no activation to unwind, so Drop just releases
// its stack directly; if it already finished or panicked, Drop is a no-op.
//
// Drop always releases a Generator-owned stack (one not supplied via
// WithStack). Further Drop calls after it return nil without doing
// anything, and further Resume calls return ErrFinished.
func (g *Generator[In, Out]) Drop() error {
	if g.done {
		return nil
	}
	g.done = true

	if g.started {
		stack.SetCurrent(g.stk)
		runtime.LockOSThread()
		archswitch.SwapAndLink(0, g.sp, &g.linkSP)
		runtime.UnlockOSThread()
		stack.ClearCurrent()
	}

	if g.ownsStk {
		return g.stk.Release()
	}
	return nil
}

// Done reports whether the coroutine has returned, panicked or been
// dropped; further Resume calls run no user code and return ErrFinished,
// except after a panic in the body, which they re-raise.
func (g *Generator[In, Out]) Done() bool { return g.done }

// Stack returns the underlying Stack, for callers (such as the pool
// package) that manage stack lifetime externally via WithStack.
func (g *Generator[In, Out]) Stack() *stack.Stack { return g.stk }
