package wormhole

import (
	"unsafe"

	"github.com/joeycumines/wormhole/coroutine"
	"github.com/joeycumines/wormhole/internal/obslog"
	"github.com/joeycumines/wormhole/stack"
)

// result carries a coroutine's eventual return value across the generator
// boundary; it is only ever observed once the Output's Kind is Finished,
// since the only other terminal state (Panic) is surfaced separately.
type result[T any] struct {
	val T
}

// TLSSlot is an accessor pair for one piece of state a coroutine's body
// expects to find on "its own thread", even though the body may in fact
// run interleaved with other work on whichever goroutine happens to call
// Poll. AsyncWormhole saves each slot's value after a suspend and restores
// it before the next Resume, giving the body the impression of a stable
// thread-local across the switch. There is no such thing as a portable
// goroutine-local in Go, so the embedder supplies the accessor.
type TLSSlot struct {
	Get func() unsafe.Pointer
	Set func(unsafe.Pointer)
}

// Hooks are optional, coarser-grained extension points than TLSSlot: PrePoll
// runs before every Resume, PostPollPending runs after a Resume that left
// the coroutine suspended (as opposed to one that finished or panicked).
type Hooks struct {
	PrePoll         func()
	PostPollPending func()
}

// AsyncWormhole runs a user function on its own stack, suspending it each
// time it awaits a pending Future via AsyncSuspend, and presents the whole
// thing as a single Future[T] to an outer poll loop.
type AsyncWormhole[T any] struct {
	gen    *coroutine.Generator[Waker, result[T]]
	tls    []TLSSlot
	saved  []unsafe.Pointer
	hooks  Hooks
	logger *obslog.Logger
}

type config struct {
	coroutineOpts []coroutine.Option
	tls           []TLSSlot
	hooks         Hooks
	logger        *obslog.Logger
}

// Option configures an AsyncWormhole at construction time.
type Option func(*config)

// WithStack injects an already-allocated stack; see coroutine.WithStack.
func WithStack(s *stack.Stack) Option {
	return func(c *config) { c.coroutineOpts = append(c.coroutineOpts, coroutine.WithStack(s)) }
}

// WithStackSize overrides the default stack size; see coroutine.WithStackSize.
func WithStackSize(size stack.Size) Option {
	return func(c *config) { c.coroutineOpts = append(c.coroutineOpts, coroutine.WithStackSize(size)) }
}

// WithTLS registers thread-local slots to snapshot across every suspend.
func WithTLS(slots ...TLSSlot) Option {
	return func(c *config) { c.tls = append(c.tls, slots...) }
}

// WithHooks attaches pre/post-poll hooks.
func WithHooks(h Hooks) Option {
	return func(c *config) { c.hooks = h }
}

// WithLogger attaches a structured logger for panic and lifecycle events.
func WithLogger(l *obslog.Logger) Option {
	return func(c *config) {
		c.logger = l
		c.coroutineOpts = append(c.coroutineOpts, coroutine.WithLogger(l))
	}
}

// New constructs an AsyncWormhole that will run f, on its own stack, the
// first time it is polled.
func New[T any](f func(*AsyncYielder[T]) T, opts ...Option) (*AsyncWormhole[T], error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}

	w := &AsyncWormhole[T]{
		tls:    c.tls,
		saved:  make([]unsafe.Pointer, len(c.tls)),
		hooks:  c.hooks,
		logger: c.logger,
	}
	// seed saved with whatever is ambient at construction time, so the
	// first Poll's restoreTLS is a no-op rather than clobbering it with a
	// zero value nothing has actually saved yet.
	for i, slot := range w.tls {
		w.saved[i] = slot.Get()
	}

	gen, err := coroutine.New[Waker, result[T]](
		func(y *coroutine.Yielder[Waker, result[T]], firstWaker Waker) result[T] {
			ay := &AsyncYielder[T]{y: y, waker: firstWaker}
			return result[T]{val: f(ay)}
		},
		c.coroutineOpts...,
	)
	if err != nil {
		return nil, err
	}
	w.gen = gen

	return w, nil
}

// Poll drives the coroutine forward by exactly one Resume (futures the body
// awaits that are already ready are polled inline within it, so one Poll
// may poll several of them): it restores any registered
// TLS slots, resumes the coroutine with waker, and either returns the
// coroutine's final value (ok true), leaves it suspended having saved the
// TLS slots back out (ok false), or re-raises a panic that occurred inside
// the coroutine's body.
func (w *AsyncWormhole[T]) Poll(waker Waker) (T, bool) {
	if w.hooks.PrePoll != nil {
		w.hooks.PrePoll()
	}
	w.restoreTLS()

	out := w.gen.Resume(waker)

	switch out.Kind {
	case coroutine.Finished:
		return out.Out.val, true
	case coroutine.Panic:
		panic(out.Err)
	default: // coroutine.Value: still suspended
		w.saveTLS()
		if w.hooks.PostPollPending != nil {
			w.hooks.PostPollPending()
		}
		var zero T
		return zero, false
	}
}

// Done reports whether the coroutine has finished or panicked.
func (w *AsyncWormhole[T]) Done() bool { return w.gen.Done() }

// Close drops a still-suspended coroutine: its activation unwinds on its
// own stack so any deferred cleanup in the body runs, and the underlying
// stack is released if this AsyncWormhole owns it (see coroutine.WithStack
// for the case where it does not). Dropping a forever-pending future this
// way is the only cancellation mechanism this package offers; there is no
// timeout. Close is a no-op if the coroutine already finished or panicked.
func (w *AsyncWormhole[T]) Close() error { return w.gen.Drop() }

// Stack returns the underlying guarded stack, so a caller managing stack
// reuse itself (see the pool package) can reclaim it once Done reports
// true. It must not be read from or written to while the coroutine is
// still running.
func (w *AsyncWormhole[T]) Stack() *stack.Stack { return w.gen.Stack() }

func (w *AsyncWormhole[T]) restoreTLS() {
	for i, slot := range w.tls {
		slot.Set(w.saved[i])
	}
}

func (w *AsyncWormhole[T]) saveTLS() {
	for i, slot := range w.tls {
		w.saved[i] = slot.Get()
	}
}
