// Package pool implements a bounded, concurrent cache of reusable
// coroutine stacks, so repeatedly spinning up short-lived AsyncWormholes
// does not pay a fresh guarded-stack allocation every time.
package pool

import (
	"sync/atomic"

	"github.com/joeycumines/wormhole/internal/obslog"
	"github.com/joeycumines/wormhole/stack"
	"github.com/joeycumines/wormhole/wormhole"
)

// Pool caches Stack values for reuse across AsyncWormhole instances. The
// zero value is not valid; use New.
//
// Recycle does not zero a stack's contents before it is returned to the
// pool. A coroutine body that left sensitive data on its stack (key
// material, capability tokens) will have that data readable by whatever
// next runs on a reused Stack, until it is overwritten by ordinary
// execution. Callers with that threat model should not use this pool, or
// should zero their own data before returning from the coroutine body.
type Pool[T any] struct {
	ch        chan *stack.Stack
	size      stack.Size
	stackOpts []stack.Option
	logger    *obslog.Logger

	allocated atomic.Int64
	reused    atomic.Int64
	recycled  atomic.Int64
	dropped   atomic.Int64
}

type config struct {
	size      stack.Size
	stackOpts []stack.Option
	logger    *obslog.Logger
}

// Option configures a Pool at construction time.
type Option func(*config)

// WithStackSize overrides the stack size used when the pool must allocate
// a fresh stack (the default is stack.EightMB).
func WithStackSize(size stack.Size) Option {
	return func(c *config) { c.size = size }
}

// WithStackOptions forwards options to stack.New for freshly allocated
// stacks.
func WithStackOptions(opts ...stack.Option) Option {
	return func(c *config) { c.stackOpts = opts }
}

// WithLogger attaches a structured logger, forwarded to every AsyncWormhole
// the pool creates.
func WithLogger(l *obslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates a Pool holding at most capacity idle stacks at a time; a
// Recycle call past that capacity drops the stack instead of queueing it.
func New[T any](capacity int, opts ...Option) *Pool[T] {
	c := config{size: stack.EightMB}
	for _, opt := range opts {
		opt(&c)
	}
	return &Pool[T]{
		ch:        make(chan *stack.Stack, capacity),
		size:      c.size,
		stackOpts: c.stackOpts,
		logger:    c.logger,
	}
}

// Acquire builds an AsyncWormhole running f, reusing a pooled stack if one
// is available and allocating a fresh one otherwise. tls, if given, is
// forwarded as the wormhole's preserved thread-local slots.
func (p *Pool[T]) Acquire(f func(*wormhole.AsyncYielder[T]) T, tls ...wormhole.TLSSlot) (*wormhole.AsyncWormhole[T], error) {
	var stk *stack.Stack

	select {
	case s := <-p.ch:
		stk = s
		p.reused.Add(1)
	default:
		s, err := stack.New(p.size, p.stackOpts...)
		if err != nil {
			return nil, err
		}
		stk = s
		p.allocated.Add(1)
	}

	opts := make([]wormhole.Option, 0, 3)
	opts = append(opts, wormhole.WithStack(stk))
	if len(tls) > 0 {
		opts = append(opts, wormhole.WithTLS(tls...))
	}
	if p.logger != nil {
		opts = append(opts, wormhole.WithLogger(p.logger))
	}

	w, err := wormhole.New(f, opts...)
	if err != nil {
		_ = stk.Release()
		return nil, err
	}
	return w, nil
}

// Recycle returns w's stack to the pool for reuse, or releases it
// immediately if the pool is already at capacity. w must have already run
// to completion (its last Poll returned ok true); recycling a still-
// suspended wormhole's stack out from under it corrupts the next thing
// that runs on it.
func (p *Pool[T]) Recycle(w *wormhole.AsyncWormhole[T]) {
	stk := w.Stack()
	select {
	case p.ch <- stk:
		p.recycled.Add(1)
	default:
		if err := stk.Release(); err != nil && p.logger != nil {
			p.logger.Error().Err(err).Log("failed to release dropped stack")
		}
		p.dropped.Add(1)
	}
}

// Stats reports cumulative pool activity counters, useful for tests and
// optional metrics export.
type Stats struct {
	Allocated int64
	Reused    int64
	Recycled  int64
	Dropped   int64
}

// Stats returns a snapshot of the pool's activity counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Allocated: p.allocated.Load(),
		Reused:    p.reused.Load(),
		Recycled:  p.recycled.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// Close releases every stack currently idle in the pool. It does not
// affect stacks already handed out via Acquire.
func (p *Pool[T]) Close() error {
	for {
		select {
		case stk := <-p.ch:
			if err := stk.Release(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
