// Package stack implements guarded, lazily-committed user-space stacks for
// stackful coroutines.
//
// A Stack reserves the requested usable size (rounded up to whole pages)
// plus one or more guard pages below it, and makes the whole usable region
// read-write at creation; the guard pages stay inaccessible. The
// reservation holds no address space beyond those guard pages, and the
// usable region is not committed page by page on demand. On Unix the
// mapping is private, anonymous and MAP_NORESERVE, so usable pages only
// take physical memory once they are touched.
//
// Touching a guard page faults; no signal or exception handler is
// installed to intercept that fault. With growth enabled, CheckFault
// extends the usable region into the guard area when a stack pointer
// observed after a context switch lies there.
package stack

import (
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/wormhole/internal/obslog"
	"sync"
	"time"
)

// Stack is a guarded, page-aligned region of memory suitable for use as a
// coroutine's execution stack. The zero value is not valid; use New.
//
// A Stack must not be used from more than one coroutine at a time, and must
// not be read or written after Release.
type Stack struct {
	guardTop uintptr
	top      uintptr
	bottom   uintptr
	total    int
	usable   int
	pageSize int
	opts     options
	mu       sync.Mutex
}

type options struct {
	guardPages int
	growth     bool
	logger     *obslog.Logger
	overflow   *catrate.Limiter
}

// Option configures a Stack at construction time.
type Option func(*options)

// WithGuardPages overrides the number of guard pages reserved beyond the
// initially committed usable region. The default is one page.
func WithGuardPages(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.guardPages = n
		}
	}
}

// WithLogger attaches a structured logger for allocation, growth, and
// release events. A nil logger (the default) disables logging entirely.
func WithLogger(l *obslog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGrowth makes CheckFault double the usable region (via Grow) when the
// stack pointer it is given lies in the guard area, instead of reporting an
// OverflowError. CheckFault honours this option in the same way on every
// platform, Windows included.
func WithGrowth(enabled bool) Option {
	return func(o *options) { o.growth = enabled }
}

// WithOverflowRateLimiter attaches a rate limiter used to throttle repeated
// guard-page overflow log lines from a coroutine that keeps faulting (for
// example one stuck in unbounded recursion). Without one, every fault is
// logged.
func WithOverflowRateLimiter(l *catrate.Limiter) Option {
	return func(o *options) { o.overflow = l }
}

// New reserves a guarded stack of at least size usable bytes, rounded up to
// a whole number of pages. size is typically one of the Size presets.
func New(size Size, opts ...Option) (*Stack, error) {
	return newStack(int(size), opts...)
}

func newStack(size int, opts ...Option) (*Stack, error) {
	o := options{guardPages: defaultGuardPages}
	for _, opt := range opts {
		opt(&o)
	}

	pageSize := platformPageSize()
	usable := roundUpToPage(size, pageSize)
	guardSize := o.guardPages * pageSize
	total := usable + guardSize

	guardTop, err := platformReserve(total)
	if err != nil {
		return nil, err
	}

	bottom := guardTop + uintptr(total)
	top := bottom - uintptr(usable)
	if err := platformCommit(top, usable); err != nil {
		_ = platformRelease(guardTop, total)
		return nil, err
	}

	s := &Stack{
		guardTop: guardTop,
		top:      top,
		bottom:   bottom,
		total:    total,
		usable:   usable,
		pageSize: pageSize,
		opts:     o,
	}

	if o.logger != nil {
		o.logger.Debug().Int64(`size`, int64(total)).Int64(`usable`, int64(usable)).Log(`stack reserved`)
	}

	return s, nil
}

// Bottom returns the highest address of the usable region: the initial
// stack pointer value for a downward-growing stack (the convention used by
// every supported (OS, ISA) pair).
func (s *Stack) Bottom() uintptr { return s.bottom }

// Top returns the lowest address of the currently committed usable region.
// Addresses below this, down to GuardTop, are the guard area.
func (s *Stack) Top() uintptr { return s.top }

// GuardTop returns the lowest address of the entire reservation.
func (s *Stack) GuardTop() uintptr { return s.guardTop }

// Size returns the currently usable size, in bytes.
func (s *Stack) Size() int { return s.usable }

// Contains reports whether sp falls within the guard area, i.e. it is below
// the currently committed usable region but still within this Stack's
// overall reservation. A true result means the fault is one this Stack
// owns and may be able to recover from via Grow; a false result means the
// fault belongs to someone else (or is a genuine out-of-bounds access).
func (s *Stack) Contains(sp uintptr) bool {
	return sp >= s.guardTop && sp < s.top
}

// Grow doubles the usable region, consuming guard-page space, when growth
// is supported and there is room left in the reservation. It is intended to
// be called from the guard-fault collaborator (see guard.go) in response to
// a fault landing inside Contains.
func (s *Stack) Grow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	guardRemaining := int(s.top - s.guardTop)
	if 2*s.usable > s.usable+guardRemaining {
		s.logOverflow()
		return &OverflowError{Max: s.total}
	}

	newTop := s.top - uintptr(s.usable)
	if err := platformCommit(newTop, s.usable); err != nil {
		return err
	}
	s.top = newTop
	s.usable *= 2

	if s.opts.logger != nil {
		s.opts.logger.Debug().Int64(`usable`, int64(s.usable)).Log(`stack grown`)
	}
	return nil
}

func (s *Stack) logOverflow() {
	l := s.opts.logger
	if l == nil {
		return
	}
	if lim := s.opts.overflow; lim != nil {
		if _, ok := lim.Allow(s); !ok {
			return
		}
	}
	l.Warn().Int64(`max`, int64(s.total)).Log(`stack overflow: guard area exhausted`)
}

// Release returns the entire reservation, including the guard area, to the
// operating system. The Stack must not be used afterward.
func (s *Stack) Release() error {
	if err := platformRelease(s.guardTop, s.total); err != nil {
		return err
	}
	if s.opts.logger != nil {
		s.opts.logger.Debug().Int64(`size`, int64(s.total)).Log(`stack released`)
	}
	return nil
}

func roundUpToPage(size, pageSize int) int {
	if size <= 0 {
		size = pageSize
	}
	rem := size % pageSize
	if rem == 0 {
		return size
	}
	return size + (pageSize - rem)
}

// DefaultOverflowRateLimiter returns a rate limiter suitable for passing to
// WithOverflowRateLimiter: at most 1 overflow log line per category per
// second, and at most 20 per minute, following the monotonic-rate
// requirement of the underlying limiter.
func DefaultOverflowRateLimiter() *catrate.Limiter {
	return catrate.NewLimiter(map[time.Duration]int{
		time.Second: 1,
		time.Minute: 20,
	})
}
