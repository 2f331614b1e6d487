package stack

import "sync"

// guardRegistry tracks which Stack a given coroutine-carrying goroutine is
// currently executing on. The Rust original uses a thread-local slot that a
// SIGSEGV/SIGBUS handler consults to know which stack faulted; Go gives no
// supported way to install a custom synchronous-signal handler that can
// inspect and grow memory mapped outside the Go heap, so this module takes
// a cooperative approach instead: coroutine.Generator.Resume passes the
// stack pointer it gets back from each switch to CheckFault, which checks
// it against Stack.Contains and calls Grow if the pointer has drifted into
// the guard area. CheckFault takes the Stack as an argument and does not
// consult the registry below. The registry records, per calling goroutine,
// the Stack that Resume is switching onto (SetCurrent before the switch,
// ClearCurrent after it), matching the shape (if not the mechanism) of the
// original's give_to_signal/take_from_signal pair.
var guardRegistry sync.Map // goroutineKey -> *Stack

// Current returns the Stack most recently registered for the calling
// goroutine via SetCurrent, or nil if none is registered.
func Current() *Stack {
	v, ok := guardRegistry.Load(goroutineKey())
	if !ok {
		return nil
	}
	return v.(*Stack)
}

// SetCurrent registers s as the Stack the calling goroutine is about to
// execute on, for the duration until ClearCurrent is called. It must be
// paired with ClearCurrent from the same goroutine.
func SetCurrent(s *Stack) {
	guardRegistry.Store(goroutineKey(), s)
}

// ClearCurrent removes the calling goroutine's registration.
func ClearCurrent() {
	guardRegistry.Delete(goroutineKey())
}

// CheckFault is the cooperative stand-in for the signal handler described
// above: given a stack pointer observed immediately after a context switch,
// it reports whether sp lies in s's guard area and, if growth is enabled,
// attempts to extend the usable region so execution can continue.
func CheckFault(s *Stack, sp uintptr) error {
	if s == nil || !s.Contains(sp) {
		return nil
	}
	if !s.opts.growth {
		s.logOverflow()
		return &OverflowError{Max: s.total}
	}
	return s.Grow()
}
