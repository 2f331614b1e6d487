// Package archswitch implements the machine-level primitives used to
// transfer control between a coroutine's stack and its caller's stack:
// Init prepares a freshly allocated stack to begin executing an entry
// function, Swap transfers control to a stack prepared by Init (or
// previously suspended by Swap), and SwapAndLink additionally records the
// switching-away stack pointer for unwinders that need to walk across the
// switch boundary.
//
// Every exported function here is backed by hand-written assembly, one file
// per supported (GOOS, GOARCH) pair. There is no portable way to express a
// stack switch in Go: unlike every other package in this module, nothing in
// the usual ecosystem stack does this job, so there is no library to adopt
// here, only the machine.
package archswitch

import "fmt"

// UnsupportedPlatformError is returned when Init is called on a (GOOS,
// GOARCH) pair without an assembly implementation. Swap and SwapAndLink do
// not return it; on such a pair they panic.
type UnsupportedPlatformError struct {
	GOOS, GOARCH string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("archswitch: no context-switch implementation for %s/%s", e.GOOS, e.GOARCH)
}

// EntryFunc is the signature every coroutine entry point must satisfy. arg
// is whatever value the first Swap into the stack was called with; it is
// forwarded through the trampoline via a single machine word.
type EntryFunc func(arg uintptr)

// entryRegistry lets the tiny, fixed trampoline (written once per
// architecture) call back into arbitrary Go closures without needing one
// hand-written trampoline per coroutine: Init stores fn here, keyed by the
// stack's initial stack pointer, and the generic callEntry func (exported
// for the assembly trampoline to CALL) looks it up and invokes it.
var entryRegistry registry

// Init prepares sp (the bottom, i.e. highest address, of a freshly
// allocated stack) to begin running fn the first time it is the target of
// Swap. It returns the stack pointer value to pass to that first Swap.
func Init(sp uintptr, fn EntryFunc) (uintptr, error) {
	if !Supported {
		return 0, &UnsupportedPlatformError{GOOS: goos, GOARCH: goarch}
	}
	entryRegistry.store(sp, fn)
	return rawInit(sp), nil
}

// Swap transfers control to newSP, suspending the calling stack until
// something swaps back to the stack pointer value this call returns
// through ret. arg is forwarded to the other side (either as EntryFunc's
// argument, for a stack prepared by Init and not yet started, or as the
// return value of the Swap call it interrupted).
func Swap(arg uintptr, newSP uintptr) (ret uintptr, resumeSP uintptr) {
	return rawSwap(arg, newSP)
}

// SwapAndLink behaves like Swap, but additionally records the suspending
// stack pointer into *link before transferring control, so that an
// unwinder holding link can walk from the new stack back across the
// switch boundary into the caller's.
func SwapAndLink(arg uintptr, newSP uintptr, link *uintptr) (ret uintptr, resumeSP uintptr) {
	return rawSwapAndLink(arg, newSP, link)
}

// callEntry is invoked directly from the assembly trampoline; its symbol
// name and signature are part of the contract with switch_*.s.
func callEntry(sp uintptr, arg uintptr) {
	fn, ok := entryRegistry.load(sp)
	if !ok {
		panic("archswitch: entry trampoline invoked for unregistered stack")
	}
	fn(arg)
}
