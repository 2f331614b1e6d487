package wormhole

import "github.com/joeycumines/wormhole/coroutine"

// AsyncYielder is handed to an AsyncWormhole's body, and is the only way it
// can await another Future without blocking the goroutine that is driving
// the outer poll loop.
type AsyncYielder[T any] struct {
	y     *coroutine.Yielder[Waker, result[T]]
	waker Waker
}

// AsyncSuspend polls fut once; if it is immediately ready, AsyncSuspend
// returns its value without suspending. Otherwise it suspends the
// coroutine (handing control back to whichever goroutine is driving the
// enclosing AsyncWormhole's Poll), resuming only once that outer Poll is
// called again, and repeats until fut resolves.
//
// R is independent of the AsyncWormhole's own T, mirroring the original
// API's per-call generic future type; Go methods cannot add their own type
// parameters, so this is a package-level function taking the yielder
// instead of a method on it.
func AsyncSuspend[T, R any](ay *AsyncYielder[T], fut Future[R]) R {
	for {
		v, ok := fut.Poll(ay.waker)
		if ok {
			return v
		}
		ay.waker = ay.y.Yield(result[T]{})
	}
}
