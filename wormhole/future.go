// Package wormhole bridges a coroutine (see the sibling coroutine package)
// to a host async executor's poll protocol: an AsyncWormhole[T] is itself a
// Future[T], wrapping a user function that runs on its own stack and can
// suspend mid-execution by awaiting an arbitrary Future via AsyncSuspend,
// one poll at a time, without the function itself needing to be written in
// continuation-passing or state-machine style.
package wormhole

// Waker is whatever an external executor gives a pending Future so it can
// signal "poll me again" later. It is the Go-idiomatic stand-in for the
// host collaborator this module does not itself provide; BlockOn supplies
// a minimal concrete implementation for tests and simple standalone use.
type Waker interface {
	// Wake signals that the associated Future may now make progress.
	// Implementations must be safe to call from any goroutine, including
	// concurrently and after the Future has already completed.
	Wake()
}

// Future is the Go-idiomatic stand-in for the host executor's poll
// protocol. Poll either returns a ready value (ok true) or registers waker
// to be called once progress might be possible and returns ok false.
type Future[T any] interface {
	Poll(waker Waker) (value T, ok bool)
}

// FutureFunc adapts a plain poll function to the Future interface.
type FutureFunc[T any] func(waker Waker) (T, bool)

func (f FutureFunc[T]) Poll(waker Waker) (T, bool) { return f(waker) }
