package coroutine

import "github.com/joeycumines/wormhole/archswitch"

// Yielder is handed to a coroutine's body, and is the only way it can
// suspend itself. It must not be retained or used after the body returns.
type Yielder[In, Out any] struct {
	g *Generator[In, Out]
}

// Yield suspends the coroutine, handing v to whoever called Resume, and
// blocks until the next Resume call, returning its input.
//
// If the coroutine is instead dropped while suspended here, the swap back
// in delivers the zero sentinel instead of the usual forwarded arg; Yield
// turns that into a panic, unwinding the coroutine's activation so its
// deferred cleanup runs before the stack is released.
func (y *Yielder[In, Out]) Yield(v Out) In {
	g := y.g
	g.box.out = Output[Out]{Kind: Value, Out: v}
	arg, _ := archswitch.Swap(1, g.linkSP)
	if arg == 0 {
		panic(errDropped)
	}
	return g.box.in
}
