package coroutine

// TraceHooks lets tests (and the rare production caller that genuinely
// needs it) observe the resume/yield ordering of a Generator without
// adding overhead in the common case: a nil *TraceHooks, or a nil
// individual field, is always a no-op. Modeled on eventloop's internal
// test-hook struct rather than a general-purpose event bus.
type TraceHooks struct {
	// OnResume is called with the input value immediately before control
	// transfers into the coroutine.
	OnResume func(any)
	// OnYield is called with the output value immediately after control
	// returns from the coroutine.
	OnYield func(any)
}

func (h *TraceHooks) resume(v any) {
	if h == nil || h.OnResume == nil {
		return
	}
	h.OnResume(v)
}

func (h *TraceHooks) yield(v any) {
	if h == nil || h.OnYield == nil {
		return
	}
	h.OnYield(v)
}
