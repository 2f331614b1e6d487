package coroutine_test

import (
	"errors"
	"testing"

	"github.com/joeycumines/wormhole/archswitch"
	"github.com/joeycumines/wormhole/coroutine"
	"github.com/joeycumines/wormhole/stack"
	"github.com/stretchr/testify/require"
)

func skipIfUnsupported(t *testing.T) {
	t.Helper()
	if !archswitch.Supported {
		t.Skipf("no archswitch backend for this platform")
	}
}

func TestGeneratorReturnsFinalValue(t *testing.T) {
	skipIfUnsupported(t)

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		return in * 2
	})
	require.NoError(t, err)

	out := g.Resume(21)
	require.Equal(t, coroutine.Finished, out.Kind)
	require.Equal(t, 42, out.Out)
	require.True(t, g.Done())
}

func TestGeneratorMultipleYields(t *testing.T) {
	skipIfUnsupported(t)

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		sum := in
		for i := 0; i < 3; i++ {
			next := y.Yield(sum)
			sum += next
		}
		return sum
	})
	require.NoError(t, err)

	out := g.Resume(1)
	require.Equal(t, coroutine.Value, out.Kind)
	require.Equal(t, 1, out.Out)

	out = g.Resume(10)
	require.Equal(t, coroutine.Value, out.Kind)
	require.Equal(t, 11, out.Out)

	out = g.Resume(100)
	require.Equal(t, coroutine.Value, out.Kind)
	require.Equal(t, 111, out.Out)

	out = g.Resume(1000)
	require.Equal(t, coroutine.Finished, out.Kind)
	require.Equal(t, 1111, out.Out)
	require.True(t, g.Done())
}

func TestGeneratorPanicPropagates(t *testing.T) {
	skipIfUnsupported(t)

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		panic("boom")
	})
	require.NoError(t, err)

	out := g.Resume(0)
	require.Equal(t, coroutine.Panic, out.Kind)

	var panicErr *coroutine.PanicError
	require.ErrorAs(t, out.Err, &panicErr)
	require.Equal(t, "boom", panicErr.Value)
	require.True(t, g.Done())
}

func TestErrSurfacesPanicAndResumeReRaises(t *testing.T) {
	skipIfUnsupported(t)

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		panic("boom")
	})
	require.NoError(t, err)

	require.Nil(t, g.Err())
	g.Resume(0)

	var panicErr *coroutine.PanicError
	require.ErrorAs(t, g.Err(), &panicErr)
	require.Equal(t, "boom", panicErr.Value)

	require.PanicsWithValue(t, panicErr, func() { g.Resume(0) })
}

func TestPanicErrorUnwrapsErrorValue(t *testing.T) {
	skipIfUnsupported(t)

	sentinel := errors.New("sentinel")
	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		panic(sentinel)
	})
	require.NoError(t, err)

	out := g.Resume(0)
	require.True(t, errors.Is(out.Err, sentinel))
}

func TestResumeAfterFinishReturnsErrFinished(t *testing.T) {
	skipIfUnsupported(t)

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		return in
	})
	require.NoError(t, err)

	out := g.Resume(1)
	require.Equal(t, coroutine.Finished, out.Kind)

	out = g.Resume(2)
	require.Equal(t, coroutine.Panic, out.Kind)
	require.True(t, errors.Is(out.Err, coroutine.ErrFinished))
}

func TestWithStackIsNotReleasedByGenerator(t *testing.T) {
	skipIfUnsupported(t)

	s, err := stack.New(stack.OneMB)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Release()) }()

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		return in
	}, coroutine.WithStack(s))
	require.NoError(t, err)

	out := g.Resume(5)
	require.Equal(t, coroutine.Finished, out.Kind)
	require.Same(t, s, g.Stack())
}

func TestTraceHooksObserveResumeAndYield(t *testing.T) {
	skipIfUnsupported(t)

	var resumed, yielded []any
	trace := &coroutine.TraceHooks{
		OnResume: func(v any) { resumed = append(resumed, v) },
		OnYield:  func(v any) { yielded = append(yielded, v) },
	}

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		return y.Yield(in + 1)
	}, coroutine.WithTrace(trace))
	require.NoError(t, err)

	out := g.Resume(1)
	require.Equal(t, coroutine.Value, out.Kind)
	out = g.Resume(99)
	require.Equal(t, coroutine.Finished, out.Kind)

	require.Equal(t, []any{1, 99}, resumed)
	require.Equal(t, []any{2, 99}, yielded)
}

func TestDropUnwindsPendingActivation(t *testing.T) {
	skipIfUnsupported(t)

	var cleaned bool
	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		defer func() { cleaned = true }()
		return y.Yield(in)
	})
	require.NoError(t, err)

	out := g.Resume(1)
	require.Equal(t, coroutine.Value, out.Kind)
	require.False(t, cleaned)

	require.NoError(t, g.Drop())
	require.True(t, cleaned)
	require.True(t, g.Done())
}

func TestDropBeforeFirstResumeDoesNotRunBody(t *testing.T) {
	skipIfUnsupported(t)

	var ran bool
	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		ran = true
		return in
	})
	require.NoError(t, err)

	require.NoError(t, g.Drop())
	require.False(t, ran)
	require.True(t, g.Done())
}

func TestDropAfterFinishIsNoOp(t *testing.T) {
	skipIfUnsupported(t)

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		return in
	})
	require.NoError(t, err)

	out := g.Resume(1)
	require.Equal(t, coroutine.Finished, out.Kind)

	require.NoError(t, g.Drop())
	require.NoError(t, g.Drop())
}

func TestDropDoesNotReleaseInjectedStack(t *testing.T) {
	skipIfUnsupported(t)

	s, err := stack.New(stack.OneMB)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Release()) }()

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		return y.Yield(in)
	}, coroutine.WithStack(s))
	require.NoError(t, err)

	g.Resume(1)
	require.NoError(t, g.Drop())
}

func TestDeepRecursionBeforeYield(t *testing.T) {
	skipIfUnsupported(t)

	var recurse func(n int, y *coroutine.Yielder[int, int]) int
	recurse = func(n int, y *coroutine.Yielder[int, int]) int {
		if n == 0 {
			return y.Yield(0)
		}
		return 1 + recurse(n-1, y)
	}

	g, err := coroutine.New[int, int](func(y *coroutine.Yielder[int, int], in int) int {
		return recurse(2000, y)
	}, coroutine.WithStackSize(stack.EightMB))
	require.NoError(t, err)

	out := g.Resume(0)
	require.Equal(t, coroutine.Value, out.Kind)
	require.Equal(t, 0, out.Out)

	out = g.Resume(0)
	require.Equal(t, coroutine.Finished, out.Kind)
	require.Equal(t, 2000, out.Out)
}
