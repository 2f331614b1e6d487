package pool_test

import (
	"testing"

	"github.com/joeycumines/wormhole/archswitch"
	"github.com/joeycumines/wormhole/pool"
	"github.com/joeycumines/wormhole/stack"
	"github.com/joeycumines/wormhole/wormhole"
	"github.com/stretchr/testify/require"
)

func skipIfUnsupported(t *testing.T) {
	t.Helper()
	if !archswitch.Supported {
		t.Skipf("no archswitch backend for this platform")
	}
}

type noopWaker struct{}

func (noopWaker) Wake() {}

func runToCompletion[T any](t *testing.T, w *wormhole.AsyncWormhole[T]) T {
	t.Helper()
	for {
		v, ok := w.Poll(noopWaker{})
		if ok {
			return v
		}
	}
}

func TestAcquireAllocatesWhenEmpty(t *testing.T) {
	skipIfUnsupported(t)

	p := pool.New[int](2, pool.WithStackSize(stack.OneMB))
	w, err := p.Acquire(func(*wormhole.AsyncYielder[int]) int { return 1 })
	require.NoError(t, err)

	got := runToCompletion(t, w)
	require.Equal(t, 1, got)
	require.Equal(t, pool.Stats{Allocated: 1}, p.Stats())

	p.Recycle(w)
	require.Equal(t, int64(1), p.Stats().Recycled)
}

func TestRecycleThenAcquireReuses(t *testing.T) {
	skipIfUnsupported(t)

	p := pool.New[int](2, pool.WithStackSize(stack.OneMB))

	w1, err := p.Acquire(func(*wormhole.AsyncYielder[int]) int { return 1 })
	require.NoError(t, err)
	runToCompletion(t, w1)
	p.Recycle(w1)

	w2, err := p.Acquire(func(*wormhole.AsyncYielder[int]) int { return 2 })
	require.NoError(t, err)
	got := runToCompletion(t, w2)
	require.Equal(t, 2, got)

	stats := p.Stats()
	require.Equal(t, int64(1), stats.Allocated)
	require.Equal(t, int64(1), stats.Reused)
	require.Equal(t, int64(1), stats.Recycled)
}

func TestRecycleDropsPastCapacity(t *testing.T) {
	skipIfUnsupported(t)

	p := pool.New[int](1, pool.WithStackSize(stack.OneMB))

	w1, err := p.Acquire(func(*wormhole.AsyncYielder[int]) int { return 1 })
	require.NoError(t, err)
	runToCompletion(t, w1)

	w2, err := p.Acquire(func(*wormhole.AsyncYielder[int]) int { return 2 })
	require.NoError(t, err)
	runToCompletion(t, w2)

	p.Recycle(w1) // fills the capacity-1 pool
	p.Recycle(w2) // must be dropped

	stats := p.Stats()
	require.Equal(t, int64(1), stats.Recycled)
	require.Equal(t, int64(1), stats.Dropped)
}

func TestCloseReleasesIdleStacks(t *testing.T) {
	skipIfUnsupported(t)

	p := pool.New[int](2, pool.WithStackSize(stack.OneMB))
	w, err := p.Acquire(func(*wormhole.AsyncYielder[int]) int { return 1 })
	require.NoError(t, err)
	runToCompletion(t, w)
	p.Recycle(w)

	require.NoError(t, p.Close())
}
