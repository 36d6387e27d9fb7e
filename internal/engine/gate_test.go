package engine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateBoundsConcurrentHolders(t *testing.T) {
	g := NewGate(3)

	var (
		wg       sync.WaitGroup
		current  atomic.Int64
		observed atomic.Int64
	)

	// A storm of goroutines fighting for 3 slots must never observe more
	// than 3 holders at once.
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if !g.TryAcquire() {
					continue
				}
				n := current.Add(1)
				for {
					prev := observed.Load()
					if n <= prev || observed.CompareAndSwap(prev, n) {
						break
					}
				}
				current.Add(-1)
				g.Release()
				return
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, observed.Load(), int64(3))
	require.Equal(t, 0, g.InFlight())
}

func TestGateTryAcquireFailsWhenFull(t *testing.T) {
	g := NewGate(1)

	require.True(t, g.TryAcquire())
	require.False(t, g.TryAcquire())
	require.Equal(t, 1, g.InFlight())

	g.Release()
	require.True(t, g.TryAcquire())
}

func TestGateClampsCapacity(t *testing.T) {
	require.Equal(t, 1, NewGate(0).Capacity())
	require.Equal(t, 1, NewGate(-5).Capacity())
	require.Equal(t, 4, NewGate(4).Capacity())
}

func TestGateReleaseWithoutAcquireIsHarmless(t *testing.T) {
	g := NewGate(2)
	g.Release() // must not block or panic
	require.Equal(t, 0, g.InFlight())
}
