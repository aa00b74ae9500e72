package tagstore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCachedValueComputesOnFirstGet(t *testing.T) {
	var calls atomic.Int32
	c := NewCachedValue(func() int {
		calls.Add(1)
		return 42
	})
	require.Equal(t, 42, c.Get())
	require.Equal(t, 42, c.Get())
	require.Equal(t, int32(1), calls.Load())
}

func TestCachedValueInvalidateForcesRecompute(t *testing.T) {
	n := 0
	c := NewCachedValue(func() int {
		n++
		return n
	})
	require.Equal(t, 1, c.Get())
	require.True(t, c.Invalidate())
	require.Equal(t, 2, c.Get())
}

// TestInvalidateIsIdempotent: calling Invalidate twice in a row without
// an intervening Get only reports true once.
func TestInvalidateIsIdempotent(t *testing.T) {
	c := NewCachedValue(func() int { return 1 })
	c.Get()
	require.True(t, c.Invalidate())
	require.False(t, c.Invalidate())
}

func TestSetIfInvalidOnlyAppliesWhenInvalid(t *testing.T) {
	c := NewCachedValue(func() int { return 99 })
	require.True(t, c.SetIfInvalid(1))
	require.False(t, c.SetIfInvalid(2))
	require.Equal(t, 1, c.Get())
}

func TestSetOverridesInFlightComputation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := NewCachedValue(func() int {
		close(started)
		<-release
		return 1
	})

	var got int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		got = c.Get()
	}()

	<-started
	c.Set(2)
	close(release)
	wg.Wait()

	require.Equal(t, 2, got)
	require.Equal(t, 2, c.Get())
}

// TestComputeInvokedOnceUnderConcurrentGet: many goroutines calling Get
// concurrently on a never-yet-computed CachedValue observe the
// supplier invoked exactly once and all receive its result.
func TestComputeInvokedOnceUnderConcurrentGet(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCachedValue(func() int {
		calls.Add(1)
		<-release
		return 7
	})

	const n = 32
	results := make([]int, n)
	var wg sync.WaitGroup
	var started atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Add(1)
			results[i] = c.Get()
		}(i)
	}

	for started.Load() < n {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for i, r := range results {
		require.Equal(t, 7, r, "goroutine %d", i)
	}
}

// TestInvalidateDuringComputeDoesNotStealResult: an Invalidate that
// arrives while a computation is in flight must let Get callers
// already waiting on that computation receive its result, and only
// then flip the slot back to invalid.
func TestInvalidateDuringComputeDoesNotStealResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := NewCachedValue(func() int {
		close(started)
		<-release
		return 5
	})

	var getResult int
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		getResult = c.Get()
	}()
	<-started

	invalidateDone := make(chan struct{})
	go func() {
		c.Invalidate()
		close(invalidateDone)
	}()

	select {
	case <-invalidateDone:
		t.Fatal("Invalidate returned before the in-flight computation finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	<-invalidateDone

	require.Equal(t, 5, getResult)
}

// TestGetPropagatesSupplierPanicAndRevertsToInvalid: a panicking
// supplier's panic reaches the caller that triggered the computation,
// and the slot is left invalid rather than stuck in COMPUTING, so a
// later Get recomputes instead of deadlocking.
func TestGetPropagatesSupplierPanicAndRevertsToInvalid(t *testing.T) {
	c := NewCachedValue(func() int {
		panic("boom")
	})

	require.PanicsWithValue(t, "boom", func() { c.Get() })

	c.supplier = func() int { return 9 }
	require.Equal(t, 9, c.Get())
}

// TestWaitersRetryAfterSupplierPanics: a goroutine parked waiting on a
// computation whose supplier panics does not receive a zero value in
// its place — it retries and becomes (or waits behind) the next
// computation, which succeeds normally.
func TestWaitersRetryAfterSupplierPanics(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var attempt atomic.Int32
	c := NewCachedValue(func() int {
		n := attempt.Add(1)
		if n == 1 {
			close(started)
			<-release
			panic("boom")
		}
		return 42
	})

	var triggererPanicked bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if recover() != nil {
				triggererPanicked = true
			}
		}()
		c.Get()
	}()
	<-started

	var waiterResult int
	wg.Add(1)
	go func() {
		defer wg.Done()
		waiterResult = c.Get()
	}()
	time.Sleep(10 * time.Millisecond) // let the waiter park behind the in-flight compute

	close(release)
	wg.Wait()

	require.True(t, triggererPanicked)
	require.Equal(t, 42, waiterResult)
	require.EqualValues(t, 2, attempt.Load())
}

// TestSignalAndWaitersDrainAfterStress runs a burst of concurrent
// Get/Invalidate/Set traffic and then checks the CachedValue returns to
// a clean internal state: no leaked waiters, no stuck signal bits.
func TestSignalAndWaitersDrainAfterStress(t *testing.T) {
	var n int64
	c := NewCachedValue(func() int {
		return int(atomic.AddInt64(&n, 1))
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Get()
				if j%17 == 0 {
					c.Invalidate()
				}
				if j%31 == 0 {
					c.Set(0)
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint32(0), c.signal.Load())
	require.Empty(t, c.waiters)
}
