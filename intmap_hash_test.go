package tagstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashMapPutGetRemove(t *testing.T) {
	m := newHashIntMap[*entry]()
	e1 := &entry{}
	e2 := &entry{}

	require.Nil(t, m.get(5))

	m.put(5, e1)
	require.Same(t, e1, m.get(5))

	m.put(5, e2)
	require.Same(t, e2, m.get(5))

	m.remove(5)
	require.Nil(t, m.get(5))
}

func TestHashMapGrowsAcrossLoadFactor(t *testing.T) {
	m := newHashIntMap[*entry]()
	const n = 200
	for i := 0; i < n; i++ {
		m.put(i, &entry{})
	}
	for i := 0; i < n; i++ {
		require.NotNil(t, m.get(i), "key %d missing after bulk insert", i)
	}
}

func TestHashMapShrinksAfterRemoval(t *testing.T) {
	m := newHashIntMap[*entry]()
	const n = 200
	for i := 0; i < n; i++ {
		m.put(i, &entry{})
	}
	for i := 0; i < n; i++ {
		m.remove(i)
	}
	for i := 0; i < n; i++ {
		require.Nil(t, m.get(i))
	}
}

func TestHashMapTombstonesDoNotBlockProbe(t *testing.T) {
	m := newHashIntMap[*entry]()
	e := &entry{}
	m.put(1, &entry{})
	m.put(2, e)
	m.remove(1)
	require.Same(t, e, m.get(2))
}

func TestHashMapCopyIsIndependentSnapshot(t *testing.T) {
	m := newHashIntMap[*entry]()
	e := &entry{}
	m.put(1, e)

	snap := m.copy()
	m.put(2, &entry{})
	m.remove(1)

	require.Same(t, e, snap.get(1))
	require.Nil(t, snap.get(2))
}

// TestHashMapConcurrentReadDuringWrites exercises the single-writer/
// many-reader contract: a reader loop races against a writer mutating
// the map and must never observe a panic, a torn value, or a key
// pointing at the wrong entry.
func TestHashMapConcurrentReadDuringWrites(t *testing.T) {
	m := newHashIntMap[*entry]()
	const keys = 64
	entries := make([]*entry, keys)
	for i := range entries {
		entries[i] = &entry{}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for i := 0; i < keys; i++ {
					if v := m.get(i); v != nil && v != entries[i] {
						t.Errorf("get(%d) returned a value not in entries", i)
						return
					}
				}
				m.forValues(func(v *entry) {
					if v == nil {
						t.Error("forValues yielded a nil entry")
					}
				})
			}
		}()
	}

	for i := 0; i < keys; i++ {
		m.put(i, entries[i])
	}
	for i := 0; i < keys; i += 2 {
		m.remove(i)
		m.put(i, entries[i])
	}

	close(stop)
	wg.Wait()
}

func TestHashMapSizeInvariant(t *testing.T) {
	m := newHashIntMap[*entry]().(*hashIntMap[*entry])
	for i := 0; i < 50; i++ {
		m.put(i, &entry{})
	}
	require.Equal(t, 50, m.size)
	for i := 0; i < 25; i++ {
		m.remove(i)
	}
	require.Equal(t, 25, m.size)
}
