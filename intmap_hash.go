package tagstore

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Open-addressed, quadratic-probed hash table variant of intMap, per
// spec §4.1. Writes must be externally synchronized (the enclosing
// Store's mutex, for every intMap reachable from this package); reads
// take no lock at all.
//
// Key encoding: a non-negative user key k is stored internally as k+1.
// A stored key of 0 marks an empty slot that was never occupied; -1
// marks a tombstone (occupied, then removed). Any other stored value is
// a live entry. This leaves the entire non-negative range, plus 0,
// available to external keys while keeping both sentinels outside that
// range.
const (
	emptyStoredKey     int32 = 0
	tombstoneStoredKey int32 = -1

	hashLoadFactor      = 0.7
	initialHashTableLen = 4
)

func storedKeyOf(key int) int32 { return int32(key) + 1 }

// probeIndex computes the i-th quadratic probe position from start,
// per spec §4.1: h(k, i) = ((k<<1) + i + i*i) >> 1, masked by length-1.
// On a power-of-two table this visits every slot before repeating.
func probeIndex(start, i, mask int) int {
	return (((start << 1) + i + i*i) >> 1) & mask
}

// hashEntries is the backing store for one generation of a hashIntMap.
// Its two slot arrays keep their length for the whole generation; put
// and remove write individual slots in place. A new hashEntries is
// allocated on every grow/shrink/rehash and published by swapping the
// owning map's atomic pointer, after which the old one is no longer
// written, so a reader that loaded an old *hashEntries before a rehash
// keeps reading a consistent (if stale) snapshot.
type hashEntries[T any] struct {
	keys   []atomic.Int32
	values []atomic.Pointer[T]
}

func newHashEntries[T any](size int) *hashEntries[T] {
	return &hashEntries[T]{
		keys:   make([]atomic.Int32, size),
		values: make([]atomic.Pointer[T], size),
	}
}

func emptyHashEntriesOf[T any]() *hashEntries[T] {
	return &hashEntries[T]{}
}

// hashIntMap implements intMap via open addressing. size is owned by
// the single external writer and never accessed concurrently with
// itself; only entries is shared with readers.
type hashIntMap[T any] struct {
	entries atomic.Pointer[hashEntries[T]]
	size    int
	// Padding keeps a hot, frequently-read entries pointer from sharing
	// a cache line with whatever neighboring allocation follows a Node
	// (every Node owns one hashIntMap), the same concern the teacher
	// addresses with CacheLinePad-sized structs in mapof.go.
	_ cpu.CacheLinePad
}

func newHashIntMap[T any]() intMap[T] {
	m := &hashIntMap[T]{}
	m.entries.Store(emptyHashEntriesOf[T]())
	return m
}

func (m *hashIntMap[T]) sealedIntMap() {}

// probeKey returns the index holding storedTarget, or -1 if absent.
// Tombstones are transparent: the probe continues through them and
// only stops at an empty slot, since insertion never leaves an empty
// slot "in front of" a still-live entry with the same probe sequence.
func probeKey[T any](keys []atomic.Int32, storedTarget int32) int {
	n := len(keys)
	if n == 0 {
		return -1
	}
	mask := n - 1
	start := int(storedTarget) & mask
	for i := 0; i < n; i++ {
		idx := probeIndex(start, i, mask)
		sample := keys[idx].Load()
		if sample == storedTarget {
			return idx
		}
		if sample == emptyStoredKey {
			return -1
		}
	}
	return -1
}

// probeEmpty returns the first empty slot in storedTarget's probe
// sequence. Used only against freshly allocated tables (rehash), which
// never contain tombstones, so it need not special-case them.
func probeEmpty(keys []atomic.Int32, storedTarget int32) int {
	n := len(keys)
	mask := n - 1
	start := int(storedTarget) & mask
	for i := 0; i < n; i++ {
		idx := probeIndex(start, i, mask)
		if keys[idx].Load() == emptyStoredKey {
			return idx
		}
	}
	return -1
}

// probePut returns, in priority order, the index of an existing match,
// else the first tombstone seen, else the first empty slot — matching
// spec §4.1's put contract.
func probePut(keys []atomic.Int32, storedTarget int32) int {
	n := len(keys)
	mask := n - 1
	start := int(storedTarget) & mask
	tombstoneIdx := -1
	for i := 0; i < n; i++ {
		idx := probeIndex(start, i, mask)
		sample := keys[idx].Load()
		switch {
		case sample == storedTarget:
			return idx
		case sample == emptyStoredKey:
			if tombstoneIdx != -1 {
				return tombstoneIdx
			}
			return idx
		case sample == tombstoneStoredKey && tombstoneIdx == -1:
			tombstoneIdx = idx
		}
	}
	return tombstoneIdx
}

func (m *hashIntMap[T]) get(key int) T {
	e := m.entries.Load()
	var zero T
	if len(e.keys) == 0 {
		return zero
	}
	idx := probeKey[T](e.keys, storedKeyOf(key))
	if idx == -1 {
		return zero
	}
	if v := e.values[idx].Load(); v != nil {
		return *v
	}
	return zero
}

func (m *hashIntMap[T]) forValues(fn func(T)) {
	e := m.entries.Load()
	for i := range e.keys {
		k := e.keys[i].Load()
		if k == emptyStoredKey || k == tombstoneStoredKey {
			continue
		}
		v := e.values[i].Load()
		if v != nil {
			fn(*v)
		}
	}
}

func (m *hashIntMap[T]) copy() intMap[T] {
	e := m.entries.Load()
	n := len(e.keys)
	out := &hashIntMap[T]{}
	newEntries := newHashEntries[T](n)
	size := 0
	for i := 0; i < n; i++ {
		k := e.keys[i].Load()
		newEntries.keys[i].Store(k)
		if k != emptyStoredKey && k != tombstoneStoredKey {
			v := e.values[i].Load()
			if v != nil {
				vv := *v
				newEntries.values[i].Store(&vv)
			}
			size++
		}
	}
	out.entries.Store(newEntries)
	out.size = size
	return out
}

func (m *hashIntMap[T]) put(key int, value T) {
	storedKey := storedKeyOf(key)
	e := m.entries.Load()

	if len(e.keys) == 0 {
		ne := newHashEntries[T](initialHashTableLen)
		idx := int(storedKey) & (initialHashTableLen - 1)
		ne.keys[idx].Store(storedKey)
		ne.values[idx].Store(&value)
		m.entries.Store(ne)
		m.size = 1
		return
	}

	idx := probePut(e.keys, storedKey)
	if idx == -1 {
		panic("intMap: unable to find space for value") // InvariantViolation
	}

	// Value first, then key: a reader that observes the key write is
	// guaranteed (by Go's memory model, which is at least as strong as
	// the store-store fence spec §4.1 asks for) to observe this value
	// write too.
	e.values[idx].Store(&value)
	oldKey := e.keys[idx].Load()
	e.keys[idx].Store(storedKey)
	if oldKey == emptyStoredKey || oldKey == tombstoneStoredKey {
		m.size++
	}

	if float64(m.size+1) >= float64(len(e.keys))*hashLoadFactor {
		m.rehash(len(e.keys) * 2)
	}
}

func (m *hashIntMap[T]) remove(key int) {
	storedKey := storedKeyOf(key)
	e := m.entries.Load()
	if len(e.keys) == 0 {
		return
	}
	idx := probeKey[T](e.keys, storedKey)
	if idx == -1 {
		return
	}

	e.keys[idx].Store(tombstoneStoredKey)
	e.values[idx].Store(nil)

	m.size--
	if m.size == 0 {
		m.entries.Store(emptyHashEntriesOf[T]())
	} else if float64(m.size+1) <= (1-hashLoadFactor)*float64(len(e.keys)) {
		m.rehash(len(e.keys) / 2)
	}
}

func (m *hashIntMap[T]) rehash(newLen int) {
	e := m.entries.Load()
	ne := newHashEntries[T](newLen)
	for i := range e.keys {
		k := e.keys[i].Load()
		if k == emptyStoredKey || k == tombstoneStoredKey {
			continue
		}
		v := e.values[i].Load()
		idx := probeEmpty(ne.keys, k)
		if idx == -1 {
			panic("intMap: could not find space for rehashed element") // InvariantViolation
		}
		ne.keys[idx].Store(k)
		if v != nil {
			vv := *v
			ne.values[idx].Store(&vv)
		}
	}
	m.entries.Store(ne)
}

func (m *hashIntMap[T]) updateContent(content intMap[T]) {
	other, ok := content.(*hashIntMap[T])
	if !ok {
		panic("intMap.updateContent: invalid content type, expected hashIntMap") // UsageError
	}
	snapshot := other.copy().(*hashIntMap[T])
	m.entries.Store(snapshot.entries.Load())
	m.size = snapshot.size
}
