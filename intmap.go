package tagstore

import "sync/atomic"

// intMap is a concurrent int-keyed map: lock-free reads, externally
// synchronized writes. It underlies every Node's entry table.
//
// There are two implementations, chosen per call site: arrayIntMap for
// small dense key spaces, hashIntMap for the general case. The interface
// is closed to this package (sealedIntMap is unexported) the way spec
// §4.1 describes StaticIntMap as a sealed interface over exactly Array
// and Hash.
type intMap[T any] interface {
	// get returns the value stored at key, or the zero value of T if
	// key is absent. Never blocks, never takes a lock.
	get(key int) T

	// forValues calls fn for every live value in unspecified order.
	forValues(fn func(T))

	// copy takes a point-in-time snapshot tolerant of concurrent writers.
	copy() intMap[T]

	// put and remove require external synchronization: at most one
	// writer may be active on a given intMap at a time.
	put(key int, value T)
	remove(key int)

	// updateContent replaces this map's entries with a snapshot of
	// content's entries. content must be the same concrete variant;
	// mismatched variants are a usage error (panic).
	updateContent(content intMap[T])

	sealedIntMap()
}

// newArrayIntMap constructs the dense-array variant described in spec
// §4.1. Appropriate only when keys are small and dense; every other
// call site should use newHashIntMap.
func newArrayIntMap[T any]() intMap[T] {
	m := &arrayIntMap[T]{}
	m.arr.Store(&[]T{})
	return m
}

// arrayIntMap is a growable dense array indexed directly by key.
//
// The backing slice is published through a single atomic pointer so
// that a grow (copy-on-write, doubling) is visible to readers as one
// atomic swap, even though plain Go slices have no atomicity of their
// own. This is a conservative strengthening of spec §4.1's "Writes grow
// via copyOf(key*2+1) and swap the reference": the Java field isn't
// declared volatile, but every other accessor in this package is
// lock-free, so reads here are made equally safe.
type arrayIntMap[T any] struct {
	arr atomic.Pointer[[]T]
}

func (m *arrayIntMap[T]) sealedIntMap() {}

func (m *arrayIntMap[T]) get(key int) T {
	arr := *m.arr.Load()
	if key < len(arr) {
		return arr[key]
	}
	var zero T
	return zero
}

func (m *arrayIntMap[T]) forValues(fn func(T)) {
	arr := *m.arr.Load()
	var zero T
	for _, v := range arr {
		if !isZero(v, zero) {
			fn(v)
		}
	}
}

func (m *arrayIntMap[T]) copy() intMap[T] {
	arr := *m.arr.Load()
	cp := make([]T, len(arr))
	copy(cp, arr)
	out := &arrayIntMap[T]{}
	out.arr.Store(&cp)
	return out
}

func (m *arrayIntMap[T]) put(key int, value T) {
	arr := *m.arr.Load()
	if key >= len(arr) {
		grown := make([]T, key*2+1)
		copy(grown, arr)
		arr = grown
	} else {
		grown := make([]T, len(arr))
		copy(grown, arr)
		arr = grown
	}
	arr[key] = value
	m.arr.Store(&arr)
}

func (m *arrayIntMap[T]) remove(key int) {
	arr := *m.arr.Load()
	if key >= len(arr) {
		return
	}
	grown := make([]T, len(arr))
	copy(grown, arr)
	var zero T
	grown[key] = zero
	m.arr.Store(&grown)
}

func (m *arrayIntMap[T]) updateContent(content intMap[T]) {
	other, ok := content.(*arrayIntMap[T])
	if !ok {
		panic("intMap.updateContent: invalid content type, expected arrayIntMap")
	}
	arr := *other.arr.Load()
	cp := make([]T, len(arr))
	copy(cp, arr)
	m.arr.Store(&cp)
}

// isZero reports whether v equals the zero value of T. T here is always
// instantiated with a pointer or interface type in this package (*entry
// or *node), so a simple comparison is sufficient and avoids pulling in
// reflect on what is otherwise a hot path.
func isZero[T any](v T, zero T) bool {
	return any(v) == any(zero)
}
