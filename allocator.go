package tagstore

import "sync"

// Allocator assigns stable, non-negative integer indices to (key,
// shape) pairs. "shape" disambiguates tags that share a textual key
// but reinterpret the stored value differently (e.g. two views over
// the same bytes); callers that don't need that distinction pass the
// same shape for every tag.
//
// Two calls with the same (key, shape) must return the same index for
// the lifetime of the Allocator: every Allocator implementation must be
// deterministic within a process, not necessarily across processes.
type Allocator interface {
	Index(key, shape string) int
}

// hashPrime is the teacher's 64-bit Golden Ratio mixing constant
// (mapof_opt_cpu_64.go), reused here to spread an otherwise-sequential
// counter across the positive int32 range so that two tags allocated
// back-to-back don't land in adjacent StaticIntMap probe sequences.
const hashPrime uint64 = 0x9E3779B185EBCA87

// defaultAllocator assigns indices by mixing a monotonically increasing
// counter through hashPrime, then resolving any resulting collision by
// linear probing over the mixed value. The counter guarantees every
// (key, shape) pair seen gets a distinct mix input; the mix spreads
// that sequence the way a caller that "hashes keys before assigning
// indices" would, without requiring the caller to do it themselves.
type defaultAllocator struct {
	mu      sync.Mutex
	counter uint64
	seen    map[string]int
	used    map[int]bool
}

// NewDefaultAllocator returns a fresh Allocator. NewTag uses one
// package-wide instance by default; call NewTagWithAllocator to scope
// index assignment to an Allocator of your own instead.
func NewDefaultAllocator() Allocator {
	return &defaultAllocator{
		seen: make(map[string]int),
		used: make(map[int]bool),
	}
}

func (a *defaultAllocator) Index(key, shape string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key + "\x00" + shape
	if idx, ok := a.seen[k]; ok {
		return idx
	}

	a.counter++
	mixed := a.counter * hashPrime
	idx := int(mixed & 0x7FFFFFFF)
	if idx == 0 {
		idx = 1
	}
	for a.used[idx] {
		idx = (idx + 1) & 0x7FFFFFFF
		if idx == 0 {
			idx = 1
		}
	}
	a.used[idx] = true
	a.seen[k] = idx
	return idx
}
