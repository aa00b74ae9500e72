package tagstore

import (
	"runtime"
	"sync/atomic"

	"github.com/corvidtag/tagstore/nbt"
)

// nbtSlot boxes a cached serialization result so the cache can be
// represented as one atomic.Pointer with three states distinguished by
// identity: nil (stale), updatingNBTSentinel (a compute in flight), or
// any other pointer (a concrete cached nbt.BinaryTag).
type nbtSlot struct {
	tag nbt.BinaryTag
}

// updatingNBTSentinel is a singleton; entry.nbt is compared against it
// by pointer identity, never by contents.
var updatingNBTSentinel = &nbtSlot{}

// entry is one tag/value pair held by a Node's intMap, mirroring
// TagHandlerImpl.Entry. tag is the type-erased Tag[T] that produced
// this entry; value is the boxed T (or, for a path entry, the child
// *node); nbt is the per-entry memoized nbt.BinaryTag encoding of
// value, invalidated independently of the owning Node's compound cache
// whenever updateValue installs a new value.
type entry struct {
	tag   erasedTag
	value atomic.Pointer[any]
	nbt   atomic.Pointer[nbtSlot]
}

func newEntry(tag erasedTag, value any) *entry {
	e := &entry{tag: tag}
	e.value.Store(&value)
	return e
}

func (e *entry) getValue() any {
	v := e.value.Load()
	if v == nil {
		return nil
	}
	return *v
}

// updateValue installs a new value and discards any cached
// serialization of the old one. The value store happens before the
// cache reset so a concurrent updatedNbt can never observe the new
// value paired with a stale cached encoding of the old one.
func (e *entry) updateValue(v any) {
	e.value.Store(&v)
	e.nbt.Store(nil)
}

// updatedNbt returns this entry's current nbt.BinaryTag encoding,
// computing and memoizing it if necessary. Concurrent callers racing
// into an invalid cache cooperate the same way CachedValue's Get does:
// the first to observe nil CASes in a sentinel, computes alone, and
// either publishes the result or — if a concurrent updateValue reset
// the cache mid-compute — abandons it and leaves the cache stale for
// the next caller. Everyone else spins on the sentinel.
func (e *entry) updatedNbt() nbt.BinaryTag {
	if e.tag.isPathEntry() {
		child, _ := e.getValue().(*node)
		if child == nil {
			return nbt.EmptyCompound()
		}
		return child.compound()
	}

	for {
		current := e.nbt.Load()
		switch {
		case current == nil:
			if !e.nbt.CompareAndSwap(nil, updatingNBTSentinel) {
				continue
			}
			computed := &nbtSlot{tag: e.tag.writeAny(e.getValue())}
			e.nbt.CompareAndSwap(updatingNBTSentinel, computed)
			return computed.tag

		case current == updatingNBTSentinel:
			for {
				runtime.Gosched()
				spun := e.nbt.Load()
				if spun == updatingNBTSentinel {
					continue
				}
				if spun == nil {
					return e.tag.writeAny(e.getValue())
				}
				return spun.tag
			}

		default:
			return current.tag
		}
	}
}
