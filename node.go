package tagstore

import (
	"runtime"
	"sync/atomic"
	"weak"

	"github.com/corvidtag/tagstore/nbt"
)

// compoundSlot boxes a Node's cached materialized compound, the same
// three-state-by-identity pattern as entry's nbtSlot.
type compoundSlot struct {
	c nbt.CompoundTag
}

var updatingCompoundSentinel = &compoundSlot{}

// node is one level of a Store's tree, mirroring TagHandlerImpl.Node.
// entries holds this node's own tag/value pairs (including, for each
// intermediate path segment, a path entry boxing a child *node).
// compoundCache memoizes entries' combined nbt.CompoundTag the same way
// entry.nbt memoizes a single value's encoding; invalidate() walks up
// through parent to evict every ancestor's cache in one pass.
//
// parent is a weak.Pointer rather than a plain *node: a child must be
// able to walk up to invalidate its ancestors' caches without that
// back-edge keeping the whole tree alive once the caller drops every
// strong reference to an ancestor (spec's "ownership and cycles" design
// note — the canonical strong edges run parent-to-child only).
type node struct {
	parent        weak.Pointer[node]
	entries       intMap[*entry]
	compoundCache atomic.Pointer[compoundSlot]
}

func newNode(parent *node) *node {
	n := &node{entries: newHashIntMap[*entry]()}
	if parent != nil {
		n.parent = weak.Make(parent)
	}
	return n
}

// compound returns this node's materialized nbt.CompoundTag, computing
// and memoizing it if TagHandlerCacheEnabled and the cache is currently
// stale. The compute/spin protocol mirrors entry.updatedNbt exactly.
func (n *node) compound() nbt.CompoundTag {
	if !TagHandlerCacheEnabled() {
		return n.computeCompound()
	}

	for {
		current := n.compoundCache.Load()
		switch {
		case current == nil:
			if !n.compoundCache.CompareAndSwap(nil, updatingCompoundSentinel) {
				continue
			}
			computed := &compoundSlot{c: n.computeCompound()}
			n.compoundCache.CompareAndSwap(updatingCompoundSentinel, computed)
			return computed.c

		case current == updatingCompoundSentinel:
			for {
				runtime.Gosched()
				spun := n.compoundCache.Load()
				if spun == updatingCompoundSentinel {
					continue
				}
				if spun == nil {
					return n.computeCompound()
				}
				return spun.c
			}

		default:
			return current.c
		}
	}
}

// computeCompound walks every live entry and assembles the compound
// from scratch, pruning empty child compounds unless
// SerializeEmptyCompound is set. View tags (see Tag.IsView) never
// reach here as an entry — Store routes their reads and writes through
// a Node's whole compound directly — so every entry still seen here is
// keyed under its own tag.key().
func (n *node) computeCompound() nbt.CompoundTag {
	b := nbt.NewCompoundBuilder()
	n.entries.forValues(func(e *entry) {
		tg := e.updatedNbt()
		if tg == nil {
			return
		}
		if e.tag.isPathEntry() && !SerializeEmptyCompound() {
			if ct, ok := tg.(nbt.CompoundTag); ok && ct.Size() == 0 {
				return
			}
		}
		b.Put(e.tag.key(), tg)
	})
	return b.Build()
}

// invalidate clears this node's compound cache and every ancestor's,
// per spec §4.3's "write touches O(depth) caches" contract. A dead
// ancestor (parent.Value() returns nil) simply ends the walk early —
// nothing further up is reachable to invalidate anyway.
func (n *node) invalidate() {
	for cur := n; cur != nil; cur = cur.parent.Value() {
		cur.compoundCache.Store(nil)
	}
}

// invalidateAbove clears every ancestor's compound cache without
// touching n's own. Used after a write that already knows n's fresh
// compound (a view tag write installs it directly) and only needs
// everything above n recomputed on next read.
func (n *node) invalidateAbove() {
	for cur := n.parent.Value(); cur != nil; cur = cur.parent.Value() {
		cur.compoundCache.Store(nil)
	}
}

// copyNode produces a deep, independent copy of the subtree rooted at
// n, linked under parent. A child subtree whose materialized compound
// is empty is pruned from the copy unless SerializeEmptyCompound is
// set, mirroring computeCompound's own pruning so a copied Store
// serializes identically to an equivalent freshly built one.
func (n *node) copyNode(parent *node) *node {
	result := newNode(parent)
	b := nbt.NewCompoundBuilder()

	n.entries.forValues(func(e *entry) {
		tag := e.tag
		value := e.getValue()
		var tg nbt.BinaryTag

		if child, ok := value.(*node); ok {
			copiedChild := child.copyNode(result)
			if copiedChild == nil {
				return
			}
			value = copiedChild
			tg = copiedChild.compound()
		} else {
			tg = e.updatedNbt()
			value = tag.copyAny(value)
		}

		if tg != nil {
			b.Put(tag.key(), tg)
		}
		result.entries.put(tag.index(), newEntry(tag, value))
	})

	compound := b.Build()
	if !SerializeEmptyCompound() && compound.Size() == 0 && parent != nil {
		return nil
	}
	result.compoundCache.Store(&compoundSlot{c: compound})
	return result
}

// updateContent replaces n's entries wholesale with replacement's,
// re-parenting every path-entry child in the process, and re-seeds the
// compound cache with the already-known compound rather than
// recomputing it.
func (n *node) updateContent(replacement *node, compound nbt.CompoundTag) {
	n.entries.updateContent(replacement.entries)
	n.entries.forValues(func(e *entry) {
		if child, ok := e.getValue().(*node); ok {
			child.parent = weak.Make(n)
		}
	})
	n.compoundCache.Store(&compoundSlot{c: compound})
}
