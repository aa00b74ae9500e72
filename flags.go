package tagstore

import "sync/atomic"

// Runtime configuration consumed by the Store. These are plain package
// variables rather than a config file or flag set: spec calls for no
// CLI or file-format surface, so callers flip them through the setter
// functions below, much as Minestom's ServerFlag is a static field
// assigned before boot.

var (
	// tagHandlerCacheEnabled gates Node.compound()'s memoization. When
	// false, compound() recomputes on every call instead of consulting
	// (or populating) the compound cache.
	tagHandlerCacheEnabled = newBoolFlag(true)

	// serializeEmptyCompound controls whether a child Node whose
	// materialized compound is empty is still written into its parent's
	// output (and, in Copy, whether an empty child is still linked in).
	serializeEmptyCompound = newBoolFlag(false)
)

func newBoolFlag(v bool) *atomic.Bool {
	b := &atomic.Bool{}
	b.Store(v)
	return b
}

// TagHandlerCacheEnabled reports whether compound caching is active.
func TagHandlerCacheEnabled() bool { return tagHandlerCacheEnabled.Load() }

// SetTagHandlerCacheEnabled toggles compound caching for every Store in
// the process. Default true.
func SetTagHandlerCacheEnabled(v bool) { tagHandlerCacheEnabled.Store(v) }

// SerializeEmptyCompound reports whether empty child compounds are kept
// in their parent's serialized output.
func SerializeEmptyCompound() bool { return serializeEmptyCompound.Load() }

// SetSerializeEmptyCompound toggles empty-compound pruning for every
// Store in the process. Default false (empty children are pruned).
func SetSerializeEmptyCompound(v bool) { serializeEmptyCompound.Store(v) }
