package tagstore

import "github.com/corvidtag/tagstore/nbt"

// Serializer is the collaborator a Tag supplies to convert its Go value
// to and from the store's opaque nbt.BinaryTag representation. Type
// identifies the wire shape Write produces and Read expects. The store
// does not check Type before calling Read; the built-in serializers'
// Read returns the zero value of T (an empty compound for Compound)
// when handed a tag of another shape, not the tag's Default.
//
// IsPath marks a Serializer whose value is itself a compound addressed
// by sub-key rather than a scalar leaf — set only on the reserved
// serializer behind a path entry (see pathEntryTag); ordinary callers
// never need to set it.
type Serializer[T any] struct {
	Type Type

	Write func(value T) nbt.BinaryTag
	Read  func(tag nbt.BinaryTag) T

	IsPath bool
}

// Type is a local alias kept distinct from nbt.Type so serializer.go
// reads naturally without importing nbt at every call site; the two
// are interchangeable.
type Type = nbt.Type

// Int is the Serializer for int32-valued tags.
func Int() Serializer[int32] {
	return Serializer[int32]{
		Type:  nbt.TypeInt,
		Write: func(v int32) nbt.BinaryTag { return nbt.IntTag(v) },
		Read: func(t nbt.BinaryTag) int32 {
			if v, ok := t.(nbt.IntTag); ok {
				return int32(v)
			}
			return 0
		},
	}
}

// Long is the Serializer for int64-valued tags.
func Long() Serializer[int64] {
	return Serializer[int64]{
		Type:  nbt.TypeLong,
		Write: func(v int64) nbt.BinaryTag { return nbt.LongTag(v) },
		Read: func(t nbt.BinaryTag) int64 {
			if v, ok := t.(nbt.LongTag); ok {
				return int64(v)
			}
			return 0
		},
	}
}

// Double is the Serializer for float64-valued tags.
func Double() Serializer[float64] {
	return Serializer[float64]{
		Type:  nbt.TypeDouble,
		Write: func(v float64) nbt.BinaryTag { return nbt.DoubleTag(v) },
		Read: func(t nbt.BinaryTag) float64 {
			if v, ok := t.(nbt.DoubleTag); ok {
				return float64(v)
			}
			return 0
		},
	}
}

// String is the Serializer for string-valued tags.
func String() Serializer[string] {
	return Serializer[string]{
		Type:  nbt.TypeString,
		Write: func(v string) nbt.BinaryTag { return nbt.StringTag(v) },
		Read: func(t nbt.BinaryTag) string {
			if v, ok := t.(nbt.StringTag); ok {
				return string(v)
			}
			return ""
		},
	}
}

// Boolean is the Serializer for bool-valued tags, stored on the wire as
// a byte (0 or 1), matching how most NBT-backed formats represent bools.
func Boolean() Serializer[bool] {
	return Serializer[bool]{
		Type: nbt.TypeByte,
		Write: func(v bool) nbt.BinaryTag {
			if v {
				return nbt.ByteTag(1)
			}
			return nbt.ByteTag(0)
		},
		Read: func(t nbt.BinaryTag) bool {
			v, ok := t.(nbt.ByteTag)
			return ok && v != 0
		},
	}
}

// IntArray is the Serializer for []int32-valued tags.
func IntArray() Serializer[[]int32] {
	return Serializer[[]int32]{
		Type: nbt.TypeIntArray,
		Write: func(v []int32) nbt.BinaryTag {
			out := make(nbt.IntArrayTag, len(v))
			copy(out, v)
			return out
		},
		Read: func(t nbt.BinaryTag) []int32 {
			if v, ok := t.(nbt.IntArrayTag); ok {
				out := make([]int32, len(v))
				copy(out, v)
				return out
			}
			return nil
		},
	}
}

// Compound is the Serializer for nbt.CompoundTag-valued tags: a leaf
// tag whose own value happens to be an opaque sub-compound, nested
// under its own key like any other leaf. Tag.IsView is orthogonal to
// the Serializer: it's Store, not Compound, that routes a view tag's
// reads and writes through its addressed Node's whole compound instead
// of through a single keyed entry — Compound just has to be able to
// round-trip a CompoundTag either way.
func Compound() Serializer[nbt.CompoundTag] {
	return Serializer[nbt.CompoundTag]{
		Type:  nbt.TypeCompound,
		Write: func(v nbt.CompoundTag) nbt.BinaryTag { return v },
		Read: func(t nbt.BinaryTag) nbt.CompoundTag {
			if v, ok := t.(nbt.CompoundTag); ok {
				return v
			}
			return nbt.EmptyCompound()
		},
	}
}
