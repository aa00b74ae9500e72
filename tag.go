package tagstore

import "github.com/corvidtag/tagstore/nbt"

// PathEntry names one segment of a Tag's path: a key addressed within
// an intermediate child Node, plus that child's own allocator index.
type PathEntry struct {
	Name  string
	Index int
}

// Tag identifies one addressable attribute of a Store: an allocator
// index (used for the in-memory intMap lookup), a compound key (used
// for serialization), an optional path of intermediate Node keys the
// store must create or traverse on write, and the Serializer used to
// convert T to and from nbt.BinaryTag.
//
// IsView marks a tag that addresses a whole Node rather than one entry
// within it: GetTag reconstructs T from the addressed Node's entire
// compound, and SetTag replaces that Node's entire entry set from T —
// both atomically under the same Node, rather than nesting one level
// deeper under Key. This is the Minestom "view" tag idiom for exposing
// a record type as a flattened slice of its parent's own fields.
type Tag[T any] struct {
	Key   string
	Index int
	Path  []PathEntry

	Ser Serializer[T]

	IsView bool

	// Default supplies the value GetTag returns when the tag is
	// absent. If nil, the zero value of T is used.
	Default func() T

	// CopyValue deep-copies a value on every write (SetTag and the
	// UpdateTag family) and for Copy/ReadableCopy. If nil, the
	// value is copied by assignment (correct for scalars and immutable
	// types; callers with mutable T must supply this).
	CopyValue func(T) T
}

func (t Tag[T]) key() string       { return t.Key }
func (t Tag[T]) index() int        { return t.Index }
func (t Tag[T]) path() []PathEntry { return t.Path }
func (t Tag[T]) isPathEntry() bool { return t.Ser.IsPath }
func (t Tag[T]) nbtType() nbt.Type { return t.Ser.Type }

func (t Tag[T]) writeAny(v any) nbt.BinaryTag {
	val, _ := v.(T)
	return t.Ser.Write(val)
}

func (t Tag[T]) readAny(b nbt.BinaryTag) any {
	return t.Ser.Read(b)
}

func (t Tag[T]) createDefaultAny() any {
	return t.defaultValue()
}

// defaultValue returns the value GetTag reports when t is absent.
func (t Tag[T]) defaultValue() T {
	if t.Default == nil {
		var zero T
		return zero
	}
	return t.Default()
}

func (t Tag[T]) copyAny(v any) any {
	val, _ := v.(T)
	if t.CopyValue == nil {
		return val
	}
	return t.CopyValue(val)
}

// shareValue reports whether two tags address the same stored slot —
// same allocator index — and so may reinterpret each other's value in
// place via entry.updateValue rather than requiring a remove+insert.
func (t Tag[T]) shareValue(other erasedTag) bool {
	return t.Index == other.index()
}

// erasedTag is the type-erased view of a Tag[T] that entry and node
// operate on. Go has no raw/unparameterized generics (unlike Java's
// type erasure), so this interface plus boxing through `any` plays the
// same role a raw StaticIntMap<Entry<?>> plays in the original: every
// Tag[T] implements it by value.
type erasedTag interface {
	key() string
	index() int
	path() []PathEntry
	isPathEntry() bool
	nbtType() nbt.Type
	writeAny(v any) nbt.BinaryTag
	readAny(b nbt.BinaryTag) any
	createDefaultAny() any
	copyAny(v any) any
	shareValue(other erasedTag) bool
}

// tagAsErased upcasts a concrete Tag[T] to its erasedTag view. Tag[T]
// implements erasedTag by value, so this is just a conversion, not a
// copy of anything beyond the Tag's own (small, immutable) fields.
func tagAsErased[T any](t Tag[T]) erasedTag { return t }

// defaultAllocatorInstance backs NewTag; most callers define tags as
// package-level variables and never touch an Allocator directly.
var defaultAllocatorInstance = NewDefaultAllocator()

// NewTag builds a Tag[T] whose index comes from the process-wide
// default Allocator, keyed on key and the Serializer's wire Type. Two
// calls with the same key and Type share an index and so share value
// (see Tag.shareValue) even if constructed as separate Go values —
// the same way two independently-constructed Minestom Tag.Integer("x")
// calls address the same underlying slot.
func NewTag[T any](key string, ser Serializer[T]) Tag[T] {
	return NewTagWithAllocator(defaultAllocatorInstance, key, ser)
}

// NewTagWithAllocator is NewTag with an explicit Allocator, for callers
// who want tag indices scoped to something other than the process-wide
// default (e.g. one Allocator per test case, to avoid index reuse
// across unrelated tests).
func NewTagWithAllocator[T any](alloc Allocator, key string, ser Serializer[T]) Tag[T] {
	return Tag[T]{
		Key:   key,
		Index: alloc.Index(key, ser.Type.String()),
		Ser:   ser,
	}
}

// pathEntryTag builds the reserved Tag an intermediate child Node is
// boxed under. Its Serializer.IsPath is always true, which is exactly
// how entry.updatedNbt and node.computeCompound recognize a path entry
// and dispatch to the child's own compound() instead of calling Write.
func pathEntryTag(name string, index int) Tag[*node] {
	return Tag[*node]{
		Key:   name,
		Index: index,
		Ser: Serializer[*node]{
			Type:   nbt.TypeCompound,
			IsPath: true,
			Write:  func(n *node) nbt.BinaryTag { return n.compound() },
			Read:   func(nbt.BinaryTag) *node { return nil },
		},
	}
}
