// Package nbt is a minimal stand-in for the binary tag format the store
// treats as an opaque external collaborator (spec's "the store never
// reads the wire encoding" requirement). It supplies just enough of a
// tag tree to write serializers and tests against: a handful of scalar
// leaf types, a Compound container, and a builder.
package nbt

import "fmt"

// Type discriminates the concrete shape of a BinaryTag without a type
// assertion, mirroring the nbtType() check a serializer uses to decide
// whether a stored tag still matches what it expects to read.
type Type int

const (
	TypeEnd Type = iota
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeCompound
	TypeIntArray
)

func (t Type) String() string {
	switch t {
	case TypeByte:
		return "byte"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeCompound:
		return "compound"
	case TypeIntArray:
		return "int_array"
	default:
		return "end"
	}
}

// BinaryTag is the opaque wire value a Serializer reads from and writes
// to. The store never branches on its contents; it only round-trips it.
type BinaryTag interface {
	Type() Type
}

type ByteTag int8

func (t ByteTag) Type() Type { return TypeByte }

type ShortTag int16

func (t ShortTag) Type() Type { return TypeShort }

type IntTag int32

func (t IntTag) Type() Type { return TypeInt }

type LongTag int64

func (t LongTag) Type() Type { return TypeLong }

type FloatTag float32

func (t FloatTag) Type() Type { return TypeFloat }

type DoubleTag float64

func (t DoubleTag) Type() Type { return TypeDouble }

type StringTag string

func (t StringTag) Type() Type { return TypeString }

type IntArrayTag []int32

func (t IntArrayTag) Type() Type { return TypeIntArray }

// CompoundTag is an immutable, ordered-by-insertion mapping of string
// keys to BinaryTag values. The zero value is the empty compound.
type CompoundTag struct {
	entries map[string]BinaryTag
	order   []string
}

func (c CompoundTag) Type() Type { return TypeCompound }

// Size returns the number of keys in the compound.
func (c CompoundTag) Size() int { return len(c.entries) }

// Get returns the tag stored at key and whether it was present.
func (c CompoundTag) Get(key string) (BinaryTag, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Keys returns the compound's keys in insertion order.
func (c CompoundTag) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// ForEach calls fn for every entry in insertion order.
func (c CompoundTag) ForEach(fn func(key string, tag BinaryTag)) {
	for _, k := range c.order {
		fn(k, c.entries[k])
	}
}

// Equal reports whether c and other hold the same keys mapped to
// recursively equal tags, ignoring insertion order. Intended for
// round-trip assertions in tests, not for hot-path use.
func (c CompoundTag) Equal(other CompoundTag) bool {
	if len(c.entries) != len(other.entries) {
		return false
	}
	for k, v := range c.entries {
		ov, ok := other.entries[k]
		if !ok || !tagsEqual(v, ov) {
			return false
		}
	}
	return true
}

func tagsEqual(a, b BinaryTag) bool {
	if a.Type() != b.Type() {
		return false
	}
	if ac, ok := a.(CompoundTag); ok {
		bc := b.(CompoundTag)
		return ac.Equal(bc)
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// CompoundBuilder accumulates key/tag pairs before producing an
// immutable CompoundTag.
type CompoundBuilder struct {
	entries map[string]BinaryTag
	order   []string
}

// NewCompoundBuilder returns an empty builder.
func NewCompoundBuilder() *CompoundBuilder {
	return &CompoundBuilder{entries: make(map[string]BinaryTag)}
}

// Put stores tag under key, overwriting any previous value at that key
// in place (insertion order is preserved on overwrite).
func (b *CompoundBuilder) Put(key string, tag BinaryTag) *CompoundBuilder {
	if _, exists := b.entries[key]; !exists {
		b.order = append(b.order, key)
	}
	b.entries[key] = tag
	return b
}

// Build returns the accumulated CompoundTag. The builder may continue
// to be used afterward; Build snapshots its current contents.
func (b *CompoundBuilder) Build() CompoundTag {
	entries := make(map[string]BinaryTag, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	order := make([]string, len(b.order))
	copy(order, b.order)
	return CompoundTag{entries: entries, order: order}
}

// EmptyCompound returns the canonical empty compound.
func EmptyCompound() CompoundTag {
	return CompoundTag{}
}
