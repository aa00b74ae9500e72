package nbt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompoundBuilderPreservesLastValuePerKey(t *testing.T) {
	b := NewCompoundBuilder()
	b.Put("a", IntTag(1))
	b.Put("a", IntTag(2))
	c := b.Build()

	require.Equal(t, 1, c.Size())
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, IntTag(2), v)
}

func TestCompoundEqualIgnoresInsertionOrder(t *testing.T) {
	a := NewCompoundBuilder().Put("x", IntTag(1)).Put("y", StringTag("hi")).Build()
	b := NewCompoundBuilder().Put("y", StringTag("hi")).Put("x", IntTag(1)).Build()
	require.True(t, a.Equal(b))
}

func TestCompoundEqualRecursesIntoNestedCompounds(t *testing.T) {
	inner := NewCompoundBuilder().Put("n", IntTag(1)).Build()
	a := NewCompoundBuilder().Put("child", inner).Build()
	b := NewCompoundBuilder().Put("child", NewCompoundBuilder().Put("n", IntTag(1)).Build()).Build()
	require.True(t, a.Equal(b))
}

func TestEmptyCompoundHasZeroSize(t *testing.T) {
	require.Equal(t, 0, EmptyCompound().Size())
}
