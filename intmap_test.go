package tagstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArrayMapPutGetRemove(t *testing.T) {
	m := newArrayIntMap[*entry]()
	e := &entry{}

	require.Nil(t, m.get(0))

	m.put(3, e)
	require.Same(t, e, m.get(3))
	require.Nil(t, m.get(0))

	m.remove(3)
	require.Nil(t, m.get(3))
}

func TestArrayMapGrowsOnDemand(t *testing.T) {
	m := newArrayIntMap[*entry]()
	e := &entry{}
	m.put(50, e)
	require.Same(t, e, m.get(50))
	require.Nil(t, m.get(49))
}

func TestArrayMapCopyIsIndependent(t *testing.T) {
	m := newArrayIntMap[*entry]()
	e := &entry{}
	m.put(1, e)

	snap := m.copy()
	m.put(1, &entry{})

	require.Same(t, e, snap.get(1))
	require.NotSame(t, e, m.get(1))
}

func TestArrayMapForValuesSkipsZero(t *testing.T) {
	m := newArrayIntMap[*entry]()
	e := &entry{}
	m.put(2, e)

	var seen []*entry
	m.forValues(func(v *entry) { seen = append(seen, v) })
	require.Len(t, seen, 1)
	require.Same(t, e, seen[0])
}
