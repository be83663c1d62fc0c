package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVLANPortMapEmpty(t *testing.T) {
	m := NewVLANPortMap(100, 64)
	assert.True(t, m.IsEmpty(), "fresh map must be empty")

	for _, bit := range []uint{0, 5, 63} {
		require.True(t, m.Set(bit))
		assert.False(t, m.IsEmpty(), "map with bit %d set must not be empty", bit)
		m.Clear(bit)
		assert.True(t, m.IsEmpty(), "map must be empty again after clearing bit %d", bit)
	}

	m.Set(1)
	m.Set(2)
	m.Clear(1)
	assert.False(t, m.IsEmpty())
	m.Clear(2)
	assert.True(t, m.IsEmpty())
}

func TestVLANPortMapBounds(t *testing.T) {
	m := NewVLANPortMap(10, 8)
	assert.False(t, m.Set(8))
	assert.False(t, m.Test(8))
	assert.True(t, m.IsEmpty())

	m.Set(7)
	m.Set(3)
	assert.Equal(t, []uint{3, 7}, m.Bits())
	assert.Equal(t, uint(2), m.Count())
}

func TestPortMapListGetIsLazy(t *testing.T) {
	l := NewPortMapList(16)

	_, ok := l.Lookup(200)
	assert.False(t, ok)

	m := l.Get(200)
	require.NotNil(t, m)
	assert.True(t, m.IsEmpty())
	assert.Same(t, m, l.Get(200))
	assert.Equal(t, []int{200}, l.VLANs())

	l.Remove(200)
	assert.Empty(t, l.VLANs())
}

func TestMembershipUntaggedExclusive(t *testing.T) {
	m := NewMembership(32)
	const bit = 5

	require.True(t, m.AddPort(100, bit, false))
	require.True(t, m.AddPort(200, bit, true))
	require.True(t, m.AddPort(300, bit, false))

	assert.Equal(t, 300, m.UntaggedVLAN(bit))
	assert.Equal(t, []int{300}, m.Untagged.VLANsWithBit(bit))
	assert.Equal(t, []int{100, 200, 300}, m.All.VLANsWithBit(bit))
}

func TestMembershipRemoveAndEmpty(t *testing.T) {
	m := NewMembership(32)
	assert.True(t, m.IsVLANEmpty(100), "unknown VLAN is empty")

	m.AddPort(100, 1, false)
	m.AddPort(100, 2, true)
	assert.False(t, m.IsVLANEmpty(100))
	assert.True(t, m.HasPort(100, 2))

	m.RemovePort(100, 1)
	assert.Equal(t, 0, m.UntaggedVLAN(1))
	assert.False(t, m.IsVLANEmpty(100))

	m.RemovePort(100, 2)
	assert.True(t, m.IsVLANEmpty(100))

	m.DropVLAN(100)
	_, ok := m.All.Lookup(100)
	assert.False(t, ok)
}
