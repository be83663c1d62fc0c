package model

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// VLANPortMap is the set of port bits belonging to one VLAN
type VLANPortMap struct {
	VLAN  int
	size  uint
	ports *bitset.BitSet
}

// NewVLANPortMap returns an empty map with room for size port bits
func NewVLANPortMap(vlan int, size uint) *VLANPortMap {
	return &VLANPortMap{VLAN: vlan, size: size, ports: bitset.New(size)}
}

// Set marks bit as a member. Bits beyond the map size are ignored.
func (m *VLANPortMap) Set(bit uint) bool {
	if bit >= m.size {
		return false
	}
	m.ports.Set(bit)
	return true
}

// Clear removes bit from the map
func (m *VLANPortMap) Clear(bit uint) {
	if bit < m.size {
		m.ports.Clear(bit)
	}
}

// Test reports whether bit is a member
func (m *VLANPortMap) Test(bit uint) bool {
	return bit < m.size && m.ports.Test(bit)
}

// IsEmpty is true iff every bit is zero
func (m *VLANPortMap) IsEmpty() bool {
	return m.ports.None()
}

// Count returns the number of member bits
func (m *VLANPortMap) Count() uint {
	return m.ports.Count()
}

// Bits returns the member bits in ascending order
func (m *VLANPortMap) Bits() []uint {
	out := make([]uint, 0, m.ports.Count())
	for i, ok := m.ports.NextSet(0); ok; i, ok = m.ports.NextSet(i + 1) {
		out = append(out, i)
	}
	return out
}

// Size returns the number of bits the map can hold
func (m *VLANPortMap) Size() uint {
	return m.size
}

// PortMapList holds one VLANPortMap per VLAN
type PortMapList struct {
	size uint
	maps map[int]*VLANPortMap
}

// NewPortMapList returns an empty list whose maps hold size bits
func NewPortMapList(size uint) *PortMapList {
	return &PortMapList{size: size, maps: make(map[int]*VLANPortMap)}
}

// Get returns the map for vlan, creating an empty one if absent
func (l *PortMapList) Get(vlan int) *VLANPortMap {
	if m, ok := l.maps[vlan]; ok {
		return m
	}
	m := NewVLANPortMap(vlan, l.size)
	l.maps[vlan] = m
	return m
}

// Lookup returns the map for vlan without creating it
func (l *PortMapList) Lookup(vlan int) (*VLANPortMap, bool) {
	m, ok := l.maps[vlan]
	return m, ok
}

// Remove drops the map for vlan
func (l *PortMapList) Remove(vlan int) {
	delete(l.maps, vlan)
}

// VLANs returns the VLAN IDs present in the list, sorted
func (l *PortMapList) VLANs() []int {
	out := make([]int, 0, len(l.maps))
	for v := range l.maps {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// VLANsWithBit returns every VLAN whose map has bit set, sorted
func (l *PortMapList) VLANsWithBit(bit uint) []int {
	var out []int
	for _, v := range l.VLANs() {
		if l.maps[v].Test(bit) {
			out = append(out, v)
		}
	}
	return out
}

// Membership tracks both VLAN maps of one switch: every member port,
// and the ports for which the VLAN is the untagged (native) VLAN.
// A port bit is set in at most one Untagged map.
type Membership struct {
	All      *PortMapList
	Untagged *PortMapList
}

// NewMembership returns empty maps sized for size port bits
func NewMembership(size uint) *Membership {
	return &Membership{
		All:      NewPortMapList(size),
		Untagged: NewPortMapList(size),
	}
}

// AddPort records bit as a member of vlan. For an untagged member the bit is
// first cleared from every other VLAN's untagged map.
func (m *Membership) AddPort(vlan int, bit uint, tagged bool) bool {
	if !m.All.Get(vlan).Set(bit) {
		return false
	}
	if tagged {
		return true
	}
	for _, v := range m.Untagged.VLANsWithBit(bit) {
		if v != vlan {
			m.Untagged.Get(v).Clear(bit)
		}
	}
	return m.Untagged.Get(vlan).Set(bit)
}

// RemovePort clears bit from both maps of vlan
func (m *Membership) RemovePort(vlan int, bit uint) {
	if pm, ok := m.All.Lookup(vlan); ok {
		pm.Clear(bit)
	}
	if pm, ok := m.Untagged.Lookup(vlan); ok {
		pm.Clear(bit)
	}
}

// UntaggedVLAN returns the VLAN holding bit as untagged member, or 0
func (m *Membership) UntaggedVLAN(bit uint) int {
	if vlans := m.Untagged.VLANsWithBit(bit); len(vlans) > 0 {
		return vlans[0]
	}
	return 0
}

// HasPort reports whether bit is a member of vlan
func (m *Membership) HasPort(vlan int, bit uint) bool {
	pm, ok := m.All.Lookup(vlan)
	return ok && pm.Test(bit)
}

// IsVLANEmpty reports whether vlan has no member ports. Unknown VLANs are empty.
func (m *Membership) IsVLANEmpty(vlan int) bool {
	pm, ok := m.All.Lookup(vlan)
	return !ok || pm.IsEmpty()
}

// DropVLAN forgets both maps of vlan
func (m *Membership) DropVLAN(vlan int) {
	m.All.Remove(vlan)
	m.Untagged.Remove(vlan)
}
