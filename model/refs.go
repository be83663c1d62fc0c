package model

import "sort"

// PortRef maps a switch-reported interface index to a unified port
type PortRef struct {
	RefID int  `json:"ref_id"`
	Port  Port `json:"port"`
}

// VLANRef maps a switch-reported interface index to a VLAN ID
type VLANRef struct {
	RefID int `json:"ref_id"`
	VLAN  int `json:"vlan"`
}

// PortRefTable is an ordered, read-only port reference table.
// It is rebuilt wholesale and never patched.
type PortRefTable struct {
	entries []PortRef
}

// NewPortRefTable sorts entries by RefID. Later duplicates of a RefID are dropped.
func NewPortRefTable(entries []PortRef) *PortRefTable {
	sorted := append([]PortRef(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RefID < sorted[j].RefID })
	out := sorted[:0]
	for _, e := range sorted {
		if len(out) > 0 && out[len(out)-1].RefID == e.RefID {
			continue
		}
		out = append(out, e)
	}
	return &PortRefTable{entries: out}
}

// Len returns the number of entries
func (t *PortRefTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the entries in RefID order
func (t *PortRefTable) Entries() []PortRef {
	if t == nil {
		return nil
	}
	return append([]PortRef(nil), t.entries...)
}

// PortByRef returns the unified port for an interface index
func (t *PortRefTable) PortByRef(ref int) (Port, bool) {
	if t == nil {
		return 0, false
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].RefID >= ref })
	if i < len(t.entries) && t.entries[i].RefID == ref {
		return t.entries[i].Port, true
	}
	return 0, false
}

// RefByPort returns the interface index of a unified port
func (t *PortRefTable) RefByPort(p Port) (int, bool) {
	if t == nil {
		return 0, false
	}
	for _, e := range t.entries {
		if e.Port == p {
			return e.RefID, true
		}
	}
	return 0, false
}

// VLANRefTable is an ordered, read-only VLAN reference table
type VLANRefTable struct {
	entries []VLANRef
}

// NewVLANRefTable sorts entries by RefID. Later duplicates of a RefID are dropped.
func NewVLANRefTable(entries []VLANRef) *VLANRefTable {
	sorted := append([]VLANRef(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RefID < sorted[j].RefID })
	out := sorted[:0]
	for _, e := range sorted {
		if len(out) > 0 && out[len(out)-1].RefID == e.RefID {
			continue
		}
		out = append(out, e)
	}
	return &VLANRefTable{entries: out}
}

// Len returns the number of entries
func (t *VLANRefTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the entries in RefID order
func (t *VLANRefTable) Entries() []VLANRef {
	if t == nil {
		return nil
	}
	return append([]VLANRef(nil), t.entries...)
}

// VLANByRef returns the VLAN ID for an interface index
func (t *VLANRefTable) VLANByRef(ref int) (int, bool) {
	if t == nil {
		return 0, false
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].RefID >= ref })
	if i < len(t.entries) && t.entries[i].RefID == ref {
		return t.entries[i].VLAN, true
	}
	return 0, false
}

// RefByVLAN returns the interface index carrying a VLAN
func (t *VLANRefTable) RefByVLAN(vlan int) (int, bool) {
	if t == nil {
		return 0, false
	}
	for _, e := range t.entries {
		if e.VLAN == vlan {
			return e.RefID, true
		}
	}
	return 0, false
}
