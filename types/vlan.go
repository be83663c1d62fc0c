package types

import "github.com/nanoncore/nano-switchctrl/model"

// VLANInfo describes a VLAN as last provisioned through a session
type VLANInfo struct {
	// ID is the VLAN ID (1-4094)
	ID int `json:"id"`

	// Ports lists every member port, tagged or untagged, in bit order
	Ports []model.Port `json:"ports"`

	// Untagged lists the members carrying the VLAN untagged
	Untagged []model.Port `json:"untagged,omitempty"`
}

// Tagged returns the members carrying the VLAN tagged
func (v VLANInfo) Tagged() []model.Port {
	untagged := make(map[model.Port]bool, len(v.Untagged))
	for _, p := range v.Untagged {
		untagged[p] = true
	}
	tagged := make([]model.Port, 0, len(v.Ports))
	for _, p := range v.Ports {
		if !untagged[p] {
			tagged = append(tagged, p)
		}
	}
	return tagged
}

// IsEmpty reports whether the VLAN has no member port
func (v VLANInfo) IsEmpty() bool {
	return len(v.Ports) == 0
}
