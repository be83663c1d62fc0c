package provision

import (
	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
)

// Guard rejects requests that must never reach a switch
type Guard struct {
	ControlPort *model.Port
	MinVLAN     int
	MaxVLAN     int
}

// NewGuard builds the guard for a switch configuration
func NewGuard(config *types.SwitchConfig) Guard {
	return Guard{
		ControlPort: config.ControlPort,
		MinVLAN:     config.MinVLAN,
		MaxVLAN:     config.MaxVLAN,
	}
}

// CheckVLAN rejects VLAN 0 and IDs outside the configured range
func (g Guard) CheckVLAN(op types.Operation, vlan int) error {
	if vlan == types.VLANNone {
		return types.Errorf(types.KindPrecondition, string(op), "VLAN 0 is not a valid VLAN")
	}
	if vlan < g.MinVLAN || vlan > g.MaxVLAN {
		return types.Errorf(types.KindPrecondition, string(op),
			"VLAN %d outside the valid range %d-%d", vlan, g.MinVLAN, g.MaxVLAN)
	}
	return nil
}

// CheckPort rejects the switch's control port
func (g Guard) CheckPort(op types.Operation, port model.Port) error {
	if g.ControlPort != nil && *g.ControlPort == port {
		return types.Errorf(types.KindPrecondition, string(op), "port %s is the control port", port)
	}
	return nil
}
