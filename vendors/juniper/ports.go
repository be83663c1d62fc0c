package juniper

import (
	"fmt"

	"github.com/nanoncore/nano-switchctrl/model"
)

// EX3200 port numbering: up to four modules of two slots of 64 ports each
const (
	exModules      = 4
	exSlots        = 2
	exPortsPerSlot = 64
	exBits         = exModules * exSlots * exPortsPerSlot
)

// EX3200Ports maps unified ports to VLAN bitmap bits and back
type EX3200Ports struct{}

// PortToBit implements model.PortMapper
func (EX3200Ports) PortToBit(p model.Port) (uint, error) {
	mod, slot, port := p.Module(), p.Slot(), p.Number()
	if mod >= exModules || slot >= exSlots || port >= exPortsPerSlot {
		return 0, fmt.Errorf("%w: %s", model.ErrInvalidPort, p)
	}
	return uint(mod*exSlots*exPortsPerSlot + slot*exPortsPerSlot + port), nil
}

// BitToPort implements model.PortMapper
func (EX3200Ports) BitToPort(bit uint) (model.Port, error) {
	if bit >= exBits {
		return 0, fmt.Errorf("%w: %d", model.ErrInvalidBit, bit)
	}
	b := int(bit)
	return model.NewPort(b/(exSlots*exPortsPerSlot), (b/exPortsPerSlot)%exSlots, b%exPortsPerSlot), nil
}

// Bits implements model.PortMapper
func (EX3200Ports) Bits() uint {
	return exBits
}

// InterfaceName returns the physical interface name of a unified port
func InterfaceName(p model.Port) string {
	return fmt.Sprintf("ge-%d/%d/%d", p.Module(), p.Slot(), p.Number())
}

var _ model.PortMapper = EX3200Ports{}
