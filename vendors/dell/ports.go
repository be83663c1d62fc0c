package dell

import (
	"fmt"

	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
)

// PowerConnect stacks expose a single unit: gigabit ports live in slot 0
// ("1/gN"), ten-gigabit ports in slot 1 ("1/xgN").
const (
	unit        = 1
	gigabitSlot = 0
	tenGigSlot  = 1
)

// PowerConnectPorts maps the ports of one PowerConnect model to VLAN bitmap
// bits. Gigabit ports take bits 1..Gigabit, ten-gigabit ports follow them.
// Bit 0 is never used.
type PowerConnectPorts struct {
	Model   types.Model
	Gigabit int
	TenGig  int
}

// PortsFor returns the port layout of a PowerConnect model
func PortsFor(m types.Model) (PowerConnectPorts, error) {
	switch m {
	case types.ModelPowerConnect6024:
		return PowerConnectPorts{Model: m, Gigabit: 24}, nil
	case types.ModelPowerConnect6224, "":
		return PowerConnectPorts{Model: types.ModelPowerConnect6224, Gigabit: 24, TenGig: 4}, nil
	case types.ModelPowerConnect6248:
		return PowerConnectPorts{Model: m, Gigabit: 48, TenGig: 4}, nil
	case types.ModelPowerConnect8024:
		return PowerConnectPorts{Model: m, TenGig: 24}, nil
	default:
		return PowerConnectPorts{}, fmt.Errorf("unsupported PowerConnect model %q", m)
	}
}

// PortToBit implements model.PortMapper. Only unit 1 exists.
func (p PowerConnectPorts) PortToBit(port model.Port) (uint, error) {
	n := port.Number()
	if port.Module() != unit {
		return 0, fmt.Errorf("%w: %s on %s", model.ErrInvalidPort, port, p.Model)
	}
	switch port.Slot() {
	case gigabitSlot:
		if n >= 1 && n <= p.Gigabit {
			return uint(n), nil
		}
	case tenGigSlot:
		if n >= 1 && n <= p.TenGig {
			return uint(p.Gigabit + n), nil
		}
	}
	return 0, fmt.Errorf("%w: %s on %s", model.ErrInvalidPort, port, p.Model)
}

// BitToPort implements model.PortMapper
func (p PowerConnectPorts) BitToPort(bit uint) (model.Port, error) {
	b := int(bit)
	switch {
	case b >= 1 && b <= p.Gigabit:
		return model.NewPort(unit, gigabitSlot, b), nil
	case b > p.Gigabit && b <= p.Gigabit+p.TenGig:
		return model.NewPort(unit, tenGigSlot, b-p.Gigabit), nil
	}
	return 0, fmt.Errorf("%w: %d on %s", model.ErrInvalidBit, bit, p.Model)
}

// Bits implements model.PortMapper
func (p PowerConnectPorts) Bits() uint {
	return uint(p.Gigabit + p.TenGig + 1)
}

// InterfaceName returns the CLI name of a port, e.g. "1/g5" or "1/xg2"
func InterfaceName(port model.Port) string {
	if port.Slot() == gigabitSlot {
		return fmt.Sprintf("%d/g%d", unit, port.Number())
	}
	return fmt.Sprintf("%d/xg%d", unit, port.Number())
}

var _ model.PortMapper = PowerConnectPorts{}
