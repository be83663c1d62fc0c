package provision

import (
	"context"
	"errors"

	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
	"go.uber.org/zap"
)

// Backend is the vendor half of a switch session: the lock hooks plus one
// device step per VLAN operation. Steps run inside a locked transaction.
type Backend interface {
	Hooks

	CreateVLANStep(ctx context.Context, vlan int) error
	RemoveVLANStep(ctx context.Context, vlan int) error
	AddPortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error
	RemovePortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error
}

// Manager implements the VLAN operations of a switch session on top of a
// vendor Backend and keeps the membership maps in step with committed changes.
// It is not safe for concurrent use.
type Manager struct {
	backend Backend
	mapper  model.PortMapper
	members *model.Membership
	guard   Guard
	name    string
	vendor  types.Vendor
	logger  *zap.Logger
	tracker *Tracker
}

// NewManager creates a Manager for one switch
func NewManager(backend Backend, mapper model.PortMapper, config *types.SwitchConfig) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend: backend,
		mapper:  mapper,
		members: model.NewMembership(mapper.Bits()),
		guard:   NewGuard(config),
		name:    config.Name,
		vendor:  config.Vendor,
		logger:  logger.With(zap.String("switch", config.Name), zap.String("vendor", string(config.Vendor))),
		tracker: &Tracker{},
	}
}

// Members returns the VLAN membership maps
func (m *Manager) Members() *model.Membership {
	return m.members
}

// Tracker returns the transaction state tracker
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Mapper returns the port/bit mapping of the switch model
func (m *Manager) Mapper() model.PortMapper {
	return m.mapper
}

func (m *Manager) run(ctx context.Context, op types.Operation, mutate func(ctx context.Context) error) error {
	return Transaction{
		Switch:  m.name,
		Vendor:  m.vendor,
		Op:      op,
		Logger:  m.logger,
		Tracker: m.tracker,
	}.Run(ctx, m.backend, mutate)
}

func (m *Manager) portBit(op types.Operation, port model.Port) (uint, error) {
	bit, err := m.mapper.PortToBit(port)
	if err != nil {
		return 0, types.NewError(types.KindPrecondition, string(op), "port "+port.String()+" has no bit", err)
	}
	return bit, nil
}

func (m *Manager) checkPortVLAN(op types.Operation, port model.Port, vlan int) (uint, error) {
	if err := m.guard.CheckPort(op, port); err != nil {
		return 0, types.WithSwitch(err, m.name)
	}
	if err := m.guard.CheckVLAN(op, vlan); err != nil {
		return 0, types.WithSwitch(err, m.name)
	}
	bit, err := m.portBit(op, port)
	if err != nil {
		return 0, types.WithSwitch(err, m.name)
	}
	// a port spelled differently can still land on the control port's bit
	if c := m.guard.ControlPort; c != nil {
		if cbit, err := m.mapper.PortToBit(*c); err == nil && cbit == bit {
			return 0, types.WithSwitch(types.Errorf(types.KindPrecondition, string(op),
				"port %s maps onto control port %s", port, *c), m.name)
		}
	}
	return bit, nil
}

// CreateVLAN creates vlan on the switch
func (m *Manager) CreateVLAN(ctx context.Context, vlan int) error {
	if err := m.guard.CheckVLAN(types.OpCreateVLAN, vlan); err != nil {
		return types.WithSwitch(err, m.name)
	}
	err := m.run(ctx, types.OpCreateVLAN, func(ctx context.Context) error {
		return m.backend.CreateVLANStep(ctx, vlan)
	})
	if err != nil {
		return err
	}
	m.members.All.Get(vlan)
	m.members.Untagged.Get(vlan)
	return nil
}

// RemoveVLAN destroys vlan on the switch
func (m *Manager) RemoveVLAN(ctx context.Context, vlan int) error {
	if err := m.guard.CheckVLAN(types.OpRemoveVLAN, vlan); err != nil {
		return types.WithSwitch(err, m.name)
	}
	err := m.run(ctx, types.OpRemoveVLAN, func(ctx context.Context) error {
		return m.backend.RemoveVLANStep(ctx, vlan)
	})
	if err != nil {
		return err
	}
	m.members.DropVLAN(vlan)
	return nil
}

// MovePortToVLANAsTagged adds port to vlan as a tagged member
func (m *Manager) MovePortToVLANAsTagged(ctx context.Context, port model.Port, vlan int) error {
	bit, err := m.checkPortVLAN(types.OpMoveTagged, port, vlan)
	if err != nil {
		return err
	}
	err = m.run(ctx, types.OpMoveTagged, func(ctx context.Context) error {
		return m.backend.AddPortStep(ctx, port, vlan, true)
	})
	if err != nil {
		return err
	}
	m.members.AddPort(vlan, bit, true)
	return nil
}

// MovePortToVLANAsUntagged makes vlan the untagged VLAN of port. The port is
// first removed from the VLAN currently holding it untagged (other than the
// default VLAN); if that removal fails the port is not added.
func (m *Manager) MovePortToVLANAsUntagged(ctx context.Context, port model.Port, vlan int) error {
	bit, err := m.checkPortVLAN(types.OpMoveUntagged, port, vlan)
	if err != nil {
		return err
	}

	old := m.members.UntaggedVLAN(bit)
	if old > types.VLANDefault && old != vlan {
		m.logger.Info("removing port from previous untagged VLAN",
			zap.Stringer("port", port), zap.Int("from_vlan", old), zap.Int("to_vlan", vlan))
		err = m.run(ctx, types.OpRemovePort, func(ctx context.Context) error {
			return m.backend.RemovePortStep(ctx, port, old, false)
		})
		if err != nil {
			return err
		}
		m.members.RemovePort(old, bit)
	}

	err = m.run(ctx, types.OpMoveUntagged, func(ctx context.Context) error {
		return m.backend.AddPortStep(ctx, port, vlan, false)
	})
	if err != nil {
		return err
	}
	if old == types.VLANDefault && old != vlan {
		// the switch drops the default VLAN membership on its own
		m.members.RemovePort(old, bit)
	}
	m.members.AddPort(vlan, bit, false)
	return nil
}

// RemovePortFromVLAN removes port from vlan, tagged or untagged
func (m *Manager) RemovePortFromVLAN(ctx context.Context, port model.Port, vlan int) error {
	bit, err := m.checkPortVLAN(types.OpRemovePort, port, vlan)
	if err != nil {
		return err
	}

	tagged := true
	if pm, ok := m.members.Untagged.Lookup(vlan); ok && pm.Test(bit) {
		tagged = false
	}
	err = m.run(ctx, types.OpRemovePort, func(ctx context.Context) error {
		return m.backend.RemovePortStep(ctx, port, vlan, tagged)
	})
	if err != nil {
		return err
	}
	m.members.RemovePort(vlan, bit)
	return nil
}

// GetPortListByVLAN returns the member ports of vlan in bit order
func (m *Manager) GetPortListByVLAN(vlan int) ([]model.Port, error) {
	if vlan == types.VLANNone {
		return nil, types.Errorf(types.KindPrecondition, "port-list", "VLAN 0 is not a valid VLAN")
	}
	pm, ok := m.members.All.Lookup(vlan)
	if !ok {
		return nil, nil
	}
	return m.portsOf(pm)
}

// ListVLANs describes every VLAN known to the session, by ID
func (m *Manager) ListVLANs() ([]types.VLANInfo, error) {
	vlans := m.members.All.VLANs()
	out := make([]types.VLANInfo, 0, len(vlans))
	for _, vlan := range vlans {
		pm, _ := m.members.All.Lookup(vlan)
		ports, err := m.portsOf(pm)
		if err != nil {
			return nil, err
		}
		info := types.VLANInfo{ID: vlan, Ports: ports}
		if um, ok := m.members.Untagged.Lookup(vlan); ok && !um.IsEmpty() {
			if info.Untagged, err = m.portsOf(um); err != nil {
				return nil, err
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func (m *Manager) portsOf(pm *model.VLANPortMap) ([]model.Port, error) {
	ports := make([]model.Port, 0, pm.Count())
	for _, bit := range pm.Bits() {
		p, err := m.mapper.BitToPort(bit)
		if err != nil {
			return nil, types.NewError(types.KindProtocol, "port-list", "membership map holds an unmapped bit", err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// IsVLANEmpty reports whether vlan has no member ports
func (m *Manager) IsVLANEmpty(vlan int) bool {
	return m.members.IsVLANEmpty(vlan)
}

// KnowsVLAN reports whether vlan has a membership map in this session
func (m *Manager) KnowsVLAN(vlan int) bool {
	_, ok := m.members.All.Lookup(vlan)
	return ok
}

// GetVLANByUntaggedPort returns the VLAN holding port untagged, or 0
func (m *Manager) GetVLANByUntaggedPort(port model.Port) int {
	bit, err := m.mapper.PortToBit(port)
	if err != nil {
		return types.VLANNone
	}
	return m.members.UntaggedVLAN(bit)
}

// HasPortInVLAN reports whether port is a member of vlan
func (m *Manager) HasPortInVLAN(port model.Port, vlan int) bool {
	bit, err := m.mapper.PortToBit(port)
	if err != nil {
		return false
	}
	return m.members.HasPort(vlan, bit)
}

// PoliceInputBandwidth is not implemented by any supported switch
func (m *Manager) PoliceInputBandwidth(ctx context.Context, req types.BandwidthRequest) error {
	return types.WithSwitch(types.ErrUnsupported, m.name)
}

// LimitOutputBandwidth is not implemented by any supported switch
func (m *Manager) LimitOutputBandwidth(ctx context.Context, req types.BandwidthRequest) error {
	return types.WithSwitch(types.ErrUnsupported, m.name)
}

// IsPrecondition reports whether err was raised before any device I/O
func IsPrecondition(err error) bool {
	return errors.Is(err, types.ErrPrecondition)
}
