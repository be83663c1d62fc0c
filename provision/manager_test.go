package provision

import (
	"context"
	"fmt"
	"testing"

	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearMapper maps port m/s/p to bit p, for ports 0/0/1..0/0/size-1
type linearMapper struct{ size uint }

func (l linearMapper) PortToBit(p model.Port) (uint, error) {
	if p.Module() != 0 || p.Slot() != 0 || uint(p.Number()) >= l.size {
		return 0, model.ErrInvalidPort
	}
	return uint(p.Number()), nil
}

func (l linearMapper) BitToPort(bit uint) (model.Port, error) {
	if bit >= l.size {
		return 0, model.ErrInvalidBit
	}
	return model.NewPort(0, 0, int(bit)), nil
}

func (l linearMapper) Bits() uint { return l.size }

// fakeBackend records every hook and step as a string
type fakeBackend struct {
	fakeHooks
	stepErr map[string]error
}

func (b *fakeBackend) step(name string) error {
	b.calls = append(b.calls, name)
	return b.stepErr[name]
}

func (b *fakeBackend) CreateVLANStep(ctx context.Context, vlan int) error {
	return b.step(fmt.Sprintf("create %d", vlan))
}

func (b *fakeBackend) RemoveVLANStep(ctx context.Context, vlan int) error {
	return b.step(fmt.Sprintf("destroy %d", vlan))
}

func (b *fakeBackend) AddPortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error {
	return b.step(fmt.Sprintf("add %s %d tagged=%t", port, vlan, tagged))
}

func (b *fakeBackend) RemovePortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error {
	return b.step(fmt.Sprintf("remove %s %d tagged=%t", port, vlan, tagged))
}

func newTestManager(t *testing.T, control *model.Port) (*Manager, *fakeBackend) {
	t.Helper()
	cfg := &types.SwitchConfig{Name: "sw1", Vendor: types.VendorMock, ControlPort: control}
	cfg.ApplyDefaults()
	b := &fakeBackend{stepErr: map[string]error{}}
	return NewManager(b, linearMapper{size: 48}, cfg), b
}

func TestManagerTaggedAdd(t *testing.T) {
	m, b := newTestManager(t, nil)
	port := model.NewPort(0, 0, 5)

	require.NoError(t, m.MovePortToVLANAsTagged(context.Background(), port, 100))

	assert.Equal(t, []string{"lock", "add 0/0/5 100 tagged=true", "commit+unlock"}, b.calls)
	assert.True(t, m.HasPortInVLAN(port, 100))
	assert.False(t, m.IsVLANEmpty(100))
	assert.Equal(t, types.VLANNone, m.GetVLANByUntaggedPort(port))

	ports, err := m.GetPortListByVLAN(100)
	require.NoError(t, err)
	assert.Equal(t, []model.Port{port}, ports)
}

func TestManagerUntaggedExclusivity(t *testing.T) {
	m, b := newTestManager(t, nil)
	port := model.NewPort(0, 0, 7)
	ctx := context.Background()

	require.NoError(t, m.MovePortToVLANAsUntagged(ctx, port, 200))
	assert.Equal(t, 200, m.GetVLANByUntaggedPort(port))

	b.calls = nil
	require.NoError(t, m.MovePortToVLANAsUntagged(ctx, port, 300))

	assert.Equal(t, []string{
		"lock", "remove 0/0/7 200 tagged=false", "commit+unlock",
		"lock", "add 0/0/7 300 tagged=false", "commit+unlock",
	}, b.calls)
	assert.Equal(t, 300, m.GetVLANByUntaggedPort(port))
	assert.False(t, m.HasPortInVLAN(port, 200))
	assert.True(t, m.IsVLANEmpty(200))

	for _, vlan := range m.Members().Untagged.VLANs() {
		if vlan != 300 {
			assert.False(t, m.Members().Untagged.Get(vlan).Test(7), "port untagged in VLAN %d", vlan)
		}
	}
}

func TestManagerUntaggedSameVLANSkipsRemoval(t *testing.T) {
	m, b := newTestManager(t, nil)
	port := model.NewPort(0, 0, 2)
	ctx := context.Background()

	require.NoError(t, m.MovePortToVLANAsUntagged(ctx, port, 200))
	b.calls = nil
	require.NoError(t, m.MovePortToVLANAsUntagged(ctx, port, 200))
	assert.Equal(t, []string{"lock", "add 0/0/2 200 tagged=false", "commit+unlock"}, b.calls)
}

func TestManagerUntaggedFromDefaultVLAN(t *testing.T) {
	m, b := newTestManager(t, nil)
	port := model.NewPort(0, 0, 4)
	m.Members().AddPort(types.VLANDefault, 4, false)

	require.NoError(t, m.MovePortToVLANAsUntagged(context.Background(), port, 300))

	assert.Equal(t, []string{"lock", "add 0/0/4 300 tagged=false", "commit+unlock"}, b.calls)
	assert.Equal(t, 300, m.GetVLANByUntaggedPort(port))
	assert.False(t, m.HasPortInVLAN(port, types.VLANDefault))
}

func TestManagerUntaggedRemovalFailureAborts(t *testing.T) {
	m, b := newTestManager(t, nil)
	port := model.NewPort(0, 0, 7)
	ctx := context.Background()

	require.NoError(t, m.MovePortToVLANAsUntagged(ctx, port, 200))
	b.calls = nil
	b.stepErr["remove 0/0/7 200 tagged=false"] = types.Errorf(types.KindReplyFailure, "load", "statement not found")

	err := m.MovePortToVLANAsUntagged(ctx, port, 300)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrReplyFailure)
	assert.Equal(t, []string{"lock", "remove 0/0/7 200 tagged=false", "unlock"}, b.calls)
	assert.Equal(t, 200, m.GetVLANByUntaggedPort(port), "membership unchanged after failure")
	assert.True(t, m.IsVLANEmpty(300))
}

func TestManagerGuards(t *testing.T) {
	control := model.NewPort(0, 0, 1)
	ctx := context.Background()

	tests := []struct {
		name string
		call func(m *Manager) error
	}{
		{"tagged add on control port", func(m *Manager) error { return m.MovePortToVLANAsTagged(ctx, control, 100) }},
		{"untagged add on control port", func(m *Manager) error { return m.MovePortToVLANAsUntagged(ctx, control, 100) }},
		{"remove control port", func(m *Manager) error { return m.RemovePortFromVLAN(ctx, control, 100) }},
		{"tagged add to VLAN 0", func(m *Manager) error { return m.MovePortToVLANAsTagged(ctx, model.NewPort(0, 0, 5), 0) }},
		{"untagged add to VLAN 0", func(m *Manager) error { return m.MovePortToVLANAsUntagged(ctx, model.NewPort(0, 0, 5), 0) }},
		{"create VLAN 0", func(m *Manager) error { return m.CreateVLAN(ctx, 0) }},
		{"create VLAN above range", func(m *Manager) error { return m.CreateVLAN(ctx, 4095) }},
		{"remove default VLAN", func(m *Manager) error { return m.RemoveVLAN(ctx, 1) }},
		{"port without a bit", func(m *Manager) error { return m.MovePortToVLANAsTagged(ctx, model.NewPort(0, 0, 200), 100) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, b := newTestManager(t, &control)
			err := tt.call(m)
			require.Error(t, err)
			assert.True(t, IsPrecondition(err))
			assert.Empty(t, b.calls, "no device I/O may happen")
			locks, _ := m.Tracker().Counts()
			assert.Zero(t, locks)
		})
	}
}

func TestManagerCreateRemoveVLAN(t *testing.T) {
	m, b := newTestManager(t, nil)
	ctx := context.Background()
	port := model.NewPort(0, 0, 3)

	require.NoError(t, m.CreateVLAN(ctx, 100))
	assert.True(t, m.IsVLANEmpty(100))
	require.NoError(t, m.MovePortToVLANAsTagged(ctx, port, 100))
	require.NoError(t, m.RemovePortFromVLAN(ctx, port, 100))
	assert.True(t, m.IsVLANEmpty(100))
	require.NoError(t, m.RemoveVLAN(ctx, 100))

	_, ok := m.Members().All.Lookup(100)
	assert.False(t, ok)
	assert.Equal(t, []string{
		"lock", "create 100", "commit+unlock",
		"lock", "add 0/0/3 100 tagged=true", "commit+unlock",
		"lock", "remove 0/0/3 100 tagged=true", "commit+unlock",
		"lock", "destroy 100", "commit+unlock",
	}, b.calls)

	locks, releases := m.Tracker().Counts()
	assert.Equal(t, 4, locks)
	assert.Equal(t, 4, releases)
}

func TestManagerRemoveUntaggedMember(t *testing.T) {
	m, b := newTestManager(t, nil)
	ctx := context.Background()
	port := model.NewPort(0, 0, 9)

	require.NoError(t, m.MovePortToVLANAsUntagged(ctx, port, 150))
	b.calls = nil
	require.NoError(t, m.RemovePortFromVLAN(ctx, port, 150))
	assert.Equal(t, []string{"lock", "remove 0/0/9 150 tagged=false", "commit+unlock"}, b.calls)
	assert.Equal(t, types.VLANNone, m.GetVLANByUntaggedPort(port))
}

func TestManagerCommitFailureLeavesMapsUntouched(t *testing.T) {
	m, b := newTestManager(t, nil)
	b.commitErr = types.Errorf(types.KindReplyFailure, "commit", "commit failed")
	port := model.NewPort(0, 0, 5)

	err := m.MovePortToVLANAsTagged(context.Background(), port, 100)
	require.Error(t, err)
	assert.False(t, m.HasPortInVLAN(port, 100))
	assert.True(t, m.IsVLANEmpty(100))
	locks, releases := m.Tracker().Counts()
	assert.Equal(t, locks, releases)
}

func TestManagerBandwidthHooksFail(t *testing.T) {
	m, b := newTestManager(t, nil)
	req := types.BandwidthRequest{Port: model.NewPort(0, 0, 5), VLAN: 100, Committed: 100, BurstSize: 64}

	err := m.PoliceInputBandwidth(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrUnsupported)
	err = m.LimitOutputBandwidth(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrUnsupported)
	assert.Empty(t, b.calls)
}

func TestGetPortListByVLANZero(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.GetPortListByVLAN(0)
	assert.True(t, IsPrecondition(err))

	ports, err := m.GetPortListByVLAN(42)
	require.NoError(t, err)
	assert.Empty(t, ports)
}

func TestManagerListVLANs(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.MovePortToVLANAsTagged(ctx, model.NewPort(0, 0, 3), 100))
	require.NoError(t, m.MovePortToVLANAsUntagged(ctx, model.NewPort(0, 0, 9), 100))
	require.NoError(t, m.MovePortToVLANAsTagged(ctx, model.NewPort(0, 0, 4), 20))

	vlans, err := m.ListVLANs()
	require.NoError(t, err)
	require.Len(t, vlans, 2)

	assert.Equal(t, 20, vlans[0].ID)
	assert.Equal(t, []model.Port{model.NewPort(0, 0, 4)}, vlans[0].Ports)
	assert.Empty(t, vlans[0].Untagged)

	assert.Equal(t, 100, vlans[1].ID)
	assert.Equal(t, []model.Port{model.NewPort(0, 0, 3), model.NewPort(0, 0, 9)}, vlans[1].Ports)
	assert.Equal(t, []model.Port{model.NewPort(0, 0, 9)}, vlans[1].Untagged)
	assert.Equal(t, []model.Port{model.NewPort(0, 0, 3)}, vlans[1].Tagged())
}

// unitBlindMapper maps m/s/p to bit p whatever the module
type unitBlindMapper struct{ linearMapper }

func (u unitBlindMapper) PortToBit(p model.Port) (uint, error) {
	return u.linearMapper.PortToBit(model.NewPort(0, p.Slot(), p.Number()))
}

func TestManagerControlPortByBit(t *testing.T) {
	control := model.NewPort(0, 0, 24)
	cfg := &types.SwitchConfig{Name: "sw1", Vendor: types.VendorMock, ControlPort: &control}
	cfg.ApplyDefaults()
	b := &fakeBackend{stepErr: map[string]error{}}
	m := NewManager(b, unitBlindMapper{linearMapper{size: 48}}, cfg)

	err := m.MovePortToVLANAsTagged(context.Background(), model.NewPort(1, 0, 24), 100)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Empty(t, b.calls)
}
