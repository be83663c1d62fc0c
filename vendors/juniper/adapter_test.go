package juniper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nanoncore/nano-switchctrl/drivers/cli"
	"github.com/nanoncore/nano-switchctrl/drivers/mock"
	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/nanoncore/nano-switchctrl/vendors/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, opts ...Option) (*Adapter, *mock.Device) {
	t.Helper()
	return newTestAdapterOn(t, mock.DeviceConfig{}, opts...)
}

// newTestAdapterOn connects an adapter to a simulated EX3200; devCfg adds
// device behaviour on top of the default login
func newTestAdapterOn(t *testing.T, devCfg mock.DeviceConfig, opts ...Option) (*Adapter, *mock.Device) {
	t.Helper()
	devCfg.Dialect = mock.DialectJUNOScript
	devCfg.Hostname = "ex3200"
	devCfg.Username = "vlsr"
	devCfg.Password = "secret"
	dev := mock.NewDevice(devCfg)
	t.Cleanup(func() { _ = dev.Close() })

	control := model.NewPort(0, 0, 47)
	cfg := &types.SwitchConfig{
		Name:        "ex3200-1",
		Vendor:      types.VendorJuniper,
		Model:       types.ModelJuniperEX3200,
		Username:    "vlsr",
		Password:    "secret",
		ControlPort: &control,
		Timeouts: types.Timeouts{
			Login: 3 * time.Second,
			Write: time.Second,
			Read:  2 * time.Second,
			Poll:  50 * time.Millisecond,
		},
	}
	driver, err := cli.NewDriver(cfg, cli.WithSpawner(cli.PipeSpawner(dev.Stdin(), dev.Stdout(), dev.Wait, dev.Close, dev.Alive)))
	require.NoError(t, err)

	a := NewAdapter(driver, cfg, opts...)
	require.NoError(t, a.Connect(context.Background(), nil))
	t.Cleanup(func() { _ = a.Disconnect(context.Background()) })
	return a, dev
}

func TestEndToEndMovePortAsTagged(t *testing.T) {
	a, dev := newTestAdapter(t)
	require.True(t, a.IsConnected())

	port := model.NewPort(0, 0, 5)
	require.NoError(t, a.MovePortToVLANAsTagged(context.Background(), port, 100))

	assert.Equal(t, []string{"lock", "load", "commit", "unlock"}, dev.History())

	bit, err := EX3200Ports{}.PortToBit(port)
	require.NoError(t, err)
	pm, ok := a.Members().All.Lookup(100)
	require.True(t, ok)
	assert.True(t, pm.Test(bit))
	assert.False(t, a.IsVLANEmpty(100))

	ports, err := a.GetPortListByVLAN(100)
	require.NoError(t, err)
	assert.Equal(t, []model.Port{port}, ports)

	reqs := dev.Requests()
	require.Len(t, reqs, 4)
	assert.Contains(t, reqs[1], "<name>ge-0/0/5</name>")
	assert.Contains(t, reqs[1], "<port-mode>trunk</port-mode>")
	assert.Contains(t, reqs[1], "<members>dynamic_vlan_100</members>")
}

func TestEndToEndWithEchoingSession(t *testing.T) {
	a, dev := newTestAdapterOn(t, mock.DeviceConfig{Echo: true})
	ctx := context.Background()
	port := model.NewPort(0, 0, 5)

	require.NoError(t, a.MovePortToVLANAsTagged(ctx, port, 100))
	assert.Equal(t, []string{"lock", "load", "commit", "unlock"}, dev.History())
	assert.True(t, a.HasPortInVLAN(port, 100))

	dev.FailOn("load", "statement not found")
	err := a.MovePortToVLANAsTagged(ctx, model.NewPort(0, 0, 6), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrReplyFailure)
	assert.Contains(t, types.Diagnostic(err), "statement not found")
	assert.False(t, a.HasPortInVLAN(model.NewPort(0, 0, 6), 100))
}

func TestLoadRejectedUnlocksWithoutCommit(t *testing.T) {
	a, dev := newTestAdapter(t)
	dev.FailOn("load", "statement not found")

	err := a.MovePortToVLANAsTagged(context.Background(), model.NewPort(0, 0, 5), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrReplyFailure)
	assert.Contains(t, types.Diagnostic(err), "statement not found")

	assert.Equal(t, []string{"lock", "load", "unlock"}, dev.History())
	assert.True(t, a.IsVLANEmpty(100))
	assert.True(t, a.IsConnected(), "a rejected request keeps the session")
}

func TestCommitRejectedStillUnlocks(t *testing.T) {
	a, dev := newTestAdapter(t)
	dev.FailOn("commit", "commit check failed")

	err := a.CreateVLAN(context.Background(), 300)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrReplyFailure)
	assert.Equal(t, []string{"lock", "load", "commit", "unlock"}, dev.History())

	locks, releases := a.Tracker().Counts()
	assert.Equal(t, locks, releases)
}

func TestLockRejectedSkipsMutation(t *testing.T) {
	a, dev := newTestAdapter(t)
	dev.FailOn("lock", "configuration database locked by: root")

	err := a.MovePortToVLANAsUntagged(context.Background(), model.NewPort(0, 0, 9), 100)
	require.Error(t, err)
	assert.Equal(t, []string{"lock"}, dev.History())
}

func TestSessionClosedMidTransactionIsMalformed(t *testing.T) {
	a, dev := newTestAdapter(t)
	dev.CloseOn("load")

	err := a.MovePortToVLANAsTagged(context.Background(), model.NewPort(0, 0, 5), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProtocol)
	assert.Equal(t, DiagCouldNotLoad, types.Diagnostic(err))
	assert.True(t, a.IsVLANEmpty(100))
}

func TestControlPortNeverReachesSwitch(t *testing.T) {
	a, dev := newTestAdapter(t)

	err := a.MovePortToVLANAsTagged(context.Background(), model.NewPort(0, 0, 47), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPrecondition)
	assert.Empty(t, dev.History())
}

func TestUntaggedMoveBetweenVLANs(t *testing.T) {
	a, dev := newTestAdapter(t)
	ctx := context.Background()
	port := model.NewPort(0, 0, 12)

	require.NoError(t, a.MovePortToVLANAsUntagged(ctx, port, 100))
	require.NoError(t, a.MovePortToVLANAsUntagged(ctx, port, 200))

	assert.Equal(t, []string{
		"lock", "load", "commit", "unlock",
		"lock", "load", "commit", "unlock",
		"lock", "load", "commit", "unlock",
	}, dev.History())
	reqs := dev.Requests()
	assert.Contains(t, reqs[5], `<members delete="delete">dynamic_vlan_100</members>`)
	assert.Contains(t, reqs[9], "<port-mode>access</port-mode>")
	assert.Equal(t, 200, a.GetVLANByUntaggedPort(port))
	assert.True(t, a.IsVLANEmpty(100))
}

func TestDisconnectClosesScriptSession(t *testing.T) {
	a, dev := newTestAdapter(t)

	require.NoError(t, a.Disconnect(context.Background()))
	assert.False(t, a.IsConnected())
	assert.Equal(t, []string{"close"}, dev.History())

	err := a.CreateVLAN(context.Background(), 100)
	assert.ErrorIs(t, err, types.ErrNotConnected)
}

func TestBandwidthHooksUnsupported(t *testing.T) {
	a, _ := newTestAdapter(t)
	req := types.BandwidthRequest{Port: model.NewPort(0, 0, 5), VLAN: 100, Committed: 50, BurstSize: 128}

	assert.ErrorIs(t, a.PoliceInputBandwidth(context.Background(), req), types.ErrUnsupported)
	assert.ErrorIs(t, a.LimitOutputBandwidth(context.Background(), req), types.ErrUnsupported)
}

// fakeSNMP serves canned walks
type fakeSNMP struct {
	walks map[string]map[string]interface{}
}

func (f *fakeSNMP) GetSNMP(ctx context.Context, oid string) (interface{}, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSNMP) WalkSNMP(ctx context.Context, oid string) (map[string]interface{}, error) {
	return f.walks[oid], nil
}

func TestRebuildRefTables(t *testing.T) {
	snmp := &fakeSNMP{walks: map[string]map[string]interface{}{
		common.OIDIfDescr: {
			"501": "ge-0/0/0",
			"502": "ge-0/0/0.0",
			"503": "ge-0/0/1",
		},
		common.OIDDot1qVlanStaticName: {
			"2": "default",
			"5": "dynamic_vlan_100",
		},
	}}
	a, _ := newTestAdapter(t, WithSNMP(snmp))

	require.NoError(t, a.RebuildRefTables(context.Background()))
	assert.Equal(t, 2, a.PortRefs().Len())
	assert.Equal(t, 2, a.VLANRefs().Len())

	vlan, ok := a.VLANRefs().VLANByRef(5)
	require.True(t, ok)
	assert.Equal(t, 100, vlan)
}

func TestRebuildRefTablesWithoutSNMP(t *testing.T) {
	a, _ := newTestAdapter(t)
	err := a.RebuildRefTables(context.Background())
	assert.ErrorIs(t, err, types.ErrPrecondition)
}
