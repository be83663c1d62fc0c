package switchctrl

import (
	"context"
	"testing"

	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/nanoncore/nano-switchctrl/vendors/dell"
	"github.com/nanoncore/nano-switchctrl/vendors/juniper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionRejects(t *testing.T) {
	tests := []struct {
		name   string
		config *SwitchConfig
	}{
		{"nil config", nil},
		{"unknown vendor", &SwitchConfig{Name: "x", Vendor: "cisco", Address: "192.0.2.1"}},
		{"unknown model", &SwitchConfig{Name: "x", Vendor: VendorDell, Model: "powerconnect-2724", Address: "192.0.2.1"}},
		{"unsupported transport", &SwitchConfig{Name: "x", Vendor: VendorJuniper, Transport: TransportTL1Telnet, Address: "192.0.2.1"}},
		{"bad prompt", &SwitchConfig{Name: "x", Vendor: VendorDell, Address: "192.0.2.1",
			Metadata: map[string]string{"prompt": "(unclosed"}}},
		{"no address", &SwitchConfig{Name: "x", Vendor: VendorDell}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestNewSessionSelectsAdapter(t *testing.T) {
	s, err := NewSession(&SwitchConfig{Name: "ex", Vendor: VendorJuniper, Address: "192.0.2.1"})
	require.NoError(t, err)
	_, ok := s.(*juniper.Adapter)
	assert.True(t, ok, "juniper session is %T", s)
	_, ok = s.(RefTableBuilder)
	assert.True(t, ok)

	s, err = NewSession(&SwitchConfig{Name: "pc", Vendor: VendorDell, Model: ModelPowerConnect6248, Address: "192.0.2.2"})
	require.NoError(t, err)
	a, ok := s.(*dell.Adapter)
	require.True(t, ok, "dell session is %T", s)
	assert.Equal(t, 48, a.Ports().Gigabit)
}

func TestNewSessionWithoutSNMP(t *testing.T) {
	s, err := NewSession(&SwitchConfig{
		Name:     "ex",
		Vendor:   VendorJuniper,
		Address:  "192.0.2.1",
		Metadata: map[string]string{"snmp_enabled": "false"},
	})
	require.NoError(t, err)

	err = s.(RefTableBuilder).RebuildRefTables(context.Background())
	assert.ErrorIs(t, err, types.ErrPrecondition)
}

func TestMockSessionDialects(t *testing.T) {
	ctx := context.Background()

	s, err := NewSession(mockConfig("sim-ex"))
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx, nil))
	_, ok := s.(*juniper.Adapter)
	assert.True(t, ok)
	require.NoError(t, s.Disconnect(ctx))

	cfg := mockConfig("sim-pc")
	cfg.Metadata = map[string]string{MetaMockDialect: "dell"}
	s, err = NewSession(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx, nil))
	_, ok = s.(*dell.Adapter)
	assert.True(t, ok)
	require.NoError(t, s.Disconnect(ctx))
}

func TestGetSupportedVendors(t *testing.T) {
	assert.Equal(t, []Vendor{VendorDell, VendorJuniper, VendorMock}, GetSupportedVendors())

	caps, ok := GetVendorCapabilities(VendorDell)
	require.True(t, ok)
	assert.Equal(t, ProtocolCLI, caps.ConfigMethod)
	assert.True(t, caps.SupportsModel(""))
	assert.True(t, caps.SupportsTransport(TransportTL1Telnet))

	_, ok = GetVendorCapabilities("zte")
	assert.False(t, ok)
}
