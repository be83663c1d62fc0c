//go:build integration
// +build integration

package dell

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/nanoncore/nano-switchctrl/drivers/cli"
	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// TestProvision_Integration runs a full provisioning cycle against a real PowerConnect.
// Run with: SWITCH_HOST=... go test -tags=integration -v ./vendors/dell/... -run Integration
func TestProvision_Integration(t *testing.T) {
	host := os.Getenv("SWITCH_HOST")
	if host == "" {
		t.Skip("SWITCH_HOST not set")
	}
	vlan, _ := strconv.Atoi(envOr("SWITCH_TEST_VLAN", "3999"))
	port, err := model.ParsePort(envOr("SWITCH_TEST_PORT", "1/0/20"))
	if err != nil {
		t.Fatalf("SWITCH_TEST_PORT: %v", err)
	}

	config := &types.SwitchConfig{
		Name:      "it-powerconnect",
		Vendor:    types.VendorDell,
		Model:     types.Model(envOr("SWITCH_MODEL", string(types.ModelPowerConnect6224))),
		Address:   host,
		Transport: types.TransportKind(envOr("SWITCH_TRANSPORT", string(types.TransportTelnet))),
		Username:  envOr("SWITCH_USER", "admin"),
		Password:  os.Getenv("SWITCH_PASSWORD"),
		Timeouts:  types.Timeouts{Login: 30 * time.Second},
		Metadata: map[string]string{
			MetaEnablePassword: os.Getenv("SWITCH_ENABLE_PASSWORD"),
		},
	}

	baseDriver, err := cli.NewDriver(config)
	if err != nil {
		t.Fatalf("failed to create base driver: %v", err)
	}
	a, err := NewAdapter(baseDriver, config)
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	ctx := context.Background()

	if err := a.Connect(ctx, config); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer a.Disconnect(ctx)

	t.Run("untagged_roundtrip", func(t *testing.T) {
		if err := a.CreateVLAN(ctx, vlan); err != nil {
			t.Fatalf("CreateVLAN failed: %v", err)
		}
		if err := a.MovePortToVLANAsUntagged(ctx, port, vlan); err != nil {
			t.Fatalf("MovePortToVLANAsUntagged failed: %v", err)
		}
		if got := a.GetVLANByUntaggedPort(port); got != vlan {
			t.Errorf("untagged VLAN of %s = %d, want %d", port, got, vlan)
		}
		if err := a.RemovePortFromVLAN(ctx, port, vlan); err != nil {
			t.Fatalf("RemovePortFromVLAN failed: %v", err)
		}
		if err := a.RemoveVLAN(ctx, vlan); err != nil {
			t.Fatalf("RemoveVLAN failed: %v", err)
		}
	})

	t.Run("unknown_vlan_is_translated", func(t *testing.T) {
		err := a.RemoveVLAN(ctx, 4093)
		if err == nil {
			t.Skip("VLAN 4093 exists on this switch")
		}
		t.Logf("code=%s suggestion=%s", GetErrorCode(err), GetSuggestedAction(err))
	})

	if err := a.Refresh(ctx); err != nil {
		t.Errorf("Refresh failed: %v", err)
	}
}
