// Package switchctrl selects and owns the switch sessions of a provisioning
// daemon. Vendor drivers live under vendors/, the shared transport under
// drivers/cli.
package switchctrl

// Re-export types from the types sub-package so callers only import the root

import (
	"github.com/nanoncore/nano-switchctrl/types"
)

// Type aliases for the types sub-package
type (
	Vendor           = types.Vendor
	Model            = types.Model
	TransportKind    = types.TransportKind
	SwitchConfig     = types.SwitchConfig
	Timeouts         = types.Timeouts
	Driver           = types.Driver
	SNMPExecutor     = types.SNMPExecutor
	SwitchSession    = types.SwitchSession
	RefTableBuilder  = types.RefTableBuilder
	BandwidthRequest = types.BandwidthRequest
	Error            = types.Error
	ErrorKind        = types.ErrorKind
)

// Re-export constants
const (
	VendorJuniper = types.VendorJuniper
	VendorDell    = types.VendorDell
	VendorMock    = types.VendorMock

	ModelJuniperEX3200    = types.ModelJuniperEX3200
	ModelPowerConnect6024 = types.ModelPowerConnect6024
	ModelPowerConnect6224 = types.ModelPowerConnect6224
	ModelPowerConnect6248 = types.ModelPowerConnect6248
	ModelPowerConnect8024 = types.ModelPowerConnect8024

	TransportTelnet    = types.TransportTelnet
	TransportSSH       = types.TransportSSH
	TransportSSHNative = types.TransportSSHNative
	TransportTL1Telnet = types.TransportTL1Telnet
)
