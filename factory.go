package switchctrl

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nanoncore/nano-switchctrl/drivers/cli"
	"github.com/nanoncore/nano-switchctrl/drivers/mock"
	"github.com/nanoncore/nano-switchctrl/drivers/snmp"
	"github.com/nanoncore/nano-switchctrl/vendors/common"
	"github.com/nanoncore/nano-switchctrl/vendors/dell"
	"github.com/nanoncore/nano-switchctrl/vendors/juniper"
)

// Protocol names the wire protocol a vendor is driven with
type Protocol string

const (
	ProtocolJUNOScript Protocol = "junoscript"
	ProtocolCLI        Protocol = "cli"
	ProtocolSNMP       Protocol = "snmp"
)

// MetaMockDialect selects the simulated switch software of the mock vendor:
// "junoscript" (default) or "dell".
const MetaMockDialect = "mock_dialect"

// CapabilityMatrix defines what each vendor supports
var CapabilityMatrix = map[Vendor]VendorCapabilities{
	VendorJuniper: {
		ConfigMethod:     ProtocolJUNOScript,
		ResolutionMethod: ProtocolSNMP,
		Models:           []Model{ModelJuniperEX3200},
		Transports:       []TransportKind{TransportTelnet, TransportSSH, TransportSSHNative},
	},
	VendorDell: {
		ConfigMethod: ProtocolCLI,
		Models: []Model{
			ModelPowerConnect6024,
			ModelPowerConnect6224,
			ModelPowerConnect6248,
			ModelPowerConnect8024,
		},
		Transports: []TransportKind{TransportTelnet, TransportSSH, TransportSSHNative, TransportTL1Telnet},
	},
	VendorMock: {
		ConfigMethod: ProtocolJUNOScript,
	},
}

// VendorCapabilities defines the protocols, models and transports of a vendor
type VendorCapabilities struct {
	// ConfigMethod is the protocol provisioning requests are sent with
	ConfigMethod Protocol

	// ResolutionMethod resolves interface indices; empty when unsupported
	ResolutionMethod Protocol

	// Models lists the supported models. The first one is the default.
	Models []Model

	// Transports lists the ways the remote shell can be reached
	Transports []TransportKind
}

// SupportsModel reports whether m is a known model; the empty model selects the default
func (c VendorCapabilities) SupportsModel(m Model) bool {
	if m == "" || len(c.Models) == 0 {
		return true
	}
	for _, known := range c.Models {
		if known == m {
			return true
		}
	}
	return false
}

// SupportsTransport reports whether t can reach the vendor's shell
func (c VendorCapabilities) SupportsTransport(t TransportKind) bool {
	if len(c.Transports) == 0 {
		return true
	}
	for _, known := range c.Transports {
		if known == t {
			return true
		}
	}
	return false
}

type sessionOptions struct {
	cliOpts []cli.Option
	snmp    SNMPExecutor
}

// SessionOption customizes NewSession
type SessionOption func(*sessionOptions)

// WithCLIOptions passes options to the underlying CLI driver
func WithCLIOptions(opts ...cli.Option) SessionOption {
	return func(o *sessionOptions) { o.cliOpts = append(o.cliOpts, opts...) }
}

// WithSNMPExecutor replaces the SNMP driver used for reference-table walks
func WithSNMPExecutor(s SNMPExecutor) SessionOption {
	return func(o *sessionOptions) { o.snmp = s }
}

// NewSession creates the switch session for the configured vendor. The
// session is not connected.
func NewSession(config *SwitchConfig, opts ...SessionOption) (SwitchSession, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	caps, ok := CapabilityMatrix[config.Vendor]
	if !ok {
		return nil, fmt.Errorf("unsupported vendor: %q", config.Vendor)
	}
	config.ApplyDefaults()
	if !caps.SupportsModel(config.Model) {
		return nil, fmt.Errorf("vendor %s does not support model %s", config.Vendor, config.Model)
	}
	if !caps.SupportsTransport(config.Transport) {
		return nil, fmt.Errorf("vendor %s does not support transport %s", config.Vendor, config.Transport)
	}

	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	if custom, ok := common.GetMetadataString(config.Metadata, common.MetaPrompt); ok && custom != "" {
		re, err := regexp.Compile(custom)
		if err != nil {
			return nil, fmt.Errorf("invalid prompt pattern %q: %w", custom, err)
		}
		o.cliOpts = append([]cli.Option{cli.WithPrompt(re)}, o.cliOpts...)
	}

	if config.Vendor == VendorMock {
		return newMockSession(config, o)
	}

	baseDriver, err := cli.NewDriver(config, o.cliOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CLI driver: %w", err)
	}

	switch config.Vendor {
	case VendorJuniper:
		s, err := snmpFor(config, caps, o)
		if err != nil {
			return nil, err
		}
		var jopts []juniper.Option
		if s != nil {
			jopts = append(jopts, juniper.WithSNMP(s))
		}
		return juniper.NewAdapter(baseDriver, config, jopts...), nil
	case VendorDell:
		a, err := dell.NewAdapter(baseDriver, config)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("vendor adapter not implemented: %s", config.Vendor)
	}
}

// snmpFor returns the executor for reference-table walks, or nil when the
// vendor or the switch configuration does not use one
func snmpFor(config *SwitchConfig, caps VendorCapabilities, o sessionOptions) (SNMPExecutor, error) {
	if caps.ResolutionMethod != ProtocolSNMP {
		return nil, nil
	}
	if o.snmp != nil {
		return o.snmp, nil
	}
	if config.Address == "" || !common.GetMetadataBoolWithDefault(config.Metadata, true, common.MetaEnableSNMP) {
		return nil, nil
	}
	d, err := snmp.NewDriver(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNMP driver: %w", err)
	}
	return d, nil
}

// newMockSession attaches a vendor adapter to a simulated switch
func newMockSession(config *SwitchConfig, o sessionOptions) (SwitchSession, error) {
	dialect := mock.DialectJUNOScript
	if name, _ := common.GetMetadataString(config.Metadata, MetaMockDialect); strings.EqualFold(name, "dell") {
		dialect = mock.DialectDellCLI
	}
	dev := mock.NewDevice(mock.DeviceConfig{
		Dialect:  dialect,
		Hostname: config.Name,
		Username: config.Username,
		Password: config.Password,
		Echo:     dialect == mock.DialectDellCLI,
	})

	cliOpts := append([]cli.Option{
		cli.WithSpawner(cli.PipeSpawner(dev.Stdin(), dev.Stdout(), dev.Wait, dev.Close, dev.Alive)),
	}, o.cliOpts...)
	baseDriver, err := cli.NewDriver(config, cliOpts...)
	if err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("failed to create CLI driver: %w", err)
	}

	if dialect == mock.DialectDellCLI {
		a, err := dell.NewAdapter(baseDriver, config)
		if err != nil {
			_ = dev.Close()
			return nil, err
		}
		return a, nil
	}
	var jopts []juniper.Option
	if o.snmp != nil {
		jopts = append(jopts, juniper.WithSNMP(o.snmp))
	}
	return juniper.NewAdapter(baseDriver, config, jopts...), nil
}

// GetSupportedVendors returns a sorted list of all supported vendors
func GetSupportedVendors() []Vendor {
	vendors := make([]Vendor, 0, len(CapabilityMatrix))
	for v := range CapabilityMatrix {
		vendors = append(vendors, v)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i] < vendors[j] })
	return vendors
}

// GetVendorCapabilities returns the capabilities for a vendor
func GetVendorCapabilities(vendor Vendor) (VendorCapabilities, bool) {
	caps, ok := CapabilityMatrix[vendor]
	return caps, ok
}
