package types

import (
	"context"
	"time"

	"github.com/nanoncore/nano-switchctrl/model"
	"go.uber.org/zap"
)

// Vendor represents the switch vendor
type Vendor string

const (
	VendorJuniper Vendor = "juniper"
	VendorDell    Vendor = "dell"
	VendorMock    Vendor = "mock" // For testing/simulation
)

// Model identifies a switch model within a vendor family
type Model string

const (
	ModelJuniperEX3200    Model = "ex3200"
	ModelPowerConnect6024 Model = "powerconnect-6024"
	ModelPowerConnect6224 Model = "powerconnect-6224"
	ModelPowerConnect6248 Model = "powerconnect-6248"
	ModelPowerConnect8024 Model = "powerconnect-8024"
)

// TransportKind selects how the remote shell is reached
type TransportKind string

const (
	TransportTelnet    TransportKind = "telnet"
	TransportSSH       TransportKind = "ssh"        // local ssh executable
	TransportSSHNative TransportKind = "ssh-native" // in-process golang.org/x/crypto/ssh
	TransportTL1Telnet TransportKind = "tl1-telnet"
)

// Default ports and executables for spawned transports
const (
	DefaultTelnetPort    = 23
	DefaultSSHPort       = 22
	DefaultTL1TelnetPort = 10201
	DefaultSNMPPort      = 161

	DefaultTelnetExec = "/usr/bin/telnet"
	DefaultSSHExec    = "/usr/bin/ssh"
)

// VLAN numbering reserved by every vendor
const (
	VLANNone    = 0
	VLANDefault = 1
	VLANMax     = 4094
)

// Timeouts groups the per-call deadlines used against a switch
type Timeouts struct {
	// Login bounds the whole authentication dialogue
	Login time.Duration

	// Write bounds a single command write (and its echo)
	Write time.Duration

	// Read bounds a single read-until-pattern call
	Read time.Duration

	// Poll is the liveness re-check and drain interval
	Poll time.Duration
}

// DefaultTimeouts returns the deadlines used when a config leaves them unset
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Login: 30 * time.Second,
		Write: 5 * time.Second,
		Read:  10 * time.Second,
		Poll:  1 * time.Second,
	}
}

// SwitchConfig contains configuration for a managed switch
type SwitchConfig struct {
	// Name is a unique identifier for this switch
	Name string `mapstructure:"name"`

	// Vendor is the switch vendor
	Vendor Vendor `mapstructure:"vendor"`

	// Model selects the vendor-specific port numbering
	Model Model `mapstructure:"model"`

	// Address is the management IP/hostname
	Address string `mapstructure:"address"`

	// Port is the management port (if not default for the transport)
	Port int `mapstructure:"port"`

	// Transport selects telnet, ssh or TL1-over-telnet
	Transport TransportKind `mapstructure:"transport"`

	// Executable overrides the telnet/ssh client binary
	Executable string `mapstructure:"executable"`

	// Username for authentication
	Username string `mapstructure:"username"`

	// Password for authentication
	Password string `mapstructure:"password"`

	// ControlPort is the unified port carrying the daemon's own control channel.
	// Nil means the switch has no designated control port.
	ControlPort *model.Port `mapstructure:"control_port"`

	// MinVLAN and MaxVLAN bound the VLAN IDs this daemon may provision
	MinVLAN int `mapstructure:"min_vlan"`
	MaxVLAN int `mapstructure:"max_vlan"`

	// SNMPCommunity and SNMPVersion drive the ID-resolution walks
	SNMPCommunity string `mapstructure:"snmp_community"`
	SNMPVersion   string `mapstructure:"snmp_version"`
	SNMPPort      int    `mapstructure:"snmp_port"`

	// Timeouts for device I/O
	Timeouts Timeouts `mapstructure:"timeouts"`

	// Debug routes raw session I/O to the logger
	Debug bool `mapstructure:"debug"`

	// Metadata contains vendor-specific configuration
	Metadata map[string]string `mapstructure:"metadata"`

	// Logger receives structured session and transaction logs
	Logger *zap.Logger `mapstructure:"-"`
}

// ApplyDefaults fills unset fields with transport and VLAN defaults
func (c *SwitchConfig) ApplyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportTelnet
	}
	if c.Port == 0 {
		switch c.Transport {
		case TransportSSH, TransportSSHNative:
			c.Port = DefaultSSHPort
		case TransportTL1Telnet:
			c.Port = DefaultTL1TelnetPort
		default:
			c.Port = DefaultTelnetPort
		}
	}
	if c.Executable == "" {
		switch c.Transport {
		case TransportSSH:
			c.Executable = DefaultSSHExec
		case TransportTelnet, TransportTL1Telnet:
			c.Executable = DefaultTelnetExec
		}
	}
	if c.MinVLAN == 0 {
		c.MinVLAN = VLANDefault + 1
	}
	if c.MaxVLAN == 0 {
		c.MaxVLAN = VLANMax
	}
	if c.SNMPCommunity == "" {
		c.SNMPCommunity = "public"
	}
	if c.SNMPVersion == "" {
		c.SNMPVersion = "2c"
	}
	if c.SNMPPort == 0 {
		c.SNMPPort = DefaultSNMPPort
	}
	def := DefaultTimeouts()
	if c.Timeouts.Login == 0 {
		c.Timeouts.Login = def.Login
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = def.Write
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = def.Read
	}
	if c.Timeouts.Poll == 0 {
		c.Timeouts.Poll = def.Poll
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Driver is the interface that all protocol drivers must implement
type Driver interface {
	// Connect establishes a connection to the switch
	Connect(ctx context.Context, config *SwitchConfig) error

	// Disconnect closes the connection. Calling it on a closed driver is a no-op.
	Disconnect(ctx context.Context) error

	// IsConnected returns true if connected
	IsConnected() bool
}

// CLIExecutor is an optional interface for drivers that support CLI execution
// Vendor adapters can use this to send vendor-specific commands
type CLIExecutor interface {
	// ExecCommand executes a CLI command and returns the output
	ExecCommand(ctx context.Context, command string) (string, error)

	// ExecCommands executes multiple CLI commands sequentially
	ExecCommands(ctx context.Context, commands []string) ([]string, error)
}

// SNMPExecutor is an optional interface for drivers that support SNMP queries
type SNMPExecutor interface {
	// GetSNMP retrieves a single SNMP value by OID
	GetSNMP(ctx context.Context, oid string) (interface{}, error)

	// WalkSNMP performs a get-next walk on an OID subtree.
	// Keys are the OID suffix below the root.
	WalkSNMP(ctx context.Context, oid string) (map[string]interface{}, error)
}

// BandwidthRequest carries the parameters of a policing hook call
type BandwidthRequest struct {
	Port      model.Port
	VLAN      int
	Committed float64 // Mbit/s
	BurstSize int     // KB
}

// SwitchSession is the operation set offered to the signaling layer.
// One implementation exists per supported vendor family.
type SwitchSession interface {
	Driver

	// Name returns the configured switch name
	Name() string

	// Refresh keeps the session alive, reconnecting when the shell has died
	Refresh(ctx context.Context) error

	CreateVLAN(ctx context.Context, vlanID int) error
	RemoveVLAN(ctx context.Context, vlanID int) error
	MovePortToVLANAsTagged(ctx context.Context, port model.Port, vlanID int) error
	MovePortToVLANAsUntagged(ctx context.Context, port model.Port, vlanID int) error
	RemovePortFromVLAN(ctx context.Context, port model.Port, vlanID int) error

	// GetPortListByVLAN returns the member ports of a VLAN as last provisioned
	GetPortListByVLAN(vlanID int) ([]model.Port, error)

	// IsVLANEmpty reports whether a VLAN has no member ports left
	IsVLANEmpty(vlanID int) bool

	// KnowsVLAN reports whether the session created or populated a VLAN
	KnowsVLAN(vlanID int) bool

	// Bandwidth policing hooks. Unimplemented vendors return ErrUnsupported.
	PoliceInputBandwidth(ctx context.Context, req BandwidthRequest) error
	LimitOutputBandwidth(ctx context.Context, req BandwidthRequest) error
}

// RefTableBuilder is implemented by sessions that resolve interface indices via SNMP
type RefTableBuilder interface {
	RebuildRefTables(ctx context.Context) error
}
