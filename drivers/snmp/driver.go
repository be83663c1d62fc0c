// Package snmp is the management-information side channel of a switch
// session. It is used only to resolve the switch's interface indices into
// unified port and VLAN numbers.
package snmp

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
	"github.com/nanoncore/nano-switchctrl/types"
	"go.uber.org/zap"
)

// Driver implements types.Driver and types.SNMPExecutor using gosnmp
type Driver struct {
	config *types.SwitchConfig
	snmp   *gosnmp.GoSNMP
	logger *zap.Logger
}

// NewDriver creates a new SNMP driver
func NewDriver(config *types.SwitchConfig) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	config.ApplyDefaults()

	return &Driver{
		config: config,
		logger: config.Logger.Named("snmp"),
	}, nil
}

// Connect opens the SNMP client. The config argument, when non-nil, replaces
// the one given to NewDriver.
func (d *Driver) Connect(ctx context.Context, config *types.SwitchConfig) error {
	if config != nil {
		config.ApplyDefaults()
		d.config = config
	}

	version := gosnmp.Version2c
	switch d.config.SNMPVersion {
	case "1":
		version = gosnmp.Version1
	case "3":
		version = gosnmp.Version3
	}

	port := d.config.SNMPPort
	if port <= 0 || port > 65535 {
		port = types.DefaultSNMPPort
	}
	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    d.config.Address,
		Port:      uint16(port), //nolint:gosec // validated above
		Community: d.config.SNMPCommunity,
		Version:   version,
		Timeout:   d.config.Timeouts.Read,
		Retries:   3,
	}

	if version == gosnmp.Version3 {
		client.SecurityModel = gosnmp.UserSecurityModel
		client.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 d.config.Username,
			AuthenticationProtocol:   gosnmp.SHA,
			AuthenticationPassphrase: d.config.Password,
			PrivacyProtocol:          gosnmp.AES,
			PrivacyPassphrase:        d.config.Password,
		}
		client.MsgFlags = gosnmp.AuthPriv
	}

	if err := client.Connect(); err != nil {
		return types.NewError(types.KindTransport, "snmp-connect", "failed to open SNMP session", err)
	}
	d.snmp = client
	d.logger.Debug("SNMP session opened", zap.String("target", d.config.Address), zap.Int("port", port))
	return nil
}

// Disconnect closes the SNMP connection
func (d *Driver) Disconnect(ctx context.Context) error {
	if d.snmp == nil {
		return nil
	}
	var err error
	if d.snmp.Conn != nil {
		err = d.snmp.Conn.Close()
	}
	d.snmp = nil
	return err
}

// IsConnected returns true if connected
func (d *Driver) IsConnected() bool {
	return d.snmp != nil
}

// GetSNMP implements types.SNMPExecutor - retrieves a single SNMP value
func (d *Driver) GetSNMP(ctx context.Context, oid string) (interface{}, error) {
	if !d.IsConnected() {
		return nil, types.ErrNotConnected
	}

	result, err := d.snmp.Get([]string{oid})
	if err != nil {
		return nil, types.NewError(types.KindTransport, "snmp-get", "SNMP GET failed", err)
	}
	if len(result.Variables) == 0 {
		return nil, types.Errorf(types.KindProtocol, "snmp-get", "no result for OID %s", oid)
	}

	v := result.Variables[0]
	if skipped(v.Type) {
		return nil, types.Errorf(types.KindProtocol, "snmp-get", "OID %s: %s", oid, v.Type)
	}
	return convert(v), nil
}

// WalkSNMP implements types.SNMPExecutor with a get-next walk of the subtree
// rooted at oid. Keys are the OID suffix below the root, without a leading dot.
func (d *Driver) WalkSNMP(ctx context.Context, oid string) (map[string]interface{}, error) {
	if !d.IsConnected() {
		return nil, types.ErrNotConnected
	}

	root := "." + strings.TrimPrefix(oid, ".")
	results := make(map[string]interface{})

	err := d.snmp.Walk(root, func(pdu gosnmp.SnmpPDU) error {
		collect(root, pdu, results)
		return nil
	})
	if err != nil {
		return nil, types.NewError(types.KindTransport, "snmp-walk", "SNMP walk of "+oid+" failed", err)
	}

	d.logger.Debug("SNMP walk finished", zap.String("oid", oid), zap.Int("entries", len(results)))
	return results, nil
}

// collect stores pdu in out under its OID suffix below root. Markers and
// names outside the subtree are dropped.
func collect(root string, pdu gosnmp.SnmpPDU, out map[string]interface{}) {
	if skipped(pdu.Type) {
		return
	}
	root = "." + strings.TrimPrefix(root, ".")
	name := "." + strings.TrimPrefix(pdu.Name, ".")
	if !strings.HasPrefix(name, root+".") {
		return
	}
	out[name[len(root)+1:]] = convert(pdu)
}

// skipped reports the end-of-view and missing-object markers a walk stops on
func skipped(t gosnmp.Asn1BER) bool {
	return t == gosnmp.EndOfMibView || t == gosnmp.NoSuchObject || t == gosnmp.NoSuchInstance
}

func convert(pdu gosnmp.SnmpPDU) interface{} {
	switch pdu.Type {
	case gosnmp.OctetString:
		if b, ok := pdu.Value.([]byte); ok {
			return string(b)
		}
		return pdu.Value
	case gosnmp.Integer:
		if v, ok := pdu.Value.(int); ok {
			return int64(v)
		}
		return pdu.Value
	case gosnmp.Counter32, gosnmp.Gauge32:
		if v, ok := pdu.Value.(uint); ok {
			return uint64(v)
		}
		return pdu.Value
	default:
		return pdu.Value
	}
}

var (
	_ types.Driver       = (*Driver)(nil)
	_ types.SNMPExecutor = (*Driver)(nil)
)
