package common

import (
	"context"
	"regexp"
	"strconv"

	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/types"
)

var (
	// physical gigabit interface without a logical unit suffix
	portNameRegex = regexp.MustCompile(`^ge-(\d+)/(\d+)/(\d+)$`)

	vlanNameRegex = regexp.MustCompile(`^dynamic_vlan_(\d+)$`)
)

// DefaultVLANName is the name switches report for VLAN 1
const DefaultVLANName = "default"

// ParsePortName converts an interface name of the form ge-<mod>/<slot>/<port>
// to a unified port. Names with a sub-interface suffix (ge-0/0/3.0) do not match.
func ParsePortName(name string) (model.Port, bool) {
	m := portNameRegex.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	mod, _ := strconv.Atoi(m[1])
	slot, _ := strconv.Atoi(m[2])
	port, _ := strconv.Atoi(m[3])
	if mod > 0xf || slot > 0xf || port > 0xff {
		return 0, false
	}
	return model.NewPort(mod, slot, port), true
}

// ParseVLANName converts a VLAN name to its ID: dynamic_vlan_<id>, or
// "default" for VLAN 1
func ParseVLANName(name string) (int, bool) {
	if name == DefaultVLANName {
		return types.VLANDefault, true
	}
	m := vlanNameRegex.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id == types.VLANNone || id > types.VLANMax {
		return 0, false
	}
	return id, true
}

// BuildPortRefTable walks the interface-description table and maps each
// reported interface index to a unified port
func BuildPortRefTable(ctx context.Context, snmp types.SNMPExecutor) (*model.PortRefTable, error) {
	results, err := snmp.WalkSNMP(ctx, OIDIfDescr)
	if err != nil {
		return nil, err
	}

	entries := make([]model.PortRef, 0, len(results))
	for key, value := range results {
		ref, ok := LastSubID(key)
		if !ok {
			continue
		}
		name, ok := ParseStringSNMPValue(value)
		if !ok {
			continue
		}
		if port, ok := ParsePortName(name); ok {
			entries = append(entries, model.PortRef{RefID: ref, Port: port})
		}
	}
	if len(entries) == 0 {
		return nil, types.Errorf(types.KindProtocol, "port-ref-table",
			"no ge-M/S/P interfaces among %d walked entries", len(results))
	}
	return model.NewPortRefTable(entries), nil
}

// BuildVLANRefTable walks the VLAN name table and maps each reported VLAN
// interface index to a VLAN ID
func BuildVLANRefTable(ctx context.Context, snmp types.SNMPExecutor) (*model.VLANRefTable, error) {
	results, err := snmp.WalkSNMP(ctx, OIDDot1qVlanStaticName)
	if err != nil {
		return nil, err
	}

	entries := make([]model.VLANRef, 0, len(results))
	for key, value := range results {
		ref, ok := LastSubID(key)
		if !ok {
			continue
		}
		name, ok := ParseStringSNMPValue(value)
		if !ok {
			continue
		}
		if vlan, ok := ParseVLANName(name); ok {
			entries = append(entries, model.VLANRef{RefID: ref, VLAN: vlan})
		}
	}
	if len(entries) == 0 {
		return nil, types.Errorf(types.KindProtocol, "vlan-ref-table",
			"no dynamic_vlan_N or default VLANs among %d walked entries", len(results))
	}
	return model.NewVLANRefTable(entries), nil
}
