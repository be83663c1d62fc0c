package common

import (
	"strconv"
	"strings"
)

// Subtree roots of the two ID-resolution walks
const (
	// OIDIfDescr is IF-MIB ifDescr, the interface-description table
	OIDIfDescr = "1.3.6.1.2.1.2.2.1.2"

	// OIDDot1qVlanStaticName is Q-BRIDGE-MIB dot1qVlanStaticName, the VLAN
	// name table keyed by the switch's VLAN interface index
	OIDDot1qVlanStaticName = "1.3.6.1.2.1.17.7.1.4.3.1.1"
)

// LastSubID returns the final numeric component of an OID or OID suffix.
// The walk index of both resolution tables is this component.
func LastSubID(oid string) (int, bool) {
	oid = strings.TrimSuffix(oid, ".")
	if i := strings.LastIndexByte(oid, '.'); i >= 0 {
		oid = oid[i+1:]
	}
	if oid == "" {
		return 0, false
	}
	n, err := strconv.Atoi(oid)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseStringSNMPValue extracts a string from SNMP result.
// Handles both string and []byte types; NUL padding is trimmed.
func ParseStringSNMPValue(value interface{}) (string, bool) {
	if value == nil {
		return "", false
	}

	switch v := value.(type) {
	case string:
		return strings.TrimRight(v, "\x00"), true
	case []byte:
		return strings.TrimRight(string(v), "\x00"), true
	default:
		return "", false
	}
}
