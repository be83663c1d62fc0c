// Package model contains the port and VLAN membership types shared by the
// switch drivers: unified port numbers, VLAN port bitmaps, and the interface
// reference tables built from SNMP walks.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPort is returned by a PortMapper for ports outside its numbering space
var ErrInvalidPort = errors.New("port is not valid for this switch model")

// ErrInvalidBit is returned by a PortMapper for bit indices it cannot map back
var ErrInvalidBit = errors.New("bit index is not valid for this switch model")

// Port is the vendor-independent port number: module, slot and port packed
// as (module&0xf)<<12 | (slot&0xf)<<8 | port&0xff.
type Port uint32

// NewPort packs module, slot and port number into a unified Port
func NewPort(module, slot, number int) Port {
	return Port(uint32(module&0xf)<<12 | uint32(slot&0xf)<<8 | uint32(number&0xff))
}

// Module returns the module (chassis member) part
func (p Port) Module() int {
	return int(p>>12) & 0xf
}

// Slot returns the slot (line card / PIC) part
func (p Port) Slot() int {
	return int(p>>8) & 0xf
}

// Number returns the port number within the slot
func (p Port) Number() int {
	return int(p) & 0xff
}

func (p Port) String() string {
	return fmt.Sprintf("%d/%d/%d", p.Module(), p.Slot(), p.Number())
}

// ParsePort parses the "module/slot/port" form printed by Port.String
func ParsePort(s string) (Port, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return 0, fmt.Errorf("port %q is not in module/slot/port form", s)
	}
	limits := [3]int{0xf, 0xf, 0xff}
	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("port %q: field %q out of range", s, part)
		}
		fields[i] = n
	}
	return NewPort(fields[0], fields[1], fields[2]), nil
}

// PortMapper translates between unified ports and a vendor's flat bit index.
// BitToPort(PortToBit(p)) == p for every valid p.
type PortMapper interface {
	PortToBit(p Port) (uint, error)
	BitToPort(bit uint) (Port, error)

	// Bits is the size of the vendor's bit space
	Bits() uint
}
