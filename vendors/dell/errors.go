package dell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nanoncore/nano-switchctrl/types"
)

// ErrorCode represents a normalized error code for PowerConnect errors
type ErrorCode string

const (
	// Configuration errors
	ErrVLANExists       ErrorCode = "VLAN_EXISTS"
	ErrVLANNotFound     ErrorCode = "VLAN_NOT_FOUND"
	ErrVLANInvalid      ErrorCode = "VLAN_INVALID"
	ErrPortNotFound     ErrorCode = "PORT_NOT_FOUND"
	ErrPortMode         ErrorCode = "PORT_MODE"
	ErrConfigBusy       ErrorCode = "CONFIG_BUSY"
	ErrUnknownCommand   ErrorCode = "UNKNOWN_CMD"
	ErrSaveFailed       ErrorCode = "SAVE_FAILED"
	ErrInsufficientPriv ErrorCode = "INSUFFICIENT_PRIVILEGE"

	// Unknown
	ErrUnknown ErrorCode = "UNKNOWN"
)

// ErrorMapping maps a PowerConnect error pattern to a human-readable message
type ErrorMapping struct {
	Code        ErrorCode
	Human       string
	Action      string
	Recoverable bool
}

// dellErrorPatterns maps PowerConnect CLI error strings to structured errors.
// The first matching pattern wins.
var dellErrorPatterns = []struct {
	pattern string
	mapping ErrorMapping
}{
	{"vlan already exists", ErrorMapping{
		Code:   ErrVLANExists,
		Human:  "VLAN is already defined on this switch",
		Action: "Remove the existing VLAN first or reuse it",
	}},
	{"vlan does not exist", ErrorMapping{
		Code:   ErrVLANNotFound,
		Human:  "VLAN is not defined on this switch",
		Action: "Create the VLAN before adding ports to it",
	}},
	{"vlan id out of range", ErrorMapping{
		Code:   ErrVLANInvalid,
		Human:  "VLAN ID is out of range",
		Action: "Use VLAN ID between 2 and 4093",
	}},
	{"default vlan", ErrorMapping{
		Code:   ErrVLANInvalid,
		Human:  "The default VLAN cannot be changed",
		Action: "Use a VLAN other than 1",
	}},
	{"invalid interface", ErrorMapping{
		Code:   ErrPortNotFound,
		Human:  "Interface does not exist on this switch",
		Action: "Check the port exists on this PowerConnect model",
	}},
	{"not in general mode", ErrorMapping{
		Code:   ErrPortMode,
		Human:  "Port is not in general switchport mode",
		Action: "Set switchport mode general on the interface",
	}},
	{"port is not a member", ErrorMapping{
		Code:   ErrPortMode,
		Human:  "Port is not a member of the VLAN",
		Action: "Refresh the VLAN membership from the switch",
	}},
	{"configuration is locked", ErrorMapping{
		Code:        ErrConfigBusy,
		Human:       "Another session is changing the configuration",
		Action:      "Will retry when the other session finishes",
		Recoverable: true,
	}},
	{"in progress", ErrorMapping{
		Code:        ErrConfigBusy,
		Human:       "A configuration save is in progress",
		Action:      "Will retry in a few seconds",
		Recoverable: true,
	}},
	{"file system", ErrorMapping{
		Code:        ErrSaveFailed,
		Human:       "Startup configuration could not be written",
		Action:      "Check flash usage on the switch",
		Recoverable: true,
	}},
	{"unrecognized command", ErrorMapping{
		Code:   ErrUnknownCommand,
		Human:  "Command not supported by this firmware",
		Action: "Check PowerConnect firmware version",
	}},
	{"invalid input", ErrorMapping{
		Code:   ErrUnknownCommand,
		Human:  "Invalid command syntax",
		Action: "Check command parameters",
	}},
	{"incomplete command", ErrorMapping{
		Code:   ErrUnknownCommand,
		Human:  "Command is incomplete",
		Action: "Internal error - contact support",
	}},
	{"privilege", ErrorMapping{
		Code:   ErrInsufficientPriv,
		Human:  "User lacks privileged access",
		Action: "Grant the account privilege level 15",
	}},
}

// TranslatedError represents a user-friendly error
type TranslatedError struct {
	Code        ErrorCode
	Human       string
	Action      string
	Recoverable bool
}

func (e *TranslatedError) Error() string {
	return fmt.Sprintf("[%s] %s (action: %s)", e.Code, e.Human, e.Action)
}

// Translate looks up a device diagnostic in the pattern table
func Translate(diagnostic string) *TranslatedError {
	lower := strings.ToLower(diagnostic)
	for _, p := range dellErrorPatterns {
		if strings.Contains(lower, p.pattern) {
			m := p.mapping
			return &TranslatedError{Code: m.Code, Human: m.Human, Action: m.Action, Recoverable: m.Recoverable}
		}
	}
	return &TranslatedError{
		Code:   ErrUnknown,
		Human:  diagnostic,
		Action: "Check switch logs for details",
	}
}

// translateError attaches the translation of a device rejection to err.
// Other errors are returned unchanged.
func translateError(err error) error {
	var e *types.Error
	if !errors.As(err, &e) || e.Kind != types.KindReplyFailure || e.Err != nil {
		return err
	}
	c := *e
	c.Err = Translate(e.Diagnostic)
	return &c
}

// IsRecoverable returns true if the device rejection can be retried
func IsRecoverable(err error) bool {
	var te *TranslatedError
	if errors.As(err, &te) {
		return te.Recoverable
	}
	return false
}

// GetErrorCode returns the error code for a translated error
func GetErrorCode(err error) ErrorCode {
	var te *TranslatedError
	if errors.As(err, &te) {
		return te.Code
	}
	return ErrUnknown
}

// GetSuggestedAction returns the suggested action for an error
func GetSuggestedAction(err error) string {
	var te *TranslatedError
	if errors.As(err, &te) {
		return te.Action
	}
	return "Check switch logs for details"
}
