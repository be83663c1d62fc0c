package types

import "github.com/nanoncore/nano-switchctrl/model"

// Operation names a provisioning request understood by a protocol codec
type Operation string

const (
	OpLock         Operation = "lock"
	OpUnlock       Operation = "unlock"
	OpCommit       Operation = "commit"
	OpCreateVLAN   Operation = "create-vlan"
	OpRemoveVLAN   Operation = "remove-vlan"
	OpAddPort      Operation = "add-port"
	OpRemovePort   Operation = "remove-port"
	OpMoveTagged   Operation = "move-tagged"
	OpMoveUntagged Operation = "move-untagged"
)

// CommandParams carries the arguments of a composed command
type CommandParams struct {
	Port     model.Port
	PortName string
	VLAN     int
	Tagged   bool
}

// Outcome is the verdict of parsing one device reply
type Outcome struct {
	Succeeded  bool
	Diagnostic string

	// Malformed is set when the reply lacked its expected boundary markers
	Malformed bool
}

// Success returns a successful outcome
func Success() Outcome {
	return Outcome{Succeeded: true}
}

// Failure returns a failed outcome carrying the device diagnostic
func Failure(diagnostic string) Outcome {
	return Outcome{Diagnostic: diagnostic}
}

// MalformedReply returns a failure for a reply missing its boundary markers
func MalformedReply(diagnostic string) Outcome {
	return Outcome{Diagnostic: diagnostic, Malformed: true}
}

// Err converts the outcome to an error; nil when it succeeded
func (o Outcome) Err(op Operation) error {
	if o.Succeeded {
		return nil
	}
	if o.Malformed {
		return NewError(KindProtocol, string(op), o.Diagnostic, nil)
	}
	return NewError(KindReplyFailure, string(op), o.Diagnostic, nil)
}

// Codec composes outbound commands and parses their replies
type Codec interface {
	// Compose returns the command lines for op, written one at a time
	Compose(op Operation, params CommandParams) ([]string, error)

	// Parse turns a reply into a verdict
	Parse(op Operation, reply string) Outcome
}
