package dell

import (
	"fmt"
	"regexp"

	"github.com/nanoncore/nano-switchctrl/drivers/cli"
	"github.com/nanoncore/nano-switchctrl/types"
)

// ErrorPrompt starts every error line printed by PowerConnect firmware
const ErrorPrompt = "% "

// Mode changes and the configuration save dialogue
const (
	EnableCommand    = "enable"
	ConfigureCommand = "configure"
	EndCommand       = "end"
	ExitCommand      = "exit"
	SaveCommand      = "do copy running-config startup-config"
	SaveAnswer       = "y"
	LogoutCommand    = "quit\n"
)

var confirmPrompt = regexp.MustCompile(`\(y/n\)\s*$`)

// Codec composes PowerConnect CLI command sequences and judges their replies
type Codec struct {
	// Prompt is the operational prompt; nil uses the CLI default
	Prompt *regexp.Regexp

	// ErrorPrompt starts error lines; empty uses ErrorPrompt
	ErrorPrompt string
}

// Compose implements types.Codec. Each line is one command whose reply ends
// with the prompt, except SaveCommand which is answered with SaveAnswer.
func (c Codec) Compose(op types.Operation, params types.CommandParams) ([]string, error) {
	switch op {
	case types.OpLock:
		return []string{ConfigureCommand}, nil
	case types.OpUnlock:
		return []string{EndCommand}, nil
	case types.OpCommit:
		return []string{SaveCommand, SaveAnswer}, nil
	}

	if params.VLAN <= types.VLANNone || params.VLAN > types.VLANMax {
		return nil, types.Errorf(types.KindPrecondition, string(op), "VLAN %d out of range", params.VLAN)
	}
	name := params.PortName
	if name == "" {
		name = InterfaceName(params.Port)
	}

	switch op {
	case types.OpCreateVLAN:
		return []string{"vlan database", fmt.Sprintf("vlan %d", params.VLAN), ExitCommand}, nil
	case types.OpRemoveVLAN:
		return []string{"vlan database", fmt.Sprintf("no vlan %d", params.VLAN), ExitCommand}, nil
	case types.OpAddPort:
		mode := "untagged"
		if params.Tagged {
			mode = "tagged"
		}
		lines := []string{
			"interface ethernet " + name,
			"switchport mode general",
			fmt.Sprintf("switchport general allowed vlan add %d %s", params.VLAN, mode),
		}
		if !params.Tagged {
			lines = append(lines, fmt.Sprintf("switchport general pvid %d", params.VLAN))
		}
		return append(lines, ExitCommand), nil
	case types.OpRemovePort:
		lines := []string{
			"interface ethernet " + name,
			fmt.Sprintf("switchport general allowed vlan remove %d", params.VLAN),
		}
		if !params.Tagged {
			lines = append(lines, "no switchport general pvid")
		}
		return append(lines, ExitCommand), nil
	default:
		return nil, types.Errorf(types.KindPrecondition, string(op), "no PowerConnect command for operation %q", op)
	}
}

// Parse implements types.Codec for the reply to a single command line. The
// echo has already been consumed by the write.
func (c Codec) Parse(op types.Operation, reply string) types.Outcome {
	marker := c.ErrorPrompt
	if marker == "" {
		marker = ErrorPrompt
	}
	return cli.ParseReply(reply, "", c.Prompt, marker)
}

var _ types.Codec = Codec{}
