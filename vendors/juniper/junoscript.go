package juniper

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/nanoncore/nano-switchctrl/drivers/cli"
	"github.com/nanoncore/nano-switchctrl/types"
)

// JUNOScript session parameters announced by the client
const (
	ClientName     = "vlsr"
	ClientRelease  = "9.2R2"
	VLANNamePrefix = "dynamic_vlan_"
)

// Handshake and framing text of a JUNOScript session
const (
	StartCommand = "junoscript\n"
	Hello        = `<?xml version="1.0" encoding="us-ascii"?> <junoscript version="1.0" client="` +
		ClientName + `" release="` + ClientRelease + `">` + "\n"
	Goodbye = "</junoscript>\n"

	replyOpen  = "<rpc-reply"
	replyClose = "</rpc-reply>"

	// DiagCouldNotLoad is reported for replies without a closing reply element
	DiagCouldNotLoad = "could not load script"
)

var (
	sessionStart   = regexp.MustCompile(`<!-- session start`)
	sessionUser    = regexp.MustCompile(`<!-- user`)
	commentEnd     = regexp.MustCompile(`-->`)
	replyEndMarker = regexp.MustCompile(`</rpc-reply>|</junoscript>`)
)

// rpc is the request envelope. Exactly one field is set.
type rpc struct {
	XMLName xml.Name           `xml:"rpc"`
	Lock    *struct{}          `xml:"lock-configuration"`
	Unlock  *struct{}          `xml:"unlock-configuration"`
	Commit  *struct{}          `xml:"commit-configuration"`
	Load    *loadConfiguration `xml:"load-configuration"`
}

type loadConfiguration struct {
	Action        string        `xml:"action,attr,omitempty"`
	Configuration configuration `xml:"configuration"`
}

type configuration struct {
	Interfaces *interfaces `xml:"interfaces,omitempty"`
	VLANs      *vlans      `xml:"vlans,omitempty"`
}

type interfaces struct {
	Interface []iface `xml:"interface"`
}

type iface struct {
	Name string `xml:"name"`
	Unit unit   `xml:"unit"`
}

type unit struct {
	Name   string `xml:"name"`
	Family family `xml:"family"`
}

type family struct {
	Switching ethernetSwitching `xml:"ethernet-switching"`
}

type ethernetSwitching struct {
	PortMode string      `xml:"port-mode,omitempty"`
	VLAN     vlanMembers `xml:"vlan"`
}

type vlanMembers struct {
	Members []member `xml:"members"`
}

type member struct {
	Delete string `xml:"delete,attr,omitempty"`
	Name   string `xml:",chardata"`
}

type vlans struct {
	VLAN []vlanDef `xml:"vlan"`
}

type vlanDef struct {
	Delete string `xml:"delete,attr,omitempty"`
	Name   string `xml:"name"`
	VLANID int    `xml:"vlan-id,omitempty"`
}

// VLANName returns the configuration name of a provisioned VLAN
func VLANName(vlan int) string {
	if vlan == types.VLANDefault {
		return "default"
	}
	return fmt.Sprintf("%s%d", VLANNamePrefix, vlan)
}

// Codec composes JUNOScript RPCs and parses their replies
type Codec struct{}

// Compose implements types.Codec. Every operation is a single RPC line.
func (Codec) Compose(op types.Operation, params types.CommandParams) ([]string, error) {
	var req rpc
	switch op {
	case types.OpLock:
		req.Lock = &struct{}{}
	case types.OpUnlock:
		req.Unlock = &struct{}{}
	case types.OpCommit:
		req.Commit = &struct{}{}
	case types.OpCreateVLAN, types.OpRemoveVLAN:
		def := vlanDef{Name: VLANName(params.VLAN), VLANID: params.VLAN}
		if op == types.OpRemoveVLAN {
			def = vlanDef{Name: VLANName(params.VLAN), Delete: "delete"}
		}
		req.Load = &loadConfiguration{
			Configuration: configuration{VLANs: &vlans{VLAN: []vlanDef{def}}},
		}
	case types.OpAddPort, types.OpRemovePort:
		name := params.PortName
		if name == "" {
			name = InterfaceName(params.Port)
		}
		sw := ethernetSwitching{VLAN: vlanMembers{Members: []member{{Name: VLANName(params.VLAN)}}}}
		if op == types.OpRemovePort {
			sw.VLAN.Members[0].Delete = "delete"
		} else if params.Tagged {
			sw.PortMode = "trunk"
		} else {
			sw.PortMode = "access"
		}
		req.Load = &loadConfiguration{
			Configuration: configuration{Interfaces: &interfaces{Interface: []iface{{
				Name: name,
				Unit: unit{Name: "0", Family: family{Switching: sw}},
			}}}},
		}
	default:
		return nil, types.Errorf(types.KindPrecondition, string(op), "no JUNOScript request for operation %q", op)
	}

	// one byte of the command buffer is left for the line end
	buf := cli.NewBuffer(cli.CommandBufferSize - 1)
	defer buf.Release()
	if err := xml.NewEncoder(buf).Encode(req); err != nil {
		if errors.Is(err, cli.ErrBufferFull) {
			return nil, types.NewError(types.KindPrecondition, string(op), "request exceeds command buffer", err)
		}
		return nil, types.NewError(types.KindPrecondition, string(op), "failed to compose request", err)
	}
	return []string{buf.String()}, nil
}

// replyScan collects what Parse needs from a reply fragment
type replyScan struct {
	errors        []string
	commitSuccess bool
	loadSuccess   bool
}

// Parse implements types.Codec. The reply is valid only when a complete
// rpc-reply element is present; a session that closed instead is malformed.
func (Codec) Parse(op types.Operation, reply string) types.Outcome {
	start := strings.Index(reply, replyOpen)
	if start < 0 {
		return types.MalformedReply(DiagCouldNotLoad)
	}
	end := strings.Index(reply[start:], replyClose)
	if end < 0 {
		return types.MalformedReply(DiagCouldNotLoad)
	}
	fragment := reply[start : start+end+len(replyClose)]

	scan, err := scanReply(fragment)
	if err != nil {
		return types.MalformedReply(DiagCouldNotLoad + ": " + err.Error())
	}
	if len(scan.errors) > 0 {
		return types.Failure(strings.Join(scan.errors, "; "))
	}
	if op == types.OpCommit && !scan.commitSuccess {
		return types.Failure("commit reply carries no commit-success")
	}
	return types.Success()
}

func scanReply(fragment string) (replyScan, error) {
	var (
		scan    replyScan
		depth   int // >0 while inside an error element
		inMsg   bool
		message strings.Builder
	)

	dec := xml.NewDecoder(strings.NewReader(fragment))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return scan, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "error", "rpc-error":
				depth++
				message.Reset()
			case "message", "error-message":
				inMsg = depth > 0
			case "commit-success":
				scan.commitSuccess = true
			case "load-success":
				scan.loadSuccess = true
			}
		case xml.CharData:
			if inMsg {
				message.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "message", "error-message":
				inMsg = false
			case "error", "rpc-error":
				if depth > 0 {
					depth--
				}
				msg := strings.TrimSpace(message.String())
				if msg == "" {
					msg = "unspecified error"
				}
				scan.errors = append(scan.errors, msg)
				message.Reset()
			}
		}
	}
	return scan, nil
}

var _ types.Codec = Codec{}
