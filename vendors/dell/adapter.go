// Package dell drives Dell PowerConnect 6000/8000 series switches through
// their plain industry-standard CLI.
package dell

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nanoncore/nano-switchctrl/drivers/cli"
	"github.com/nanoncore/nano-switchctrl/metrics"
	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/provision"
	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/nanoncore/nano-switchctrl/vendors/common"
	"go.uber.org/zap"
)

// MetaEnablePassword is the metadata key of the privileged-mode password
const MetaEnablePassword = "enable_password"

// Adapter wraps a CLI driver with PowerConnect provisioning logic
type Adapter struct {
	*provision.Manager

	baseDriver *cli.Driver
	config     *types.SwitchConfig
	codec      Codec
	ports      PowerConnectPorts
	logger     *zap.Logger
	logout     string

	// enableDone ends the reply to "enable": a password prompt or the prompt
	enableDone *regexp.Regexp
	// saveDone ends the reply to the save command: its confirmation or the prompt
	saveDone *regexp.Regexp
}

// NewAdapter creates a new PowerConnect adapter for the configured model
func NewAdapter(baseDriver *cli.Driver, config *types.SwitchConfig) (*Adapter, error) {
	config.ApplyDefaults()
	ports, err := PortsFor(config.Model)
	if err != nil {
		return nil, types.NewError(types.KindPrecondition, "new-session", err.Error(), nil)
	}

	prompt := baseDriver.Prompt()
	codec := Codec{
		Prompt:      prompt,
		ErrorPrompt: common.GetMetadataStringWithDefault(config.Metadata, ErrorPrompt, common.MetaErrorPrompt),
	}
	logger := config.Logger.With(zap.String("switch", config.Name),
		zap.String("vendor", string(types.VendorDell)), zap.String("model", string(ports.Model)))

	a := &Adapter{
		baseDriver: baseDriver,
		config:     config,
		codec:      codec,
		ports:      ports,
		logger:     logger,
		enableDone: regexp.MustCompile(cli.DefaultPasswordPrompt.String() + "|" + prompt.String()),
		saveDone:   regexp.MustCompile(confirmPrompt.String() + "|" + prompt.String()),
	}
	// leave any configuration mode before closing the CLI session
	a.logout = EndCommand + "\n" + LogoutCommand
	if custom, ok := common.GetMetadataString(config.Metadata, common.MetaLogout); ok && custom != "" {
		a.logout = EndCommand + "\n" + strings.TrimRight(custom, "\n") + "\n"
	}
	a.Manager = provision.NewManager(a, ports, config)
	return a, nil
}

// Name returns the configured switch name
func (a *Adapter) Name() string {
	return a.config.Name
}

// Ports returns the port layout of the switch model
func (a *Adapter) Ports() PowerConnectPorts {
	return a.ports
}

// Connect logs in and enters privileged mode
func (a *Adapter) Connect(ctx context.Context, config *types.SwitchConfig) error {
	if err := a.baseDriver.Connect(ctx, config); err != nil {
		metrics.SessionEvent(types.VendorDell, "connect_failed")
		return types.WithSwitch(err, a.config.Name)
	}
	if err := a.enable(ctx); err != nil {
		metrics.SessionEvent(types.VendorDell, "connect_failed")
		a.logger.Warn("failed to enter privileged mode", zap.Error(err))
		_ = a.baseDriver.Disengage(ctx, LogoutCommand)
		return types.WithSwitch(err, a.config.Name)
	}
	metrics.SessionEvent(types.VendorDell, "connected")
	return nil
}

func (a *Adapter) enable(ctx context.Context) error {
	if err := a.baseDriver.Write(EnableCommand+"\n", true); err != nil {
		return err
	}
	reply, err := a.baseDriver.ReadUntil(cli.Match{Primary: a.enableDone})
	if err != nil {
		return fmt.Errorf("waiting for privileged prompt: %w", err)
	}
	if cli.DefaultPasswordPrompt.MatchString(reply) {
		password := common.GetMetadataStringWithDefault(a.config.Metadata, a.config.Password, MetaEnablePassword)
		if err := a.baseDriver.Write(password+"\n", false); err != nil {
			return err
		}
		if reply, err = a.baseDriver.ReadUntil(cli.Match{Primary: cli.ExpectPrompt}); err != nil {
			return fmt.Errorf("waiting for privileged prompt: %w", err)
		}
	}
	if err := a.codec.Parse(types.OpLock, reply).Err("enable"); err != nil {
		return err
	}
	if strings.HasSuffix(strings.TrimSpace(common.CleanReply(reply)), ">") {
		return types.Errorf(types.KindReplyFailure, "enable", "privileged mode refused")
	}
	return a.command(ctx, "enable", "terminal length 0")
}

// Disconnect leaves configuration mode and logs out
func (a *Adapter) Disconnect(ctx context.Context) error {
	metrics.SessionEvent(types.VendorDell, "disconnected")
	return a.baseDriver.Disengage(ctx, a.logout)
}

// IsConnected returns true if the CLI session is up
func (a *Adapter) IsConnected() bool {
	return a.baseDriver.IsConnected()
}

// Refresh checks a live session and reconnects a dead one
func (a *Adapter) Refresh(ctx context.Context) error {
	if a.IsConnected() {
		return a.baseDriver.Refresh(ctx)
	}
	a.logger.Warn("CLI session lost, reconnecting")
	metrics.SessionEvent(types.VendorDell, "reconnect")
	_ = a.baseDriver.Disengage(ctx, "")
	return a.Connect(ctx, nil)
}

// command sends one line and judges its reply
func (a *Adapter) command(ctx context.Context, op types.Operation, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.baseDriver.Write(line+"\n", true); err != nil {
		return err
	}
	reply, err := a.baseDriver.ReadUntil(cli.Match{Primary: cli.ExpectPrompt})
	if err != nil {
		return err
	}
	outcome := a.codec.Parse(op, reply)
	if !outcome.Succeeded {
		a.logger.Debug("command rejected",
			zap.String("command", line), zap.String("diagnostic", outcome.Diagnostic))
	}
	return translateError(outcome.Err(op))
}

// exchange runs the command sequence of op, stopping at the first rejection
func (a *Adapter) exchange(ctx context.Context, op types.Operation, params types.CommandParams) error {
	if !a.IsConnected() {
		return types.ErrNotConnected
	}
	lines, err := a.codec.Compose(op, params)
	if err != nil {
		return err
	}
	for i := 0; i < len(lines); i++ {
		if lines[i] == SaveCommand && i+1 < len(lines) {
			if err := a.save(ctx, lines[i], lines[i+1]); err != nil {
				return err
			}
			i++
			continue
		}
		if err := a.command(ctx, op, lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// save writes the running configuration to flash, answering its confirmation
func (a *Adapter) save(ctx context.Context, line, answer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.baseDriver.Write(line+"\n", true); err != nil {
		return err
	}
	reply, err := a.baseDriver.ReadUntil(cli.Match{Primary: a.saveDone})
	if err != nil {
		return err
	}
	if !confirmPrompt.MatchString(reply) {
		outcome := a.codec.Parse(types.OpCommit, reply)
		if outcome.Succeeded {
			outcome = types.Failure("save was not confirmed")
		}
		return translateError(outcome.Err(types.OpCommit))
	}
	return a.command(ctx, types.OpCommit, answer)
}

// PreAction enters global configuration mode
func (a *Adapter) PreAction(ctx context.Context) error {
	return a.exchange(ctx, types.OpLock, types.CommandParams{})
}

// PostAction returns to privileged mode from any configuration mode
func (a *Adapter) PostAction(ctx context.Context) error {
	return a.exchange(ctx, types.OpUnlock, types.CommandParams{})
}

// PostActionWithCommit saves the running configuration, then leaves
// configuration mode even when the save failed
func (a *Adapter) PostActionWithCommit(ctx context.Context) error {
	return provision.CommitThenUnlock(ctx,
		func(ctx context.Context) error { return a.exchange(ctx, types.OpCommit, types.CommandParams{}) },
		a.PostAction,
	)
}

// CreateVLANStep defines a VLAN in the VLAN database
func (a *Adapter) CreateVLANStep(ctx context.Context, vlan int) error {
	return a.exchange(ctx, types.OpCreateVLAN, types.CommandParams{VLAN: vlan})
}

// RemoveVLANStep deletes a VLAN from the VLAN database
func (a *Adapter) RemoveVLANStep(ctx context.Context, vlan int) error {
	return a.exchange(ctx, types.OpRemoveVLAN, types.CommandParams{VLAN: vlan})
}

// AddPortStep adds the port to the VLAN's general-mode member list
func (a *Adapter) AddPortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error {
	return a.exchange(ctx, types.OpAddPort, types.CommandParams{Port: port, VLAN: vlan, Tagged: tagged})
}

// RemovePortStep removes the port from the VLAN's general-mode member list
func (a *Adapter) RemovePortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error {
	return a.exchange(ctx, types.OpRemovePort, types.CommandParams{Port: port, VLAN: vlan, Tagged: tagged})
}

var (
	_ types.SwitchSession = (*Adapter)(nil)
	_ provision.Backend   = (*Adapter)(nil)
)
