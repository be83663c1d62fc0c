// Package juniper drives Juniper EX switches through a JUNOScript XML session
// opened from the operational CLI.
package juniper

import (
	"context"
	"fmt"

	"github.com/nanoncore/nano-switchctrl/drivers/cli"
	"github.com/nanoncore/nano-switchctrl/metrics"
	"github.com/nanoncore/nano-switchctrl/model"
	"github.com/nanoncore/nano-switchctrl/provision"
	"github.com/nanoncore/nano-switchctrl/types"
	"github.com/nanoncore/nano-switchctrl/vendors/common"
	"go.uber.org/zap"
)

// Adapter wraps a CLI driver with the JUNOScript session and provisioning logic
type Adapter struct {
	*provision.Manager

	baseDriver *cli.Driver
	config     *types.SwitchConfig
	codec      Codec
	snmp       types.SNMPExecutor
	logger     *zap.Logger

	scripting bool
	portRefs  *model.PortRefTable
	vlanRefs  *model.VLANRefTable
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithSNMP sets the executor used by RebuildRefTables
func WithSNMP(s types.SNMPExecutor) Option {
	return func(a *Adapter) { a.snmp = s }
}

// NewAdapter creates a new Juniper adapter
func NewAdapter(baseDriver *cli.Driver, config *types.SwitchConfig, opts ...Option) *Adapter {
	config.ApplyDefaults()
	a := &Adapter{
		baseDriver: baseDriver,
		config:     config,
		logger:     config.Logger.With(zap.String("switch", config.Name), zap.String("vendor", string(types.VendorJuniper))),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Manager = provision.NewManager(a, EX3200Ports{}, config)
	return a
}

// Name returns the configured switch name
func (a *Adapter) Name() string {
	return a.config.Name
}

// Connect logs in and switches the session into JUNOScript mode
func (a *Adapter) Connect(ctx context.Context, config *types.SwitchConfig) error {
	if err := a.baseDriver.Connect(ctx, config); err != nil {
		metrics.SessionEvent(types.VendorJuniper, "connect_failed")
		return types.WithSwitch(err, a.config.Name)
	}
	if err := a.startScripting(); err != nil {
		metrics.SessionEvent(types.VendorJuniper, "connect_failed")
		a.logger.Warn("failed to initiate JUNOScript communication", zap.Error(err))
		_ = a.baseDriver.Disengage(ctx, "")
		return types.WithSwitch(err, a.config.Name)
	}
	metrics.SessionEvent(types.VendorJuniper, "connected")
	return nil
}

// startScripting runs the JUNOScript greeting exchange
func (a *Adapter) startScripting() error {
	if err := a.baseDriver.Write(StartCommand, false); err != nil {
		return err
	}
	if _, err := a.baseDriver.ReadUntil(cli.Match{Primary: sessionStart, Secondary: commentEnd, ReadAll: true}); err != nil {
		return fmt.Errorf("waiting for JUNOScript session start: %w", err)
	}
	if err := a.baseDriver.Write(Hello, false); err != nil {
		return err
	}
	if _, err := a.baseDriver.ReadUntil(cli.Match{Primary: sessionUser, Secondary: commentEnd, ReadAll: true}); err != nil {
		return fmt.Errorf("waiting for JUNOScript user confirmation: %w", err)
	}
	a.scripting = true
	a.logger.Info("JUNOScript session started")
	return nil
}

// Disconnect closes the JUNOScript session and logs out
func (a *Adapter) Disconnect(ctx context.Context) error {
	logout := ""
	if a.scripting {
		logout = Goodbye
	}
	a.scripting = false
	metrics.SessionEvent(types.VendorJuniper, "disconnected")
	return a.baseDriver.Disengage(ctx, logout)
}

// IsConnected returns true if the JUNOScript session is up
func (a *Adapter) IsConnected() bool {
	return a.scripting && a.baseDriver.IsConnected()
}

// Refresh reconnects a session whose shell has died. A live XML session has
// no prompt to check, so nothing is sent.
func (a *Adapter) Refresh(ctx context.Context) error {
	if a.IsConnected() {
		return nil
	}
	a.logger.Warn("JUNOScript session lost, reconnecting")
	metrics.SessionEvent(types.VendorJuniper, "reconnect")
	_ = a.Disconnect(ctx)
	return a.Connect(ctx, nil)
}

// exchange sends one RPC and judges its reply
func (a *Adapter) exchange(ctx context.Context, op types.Operation, params types.CommandParams) error {
	if !a.IsConnected() {
		return types.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lines, err := a.codec.Compose(op, params)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := a.baseDriver.Write(line+"\n", false); err != nil {
			return err
		}
	}

	reply, err := a.baseDriver.ReadUntil(cli.Match{Primary: replyEndMarker, ReadAll: true})
	if err != nil {
		return err
	}
	outcome := a.codec.Parse(op, reply)
	if !outcome.Succeeded {
		a.logger.Debug("JUNOScript request rejected",
			zap.String("op", string(op)), zap.String("diagnostic", outcome.Diagnostic))
	}
	return outcome.Err(op)
}

// PreAction locks the candidate configuration
func (a *Adapter) PreAction(ctx context.Context) error {
	return a.exchange(ctx, types.OpLock, types.CommandParams{})
}

// PostAction unlocks the candidate configuration without committing
func (a *Adapter) PostAction(ctx context.Context) error {
	return a.exchange(ctx, types.OpUnlock, types.CommandParams{})
}

// PostActionWithCommit commits, then unlocks even when the commit failed
func (a *Adapter) PostActionWithCommit(ctx context.Context) error {
	return provision.CommitThenUnlock(ctx,
		func(ctx context.Context) error { return a.exchange(ctx, types.OpCommit, types.CommandParams{}) },
		a.PostAction,
	)
}

// CreateVLANStep loads a new VLAN definition
func (a *Adapter) CreateVLANStep(ctx context.Context, vlan int) error {
	return a.exchange(ctx, types.OpCreateVLAN, types.CommandParams{VLAN: vlan})
}

// RemoveVLANStep deletes a VLAN definition
func (a *Adapter) RemoveVLANStep(ctx context.Context, vlan int) error {
	return a.exchange(ctx, types.OpRemoveVLAN, types.CommandParams{VLAN: vlan})
}

// AddPortStep loads a VLAN membership for the port's interface
func (a *Adapter) AddPortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error {
	return a.exchange(ctx, types.OpAddPort, types.CommandParams{Port: port, VLAN: vlan, Tagged: tagged})
}

// RemovePortStep deletes a VLAN membership of the port's interface
func (a *Adapter) RemovePortStep(ctx context.Context, port model.Port, vlan int, tagged bool) error {
	return a.exchange(ctx, types.OpRemovePort, types.CommandParams{Port: port, VLAN: vlan, Tagged: tagged})
}

// RebuildRefTables rebuilds both interface-index tables from SNMP walks.
// The previous tables are kept when a walk fails.
func (a *Adapter) RebuildRefTables(ctx context.Context) error {
	if a.snmp == nil || !common.GetMetadataBoolWithDefault(a.config.Metadata, true, common.MetaEnableSNMP) {
		return types.Errorf(types.KindPrecondition, "ref-tables", "SNMP is not enabled for %s", a.config.Name)
	}
	if d, ok := a.snmp.(types.Driver); ok && !d.IsConnected() {
		if err := d.Connect(ctx, nil); err != nil {
			return types.WithSwitch(err, a.config.Name)
		}
	}

	ports, err := common.BuildPortRefTable(ctx, a.snmp)
	metrics.RefTableRebuilt(a.config.Name, "port", err)
	if err != nil {
		return types.WithSwitch(err, a.config.Name)
	}
	vlans, err := common.BuildVLANRefTable(ctx, a.snmp)
	metrics.RefTableRebuilt(a.config.Name, "vlan", err)
	if err != nil {
		return types.WithSwitch(err, a.config.Name)
	}

	a.portRefs, a.vlanRefs = ports, vlans
	a.logger.Info("reference tables rebuilt", zap.Int("ports", ports.Len()), zap.Int("vlans", vlans.Len()))
	return nil
}

// PortRefs returns the last built port reference table, or nil
func (a *Adapter) PortRefs() *model.PortRefTable {
	return a.portRefs
}

// VLANRefs returns the last built VLAN reference table, or nil
func (a *Adapter) VLANRefs() *model.VLANRefTable {
	return a.vlanRefs
}

var (
	_ types.SwitchSession   = (*Adapter)(nil)
	_ types.RefTableBuilder = (*Adapter)(nil)
	_ provision.Backend     = (*Adapter)(nil)
)
