// Command switchctl provisions VLANs on the switches of an inventory file and
// serves the provisioning metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	switchctrl "github.com/nanoncore/nano-switchctrl"
	"github.com/nanoncore/nano-switchctrl/config"
	"github.com/nanoncore/nano-switchctrl/logging"
)

// app carries what every subcommand needs once the root command has run
type app struct {
	configPath string
	envFile    string
	logLevel   string
	switchName string

	cfg      *config.Config
	logger   *zap.Logger
	registry *switchctrl.Registry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCommand(a).ExecuteContext(ctx)
	if cerr := a.close(context.Background()); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "switchctl",
		Short:         "Provision VLANs on Juniper EX and Dell PowerConnect switches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "switches.yaml", "switch inventory file")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides the inventory)")
	cmd.PersistentFlags().StringVarP(&a.switchName, "switch", "s", "", "switch to operate on")

	cmd.AddCommand(
		a.newVLANCommand(),
		a.newPortCommand(),
		a.newRefsCommand(),
		a.newServeMetricsCommand(),
		newVendorsCommand(),
	)
	return cmd
}

// init loads the inventory and registers one session per switch
func (a *app) init() error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := logging.New(level, cfg.Development)
	if err != nil {
		return err
	}

	registry := switchctrl.NewRegistry(logger)
	for i := range cfg.Switches {
		sw := &cfg.Switches[i]
		sw.Logger = logger
		s, err := switchctrl.NewSession(sw)
		if err != nil {
			return fmt.Errorf("switch %s: %w", sw.Name, err)
		}
		if err := registry.Register(s); err != nil {
			return err
		}
	}

	a.cfg, a.logger, a.registry = cfg, logger, registry
	return nil
}

// close disconnects every session; it is safe to call more than once
func (a *app) close(ctx context.Context) error {
	if a.registry == nil {
		return nil
	}
	err := a.registry.Close(ctx)
	_ = a.logger.Sync()
	a.registry = nil
	return err
}

// target returns the switch selected with --switch, or the only one configured
func (a *app) target() (string, error) {
	if a.switchName != "" {
		if _, ok := a.registry.Get(a.switchName); !ok {
			return "", fmt.Errorf("switch %q is not in %s", a.switchName, a.configPath)
		}
		return a.switchName, nil
	}
	names := a.registry.Names()
	if len(names) != 1 {
		return "", fmt.Errorf("--switch is required when the inventory has %d switches", len(names))
	}
	return names[0], nil
}
