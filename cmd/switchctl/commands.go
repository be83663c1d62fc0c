package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	switchctrl "github.com/nanoncore/nano-switchctrl"
	"github.com/nanoncore/nano-switchctrl/model"
)

func parseVLAN(s string) (int, error) {
	vlan, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid VLAN %q", s)
	}
	return vlan, nil
}

// do runs fn against the selected switch
func (a *app) do(cmd *cobra.Command, fn func(ctx context.Context, s switchctrl.SwitchSession) error) error {
	name, err := a.target()
	if err != nil {
		return err
	}
	return a.registry.Do(cmd.Context(), name, fn)
}

func (a *app) newVLANCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vlan",
		Short: "Create and remove VLANs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create VLAN",
		Short: "Create a VLAN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vlan, err := parseVLAN(args[0])
			if err != nil {
				return err
			}
			return a.do(cmd, func(ctx context.Context, s switchctrl.SwitchSession) error {
				return s.CreateVLAN(ctx, vlan)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove VLAN",
		Short: "Remove a VLAN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vlan, err := parseVLAN(args[0])
			if err != nil {
				return err
			}
			return a.do(cmd, func(ctx context.Context, s switchctrl.SwitchSession) error {
				return s.RemoveVLAN(ctx, vlan)
			})
		},
	})
	return cmd
}

func (a *app) newPortCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port",
		Short: "Move ports into and out of VLANs",
	}

	var untagged bool
	add := &cobra.Command{
		Use:   "add PORT VLAN",
		Short: "Add a port (module/slot/port) to a VLAN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := model.ParsePort(args[0])
			if err != nil {
				return err
			}
			vlan, err := parseVLAN(args[1])
			if err != nil {
				return err
			}
			return a.do(cmd, func(ctx context.Context, s switchctrl.SwitchSession) error {
				if untagged {
					return s.MovePortToVLANAsUntagged(ctx, port, vlan)
				}
				return s.MovePortToVLANAsTagged(ctx, port, vlan)
			})
		},
	}
	add.Flags().BoolVar(&untagged, "untagged", false, "make the VLAN the port's untagged VLAN")

	var teardown bool
	remove := &cobra.Command{
		Use:   "remove PORT VLAN",
		Short: "Remove a port from a VLAN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := model.ParsePort(args[0])
			if err != nil {
				return err
			}
			vlan, err := parseVLAN(args[1])
			if err != nil {
				return err
			}
			if !teardown {
				return a.do(cmd, func(ctx context.Context, s switchctrl.SwitchSession) error {
					return s.RemovePortFromVLAN(ctx, port, vlan)
				})
			}
			name, err := a.target()
			if err != nil {
				return err
			}
			removed, err := a.registry.TeardownPort(cmd.Context(), name, port, vlan)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "VLAN %d removed from %s\n", vlan, name)
			}
			return nil
		},
	}
	remove.Flags().BoolVar(&teardown, "teardown", false, "also remove the VLAN once it has no member port")

	cmd.AddCommand(add, remove)
	return cmd
}

func (a *app) newRefsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "Rebuild the interface reference tables of every switch over SNMP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.registry.RebuildRefTables(cmd.Context()); err != nil {
				return err
			}
			for _, name := range a.registry.Names() {
				s, _ := a.registry.Get(name)
				if t, ok := s.(interface {
					PortRefs() *model.PortRefTable
					VLANRefs() *model.VLANRefTable
				}); ok && t.PortRefs() != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d ports, %d VLANs\n", name, t.PortRefs().Len(), t.VLANRefs().Len())
				}
			}
			return nil
		},
	}
}

func (a *app) newServeMetricsCommand() *cobra.Command {
	var (
		addr    string
		refresh time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Keep every session alive and serve prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			ctx := cmd.Context()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			a.logger.Info("serving metrics", zap.String("addr", addr))

			if err := a.registry.ConnectAll(ctx); err != nil {
				a.logger.Warn("some switches did not connect", zap.Error(err))
			}

			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				case err := <-errc:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ticker.C:
					if err := a.registry.RefreshAll(ctx); err != nil {
						a.logger.Warn("session refresh failed", zap.Error(err))
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to metrics_addr)")
	cmd.Flags().DurationVar(&refresh, "refresh", time.Minute, "session keep-alive interval")
	return cmd
}

func newVendorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vendors",
		Short: "List supported vendors, models and transports",
		Args:  cobra.NoArgs,
		// the capability matrix needs no inventory
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, v := range switchctrl.GetSupportedVendors() {
				caps, _ := switchctrl.GetVendorCapabilities(v)
				fmt.Fprintf(out, "%s\tconfig=%s", v, caps.ConfigMethod)
				if caps.ResolutionMethod != "" {
					fmt.Fprintf(out, " resolution=%s", caps.ResolutionMethod)
				}
				fmt.Fprintf(out, " models=%v transports=%v\n", caps.Models, caps.Transports)
			}
			return nil
		},
	}
}
