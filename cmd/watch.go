package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/homed/cli"
	"github.com/grovetools/homed/pkg/daemon"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/tui"
	"github.com/grovetools/homed/tui/dashboard"
	"github.com/spf13/cobra"
)

// NewWatchCmd returns the interactive dashboard command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Aliases: []string{"dashboard"},
		Short:   "Open the live dashboard",
		Long: `Open an interactive dashboard showing the live home state.
Changes made here are broadcast to every other connected client. When the
daemon is not running the dashboard edits an in-process copy of the
configured state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !tui.IsInteractive() {
				return fmt.Errorf("watch requires an interactive terminal; use 'homed state' instead")
			}
			tui.InitializeTUI()

			addr := daemonAddr(cmd)
			var token string
			if daemon.Reachable(addr) {
				t, err := loadToken()
				if err != nil {
					return err
				}
				token = t
			}
			c, err := daemon.New(addr, token, cli.GetOptions(cmd).ConfigDir)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			m := dashboard.New(ctx, c)
			if layered, err := loadConfig(cmd); err == nil {
				overrides, err := dashboard.LoadKeyOverrides(layered.Final)
				if err != nil {
					return fmt.Errorf("tui.keys: %w", err)
				}
				m.SetKeyMap(dashboard.DefaultKeyMap.WithOverrides(overrides))
				m.SetTariff(layered.Final.Tariff())
			}
			if rc, ok := c.(*daemon.RemoteClient); ok {
				applyDaemonSettings(ctx, rc, m)
			}
			if !c.IsRunning() {
				m.Title = "homed (local)"
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}
}

// applyDaemonSettings prices the dashboard with the daemon's live tariff and
// shows the user's budget. Failures leave the local defaults in place.
func applyDaemonSettings(ctx context.Context, c *daemon.RemoteClient, m *dashboard.Model) {
	if raw, err := c.GetRunningConfig(ctx); err == nil {
		var rc struct {
			Tariff energy.Tariff `json:"tariff"`
		}
		if json.Unmarshal(raw, &rc) == nil && rc.Tariff.RatePerKWh > 0 {
			m.SetTariff(rc.Tariff)
		}
	}
	if settings, err := c.GetSettings(ctx); err == nil {
		m.SetBudget(settings.MonthlyBudget)
	}
}
