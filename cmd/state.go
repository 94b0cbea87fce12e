package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/grovetools/homed/cli"
	"github.com/grovetools/homed/errors"
	"github.com/grovetools/homed/logging"
	"github.com/grovetools/homed/pkg/daemon"
	"github.com/grovetools/homed/pkg/models"
	"github.com/grovetools/homed/tui/theme"
	"github.com/spf13/cobra"
)

// NewStateCmd returns the command that prints the current state.
func NewStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current home state",
		Long: `Print the current home state. When the daemon is not running the
configured initial state is shown instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := stateClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			state, err := c.GetState(ctx)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			if !c.IsRunning() {
				logging.NewPrettyLogger().WithWriter(cmd.ErrOrStderr()).
					WarnPretty("Daemon not running; showing the configured state")
			}
			printState(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

// NewSetCmd returns the command that applies a path-based update.
func NewSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <json>",
		Short: "Apply a state update",
		Long: `Apply a path-based update through the running daemon. Every
connected client receives the new state.

Examples:
# turn on the kitchen lights at half brightness
homed set devices.kitchenLights '{"on":true,"brightness":50}'
# arm the system and switch to away mode
homed set system '{"armed":true,"homeAway":"away"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("data is not valid JSON: %s", args[1])
			}
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			state, err := c.Update(ctx, args[0], json.RawMessage(args[1]))
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			printState(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

// NewSessionsCmd returns the command that lists state channel sessions.
func NewSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List connected clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			sessions, err := c.GetSessions(ctx)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), sessions)
			}
			t := theme.DefaultTheme
			w := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(w, t.Muted.Render("No connected clients"))
				return nil
			}
			for _, s := range sessions {
				status := theme.RenderStatus("warning", "pending")
				if s.Authenticated {
					status = theme.RenderStatus("success", "authenticated")
				}
				fmt.Fprintf(w, "%s  %-21s  %s  %s\n", s.ID[:8], s.RemoteAddr, status,
					s.ConnectedAt.Format("15:04:05"))
			}
			return nil
		},
	}
}

// NewAnalyticsCmd returns the command that prints per-device usage.
func NewAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Print energy usage per device",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			a, err := c.GetAnalytics(ctx)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), a)
			}
			p := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			p.Field("Current", fmt.Sprintf("%.0f W", a.Energy.Current))
			p.Field("Hourly", fmt.Sprintf("$%.4f", a.Energy.Costs.Hourly))
			p.Field("Daily", fmt.Sprintf("$%.2f", a.Energy.Costs.Daily))
			p.Field("Monthly", fmt.Sprintf("$%.2f", a.Energy.Costs.Monthly))
			p.Field("Savings", fmt.Sprintf("$%.4f/h", a.Energy.Costs.Savings))
			p.Divider()
			for _, id := range sortedKeys(a.Devices) {
				p.Field(id, fmt.Sprintf("%.0f W (active: %d)", a.Watts[id], a.Devices[id]))
			}
			p.Divider()
			printAnalysis(p, a)
			return nil
		},
	}
}

func printAnalysis(p *logging.PrettyLogger, a models.Analytics) {
	e := a.Analysis.Efficiency
	p.Field("Efficiency", fmt.Sprintf("%d%% (lighting %d%%, hvac %d%%)", e.Overall, e.Lighting, e.HVAC))
	c := a.Analysis.Consumption
	p.Field("Baseline", fmt.Sprintf("%.0f W", c.Baseline))
	p.Field("Extra", fmt.Sprintf("%.0f W ($%.4f/h)", c.Extra, a.Analysis.PotentialSavings))
	p.Field("Budget", theme.RenderStatus(budgetStatus(a.Budget.Level), a.Budget.Message))
	for _, w := range a.Analysis.Warnings {
		p.WarnPretty(w)
	}
	for _, r := range a.Analysis.Recommendations {
		p.InfoPretty(r)
	}
}

func budgetStatus(l models.BudgetLevel) string {
	switch l {
	case models.BudgetExceeded:
		return "error"
	case models.BudgetWarning:
		return "warning"
	case models.BudgetOK:
		return "success"
	}
	return "info"
}

// NewBudgetCmd returns the command that sets the monthly energy budget.
func NewBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget <amount>",
		Short: "Set the monthly energy budget in dollars (0 clears it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil || amount < 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
				return errors.New(errors.ErrCodeInvalidInput, "budget must be a non-negative amount").
					WithDetail("value", args[0])
			}

			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := c.SetBudget(ctx, amount); err != nil {
				return err
			}
			a, err := c.GetAnalytics(ctx)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), a.Budget)
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.RenderStatus(budgetStatus(a.Budget.Level), a.Budget.Message))
			return nil
		},
	}
}

func stateClient(cmd *cobra.Command) (daemon.Client, error) {
	addr := daemonAddr(cmd)
	if daemon.Reachable(addr) {
		token, err := loadToken()
		if err != nil {
			return nil, err
		}
		return daemon.NewRemoteClient(addr, token), nil
	}
	return daemon.NewLocalClient(cli.GetOptions(cmd).ConfigDir)
}

func printState(w io.Writer, s models.State) {
	t := theme.DefaultTheme

	fmt.Fprintln(w, t.Header.Render("Devices"))
	for _, id := range s.DeviceIDs() {
		d := s.Devices[id]
		power := t.Off.Render("off")
		if d.On {
			power = t.On.Render("on ")
		}
		var detail string
		switch d.Kind {
		case models.KindLight:
			detail = fmt.Sprintf("%d%% x%d", d.Brightness, d.Count)
		case models.KindThermostat:
			detail = fmt.Sprintf("target %.1f°F current %.1f°F", d.Target, d.Current)
			if d.EcoMode {
				detail += " eco"
			}
		}
		fmt.Fprintf(w, "  %s %-20s %s\n", power, d.Name, t.Muted.Render(detail))
	}

	env := s.Environment
	fmt.Fprintln(w)
	fmt.Fprintln(w, t.Header.Render("Environment"))
	fmt.Fprintf(w, "  %.1f°F  %.0f%% humidity  %s\n", env.Temperature, env.Humidity, env.Weather)
	fmt.Fprintf(w, "  %s  $%.4f/h  $%.2f/day  $%.2f/month  %s\n",
		t.Highlight.Render(fmt.Sprintf("%.0f W", env.Energy.Current)),
		env.Energy.Costs.Hourly, env.Energy.Costs.Daily, env.Energy.Costs.Monthly,
		t.Success.Render(fmt.Sprintf("saving $%.4f/h", env.Energy.Costs.Savings)))

	fmt.Fprintln(w)
	fmt.Fprintln(w, t.Header.Render("System"))
	armed := t.Muted.Render("disarmed")
	if s.System.Armed {
		armed = t.Warning.Render("armed")
	}
	fmt.Fprintf(w, "  %s  %s\n", s.System.HomeAway, armed)
}
