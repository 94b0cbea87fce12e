// Package cmd implements the homed command line.
package cmd

import (
	"errors"

	"github.com/grovetools/homed/cli"
	"github.com/spf13/cobra"
)

// errStopped makes `homed status` exit non-zero without printing an error.
var errStopped = errors.New("daemon stopped")

// IsSilent reports whether err should only affect the exit code.
func IsSilent(err error) bool {
	return errors.Is(err, errStopped)
}

// NewRootCmd assembles the homed command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("homed", "Shared smart-home state with live sync")
	root.Long = `homed keeps one authoritative smart-home state (devices, environment and
system mode) and pushes every change to all authenticated clients.`

	root.AddCommand(
		NewServeCmd(),
		NewStopCmd(),
		NewStatusCmd(),
		NewLoginCmd(),
		NewLogoutCmd(),
		NewUserCmd(),
		NewStateCmd(),
		NewSetCmd(),
		NewSessionsCmd(),
		NewAnalyticsCmd(),
		NewBudgetCmd(),
		NewConfigCmd(),
		NewWatchCmd(),
		cli.NewVersionCommand("homed"),
	)
	cli.SetStyledHelp(root)
	return root
}
