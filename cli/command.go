// Package cli holds the command scaffolding shared by homed's subcommands.
package cli

import (
	"github.com/grovetools/homed/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds the persistent flags every command accepts.
type CommandOptions struct {
	ConfigDir  string
	Addr       string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a command with the standard homed flags.
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Directory to search for homed.yml (default: current directory)")
	cmd.PersistentFlags().String("addr", "", "Daemon address (default: server.listen from config)")

	SetStyledHelp(cmd)
	return cmd
}

// GetLogger returns the CLI logger, honoring --verbose and --json.
func GetLogger(cmd *cobra.Command) *logrus.Entry {
	entry := logging.NewLogger("homed-cli")

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		entry.Logger.SetLevel(logrus.DebugLevel)
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		entry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return entry
}

// GetOptions extracts the persistent flags from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configDir, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigDir:  configDir,
		Addr:       addr,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}
