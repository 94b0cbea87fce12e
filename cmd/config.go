package cmd

import (
	"fmt"

	"github.com/grovetools/homed/cli"
	"github.com/grovetools/homed/config"
	"github.com/grovetools/homed/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd returns the configuration inspection commands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the layered configuration",
		Long: `Shows how the final configuration is built by merging layers:
1. Global config (homed.toml or homed.yml in the config directory)
2. Project config (homed.yml, searched upward)
3. Override files (homed.override.yml)
With --running the configuration of the running daemon is shown instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if running, _ := cmd.Flags().GetBool("running"); running {
				c, err := remoteClient(cmd)
				if err != nil {
					return err
				}
				defer c.Close()
				ctx, cancel := commandContext(cmd)
				defer cancel()
				raw, err := c.GetRunningConfig(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}

			layered, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), layered.Final)
			}

			w := cmd.OutOrStdout()
			for _, l := range layered.Layers {
				fmt.Fprintf(w, "# %s: %s\n", l.Source, l.Path)
			}
			if len(layered.Layers) == 0 {
				fmt.Fprintln(w, "# no configuration files; defaults only")
			}
			data, err := yaml.Marshal(layered.Final)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "---")
			_, err = w.Write(data)
			return err
		},
	}
	cmd.Flags().Bool("running", false, "Show the running daemon's configuration")
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of homed.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file or the layered configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if len(args) == 1 {
				_, err = config.Load(args[0])
			} else {
				_, err = loadConfig(cmd)
			}
			if err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Configuration is valid")
			return nil
		},
	}
}
