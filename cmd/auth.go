package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grovetools/homed/cli"
	"github.com/grovetools/homed/internal/daemon/users"
	"github.com/grovetools/homed/logging"
	"github.com/grovetools/homed/pkg/daemon"
	"github.com/grovetools/homed/pkg/paths"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd returns the command that logs in and saves the session token.
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in to the daemon",
		Long: `Log in and save the session token for the other commands. The
password is read from the terminal unless --password-stdin is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			addr := daemonAddr(cmd)
			c := daemon.NewRemoteClient(addr, "")
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			resp, err := c.Login(ctx, args[0], password)
			if err != nil {
				return err
			}
			if err := saveToken(resp.Token); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).
				Success(fmt.Sprintf("Logged in as %s", resp.User.Name))
			return nil
		},
	}
	cmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
	return cmd
}

// NewLogoutCmd returns the command that forgets the saved token.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.Remove(paths.TokenFilePath()); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// NewUserCmd returns the account management commands.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserRegisterCmd())
	cmd.AddCommand(newUserShowCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name> <email>",
		Short: "Add an account to the users file",
		Long: `Add an account directly to the users file. This works whether or
not the daemon runs; a running daemon picks the account up on restart.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			layered, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := layered.Final.Auth.UsersFile
			if path == "" {
				path = paths.UsersFilePath()
			}
			store, err := users.Open(path)
			if err != nil {
				return err
			}
			u, err := store.Create(args[0], args[1], password)
			if err != nil {
				return err
			}
			cli.GetLogger(cmd).WithField("path", path).Debug("Users file updated")
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s <%s> (%s)\n", u.Name, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
	return cmd
}

func newUserRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <name> <email>",
		Short: "Register an account with the running daemon and log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			c := daemon.NewRemoteClient(daemonAddr(cmd), "")
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			resp, err := c.Register(ctx, args[0], args[1], password)
			if err != nil {
				return err
			}
			if err := saveToken(resp.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s <%s>\n", resp.User.Name, resp.User.Email)
			return nil
		},
	}
	cmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
	return cmd
}

func newUserShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the logged-in user's settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			settings, err := c.GetSettings(ctx)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				return writeJSON(cmd.OutOrStdout(), settings)
			}
			p := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			p.Field("Name", settings.Name)
			p.Field("Email", settings.Email)
			p.Field("Units", settings.System.TemperatureUnit)
			p.Field("Timezone", settings.System.Timezone)
			p.Field("Theme", settings.System.Theme)
			p.Field("Webhook", settings.API.WebhookURL)
			return nil
		},
	}
}

// readPassword reads a password from stdin with --password-stdin, or from
// the terminal without echo.
func readPassword(cmd *cobra.Command) (string, error) {
	if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin {
		return readLine(cmd.InOrStdin())
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
