package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/homed/cli"
	"github.com/grovetools/homed/config"
	"github.com/grovetools/homed/internal/daemon/auth"
	"github.com/grovetools/homed/internal/daemon/collector"
	"github.com/grovetools/homed/internal/daemon/engine"
	"github.com/grovetools/homed/internal/daemon/hub"
	"github.com/grovetools/homed/internal/daemon/pidfile"
	"github.com/grovetools/homed/internal/daemon/server"
	"github.com/grovetools/homed/internal/daemon/store"
	"github.com/grovetools/homed/internal/daemon/users"
	"github.com/grovetools/homed/logging"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/paths"
	"github.com/grovetools/homed/pkg/profiling"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewServeCmd returns the command that runs the daemon in the foreground.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Long: `Run the homed daemon in the foreground. It serves the HTTP API, the
state channel at /ws and, when server.static_dir is set, the dashboard.

Examples:
# listen on the configured address
homed serve
# listen on every interface
homed serve --listen 0.0.0.0:3001`,
	}
	prof := profiling.New()
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, prof)
	}
	cmd.Flags().String("listen", "", "Override server.listen")
	prof.AddFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, prof *profiling.Recorder) error {
	if err := prof.Begin(); err != nil {
		return err
	}
	defer func() {
		if err := prof.End(cmd.ErrOrStderr()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}()

	phase := prof.Phase("load config")
	layered, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := layered.Final
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	logger, err := logging.NewLoggerWithConfig("homed", cfg)
	if err != nil {
		return err
	}
	durations, err := cfg.ParseDurations()
	if err != nil {
		return err
	}
	phase()

	// 1. Acquire lock
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	pidPath := paths.PidFilePath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	// 2. Accounts and tokens
	phase = prof.Phase("open users")
	usersPath, err := configPath(layered, cfg.Auth.UsersFile)
	if err != nil {
		return err
	}
	if usersPath == "" {
		usersPath = paths.UsersFilePath()
	}
	us, err := users.Open(usersPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "your-secret-key" {
		logger.Warn("Using the built-in token secret; set JWT_SECRET or auth.secret")
	}
	au := auth.New(cfg.Auth.Secret, durations.TokenTTL)
	phase()

	// 3. Store, hub and engine
	phase = prof.Phase("build state")
	st := store.New(cfg.InitialState(), energy.New(cfg.Tariff()),
		store.WithLogger(logger.WithField("component", "store")),
		store.WithBufferSize(cfg.Server.SendBuffer),
	)
	h := hub.New(st, au, logger.WithField("component", "hub"), hub.Config{
		PingInterval:   durations.PingInterval,
		PongTimeout:    durations.PongTimeout,
		WriteTimeout:   durations.WriteTimeout,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	dir := cli.GetOptions(cmd).ConfigDir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	eng := engine.New(st, logger)
	eng.Register(collector.NewConfigCollector(config.WatchDirs(dir), func() (*config.Config, error) {
		return config.LoadFrom(dir)
	}, collector.DefaultDebounce, logger.WithField("component", "config")))
	phase()

	// 4. Server
	srv := server.New(logger, eng, h, au, us)
	files := make([]string, 0, len(layered.Layers))
	for _, l := range layered.Layers {
		files = append(files, l.Path)
	}
	srv.SetRunningConfig(&server.RunningConfig{
		Listen:         cfg.Server.Listen,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PingInterval:   durations.PingInterval.String(),
		PongTimeout:    durations.PongTimeout.String(),
		WriteTimeout:   durations.WriteTimeout.String(),
		MaxMessageSize: cfg.Server.MaxMessageSize,
		TokenTTL:       durations.TokenTTL.String(),
		Tariff:         cfg.Tariff(),
		ConfigFiles:    files,
		StartedAt:      time.Now(),
	})
	staticDir, err := configPath(layered, cfg.Server.StaticDir)
	if err != nil {
		return err
	}
	if staticDir != "" {
		srv.SetStaticDir(staticDir)
	}

	// 5. Handle signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			logger.Info("Received stop signal")
		case <-ctx.Done():
			return
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	// 6. Start engine in background
	engineDone := make(chan struct{})
	go func() {
		eng.Start(ctx)
		close(engineDone)
	}()

	// 7. Serve (blocking)
	logger.WithFields(logrus.Fields{
		"pid":   os.Getpid(),
		"users": us.Len(),
	}).Info("Starting daemon")
	prof.Report(logger)
	err = srv.ListenAndServe(cfg.Server.Listen)
	cancel()
	<-engineDone
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// NewStopCmd returns the command that stops a running daemon.
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

// NewStatusCmd returns the command that reports whether the daemon runs.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				return errStopped
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Running (PID: %d)\nAddress: %s\n", pid, daemonAddr(cmd))
			return nil
		},
	}
}
