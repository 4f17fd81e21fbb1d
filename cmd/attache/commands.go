package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/attache"
	"github.com/loykin/attache/internal/health"
	"github.com/loykin/attache/internal/logger"
)

func newLogger(flags *GlobalFlags) *slog.Logger {
	level := slog.LevelInfo
	if flags.Verbose {
		level = slog.LevelDebug
	}
	return logger.New(os.Stderr, level)
}

func createRunCommand(globalFlags *GlobalFlags, flags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Spawn the backend and supervise it until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			fc, err := attache.LoadConfig(globalFlags.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if flags.Dev {
				fc.Mode = string(attache.ModeDev)
			}
			log := newLogger(globalFlags)

			if err := attache.RegisterMetricsDefault(); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}
			app, err := attache.New(fc, attache.NewHeadlessShell(log), log)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			ctl, err := app.NewControlServer()
			if err != nil {
				return fmt.Errorf("start control server: %w", err)
			}
			if ctl != nil {
				defer func() { _ = ctl.Close() }()
				log.Info("control server listening", "addr", fc.Control.Listen, "base_path", fc.Control.BasePath)
			}

			if err := app.Boot(); err != nil {
				// The diagnostic page is already rendered; with a control
				// server up a restart can still recover, so stay resident.
				if ctl == nil {
					return err
				}
				log.Error("boot failed, waiting for restart or signal", "error", err)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			log.Info("shutting down", "signal", sig.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.Dev, "dev", false, "attach to an externally started backend instead of spawning one")
	return cmd
}

func createLogsCommand(globalFlags *GlobalFlags, flags *LogsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the last lines of the backend log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := attache.LoadConfig(globalFlags.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sink := logger.NewSink(fc.SinkConfig())
			lines := sink.Tail(flags.Lines)
			if len(lines) == 0 {
				cmd.Printf("no log output at %s\n", sink.Path())
				return nil
			}
			for _, line := range lines {
				cmd.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&flags.Lines, "lines", "n", 20, "number of lines to print")
	return cmd
}

func createHealthCommand(globalFlags *GlobalFlags, flags *HealthFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the backend health endpoint once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := attache.LoadConfig(globalFlags.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			url := flags.URL
			if url == "" {
				url = fc.HealthURL()
			}
			log := newLogger(globalFlags)
			if err := health.New(log).Wait(url, 250*time.Millisecond, flags.Timeout); err != nil {
				return fmt.Errorf("backend not healthy at %s: %w", url, err)
			}
			cmd.Printf("backend healthy at %s\n", url)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.URL, "url", "", "health endpoint URL (defaults to the configured backend)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 3*time.Second, "how long to keep probing before giving up")
	return cmd
}
