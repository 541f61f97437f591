package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"lumen/internal/config"
	"lumen/internal/daemon"
	"lumen/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var stageName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one enrichment pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, logger, daemon.Options{})
			if err != nil {
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if stageName != "" {
				if err := d.RunStage(runCtx, stageName); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stage %s complete\n", stageName)
				return nil
			}
			if err := d.RunOnce(runCtx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Enrichment pass complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&stageName, "stage", "", "Run a single stage (scan, object_detection, text_recognition, location_geocode)")
	return cmd
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the enrichment daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, logger, daemon.Options{})
			if err != nil {
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return d.Run(runCtx)
		},
	}
}

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	logPath := filepath.Join(cfg.Paths.LogDir, "lumen.log")
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Paths:  []string{"stderr", logPath},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	return logger, nil
}
