package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"socialid/internal/platform/config"
	"socialid/internal/platform/logger"
)

// NewRootCmd builds the command tree. Every subcommand shares the config
// file flag and the config override flags.
func NewRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "socialid",
		Short:        "Credential and session service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	config.RegisterFlags(cmd.PersistentFlags())

	load := func(c *cobra.Command) (config.Config, error) {
		return config.Load(configFile, c.Flags())
	}

	cmd.AddCommand(NewServeCmd(load))
	cmd.AddCommand(NewWorkerCmd(load))
	cmd.AddCommand(NewMigrateCmd(load))
	cmd.AddCommand(NewDeadLettersCmd(load))
	return cmd
}

type configLoader func(*cobra.Command) (config.Config, error)

func newLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Log.Format, cfg.Log.Level, nil)
}
