package main

import (
	"log/slog"

	"todolist/internal/config"
	"todolist/internal/logging"

	"github.com/spf13/cobra"
)

// Global flag for config file path.
var configFile string

// NewRootCmd creates the root command for the todolist CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "todolist",
		Short:        "Multi-user to-do list web application",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneSessionsCmd())

	return cmd
}

// loadConfig resolves configuration for cmd and builds its logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.SetupLevel("todolist", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())
	return cfg, logger, nil
}
