package main

import (
	"todolist/internal/app"

	"github.com/spf13/cobra"
)

// NewPruneSessionsCmd creates the prune-sessions subcommand.
func NewPruneSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sessions from the session store",
		RunE:  runPruneSessions,
	}
}

func runPruneSessions(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStores(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	auth := app.NewAuthService(st.users, st.sessions, app.NewBcryptHasher(cfg.BcryptCost), app.SessionPolicy{
		Lifetime:    cfg.SessionLifetime,
		IdleTimeout: cfg.SessionIdleTimeout,
	})
	n, err := auth.PruneSessions(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Pruned %d expired sessions\n", n)
	return nil
}
