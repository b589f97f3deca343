package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	adapthttp "todolist/internal/adapter/http"
	"todolist/internal/app"
	"todolist/internal/metrics"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// pruneInterval is how often the server removes expired sessions.
const pruneInterval = 15 * time.Minute

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	authSvc := app.NewAuthService(st.users, st.sessions, app.NewBcryptHasher(cfg.BcryptCost), app.SessionPolicy{
		Lifetime:      cfg.SessionLifetime,
		IdleTimeout:   cfg.SessionIdleTimeout,
		TouchInterval: time.Minute,
	})
	taskSvc := app.NewTaskService(st.tasks)

	opts := adapthttp.Options{
		CookieName:   cfg.CookieName,
		SecureCookie: cfg.SecureCookie,
		Metrics:      metrics.New(),
		Logger:       logger,
		Health:       st.Ping,
	}
	if cfg.SSOEnabled() {
		sso, err := adapthttp.NewSSOConfig(ctx, cfg.SSOIssuer, cfg.SSOClientID, cfg.SSOClientSecret, cfg.SSORedirectURL)
		if err != nil {
			return oops.Code("SSO_SETUP_FAILED").With("issuer", cfg.SSOIssuer).Wrap(err)
		}
		opts.SSO = sso
	}

	go pruneLoop(ctx, authSvc, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adapthttp.New(authSvc, taskSvc, opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "storage", cfg.Storage, "sessions", cfg.SessionBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return oops.Code("SERVER_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// pruneLoop deletes expired sessions until ctx is done. Redis sessions
// expire on their own and report nothing pruned.
func pruneLoop(ctx context.Context, auth *app.AuthService, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PruneSessions(ctx)
			if err != nil {
				logger.Error("prune sessions failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned expired sessions", "count", n)
			}
		}
	}
}
