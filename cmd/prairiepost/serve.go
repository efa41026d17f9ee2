// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/prairiepost/prairiepost/internal/auth"
	authpg "github.com/prairiepost/prairiepost/internal/auth/postgres"
	"github.com/prairiepost/prairiepost/internal/chat"
	chatpg "github.com/prairiepost/prairiepost/internal/chat/postgres"
	"github.com/prairiepost/prairiepost/internal/config"
	"github.com/prairiepost/prairiepost/internal/gateway"
	"github.com/prairiepost/prairiepost/internal/httpapi"
	"github.com/prairiepost/prairiepost/internal/logging"
	"github.com/prairiepost/prairiepost/internal/observability"
	"github.com/prairiepost/prairiepost/internal/store"
)

const (
	shutdownTimeout = 5 * time.Second

	// sessionSweepInterval paces the background prune of expired session rows.
	sessionSweepInterval = 15 * time.Minute
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Prairie Post server",
		Long: `Start the HTTP server: auth endpoints, the chat API, the realtime
stream, and the metrics/health endpoints.`,
		RunE: runServe,
	}

	// Flag names match the config file keys so both feed the same loader.
	cmd.Flags().String("http_addr", config.DefaultHTTPAddr, "HTTP listen address")
	cmd.Flags().String("metrics_addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database_url", "", "PostgreSQL connection URL (default: DATABASE_URL env)")
	cmd.Flags().String("log_format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().Duration("session_ttl", config.DefaultSessionTTL, "absolute session lifetime")
	cmd.Flags().Int("max_login_failures", config.DefaultMaxLoginFails, "failed logins before lockout")
	cmd.Flags().Duration("lockout_duration", config.DefaultLockoutDuration, "account lockout duration")
	cmd.Flags().Bool("cookie_secure", false, "mark the session cookie Secure")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	databaseURL := cfg.DatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url or DATABASE_URL environment variable is required")
	}

	logger := logging.Setup("prairiepost", version, cfg.LogFormat, nil)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger.Info("connecting to database")
	pool, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	attempts := authpg.NewLoginAttemptRepository(pool)
	messages := chatpg.NewMessageRepository(pool)

	policy := auth.LockoutPolicy{
		MaxFails:     cfg.MaxLoginFails,
		LockDuration: cfg.LockoutDuration,
	}
	authSvc, err := auth.NewServiceWithLogger(users, sessions, attempts,
		auth.NewArgon2idHasher(), policy, cfg.SessionTTL, logger)
	if err != nil {
		return err
	}
	resolver, err := auth.NewResolver(sessions, users, logger)
	if err != nil {
		return err
	}

	// The observability server owns the metrics registry; the services and
	// the hub all record into it.
	obsServer := observability.NewServer(cfg.MetricsAddr, func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	})
	authSvc.SetMetrics(obsServer.Metrics())

	hub := gateway.NewHub(logger, obsServer.Metrics())
	defer hub.Close()

	chatSvc, err := chat.NewService(messages, hub, logger)
	if err != nil {
		return err
	}
	chatSvc.SetMetrics(obsServer.Metrics())
	sseHandler := gateway.NewHandler(hub, resolver, logger)

	apiServer, err := httpapi.NewServer(httpapi.Config{
		Addr:         cfg.HTTPAddr,
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
	}, authSvc, resolver, chatSvc, sseHandler, logger)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		obsErrCh, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
			logger.Warn("failed to stop observability server during cleanup", "error", stopErr.Error())
		}
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")
	go sweepExpiredSessions(ctx, authSvc, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Prairie Post server started")
	logger.Info("server ready",
		"http_addr", apiServer.Addr(),
		"metrics_addr", obsServer.Addr(),
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err.Error())
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err.Error())
	}

	logger.Info("shutdown complete")
	return nil
}

// sweepExpiredSessions prunes expired session rows on an interval until the
// context is cancelled. Expired sessions are already unusable; the sweep only
// reclaims storage.
func sweepExpiredSessions(ctx context.Context, svc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.PruneExpiredSessions(ctx); err != nil {
				logger.Warn("session sweep failed", "error", err.Error())
			}
		}
	}
}

// monitorServerErrors watches a server's error channel and cancels the
// process context on failure, so one dead server shuts the whole process down.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err.Error(),
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
