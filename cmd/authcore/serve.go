// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/httpauth"
	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/logging"
	"github.com/holomush/authcore/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP API for account registration, login, logout,
profile lookup, and password reset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe serves the API until a signal arrives, ctx is cancelled, or a
// server fails.
func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, connect ConnectFunc) error {
	logger := logging.SetupWithOptions("authcore", version, logging.Options{
		Format: cfg.LogFormat,
		Level:  logging.ParseLevel(cfg.LogLevel),
	}, nil)
	slog.SetDefault(logger)

	logger.Info("starting authcore",
		"listen_addr", cfg.ListenAddr,
		"auth_strategy", cfg.AuthStrategy,
		"session_backend", cfg.SessionBackend,
	)

	st, err := buildStack(ctx, cfg, connect, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "build auth stack").Wrap(err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var opts []httpauth.Option
	opts = append(opts, httpauth.WithLogger(logger))

	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr,
			observability.WithReadiness(st.Ready),
			observability.WithCollectors(auth.DefaultMetrics().Collectors()...),
			observability.WithServerLogger(logger),
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		opts = append(opts, httpauth.WithMetrics(obsServer.Metrics()))
	}

	handler, err := httpauth.NewHandler(st.Service, st.Authenticator, cfg.ExemptPaths, opts...)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "create handler").Wrap(err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("addr", cfg.ListenAddr).Wrap(err)
	}

	apiServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	apiErrChan := make(chan error, 1)
	go func() {
		defer close(apiErrChan)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrChan <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("authcore listening on " + listener.Addr().String())
	logger.Info("authcore ready", "addr", listener.Addr().String())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server error", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
