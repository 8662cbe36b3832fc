// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/medref/internal/library"
	"github.com/pdiddy/medref/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search and login over HTTP",
	Long: `Serve starts the HTTP transport:

  GET  /health             provider readiness and session status
  POST /login              {target, username, password}
  POST /logout             {target}
  POST /search/aggregate   {query, max_results, perplexity_model, general, save}
  POST /search/:provider   one provider, errors mapped to HTTP status

Sessions live in memory and are lost when the server stops.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logins, _ := cmd.Flags().GetStringSlice("login")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg)
	if err := a.login(ctx, logins); err != nil {
		return err
	}

	lib, err := library.Open(cfg.Library)
	if err != nil {
		logger.Warn("library unavailable, saving disabled", zap.Error(err))
		lib = nil
	} else {
		defer lib.Close()
	}

	srv := server.New(cfg.Server, a.aggregator, a.pool, lib, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8765)")
	serveCmd.Flags().StringSlice("login", nil, "sign in at startup with stored credentials: uptodate, mksap")

	rootCmd.AddCommand(serveCmd)
}
