package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geobus/backend-go/internal/app"
	"github.com/geobus/backend-go/internal/config"
	"github.com/geobus/backend-go/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the API over HTTP",
		Long: `Serves the API on HTTP_ADDR with Prometheus metrics on METRICS_ADDR (or /metrics
when unset) and prunes old positions every PRUNE_INTERVAL.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	a, err := app.New(ctx, cfg, config.GetCacheConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		RequireAuth: cfg.RequireAuth,
		APIToken:    cfg.APIToken,
		Observer:    a.Metrics,
		Timeout:     cfg.HTTPTimeout,
	}
	if cfg.MetricsAddr == "" {
		opts.MetricsHandler = a.Metrics.Handler()
	} else {
		metricsSrv := a.Metrics.Serve(cfg.MetricsAddr)
		defer shutdown(metricsSrv)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(a.Router.HandleRequest, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go a.Pruner(cfg.RetentionHours).Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("strategy", cfg.NearestStrategy).Msg("Serving API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	return shutdown(srv)
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Str("addr", srv.Addr).Msg("Shutdown failed")
		return err
	}
	return nil
}
