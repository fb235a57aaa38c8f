package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/rebalancer/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the market cycle, scheduler and HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, container, jobs, err := bootstrap(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}
	defer container.Close()

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting rebalancer")

	if container.MidsStream != nil {
		go container.MidsStream.Run(ctx)
		log.Info().Msg("Hyperliquid mids stream started")
	}

	// First cycle runs immediately so the API has a result before the first tick
	if err := jobs.MarketCycle.RunOnce(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial market cycle failed")
	}
	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			container.Scheduler.Stop()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for an in-flight cycle (and batch) to finish
	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
	return nil
}
