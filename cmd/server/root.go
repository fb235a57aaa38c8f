package main

import (
	"context"
	"fmt"

	"github.com/aristath/rebalancer/internal/config"
	"github.com/aristath/rebalancer/internal/di"
	"github.com/aristath/rebalancer/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	logLevel string
	pretty   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "rebalancer",
		Short:         "Threshold-triggered crypto portfolio rebalancer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", true, "human-readable console logs")

	root.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// bootstrap loads configuration, builds the logger and wires the container
func bootstrap(ctx context.Context, opts *rootOptions) (*config.Config, zerolog.Logger, *di.Container, *di.JobInstances, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log := logger.New(logger.Config{Level: level, Pretty: opts.pretty})
	logger.SetGlobalLogger(log)

	container, jobs, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return nil, log, nil, nil, fmt.Errorf("failed to wire dependencies: %w", err)
	}
	return cfg, log, container, jobs, nil
}
