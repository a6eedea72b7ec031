package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/conclave/internal/config"
	"github.com/vovakirdan/conclave/internal/console"
	"github.com/vovakirdan/conclave/internal/transport/multicast"
)

func newListenCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print bus traffic until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			t, err := multicast.Open(ctx, transportConfig(cfg), logger, nil)
			if err != nil {
				return err
			}
			defer t.Close()

			logger.Info().Str("group", t.Group().String()).Msg("listening")
			printer := console.NewPrinter(cmd.OutOrStdout(), cfg.Node.ID)
			for {
				msg, err := t.Receive(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					if errors.Is(err, multicast.ErrDecode) {
						logger.Warn().Err(err).Msg("skipping malformed datagram")
						continue
					}
					return fmt.Errorf("receive: %w", err)
				}
				printer.PrintMessage(msg)
			}
		},
	}
}

func transportConfig(cfg config.Config) multicast.Config {
	return multicast.Config{
		Group:                cfg.Network.Group,
		Interface:            cfg.Network.Interface,
		BufferSize:           cfg.Network.BufferSize,
		CompressionThreshold: cfg.Network.CompressionThreshold,
		PrefixHeuristic:      cfg.Network.PrefixHeuristic,
	}
}
