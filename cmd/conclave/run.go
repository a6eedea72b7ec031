package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/conclave/internal/app"
	"github.com/vovakirdan/conclave/internal/config"
	"github.com/vovakirdan/conclave/internal/llm"
)

func newRunCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a node (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNode(cmd, *configPath)
		},
	}
	addNodeFlags(cmd)
	return cmd
}

func runNode(cmd *cobra.Command, configPath string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if err := requireAPIKey(cfg); err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("node_id", cfg.Node.ID).
		Str("group", cfg.Network.Group).
		Str("backend", cfg.LLM.Backend).
		Msg("starting conclave node")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("node exited with error: %w", err)
	}
	logger.Info().Msg("node stopped")
	return nil
}

func requireAPIKey(cfg config.Config) error {
	backend, err := llm.ParseBackend(cfg.LLM.Backend)
	if err != nil {
		return err
	}
	env := backend.APIKeyEnv()
	if env != "" && cfg.LLM.APIKey == "" {
		return fmt.Errorf("%s backend needs an API key: set --api-key or %s", backend, env)
	}
	return nil
}
