package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaidashi/hire-a-tutor/internal/config"
	"github.com/vaidashi/hire-a-tutor/internal/models"
	"github.com/vaidashi/hire-a-tutor/pkg/logger"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:           "hireatutor",
	Short:         "Discord bot that matches students with tutors through private ticket channels",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(postPanelCmd)
}

// bootstrap loads and validates configuration and builds the logger
func bootstrap(validate bool) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()

	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := models.SetNode(cfg.NodeID); err != nil {
		return nil, nil, fmt.Errorf("config: NODE_ID: %w", err)
	}

	return cfg, logger.NewLogger(cfg.LogLevel), nil
}
