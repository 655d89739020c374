package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"PriceLens/internal/di"
	"PriceLens/pkg/config"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, tick collector and workers",
	Long: `Run the service until SIGINT or SIGTERM. Environment variables
override the config file (SYMBOLS, KAFKA_BROKERS, REDIS_ADDR, LOG_LEVEL, PORT).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadWithEnv(serveConfigPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		app, err := di.InitializeApp(cfg)
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		return app.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "configs/config.yaml", "config file path")
}
