package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/personal-bank/personal_bank/internal/config"
	"github.com/personal-bank/personal_bank/internal/logging"
)

var (
	settings = config.NewViper()

	rootCmd = &cobra.Command{
		Use:           "personalbank",
		Short:         "Custodial deposit and withdrawal contract",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := config.BindFlags(rootCmd.PersistentFlags(), settings); err != nil {
		panic(fmt.Errorf("failed to bind global flags: %w", err))
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashTokenCmd)
}

// loadConfig reads the configuration after flags are parsed and builds the logger for it.
func loadConfig(v *viper.Viper) (config.Config, *slog.Logger, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}
