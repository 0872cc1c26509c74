package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/eddielth/signal-monitor/config"
	"github.com/eddielth/signal-monitor/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "signal-monitor",
	Short: "Telemetry decoding and device health monitoring for signal equipment",
	Long: `signal-monitor ingests raw telemetry of AGL/DGL/VGL/BGL/LGL signal equipment
over MQTT, decodes it against the per-type field schema, and evaluates lamp
power and device health for dashboard consumers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		level, err := logger.ParseLogLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			logger.Error("failed to display help: %v", err)
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// loadConfig reads the configuration and sets the logger up from it. The
// --log-level flag wins over the file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logger.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.InitFromConfig(level, cfg.Logger.FilePath, cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		return nil, err
	}
	return cfg, nil
}

// optionalConfig loads the configuration when the file exists, so the
// offline commands also work without one.
func optionalConfig() (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}
	return config.LoadConfig(configPath)
}
