// Package main provides the entry point for the libdb command line and HTTP API server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonathan/libdb/internal/config"
	"github.com/jonathan/libdb/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "libdb",
	Short: "Topic-driven open-source library catalog",
	Long: "libdb discovers open-source libraries for topics, classifies each with an LLM and " +
		"keeps a deduplicated catalog queryable by library and by topic.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile  string
	logLevel string

	appConfig *config.Config
	appLogger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .libdb.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error, critical")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration from file, environment and flags before any
// subcommand runs
func loadConfig(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}
	if err := config.BindEnv(v); err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("port"); f != nil {
		if err := v.BindPFlag("server.port", f); err != nil {
			return fmt.Errorf("failed to bind --port: %w", err)
		}
	}
	if logLevel != "" {
		v.Set("log.level", logLevel)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	appConfig = cfg
	appLogger = logging.New(logging.Config{
		Writer: cmd.ErrOrStderr(),
		Format: cfg.Log.Format,
		Level:  logging.ParseLevel(cfg.Log.Level),
	})
	return nil
}
