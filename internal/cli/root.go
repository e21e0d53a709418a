// Package cli wires the command-line entry points: scrape, serve, sessions,
// login and inspect.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// keyringService namespaces stored credentials in the OS keyring.
const keyringService = "table-scraper"

var (
	verbose  bool
	jsonLogs bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "scraper",
	Short: "Declarative, selector-driven web table scraper",
	Long: `scraper extracts tabular data from web applications described by a
declarative config: selector fallbacks, login flow, pagination strategy and
normalization rules. Sessions are persisted so interactive logins happen
once.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; flags and real env win over it
		_ = godotenv.Load()
		l, err := buildLogger()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	defer func() {
		_ = logger.Sync()
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(inspectCmd)
}

func buildLogger() (*zap.Logger, error) {
	if jsonLogs {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}
