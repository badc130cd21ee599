package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/john-revops11/keyword-gemini-insight/internal/config"
	"github.com/john-revops11/keyword-gemini-insight/internal/logging"
)

var (
	// Global flags
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kwctl",
	Short: "Keyword research pipeline tools",
	Long: `kwctl manages the keyword store and runs the enrichment pipeline
from the command line.

Configuration is read from the environment (DATABASE_URL, GEMINI_API_KEY,
GOOGLE_CLIENT_ID, ...) and optionally from the file named by CONFIG_FILE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c

		level := c.LogLevel
		if verbose {
			level = "debug"
		}
		// Logs go to stderr so command output stays machine-readable.
		logger = logging.NewTo(zapcore.AddSync(cmd.ErrOrStderr()), level, c.LogFormat)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	analyzeCmd.Flags().StringVar(&analyzeToken, "token", "", "Search Console access token to use for lookups")
	analyzeCmd.Flags().StringVar(&analyzeCode, "code", "", "OAuth authorization code to exchange before the lookups")
	analyzeCmd.Flags().BoolVar(&analyzeStdin, "stdin", false, "Read additional keywords from stdin, one per line")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", formatJSON, "Output format: json or yaml")

	rootCmd.AddCommand(migrateCmd, importCmd, analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
