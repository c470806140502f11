package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
)

var (
	// Command-line flags
	configFiles []string // later files override earlier ones
	serverPort  int
	serverHost  string
	logLevel    string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "AI-assisted Nifty 50 stock analysis",
	Long: `FinSight resolves a stock name or NSE symbol to a Nifty 50 company, scrapes its
key metrics from Screener.in and asks a language model for bullish and bearish
insights. Run without a subcommand to start the HTTP and WebSocket server.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd, queryCmd, entitiesCmd, checkCmd, versionCmd)
}

// loadConfig runs before every command.
// Order: defaults -> config files -> .env -> env -> CLI flags, then logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("finsight.toml"); err == nil {
			configFiles = append(configFiles, "finsight.toml")
		} else if _, err := os.Stat("deployments/local/finsight.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/finsight.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)
	if logLevel != "" {
		config.Logging.Level = logLevel
	}

	if err := config.Validate(); err != nil {
		return err
	}

	logger = common.InitLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Str("provider", config.Narrative.Provider).
		Str("entities_table", config.Entities.TablePath).
		Msg("Resolved configuration")

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
