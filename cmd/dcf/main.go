package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dcf_valuation/pkg/core/config"
	"dcf_valuation/pkg/core/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dcf",
	Short: "Discounted cash flow valuation from a set of operating assumptions",
	Long: `dcf projects unlevered free cash flows from twelve operating assumptions,
discounts them at WACC with a Gordon growth terminal value, and bridges
enterprise value to a per-share intrinsic value. Every run also produces a
WACC × terminal growth sensitivity grid.

Assumption files may be JSON, Hjson or YAML.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		// CLI logs go to stderr; stdout carries the report.
		logger, err = logging.New(level, true)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	valueCmd.Flags().BoolVar(&repair, "repair", false, "repair malformed JSON/Hjson before parsing")
	valueCmd.Flags().StringVarP(&format, "format", "f", "terminal", "output format: terminal, markdown, html or json")
	valueCmd.Flags().IntVar(&horizon, "horizon", 0, "explicit forecast years (default from config)")
	valueCmd.Flags().StringVar(&currency, "currency", "", "ISO currency code for money columns (default from config)")

	remoteCmd.Flags().StringVar(&remoteURL, "url", "", "server base URL (default from config or DCF_API_URL)")
	remoteCmd.Flags().IntVar(&retries, "retries", -1, "retry attempts after the first (default from config)")
	remoteCmd.Flags().BoolVar(&repair, "repair", false, "repair malformed JSON/Hjson before parsing")
	remoteCmd.Flags().BoolVar(&remoteReport, "report", false, "fetch the HTML report instead of the JSON result")

	rootCmd.AddCommand(valueCmd, remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
