package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtestd",
	Short: "A portfolio backtesting engine and streaming API server",
	Long: `Backtestd simulates multi-ticker trading strategies against
historical daily price data.

It provides tools for:
  - Running backtests from the command line against CSV price data
  - Serving backtests over HTTP with SSE and websocket event streams
  - Combining weighted strategies into a single decision per ticker
  - Journaling trades, snapshots, and run summaries to SQLite or CSV
  - Computing Sharpe, Sortino, drawdown, and win-rate statistics`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
