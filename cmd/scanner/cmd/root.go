package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scanner",
	Short: "A multi-timeframe confluence signal scanner with trade lifecycle tracking",
	Long: `Scanner polls market candles, computes a confluence indicator set and
emits trade signals when momentum, pullback or mean-reversion conditions
line up across timeframes.

It provides:
  - Momentum, trend-pullback and mean-reversion detection rules
  - Cross-timeframe conflict, duplicate and proximity filtering
  - Trade lifecycle tracking with breakeven, extension and reversal alerts
  - Telegram, webhook and log notification sinks
  - Redis stream publishing and a SQLite candle cache
  - Prometheus metrics and a health endpoint`,
}

var cfgPath string

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "config.yaml", "path to YAML config file")
}
