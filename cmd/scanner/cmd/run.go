package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/predeshen/telegramscalperbot-sub000/config"
	"github.com/predeshen/telegramscalperbot-sub000/internal/logger"
	"github.com/predeshen/telegramscalperbot-sub000/internal/scanner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scanner until interrupted",
	Long: `Start the scan loop for every configured symbol and block until
SIGINT or SIGTERM.

Credentials come from the environment (or a .env file); everything else
from the YAML config. A missing config file runs the built-in defaults.

Example:
  scanner run -f config.yaml`,
	RunE: runRun,
}

var debug bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func runRun(cmd *cobra.Command, args []string) error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger.Init("scanner", level)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Printf("[scanner] symbols: %v, timeframes: %v, poll: %s",
		cfg.Scanner.Symbols, cfg.Scanner.Timeframes, cfg.Scanner.PollInterval)

	svc, err := scanner.New(cfg)
	if err != nil {
		return fmt.Errorf("init scanner: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return svc.Run(ctx)
}
