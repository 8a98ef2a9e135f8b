package main

import (
	"os"

	"github.com/predeshen/telegramscalperbot-sub000/cmd/scanner/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
