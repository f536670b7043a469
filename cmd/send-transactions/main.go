package main

import (
	"context"
	"os"

	"github.com/ethereum/go-ethereum/log"
)

var (
	GitCommit = ""
	GitDate   = ""
)

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, true)))
	app := NewCli(GitCommit, GitDate)
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Error("Application failed", "err", err)
		os.Exit(1)
	}
}
