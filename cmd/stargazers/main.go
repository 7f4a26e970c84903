package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickstaa/get-stargazers-info/pkg/config"
	"github.com/rickstaa/get-stargazers-info/pkg/logger"
)

const usage = `Usage: stargazers <command> [flags]

Commands:
  enumerate   list the stargazers of OWNER/REPO
  collect     collect activity counters for every stargazer
  stats       print statistics over the collected counters
  export      copy collected counters into SQLite and/or an xlsx workbook
  serve       serve the stage outputs over HTTP

Run 'stargazers <command> -h' for the flags of a command.
`

type command func(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error

var commands = map[string]command{
	"enumerate": runEnumerate,
	"collect":   runCollect,
	"stats":     runStats,
	"export":    runExport,
	"serve":     runServe,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := os.Args[1]
	if name == "-h" || name == "--help" || name == "help" {
		fmt.Fprint(os.Stdout, usage)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	// Load configuration
	if err := config.Load(); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := config.AppConfig.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, config.AppConfig, os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.WithField("command", name).Warn("Interrupted, progress saved; rerun with RESUME=true to continue")
			os.Exit(130)
		}
		logger.Fatalf("%s failed: %v", name, err)
	}
}
