// Package main is the folio command-line client. It resolves quotes and
// values ledgers in-process, without the HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/aristath/folio/internal/cli"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so --json output stays machine readable
	log := logger.New(logger.Config{
		Level:  getLogLevel(),
		Pretty: true,
		File:   cfg.LogFile,
		Output: os.Stderr,
	})

	container, err := di.WireCore(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := &cli.App{
		Resolver:  container.Resolver,
		Portfolio: container.PortfolioService,
		Logger:    log,
	}

	if err := cli.NewRootCmd(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getLogLevel keeps the CLI quiet unless FOLIO_CLI_LOG_LEVEL asks otherwise.
func getLogLevel() string {
	if level := os.Getenv("FOLIO_CLI_LOG_LEVEL"); level != "" {
		return level
	}
	return "warn"
}
