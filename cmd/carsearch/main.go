// carsearch runs credit-gated vehicle searches from the terminal.
//
// Usage:
//
//	carsearch search --user alice "red toyota rav4 in calgary"
//	carsearch search --user alice --brand bmw --model x5 --postal M5V2T6
//	carsearch credits open --user alice
//	carsearch credits add --user alice 10
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/WessleyAI/carsearch/engine/app"
	"github.com/WessleyAI/carsearch/pkg/config"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "carsearch",
		Usage:   "Search vehicle listings across providers and manage search credits",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "ledger",
				Value:   "sqlite",
				Usage:   "Credit ledger store (sqlite, postgres, memory)",
				EnvVars: []string{"LEDGER_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "db",
				Value:   "carsearch.db",
				Usage:   "SQLite ledger path",
				EnvVars: []string{"SQLITE_PATH"},
			},
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Load configuration from this .env file",
				EnvVars: []string{"CARSEARCH_ENV_FILE"},
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			creditsCommand(),
		},
	}
}

// stack builds the pipeline from the environment plus global flags.
func stack(c *cli.Context) (*app.Stack, error) {
	var cfg config.Config
	if f := c.String("env-file"); f != "" {
		cfg = config.Load(f)
	} else {
		cfg = config.Load()
	}
	cfg.LogLevel = c.String("log-level")
	cfg.LedgerDriver = c.String("ledger")
	cfg.SQLitePath = c.String("db")

	log := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return app.Build(c.Context, cfg, log)
}
