package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/brojonat/solfeat/service/config"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "solfeat",
		Usage: "Solana address history to fraud feature vectors",
		Description: `Extracts per-address behavioral features from Solana transaction history.

Run a labeled manifest with "extract", inspect one address with "address",
or hand a manifest to the Temporal worker with "temporal submit".`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			extractCommand(),
			addressCommand(),
			{
				Name:  "cache",
				Usage: "Price and token metadata cache commands",
				Subcommands: []*cli.Command{
					cacheStatsCommand(),
					cacheTokenCommand(),
				},
			},
			{
				Name:  "temporal",
				Usage: "Durable batch extraction on Temporal",
				Subcommands: []*cli.Command{
					submitBatchCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Load environment variables from a dotenv file",
				EnvVars: []string{"SOLFEAT_ENV_FILE"},
				Value:   ".env",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig loads the optional env file, then the validated configuration.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return nil, err
	}
	return config.Load()
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
