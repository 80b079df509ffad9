package main

import (
	"context"
	"fmt"

	"github.com/brojonat/solfeat/service/app"
	"github.com/urfave/cli/v2"
)

func cacheStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show the number of cached entries per mapping",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			cache, err := app.OpenCache(context.Background(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer cache.Close()

			stats := cache.Stats()
			if c.Bool("json") {
				return outputJSON(stats)
			}

			fmt.Printf("Backend:    %s (%s)\n", cfg.CacheBackend, cfg.CachePath)
			fmt.Printf("SOL rates:  %d\n", stats.SolBTC)
			fmt.Printf("Token/SOL:  %d\n", stats.TokenSol)
			fmt.Printf("Token info: %d\n", stats.TokenInfo)
			return nil
		},
	}
}

func cacheTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Resolve token metadata for a mint and cache it",
		ArgsUsage: "MINT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: mint address")
			}
			mint := c.Args().First()

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			ctx := context.Background()

			a, err := app.New(ctx, cfg, app.Options{}, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			info := a.Tokens.GetTokenInfo(ctx, mint)
			if err := a.Cache.Save(ctx); err != nil {
				return fmt.Errorf("failed to save cache: %w", err)
			}
			return outputJSON(info)
		},
	}
}
