package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/brojonat/solfeat/service/processor"
	"github.com/brojonat/solfeat/service/temporal"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func submitBatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Start a durable batch extraction of a manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "manifest",
				Aliases:  []string{"m"},
				Usage:    "CSV manifest with Address and FLAG columns",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Feature table CSV written by the worker",
				Value:   "features.csv",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Block until the workflow completes and print its summary",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			ctx := context.Background()

			entries, err := processor.ReadManifest(c.String("manifest"), logger)
			if err != nil {
				return err
			}
			output, err := filepath.Abs(c.String("output"))
			if err != nil {
				return fmt.Errorf("failed to resolve output path: %w", err)
			}

			tc, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
			if err != nil {
				return err
			}
			defer tc.Close()

			run, err := tc.StartBatch(ctx, temporal.BatchInput{
				Entries:    entries,
				OutputPath: output,
				SaveEvery:  cfg.SaveEvery,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s started %s (%d entries)\n", color.GreenString("✓"), run.WorkflowID, len(entries))

			if !c.Bool("wait") {
				return outputJSON(run)
			}

			summary, err := tc.WaitBatch(ctx, run)
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		},
	}
}
