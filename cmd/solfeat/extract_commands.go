package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solfeat/service/app"
	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/metrics"
	"github.com/brojonat/solfeat/service/processor"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Extract features for every address of a labeled manifest",
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
				Usage:   "Feature table CSV; existing rows are resumed",
				Value:   "features.csv",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address while running",
				EnvVars: []string{"METRICS_ADDR"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			registry := prometheus.NewRegistry()
			m := metrics.NewMetrics(registry)
			if addr := c.String("metrics-addr"); addr != "" {
				shutdown := serveMetrics(addr, registry, logger)
				defer shutdown()
			}

			a, err := app.New(ctx, cfg, app.Options{Sinks: true}, m, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Processor.ProcessManifest(ctx, c.String("manifest"), c.String("output"))
			if summary != nil {
				printSummary(summary)
			}
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return fmt.Errorf("extraction interrupted")
			}
			return nil
		},
	}
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:      "address",
		Usage:     "Extract the feature record of a single address",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "export-dir",
				Usage: "Write {address}_features.json into this directory",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Print the record as JSON",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to the JSON record (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: address")
			}
			address := c.Args().First()

			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, app.Options{}, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Processor.ProcessAddress(ctx, address)
			if err != nil {
				return fmt.Errorf("failed to extract %s: %w", address, err)
			}
			if err := a.Cache.Save(ctx); err != nil {
				logger.Warn("failed to save price cache", "error", err)
			}

			if dir := c.String("export-dir"); dir != "" {
				path, err := processor.ExportRecord(dir, rec)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "%s wrote %s\n", color.GreenString("✓"), path)
			}

			switch {
			case len(filters) > 0:
				results, err := runFilters(filters, rec)
				if err != nil {
					return err
				}
				for _, r := range results {
					if err := outputJSON(r); err != nil {
						return err
					}
				}
				return nil
			case c.Bool("json"):
				return outputJSON(rec)
			}

			printRecord(rec)
			return nil
		},
	}
}

// serveMetrics starts a /metrics server and returns its shutdown func.
func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}
}

func printSummary(s *processor.Summary) {
	fmt.Printf("%s extraction finished\n", color.GreenString("✓"))
	fmt.Printf("Addresses:          %d\n", s.Total)
	fmt.Printf("Resumed:            %d\n", s.Resumed)
	fmt.Printf("Processed:          %d\n", s.Processed)
	fmt.Printf("Skipped:            %d\n", s.Skipped)
	fmt.Printf("Failed:             %s\n", countString(s.Failed))
	fmt.Printf("Table rows:         %d\n", s.TableSize)
	fmt.Printf("Low tx count:       %s\n", countString(s.LowTxCount))
	fmt.Printf("Poor price quality: %s\n", countString(s.HighPriceFailures))
	fmt.Printf("Likely bot or DeFi: %s\n", countString(s.SuspiciousPatterns))
	fmt.Printf("Unresolved prices:  %s\n", countString(s.PriceValidationFailures))
}

// countString highlights non-zero warning counts.
func countString(n int) string {
	if n == 0 {
		return "0"
	}
	return color.YellowString("%d", n)
}

func printRecord(rec *features.Record) {
	fmt.Printf("%s %s (%d features)\n", color.GreenString("✓"), rec.Address, rec.Features.Len())
	for _, name := range rec.Features.Names() {
		fmt.Printf("  %-40s %s\n", name, features.FormatValue(rec.Features.Value(name)))
	}

	fmt.Println()
	printTag("Data quality", rec.Quality.DataQualityWarning, features.DataQualityNormal)
	printTag("Price quality", rec.Quality.PriceQuality, features.PriceQualityGood)
	printTag("Behavior", rec.Quality.BehaviorPattern, features.BehaviorMixed)
}

func printTag(label, value, normal string) {
	if value != normal {
		value = color.YellowString("%s", value)
	}
	fmt.Printf("%-14s %s\n", label+":", value)
}
