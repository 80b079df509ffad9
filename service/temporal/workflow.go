package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/processor"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// BatchInput describes one manifest extraction run.
type BatchInput struct {
	Entries    []processor.Entry `json:"entries"`
	OutputPath string            `json:"output_path"`
	SaveEvery  int               `json:"save_every"`
}

// ExtractBatchWorkflow extracts every entry sequentially, skipping addresses
// already in the output table, and persists the new records every SaveEvery
// records and once at the end.
func ExtractBatchWorkflow(ctx workflow.Context, input BatchInput) (*processor.Summary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ExtractBatchWorkflow started",
		"entries", len(input.Entries),
		"output_path", input.OutputPath,
	)

	saveEvery := input.SaveEvery
	if saveEvery < 1 {
		saveEvery = 1
	}

	summary := &processor.Summary{Total: len(input.Entries)}

	shortCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})
	// Long histories page slowly under rate limits.
	extractCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var existing *ProcessedAddressesResult
	err := workflow.ExecuteActivity(shortCtx, a.ProcessedAddresses, ProcessedAddressesInput{OutputPath: input.OutputPath}).Get(ctx, &existing)
	if err != nil {
		return summary, fmt.Errorf("failed to load processed addresses: %w", err)
	}
	done := make(map[string]bool, len(existing.Addresses))
	for _, addr := range existing.Addresses {
		done[addr] = true
	}
	summary.TableSize = len(existing.Addresses)

	var pending []*features.Record
	persist := func() error {
		var res *PersistFeaturesResult
		err := workflow.ExecuteActivity(shortCtx, a.PersistFeatures, PersistFeaturesInput{
			OutputPath: input.OutputPath,
			Records:    pending,
		}).Get(ctx, &res)
		if err != nil {
			return fmt.Errorf("failed to persist features: %w", err)
		}
		summary.TableSize = res.TableSize
		pending = nil
		return nil
	}

	for _, entry := range input.Entries {
		if done[entry.Address] {
			summary.Resumed++
			continue
		}

		var res *ExtractAddressResult
		err := workflow.ExecuteActivity(extractCtx, a.ExtractAddress, ExtractAddressInput{Entry: entry}).Get(ctx, &res)
		if err != nil {
			logger.Error("extract activity failed", "address", entry.Address, "error", err)
			summary.Failed++
			continue
		}

		switch res.Outcome {
		case OutcomeProcessed:
			if res.Record == nil {
				summary.Failed++
				continue
			}
			done[entry.Address] = true
			summary.Count(res.Record)
			pending = append(pending, res.Record)
		case OutcomeSkipped:
			summary.Skipped++
			continue
		default:
			summary.Failed++
			continue
		}

		if len(pending) >= saveEvery {
			if err := persist(); err != nil {
				return summary, err
			}
		}
	}

	if len(pending) > 0 {
		if err := persist(); err != nil {
			return summary, err
		}
	}

	logger.Info("ExtractBatchWorkflow completed",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"table_size", summary.TableSize,
	)
	return summary, nil
}
