package temporal

import (
	"context"
	"errors"
	"log/slog"

	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/processor"
	"github.com/brojonat/solfeat/service/solana"
	"go.temporal.io/sdk/activity"
)

// Extractor is the processor surface the activities drive.
type Extractor interface {
	ExtractEntry(ctx context.Context, entry processor.Entry) (*features.Record, error)
	Publish(ctx context.Context, rec *features.Record)
	PersistRecords(ctx context.Context, outputPath string, records []*features.Record) (int, error)
}

// Activities holds the dependencies of the extraction activities.
type Activities struct {
	extractor Extractor
	logger    *slog.Logger
}

// NewActivities creates the activity set.
func NewActivities(extractor Extractor, logger *slog.Logger) *Activities {
	return &Activities{extractor: extractor, logger: logger}
}

// Outcomes of a single address extraction.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// ProcessedAddressesInput names the feature table to resume from.
type ProcessedAddressesInput struct {
	OutputPath string `json:"output_path"`
}

// ProcessedAddressesResult lists addresses already present in the table.
type ProcessedAddressesResult struct {
	Addresses []string `json:"addresses"`
}

// ExtractAddressInput contains the entry to extract.
type ExtractAddressInput struct {
	Entry processor.Entry `json:"entry"`
}

// ExtractAddressResult carries the record of a processed address, or the
// reason it was skipped or failed.
type ExtractAddressResult struct {
	Address string           `json:"address"`
	Outcome string           `json:"outcome"`
	Reason  string           `json:"reason,omitempty"`
	Record  *features.Record `json:"record,omitempty"`
}

// PersistFeaturesInput contains the records to add to the table.
type PersistFeaturesInput struct {
	OutputPath string             `json:"output_path"`
	Records    []*features.Record `json:"records"`
}

// PersistFeaturesResult reports the table size after the save.
type PersistFeaturesResult struct {
	TableSize int `json:"table_size"`
}

// ProcessedAddresses loads the existing table at the output path.
func (a *Activities) ProcessedAddresses(ctx context.Context, input ProcessedAddressesInput) (*ProcessedAddressesResult, error) {
	table, err := processor.LoadTable(input.OutputPath)
	if err != nil {
		return nil, err
	}
	result := &ProcessedAddressesResult{Addresses: make([]string, 0, table.Len())}
	for _, rec := range table.Records() {
		result.Addresses = append(result.Addresses, rec.Address)
	}
	return result, nil
}

// ExtractAddress runs the pipeline for one entry and fans the record out to
// the sinks. Per-address failures are reported in the result, not as
// activity errors, so a batch continues past them.
func (a *Activities) ExtractAddress(ctx context.Context, input ExtractAddressInput) (*ExtractAddressResult, error) {
	logger := activity.GetLogger(ctx)
	address := input.Entry.Address
	logger.Info("extracting address", "address", address)

	result := &ExtractAddressResult{Address: address}
	rec, err := a.extractor.ExtractEntry(ctx, input.Entry)
	switch {
	case errors.Is(err, solana.ErrInvalidAddress), errors.Is(err, processor.ErrNoTransactions):
		result.Outcome = OutcomeSkipped
		result.Reason = err.Error()
		logger.Warn("skipping address", "address", address, "reason", err)
		return result, nil
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Outcome = OutcomeFailed
		result.Reason = err.Error()
		a.logger.ErrorContext(ctx, "failed to extract address", "address", address, "error", err)
		return result, nil
	}

	a.extractor.Publish(ctx, rec)
	result.Outcome = OutcomeProcessed
	result.Record = rec
	return result, nil
}

// PersistFeatures appends the records to the table and saves it along with
// the price cache.
func (a *Activities) PersistFeatures(ctx context.Context, input PersistFeaturesInput) (*PersistFeaturesResult, error) {
	size, err := a.extractor.PersistRecords(ctx, input.OutputPath, input.Records)
	if err != nil {
		return nil, err
	}
	activity.GetLogger(ctx).Info("persisted features",
		"records", len(input.Records),
		"table_size", size,
	)
	return &PersistFeaturesResult{TableSize: size}, nil
}
