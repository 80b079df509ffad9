package temporal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/brojonat/solfeat/service/features"
	"github.com/brojonat/solfeat/service/processor"
	"github.com/brojonat/solfeat/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

// MockExtractor is a testify mock of the processor surface.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractEntry(ctx context.Context, entry processor.Entry) (*features.Record, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*features.Record), args.Error(1)
}

func (m *MockExtractor) Publish(ctx context.Context, rec *features.Record) {
	m.Called(ctx, rec)
}

func (m *MockExtractor) PersistRecords(ctx context.Context, outputPath string, records []*features.Record) (int, error) {
	args := m.Called(ctx, outputPath, records)
	return args.Int(0), args.Error(1)
}

func TestExtractAddress(t *testing.T) {
	entry := processor.Entry{Address: walletA, Class: 1}

	tests := []struct {
		name        string
		record      *features.Record
		err         error
		wantOutcome string
		wantPublish bool
	}{
		{
			name:        "processed",
			record:      testRecord(walletA, 1, features.DataQualityNormal),
			wantOutcome: OutcomeProcessed,
			wantPublish: true,
		},
		{
			name:        "no transactions",
			err:         fmt.Errorf("%w for %s", processor.ErrNoTransactions, walletA),
			wantOutcome: OutcomeSkipped,
		},
		{
			name:        "invalid address",
			err:         fmt.Errorf("%w: bad", solana.ErrInvalidAddress),
			wantOutcome: OutcomeSkipped,
		},
		{
			name:        "unexpected failure",
			err:         errors.New("panic while processing"),
			wantOutcome: OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &MockExtractor{}
			if tt.record != nil {
				extractor.On("ExtractEntry", mock.Anything, entry).Return(tt.record, nil)
			} else {
				extractor.On("ExtractEntry", mock.Anything, entry).Return(nil, tt.err)
			}
			if tt.wantPublish {
				extractor.On("Publish", mock.Anything, tt.record).Return()
			}

			activities := NewActivities(extractor, testLogger())
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestActivityEnvironment()
			env.RegisterActivity(activities.ExtractAddress)

			val, err := env.ExecuteActivity(activities.ExtractAddress, ExtractAddressInput{Entry: entry})
			require.NoError(t, err)

			var result ExtractAddressResult
			require.NoError(t, val.Get(&result))
			assert.Equal(t, walletA, result.Address)
			assert.Equal(t, tt.wantOutcome, result.Outcome)
			if tt.record != nil {
				require.NotNil(t, result.Record)
				assert.Equal(t, tt.record.Features.Names(), result.Record.Features.Names())
				assert.Empty(t, result.Reason)
			} else {
				assert.Nil(t, result.Record)
				assert.NotEmpty(t, result.Reason)
			}

			extractor.AssertExpectations(t)
			if !tt.wantPublish {
				extractor.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestProcessedAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.csv")
	table := processor.NewTable()
	table.Append(testRecord(walletA, 1, features.DataQualityNormal))
	table.Append(testRecord(walletB, 0, features.DataQualityNormal))
	require.NoError(t, table.Save(path))

	activities := NewActivities(&MockExtractor{}, testLogger())
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(activities.ProcessedAddresses)

	val, err := env.ExecuteActivity(activities.ProcessedAddresses, ProcessedAddressesInput{OutputPath: path})
	require.NoError(t, err)

	var result ProcessedAddressesResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, []string{walletA, walletB}, result.Addresses)

	val, err = env.ExecuteActivity(activities.ProcessedAddresses, ProcessedAddressesInput{OutputPath: path + ".missing"})
	require.NoError(t, err)
	require.NoError(t, val.Get(&result))
	assert.Empty(t, result.Addresses)
}

func TestPersistFeatures(t *testing.T) {
	extractor := &MockExtractor{}
	extractor.On("PersistRecords", mock.Anything, "/tmp/out.csv", mock.Anything).Return(5, nil).Once()
	extractor.On("PersistRecords", mock.Anything, "/tmp/bad.csv", mock.Anything).Return(0, errors.New("disk full")).Once()

	activities := NewActivities(extractor, testLogger())
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(activities.PersistFeatures)

	records := []*features.Record{testRecord(walletA, 1, features.DataQualityNormal)}
	val, err := env.ExecuteActivity(activities.PersistFeatures, PersistFeaturesInput{OutputPath: "/tmp/out.csv", Records: records})
	require.NoError(t, err)

	var result PersistFeaturesResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, 5, result.TableSize)

	_, err = env.ExecuteActivity(activities.PersistFeatures, PersistFeaturesInput{OutputPath: "/tmp/bad.csv", Records: records})
	assert.Error(t, err)

	extractor.AssertExpectations(t)
}
