package processor

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brojonat/solfeat/service/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(address string, class int, values ...any) *features.Record {
	v := features.NewVector()
	for i := 0; i+1 < len(values); i += 2 {
		v.Set(values[i].(string), values[i+1].(float64))
	}
	return &features.Record{
		Address:  address,
		Class:    class,
		Features: v,
		Quality: features.Quality{
			DataQualityWarning: features.DataQualityNormal,
			PriceQuality:       features.PriceQualityGood,
			BehaviorPattern:    features.BehaviorMixed,
		},
	}
}

func TestTable_Columns(t *testing.T) {
	table := NewTable()
	table.Append(record(walletA, 1, "total_txs", 3.0, "sol_to_token_ratio", math.Inf(1)))
	table.Append(record(walletB, 0, "total_txs", 4.0, "extra", 1.0))

	assert.Equal(t, []string{
		"total_txs", "sol_to_token_ratio", "extra",
		"address", "class", "data_quality_warning", "price_quality", "behavior_pattern",
	}, table.Columns())
}

func TestTable_WriteFormatsInfinity(t *testing.T) {
	table := NewTable()
	table.Append(record(walletA, 1, "total_txs", 3.0, "sol_to_token_ratio", math.Inf(1)))

	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "total_txs,sol_to_token_ratio,address,class,data_quality_warning,price_quality,behavior_pattern", lines[0])
	assert.Equal(t, "3,inf,"+walletA+",1,NORMAL,GOOD,MIXED", lines[1])
}

func TestTable_SaveReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "features.csv")

	table := NewTable()
	table.Append(record(walletA, 1, "total_txs", 3.0, "sol_to_token_ratio", math.Inf(1)))
	table.Append(record(walletB, 0, "total_txs", 4.5, "sol_to_token_ratio", 0.25))
	require.NoError(t, table.Save(path))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, table.ProcessedAddresses(), loaded.ProcessedAddresses())
	assert.Equal(t, table.Columns(), loaded.Columns())

	recs := loaded.Records()
	require.Len(t, recs, 2)
	assert.True(t, math.IsInf(recs[0].Features.Value("sol_to_token_ratio"), 1))
	assert.Equal(t, 4.5, recs[1].Features.Value("total_txs"))
	assert.Equal(t, features.BehaviorMixed, recs[1].Quality.BehaviorPattern)
	assert.Equal(t, 0, recs[1].Class)
}

func TestReadTable_CoercesInvalidNumbers(t *testing.T) {
	input := "total_txs,success_rate,address,class,price_quality\n" +
		"abc,nan," + walletA + ",1,POOR\n" +
		"7,," + walletB + ",x,GOOD\n"

	table, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)

	recs := table.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, 0.0, recs[0].Features.Value("total_txs"))
	assert.Equal(t, 0.0, recs[0].Features.Value("success_rate"))
	assert.Equal(t, features.PriceQualityPoor, recs[0].Quality.PriceQuality)
	assert.Equal(t, 7.0, recs[1].Features.Value("total_txs"))
	assert.Equal(t, -1, recs[1].Class)
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()

	table, err := LoadTable(filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("foo,bar\n1,2\n"), 0o644))
	_, err = LoadTable(bad)
	assert.Error(t, err)
}

func TestExportRecord(t *testing.T) {
	dir := t.TempDir()
	rec := record(walletA, -1, "total_txs", 3.0, "sol_to_token_ratio", math.Inf(1))

	path, err := ExportRecord(dir, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, walletA+"_features.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "inf", raw["sol_to_token_ratio"])
	assert.Equal(t, walletA, raw["address"])

	_, err = ExportRecord(dir, nil)
	assert.Error(t, err)
}
