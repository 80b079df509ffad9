package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/brojonat/solfeat/service/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCache_FirstWriteWins(t *testing.T) {
	c := NewMemory(testLogger())

	c.PutTokenSol("BONK_2024-01-01_DezXAZ8z7PnrnRJjz3wX", 0)
	c.PutTokenSol("BONK_2024-01-01_DezXAZ8z7PnrnRJjz3wX", 0.5)

	v, ok := c.TokenSol("BONK_2024-01-01_DezXAZ8z7PnrnRJjz3wX")
	require.True(t, ok)
	assert.Equal(t, 0.0, v, "a cached failure is not overwritten")

	_, ok = c.TokenSol("missing")
	assert.False(t, ok)

	c.PutTokenInfo("mint", tokens.TokenInfo{Symbol: "A", Decimals: 6})
	c.PutTokenInfo("mint", tokens.TokenInfo{Symbol: "B", Decimals: 9})
	info, ok := c.TokenInfo("mint")
	require.True(t, ok)
	assert.Equal(t, "A", info.Symbol)
}

func TestJSONFileBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "solana_price_cache.json")

	c := Open(ctx, NewJSONFileBackend(path), nil, testLogger())
	c.PutSolBTC("SOL_BTC_2024-03-01", 0.0021)
	c.PutSolBTC("SOL_USD_2024-03-01", 128.5)
	c.PutTokenSol("JUP_2024-03-01_JUPyiwrYJFskUPiHa7hk", 0.0079)
	c.PutTokenInfo("JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", tokens.TokenInfo{Symbol: "JUP", Decimals: 6, Name: "Jupiter"})
	require.NoError(t, c.Save(ctx))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "sol_btc")
	assert.Contains(t, doc, "token_sol")
	assert.Contains(t, doc, "token_info")

	reloaded := Open(ctx, NewJSONFileBackend(path), nil, testLogger())
	assert.Equal(t, Stats{SolBTC: 2, TokenSol: 1, TokenInfo: 1}, reloaded.Stats())

	v, ok := reloaded.SolBTC("SOL_USD_2024-03-01")
	require.True(t, ok)
	assert.Equal(t, 128.5, v)
}

func TestJSONFileBackend_MissingFileIsEmpty(t *testing.T) {
	b := NewJSONFileBackend(filepath.Join(t.TempDir(), "none.json"))

	snap, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.SolBTC)
	assert.NotNil(t, snap.TokenInfo)
}

func TestOpen_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := Open(context.Background(), NewJSONFileBackend(path), nil, testLogger())
	assert.Equal(t, Stats{}, c.Stats())
}

func TestJSONFileBackend_PartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sol_btc":{"SOL_BTC_2023-05-01":0.0008}}`), 0o644))

	c := Open(context.Background(), NewJSONFileBackend(path), nil, testLogger())
	assert.Equal(t, Stats{SolBTC: 1}, c.Stats())

	c.PutTokenSol("k", 1)
	assert.Equal(t, 1, c.Stats().TokenSol)
}

func TestPebbleBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "price-cache")

	backend, err := NewPebbleBackend(dir)
	require.NoError(t, err)

	c := Open(ctx, backend, nil, testLogger())
	c.PutSolBTC("SOL_BTC_2022-01-10", 0.0031)
	c.PutTokenSol("RAY_2022-01-10_4k3Dyjzvzp8eMZWUXbBC", 0.031)
	c.PutTokenSol("FAIL_2022-01-10_abc", 0)
	c.PutTokenInfo("4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", tokens.TokenInfo{Symbol: "RAY", Decimals: 6, Name: "Raydium"})
	require.NoError(t, c.Save(ctx))
	require.NoError(t, c.Close())

	backend, err = NewPebbleBackend(dir)
	require.NoError(t, err)
	defer backend.Close()

	reloaded := Open(ctx, backend, nil, testLogger())
	assert.Equal(t, Stats{SolBTC: 1, TokenSol: 2, TokenInfo: 1}, reloaded.Stats())

	v, ok := reloaded.TokenSol("FAIL_2022-01-10_abc")
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	info, ok := reloaded.TokenInfo("4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R")
	require.True(t, ok)
	assert.Equal(t, "RAY", info.Symbol)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("sol_btc0"), prefixUpperBound("sol_btc/"))
}
