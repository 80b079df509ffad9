package solana

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/solfeat/service/httpapi"
	"github.com/brojonat/solfeat/service/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "C8H4v4c2eA6njjgzvWSrCpLdYg3hWSygoVsi4RkUrzjV"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(serverURL string, cfg FetcherConfig) *Fetcher {
	cfg.BaseURL = serverURL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffUnit == 0 {
		cfg.BackoffUnit = time.Millisecond
	}
	if cfg.BackoffCeiling == 0 {
		cfg.BackoffCeiling = 5 * time.Millisecond
	}
	client := httpapi.NewClient(httpapi.Options{Provider: "helius", Timeout: time.Second})
	return NewFetcher(client, cfg, nil, testLogger())
}

// historyPage renders n transactions with signatures prefix-0..prefix-(n-1).
func historyPage(prefix string, n int) string {
	items := make([]string, 0, n)
	for i := range n {
		items = append(items, fmt.Sprintf(`{"signature":"%s-%d","slot":%d,"timestamp":1700000000,"fee":5000}`, prefix, i, 1000+i))
	}
	return "[" + strings.Join(items, ",") + "]"
}

func collect(f *Fetcher, address string) []RawTransaction {
	var out []RawTransaction
	for tx := range f.FetchAllTransactions(context.Background(), address) {
		out = append(out, tx)
	}
	return out
}

func TestFetchAllTransactions_Paginates(t *testing.T) {
	var befores []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/addresses/"+testWallet+"/transactions", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api-key"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))

		before := r.URL.Query().Get("before")
		befores = append(befores, before)
		switch before {
		case "":
			w.Write([]byte(historyPage("a", 3)))
		case "a-2":
			w.Write([]byte(historyPage("b", 3)))
		case "b-2":
			w.Write([]byte(historyPage("c", 1)))
		default:
			t.Errorf("unexpected before cursor %q", before)
			w.Write([]byte("[]"))
		}
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 3, MaxTransactions: 100})
	txs := collect(f, testWallet)

	require.Len(t, txs, 7)
	assert.Equal(t, "a-0", txs[0].Signature)
	assert.Equal(t, "c-0", txs[6].Signature)
	assert.Equal(t, []string{"", "a-2", "b-2"}, befores)
}

func TestFetchAllTransactions_StopsOnEmptyPage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(historyPage("a", 2)))
			return
		}
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 2, MaxTransactions: 100})
	assert.Len(t, collect(f, testWallet), 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchAllTransactions_TruncatesAtCap(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Write([]byte(historyPage(fmt.Sprintf("p%d", n), 4)))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 4, MaxTransactions: 6})
	txs := collect(f, testWallet)

	require.Len(t, txs, 6)
	assert.Equal(t, "p2-1", txs[5].Signature)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchAllTransactions_RateLimitedGivesUp(t *testing.T) {
	// Ten 429 responses are queued; only MaxRetries of them are consumed.
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 10 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(historyPage("late", 1)))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 100, MaxTransactions: 100, MaxRetries: 3})

	var txs []RawTransaction
	require.NotPanics(t, func() {
		txs = collect(f, testWallet)
	})
	assert.Empty(t, txs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchAllTransactions_CountsEachRateLimitOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	client := httpapi.NewClient(httpapi.Options{Provider: "helius", Timeout: time.Second, Metrics: m})
	f := NewFetcher(client, FetcherConfig{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		PageSize:        100,
		MaxTransactions: 100,
		MaxRetries:      3,
		BackoffUnit:     time.Millisecond,
		BackoffCeiling:  5 * time.Millisecond,
	}, m, testLogger())

	assert.Empty(t, collect(f, testWallet))

	expected := `
# HELP solfeat_api_rate_limit_hits_total Total number of rate limit responses (429) by provider
# TYPE solfeat_api_rate_limit_hits_total counter
solfeat_api_rate_limit_hits_total{provider="helius"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "solfeat_api_rate_limit_hits_total"))
}

func TestFetchAllTransactions_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(historyPage("ok", 1)))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 100, MaxTransactions: 100, MaxRetries: 3})
	txs := collect(f, testWallet)

	require.Len(t, txs, 1)
	assert.Equal(t, "ok-0", txs[0].Signature)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchAllTransactions_SkipsUndecodableElements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"signature":"good","slot":1,"timestamp":1},{"signature":"bad","slot":"not-a-number"}]`))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 10, MaxTransactions: 100})
	txs := collect(f, testWallet)

	require.Len(t, txs, 1)
	assert.Equal(t, "good", txs[0].Signature)
}

func TestFetchAllTransactions_Restartable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(historyPage("a", 2)))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 5, MaxTransactions: 100})
	seq := f.FetchAllTransactions(context.Background(), testWallet)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 2, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchAllTransactions_StopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(historyPage("a", 2)))
	}))
	defer server.Close()

	f := newTestFetcher(server.URL, FetcherConfig{PageSize: 2, MaxTransactions: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := 0
	for range f.FetchAllTransactions(ctx, testWallet) {
		count++
		if count == 3 {
			cancel()
		}
	}
	assert.Equal(t, 4, count)
}

func TestFetcherBackoff(t *testing.T) {
	f := &Fetcher{cfg: FetcherConfig{BackoffUnit: time.Second, BackoffCeiling: 30 * time.Second}}

	assert.Equal(t, time.Second, f.backoff(0, true))
	assert.Equal(t, 4*time.Second, f.backoff(2, true))
	assert.Equal(t, 30*time.Second, f.backoff(6, true))
	assert.Equal(t, 64*time.Second, f.backoff(6, false))
}
