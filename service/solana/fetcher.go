package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solfeat/service/httpapi"
	"github.com/brojonat/solfeat/service/metrics"
)

// FetcherConfig configures history paging and retries.
type FetcherConfig struct {
	BaseURL         string
	APIKey          string
	PageSize        int
	MaxTransactions int
	MaxRetries      int
	BackoffUnit     time.Duration
	BackoffCeiling  time.Duration
}

// Fetcher pages through the enhanced transaction history of an address.
type Fetcher struct {
	client  *httpapi.Client
	cfg     FetcherConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewFetcher creates a history fetcher on top of a provider client.
// If metrics is nil, no metrics will be recorded.
func NewFetcher(client *httpapi.Client, cfg FetcherConfig, m *metrics.Metrics, logger *slog.Logger) *Fetcher {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// page is one decoded history page. size counts every element returned,
// including the ones that failed to decode.
type page struct {
	txs           []RawTransaction
	size          int
	lastSignature string
}

// FetchAllTransactions returns a lazy sequence over the address history,
// newest first. Each range over the sequence fetches from the start again.
// The sequence ends on an empty or short page, at the transaction cap, after
// a page exhausts its retries, or when ctx is done.
func (f *Fetcher) FetchAllTransactions(ctx context.Context, address string) iter.Seq[RawTransaction] {
	return func(yield func(RawTransaction) bool) {
		var before string
		total := 0

		for pageNum := 1; ; pageNum++ {
			if ctx.Err() != nil {
				return
			}

			f.logger.DebugContext(ctx, "fetching transaction page",
				"address", address,
				"page", pageNum,
				"before", before,
			)
			p := f.fetchPage(ctx, address, before)
			if p.size == 0 {
				return
			}

			txs := p.txs
			truncated := false
			if remaining := max(f.cfg.MaxTransactions-total, 0); len(txs) >= remaining {
				txs = txs[:remaining]
				truncated = true
			}

			for _, tx := range txs {
				if !yield(tx) {
					return
				}
			}
			total += len(txs)

			if truncated {
				f.logger.WarnContext(ctx, "transaction cap reached, truncating history",
					"address", address,
					"max_transactions", f.cfg.MaxTransactions,
				)
				return
			}
			if p.size < f.cfg.PageSize || p.lastSignature == "" {
				return
			}
			before = p.lastSignature
		}
	}
}

func (f *Fetcher) pageURL(address, before string) string {
	q := url.Values{}
	q.Set("api-key", f.cfg.APIKey)
	q.Set("limit", strconv.Itoa(f.cfg.PageSize))
	if before != "" {
		q.Set("before", before)
	}
	return fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", f.cfg.BaseURL, url.PathEscape(address), q.Encode())
}

// fetchPage requests one page, retrying transient failures. An exhausted
// page is returned empty.
func (f *Fetcher) fetchPage(ctx context.Context, address, before string) page {
	endpoint := f.pageURL(address, before)
	provider := f.client.Provider()

	for attempt := range f.cfg.MaxRetries {
		var elems []json.RawMessage
		err := f.client.GetJSON(ctx, endpoint, nil, &elems)
		if err == nil {
			p := f.decodePage(ctx, address, elems)
			if f.metrics != nil {
				f.metrics.RecordFetchedPage(provider, len(p.txs))
			}
			return p
		}
		if ctx.Err() != nil {
			return page{}
		}

		rateLimited := httpapi.IsRateLimited(err)
		backoff := f.backoff(attempt, rateLimited)
		reason := "error"
		if rateLimited {
			reason = "rate_limit"
		}
		if f.metrics != nil {
			f.metrics.RecordAPIRetry(provider, reason)
		}

		if attempt == f.cfg.MaxRetries-1 {
			f.logger.WarnContext(ctx, "giving up on transaction page after retries",
				"address", address,
				"attempts", attempt+1,
				"error", err,
			)
			break
		}

		f.logger.WarnContext(ctx, "failed to fetch transaction page, sleeping before retry",
			"address", address,
			"attempt", attempt+1,
			"reason", reason,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
		if err := httpapi.Sleep(ctx, backoff); err != nil {
			return page{}
		}
	}
	return page{}
}

// backoff is 2^attempt units, capped at the ceiling for rate limits.
func (f *Fetcher) backoff(attempt int, rateLimited bool) time.Duration {
	d := f.cfg.BackoffUnit * time.Duration(1<<uint(attempt))
	if rateLimited && d > f.cfg.BackoffCeiling {
		d = f.cfg.BackoffCeiling
	}
	return d
}

func (f *Fetcher) decodePage(ctx context.Context, address string, elems []json.RawMessage) page {
	p := page{size: len(elems), txs: make([]RawTransaction, 0, len(elems))}
	for i, elem := range elems {
		var tx RawTransaction
		if err := json.Unmarshal(elem, &tx); err != nil {
			f.logger.WarnContext(ctx, "skipping undecodable transaction",
				"address", address,
				"index", i,
				"error", err,
			)
			if f.metrics != nil {
				f.metrics.RecordTransactionSkipped("decode_error")
			}
			continue
		}
		p.txs = append(p.txs, tx)
	}

	if len(elems) > 0 {
		var last struct {
			Signature string `json:"signature"`
		}
		if err := json.Unmarshal(elems[len(elems)-1], &last); err == nil && last.Signature != "" {
			p.lastSignature = last.Signature
		} else if len(p.txs) > 0 {
			p.lastSignature = p.txs[len(p.txs)-1].Signature
		}
	}
	return p
}
