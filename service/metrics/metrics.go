package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Outbound API metrics
	apiCallsTotal     *prometheus.CounterVec
	apiCallDuration   *prometheus.HistogramVec
	apiRateLimitHits  *prometheus.CounterVec
	apiRetries        *prometheus.CounterVec
	fetchPageSize     *prometheus.HistogramVec
	transactionsTotal *prometheus.CounterVec

	// Parsing and resolution metrics
	transfersParsedTotal    *prometheus.CounterVec
	transactionsSkipped     *prometheus.CounterVec
	priceResolutionsTotal   *prometheus.CounterVec
	tokenLookupsTotal       *prometheus.CounterVec
	cacheLookupsTotal       *prometheus.CounterVec
	priceValidationFailures prometheus.Counter

	// Orchestration metrics
	addressesProcessedTotal *prometheus.CounterVec
	addressDuration         *prometheus.HistogramVec
	sinkWritesTotal         *prometheus.CounterVec

	// Database metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		apiCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_api_calls_total",
				Help: "Total number of outbound API calls by provider and status class",
			},
			[]string{"provider", "status"},
		),
		apiCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solfeat_api_call_duration_seconds",
				Help:    "Duration of outbound API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"provider"},
		),
		apiRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_api_rate_limit_hits_total",
				Help: "Total number of rate limit responses (429) by provider",
			},
			[]string{"provider"},
		),
		apiRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_api_retries_total",
				Help: "Total number of outbound API retry attempts",
			},
			[]string{"provider", "reason"},
		),
		fetchPageSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solfeat_fetch_page_size",
				Help:    "Number of transactions returned per history page",
				Buckets: []float64{0, 1, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"provider"},
		),
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_transactions_fetched_total",
				Help: "Total number of raw transactions fetched",
			},
			[]string{"provider"},
		),

		transfersParsedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_transfers_parsed_total",
				Help: "Total number of normalized transfers produced by type",
			},
			[]string{"tx_type"},
		),
		transactionsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_transactions_skipped_total",
				Help: "Total number of raw transactions or transfers skipped",
			},
			[]string{"reason"},
		),
		priceResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_price_resolutions_total",
				Help: "Total number of token price resolutions by layer and outcome",
			},
			[]string{"layer", "outcome"},
		),
		tokenLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_token_lookups_total",
				Help: "Total number of token metadata lookups by resolving source",
			},
			[]string{"source"},
		),
		cacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_cache_lookups_total",
				Help: "Total number of price/token cache lookups",
			},
			[]string{"mapping", "result"},
		),
		priceValidationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "solfeat_price_validation_failures_total",
				Help: "Total number of token prices left unresolved after every layer",
			},
		),

		addressesProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_addresses_processed_total",
				Help: "Total number of addresses handled by outcome",
			},
			[]string{"status"},
		),
		addressDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solfeat_address_duration_seconds",
				Help:    "Wall-clock time spent extracting one address",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
			},
			[]string{"status"},
		),
		sinkWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeat_sink_writes_total",
				Help: "Total number of feature record writes per sink",
			},
			[]string{"sink", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stream"},
		),
	}
}

// Outbound API metric helpers

// RecordAPICall records an outbound API call with duration.
func (m *Metrics) RecordAPICall(provider string, statusCode int, duration float64) {
	m.apiCallsTotal.WithLabelValues(provider, statusCodeToString(statusCode)).Inc()
	m.apiCallDuration.WithLabelValues(provider).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(provider string) {
	m.apiRateLimitHits.WithLabelValues(provider).Inc()
}

// RecordAPIRetry records a retry attempt.
func (m *Metrics) RecordAPIRetry(provider, reason string) {
	m.apiRetries.WithLabelValues(provider, reason).Inc()
}

// RecordFetchedPage records the size of one transaction history page.
func (m *Metrics) RecordFetchedPage(provider string, count int) {
	m.fetchPageSize.WithLabelValues(provider).Observe(float64(count))
	m.transactionsTotal.WithLabelValues(provider).Add(float64(count))
}

// Parsing and resolution metric helpers

// RecordTransferParsed records one normalized transfer.
func (m *Metrics) RecordTransferParsed(txType string) {
	m.transfersParsedTotal.WithLabelValues(txType).Inc()
}

// RecordTransactionSkipped records a transaction or transfer dropped during parsing.
func (m *Metrics) RecordTransactionSkipped(reason string) {
	m.transactionsSkipped.WithLabelValues(reason).Inc()
}

// RecordPriceResolution records which layer produced (or failed to produce) a price.
func (m *Metrics) RecordPriceResolution(layer, outcome string) {
	m.priceResolutionsTotal.WithLabelValues(layer, outcome).Inc()
}

// RecordPriceValidationFailure records a token price that no layer could resolve.
func (m *Metrics) RecordPriceValidationFailure() {
	m.priceValidationFailures.Inc()
}

// RecordTokenLookup records which source answered a token metadata lookup.
func (m *Metrics) RecordTokenLookup(source string) {
	m.tokenLookupsTotal.WithLabelValues(source).Inc()
}

// RecordCacheLookup records a cache hit or miss for one of the cache mappings.
func (m *Metrics) RecordCacheLookup(mapping string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(mapping, result).Inc()
}

// Orchestration metric helpers

// RecordAddressProcessed records the outcome of extracting one address.
func (m *Metrics) RecordAddressProcessed(status string, duration float64) {
	m.addressesProcessedTotal.WithLabelValues(status).Inc()
	m.addressDuration.WithLabelValues(status).Observe(duration)
}

// RecordSinkWrite records a feature record write to an output sink.
func (m *Metrics) RecordSinkWrite(sink string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sinkWritesTotal.WithLabelValues(sink, status).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(stream, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.WithLabelValues(stream).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code == 429:
		return "429"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	case code == 0:
		return "transport_error"
	default:
		return "unknown"
	}
}
