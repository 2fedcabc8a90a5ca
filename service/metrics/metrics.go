package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry so tests can build as many as they like
type Metrics struct {
	Registry *prometheus.Registry

	ProviderRequests *prometheus.CounterVec   // labels: provider, code
	ProviderDuration *prometheus.HistogramVec // labels: provider
	DashboardBuilds  *prometheus.CounterVec   // labels: outcome
	SectionFailures  *prometheus.CounterVec   // labels: section
	BuildDuration    prometheus.Histogram
	CacheLookups     *prometheus.CounterVec // labels: cache, result
	SyncedRows       *prometheus.CounterVec // labels: symbol
	SyncFailures     prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_provider_requests_total",
			Help: "Upstream provider requests by status code",
		}, []string{"provider", "code"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockdash_provider_request_duration_seconds",
			Help:    "Upstream provider request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		DashboardBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_dashboard_builds_total",
			Help: "Dashboard builds by outcome",
		}, []string{"outcome"}),
		SectionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_dashboard_section_failures_total",
			Help: "Dashboard sections rendered with an error",
		}, []string{"section"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockdash_dashboard_build_duration_seconds",
			Help:    "End to end dashboard build latency",
			Buckets: prometheus.DefBuckets,
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, error)",
		}, []string{"cache", "result"}),
		SyncedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockdash_synced_rows_total",
			Help: "Price rows written to the store",
		}, []string{"symbol"}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockdash_sync_failures_total",
			Help: "Symbols that failed to sync",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ProviderRequests,
		m.ProviderDuration,
		m.DashboardBuilds,
		m.SectionFailures,
		m.BuildDuration,
		m.CacheLookups,
		m.SyncedRows,
		m.SyncFailures,
	)

	return m
}

// InstrumentTransport counts and times every request a provider client makes through next
func (m *Metrics) InstrumentTransport(provider string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	labels := prometheus.Labels{"provider": provider}
	return promhttp.InstrumentRoundTripperCounter(
		m.ProviderRequests.MustCurryWith(labels),
		promhttp.InstrumentRoundTripperDuration(m.ProviderDuration.MustCurryWith(labels), next),
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// the helpers below accept a nil receiver so callers without metrics skip recording

func (m *Metrics) CacheResult(cache, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) SectionFailed(section string) {
	if m == nil {
		return
	}
	m.SectionFailures.WithLabelValues(section).Inc()
}

func (m *Metrics) BuildFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DashboardBuilds.WithLabelValues(outcome).Inc()
	m.BuildDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RowsSynced(symbol string, n int64) {
	if m == nil {
		return
	}
	m.SyncedRows.WithLabelValues(symbol).Add(float64(n))
}

func (m *Metrics) SyncFailed() {
	if m == nil {
		return
	}
	m.SyncFailures.Inc()
}
