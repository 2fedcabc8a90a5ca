package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	ex "stockdash/data/extensions"
)

func TestInstrumentTransportCountsByProviderAndCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	m := NewMetrics()
	client := &http.Client{Transport: m.InstrumentTransport("yahoo", nil)}

	for _, path := range []string{"/", "/", "/missing"} {
		resp, err := client.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	ex.AssertAreEqual(t, "ok", 2.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("yahoo", "200")))
	ex.AssertAreEqual(t, "not found", 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("yahoo", "404")))
	ex.AssertAreEqual(t, "histograms", 1, testutil.CollectAndCount(m.ProviderDuration))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.DashboardBuilds.WithLabelValues("success").Inc()
	m.SectionFailures.WithLabelValues("news").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	ex.AssertAreEqual(t, "status", http.StatusOK, rec.Code)
	ex.AssertAreEqual(t, "builds", true, strings.Contains(text, `stockdash_dashboard_builds_total{outcome="success"} 1`))
	ex.AssertAreEqual(t, "sections", true, strings.Contains(text, `stockdash_dashboard_section_failures_total{section="news"} 1`))
}

func TestIndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.SyncFailures.Inc()

	ex.AssertAreEqual(t, "a", 1.0, testutil.ToFloat64(a.SyncFailures))
	ex.AssertAreEqual(t, "b", 0.0, testutil.ToFloat64(b.SyncFailures))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.CacheResult("news", "hit")
	m.SectionFailed("news")
	m.BuildFinished("success", time.Second)
	m.RowsSynced("IBM", 3)
	m.SyncFailed()
}

func TestRecordingHelpers(t *testing.T) {
	m := NewMetrics()
	m.CacheResult("news", "hit")
	m.CacheResult("news", "hit")
	m.RowsSynced("IBM", 3)
	m.BuildFinished("failure", time.Second)

	ex.AssertAreEqual(t, "cache", 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("news", "hit")))
	ex.AssertAreEqual(t, "rows", 3.0, testutil.ToFloat64(m.SyncedRows.WithLabelValues("IBM")))
	ex.AssertAreEqual(t, "builds", 1.0, testutil.ToFloat64(m.DashboardBuilds.WithLabelValues("failure")))
}
