package handler

import (
	"fmt"
	"net/http"

	"github.com/tallyapp/tally/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "tally_expenses_total{op=\"created\"} %d\n", snap.ExpensesCreated)
	writeMetric(w, "tally_expenses_total{op=\"updated\"} %d\n", snap.ExpensesUpdated)
	writeMetric(w, "tally_expenses_total{op=\"deleted\"} %d\n", snap.ExpensesDeleted)

	writeMetric(w, "tally_list_duration_seconds_count %d\n", snap.ListDurationCount)
	writeMetric(w, "tally_list_duration_seconds_sum %.6f\n", float64(snap.ListDurationTotalNs)/1e9)

	writeMetric(w, "tally_summary_cache_hits_total %d\n", snap.SummaryCacheHits)
	writeMetric(w, "tally_summary_cache_misses_total %d\n", snap.SummaryCacheMisses)

	writeMetric(w, "tally_events_published_total{status=\"success\"} %d\n", snap.EventsPublished)
	writeMetric(w, "tally_events_published_total{status=\"failed\"} %d\n", snap.EventsFailed)

	writeMetric(w, "tally_rate_limited_total %d\n", snap.RateLimited)
	writeMetric(w, "tally_auth_failures_total %d\n", snap.AuthFailures)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
