package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// healthGauges are the sampled liveness gauges served on /metrics.
var healthGauges = []struct{ prom, metric, help string }{
	{"db_pool_active_connections", dbPoolActiveMetric, "Number of active database pool connections."},
	{"db_pool_idle_connections", dbPoolIdleMetric, "Number of idle database pool connections."},
	{"registry_matches_total", matchesTotalMetric, "Total number of matches in the registry."},
}

// PrometheusHandler serves every recorded metric in Prometheus text
// exposition format.
func (tp *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var w promText

		w.histogramFamily("http_server_request_duration_seconds",
			"HTTP request duration in seconds.", tp.hists, requestDurationMetric)

		w.comment("http_server_active_requests", "Number of active HTTP requests.", "gauge")
		w.sample("http_server_active_requests", "", tp.gauges.get(activeRequestsMetric))

		w.histogramFamily("http_server_request_size_bytes",
			"HTTP request body size in bytes.", tp.hists, requestSizeMetric)
		w.histogramFamily("http_server_response_size_bytes",
			"HTTP response body size in bytes.", tp.hists, responseSizeMetric)

		w.comment("transplants_completed_total", "Total transplants completed since process start.", "counter")
		w.sample("transplants_completed_total", "", tp.counters.get(transplantsMetric))

		w.operationCounters(tp.counters.snapshot(operationCountMetric + "|"))

		for _, g := range healthGauges {
			w.comment(g.prom, g.help, "gauge")
			w.sample(g.prom, "", tp.gauges.get(g.metric))
		}

		return c.String(http.StatusOK, w.String())
	}
}

// promText accumulates Prometheus text exposition output.
type promText struct {
	b strings.Builder
}

func (w *promText) String() string {
	return w.b.String()
}

func (w *promText) comment(name, help, typ string) {
	fmt.Fprintf(&w.b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(&w.b, "# TYPE %s %s\n", name, typ)
}

func (w *promText) sample(name, labels string, v int64) {
	if labels == "" {
		fmt.Fprintf(&w.b, "%s %d\n", name, v)
		return
	}
	fmt.Fprintf(&w.b, "%s{%s} %d\n", name, labels, v)
}

// operationCounters writes the labeled registry operation counts in sorted
// order so consecutive scrapes stay comparable.
func (w *promText) operationCounters(counts map[string]int64) {
	w.comment("registry_operation_count", "Total registry operations by entity and operation.", "counter")

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		parts := strings.Split(k, "|")
		if len(parts) != 3 {
			continue
		}
		labels := fmt.Sprintf("entity=%q,operation=%q", parts[1], parts[2])
		w.sample("registry_operation_count", labels, counts[k])
	}
}

// histogramFamily writes one histogram family: the unlabeled aggregate
// first, then one series per recorded label key.
func (w *promText) histogramFamily(promName, help string, set *histogramSet, metric string) {
	w.comment(promName, help, "histogram")

	if h := set.lookup(metric, ""); h != nil {
		w.histogramSeries(promName, "", h)
	}
	for _, key := range set.labeledKeys(metric) {
		if h := set.lookup(metric, key); h != nil {
			w.histogramSeries(promName, labelPairs(key), h)
		}
	}
}

// labelPairs renders a method/route/status key as Prometheus labels.
func labelPairs(key string) string {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 {
		return ""
	}
	return fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
}

// histogramSeries writes the _bucket, _sum and _count samples for one
// series with cumulative bucket counts.
func (w *promText) histogramSeries(name, labels string, h *histogram) {
	cum, total := h.cumulative()

	for i, bound := range h.bounds {
		w.bucket(name, labels, fmt.Sprintf("%g", bound), cum[i])
	}
	w.bucket(name, labels, "+Inf", total)

	suffix := ""
	if labels != "" {
		suffix = "{" + labels + "}"
	}
	fmt.Fprintf(&w.b, "%s_sum%s %g\n", name, suffix, h.Sum())
	fmt.Fprintf(&w.b, "%s_count%s %d\n", name, suffix, total)
}

func (w *promText) bucket(name, labels, le string, count uint64) {
	if labels == "" {
		fmt.Fprintf(&w.b, "%s_bucket{le=%q} %d\n", name, le, count)
		return
	}
	fmt.Fprintf(&w.b, "%s_bucket{%s,le=%q} %d\n", name, labels, le, count)
}
