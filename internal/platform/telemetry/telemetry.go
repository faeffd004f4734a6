// Package telemetry records request traces and operational metrics for the
// registry in process memory and serves them in Prometheus text exposition
// format, so a deployment can be scraped without running a separate
// collector. Metric and attribute names follow the OTel semantic
// conventions to keep a later move to an exporter-backed pipeline cheap.
package telemetry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Metric names, kept in OTel dotted form. The Prometheus layer translates
// them to underscore form at exposition time.
const (
	requestDurationMetric = "http.server.request.duration"
	requestSizeMetric     = "http.server.request.size"
	responseSizeMetric    = "http.server.response.size"
	activeRequestsMetric  = "http.server.active_requests"

	operationCountMetric = "registry.operation.count"
	transplantsMetric    = "transplants.completed.total"

	dbPoolActiveMetric = "db.pool.active_connections"
	dbPoolIdleMetric   = "db.pool.idle_connections"
	matchesTotalMetric = "registry.matches.total"
)

// TelemetryConfig selects which signals the provider records and how the
// emitting process identifies itself.
type TelemetryConfig struct {
	ServiceName     string        `json:"service_name"`
	ServiceVersion  string        `json:"service_version"`
	MetricsEnabled  *bool         `json:"metrics_enabled"` // nil enables metrics
	TracingEnabled  *bool         `json:"tracing_enabled"` // nil enables tracing
	MetricsInterval time.Duration `json:"metrics_interval"`
	Environment     string        `json:"environment"`
	SampleRate      float64       `json:"sample_rate"` // fraction of requests traced, zero means all
}

// BoolPtr builds a *bool literal for the optional TelemetryConfig toggles.
func BoolPtr(b bool) *bool {
	return &b
}

func (c TelemetryConfig) withDefaults() TelemetryConfig {
	if c.ServiceName == "" {
		c.ServiceName = "lifelink-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = 15 * time.Second
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	return c
}

func (c TelemetryConfig) metricsOn() bool {
	return c.MetricsEnabled == nil || *c.MetricsEnabled
}

func (c TelemetryConfig) tracingOn() bool {
	return c.TracingEnabled == nil || *c.TracingEnabled
}

// TelemetryProvider owns the signal state for one server process. All
// methods are safe for concurrent use.
type TelemetryProvider struct {
	cfg TelemetryConfig

	spans    *spanLog
	hists    *histogramSet
	counters *int64Store
	gauges   *int64Store
}

// NewTelemetryProvider builds a provider with empty signal state. Zero
// config fields fall back to development defaults.
func NewTelemetryProvider(cfg TelemetryConfig) *TelemetryProvider {
	return &TelemetryProvider{
		cfg:      cfg.withDefaults(),
		spans:    newSpanLog(maxRecordedSpans),
		hists:    newHistogramSet(),
		counters: newInt64Store(),
		gauges:   newInt64Store(),
	}
}

// Shutdown exists so callers can treat the provider like an exporter-backed
// one. The in-process provider keeps everything in memory and has nothing
// to flush.
func (tp *TelemetryProvider) Shutdown(_ context.Context) error {
	return nil
}

// MetricsInterval reports how often sampled gauges, such as pool
// statistics, should be refreshed by their pollers.
func (tp *TelemetryProvider) MetricsInterval() time.Duration {
	return tp.cfg.MetricsInterval
}

// Resource describes the emitting process in OTel resource attributes.
func (tp *TelemetryProvider) Resource() map[string]string {
	return map[string]string{
		"service.name":           tp.cfg.ServiceName,
		"service.version":        tp.cfg.ServiceVersion,
		"deployment.environment": tp.cfg.Environment,
	}
}

// sampled decides whether the current request's span is retained. Rates at
// or above one keep every span.
func (tp *TelemetryProvider) sampled() bool {
	r := tp.cfg.SampleRate
	if r >= 1 {
		return true
	}
	if r <= 0 {
		return false
	}
	return rand.Float64() < r
}

// OperationCounter counts one successful registry mutation under its entity
// and operation labels.
func (tp *TelemetryProvider) OperationCounter(entity, operation string) {
	tp.counters.add(operationCountMetric+"|"+entity+"|"+operation, 1)
}

// TransplantCompleted counts one match that reached the transplanted state.
func (tp *TelemetryProvider) TransplantCompleted() {
	tp.counters.add(transplantsMetric, 1)
}

// TransplantsCompleted reports how many transplants have been counted since
// process start.
func (tp *TelemetryProvider) TransplantsCompleted() int64 {
	return tp.counters.get(transplantsMetric)
}

// GetRecordedSpans returns the retained spans, oldest first.
func (tp *TelemetryProvider) GetRecordedSpans() []*Span {
	return tp.spans.all()
}

// GetHistogram returns the unlabeled histogram with the given name, or nil
// when nothing has been observed under it.
func (tp *TelemetryProvider) GetHistogram(name string) *histogram {
	return tp.hists.lookup(name, "")
}

// GetLabeledHistogram returns one labeled series of a histogram family. The
// key is built with LabelsKey.
func (tp *TelemetryProvider) GetLabeledHistogram(name, key string) *histogram {
	return tp.hists.lookup(name, key)
}

// GetGauge returns the current gauge value, zero when never set.
func (tp *TelemetryProvider) GetGauge(name string) int64 {
	return tp.gauges.get(name)
}

// GetCounter returns one labeled operation count.
func (tp *TelemetryProvider) GetCounter(name, entity, operation string) int64 {
	return tp.counters.get(name + "|" + entity + "|" + operation)
}

// HealthMetricsRecorder publishes the liveness gauges that are sampled
// outside the request path.
type HealthMetricsRecorder struct {
	gauges *int64Store
}

// HealthMetrics returns the recorder backing the pool and match gauges.
func (tp *TelemetryProvider) HealthMetrics() *HealthMetricsRecorder {
	return &HealthMetricsRecorder{gauges: tp.gauges}
}

// SetDBPoolActive records the number of pool connections in use.
func (h *HealthMetricsRecorder) SetDBPoolActive(n int64) {
	h.gauges.set(dbPoolActiveMetric, n)
}

// SetDBPoolIdle records the number of idle pool connections.
func (h *HealthMetricsRecorder) SetDBPoolIdle(n int64) {
	h.gauges.set(dbPoolIdleMetric, n)
}

// SetMatchesTotal records the current size of the match table.
func (h *HealthMetricsRecorder) SetMatchesTotal(n int64) {
	h.gauges.set(matchesTotalMetric, n)
}
