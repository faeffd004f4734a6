package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func scrape(t *testing.T, tp *TelemetryProvider) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := tp.PrometheusHandler()(c); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestPrometheusHandler_CounterLines(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	tp.OperationCounter("donor", "register")
	tp.OperationCounter("match", "status_change")
	tp.OperationCounter("match", "status_change")
	tp.TransplantCompleted()

	body := scrape(t, tp)
	for _, want := range []string{
		"# TYPE registry_operation_count counter",
		`registry_operation_count{entity="donor",operation="register"} 1`,
		`registry_operation_count{entity="match",operation="status_change"} 2`,
		"# TYPE transplants_completed_total counter",
		"transplants_completed_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestPrometheusHandler_SortsOperationLines(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	tp.OperationCounter("recipient", "register")
	tp.OperationCounter("donor", "verify")
	tp.OperationCounter("donor", "register")

	body := scrape(t, tp)
	reg := strings.Index(body, `entity="donor",operation="register"`)
	ver := strings.Index(body, `entity="donor",operation="verify"`)
	rcp := strings.Index(body, `entity="recipient",operation="register"`)
	if reg < 0 || ver < 0 || rcp < 0 {
		t.Fatalf("operation lines missing:\n%s", body)
	}
	if !(reg < ver && ver < rcp) {
		t.Errorf("operation lines unsorted: register=%d verify=%d recipient=%d", reg, ver, rcp)
	}
}

func TestPrometheusHandler_HistogramExposition(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	tp.hists.observe(requestDurationMetric, "", durationBounds, 0.002)
	tp.hists.observe(requestDurationMetric, "", durationBounds, 0.3)
	tp.hists.observe(requestDurationMetric, LabelsKey("GET", "/api/v1/donors", "200"), durationBounds, 0.002)

	body := scrape(t, tp)
	for _, want := range []string{
		"# TYPE http_server_request_duration_seconds histogram",
		`http_server_request_duration_seconds_bucket{le="0.01"} 1`,
		`http_server_request_duration_seconds_bucket{le="0.5"} 2`,
		`http_server_request_duration_seconds_bucket{le="+Inf"} 2`,
		"http_server_request_duration_seconds_count 2",
		`http_server_request_duration_seconds_bucket{method="GET",route="/api/v1/donors",status_code="200",le="0.01"} 1`,
		`http_server_request_duration_seconds_count{method="GET",route="/api/v1/donors",status_code="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestPrometheusHandler_SizeHistogramSums(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	tp.hists.observe(requestSizeMetric, "", sizeBounds, 512)

	body := scrape(t, tp)
	for _, want := range []string{
		"# TYPE http_server_request_size_bytes histogram",
		`http_server_request_size_bytes_bucket{le="1000"} 1`,
		"http_server_request_size_bytes_sum 512",
		"http_server_request_size_bytes_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestPrometheusHandler_HealthGauges(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})
	rec := tp.HealthMetrics()
	rec.SetDBPoolActive(3)
	rec.SetDBPoolIdle(2)
	rec.SetMatchesTotal(77)

	body := scrape(t, tp)
	for _, want := range []string{
		"# TYPE registry_matches_total gauge",
		"db_pool_active_connections 3",
		"db_pool_idle_connections 2",
		"registry_matches_total 77",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestPrometheusHandler_EmptyProviderRendersFamilies(t *testing.T) {
	tp := NewTelemetryProvider(TelemetryConfig{})

	body := scrape(t, tp)
	for _, want := range []string{
		"# TYPE http_server_request_duration_seconds histogram",
		"http_server_active_requests 0",
		"transplants_completed_total 0",
		"registry_matches_total 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
	if strings.Contains(body, "http_server_request_duration_seconds_bucket") {
		t.Error("bucket lines rendered for unobserved histogram")
	}
}
