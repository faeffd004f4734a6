package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records duration and size histograms plus the active
// request gauge for every request. Durations are written twice, once into
// the unlabeled aggregate and once into the method/route/status series.
func (tp *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tp.cfg.metricsOn() {
				return next(c)
			}

			tp.gauges.add(activeRequestsMetric, 1)
			start := time.Now()

			err := next(c)

			tp.gauges.add(activeRequestsMetric, -1)

			req := c.Request()
			res := c.Response()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			elapsed := time.Since(start).Seconds()
			tp.hists.observe(requestDurationMetric, "", durationBounds, elapsed)
			series := LabelsKey(req.Method, route, strconv.Itoa(res.Status))
			tp.hists.observe(requestDurationMetric, series, durationBounds, elapsed)

			if req.ContentLength > 0 {
				tp.hists.observe(requestSizeMetric, "", sizeBounds, float64(req.ContentLength))
			}
			if res.Size > 0 {
				tp.hists.observe(responseSizeMetric, "", sizeBounds, float64(res.Size))
			}

			return err
		}
	}
}

// OperationCounterMiddleware counts successful registry mutations by entity
// and operation. Reads and failed requests are not counted.
func (tp *TelemetryProvider) OperationCounterMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil || !tp.cfg.metricsOn() {
				return err
			}
			if s := c.Response().Status; s < 200 || s >= 300 {
				return err
			}
			if entity, operation := classifyOperation(c.Request().Method, c.Path()); entity != "" {
				tp.OperationCounter(entity, operation)
			}
			return err
		}
	}
}

// countedOperations maps "METHOD route", relative to the API prefix, to the
// entity and operation labels of the registry operation counter.
var countedOperations = map[string]struct{ entity, operation string }{
	"POST /donors":                    {"donor", "register"},
	"POST /donors/:id/verify":         {"donor", "verify"},
	"POST /donors/:id/deactivate":     {"donor", "deactivate"},
	"POST /recipients":                {"recipient", "register"},
	"POST /recipients/:id/deactivate": {"recipient", "deactivate"},
	"PATCH /matches/:id/status":       {"match", "status_change"},
	"POST /matches/refresh":           {"match", "refresh"},
}

// classifyOperation resolves the counter labels for a route pattern. Routes
// outside the counted set return empty labels.
func classifyOperation(method, route string) (entity, operation string) {
	if idx := strings.Index(route, "/api/v1"); idx >= 0 {
		route = route[idx+len("/api/v1"):]
	}
	if op, ok := countedOperations[method+" "+route]; ok {
		return op.entity, op.operation
	}
	return "", ""
}
