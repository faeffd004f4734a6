package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// SpanStatus mirrors the OTel span status code set.
type SpanStatus int

const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

// Span is one completed request trace. Field names follow OTel so recorded
// spans can be shipped to a collector later without remapping.
type Span struct {
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	Name       string            `json:"name"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	Duration   time.Duration     `json:"duration_ns"`
	StatusCode SpanStatus        `json:"status_code"`
	Attributes map[string]string `json:"attributes"`
}

// maxRecordedSpans bounds the in-memory trace buffer. Once full, each new
// span evicts the oldest one.
const maxRecordedSpans = 512

// spanLog is a fixed-capacity ring of completed spans.
type spanLog struct {
	mu   sync.Mutex
	ring []*Span
	head int // index of the oldest entry once the ring has wrapped
	size int
}

func newSpanLog(capacity int) *spanLog {
	return &spanLog{ring: make([]*Span, capacity)}
}

func (l *spanLog) add(s *Span) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.size < len(l.ring) {
		l.ring[(l.head+l.size)%len(l.ring)] = s
		l.size++
		return
	}
	l.ring[l.head] = s
	l.head = (l.head + 1) % len(l.ring)
}

// all returns the retained spans, oldest first.
func (l *spanLog) all() []*Span {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Span, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.ring[(l.head+i)%len(l.ring)]
	}
	return out
}

// TracingMiddleware records a span for each request. Spans carry the route
// pattern, the final status and the request id assigned upstream, so traces
// can be correlated with log lines.
func (tp *TelemetryProvider) TracingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !tp.cfg.tracingOn() || !tp.sampled() {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			tp.spans.add(serverSpan(c, start, time.Now()))
			return err
		}
	}
}

// serverSpan assembles the span for one finished request.
func serverSpan(c echo.Context, start, end time.Time) *Span {
	req := c.Request()
	res := c.Response()

	route := c.Path()
	if route == "" {
		route = req.URL.Path
	}

	status := SpanStatusOK
	if res.Status >= 500 {
		status = SpanStatusError
	}

	attrs := map[string]string{
		"http.method":      req.Method,
		"http.route":       route,
		"http.status_code": strconv.Itoa(res.Status),
		"http.url":         req.URL.String(),
	}
	if resource := apiResource(req.URL.Path); resource != "" {
		attrs["registry.resource"] = resource
	}
	if rid, ok := c.Get("request_id").(string); ok && rid != "" {
		attrs["request.id"] = rid
	}

	return &Span{
		TraceID:    randomHex(16),
		SpanID:     randomHex(8),
		Name:       "HTTP " + req.Method + " " + route,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
		StatusCode: status,
		Attributes: attrs,
	}
}

// apiResource returns the first path segment after the API prefix, for
// example "donors" for /api/v1/donors/123. Paths outside the prefix yield
// the empty string.
func apiResource(path string) string {
	const prefix = "/api/v1/"
	idx := strings.Index(path, prefix)
	if idx < 0 {
		return ""
	}
	seg := path[idx+len(prefix):]
	if cut := strings.IndexByte(seg, '/'); cut >= 0 {
		seg = seg[:cut]
	}
	return seg
}

// randomHex returns n random bytes hex encoded.
func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
