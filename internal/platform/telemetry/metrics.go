package telemetry

import (
	"sort"
	"strings"
	"sync"
)

// durationBounds are the request latency bucket upper bounds in seconds.
var durationBounds = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// sizeBounds are the payload size bucket upper bounds in bytes.
var sizeBounds = []float64{
	100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
}

// int64Store holds named counters and gauges. Counters only ever add;
// gauges overwrite.
type int64Store struct {
	mu     sync.Mutex
	values map[string]int64
}

func newInt64Store() *int64Store {
	return &int64Store{values: make(map[string]int64)}
}

func (s *int64Store) add(name string, delta int64) {
	s.mu.Lock()
	s.values[name] += delta
	s.mu.Unlock()
}

func (s *int64Store) set(name string, v int64) {
	s.mu.Lock()
	s.values[name] = v
	s.mu.Unlock()
}

func (s *int64Store) get(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

// snapshot copies every value whose name starts with prefix.
func (s *int64Store) snapshot(prefix string) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// histogram accumulates observations into fixed buckets. Counts are kept
// per bucket; the exposition layer turns them into the cumulative form
// Prometheus expects.
type histogram struct {
	bounds []float64 // upper bounds, ascending, immutable

	mu      sync.Mutex
	buckets []uint64 // len(bounds)+1, the extra slot is the overflow bucket
	count   uint64
	sum     float64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{
		bounds:  bounds,
		buckets: make([]uint64, len(bounds)+1),
	}
}

// Observe records one value. Values above the last bound land in the
// overflow bucket and still count toward sum and count.
func (h *histogram) Observe(v float64) {
	idx := sort.SearchFloat64s(h.bounds, v)
	h.mu.Lock()
	h.buckets[idx]++
	h.count++
	h.sum += v
	h.mu.Unlock()
}

// Count reports the number of observations.
func (h *histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum reports the running total of observed values.
func (h *histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// cumulative returns the running total at each bound plus the grand total,
// matching the le semantics of Prometheus histogram buckets.
func (h *histogram) cumulative() (perBound []uint64, total uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perBound = make([]uint64, len(h.bounds))
	var run uint64
	for i := range h.bounds {
		run += h.buckets[i]
		perBound[i] = run
	}
	return perBound, run + h.buckets[len(h.bounds)]
}

// LabelsKey builds the key for one method/route/status histogram series.
// Exported so tests can address the same series the middleware writes.
func LabelsKey(method, route, statusCode string) string {
	return method + "|" + route + "|" + statusCode
}

// histogramSet owns every histogram family. A series is addressed by family
// name plus an optional label key built with LabelsKey; the empty key is
// the unlabeled aggregate.
type histogramSet struct {
	mu     sync.Mutex
	series map[string]*histogram
}

func newHistogramSet() *histogramSet {
	return &histogramSet{series: make(map[string]*histogram)}
}

func seriesKey(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

// observe records v on the addressed series, creating it on first use.
func (s *histogramSet) observe(name, labels string, bounds []float64, v float64) {
	key := seriesKey(name, labels)

	s.mu.Lock()
	h, ok := s.series[key]
	if !ok {
		h = newHistogram(bounds)
		s.series[key] = h
	}
	s.mu.Unlock()

	h.Observe(v)
}

// lookup returns the addressed series, or nil when nothing has been
// observed under it.
func (s *histogramSet) lookup(name, labels string) *histogram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series[seriesKey(name, labels)]
}

// labeledKeys returns every label key recorded for a family, sorted so the
// exposition output is stable.
func (s *histogramSet) labeledKeys(name string) []string {
	prefix := name + "{"

	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.series {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimSuffix(k[len(prefix):], "}"))
		}
	}
	sort.Strings(keys)
	return keys
}
