// Package telemetry keeps in-process request and workflow metrics and serves
// them in the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// defaultDurationBuckets are request duration boundaries in seconds.
var defaultDurationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// histogram keeps non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	var running int64
	for i, c := range raw {
		running += c
		raw[i] = running
	}
	return raw
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// series identifies one labelled time series.
type series struct {
	name   string
	labels string // rendered as k="v",k="v"
}

// Provider holds every metric the process exports.
type Provider struct {
	mu         sync.RWMutex
	counters   map[series]*int64
	durations  map[series]*histogram
	gaugeFuncs map[string]gaugeFunc
	active     int64
}

type gaugeFunc struct {
	help string
	fn   func() float64
}

func NewProvider() *Provider {
	return &Provider{
		counters:   make(map[series]*int64),
		durations:  make(map[series]*histogram),
		gaugeFuncs: make(map[string]gaugeFunc),
	}
}

// renderLabels turns name/value pairs into Prometheus label syntax. A
// trailing unpaired name is dropped.
func renderLabels(pairs []string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%s", pairs[i], strconv.Quote(pairs[i+1]))
	}
	return b.String()
}

// Inc adds one to the counter name with the given label pairs.
func (p *Provider) Inc(name string, labels ...string) {
	key := series{name: name, labels: renderLabels(labels)}

	p.mu.RLock()
	c, ok := p.counters[key]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if c, ok = p.counters[key]; !ok {
			c = new(int64)
			p.counters[key] = c
		}
		p.mu.Unlock()
	}
	atomic.AddInt64(c, 1)
}

// Counter returns the current value of a counter.
func (p *Provider) Counter(name string, labels ...string) int64 {
	p.mu.RLock()
	c, ok := p.counters[series{name: name, labels: renderLabels(labels)}]
	p.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(c)
}

// GaugeFunc registers a gauge sampled on every scrape.
func (p *Provider) GaugeFunc(name, help string, fn func() float64) {
	p.mu.Lock()
	p.gaugeFuncs[name] = gaugeFunc{help: help, fn: fn}
	p.mu.Unlock()
}

func (p *Provider) observeDuration(key series, seconds float64) {
	p.mu.RLock()
	h, ok := p.durations[key]
	p.mu.RUnlock()
	if !ok {
		p.mu.Lock()
		if h, ok = p.durations[key]; !ok {
			h = newHistogram(defaultDurationBuckets)
			p.durations[key] = h
		}
		p.mu.Unlock()
	}
	h.Observe(seconds)
}

// Middleware records request duration by method, route pattern and status.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&p.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&p.active, -1)
			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			key := series{
				name:   "http_server_request_duration_seconds",
				labels: renderLabels([]string{"method", c.Request().Method, "route", route, "status_code", strconv.Itoa(status)}),
			}
			p.observeDuration(key, time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves every metric in text exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, p.Render())
	}
}

// Render returns the exposition text. Series are sorted so output is stable.
func (p *Provider) Render() string {
	p.mu.RLock()
	counters := make(map[series]int64, len(p.counters))
	for k, v := range p.counters {
		counters[k] = atomic.LoadInt64(v)
	}
	durations := make(map[series]*histogram, len(p.durations))
	for k, v := range p.durations {
		durations[k] = v
	}
	gauges := make(map[string]gaugeFunc, len(p.gaugeFuncs))
	for k, v := range p.gaugeFuncs {
		gauges[k] = v
	}
	p.mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
	b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
	for _, key := range sortedSeries(durations) {
		writeHistogram(&b, key, durations[key])
	}
	b.WriteByte('\n')

	b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
	b.WriteString("# TYPE http_server_active_requests gauge\n")
	fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&p.active))

	byName := make(map[string][]series)
	for key := range counters {
		byName[key.name] = append(byName[key.name], key)
	}
	for _, name := range sortedKeys(byName) {
		fmt.Fprintf(&b, "# TYPE %s counter\n", name)
		keys := byName[name]
		sort.Slice(keys, func(i, j int) bool { return keys[i].labels < keys[j].labels })
		for _, key := range keys {
			fmt.Fprintf(&b, "%s %d\n", withLabels(name, key.labels), counters[key])
		}
		b.WriteByte('\n')
	}

	for _, name := range sortedKeys(gauges) {
		g := gauges[name]
		fmt.Fprintf(&b, "# HELP %s %s\n", name, g.help)
		fmt.Fprintf(&b, "# TYPE %s gauge\n", name)
		fmt.Fprintf(&b, "%s %g\n\n", name, g.fn())
	}
	return b.String()
}

func withLabels(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

func writeHistogram(b *strings.Builder, key series, h *histogram) {
	cum := h.cumulativeBuckets()
	prefix := ""
	if key.labels != "" {
		prefix = key.labels + ","
	}
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%sle=\"%g\"} %d\n", key.name, prefix, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", key.name, prefix, h.Count())
	fmt.Fprintf(b, "%s %g\n", withLabels(key.name+"_sum", key.labels), h.Sum())
	fmt.Fprintf(b, "%s %d\n", withLabels(key.name+"_count", key.labels), h.Count())
}

func sortedSeries(m map[series]*histogram) []series {
	out := make([]series, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].name != out[j].name {
			return out[i].name < out[j].name
		}
		return out[i].labels < out[j].labels
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
