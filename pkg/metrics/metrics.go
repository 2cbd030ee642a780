// Package metrics provides Prometheus-compatible metrics for monitoring
// escrow provisioning and exchange traffic.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// MetricType defines the type of a metric.
type MetricType string

const (
	// TypeCounter is a monotonically increasing counter.
	TypeCounter MetricType = "counter"
	// TypeGauge is a value that can go up and down.
	TypeGauge MetricType = "gauge"
)

// Counter is a thread-safe counter metric.
type Counter struct {
	name  string
	help  string
	value atomic.Uint64
}

// NewCounter creates a new counter metric.
func NewCounter(name, help string) *Counter {
	return &Counter{
		name: name,
		help: help,
	}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta uint64) {
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Name returns the metric name.
func (c *Counter) Name() string {
	return c.name
}

// Gauge is a thread-safe gauge metric.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// NewGauge creates a new gauge metric.
func NewGauge(name, help string) *Gauge {
	return &Gauge{
		name: name,
		help: help,
	}
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(value int64) {
	g.value.Store(value)
}

// SetUint64 sets the gauge to the given unsigned value.
func (g *Gauge) SetUint64(value uint64) {
	g.value.Store(int64(value))
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// Name returns the metric name.
func (g *Gauge) Name() string {
	return g.name
}

// Collector aggregates the protocol metrics and renders them in Prometheus
// text exposition format.
type Collector struct {
	ExchangesTotal *Counter
	TokensBurned   *Counter
	TokensReleased *Counter
	Provisioned    *Counter
	EscrowBalance  *Gauge

	mu       sync.RWMutex
	failures map[string]*Counter
}

// NewCollector creates a collector with all protocol metrics registered.
func NewCollector() *Collector {
	return &Collector{
		ExchangesTotal: NewCounter("token_upgrade_exchanges_total",
			"Total number of successful exchanges"),
		TokensBurned: NewCounter("token_upgrade_tokens_burned_total",
			"Total old-token base units burned"),
		TokensReleased: NewCounter("token_upgrade_tokens_released_total",
			"Total new-token base units released from escrow"),
		Provisioned: NewCounter("token_upgrade_escrows_provisioned_total",
			"Total number of escrows provisioned"),
		EscrowBalance: NewGauge("token_upgrade_escrow_balance",
			"New-token base units remaining in the most recently touched escrow"),
		failures: make(map[string]*Counter),
	}
}

// RecordExchange records a successful exchange.
func (c *Collector) RecordExchange(burned, released, escrowRemaining uint64) {
	if c == nil {
		return
	}
	c.ExchangesTotal.Inc()
	c.TokensBurned.Add(burned)
	c.TokensReleased.Add(released)
	c.EscrowBalance.SetUint64(escrowRemaining)
}

// RecordFailure records a failed exchange, labelled by failure reason.
func (c *Collector) RecordFailure(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	counter, ok := c.failures[reason]
	if !ok {
		counter = NewCounter(
			fmt.Sprintf("token_upgrade_exchange_failures_total{reason=%q}", reason),
			"Total number of failed exchanges by reason")
		c.failures[reason] = counter
	}
	c.mu.Unlock()
	counter.Inc()
}

// RecordProvision records a completed provisioning.
func (c *Collector) RecordProvision() {
	if c == nil {
		return
	}
	c.Provisioned.Inc()
}

// Render writes all metrics in Prometheus text exposition format.
func (c *Collector) Render() string {
	var b strings.Builder

	writeCounter := func(counter *Counter) {
		fmt.Fprintf(&b, "# HELP %s %s\n", metricFamily(counter.name), counter.help)
		fmt.Fprintf(&b, "# TYPE %s counter\n", metricFamily(counter.name))
		fmt.Fprintf(&b, "%s %d\n", counter.name, counter.Value())
	}

	writeCounter(c.ExchangesTotal)
	writeCounter(c.TokensBurned)
	writeCounter(c.TokensReleased)
	writeCounter(c.Provisioned)

	fmt.Fprintf(&b, "# HELP %s %s\n", c.EscrowBalance.name, c.EscrowBalance.help)
	fmt.Fprintf(&b, "# TYPE %s gauge\n", c.EscrowBalance.name)
	fmt.Fprintf(&b, "%s %d\n", c.EscrowBalance.name, c.EscrowBalance.Value())

	c.mu.RLock()
	reasons := make([]string, 0, len(c.failures))
	for reason := range c.failures {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		counter := c.failures[reason]
		fmt.Fprintf(&b, "%s %d\n", counter.name, counter.Value())
	}
	c.mu.RUnlock()

	return b.String()
}

// metricFamily strips any label suffix from a metric name.
func metricFamily(name string) string {
	if i := strings.IndexByte(name, '{'); i >= 0 {
		return name[:i]
	}
	return name
}

// Handler returns an http.Handler serving the metrics in Prometheus text
// format.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, c.Render())
	})
}
