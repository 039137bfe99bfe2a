// Prometheus text-format metrics
//
// Counters and gauges keyed by label set, collected in a Registry that
// renders the exposition format for scraping.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// Labels represents metric labels as key-value pairs
type Labels map[string]string

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// key identifies a label set inside one metric.
func (l Labels) key() string {
	var sb strings.Builder
	for i, k := range l.sortedKeys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(l[k])
	}
	return sb.String()
}

// String returns labels in Prometheus format
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range l.sortedKeys() {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%q", k, l[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

func (l Labels) clone() Labels {
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

type series struct {
	labels Labels
	bits   uint64 // float64 bits for gauges, count for counters
}

// family holds the label sets of one metric in first-seen order.
type family struct {
	name string
	help string

	mu     sync.RWMutex
	series map[string]*series
	order  []string
}

func (f *family) init(name, help string) {
	f.name, f.help = name, help
	f.series = make(map[string]*series)
}

func floatBits(v float64) uint64 { return math.Float64bits(v) }
func bitsFloat(b uint64) float64 { return math.Float64frombits(b) }

func (f *family) get(labels Labels) *series {
	key := labels.key()
	f.mu.RLock()
	s, ok := f.series[key]
	f.mu.RUnlock()
	if ok {
		return s
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok = f.series[key]; ok {
		return s
	}
	s = &series{labels: labels.clone()}
	f.series[key] = s
	f.order = append(f.order, key)
	return s
}

func (f *family) lookup(labels Labels) (*series, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.series[labels.key()]
	return s, ok
}

func (f *family) write(sb *strings.Builder, typ MetricType, format func(uint64) string) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, typ)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, key := range f.order {
		s := f.series[key]
		fmt.Fprintf(sb, "%s%s %s\n", f.name, s.labels, format(atomic.LoadUint64(&s.bits)))
	}
}

// Counter is a monotonically increasing metric
type Counter struct {
	family
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	c := &Counter{}
	c.init(name, help)
	return c
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return TypeCounter }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add increments the counter by the given value
func (c *Counter) Add(labels Labels, delta uint64) {
	atomic.AddUint64(&c.get(labels).bits, delta)
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	s, ok := c.lookup(labels)
	if !ok {
		return 0
	}
	return atomic.LoadUint64(&s.bits)
}

func (c *Counter) Write(sb *strings.Builder) {
	c.write(sb, TypeCounter, func(v uint64) string {
		return strconv.FormatUint(v, 10)
	})
}

// Gauge is a metric that can go up and down
type Gauge struct {
	family
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	g := &Gauge{}
	g.init(name, help)
	return g
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Help() string     { return g.help }
func (g *Gauge) Type() MetricType { return TypeGauge }

// Set sets the gauge to the given value
func (g *Gauge) Set(labels Labels, value float64) {
	atomic.StoreUint64(&g.get(labels).bits, floatBits(value))
}

// Add adds the given value to the gauge
func (g *Gauge) Add(labels Labels, delta float64) {
	s := g.get(labels)
	for {
		old := atomic.LoadUint64(&s.bits)
		if atomic.CompareAndSwapUint64(&s.bits, old, floatBits(bitsFloat(old)+delta)) {
			return
		}
	}
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	s, ok := g.lookup(labels)
	if !ok {
		return 0
	}
	return bitsFloat(atomic.LoadUint64(&s.bits))
}

func (g *Gauge) Write(sb *strings.Builder) {
	g.write(sb, TypeGauge, func(v uint64) string {
		return strconv.FormatFloat(bitsFloat(v), 'g', -1, 64)
	})
}

// Registry holds all registered metrics
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric to the registry
func (r *Registry) Register(metric Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := metric.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = metric
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a metric and panics on error
func (r *Registry) MustRegister(metric Metric) {
	if err := r.Register(metric); err != nil {
		panic(err)
	}
}

// Get returns a metric by name
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather collects all metrics in Prometheus text format
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for _, name := range r.order {
		r.metrics[name].Write(&sb)
	}
	return sb.String()
}
