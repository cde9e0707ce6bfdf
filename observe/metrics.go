package observe

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/halftrip/cachepurge"
)

var help = map[string]string{
	"cachepurge_clear_total":         "Adapter clears by adapter and result",
	"cachepurge_clear_seconds":       "Adapter clear latency in seconds",
	"cachepurge_pass_total":          "Purge passes by result",
	"cachepurge_registered_adapters": "Adapters registered at the start of the last pass",
	"cachepurge_transition_total":    "Guarded transitions by action result",
}

// PrometheusMetrics implements cachepurge.Metrics. Vectors are created on first use with
// the label names of that call; later calls must use the same label names.
type PrometheusMetrics struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics registers vectors with reg; nil means prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		reg:        reg,
		counters:   map[string]*prometheus.CounterVec{},
		gauges:     map[string]*prometheus.GaugeVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

var _ cachepurge.Metrics = (*PrometheusMetrics)(nil)

// IncCounter implements cachepurge.Metrics.
func (m *PrometheusMetrics) IncCounter(name string, value float64, labels ...cachepurge.Label) {
	names, values := split(labels)
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: helpFor(name)}, names)
		vec = register(m.reg, vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()
	vec.WithLabelValues(values...).Add(value)
}

// SetGauge implements cachepurge.Metrics.
func (m *PrometheusMetrics) SetGauge(name string, value float64, labels ...cachepurge.Label) {
	names, values := split(labels)
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: helpFor(name)}, names)
		vec = register(m.reg, vec)
		m.gauges[name] = vec
	}
	m.mu.Unlock()
	vec.WithLabelValues(values...).Set(value)
}

// ObserveHistogram implements cachepurge.Metrics.
func (m *PrometheusMetrics) ObserveHistogram(name string, value float64, labels ...cachepurge.Label) {
	names, values := split(labels)
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpFor(name),
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, names)
		vec = register(m.reg, vec)
		m.histograms[name] = vec
	}
	m.mu.Unlock()
	vec.WithLabelValues(values...).Observe(value)
}

// register returns the already registered collector when an identical one exists, so
// two PrometheusMetrics sharing a registry do not panic.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Sprintf("register metric: %v", err))
	}
	return c
}

func split(labels []cachepurge.Label) ([]string, []string) {
	sorted := append([]cachepurge.Label(nil), labels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	names := make([]string, len(sorted))
	values := make([]string, len(sorted))
	for i, l := range sorted {
		names[i] = l.Name
		values[i] = l.Value
	}
	return names, values
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return strings.ReplaceAll(name, "_", " ")
}
