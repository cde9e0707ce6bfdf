package observe

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/halftrip/cachepurge"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.level), "level %q", tt.level)
	}
	l, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := ZapLogger(zap.New(core))

	log.Warn("adapter clear failed",
		cachepurge.Field{Key: "adapter", Value: "kv"},
		cachepurge.Field{Key: "err", Value: errors.New("disabled")})

	entries := logs.FilterMessage("adapter clear failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "kv", ctx["adapter"])
	assert.Equal(t, "disabled", ctx["err"])
}

func TestZapLoggerNil(t *testing.T) {
	ZapLogger(nil).Info("dropped")
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.IncCounter("cachepurge_clear_total", 1,
		cachepurge.Label{Name: "result", Value: "failure"},
		cachepurge.Label{Name: "adapter", Value: "kv"})
	m.IncCounter("cachepurge_clear_total", 1,
		cachepurge.Label{Name: "adapter", Value: "kv"},
		cachepurge.Label{Name: "result", Value: "failure"})
	m.SetGauge("cachepurge_registered_adapters", 3)
	m.ObserveHistogram("cachepurge_clear_seconds", 0.01, cachepurge.Label{Name: "adapter", Value: "kv"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.counters["cachepurge_clear_total"].WithLabelValues("kv", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.gauges["cachepurge_registered_adapters"]))

	n, err := testutil.GatherAndCount(reg, "cachepurge_clear_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expected := `
# HELP cachepurge_registered_adapters Adapters registered at the start of the last pass
# TYPE cachepurge_registered_adapters gauge
cachepurge_registered_adapters 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "cachepurge_registered_adapters"))
}

func TestPrometheusMetricsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheusMetrics(reg)
	b := NewPrometheusMetrics(reg)
	a.IncCounter("cachepurge_pass_total", 1, cachepurge.Label{Name: "result", Value: "success"})
	b.IncCounter("cachepurge_pass_total", 1, cachepurge.Label{Name: "result", Value: "success"})
	assert.Equal(t, 2.0, testutil.ToFloat64(b.counters["cachepurge_pass_total"].WithLabelValues("success")))
}
