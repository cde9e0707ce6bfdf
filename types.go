package cachepurge

import (
	"context"
	"time"
)

// Adapter wraps one physical client-side store behind a single clear capability.
// Clear must be idempotent and must report failures as errors (preferably *ClearError)
// instead of panicking. It empties the whole logical store or reports why it could not.
type Adapter interface {
	Name() string
	Clear(ctx context.Context) error
}

type adapterFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewAdapterFunc adapts a function to Adapter.
func NewAdapterFunc(name string, fn func(ctx context.Context) error) Adapter {
	return adapterFunc{name: name, fn: fn}
}

// Name implements Adapter.
func (a adapterFunc) Name() string { return a.name }

// Clear implements Adapter.
func (a adapterFunc) Clear(ctx context.Context) error {
	if a.fn == nil {
		return nil
	}
	return a.fn(ctx)
}

// Unavailable stands in for a store that could not be opened in this runtime. Its Clear
// always reports ErrUnavailable with cause, so the store still shows up in every pass.
func Unavailable(name string, cause error) Adapter {
	return NewAdapterFunc(name, func(context.Context) error {
		return NewClearError(name, ErrUnavailable, cause)
	})
}

// PurgeOutcome is the result of clearing one adapter during a pass.
type PurgeOutcome struct {
	Adapter  string        `json:"adapter" yaml:"adapter"`
	Success  bool          `json:"success" yaml:"success"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"durationNs" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

// AggregateResult collects the outcomes of one purge pass in registration order.
type AggregateResult struct {
	PassID       string         `json:"passId" yaml:"passId"`
	StartedAt    time.Time      `json:"startedAt" yaml:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt" yaml:"finishedAt"`
	Outcomes     []PurgeOutcome `json:"outcomes" yaml:"outcomes"`
	AllSucceeded bool           `json:"allSucceeded" yaml:"allSucceeded"`
}

// Failed returns the outcomes that did not succeed.
func (r AggregateResult) Failed() []PurgeOutcome {
	var out []PurgeOutcome
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// Duration is the wall time of the pass.
func (r AggregateResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Logger is a lightweight structured logger interface.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field holds a structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// Metrics records counters and gauges.
type Metrics interface {
	IncCounter(name string, value float64, labels ...Label)
	SetGauge(name string, value float64, labels ...Label)
	ObserveHistogram(name string, value float64, labels ...Label)
}

// Label is a simple name/value pair for metrics.
type Label struct {
	Name  string
	Value string
}

type nopLogger struct{}

// NopLogger returns a no-op logger implementation.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

type nopMetrics struct{}

// NopMetrics returns a no-op metrics recorder.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) IncCounter(string, float64, ...Label)       {}
func (nopMetrics) SetGauge(string, float64, ...Label)         {}
func (nopMetrics) ObserveHistogram(string, float64, ...Label) {}
