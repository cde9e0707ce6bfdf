package cachepurge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithNow sets a custom clock (tests).
func WithNow(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// WithPassIDs overrides the pass id generator.
func WithPassIDs(gen func() string) CoordinatorOption {
	return func(c *Coordinator) { c.newID = gen }
}

// Coordinator runs purge passes over every adapter in a registry.
type Coordinator struct {
	cfg      Config
	registry *Registry
	logger   Logger
	metrics  Metrics
	now      func() time.Time
	newID    func() string
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(cfg Config, registry *Registry, logger Logger, metrics Metrics, opts ...CoordinatorOption) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if logger == nil {
		logger = NopLogger()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	c := &Coordinator{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Registry returns the registry the coordinator purges.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// PurgeAll attempts to clear every registered adapter and reports one outcome per
// adapter in registration order. It never returns an error: per-adapter failures are
// recorded in the result. Cancelling ctx does not abort a pass that has started; adapters
// that talk to slow stores bound their own latency.
func (c *Coordinator) PurgeAll(ctx context.Context) AggregateResult {
	ctx = context.WithoutCancel(ctx)
	adapters := c.registry.List()
	res := AggregateResult{
		PassID:    c.newID(),
		StartedAt: c.now(),
		Outcomes:  make([]PurgeOutcome, len(adapters)),
	}
	c.metrics.SetGauge("cachepurge_registered_adapters", float64(len(adapters)))

	if c.cfg.Mode == ModeConcurrent && len(adapters) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		if c.cfg.MaxParallel > 0 {
			g.SetLimit(c.cfg.MaxParallel)
		}
		for i, a := range adapters {
			g.Go(func() error {
				res.Outcomes[i] = c.clearOne(gctx, a)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, a := range adapters {
			res.Outcomes[i] = c.clearOne(ctx, a)
		}
	}

	res.AllSucceeded = true
	for _, o := range res.Outcomes {
		if !o.Success {
			res.AllSucceeded = false
			break
		}
	}
	res.FinishedAt = c.now()

	result := "success"
	if !res.AllSucceeded {
		result = "partial"
		c.logger.Warn("purge pass finished with failures",
			Field{Key: "pass", Value: res.PassID},
			Field{Key: "failed", Value: len(res.Failed())},
			Field{Key: "adapters", Value: len(adapters)})
	} else {
		c.logger.Info("purge pass finished",
			Field{Key: "pass", Value: res.PassID},
			Field{Key: "adapters", Value: len(adapters)})
	}
	c.metrics.IncCounter("cachepurge_pass_total", 1, Label{Name: "result", Value: result})
	return res
}

func (c *Coordinator) clearOne(ctx context.Context, a Adapter) PurgeOutcome {
	name := a.Name()
	start := c.now()
	err := safeClear(ctx, a)
	out := PurgeOutcome{Adapter: name, Success: err == nil, Duration: c.now().Sub(start)}
	result := "success"
	if err != nil {
		ce := asClearError(name, err)
		out.Err = ce
		out.Error = ce.Error()
		result = "failure"
		c.logger.Warn("adapter clear failed", Field{Key: "adapter", Value: name}, Field{Key: "err", Value: ce})
	}
	c.metrics.IncCounter("cachepurge_clear_total", 1, Label{Name: "adapter", Value: name}, Label{Name: "result", Value: result})
	c.metrics.ObserveHistogram("cachepurge_clear_seconds", out.Duration.Seconds(), Label{Name: "adapter", Value: name})
	return out
}

// safeClear is the per-adapter isolation boundary.
func safeClear(ctx context.Context, a Adapter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewClearError(a.Name(), ErrPanic, fmt.Errorf("%v", r))
		}
	}()
	return a.Clear(ctx)
}
