package cachepurge

import (
	"context"
	"sync/atomic"
	"time"
)

// State is a step of one secure transition.
type State string

const (
	StateIdle                State = "idle"
	StatePurging             State = "purging"
	StatePurgeComplete       State = "purge-complete"
	StatePurgeFailedPartial  State = "purge-failed-partial"
	StateTransitionExecuting State = "transition-executing"
	StateTransitionComplete  State = "transition-complete"
)

// Purger runs a purge pass. *Coordinator implements it.
type Purger interface {
	PurgeAll(ctx context.Context) AggregateResult
}

// Recorder receives every purge result for post-hoc auditing.
type Recorder interface {
	Record(res AggregateResult)
}

// Action is the security-sensitive transition, typically "terminate current session".
type Action func(ctx context.Context) error

// TransitionResult reports what happened during SecureTransition.
type TransitionResult struct {
	Purge AggregateResult
	// Err is the action's own error. Purge failures never appear here.
	Err error
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithRecorder sends each purge result to r.
func WithRecorder(r Recorder) GuardOption {
	return func(g *Guard) { g.recorder = r }
}

// WithStateObserver is called on every state change, in order.
func WithStateObserver(fn func(State)) GuardOption {
	return func(g *Guard) { g.observe = fn }
}

// WithGuardMetrics records transition counters.
func WithGuardMetrics(m Metrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

// Guard makes a sensitive transition wait for a purge pass.
//
// Policy: the action always runs after the purge settles, whether or not every store
// was cleared. Holding a session open because a local cache could not be emptied is a
// worse outcome than signing out with stale data on disk, so purge failures are logged
// and recorded but never block or fail the transition.
type Guard struct {
	purger   Purger
	logger   Logger
	metrics  Metrics
	recorder Recorder
	observe  func(State)
	state    atomic.Value
}

// NewGuard constructs a Guard around a purger. A nil purger purges nothing and the
// action still runs.
func NewGuard(purger Purger, logger Logger, opts ...GuardOption) *Guard {
	if logger == nil {
		logger = NopLogger()
	}
	if purger == nil {
		purger = emptyPurger{}
	}
	g := &Guard{
		purger:  purger,
		logger:  logger,
		metrics: NopMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.state.Store(StateIdle)
	return g
}

// State returns the state of the most recent transition.
func (g *Guard) State() State {
	return g.state.Load().(State)
}

// SecureTransition purges first, then invokes action exactly once.
func (g *Guard) SecureTransition(ctx context.Context, action Action) TransitionResult {
	g.set(StateIdle)
	g.set(StatePurging)
	res := g.purger.PurgeAll(ctx)
	if res.AllSucceeded {
		g.set(StatePurgeComplete)
	} else {
		g.set(StatePurgeFailedPartial)
		for _, o := range res.Failed() {
			g.logger.Warn("store not purged before transition",
				Field{Key: "pass", Value: res.PassID},
				Field{Key: "adapter", Value: o.Adapter},
				Field{Key: "err", Value: o.Error})
		}
	}
	if g.recorder != nil {
		g.recorder.Record(res)
	}

	g.set(StateTransitionExecuting)
	var err error
	if action == nil {
		err = ErrNilAction
	} else {
		err = action(ctx)
	}
	g.set(StateTransitionComplete)

	result := "success"
	if err != nil {
		result = "failure"
		g.logger.Error("sensitive transition failed", Field{Key: "pass", Value: res.PassID}, Field{Key: "err", Value: err})
	}
	g.metrics.IncCounter("cachepurge_transition_total", 1, Label{Name: "result", Value: result})
	return TransitionResult{Purge: res, Err: err}
}

type emptyPurger struct{}

func (emptyPurger) PurgeAll(context.Context) AggregateResult {
	now := time.Now()
	return AggregateResult{StartedAt: now, FinishedAt: now, Outcomes: []PurgeOutcome{}, AllSucceeded: true}
}

func (g *Guard) set(s State) {
	g.state.Store(s)
	if g.observe != nil {
		g.observe(s)
	}
}

// SecureTransition runs one guarded transition without a long-lived Guard.
func SecureTransition(ctx context.Context, purger Purger, action Action) TransitionResult {
	return NewGuard(purger, nil).SecureTransition(ctx, action)
}
