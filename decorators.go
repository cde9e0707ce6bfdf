package cachepurge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type timeoutAdapter struct {
	inner   Adapter
	timeout time.Duration
	// running holds a token while an inner clear is in flight, including one abandoned
	// after a timeout.
	running chan struct{}
}

// WithTimeout bounds a slow adapter. When the deadline passes first, Clear returns a
// *ClearError of kind ErrTimeout and the inner clear is left to finish in the background.
// At most one inner clear runs at a time: a later call waits for an abandoned one, within
// its own deadline, before starting another.
func WithTimeout(a Adapter, timeout time.Duration) Adapter {
	if timeout <= 0 {
		return a
	}
	return &timeoutAdapter{inner: a, timeout: timeout, running: make(chan struct{}, 1)}
}

func (t *timeoutAdapter) Name() string { return t.inner.Name() }

func (t *timeoutAdapter) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	select {
	case t.running <- struct{}{}:
	case <-ctx.Done():
		return NewClearError(t.inner.Name(), ErrTimeout, fmt.Errorf("previous clear still running after %s", t.timeout))
	}
	done := make(chan error, 1)
	go func() {
		defer func() { <-t.running }()
		done <- safeClear(ctx, t.inner)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return NewClearError(t.inner.Name(), ErrTimeout, fmt.Errorf("no result after %s", t.timeout))
	}
}

type retryAdapter struct {
	inner    Adapter
	backoff  BackoffConfig
	attempts int
	sleep    func(ctx context.Context, d time.Duration) error
}

// WithRetry retries transient failures (ErrTimeout, ErrUnavailable) up to attempts
// total tries, waiting according to backoff between them.
func WithRetry(a Adapter, backoff BackoffConfig, attempts int) Adapter {
	if attempts <= 1 {
		return a
	}
	if backoff.Validate() != nil {
		backoff = DefaultBackoff()
	}
	return &retryAdapter{inner: a, backoff: backoff, attempts: attempts, sleep: sleepCtx}
}

func (r *retryAdapter) Name() string { return r.inner.Name() }

func (r *retryAdapter) Clear(ctx context.Context) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if i > 0 {
			if serr := r.sleep(ctx, r.backoff.Next(i-1)); serr != nil {
				return err
			}
		}
		err = safeClear(ctx, r.inner)
		if err == nil || !transient(err) {
			return err
		}
	}
	return err
}

func transient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
