package cachepurge_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/internal/fakestore"
)

func TestWithTimeoutReportsTimeout(t *testing.T) {
	slow := cachepurge.NewAdapterFunc("slow", func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	a := cachepurge.WithTimeout(slow, 20*time.Millisecond)
	if a.Name() != "slow" {
		t.Fatalf("decorator must keep the adapter name, got %q", a.Name())
	}
	start := time.Now()
	err := a.Clear(context.Background())
	if !errors.Is(err, cachepurge.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Fatalf("timeout did not bound the clear")
	}
}

func TestWithTimeoutPassesThroughFastClears(t *testing.T) {
	s := fakestore.New("fast")
	s.Put("k", []byte("v"))
	if err := cachepurge.WithTimeout(s, time.Second).Clear(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("store not cleared")
	}
}

func TestWithTimeoutZeroIsIdentity(t *testing.T) {
	s := fakestore.New("s")
	if cachepurge.WithTimeout(s, 0) != cachepurge.Adapter(s) {
		t.Fatalf("zero timeout must return the adapter unchanged")
	}
}

func TestWithRetryRecoversTransientFailure(t *testing.T) {
	var calls int32
	flaky := cachepurge.NewAdapterFunc("flaky", func(context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return cachepurge.NewClearError("flaky", cachepurge.ErrUnavailable, nil)
		}
		return nil
	})
	b := cachepurge.BackoffConfig{Base: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
	if err := cachepurge.WithRetry(flaky, b, 3).Clear(context.Background()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithRetryStopsOnPermanentFailure(t *testing.T) {
	s := fakestore.New("denied").FailWith(cachepurge.ErrAccessDenied, nil)
	b := cachepurge.BackoffConfig{Base: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
	err := cachepurge.WithRetry(s, b, 5).Clear(context.Background())
	if !errors.Is(err, cachepurge.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if s.Clears() != 1 {
		t.Fatalf("permanent failures must not be retried, got %d attempts", s.Clears())
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	s := fakestore.New("down").FailWith(cachepurge.ErrUnavailable, nil)
	b := cachepurge.BackoffConfig{Base: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
	err := cachepurge.WithRetry(s, b, 3).Clear(context.Background())
	if !errors.Is(err, cachepurge.ErrUnavailable) {
		t.Fatalf("expected last error, got %v", err)
	}
	if s.Clears() != 3 {
		t.Fatalf("expected 3 attempts, got %d", s.Clears())
	}
}

func TestWithTimeoutNeverOverlapsInnerClears(t *testing.T) {
	release := make(chan struct{})
	var calls, inFlight, maxInFlight int32
	inner := cachepurge.NewAdapterFunc("stuck", func(context.Context) error {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			<-release
		}
		return nil
	})
	a := cachepurge.WithRetry(cachepurge.WithTimeout(inner, 50*time.Millisecond), cachepurge.BackoffConfig{
		Base: time.Millisecond, Max: time.Millisecond, Multiplier: 1,
	}, 3)

	if err := a.Clear(context.Background()); !errors.Is(err, cachepurge.ErrTimeout) {
		t.Fatalf("expected ErrTimeout while the first clear hangs, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("retries started %d inner clears while one was in flight", got)
	}

	close(release)
	if err := a.Clear(context.Background()); err != nil {
		t.Fatalf("clear after release: %v", err)
	}
	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Fatalf("inner clears overlapped: max in flight %d", got)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 inner clears, got %d", got)
	}
}
