package fakestore

import (
	"context"
	"sync"
	"time"

	"github.com/halftrip/cachepurge"
)

// Store is an in-memory adapter with fault injection for tests.
type Store struct {
	name string

	mu        sync.Mutex
	entries   map[string][]byte
	clears    int
	failKind  error
	failCause error
	panicMsg  string
	delay     time.Duration
	rawErr    error
	onClear   func(name string)
}

// New returns an empty store registered under name.
func New(name string) *Store {
	return &Store{name: name, entries: map[string][]byte{}}
}

// Name implements cachepurge.Adapter.
func (s *Store) Name() string { return s.name }

// Put stores a value.
func (s *Store) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), value...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clears returns how many times Clear was invoked.
func (s *Store) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

// FailWith makes subsequent clears fail with a ClearError of the given kind.
func (s *Store) FailWith(kind, cause error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKind, s.failCause = kind, cause
	return s
}

// FailRaw makes subsequent clears return err as-is, without ClearError wrapping.
func (s *Store) FailRaw(err error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawErr = err
	return s
}

// PanicWith makes subsequent clears panic.
func (s *Store) PanicWith(msg string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicMsg = msg
	return s
}

// Delay makes each clear wait d (or until ctx is done) before running.
func (s *Store) Delay(d time.Duration) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

// Heal removes any injected failure.
func (s *Store) Heal() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKind, s.failCause, s.rawErr, s.panicMsg = nil, nil, nil, ""
	return s
}

// OnClear registers a hook called at the start of every clear.
func (s *Store) OnClear(fn func(name string)) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = fn
	return s
}

// Clear implements cachepurge.Adapter.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.clears++
	hook, delay, panicMsg := s.onClear, s.delay, s.panicMsg
	failKind, failCause, rawErr := s.failKind, s.failCause, s.rawErr
	s.mu.Unlock()

	if hook != nil {
		hook(s.name)
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return cachepurge.NewClearError(s.name, cachepurge.ErrTimeout, ctx.Err())
		case <-time.After(delay):
		}
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if rawErr != nil {
		return rawErr
	}
	if failKind != nil {
		return cachepurge.NewClearError(s.name, failKind, failCause)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string][]byte{}
	return nil
}
