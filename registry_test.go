package cachepurge

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRegistryPreservesOrder(t *testing.T) {
	r, err := NewRegistry(
		NewAdapterFunc("offline-db", nil),
		NewAdapterFunc("kv", nil),
		NewAdapterFunc("response-cache", nil),
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	got := r.Names()
	want := []string{"offline-db", "kv", "response-cache"}
	if len(got) != len(want) {
		t.Fatalf("unexpected names %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestRegistryDuplicateLeavesRegistryUnchanged(t *testing.T) {
	first := NewAdapterFunc("kv", nil)
	r, err := NewRegistry(first, NewAdapterFunc("offline-db", nil))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	err = r.Register(NewAdapterFunc("kv", func(context.Context) error { return nil }))
	var dup *DuplicateAdapterError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAdapterError, got %v", err)
	}
	if dup.Name != "kv" {
		t.Fatalf("unexpected duplicate name %q", dup.Name)
	}
	if r.Len() != 2 {
		t.Fatalf("registry length changed: %d", r.Len())
	}
	if names := r.Names(); names[0] != "kv" || names[1] != "offline-db" {
		t.Fatalf("registry order changed: %v", names)
	}
}

func TestRegistryRejectsInvalidAdapters(t *testing.T) {
	r, _ := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Fatalf("expected error for nil adapter")
	}
	if err := r.Register(NewAdapterFunc("", nil)); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if r.Len() != 0 {
		t.Fatalf("invalid adapters must not be registered")
	}
}

func TestNewRegistryFailsFastOnDuplicate(t *testing.T) {
	_, err := NewRegistry(NewAdapterFunc("a", nil), NewAdapterFunc("a", nil))
	var dup *DuplicateAdapterError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAdapterError, got %v", err)
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	var r Registry
	r.MustRegister(NewAdapterFunc("a", nil))
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate MustRegister")
		}
	}()
	r.MustRegister(NewAdapterFunc("a", nil))
}

func TestRegistrySnapshotIsolated(t *testing.T) {
	r, _ := NewRegistry(NewAdapterFunc("a", nil))
	snap := r.List()
	r.MustRegister(NewAdapterFunc("b", nil))
	if len(snap) != 1 {
		t.Fatalf("snapshot mutated by later registration: %d", len(snap))
	}
}

func TestRegistryConcurrentRegister(t *testing.T) {
	r, _ := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Register(NewAdapterFunc("same", nil))
			_ = r.List()
		}()
	}
	wg.Wait()
	if r.Len() != 1 {
		t.Fatalf("expected exactly one registration, got %d", r.Len())
	}
}
