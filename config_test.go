package cachepurge

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Mode != ModeSequential {
		t.Fatalf("expected sequential default, got %q", cfg.Mode)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = "random"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for unknown mode")
	}
	cfg = DefaultConfig()
	cfg.MaxParallel = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for negative MaxParallel")
	}
	cfg = Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty mode")
	}
}

func TestBackoffNext(t *testing.T) {
	b := BackoffConfig{Base: time.Second, Max: 10 * time.Second, Multiplier: 2}
	if got := b.Next(0); got != time.Second {
		t.Fatalf("retry0 expected 1s, got %v", got)
	}
	if got := b.Next(2); got != 4*time.Second {
		t.Fatalf("retry2 expected 4s, got %v", got)
	}
	if got := b.Next(10); got != b.Max {
		t.Fatalf("expected cap at %v, got %v", b.Max, got)
	}
}

func TestBackoffValidate(t *testing.T) {
	if err := DefaultBackoff().Validate(); err != nil {
		t.Fatalf("default backoff should be valid: %v", err)
	}
	b := BackoffConfig{Base: 2 * time.Second, Max: time.Second, Multiplier: 2}
	if err := b.Validate(); err == nil {
		t.Fatalf("expected error when base exceeds max")
	}
}
