package cachepurge

import (
	"fmt"
	"time"
)

// Mode selects how a pass schedules adapter clears.
type Mode string

const (
	// ModeSequential clears adapters one after another in registration order.
	ModeSequential Mode = "sequential"
	// ModeConcurrent fans clears out, bounded by Config.MaxParallel.
	ModeConcurrent Mode = "concurrent"
)

// Config controls how the coordinator runs a purge pass.
type Config struct {
	Mode Mode `json:"mode" yaml:"mode"`
	// MaxParallel caps concurrent clears in ModeConcurrent. 0 means one goroutine per adapter.
	MaxParallel int `json:"maxParallel" yaml:"maxParallel"`
}

// BackoffConfig describes an exponential backoff policy.
type BackoffConfig struct {
	Base       time.Duration `json:"base" yaml:"base"`
	Max        time.Duration `json:"max" yaml:"max"`
	Multiplier float64       `json:"multiplier" yaml:"multiplier"`
}

// Next returns the next backoff duration for the given retry count.
func (b BackoffConfig) Next(retry int) time.Duration {
	if retry <= 0 {
		return b.Base
	}
	d := float64(b.Base)
	for i := 0; i < retry; i++ {
		d *= b.Multiplier
		if d >= float64(b.Max) {
			return b.Max
		}
	}
	return time.Duration(d)
}

// DefaultConfig returns the sequential configuration used for sign-out.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeSequential,
		MaxParallel: 0,
	}
}

// DefaultBackoff returns the retry backoff used by WithRetry when none is given.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Base:       50 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 2.0,
	}
}

// Validate ensures config values are safe.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSequential, ModeConcurrent:
	case "":
		return fmt.Errorf("Mode required")
	default:
		return fmt.Errorf("unknown Mode %q", c.Mode)
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("MaxParallel cannot be negative")
	}
	return nil
}

// Validate ensures the backoff policy is usable.
func (b BackoffConfig) Validate() error {
	if b.Base <= 0 {
		return fmt.Errorf("Base must be >0")
	}
	if b.Max <= 0 {
		return fmt.Errorf("Max must be >0")
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("Multiplier must be >=1")
	}
	if b.Base > b.Max {
		return fmt.Errorf("Base must be <= Max")
	}
	return nil
}
