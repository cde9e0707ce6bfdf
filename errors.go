package cachepurge

import (
	"errors"
	"fmt"
)

// Clear failure kinds. A *ClearError unwraps to exactly one of these.
var (
	ErrUnavailable   = errors.New("store unavailable")
	ErrAccessDenied  = errors.New("access denied")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrTimeout       = errors.New("clear timed out")
	ErrPanic         = errors.New("clear panicked")
	ErrFault         = errors.New("clear failed")
)

// ErrNilAction is returned by SecureTransition when no sensitive action was supplied.
var ErrNilAction = errors.New("sensitive action is nil")

// ClearError reports why an adapter could not empty its store.
type ClearError struct {
	Adapter string
	Kind    error
	Err     error
}

// NewClearError builds a ClearError. A nil kind is treated as ErrFault.
func NewClearError(adapter string, kind, cause error) *ClearError {
	if kind == nil {
		kind = ErrFault
	}
	return &ClearError{Adapter: adapter, Kind: kind, Err: cause}
}

func (e *ClearError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("clear %s: %v", e.Adapter, e.Kind)
	}
	return fmt.Sprintf("clear %s: %v: %v", e.Adapter, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *ClearError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// DuplicateAdapterError is returned when an adapter name is registered twice.
type DuplicateAdapterError struct {
	Name string
}

func (e *DuplicateAdapterError) Error() string {
	return fmt.Sprintf("adapter %q already registered", e.Name)
}

// asClearError normalizes any error returned by an adapter into a *ClearError. An
// adapter's own ClearError is copied, never filled in place, since adapters may share one.
func asClearError(adapter string, err error) *ClearError {
	var ce *ClearError
	if errors.As(err, &ce) {
		cp := *ce
		if cp.Adapter == "" {
			cp.Adapter = adapter
		}
		if cp.Kind == nil {
			cp.Kind = ErrFault
		}
		return &cp
	}
	return NewClearError(adapter, ErrFault, err)
}
