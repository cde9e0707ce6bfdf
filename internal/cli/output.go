package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/halftrip/cachepurge"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Purge incomplete or sign-out failed
	ExitCommandError = 2 // Bad flags, unreadable config, unreachable store
)

// ExitError carries an exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Non-ExitErrors map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// writeResult prints a purge result as text or JSON.
func writeResult(w io.Writer, format string, res cachepurge.AggregateResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "pass %s (%s)\n", res.PassID, res.Duration())
	for _, o := range res.Outcomes {
		status := "ok"
		if !o.Success {
			status = "FAILED " + o.Error
		}
		fmt.Fprintf(w, "  %-16s %s\n", o.Adapter, status)
	}
	if res.AllSucceeded {
		fmt.Fprintln(w, "all stores cleared")
	} else {
		names := make([]string, 0)
		for _, o := range res.Failed() {
			names = append(names, o.Adapter)
		}
		fmt.Fprintf(w, "not cleared: %s\n", strings.Join(names, ", "))
	}
	return nil
}
