package grid

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when the provider acknowledges a query without matching data.
var ErrNoData = errors.New("no matching data")

// InvalidRangeError is returned for a user date selection that cannot be resolved.
type InvalidRangeError struct {
	Start  Date
	End    Date
	Reason string
}

func (e *InvalidRangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid range %s..%s: %s", e.Start, e.End, e.Reason)
	}
	return fmt.Sprintf("invalid range: start %s is after end %s", e.Start, e.End)
}

// IsInvalidRange checks if an error is an InvalidRangeError.
func IsInvalidRange(err error) bool {
	var ire *InvalidRangeError
	return errors.As(err, &ire)
}

// ProviderUnavailableError covers network failures, timeouts and provider-side outages.
type ProviderUnavailableError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: provider unavailable: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: provider unavailable", e.Provider, e.Op)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// NewProviderUnavailableError creates a new ProviderUnavailableError.
func NewProviderUnavailableError(provider, op string, err error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Provider: provider, Op: op, Err: err}
}

// IsProviderUnavailable checks if an error is a ProviderUnavailableError.
func IsProviderUnavailable(err error) bool {
	var pue *ProviderUnavailableError
	return errors.As(err, &pue)
}

// ProviderDataError covers malformed or empty provider responses.
type ProviderDataError struct {
	Provider string
	Op       string
	Reason   string
	Err      error
}

func (e *ProviderDataError) Error() string {
	msg := fmt.Sprintf("%s %s: bad provider data", e.Provider, e.Op)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderDataError) Unwrap() error {
	return e.Err
}

// NewProviderDataError creates a new ProviderDataError.
func NewProviderDataError(provider, op, reason string, err error) *ProviderDataError {
	return &ProviderDataError{Provider: provider, Op: op, Reason: reason, Err: err}
}

// IsProviderData checks if an error is a ProviderDataError.
func IsProviderData(err error) bool {
	var pde *ProviderDataError
	return errors.As(err, &pde)
}

// IsProviderError reports whether err means "no data for this request".
func IsProviderError(err error) bool {
	return IsProviderUnavailable(err) || IsProviderData(err)
}
