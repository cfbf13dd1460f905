package upstream

import (
	"errors"
	"fmt"
)

// ErrUpstreamFailure is matched by every error FetchMatch returns. Callers
// apply one fallback policy regardless of what went wrong.
var ErrUpstreamFailure = errors.New("prediction service unavailable")

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses and requests that could not be built.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents requests aborted by the call timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassDecode represents bodies that are oversized or not valid JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// FetchError describes a failed upstream fetch for one match.
type FetchError struct {
	MatchID    string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error for match %q (status %d): %s: %v",
			e.ErrorClass, e.MatchID, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error for match %q (status %d): %s",
		e.ErrorClass, e.MatchID, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrUpstreamFailure.
func (e *FetchError) Is(target error) bool {
	return target == ErrUpstreamFailure
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	case ErrorClassClient:
		// 4xx will not change on a second attempt
		return false
	case ErrorClassTimeout:
		// the call budget is already spent
		return false
	case ErrorClassDecode:
		return false
	default:
		return false
	}
}
