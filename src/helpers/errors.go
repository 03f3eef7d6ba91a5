package helpers

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Error Kinds & Wire Codes
// -----------------------------------------------------------------------------

// ErrorKind classifies every failure the gateway can surface.
type ErrorKind string

const (
	KindNoData              ErrorKind = "no_data"
	KindBadTimeframe        ErrorKind = "bad_timeframe"
	KindRateLimited         ErrorKind = "rate_limited"
	KindCircuitOpen         ErrorKind = "circuit_open"
	KindTimeout             ErrorKind = "timeout"
	KindNoContext           ErrorKind = "no_context"
	KindDeadlineExceeded    ErrorKind = "deadline_exceeded"
	KindAuthFailed          ErrorKind = "auth_failed"
	KindDisconnected        ErrorKind = "disconnected"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindValidation          ErrorKind = "validation"
)

// wireCodes maps each kind to the stable code clients key on.
var wireCodes = map[ErrorKind]string{
	KindNoData:              "MD_001",
	KindBadTimeframe:        "MD_002",
	KindRateLimited:         "MD_008",
	KindCircuitOpen:         "GW_002",
	KindTimeout:             "AN_007",
	KindNoContext:           "AN_002",
	KindDeadlineExceeded:    "AN_008",
	KindAuthFailed:          "AU_001",
	KindDisconnected:        "CN_001",
	KindUpstreamUnavailable: "AN_004",
	KindValidation:          "GW_001",
}

// -----------------------------------------------------------------------------

// GatewayError is the only error type that crosses component boundaries.
// The message is written for clients; the cause stays server-side.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Code returns the wire code for the error's kind.
func (e *GatewayError) Code() string {
	if code, ok := wireCodes[e.Kind]; ok {
		return code
	}
	return "GW_000"
}

// -----------------------------------------------------------------------------

// NewError builds a GatewayError without a cause.
func NewError(kind ErrorKind, format string, args ...interface{}) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a GatewayError around an underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// -----------------------------------------------------------------------------

// KindOf extracts the kind from err, or "" if err carries no GatewayError.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) a GatewayError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// CodeOf returns the wire code for err, falling back to the generic code.
func CodeOf(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code()
	}
	return "GW_000"
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		fmt.Printf("Warning: Attempt %d/%d failed for %s: %v. Retrying in %v\n", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return nil, lastErr
}
