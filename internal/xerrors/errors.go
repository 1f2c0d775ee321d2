// Package xerrors provides structured operation errors shared across the
// inspector's core engine and resolver back-ends.
package xerrors

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// OperationError describes a failed operation with enough structure for
// both humans (Error()) and callers (Unwrap()) to act on.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Operation)
	if e.Component != "" {
		b.WriteString(", component: ")
		b.WriteString(e.Component)
	}
	if e.Resource != "" {
		b.WriteString(", resource: ")
		b.WriteString(e.Resource)
	}
	if e.Cause != nil {
		b.WriteString(", cause: ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a "failed to <action>[: <cause>]" error: an *OperationError
// when cause is nil, otherwise the plain colon form of operationErrorf.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return &operationErrorf{action: action, cause: cause}
}

// operationErrorf renders as "failed to <action>: <cause>" — a plain colon
// form distinct from OperationError's component/resource form, matching the
// two error shapes the teacher's error helpers produce.
type operationErrorf struct {
	action string
	cause  error
}

func (e *operationErrorf) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.action, e.cause.Error())
}

func (e *operationErrorf) Unwrap() error {
	return e.cause
}

// FailedToWithDetails builds the full OperationError form.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with additional context, returning nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// NetworkError builds an OperationError for a network-facing resolver failure.
func NetworkError(action, endpoint string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: "network",
		Resource:  endpoint,
		Cause:     cause,
	}
}

// ParseError builds an OperationError for a malformed payload.
func ParseError(what, format string, cause error) error {
	return &OperationError{
		Operation: fmt.Sprintf("parse %s as %s", what, format),
		Component: "parser",
		Cause:     cause,
	}
}

// ConfigurationError reports an invalid configuration setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// ValidationError reports a field-level validation failure.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// TimeoutError reports an operation that exceeded its deadline.
func TimeoutError(waitingFor, after string) error {
	return fmt.Errorf("timeout while waiting for %s after %s", waitingFor, after)
}

// AuthenticationError reports a failed authentication attempt.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports a denied action.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// IsRetryable reports whether err looks like a transient condition worth
// retrying at a layer above the resolver. The engine itself never retries
// (per the inspector's no-retry policy).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"timeout", "connection refused", "unavailable", "temporarily"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

// Chain joins non-nil errors into a single error, or returns nil if none
// are non-nil.
func Chain(errs ...error) error {
	var nonNil []string
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e.Error())
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", nonNil[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(nonNil, "; "))
	}
}
