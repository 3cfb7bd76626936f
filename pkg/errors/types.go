// Package errors defines the typed failure taxonomy of the tool bridge.
//
// Every failure that crosses a package boundary (session startup, remote tool
// errors, process binding, authentication, upstream throttling) is an MCPError
// carrying a numeric code, a category used for coarse classification, and the
// underlying cause so that errors.Is and errors.As keep working.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Category groups codes for coarse handling decisions.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryAuth       Category = "auth"
	CategoryTransport  Category = "transport"
	CategoryProvider   Category = "provider"
	CategoryTool       Category = "tool"
	CategoryTimeout    Category = "timeout"
	CategoryUpstream   Category = "upstream"
	CategoryInternal   Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records where an error was raised.
type Context struct {
	Side      string    `json:"side,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MCPError is implemented by every error this module returns on purpose.
type MCPError interface {
	error

	// Code returns the numeric error code
	Code() int

	// Message returns the human-readable message without details
	Message() string

	// Details returns the accumulated detail text
	Details() string

	Category() Category
	Severity() Severity

	// Context never returns nil
	Context() *Context

	// WithContext returns a copy carrying ctx
	WithContext(ctx *Context) MCPError

	// WithDetail returns a copy with detail appended
	WithDetail(detail string) MCPError

	Unwrap() error
}

type baseError struct {
	code     int
	message  string
	details  string
	category Category
	severity Severity
	context  *Context
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Details() string    { return e.details }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Context() *Context  { return e.context }
func (e *baseError) Unwrap() error      { return e.cause }

func (e *baseError) WithContext(ctx *Context) MCPError {
	clone := *e
	if ctx != nil && ctx.Timestamp.IsZero() {
		ctx.Timestamp = e.context.Timestamp
	}
	clone.context = ctx
	if clone.context == nil {
		clone.context = &Context{Timestamp: e.context.Timestamp}
	}
	return &clone
}

func (e *baseError) WithDetail(detail string) MCPError {
	clone := *e
	if clone.details != "" {
		clone.details = fmt.Sprintf("%s; %s", clone.details, detail)
	} else {
		clone.details = detail
	}
	return &clone
}

// Is matches another MCPError with the same code, so sentinel-style checks
// such as errors.Is(err, errors.StartupTimeout("", 0)) work across wrapping.
func (e *baseError) Is(target error) bool {
	var other *baseError
	if stderrors.As(target, &other) {
		return other.code == e.code
	}
	return false
}

// NewError creates an MCPError with no cause.
func NewError(code int, message string, category Category, severity Severity) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// NewErrorf is NewError with a formatted message.
func NewErrorf(code int, category Category, severity Severity, format string, args ...any) MCPError {
	return NewError(code, fmt.Sprintf(format, args...), category, severity)
}

// WrapError wraps cause as an MCPError.
func WrapError(cause error, code int, message string, category Category, severity Severity) MCPError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    cause,
		context:  &Context{Timestamp: time.Now()},
	}
}

// WrapErrorf is WrapError with a formatted message.
func WrapErrorf(cause error, code int, category Category, severity Severity, format string, args ...any) MCPError {
	return WrapError(cause, code, fmt.Sprintf(format, args...), category, severity)
}

// AsMCPError finds the first MCPError in err's chain.
func AsMCPError(err error) (MCPError, bool) {
	if err == nil {
		return nil, false
	}
	var mcpErr MCPError
	if stderrors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// IsMCPError reports whether err's chain holds an MCPError.
func IsMCPError(err error) bool {
	_, ok := AsMCPError(err)
	return ok
}

// IsCategory reports whether the first MCPError in err's chain has category.
func IsCategory(err error, category Category) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Category() == category
	}
	return false
}

// IsCode reports whether the first MCPError in err's chain has code.
func IsCode(err error, code int) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr.Code() == code
	}
	return false
}

// IsRetryable reports whether err is a typed error whose code is known to be
// transient. Untyped errors return false; callers fall back to text matching.
func IsRetryable(err error) bool {
	if mcpErr, ok := AsMCPError(err); ok {
		return isRetryableCode(mcpErr.Code())
	}
	return false
}

// Join is errors.Join, re-exported so callers do not need both packages.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
