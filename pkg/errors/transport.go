package errors

import (
	"fmt"
	"strings"
	"time"
)

// StartupTimeout reports a session that did not become ready in time.
func StartupTimeout(endpoint string, timeout time.Duration) MCPError {
	msg := fmt.Sprintf("session startup timed out after %v", timeout)
	if endpoint != "" {
		msg = fmt.Sprintf("%s (%s)", msg, endpoint)
	}
	return NewError(CodeStartupTimeout, msg, CategoryTimeout, SeverityError).
		WithContext(&Context{Endpoint: endpoint, Operation: "start", Timestamp: time.Now()})
}

// HandshakeFailed wraps a connect or initialize failure.
func HandshakeFailed(endpoint string, cause error) MCPError {
	msg := "session handshake failed"
	if endpoint != "" {
		msg = fmt.Sprintf("session handshake with %s failed", endpoint)
	}
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return WrapError(cause, CodeHandshakeFailed, msg, CategoryTransport, SeverityError).
		WithContext(&Context{Endpoint: endpoint, Operation: "initialize", Timestamp: time.Now()})
}

// TransportUnavailable reports a call made while the session or transport is
// not ready.
func TransportUnavailable(reason string) MCPError {
	return NewError(CodeTransportUnavailable, reason, CategoryTransport, SeverityWarning)
}

// ModeViolation is returned in strict transport mode when the transport is
// not active.
func ModeViolation() MCPError {
	return NewError(CodeModeViolation,
		"Transport mode is enabled but transport is not active.",
		CategoryTransport, SeverityCritical)
}

// ProcessBindFailure reports a server process whose port never accepted a
// connection before the deadline.
func ProcessBindFailure(host string, port int, timeout time.Duration) MCPError {
	return NewErrorf(CodeProcessBindFailure, CategoryTransport, SeverityCritical,
		"server process did not bind %s:%d within %v", host, port, timeout)
}

// ProcessFailed wraps a spawn failure.
func ProcessFailed(command string, cause error) MCPError {
	return WrapErrorf(cause, CodeProcessFailed, CategoryTransport, SeverityCritical,
		"failed to start server process %q: %v", command, cause)
}

// AuthMismatch reports a rejected bearer token.
func AuthMismatch(endpoint string, cause error) MCPError {
	msg := "authentication rejected"
	if endpoint != "" {
		msg = fmt.Sprintf("authentication rejected by %s", endpoint)
	}
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return WrapError(cause, CodeAuthMismatch, msg, CategoryAuth, SeverityError)
}

// ToolCallError carries the text of a remote tool failure.
func ToolCallError(tool, text string) MCPError {
	if strings.TrimSpace(text) == "" {
		text = "MCP tool call failed"
	}
	return NewError(CodeToolCallError, text, CategoryTool, SeverityError).
		WithContext(&Context{Tool: tool, Operation: "tools/call", Timestamp: time.Now()})
}

// OperationTimeout reports a caller-side deadline.
func OperationTimeout(operation string, timeout time.Duration) MCPError {
	return NewErrorf(CodeOperationTimeout, CategoryTimeout, SeverityError,
		"%s timed out after %v", operation, timeout)
}

// UnknownTool reports a tool name a provider does not serve.
func UnknownTool(tool string) MCPError {
	return NewErrorf(CodeUnknownTool, CategoryTool, SeverityError, "unknown tool %q", tool)
}

// RateLimited reports HTTP 429 from an upstream API.
func RateLimited(provider string, cause error) MCPError {
	return WrapErrorf(cause, CodeRateLimited, CategoryUpstream, SeverityWarning,
		"%s rate limited (429)", provider)
}

// Server5xx reports an HTTP 5xx from an upstream API.
func Server5xx(provider string, status int, cause error) MCPError {
	return WrapErrorf(cause, CodeServerError, CategoryUpstream, SeverityError,
		"%s returned HTTP %d", provider, status)
}

// ProviderFailure wraps any other upstream failure.
func ProviderFailure(provider string, cause error) MCPError {
	return WrapErrorf(cause, CodeProviderFail, CategoryProvider, SeverityError,
		"%s failed: %v", provider, cause)
}

// ValidationError reports a bad configuration or argument.
func ValidationError(message string) MCPError {
	return NewError(CodeValidationError, message, CategoryValidation, SeverityError)
}

// InvalidParameter reports a bad value for a named parameter.
func InvalidParameter(name, reason string) MCPError {
	return NewErrorf(CodeInvalidParameter, CategoryValidation, SeverityError,
		"invalid %s: %s", name, reason)
}

// PathEscape reports a path that resolves outside the project root.
func PathEscape(path string) MCPError {
	return NewErrorf(CodePathEscape, CategoryValidation, SeverityError,
		"path escapes project root: %s", path)
}

var authMarkers = []string{"401", "403", "unauthorized", "forbidden"}

// ClassifyAuth returns an AuthMismatch when cause looks like a rejected
// token, and cause unchanged otherwise.
func ClassifyAuth(endpoint string, cause error) error {
	if cause == nil || IsCode(cause, CodeAuthMismatch) {
		return cause
	}
	text := strings.ToLower(cause.Error())
	for _, marker := range authMarkers {
		if strings.Contains(text, marker) {
			return AuthMismatch(endpoint, cause)
		}
	}
	return cause
}
