package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      MCPError
		wantCode int
		wantCat  Category
	}{
		{"startup timeout", StartupTimeout("stdio:web", 2*time.Second), CodeStartupTimeout, CategoryTimeout},
		{"handshake", HandshakeFailed("stdio:web", fmt.Errorf("eof")), CodeHandshakeFailed, CategoryTransport},
		{"unavailable", TransportUnavailable("session not ready"), CodeTransportUnavailable, CategoryTransport},
		{"mode violation", ModeViolation(), CodeModeViolation, CategoryTransport},
		{"bind", ProcessBindFailure("127.0.0.1", 8001, time.Second), CodeProcessBindFailure, CategoryTransport},
		{"auth", AuthMismatch("http://x/mcp", nil), CodeAuthMismatch, CategoryAuth},
		{"tool", ToolCallError("code_search", "boom"), CodeToolCallError, CategoryTool},
		{"rate limited", RateLimited("tavily", nil), CodeRateLimited, CategoryUpstream},
		{"server 5xx", Server5xx("tavily", 503, nil), CodeServerError, CategoryUpstream},
		{"path escape", PathEscape("../etc/passwd"), CodePathEscape, CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Code(); got != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got, tt.wantCode)
			}
			if got := tt.err.Category(); got != tt.wantCat {
				t.Errorf("Category() = %v, want %v", got, tt.wantCat)
			}
			if tt.err.Error() == "" {
				t.Error("Error() returned empty string")
			}
			if tt.err.Context() == nil {
				t.Error("Context() should never return nil")
			}
			if GetErrorCodeName(tt.wantCode) == "UnknownError" {
				t.Errorf("code %d is not registered", tt.wantCode)
			}
		})
	}
}

func TestModeViolationMessage(t *testing.T) {
	if got := ModeViolation().Error(); got != "Transport mode is enabled but transport is not active." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestToolCallErrorText(t *testing.T) {
	if got := ToolCallError("x", "remote exploded").Error(); got != "remote exploded" {
		t.Errorf("Error() = %q", got)
	}
	if got := ToolCallError("x", "  ").Error(); got != "MCP tool call failed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrappingAndIs(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := HandshakeFailed("stdio:web", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}

	wrapped := fmt.Errorf("runtime start: %w", err)
	if !IsCode(wrapped, CodeHandshakeFailed) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if !stderrors.Is(wrapped, HandshakeFailed("", nil)) {
		t.Error("errors.Is should match on code")
	}
	if stderrors.Is(wrapped, StartupTimeout("", time.Second)) {
		t.Error("errors.Is must not match a different code")
	}
}

func TestWithContextLeavesOriginal(t *testing.T) {
	err := ValidationError("bad")
	withCtx := err.WithContext(&Context{Side: "web", Tool: "tavily_search"})

	if withCtx.Context().Side != "web" {
		t.Errorf("Side = %q", withCtx.Context().Side)
	}
	if err.Context().Side != "" {
		t.Error("original error was modified by WithContext()")
	}
	if withCtx.Context().Timestamp.IsZero() {
		t.Error("timestamp should be carried over")
	}
}

func TestWithDetail(t *testing.T) {
	err := ValidationError("bad config").WithDetail("port").WithDetail("host")
	if got := err.Error(); got != "bad config: port; host" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(RateLimited("ddg", nil)) {
		t.Error("429 should be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrap: %w", Server5xx("ddg", 502, nil))) {
		t.Error("5xx should be retryable through wrapping")
	}
	if IsRetryable(AuthMismatch("", nil)) {
		t.Error("auth mismatch must never be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("untyped errors are not classified here")
	}
}

func TestClassifyAuth(t *testing.T) {
	tests := []struct {
		in       error
		wantAuth bool
	}{
		{fmt.Errorf("request failed with status 401"), true},
		{fmt.Errorf("HTTP 403 Forbidden"), true},
		{fmt.Errorf("Unauthorized"), true},
		{fmt.Errorf("connection reset"), false},
		{nil, false},
	}
	for _, tt := range tests {
		got := ClassifyAuth("http://127.0.0.1:8001/mcp", tt.in)
		if IsCode(got, CodeAuthMismatch) != tt.wantAuth {
			t.Errorf("ClassifyAuth(%v) auth=%v, want %v", tt.in, !tt.wantAuth, tt.wantAuth)
		}
		if tt.wantAuth && !strings.Contains(got.Error(), "8001") {
			t.Errorf("expected endpoint in %q", got.Error())
		}
	}
}
