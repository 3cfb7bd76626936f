package logging

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())
	logger.SetLevel(DebugLevel)

	logger.Debug("Debug message", String("key", "value"))
	logger.Info("Info message", Int("count", 42))
	logger.Warn("Warning message", Bool("flag", true))
	logger.Error("Error message", ErrorField(errors.New("test error")))

	output := buf.String()
	for _, want := range []string{
		"Debug message", "Info message", "Warning message", "Error message",
		"key=value", "count=42", "flag=true", `error="test error"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())
	logger.SetLevel(WarnLevel)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("shown warn")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("messages below WarnLevel leaked: %s", output)
	}
	if !strings.Contains(output, "shown warn") {
		t.Error("expected warn message")
	}
}

func TestChildSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, NewTextFormatter())
	child := parent.WithFields(String("component", "session"))

	parent.SetLevel(ErrorLevel)
	child.Warn("suppressed")
	if buf.Len() != 0 {
		t.Errorf("child should follow parent level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel,
		"error": ErrorLevel, "off": Disabled, "bogus": InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithFieldsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter()
	f.DisableColors = true
	logger := New(&buf, f).WithFields(String("component", "runtime"), String("side", "web"))

	logger.Info("session ready")

	output := buf.String()
	if !strings.Contains(output, "runtime: session ready") {
		t.Errorf("expected component prefix, got %q", output)
	}
	if !strings.Contains(output, "side=web") {
		t.Errorf("expected side field, got %q", output)
	}
	if strings.Contains(output, "component=") {
		t.Errorf("component should not be repeated as a field: %q", output)
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	ctx := ContextWithRequestID(context.Background(), "req-123")
	logger.WithContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["request_id"] != "req-123" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
}

func TestWithTypedError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	err := mcperrors.StartupTimeout("stdio:web", 0)
	logger.WithError(err).Error("transport start failed")

	var entry map[string]any
	if jerr := json.Unmarshal(buf.Bytes(), &entry); jerr != nil {
		t.Fatalf("invalid JSON: %v", jerr)
	}
	if entry["error_code"] != "StartupTimeout" {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if entry["endpoint"] != "stdio:web" {
		t.Errorf("endpoint = %v", entry["endpoint"])
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestNopAndConfig(t *testing.T) {
	Nop().Error("nothing happens")

	var buf bytes.Buffer
	logger := NewFromConfig(&buf, "debug", "json")
	logger.Debug("visible")
	if !strings.Contains(buf.String(), `"message":"visible"`) {
		t.Errorf("expected JSON debug line, got %q", buf.String())
	}
}

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewTextFormatter())

	std := StdLogger(logger, WarnLevel, "stdio-server")
	std.Printf("broken pipe on %s", "stdout")

	output := buf.String()
	if !strings.Contains(output, "WARN") || !strings.Contains(output, "broken pipe on stdout") {
		t.Errorf("unexpected output %q", output)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())
	logger.SetLevel(DebugLevel)

	var seen string
	h := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusUnauthorized)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	if seen == "" {
		t.Fatal("request ID should be set in context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("response header = %q, want %q", rec.Header().Get("X-Request-ID"), seen)
	}
	if !strings.Contains(buf.String(), `"status":401`) || !strings.Contains(buf.String(), `"WARN"`) {
		t.Errorf("expected warn entry with status, got %q", buf.String())
	}
}
