package toolserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/observability"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/session"
)

type echoProvider struct {
	healthy bool
}

func (e *echoProvider) Side() string { return provider.SideWeb }

func (e *echoProvider) Tools() []provider.Tool {
	return []provider.Tool{
		{Name: "echo", Description: "Echo text", Params: []provider.Param{
			{Name: "text", Type: provider.ParamString, Required: true},
			{Name: "times", Type: provider.ParamNumber},
		}},
		{Name: "boom", Description: "Always fails"},
	}
}

func (e *echoProvider) Call(_ context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case "echo":
		return map[string]any{"text": args["text"], "times": args["times"]}, nil
	case "boom":
		return nil, errors.New("upstream exploded")
	}
	return nil, mcperrors.UnknownTool(tool)
}

func (e *echoProvider) Degraded(string, map[string]any) any { return nil }

func (e *echoProvider) Health() map[string]any {
	if e.healthy {
		return map[string]any{"status": "ok"}
	}
	return map[string]any{"status": "down"}
}

func newHTTPServer(t *testing.T, token string, opts ...Option) (*httptest.Server, *Server) {
	t.Helper()
	s := New(&echoProvider{healthy: true}, opts...)
	ts := httptest.NewServer(s.HTTPHandler(token))
	t.Cleanup(ts.Close)
	return ts, s
}

func connect(t *testing.T, url string, headers map[string]string) session.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := session.HTTPConnector(url, headers)(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHTTPToolCalls(t *testing.T) {
	ts, _ := newHTTPServer(t, "tok")
	conn := connect(t, ts.URL+EndpointPath, map[string]string{"Authorization": "Bearer tok"})
	ctx := context.Background()

	tools, err := conn.ListTools(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"echo", "boom"}, tools)

	got, err := conn.CallTool(ctx, "echo", map[string]any{"text": "hi", "times": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"text": "hi", "times": float64(2)}, got)

	_, err = conn.CallTool(ctx, "boom", nil)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeToolCallError))
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestHTTPRejectsMissingToken(t *testing.T) {
	ts, _ := newHTTPServer(t, "tok")

	resp, err := http.Post(ts.URL+EndpointPath, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = session.HTTPConnector(ts.URL+EndpointPath, map[string]string{"Authorization": "Bearer wrong"})(ctx)
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(mcperrors.ClassifyAuth(ts.URL, err), mcperrors.CodeAuthMismatch), err.Error())
}

func TestHTTPWithoutToken(t *testing.T) {
	ts, _ := newHTTPServer(t, "")
	conn := connect(t, ts.URL+EndpointPath, nil)
	_, err := conn.ListTools(context.Background())
	assert.NoError(t, err)
}

func TestHealthz(t *testing.T) {
	ts, _ := newHTTPServer(t, "tok")
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	down := httptest.NewServer(New(&echoProvider{}).HTTPHandler(""))
	defer down.Close()
	resp, err = http.Get(down.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	rec, err := observability.NewPrometheusRecorder(observability.MetricsConfig{})
	require.NoError(t, err)
	ts, _ := newHTTPServer(t, "", WithMetrics(rec))

	conn := connect(t, ts.URL+EndpointPath, nil)
	_, err = conn.CallTool(context.Background(), "echo", map[string]any{"text": "x"})
	require.NoError(t, err)
	_, _ = conn.CallTool(context.Background(), "boom", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `toolbridge_server_tool_total{side="web",status="success",tool="echo"} 1`)
	assert.Contains(t, string(body), `toolbridge_server_tool_total{side="web",status="error",tool="boom"} 1`)

	plain, _ := newHTTPServer(t, "")
	resp, err = http.Get(plain.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// rpc writes one JSON-RPC message per line and reads responses back.
type rpc struct {
	w   io.Writer
	out *bufio.Scanner
}

func (r *rpc) send(t *testing.T, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	_, err = r.w.Write(append(data, '\n'))
	require.NoError(t, err)
}

func (r *rpc) recv(t *testing.T) map[string]any {
	t.Helper()
	require.True(t, r.out.Scan(), "no response")
	var msg map[string]any
	require.NoError(t, json.Unmarshal(r.out.Bytes(), &msg))
	return msg
}

func TestServeStdio(t *testing.T) {
	s := New(&echoProvider{healthy: true})
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.ServeStdio(ctx, inR, outW)
		_ = outW.Close()
	}()

	c := &rpc{w: inW, out: bufio.NewScanner(outR)}
	c.send(t, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "initialize", "params": map[string]any{
		"protocolVersion": "2025-03-26",
		"clientInfo":      map[string]any{"name": "test", "version": "1"},
		"capabilities":    map[string]any{},
	}})
	init := c.recv(t)
	assert.Equal(t, "toolbridge-web", init["result"].(map[string]any)["serverInfo"].(map[string]any)["name"])
	c.send(t, map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"})

	c.send(t, map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/call", "params": map[string]any{
		"name": "echo", "arguments": map[string]any{"text": "over stdio"},
	}})
	reply := c.recv(t)
	raw, err := json.Marshal(reply["result"])
	require.NoError(t, err)
	value, err := session.DecodeResult("echo", raw)
	require.NoError(t, err)
	assert.Equal(t, "over stdio", value.(map[string]any)["text"])

	cancel()
	_ = inW.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop")
	}
}

func TestListenAndServeSecurity(t *testing.T) {
	s := New(&echoProvider{healthy: true})

	cfg := config.Default()
	cfg.HTTPHost = "0.0.0.0"
	cfg.AuthToken = "tok"
	err := s.ListenAndServe(context.Background(), cfg)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeValidationError))

	cfg = config.Default()
	err = s.ListenAndServe(context.Background(), cfg)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeValidationError))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := New(&echoProvider{healthy: true})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln, "tok") }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestProviderFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ProjectRoot = t.TempDir()

	web, err := ProviderFromConfig(provider.SideWeb, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, provider.SideWeb, web.Side())

	local, err := ProviderFromConfig(provider.SideLocal, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, provider.SideLocal, local.Side())

	_, err = ProviderFromConfig("moon", cfg, nil)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeInvalidParameter))
}

func TestToolDefinition(t *testing.T) {
	def := toolDefinition(provider.Tool{Name: "echo", Description: "Echo text", Params: []provider.Param{
		{Name: "text", Type: provider.ParamString, Required: true},
		{Name: "times", Type: provider.ParamNumber},
	}})
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, "Echo text", def.Description)
	assert.Equal(t, []string{"text"}, def.InputSchema.Required)
	assert.Equal(t, "number", def.InputSchema.Properties["times"].(map[string]any)["type"])
}
