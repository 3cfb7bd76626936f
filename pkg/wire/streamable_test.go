package wire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/protocol"
)

// fakeMCPHandler is a minimal streamable HTTP endpoint that echoes the
// method back as the result. stream switches replies to an event stream.
type fakeMCPHandler struct {
	stream bool

	mu       sync.Mutex
	sessions []string
	methods  []string
	deleted  string
	auth     []string
}

func (h *fakeMCPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.auth = append(h.auth, r.Header.Get("Authorization"))
	h.mu.Unlock()

	if r.Method == http.MethodDelete {
		h.mu.Lock()
		h.deleted = r.Header.Get(SessionHeader)
		h.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Header.Get("Authorization") == "Bearer wrong" {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	body, _ := io.ReadAll(r.Body)
	msg, err := protocol.DecodeMessage(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.methods = append(h.methods, msg.Method)
	h.sessions = append(h.sessions, r.Header.Get(SessionHeader))
	h.mu.Unlock()

	if msg.Method == protocol.MethodInitialize {
		w.Header().Set(SessionHeader, "sess-1")
	}
	if msg.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	result := fmt.Sprintf(`{"method":%q}`, msg.Method)
	if msg.Method == "missing" {
		resp := protocol.NewErrorResponse(msg.ID, protocol.MethodNotFound, "missing")
		data, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
		return
	}
	resp := &protocol.Response{
		JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
		ID:             msg.ID,
		Result:         protocol.RawMessage(result),
	}
	data, _ := json.Marshal(resp)

	if !h.stream {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\",\"params\":{\"progress\":1}}\n\n")
	fmt.Fprint(w, ": keep-alive\n\n")
	if msg.Method == "truncated" {
		return
	}
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
}

func TestStreamableJSONReplies(t *testing.T) {
	h := &fakeMCPHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	tr := NewStreamableHTTPTransport(srv.URL, WithHeaders(map[string]string{"Authorization": "Bearer tok"}))
	ctx := context.Background()

	raw, err := tr.Call(ctx, protocol.MethodInitialize, protocol.InitializeParams{ProtocolVersion: protocol.ProtocolRevision})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"initialize"}`, string(raw))
	assert.Equal(t, "sess-1", tr.SessionID())

	require.NoError(t, tr.Notify(ctx, protocol.MethodInitialized, nil))
	raw, err = tr.Call(ctx, protocol.MethodListTools, protocol.ListToolsParams{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"tools/list"}`, string(raw))

	_, err = tr.Call(ctx, "missing", nil)
	var rpcErr *protocol.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, protocol.MethodNotFound, rpcErr.Code)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	_, err = tr.Call(ctx, protocol.MethodPing, nil)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeTransportUnavailable))

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"initialize", "notifications/initialized", "tools/list", "missing"}, h.methods)
	assert.Equal(t, []string{"", "sess-1", "sess-1", "sess-1"}, h.sessions)
	assert.Equal(t, "sess-1", h.deleted)
	for _, a := range h.auth {
		assert.Equal(t, "Bearer tok", a)
	}
}

func TestStreamableEventStreamReplies(t *testing.T) {
	srv := httptest.NewServer(&fakeMCPHandler{stream: true})
	defer srv.Close()
	tr := NewStreamableHTTPTransport(srv.URL)
	defer tr.Close()

	raw, err := tr.Call(context.Background(), protocol.MethodCallTool, protocol.CallToolParams{Name: "ddg_search"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"tools/call"}`, string(raw))

	_, err = tr.Call(context.Background(), "truncated", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a reply")
}

func TestStreamableAuthFailure(t *testing.T) {
	srv := httptest.NewServer(&fakeMCPHandler{})
	defer srv.Close()
	tr := NewStreamableHTTPTransport(srv.URL, WithHeaders(map[string]string{"Authorization": "Bearer wrong"}))
	defer tr.Close()

	_, err := tr.Call(context.Background(), protocol.MethodInitialize, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error 401")
	assert.True(t, mcperrors.IsCode(mcperrors.ClassifyAuth(srv.URL, err), mcperrors.CodeAuthMismatch))
}

func TestClientHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		msg, err := protocol.DecodeMessage(body)
		if !assert.NoError(t, err) {
			return
		}
		if msg.IsNotification() {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		var result string
		switch msg.Method {
		case protocol.MethodInitialize:
			var params protocol.InitializeParams
			assert.NoError(t, json.Unmarshal(msg.Params, &params))
			assert.Equal(t, "toolbridge-test", params.ClientInfo.Name)
			assert.NotNil(t, params.Capabilities)
			result = `{"protocolVersion":"2025-03-26","capabilities":{"tools":{}},"serverInfo":{"name":"local_server","version":"2"}}`
		case protocol.MethodListTools:
			result = `{"tools":[{"name":"read_local_file","description":"read"}],"nextCursor":"c2"}`
		case protocol.MethodCallTool:
			var params protocol.CallToolParams
			assert.NoError(t, json.Unmarshal(msg.Params, &params))
			result = fmt.Sprintf(`{"content":[],"structuredContent":{"result":%q}}`, params.Arguments["path"])
		}
		resp := &protocol.Response{
			JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
			ID:             msg.ID,
			Result:         protocol.RawMessage(result),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	cli := NewClient(NewStreamableHTTPTransport(srv.URL), "toolbridge-test", "0")
	defer cli.Close()
	ctx := context.Background()

	assert.Nil(t, cli.Server())
	require.NoError(t, cli.Initialize(ctx))
	assert.Equal(t, "local_server", cli.Server().ServerInfo.Name)
	assert.True(t, cli.Server().HasCapability("tools"))

	page, err := cli.ListTools(ctx, "")
	require.NoError(t, err)
	require.Len(t, page.Tools, 1)
	assert.Equal(t, "read_local_file", page.Tools[0].Name)
	assert.Equal(t, "c2", page.NextCursor)

	raw, err := cli.CallTool(ctx, "read_local_file", map[string]any{"path": "README.md"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[],"structuredContent":{"result":"README.md"}}`, string(raw))
}
