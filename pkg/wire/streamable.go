package wire

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/protocol"
)

// SessionHeader carries the server-assigned session ID.
const SessionHeader = "Mcp-Session-Id"

const (
	maxErrorBody        = 4 << 10
	closeSessionTimeout = 2 * time.Second
)

// StreamableHTTPTransport posts each message to a single MCP endpoint. Replies
// come back either as a JSON body or as a server-sent event stream on the
// same response.
type StreamableHTTPTransport struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
	logger   logging.Logger
	ids      *pending

	mu        sync.Mutex
	sessionID string
	closed    bool
}

// HTTPOption configures a StreamableHTTPTransport.
type HTTPOption func(*StreamableHTTPTransport)

// WithHeaders adds headers, typically Authorization, to every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(t *StreamableHTTPTransport) {
		for k, v := range headers {
			t.headers[k] = v
		}
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *StreamableHTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) HTTPOption {
	return func(t *StreamableHTTPTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewStreamableHTTPTransport does no I/O; the first Call opens the session.
func NewStreamableHTTPTransport(endpoint string, opts ...HTTPOption) *StreamableHTTPTransport {
	t := &StreamableHTTPTransport{
		endpoint: endpoint,
		headers:  map[string]string{},
		client:   http.DefaultClient,
		logger:   logging.Nop(),
		ids:      newPending("http"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithFields(logging.String("component", "wire"), logging.String("endpoint", endpoint))
	return t
}

// SessionID is empty until the server assigns one.
func (t *StreamableHTTPTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Call posts a request and reads its reply from the response.
func (t *StreamableHTTPTransport) Call(ctx context.Context, method string, params any) (protocol.RawMessage, error) {
	id := t.ids.next()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	resp, err := t.post(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			sendCancel(t, id, ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	reply, err := t.readReply(resp, id)
	if err != nil {
		if ctx.Err() != nil {
			sendCancel(t, id, ctx.Err())
			return nil, ctx.Err()
		}
		return nil, err
	}
	return resultOf(reply)
}

// Notify posts a one-way message; the server answers 202 with no body.
func (t *StreamableHTTPTransport) Notify(ctx context.Context, method string, params any) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	resp, err := t.post(ctx, n)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (t *StreamableHTTPTransport) post(ctx context.Context, message any) (*http.Response, error) {
	t.mu.Lock()
	closed, sessionID := t.closed, t.sessionID
	t.mu.Unlock()
	if closed {
		return nil, errClosed()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if sid := resp.Header.Get(SessionHeader); sid != "" {
		t.mu.Lock()
		if t.sessionID != sid {
			t.logger.Debug("session assigned", logging.String("session_id", sid))
			t.sessionID = sid
		}
		t.mu.Unlock()
	}
	return resp, nil
}

func (t *StreamableHTTPTransport) readReply(resp *http.Response, id string) (*protocol.Response, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/event-stream":
		return t.readEventStream(resp.Body, id)
	case "application/json":
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON response body: %w", err)
		}
		msg, err := protocol.DecodeMessage(data)
		if err != nil {
			return nil, err
		}
		if !msg.IsResponse() || protocol.IDKey(msg.ID) != protocol.IDKey(id) {
			return nil, fmt.Errorf("response does not answer request %s", id)
		}
		return msg.Response(), nil
	}
	return nil, fmt.Errorf("no reply to request %s (HTTP %d, content type %q)", id, resp.StatusCode, mediaType)
}

// readEventStream reads events until the reply to id arrives. Other
// messages on the stream are logged and skipped.
func (t *StreamableHTTPTransport) readEventStream(body io.Reader, id string) (*protocol.Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	var data bytes.Buffer
	dispatch := func() *protocol.Response {
		defer data.Reset()
		if data.Len() == 0 {
			return nil
		}
		msg, err := protocol.DecodeMessage(data.Bytes())
		if err != nil {
			t.logger.WithError(err).Warn("dropping unreadable event")
			return nil
		}
		if msg.IsResponse() && protocol.IDKey(msg.ID) == protocol.IDKey(id) {
			return msg.Response()
		}
		t.logger.Debug("skipping stream message", logging.String("method", msg.Method), logging.Any("id", msg.ID))
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if reply := dispatch(); reply != nil {
				return reply, nil
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if reply := dispatch(); reply != nil {
		return reply, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	return nil, fmt.Errorf("event stream ended without a reply to request %s", id)
}

// Close ends the server session, when one was assigned, and refuses further
// calls.
func (t *StreamableHTTPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessionID := t.sessionID
	t.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeSessionTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
	if err != nil {
		return nil
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(SessionHeader, sessionID)
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.WithError(err).Debug("session delete failed")
		return nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
