package wire

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/protocol"
)

// Client performs the MCP calls the bridge needs over a Transport.
type Client struct {
	transport Transport
	info      protocol.Implementation
	server    *protocol.InitializeResult
}

// NewClient wraps t. Nothing is sent until Initialize.
func NewClient(t Transport, name, version string) *Client {
	return &Client{transport: t, info: protocol.Implementation{Name: name, Version: version}}
}

// Initialize runs the handshake: initialize, then the initialized
// notification.
func (c *Client) Initialize(ctx context.Context) error {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolRevision,
		Capabilities:    map[string]any{},
		ClientInfo:      c.info,
	}
	raw, err := c.transport.Call(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}
	var result protocol.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}
	if result.ProtocolVersion == "" {
		return fmt.Errorf("initialize result has no protocol version")
	}
	if err := c.transport.Notify(ctx, protocol.MethodInitialized, nil); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}
	c.server = &result
	return nil
}

// Server is nil before Initialize succeeds.
func (c *Client) Server() *protocol.InitializeResult { return c.server }

// ListTools fetches one page of tools.
func (c *Client) ListTools(ctx context.Context, cursor string) (*protocol.ListToolsResult, error) {
	params := protocol.ListToolsParams{PaginationParams: protocol.PaginationParams{Cursor: cursor}}
	raw, err := c.transport.Call(ctx, protocol.MethodListTools, params)
	if err != nil {
		return nil, err
	}
	var result protocol.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools/list result: %w", err)
	}
	return &result, nil
}

// CallTool returns the tools/call result exactly as the server sent it.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (protocol.RawMessage, error) {
	return c.transport.Call(ctx, protocol.MethodCallTool, protocol.CallToolParams{Name: name, Arguments: args})
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
