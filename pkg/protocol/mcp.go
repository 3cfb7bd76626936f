package protocol

const (
	// ProtocolRevision is the MCP revision the bridge asks for.
	ProtocolRevision = "2025-03-26"

	// Lifecycle
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"

	// Tools
	MethodListTools    = "tools/list"
	MethodCallTool     = "tools/call"
	MethodToolsChanged = "notifications/tools/list_changed"

	// Utilities
	MethodPing      = "ping"
	MethodCancelled = "notifications/cancelled"
)

// Implementation names a client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams defines the parameters for the initialize request
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult defines the response for the initialize request
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// HasCapability reports whether the server advertised name.
func (r *InitializeResult) HasCapability(name string) bool {
	_, ok := r.Capabilities[name]
	return ok
}

// CancelledParams tells the peer to stop working on a request.
type CancelledParams struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// PaginationParams for requests that support pagination
type PaginationParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// PaginationResult for responses that support pagination
type PaginationResult struct {
	NextCursor string `json:"nextCursor,omitempty"`
}
