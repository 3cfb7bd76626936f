package protocol

// Tool represents a tool in the MCP protocol
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	InputSchema RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsParams defines parameters for listing tools
type ListToolsParams struct {
	PaginationParams
}

// ListToolsResult defines the response for listing tools
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginationResult
}

// CallToolParams defines parameters for calling a tool
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Content is one block of a tool result. Only text blocks carry Text.
type Content struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// CallToolResult defines the response for tool calls. StructuredContent is
// kept raw so callers decide how to interpret it.
type CallToolResult struct {
	Content           []Content  `json:"content"`
	StructuredContent RawMessage `json:"structuredContent,omitempty"`
	IsError           bool       `json:"isError,omitempty"`
}

// Texts returns the text blocks in order.
func (r *CallToolResult) Texts() []string {
	var texts []string
	for _, c := range r.Content {
		if c.Text != nil {
			texts = append(texts, *c.Text)
		}
	}
	return texts
}

// HasStructured reports non-null structured content.
func (r *CallToolResult) HasStructured() bool {
	return len(r.StructuredContent) > 0 && string(r.StructuredContent) != "null"
}
