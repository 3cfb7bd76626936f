// Package provider holds the in-process tool implementations behind each
// tool server: the web side (search and page extraction) and the local side
// (project files and report output).
//
// The client calls a Provider directly when the transport is unavailable, and
// the tool servers expose the same Provider over MCP, so both paths run the
// same code.
package provider

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// Tool server sides.
const (
	SideWeb   = "web"
	SideLocal = "local"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Tool describes one tool a Provider offers.
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

// Provider is one side's tool set.
type Provider interface {
	// Side is SideWeb or SideLocal.
	Side() string
	Tools() []Tool
	// Call runs tool with named arguments. Unknown tools return an
	// UnknownTool error.
	Call(ctx context.Context, tool string, args map[string]any) (any, error)
	// Degraded is the static answer used when Call cannot be attempted or
	// failed.
	Degraded(tool string, args map[string]any) any
	// Health reports {"status": "ok", ...} when the provider is usable.
	Health() map[string]any
}

// Healthy reports whether p's health status is "ok".
func Healthy(p Provider) bool {
	if p == nil {
		return false
	}
	return cast.ToString(p.Health()["status"]) == "ok"
}

// RetrievedDoc is one search or extraction hit.
type RetrievedDoc struct {
	Provider    string         `json:"provider" yaml:"provider"`
	Title       string         `json:"title" yaml:"title"`
	URL         string         `json:"url" yaml:"url"`
	Snippet     string         `json:"snippet" yaml:"snippet"`
	Content     string         `json:"content" yaml:"content"`
	Score       float64        `json:"score" yaml:"score"`
	RetrievedAt string         `json:"retrieved_at" yaml:"retrieved_at"`
	Meta        map[string]any `json:"meta" yaml:"meta"`
}

const snippetRunes = 280

// NewDoc builds a document stamped now, with the snippet cut from content.
func NewDoc(provider, title, url, content string, score float64) RetrievedDoc {
	return RetrievedDoc{
		Provider:    provider,
		Title:       title,
		URL:         url,
		Snippet:     Truncate(content, snippetRunes),
		Content:     content,
		Score:       score,
		RetrievedAt: now(),
		Meta:        map[string]any{},
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DocsFromPayload converts a tool result into documents. []RetrievedDoc is
// returned as is; a list of records is converted field by field; anything
// else yields an empty list.
func DocsFromPayload(payload any) []RetrievedDoc {
	switch v := payload.(type) {
	case []RetrievedDoc:
		return v
	case []map[string]any:
		docs := make([]RetrievedDoc, 0, len(v))
		for _, m := range v {
			docs = append(docs, docFromMap(m))
		}
		return docs
	case []any:
		docs := make([]RetrievedDoc, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case RetrievedDoc:
				docs = append(docs, it)
			case map[string]any:
				docs = append(docs, docFromMap(it))
			}
		}
		return docs
	}
	return []RetrievedDoc{}
}

func docFromMap(m map[string]any) RetrievedDoc {
	doc := RetrievedDoc{
		Provider:    cast.ToString(m["provider"]),
		Title:       cast.ToString(m["title"]),
		URL:         cast.ToString(m["url"]),
		Snippet:     cast.ToString(m["snippet"]),
		Content:     cast.ToString(m["content"]),
		Score:       cast.ToFloat64(m["score"]),
		RetrievedAt: cast.ToString(m["retrieved_at"]),
		Meta:        cast.ToStringMap(m["meta"]),
	}
	if doc.RetrievedAt == "" {
		doc.RetrievedAt = now()
	}
	if doc.Meta == nil {
		doc.Meta = map[string]any{}
	}
	return doc
}

// stringArg reads a string argument, or def when absent.
func stringArg(args map[string]any, key, def string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	return cast.ToString(v)
}

// intArg reads an integer argument, or def when absent or unparseable.
func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}
