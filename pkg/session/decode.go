package session

import (
	"strings"

	jsoniter "github.com/json-iterator/go"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/protocol"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DecodeResult turns a raw tools/call result into a plain Go value.
//
//   - isError results become a ToolCallError carrying the text content.
//   - Non-null structured content wins, with {"result": x} unwrapped to x.
//   - Otherwise text fragments are used: one fragment is parsed as JSON
//     (falling back to the raw string) and unwrapped; several come back as
//     []string; none gives nil.
func DecodeResult(tool string, raw []byte) (any, error) {
	var res protocol.CallToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, mcperrors.WrapErrorf(err, mcperrors.CodeInternalError, mcperrors.CategoryInternal,
			mcperrors.SeverityError, "malformed tools/call result for %s", tool)
	}

	texts := res.Texts()
	if res.IsError {
		return nil, mcperrors.ToolCallError(tool, strings.Join(texts, "\n"))
	}

	if res.HasStructured() {
		var structured any
		if err := json.Unmarshal(res.StructuredContent, &structured); err == nil && structured != nil {
			return unwrapResult(structured), nil
		}
	}

	switch len(texts) {
	case 0:
		return nil, nil
	case 1:
		var parsed any
		if err := json.Unmarshal([]byte(texts[0]), &parsed); err != nil {
			return texts[0], nil
		}
		return unwrapResult(parsed), nil
	default:
		return texts, nil
	}
}

// unwrapResult returns x for a map that is exactly {"result": x}.
func unwrapResult(v any) any {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		if inner, ok := m["result"]; ok {
			return inner
		}
	}
	return v
}
