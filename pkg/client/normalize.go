package client

import (
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
)

// Args passes named arguments to CallWebTool or CallLocalTool.
type Args = map[string]any

// namedArgs returns the caller's named arguments when the only argument is
// a non-empty map.
func namedArgs(args []any) (map[string]any, bool) {
	if len(args) != 1 {
		return nil, false
	}
	m, ok := args[0].(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, true
}

func positional(args []any, i int, def any) any {
	if i < len(args) {
		return args[i]
	}
	return def
}

// webArguments maps positional arguments to the named arguments of a web
// tool. Unknown tools get no arguments.
func webArguments(tool string, args []any) map[string]any {
	if named, ok := namedArgs(args); ok {
		return named
	}
	switch tool {
	case provider.ToolTavilySearch, provider.ToolDDGSearch:
		return map[string]any{"query": positional(args, 0, ""), "k": positional(args, 1, 5)}
	case provider.ToolFirecrawlExtract:
		return map[string]any{"url_or_query": positional(args, 0, ""), "mode": positional(args, 1, "extract")}
	}
	return map[string]any{}
}

// localArguments is webArguments for the local tools.
func localArguments(tool string, args []any) map[string]any {
	if named, ok := namedArgs(args); ok {
		return named
	}
	switch tool {
	case provider.ToolReadLocalFile:
		return map[string]any{"path": positional(args, 0, "")}
	case provider.ToolListProjectFiles:
		return map[string]any{"pattern": positional(args, 0, "*")}
	case provider.ToolCodeSearch:
		return map[string]any{"pattern": positional(args, 0, ""), "max_results": positional(args, 1, 20)}
	case provider.ToolWriteReportOutput:
		return map[string]any{"run_id": positional(args, 0, "fallback-run"), "content": positional(args, 1, "")}
	}
	return map[string]any{}
}
