// Package toolbridge calls web and local tool providers through the Model
// Context Protocol, and degrades to in-process implementations of the same
// tools when the protocol path is unavailable.
//
// # Overview
//
// The bridge consists of several sub-packages:
//
//   - pkg/client: MultiServerClient, the entry point for tool calls
//   - pkg/transport: spawns or dials the two tool servers and owns their sessions
//   - pkg/session: one MCP session with call deadlines
//   - pkg/process: tool server subprocesses
//   - pkg/toolserver: serves a provider over stdio or streamable HTTP
//   - pkg/provider: the in-process web and local tools
//   - pkg/resilience: token buckets, retry policy and circuit breakers
//   - pkg/config, pkg/logging, pkg/observability, pkg/errors: ambient plumbing
//
// # Calling tools
//
//	cfg, err := toolbridge.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	c, err := toolbridge.NewClient(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	status := c.StartupProbe(ctx)
//	docs, err := c.CallWebTool(ctx, "ddg_search", "golang generics", 3)
//	report, err := c.CallLocalTool(ctx, "write_report_output", "run-1", "# Findings")
//
// # Modes
//
// MCP_MODE selects how calls are routed:
//
//   - inprocess: providers are called directly, no servers are started
//   - transport: the servers must be reachable, failures are returned to the caller
//   - auto: the servers are preferred and each failed call falls back in-process
//
// MCP_TRANSPORT selects stdio subprocesses or streamable HTTP servers.
//
// # Serving tools
//
// The examples/toolserver command serves either side:
//
//	toolserver -side web -transport stdio
//	toolserver -side local -transport streamable-http
package toolbridge
