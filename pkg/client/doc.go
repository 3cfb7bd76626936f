// Package client provides MultiServerClient, the single entry point for
// calling the web and local tool servers.
//
// The client runs in one of three modes, fixed by config.Mode:
//
//   - inprocess: the transport is never built; calls go straight to the
//     in-process providers.
//   - transport: the transport is mandatory. A call made while it is not
//     active returns a ModeViolation error and nothing degrades.
//   - auto: the transport is tried first. If it cannot start, or a single
//     call over it fails, that call is served in-process and a fallback
//     event is recorded. A failed call does not disable the transport.
//
// In-process calls are gated by a per-side circuit breaker; an open breaker
// or a failing provider yields the provider's degraded answer instead of an
// error.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	c, err := client.FromConfig(cfg, client.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	status := c.StartupProbe(ctx)
//	docs, err := c.CallWebTool(ctx, "ddg_search", "model context protocol", 3)
//	files, err := c.CallLocalTool(ctx, "list_project_files", client.Args{"pattern": "*.go"})
//
// Positional arguments are mapped to each tool's named arguments, with the
// tool's defaults filling the gaps (k=5 for searches, max_results=20 for
// code_search, and so on).
package client
