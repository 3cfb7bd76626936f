// Package transport owns the out-of-process half of the tool bridge: the two
// tool server sessions (web and local) and, for streamable HTTP, the server
// processes behind them.
//
// # Transports
//
// With stdio the session spawns its tool server as a child and speaks the
// protocol over the child's stdin and stdout:
//
//	cfg := config.Default()
//	rt, err := transport.New(cfg, transport.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//	if err := rt.Start(ctx); err != nil {
//		return err
//	}
//	docs, err := rt.CallWebTool(ctx, "ddg_search", map[string]any{"query": "golang", "k": 3})
//
// With streamable HTTP the runtime starts both server processes (unless
// HTTPExternal is set), waits until both ports accept connections, then
// connects a session to each URL with the client bearer token.
//
// # Lifecycle
//
// Start brings up the web session before the local one; the first failure is
// returned and the caller is expected to Close the runtime. Close is
// best-effort and idempotent: sessions close first, then processes, and every
// error is logged and joined.
package transport
