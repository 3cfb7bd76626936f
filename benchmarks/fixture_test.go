package benchmarks

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/client"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/toolserver"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/transport"
)

const benchToken = "bench-token"

// projectRoot lays out a small project for the local tools.
func projectRoot(tb testing.TB) string {
	tb.Helper()
	root := tb.TempDir()
	files := map[string]string{
		"README.md":         "# bench\n",
		"main.go":           "package main\n\nfunc main() {}\n",
		"internal/util.go":  "package internal\n\nfunc Helper() int { return 1 }\n",
		"internal/other.go": "package internal\n\nfunc Other() {}\n",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			tb.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			tb.Fatal(err)
		}
	}
	return root
}

func providers(tb testing.TB, root string) (*provider.WebProvider, *provider.LocalProvider) {
	tb.Helper()
	ddg := provider.SearcherFunc(func(_ context.Context, query string, k int) ([]provider.RetrievedDoc, error) {
		docs := make([]provider.RetrievedDoc, 0, k)
		for i := 0; i < k; i++ {
			docs = append(docs, provider.NewDoc("ddg", query, "https://example.com", "result body", 0.5))
		}
		return docs, nil
	})
	// limits high enough that the buckets never throttle a benchmark
	web := provider.NewWebProvider(provider.WebConfig{TavilyRPM: 1 << 20, DDGRPM: 1 << 20, FirecrawlRPM: 1 << 20}, provider.WithDDG(ddg))
	local, err := provider.NewLocalProvider(root, "outputs", nil)
	if err != nil {
		tb.Fatal(err)
	}
	return web, local
}

func inProcessClient(tb testing.TB) *client.MultiServerClient {
	tb.Helper()
	root := projectRoot(tb)
	web, local := providers(tb, root)
	cfg := config.Default()
	cfg.Mode = config.ModeInProcess
	cfg.ProjectRoot = root
	return client.New(cfg, web, local)
}

// httpBridge serves both sides over streamable HTTP and returns an auto mode
// client dialing them.
type httpBridge struct {
	client *client.MultiServerClient
	web    *httptest.Server
	local  *httptest.Server
}

func newHTTPBridge(tb testing.TB, mode config.Mode) *httpBridge {
	tb.Helper()
	root := projectRoot(tb)
	web, local := providers(tb, root)

	b := &httpBridge{
		web:   httptest.NewServer(toolserver.New(web).HTTPHandler(benchToken)),
		local: httptest.NewServer(toolserver.New(local).HTTPHandler(benchToken)),
	}
	tb.Cleanup(b.web.Close)
	tb.Cleanup(b.local.Close)

	cfg := config.Default()
	cfg.Mode = mode
	cfg.Transport = config.TransportStreamableHTTP
	cfg.HTTPExternal = true
	cfg.HTTPWebURL = b.web.URL + toolserver.EndpointPath
	cfg.HTTPLocalURL = b.local.URL + toolserver.EndpointPath
	cfg.AuthToken = benchToken
	cfg.ProjectRoot = root

	// the runtime dials the servers above; the fallback providers keep the
	// fake searcher so a degraded call still answers with k documents
	rt, err := transport.New(cfg)
	if err != nil {
		tb.Fatal(err)
	}
	c := client.New(cfg, web, local, client.WithRuntime(rt))
	tb.Cleanup(func() { c.Close() })
	if status := c.StartupProbe(context.Background()); !status.TransportActive {
		tb.Fatalf("transport not active: %+v", status)
	}
	b.client = c
	return b
}
