package benchmarks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
)

func TestLoadInProcess(t *testing.T) {
	lt := NewLoadTester(inProcessClient(t), LoadTestConfig{Clients: 8, RequestsPerClient: 50, Seed: 1})
	res, err := lt.Run(context.Background())
	require.NoError(t, err)
	t.Log(res)

	assert.Equal(t, int64(400), res.TotalRequests)
	assert.Zero(t, res.FailedRequests)
	assert.Empty(t, res.ErrorCounts)
	assert.LessOrEqual(t, res.MinLatency, res.P50Latency)
	assert.LessOrEqual(t, res.P99Latency, res.MaxLatency)
}

func TestLoadOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping HTTP load test in short mode")
	}
	b := newHTTPBridge(t, config.ModeTransport)
	lt := NewLoadTester(b.client, LoadTestConfig{Clients: 4, RequestsPerClient: 25, Seed: 2})
	res, err := lt.Run(context.Background())
	require.NoError(t, err)
	t.Log(res)

	assert.Equal(t, int64(100), res.TotalRequests)
	assert.Zero(t, res.FailedRequests, "%v", res.ErrorCounts)
}

// A tool server dying mid-run is invisible to auto mode callers: every call
// still answers, served in-process once the remote side is gone.
func TestStressAutoModeSurvivesServerCrash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	b := newHTTPBridge(t, config.ModeAuto)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	go func() {
		time.Sleep(200 * time.Millisecond)
		b.web.CloseClientConnections()
		b.web.Close()
	}()

	lt := NewLoadTester(b.client, LoadTestConfig{
		Clients:      4,
		Duration:     time.Second,
		OperationMix: OperationMix{WebSearch: 80, ListFiles: 20},
		Seed:         3,
	})
	res, err := lt.Run(ctx)
	require.NoError(t, err)
	t.Log(res)

	assert.Zero(t, res.FailedRequests, "%v", res.ErrorCounts)

	docs, err := b.client.CallWebTool(ctx, provider.ToolDDGSearch, "after crash", 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2, "in-process provider answers with the live searcher")

	state := b.client.Status()
	assert.True(t, state.FallbackActive)
	assert.True(t, strings.HasPrefix(state.FallbackReason, "transport web call failed"), state.FallbackReason)
}

// Transport mode surfaces the same crash as errors instead of degrading.
func TestStressTransportModeReportsServerCrash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	b := newHTTPBridge(t, config.ModeTransport)
	b.web.CloseClientConnections()
	b.web.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := b.client.CallWebTool(ctx, provider.ToolDDGSearch, "q")
	require.Error(t, err)
	assert.False(t, mcperrors.IsCode(err, mcperrors.CodeModeViolation), "transport stays active after a failed call")

	files, err := b.client.CallLocalTool(ctx, provider.ToolListProjectFiles, "*.go")
	require.NoError(t, err, "the local side is unaffected")
	assert.Len(t, files, 3)
}
