// Package benchmarks provides performance and load testing for the tool bridge
package benchmarks

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
)

// Caller is the part of client.MultiServerClient a load test drives.
type Caller interface {
	CallWebTool(ctx context.Context, tool string, args ...any) ([]provider.RetrievedDoc, error)
	CallLocalTool(ctx context.Context, tool string, args ...any) (any, error)
}

// LoadTestConfig configures load testing parameters
type LoadTestConfig struct {
	// Number of concurrent workers sharing the caller
	Clients int

	// Number of requests per worker
	RequestsPerClient int

	// Test duration (0 = run until all requests complete)
	Duration time.Duration

	// Mix of operations to perform
	OperationMix OperationMix

	// Seed for the operation picker (0 = time based)
	Seed int64
}

// OperationMix weights the tools a worker calls.
type OperationMix struct {
	WebSearch  float64 // ddg_search
	ReadFile   float64 // read_local_file
	ListFiles  float64 // list_project_files
	CodeSearch float64 // code_search
}

// LoadTestResult contains the results of a load test
type LoadTestResult struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	TotalDuration      time.Duration

	// Latency statistics
	MinLatency time.Duration
	MaxLatency time.Duration
	AvgLatency time.Duration
	P50Latency time.Duration
	P90Latency time.Duration
	P99Latency time.Duration

	RequestsPerSecond float64

	// Errors by error code name
	ErrorCounts map[string]int64

	OperationMetrics map[string]*OperationMetrics
}

// OperationMetrics tracks metrics for a specific operation type
type OperationMetrics struct {
	Count      int64
	Successful int64
	Failed     int64

	mu        sync.Mutex
	latencies []time.Duration
}

// LoadTester drives a Caller from several goroutines.
type LoadTester struct {
	config LoadTestConfig
	caller Caller

	// ReadPath is the file read_local_file asks for
	ReadPath string

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64

	mu         sync.Mutex
	errorCount map[string]int64
	operations map[string]*OperationMetrics
	rng        *rand.Rand
}

// NewLoadTester creates a new load tester
func NewLoadTester(caller Caller, config LoadTestConfig) *LoadTester {
	if config.Clients <= 0 {
		config.Clients = 1
	}
	if config.RequestsPerClient <= 0 && config.Duration == 0 {
		config.RequestsPerClient = 10
	}

	mix := &config.OperationMix
	total := mix.WebSearch + mix.ReadFile + mix.ListFiles + mix.CodeSearch
	if total == 0 {
		*mix = OperationMix{WebSearch: 40, ReadFile: 30, ListFiles: 20, CodeSearch: 10}
		total = 100
	}
	mix.WebSearch /= total
	mix.ReadFile /= total
	mix.ListFiles /= total
	mix.CodeSearch /= total

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LoadTester{
		config:     config,
		caller:     caller,
		ReadPath:   "README.md",
		errorCount: map[string]int64{},
		operations: map[string]*OperationMetrics{},
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Run executes the load test
func (lt *LoadTester) Run(ctx context.Context) (*LoadTestResult, error) {
	if lt.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lt.config.Duration)
		defer cancel()
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < lt.config.Clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lt.runWorker(ctx)
		}()
	}
	wg.Wait()

	if lt.totalRequests == 0 {
		return nil, fmt.Errorf("load test made no requests: %w", ctx.Err())
	}
	return lt.calculateResults(time.Since(start)), nil
}

func (lt *LoadTester) runWorker(ctx context.Context) {
	for n := 0; lt.config.RequestsPerClient <= 0 || n < lt.config.RequestsPerClient; n++ {
		if ctx.Err() != nil {
			return
		}
		op := lt.selectOperation()
		begin := time.Now()
		err := lt.execute(ctx, op)
		lt.record(op, time.Since(begin), err)
	}
}

func (lt *LoadTester) selectOperation() string {
	lt.mu.Lock()
	r := lt.rng.Float64()
	lt.mu.Unlock()

	mix := lt.config.OperationMix
	switch {
	case r < mix.WebSearch:
		return provider.ToolDDGSearch
	case r < mix.WebSearch+mix.ReadFile:
		return provider.ToolReadLocalFile
	case r < mix.WebSearch+mix.ReadFile+mix.ListFiles:
		return provider.ToolListProjectFiles
	}
	return provider.ToolCodeSearch
}

func (lt *LoadTester) execute(ctx context.Context, op string) error {
	switch op {
	case provider.ToolDDGSearch:
		_, err := lt.caller.CallWebTool(ctx, op, "load test", 3)
		return err
	case provider.ToolReadLocalFile:
		_, err := lt.caller.CallLocalTool(ctx, op, lt.ReadPath)
		return err
	case provider.ToolListProjectFiles:
		_, err := lt.caller.CallLocalTool(ctx, op, "*.go")
		return err
	}
	_, err := lt.caller.CallLocalTool(ctx, op, "func", 5)
	return err
}

func (lt *LoadTester) record(op string, d time.Duration, err error) {
	atomic.AddInt64(&lt.totalRequests, 1)

	lt.mu.Lock()
	m, ok := lt.operations[op]
	if !ok {
		m = &OperationMetrics{}
		lt.operations[op] = m
	}
	if err != nil {
		name := "unknown"
		if mcpErr, ok := mcperrors.AsMCPError(err); ok {
			name = mcperrors.GetErrorCodeName(mcpErr.Code())
		}
		lt.errorCount[name]++
	}
	lt.mu.Unlock()

	m.mu.Lock()
	m.Count++
	m.latencies = append(m.latencies, d)
	if err != nil {
		m.Failed++
	} else {
		m.Successful++
	}
	m.mu.Unlock()

	if err != nil {
		atomic.AddInt64(&lt.failedRequests, 1)
	} else {
		atomic.AddInt64(&lt.successfulRequests, 1)
	}
}

// calculateResults computes the final test results
func (lt *LoadTester) calculateResults(duration time.Duration) *LoadTestResult {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	result := &LoadTestResult{
		TotalRequests:      atomic.LoadInt64(&lt.totalRequests),
		SuccessfulRequests: atomic.LoadInt64(&lt.successfulRequests),
		FailedRequests:     atomic.LoadInt64(&lt.failedRequests),
		TotalDuration:      duration,
		ErrorCounts:        make(map[string]int64, len(lt.errorCount)),
		OperationMetrics:   lt.operations,
	}
	result.RequestsPerSecond = float64(result.TotalRequests) / duration.Seconds()
	for k, v := range lt.errorCount {
		result.ErrorCounts[k] = v
	}

	var all []time.Duration
	for _, m := range lt.operations {
		all = append(all, m.latencies...)
	}
	if len(all) == 0 {
		return result
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	var sum time.Duration
	for _, d := range all {
		sum += d
	}
	result.MinLatency = all[0]
	result.MaxLatency = all[len(all)-1]
	result.AvgLatency = sum / time.Duration(len(all))
	result.P50Latency = percentileDuration(all, 50)
	result.P90Latency = percentileDuration(all, 90)
	result.P99Latency = percentileDuration(all, 99)
	return result
}

func percentileDuration(sorted []time.Duration, percentile float64) time.Duration {
	index := int(math.Ceil(float64(len(sorted))*percentile/100.0)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// String renders the results for test logs.
func (r *LoadTestResult) String() string {
	s := fmt.Sprintf("requests=%d ok=%d failed=%d rps=%.1f latency min=%s p50=%s p90=%s p99=%s max=%s",
		r.TotalRequests, r.SuccessfulRequests, r.FailedRequests, r.RequestsPerSecond,
		r.MinLatency, r.P50Latency, r.P90Latency, r.P99Latency, r.MaxLatency)
	ops := make([]string, 0, len(r.OperationMetrics))
	for op := range r.OperationMetrics {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	for _, op := range ops {
		m := r.OperationMetrics[op]
		s += fmt.Sprintf("\n  %s: count=%d failed=%d", op, m.Count, m.Failed)
	}
	for name, n := range r.ErrorCounts {
		s += fmt.Sprintf("\n  error %s: %d", name, n)
	}
	return s
}
