package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Call outcome labels.
const (
	StatusSuccess  = "success"
	StatusFallback = "fallback"
	StatusError    = "error"
)

// CallRecorder receives one record per client tool call and one per
// transport-to-inprocess fallback.
type CallRecorder interface {
	RecordCall(server, tool, transport, status string, duration time.Duration)
	RecordFallback(reason string)
}

// ServerRecorder receives one record per tool invocation handled by a tool
// server.
type ServerRecorder interface {
	RecordToolInvocation(side, tool, status string, duration time.Duration)
}

// MetricsConfig configures the Prometheus recorder.
type MetricsConfig struct {
	// Namespace prefixes every metric (default: toolbridge)
	Namespace string
	// HistogramBuckets are latency buckets in seconds
	HistogramBuckets []float64
	ConstLabels      prometheus.Labels
	// Registry receives the collectors; a fresh one is created when nil
	Registry *prometheus.Registry
	// RuntimeCollectors adds the Go and process collectors to the registry
	RuntimeCollectors bool
}

// PrometheusRecorder implements CallRecorder and ServerRecorder on a
// private registry, so several instances can live in one process.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	callTotal      *prometheus.CounterVec
	callLatency    *prometheus.HistogramVec
	fallbackTotal  *prometheus.CounterVec
	toolTotal      *prometheus.CounterVec
	toolLatency    *prometheus.HistogramVec
	transportState *prometheus.GaugeVec
}

// NewPrometheusRecorder creates and registers the collectors.
func NewPrometheusRecorder(config MetricsConfig) (*PrometheusRecorder, error) {
	if config.Namespace == "" {
		config.Namespace = "toolbridge"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30}
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	r := &PrometheusRecorder{
		registry: config.Registry,
		callTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Name:        "mcp_call_total",
				Help:        "Tool calls made by the client, by outcome",
				ConstLabels: config.ConstLabels,
			},
			[]string{"server", "tool", "transport", "status"},
		),
		callLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Name:        "mcp_call_latency_seconds",
				Help:        "Latency of tool calls made by the client",
				Buckets:     config.HistogramBuckets,
				ConstLabels: config.ConstLabels,
			},
			[]string{"server", "tool", "transport"},
		),
		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Name:        "transport_fallback_total",
				Help:        "Calls served in-process because the transport failed or was inactive",
				ConstLabels: config.ConstLabels,
			},
			[]string{"reason"},
		),
		toolTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Name:        "server_tool_total",
				Help:        "Tool invocations handled by a tool server",
				ConstLabels: config.ConstLabels,
			},
			[]string{"side", "tool", "status"},
		),
		toolLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Name:        "server_tool_latency_seconds",
				Help:        "Latency of tool invocations handled by a tool server",
				Buckets:     config.HistogramBuckets,
				ConstLabels: config.ConstLabels,
			},
			[]string{"side", "tool"},
		),
		transportState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   config.Namespace,
				Name:        "transport_active",
				Help:        "1 while the transport runtime is active, per transport kind",
				ConstLabels: config.ConstLabels,
			},
			[]string{"transport"},
		),
	}

	cs := []prometheus.Collector{r.callTotal, r.callLatency, r.fallbackTotal, r.toolTotal, r.toolLatency, r.transportState}
	if config.RuntimeCollectors {
		cs = append(cs, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) RecordCall(server, tool, transport, status string, duration time.Duration) {
	r.callTotal.WithLabelValues(server, tool, transport, status).Inc()
	r.callLatency.WithLabelValues(server, tool, transport).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordFallback(reason string) {
	r.fallbackTotal.WithLabelValues(reason).Inc()
}

func (r *PrometheusRecorder) RecordToolInvocation(side, tool, status string, duration time.Duration) {
	r.toolTotal.WithLabelValues(side, tool, status).Inc()
	r.toolLatency.WithLabelValues(side, tool).Observe(duration.Seconds())
}

// SetTransportActive flips the transport_active gauge.
func (r *PrometheusRecorder) SetTransportActive(transport string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	r.transportState.WithLabelValues(transport).Set(v)
}

// Registry exposes the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordCall(string, string, string, string, time.Duration) {}
func (Nop) RecordFallback(string) {}
func (Nop) RecordToolInvocation(string, string, string, time.Duration) {}
