package client

import (
	"context"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/observability"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/resilience"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/transport"
)

// Runtime is the transport the client drives. *transport.Runtime implements
// it.
type Runtime interface {
	Start(ctx context.Context) error
	StartupProbe(ctx context.Context) transport.Status
	CallWebTool(ctx context.Context, tool string, args map[string]any) (any, error)
	CallLocalTool(ctx context.Context, tool string, args map[string]any) (any, error)
	WebEndpoint() string
	LocalEndpoint() string
	Close() error
}

var _ Runtime = (*transport.Runtime)(nil)

// Option configures a MultiServerClient.
type Option func(*options)

type options struct {
	runtime      Runtime
	logger       logging.Logger
	recorder     observability.CallRecorder
	tracer       *observability.Tracer
	webBreaker   *resilience.CircuitBreaker
	localBreaker *resilience.CircuitBreaker
	clock        resilience.Clock
}

// WithRuntime supplies the transport instead of building one from the
// configuration. It is ignored in inprocess mode.
func WithRuntime(rt Runtime) Option {
	return func(o *options) { o.runtime = rt }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder sets where call metrics and fallback events go.
func WithRecorder(r observability.CallRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithTracer sets the tracer for call spans.
func WithTracer(t *observability.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithBreakers replaces the per-side breakers of the in-process path.
func WithBreakers(web, local *resilience.CircuitBreaker) Option {
	return func(o *options) {
		o.webBreaker = web
		o.localBreaker = local
	}
}

// WithClock sets the time source of the default breakers and, with
// FromConfig, of the web provider's rate limiters.
func WithClock(c resilience.Clock) Option {
	return func(o *options) { o.clock = c }
}
