package client

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/observability"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/resilience"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/toolserver"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/transport"
)

// Transport label used in metrics and spans for the in-process path.
const TransportInProcess = "inprocess"

// Endpoint labels reported when no transport is involved.
const (
	InProcessWebEndpoint   = "inprocess:web_server"
	InProcessLocalEndpoint = "inprocess:local_server"
)

// Fallback reasons.
const (
	ReasonForcedInProcess   = "forced inprocess mode"
	ReasonStartupFailed     = "transport startup failed"
	ReasonTransportInactive = "transport inactive, using inprocess fallback"
)

// ServerStatus is the outcome of StartupProbe.
type ServerStatus struct {
	WebHealthy       bool   `json:"web_healthy"`
	LocalHealthy     bool   `json:"local_healthy"`
	TransportEnabled bool   `json:"transport_enabled"`
	TransportActive  bool   `json:"transport_active"`
	FallbackActive   bool   `json:"fallback_active"`
	FallbackReason   string `json:"fallback_reason"`
	WebEndpoint      string `json:"web_endpoint"`
	LocalEndpoint    string `json:"local_endpoint"`
}

// State is a snapshot of the client's mode state.
type State struct {
	TransportActive bool
	FallbackActive  bool
	FallbackReason  string
}

// MultiServerClient routes tool calls to the web and local tool servers over
// the transport when it is active, and to the in-process providers
// otherwise. It is safe for concurrent use.
type MultiServerClient struct {
	cfg      *config.Config
	web      provider.Provider
	local    provider.Provider
	runtime  Runtime
	logger   logging.Logger
	recorder observability.CallRecorder
	tracer   *observability.Tracer

	webBreaker   *resilience.CircuitBreaker
	localBreaker *resilience.CircuitBreaker

	mu              sync.Mutex
	transportActive bool
	fallbackActive  bool
	fallbackReason  string
}

// New builds a client around the given providers. In auto and transport
// mode a runtime must be supplied with WithRuntime, or calls will fall back
// (auto) or fail (transport).
func New(cfg *config.Config, web, local provider.Provider, opts ...Option) *MultiServerClient {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return newClient(cfg, web, local, o)
}

func newClient(cfg *config.Config, web, local provider.Provider, o *options) *MultiServerClient {
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	if o.recorder == nil {
		o.recorder = observability.Nop{}
	}
	if o.clock == nil {
		o.clock = resilience.SystemClock()
	}
	if o.webBreaker == nil {
		o.webBreaker = resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery, resilience.WithBreakerClock(o.clock))
	}
	if o.localBreaker == nil {
		o.localBreaker = resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery, resilience.WithBreakerClock(o.clock))
	}

	c := &MultiServerClient{
		cfg:          cfg,
		web:          web,
		local:        local,
		logger:       o.logger.WithFields(logging.String("component", "client"), logging.String("mode", string(cfg.Mode))),
		recorder:     o.recorder,
		tracer:       o.tracer,
		webBreaker:   o.webBreaker,
		localBreaker: o.localBreaker,
	}
	if cfg.Mode == config.ModeInProcess {
		c.fallbackActive = true
		c.fallbackReason = ReasonForcedInProcess
	} else {
		c.runtime = o.runtime
	}
	return c
}

// FromConfig builds both providers from cfg and, in auto and transport
// mode, the transport runtime.
func FromConfig(cfg *config.Config, opts ...Option) (*MultiServerClient, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}

	var webOpts []provider.WebOption
	if o.clock != nil {
		webOpts = append(webOpts, provider.WithWebClock(o.clock))
	}
	web, err := toolserver.ProviderFromConfig(provider.SideWeb, cfg, o.logger, webOpts...)
	if err != nil {
		return nil, err
	}
	local, err := toolserver.ProviderFromConfig(provider.SideLocal, cfg, o.logger)
	if err != nil {
		return nil, err
	}

	if cfg.Mode != config.ModeInProcess && o.runtime == nil {
		rt, err := transport.New(cfg, transport.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.runtime = rt
	}
	return newClient(cfg, web, local, o), nil
}

// Status returns the current mode state.
func (c *MultiServerClient) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		TransportActive: c.transportActive,
		FallbackActive:  c.fallbackActive,
		FallbackReason:  c.fallbackReason,
	}
}

func (c *MultiServerClient) setTransportActive(active bool) {
	c.mu.Lock()
	c.transportActive = active
	if active {
		c.fallbackActive = false
		c.fallbackReason = ""
	}
	c.mu.Unlock()
	if g, ok := c.recorder.(interface{ SetTransportActive(string, bool) }); ok {
		g.SetTransportActive(string(c.cfg.Transport), active)
	}
}

func (c *MultiServerClient) isTransportActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transportActive
}

func (c *MultiServerClient) fallBack(reason string) {
	c.mu.Lock()
	c.fallbackActive = true
	c.fallbackReason = reason
	c.mu.Unlock()
	c.recorder.RecordFallback(reason)
	c.logger.Warn("falling back to in-process providers", logging.String("reason", reason))
}

func (c *MultiServerClient) enableTransport(ctx context.Context) error {
	if c.runtime == nil {
		return mcperrors.TransportUnavailable("Transport runtime is not configured.")
	}
	if err := c.runtime.Start(ctx); err != nil {
		return err
	}
	status := c.runtime.StartupProbe(ctx)
	if !status.Connected() {
		return mcperrors.TransportUnavailable("MCP transport probe failed.")
	}
	c.setTransportActive(true)
	return nil
}

// StartupProbe brings the transport up (modes auto and transport) and
// reports the health of both sides. In auto mode a failed transport start
// switches the client to the in-process providers.
func (c *MultiServerClient) StartupProbe(ctx context.Context) ServerStatus {
	if c.cfg.Mode == config.ModeInProcess {
		c.mu.Lock()
		c.transportActive = false
		c.fallbackActive = true
		c.fallbackReason = ReasonForcedInProcess
		c.mu.Unlock()
		return ServerStatus{
			WebHealthy:     provider.Healthy(c.web),
			LocalHealthy:   provider.Healthy(c.local),
			FallbackActive: true,
			FallbackReason: ReasonForcedInProcess,
			WebEndpoint:    InProcessWebEndpoint,
			LocalEndpoint:  InProcessLocalEndpoint,
		}
	}

	status := ServerStatus{
		TransportEnabled: c.runtime != nil,
		WebEndpoint:      InProcessWebEndpoint,
		LocalEndpoint:    InProcessLocalEndpoint,
	}
	if c.runtime != nil {
		status.WebEndpoint = c.runtime.WebEndpoint()
		status.LocalEndpoint = c.runtime.LocalEndpoint()
	}

	err := c.enableTransport(ctx)
	if err == nil {
		status.WebHealthy, status.LocalHealthy = true, true
		c.logger.Info("transport active",
			logging.String("web", status.WebEndpoint),
			logging.String("local", status.LocalEndpoint),
		)
	} else {
		c.logger.WithError(err).Warn("transport startup failed")
		if c.runtime != nil {
			if cerr := c.runtime.Close(); cerr != nil {
				c.logger.WithError(cerr).Warn("transport cleanup failed")
			}
		}
		c.setTransportActive(false)
		if c.cfg.Mode == config.ModeAuto {
			status.WebHealthy = provider.Healthy(c.web)
			status.LocalHealthy = provider.Healthy(c.local)
			reason := err.Error()
			if reason == "" {
				reason = ReasonStartupFailed
			}
			c.fallBack(reason)
		}
	}

	state := c.Status()
	status.TransportActive = state.TransportActive
	status.FallbackActive = state.FallbackActive
	status.FallbackReason = state.FallbackReason
	return status
}

// sideCall describes one side for call.
type sideCall struct {
	name      string
	provider  provider.Provider
	breaker   *resilience.CircuitBreaker
	remote    func(ctx context.Context, tool string, args map[string]any) (any, error)
	arguments func(tool string, args []any) map[string]any
}

func (c *MultiServerClient) webSide() sideCall {
	s := sideCall{name: provider.SideWeb, provider: c.web, breaker: c.webBreaker, arguments: webArguments}
	if c.runtime != nil {
		s.remote = c.runtime.CallWebTool
	}
	return s
}

func (c *MultiServerClient) localSide() sideCall {
	s := sideCall{name: provider.SideLocal, provider: c.local, breaker: c.localBreaker, arguments: localArguments}
	if c.runtime != nil {
		s.remote = c.runtime.CallLocalTool
	}
	return s
}

// CallWebTool runs a web tool and returns its documents. args are either
// positional (e.g. query, k) or a single Args value of named arguments.
// Only strict transport mode returns errors; otherwise failures degrade to
// fallback documents.
func (c *MultiServerClient) CallWebTool(ctx context.Context, tool string, args ...any) ([]provider.RetrievedDoc, error) {
	value, err := c.call(ctx, c.webSide(), tool, args)
	if err != nil {
		return nil, err
	}
	return provider.DocsFromPayload(value), nil
}

// CallLocalTool runs a local tool. args follow the CallWebTool convention.
func (c *MultiServerClient) CallLocalTool(ctx context.Context, tool string, args ...any) (any, error) {
	return c.call(ctx, c.localSide(), tool, args)
}

func (c *MultiServerClient) call(ctx context.Context, side sideCall, tool string, positional []any) (value any, err error) {
	args := side.arguments(tool, positional)
	start := time.Now()
	ctx, span := c.tracer.StartCall(ctx, side.name, tool)

	transportLabel := TransportInProcess
	status := observability.StatusSuccess
	defer func() {
		c.recorder.RecordCall(side.name, tool, transportLabel, status, time.Since(start))
		observability.EndSpan(span, transportLabel, status, err)
	}()

	if c.cfg.Mode == config.ModeInProcess {
		return c.inProcess(ctx, side, tool, args), nil
	}

	if c.isTransportActive() && side.remote != nil {
		transportLabel = string(c.cfg.Transport)
		value, err = side.remote(ctx, tool, args)
		if err == nil {
			return value, nil
		}
		if c.cfg.Mode == config.ModeTransport {
			status = observability.StatusError
			return nil, err
		}
		c.fallBack("transport " + side.name + " call failed: " + err.Error())
		transportLabel = TransportInProcess
		status = observability.StatusFallback
		return c.inProcess(ctx, side, tool, args), nil
	}

	if c.cfg.Mode == config.ModeTransport {
		status = observability.StatusError
		return nil, mcperrors.ModeViolation()
	}
	c.fallBack(ReasonTransportInactive)
	status = observability.StatusFallback
	return c.inProcess(ctx, side, tool, args), nil
}

// inProcess calls the provider behind its breaker. An open breaker or a
// failed call yields the provider's degraded answer. Unknown tools degrade
// without counting against the breaker.
func (c *MultiServerClient) inProcess(ctx context.Context, side sideCall, tool string, args map[string]any) any {
	if side.provider == nil {
		return nil
	}
	if !side.breaker.Allow() {
		c.logger.Debug("breaker open, degrading", logging.String("side", side.name), logging.String("tool", tool))
		return side.provider.Degraded(tool, args)
	}
	value, err := side.provider.Call(ctx, tool, args)
	if mcperrors.IsCode(err, mcperrors.CodeUnknownTool) {
		c.logger.Warn("unknown tool", logging.String("side", side.name), logging.String("tool", tool))
		return side.provider.Degraded(tool, args)
	}
	if err != nil {
		side.breaker.Failure()
		c.logger.WithError(err).Warn("in-process tool failed",
			logging.String("side", side.name),
			logging.String("tool", tool),
			logging.Int("breaker_failures", side.breaker.Failures()),
		)
		return side.provider.Degraded(tool, args)
	}
	side.breaker.Success()
	return value
}

// Close shuts the transport down. The client keeps serving in-process calls
// in auto and inprocess mode.
func (c *MultiServerClient) Close() error {
	var err error
	if c.runtime != nil {
		err = c.runtime.Close()
	}
	c.setTransportActive(false)
	return err
}
