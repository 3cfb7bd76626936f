package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/process"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/session"
)

const dialTimeout = time.Second

// Status is a snapshot taken by StartupProbe.
type Status struct {
	WebConnected   bool
	LocalConnected bool
	WebTools       []string
	LocalTools     []string
	WebEndpoint    string
	LocalEndpoint  string
}

// Connected reports whether both sides answered tools/list.
func (s Status) Connected() bool { return s.WebConnected && s.LocalConnected }

// side bundles what the runtime owns for one tool server.
type side struct {
	name     string
	endpoint string
	session  *session.ManagedSession
	proc     *process.ServerProcess
	host     string
	port     int
}

// Runtime owns the two sessions and any server processes. Its methods are
// safe for concurrent use.
type Runtime struct {
	cfg    *config.Config
	logger logging.Logger

	web   *side
	local *side

	mu      sync.Mutex
	started bool
	closed  bool
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger         logging.Logger
	webConnect     session.Connector
	localConnect   session.Connector
	processOptions []process.Option
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConnectors replaces the connectors derived from the configuration.
// A nil connector keeps the derived one.
func WithConnectors(web, local session.Connector) Option {
	return func(o *options) {
		o.webConnect = web
		o.localConnect = local
	}
}

// WithProcessOptions is passed to every server process the runtime starts.
func WithProcessOptions(opts ...process.Option) Option {
	return func(o *options) { o.processOptions = append(o.processOptions, opts...) }
}

// New builds the sessions (and processes) described by cfg. Nothing is
// started until Start.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	o := &options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.WithFields(logging.String("component", "transport"))
	r := &Runtime{cfg: cfg, logger: logger}

	procOpts := append([]process.Option{process.WithLogger(o.logger)}, o.processOptions...)

	var err error
	switch cfg.Transport {
	case config.TransportStdio:
		if r.web, err = r.stdioSide(provider.SideWeb, cfg.WebServerCmd, o.webConnect); err != nil {
			return nil, err
		}
		if r.local, err = r.stdioSide(provider.SideLocal, cfg.LocalServerCmd, o.localConnect); err != nil {
			return nil, err
		}
	case config.TransportStreamableHTTP:
		if r.web, err = r.httpSide(provider.SideWeb, cfg.WebURL(), cfg.WebHTTPServerCmd, o.webConnect, procOpts); err != nil {
			return nil, err
		}
		if r.local, err = r.httpSide(provider.SideLocal, cfg.LocalURL(), cfg.LocalHTTPServerCmd, o.localConnect, procOpts); err != nil {
			return nil, err
		}
	default:
		return nil, mcperrors.InvalidParameter("MCP_TRANSPORT", fmt.Sprintf("unsupported transport %q", cfg.Transport))
	}
	return r, nil
}

func (r *Runtime) newSession(name, endpoint string, connect session.Connector) *session.ManagedSession {
	return session.New(session.Config{
		Name:        name,
		Endpoint:    endpoint,
		Connect:     connect,
		CallTimeout: r.cfg.CallTimeout,
		Logger:      r.logger,
	})
}

func (r *Runtime) stdioSide(name, command string, connect session.Connector) (*side, error) {
	s := &side{name: name, endpoint: "stdio:" + command}
	if connect == nil {
		argv, err := process.ParseCommand(command)
		if err != nil {
			return nil, mcperrors.InvalidParameter(name+" server command", err.Error())
		}
		connect = session.StdioConnector(argv, r.cfg.Environment(name),
			r.logger.WithFields(logging.String("side", name)))
	}
	s.session = r.newSession(name, s.endpoint, connect)
	return s, nil
}

func (r *Runtime) httpSide(name, rawURL, command string, connect session.Connector, procOpts []process.Option) (*side, error) {
	s := &side{name: name, endpoint: rawURL}
	if connect == nil {
		headers := map[string]string{}
		if token := r.cfg.ClientToken(); token != "" {
			headers["Authorization"] = "Bearer " + token
		}
		connect = session.HTTPConnector(rawURL, headers)
	}
	s.session = r.newSession(name, s.endpoint, connect)

	if r.cfg.HTTPExternal {
		return s, nil
	}
	host, port, err := hostPort(rawURL)
	if err != nil {
		return nil, mcperrors.InvalidParameter(name+" server url", err.Error())
	}
	argv, err := process.ParseCommand(command)
	if err != nil {
		return nil, mcperrors.InvalidParameter(name+" http server command", err.Error())
	}
	s.host, s.port = host, port
	s.proc = process.New(argv, r.cfg.Environment(name), procOpts...)
	return s, nil
}

func hostPort(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, err
	}
	host := u.Hostname()
	portText := u.Port()
	if portText == "" {
		switch u.Scheme {
		case "https":
			portText = "443"
		default:
			portText = "80"
		}
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %s", rawURL)
	}
	return host, port, nil
}


// WebEndpoint is the web session's display label.
func (r *Runtime) WebEndpoint() string { return r.web.endpoint }

// LocalEndpoint is the local session's display label.
func (r *Runtime) LocalEndpoint() string { return r.local.endpoint }

// Start launches server processes when the runtime manages them, waits for
// their ports, then starts the web session followed by the local session.
// A started runtime returns nil. If any step fails, everything already
// started is stopped before Start returns and the runtime is closed; a
// closed runtime cannot be started again.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return mcperrors.TransportUnavailable("transport runtime is closed")
	}
	if r.started {
		return nil
	}

	if err := r.startSides(ctx); err != nil {
		r.closed = true
		if cerr := r.teardown(); cerr != nil {
			r.logger.WithError(cerr).Warn("cleanup after failed start")
		}
		return err
	}
	r.started = true
	r.logger.Info("transport started",
		logging.String("transport", string(r.cfg.Transport)),
		logging.String("web", r.web.endpoint),
		logging.String("local", r.local.endpoint),
	)
	return nil
}

func (r *Runtime) startSides(ctx context.Context) error {
	sides := []*side{r.web, r.local}
	for _, s := range sides {
		if s.proc == nil {
			continue
		}
		if err := s.proc.Start(); err != nil {
			return err
		}
	}
	if err := r.waitForPorts(ctx, sides); err != nil {
		return err
	}
	for _, s := range sides {
		if err := s.session.Start(r.cfg.StartupTimeout); err != nil {
			r.logger.WithError(err).Warn("session start failed", logging.String("side", s.name))
			return err
		}
	}
	return nil
}

// waitForPorts polls every managed process's port concurrently until it
// accepts a TCP connection or the startup timeout passes.
func (r *Runtime) waitForPorts(ctx context.Context, sides []*side) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sides {
		if s.proc == nil {
			continue
		}
		s := s
		g.Go(func() error {
			return waitForPort(ctx, s.host, s.port, r.cfg.StartupTimeout, r.cfg.PollInterval)
		})
	}
	return g.Wait()
}

func waitForPort(ctx context.Context, host string, port int, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().Add(interval).After(deadline) {
			return mcperrors.ProcessBindFailure(host, port, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// StartupProbe lists the tools of each side independently.
func (r *Runtime) StartupProbe(ctx context.Context) Status {
	status := Status{WebEndpoint: r.web.endpoint, LocalEndpoint: r.local.endpoint}

	var wg sync.WaitGroup
	check := func(s *side, connected *bool, tools *[]string) {
		defer wg.Done()
		names, err := s.session.ListTools(ctx)
		if err != nil {
			r.logger.WithError(err).Warn("startup check failed", logging.String("side", s.name))
			return
		}
		sort.Strings(names)
		*connected = true
		*tools = names
	}
	wg.Add(2)
	go check(r.web, &status.WebConnected, &status.WebTools)
	go check(r.local, &status.LocalConnected, &status.LocalTools)
	wg.Wait()
	return status
}

// CallWebTool calls tool on the web session.
func (r *Runtime) CallWebTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	return r.web.session.CallTool(ctx, tool, args)
}

// CallLocalTool calls tool on the local session.
func (r *Runtime) CallLocalTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	return r.local.session.CallTool(ctx, tool, args)
}

// Close stops the sessions and then the processes. Calling it again does
// nothing.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	return r.teardown()
}

// teardown stops the sessions and then the processes.
func (r *Runtime) teardown() error {
	var errs []error
	for _, s := range []*side{r.web, r.local} {
		if err := s.session.Close(); err != nil {
			r.logger.WithError(err).Warn("session close failed", logging.String("side", s.name))
			errs = append(errs, fmt.Errorf("close %s session: %w", s.name, err))
		}
	}
	for _, s := range []*side{r.web, r.local} {
		if s.proc == nil {
			continue
		}
		if err := s.proc.Close(); err != nil {
			r.logger.WithError(err).Warn("process close failed", logging.String("side", s.name))
			errs = append(errs, fmt.Errorf("close %s process: %w", s.name, err))
		}
	}
	r.logger.Debug("transport closed", logging.Int("errors", len(errs)))
	return mcperrors.Join(errs...)
}

