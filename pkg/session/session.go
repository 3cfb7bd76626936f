// Package session runs one protocol connection on a dedicated goroutine and
// lets any number of callers use it through a job queue with deadlines.
//
// A ManagedSession owns exactly one Conn. Callers never touch the Conn; they
// submit jobs and wait for the reply with a deadline of the call timeout plus
// a small margin. A caller that gives up does not cancel the remote call: the
// reply is delivered into a buffered channel nobody reads and is dropped.
// Calls are serialized in submission order.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
)

// State is the lifecycle state of a ManagedSession. Closed and Failed are
// terminal.
type State int

const (
	NotStarted State = iota
	Starting
	Ready
	Closing
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	listMargin   = time.Second
	callMargin   = 2 * time.Second
	joinTimeout  = 5 * time.Second
	minStartup   = time.Second
	defaultCallT = 15 * time.Second
)

// Config describes one session.
type Config struct {
	// Name labels the session in logs, e.g. "web" or "local".
	Name string
	// Endpoint is a display label such as "stdio:<cmd>" or a URL.
	Endpoint    string
	Connect     Connector
	CallTimeout time.Duration
	Logger      logging.Logger
}

type result struct {
	value any
	err   error
}

type job struct {
	run   func(ctx context.Context, conn Conn) (any, error)
	reply chan result
}

// generation holds the channels of one Start attempt.
type generation struct {
	jobs    chan job
	stop    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
	stopped bool
}

// ManagedSession is safe for concurrent use.
type ManagedSession struct {
	id          string
	name        string
	endpoint    string
	connect     Connector
	callTimeout time.Duration
	logger      logging.Logger

	mu    sync.Mutex
	state State
	gen   *generation
}

// New creates a session in the NotStarted state.
func New(cfg Config) *ManagedSession {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallT
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	id := uuid.NewString()
	return &ManagedSession{
		id:          id,
		name:        cfg.Name,
		endpoint:    cfg.Endpoint,
		connect:     cfg.Connect,
		callTimeout: cfg.CallTimeout,
		logger: cfg.Logger.WithFields(
			logging.String("component", "session"),
			logging.String("session", cfg.Name),
			logging.String("session_id", id),
		),
	}
}

func (s *ManagedSession) ID() string       { return s.id }
func (s *ManagedSession) Name() string     { return s.name }
func (s *ManagedSession) Endpoint() string { return s.endpoint }

func (s *ManagedSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the session goroutine and waits up to startupTimeout
// (at least one second) for the connection to be initialized. Starting a
// running session is a no-op. Failed and Closed are terminal: Start on such a
// session returns TransportUnavailable, and a caller that wants to retry
// builds a new session.
func (s *ManagedSession) Start(startupTimeout time.Duration) error {
	if startupTimeout < minStartup {
		startupTimeout = minStartup
	}

	s.mu.Lock()
	switch s.state {
	case Starting, Ready:
		s.mu.Unlock()
		return nil
	case Closing, Closed:
		s.mu.Unlock()
		return mcperrors.TransportUnavailable(s.name + " session is closed")
	case Failed:
		s.mu.Unlock()
		return mcperrors.TransportUnavailable(s.name + " session failed to start")
	}
	ctx, cancel := context.WithCancel(context.Background())
	gen := &generation{
		jobs:   make(chan job),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.gen = gen
	s.state = Starting
	s.mu.Unlock()

	ready := make(chan error, 1)
	go s.run(ctx, gen, ready)

	timer := time.NewTimer(startupTimeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			s.setState(gen, Failed)
			s.logger.WithError(err).Warn("session handshake failed")
			if auth := mcperrors.ClassifyAuth(s.endpoint, err); auth != err {
				return auth
			}
			return mcperrors.HandshakeFailed(s.endpoint, err)
		}
		s.setState(gen, Ready)
		s.logger.Info("session ready", logging.String("endpoint", s.endpoint))
		return nil
	case <-timer.C:
		s.shutdown(gen)
		s.setState(gen, Failed)
		s.logger.Warn("session startup timed out", logging.Duration("timeout", startupTimeout))
		return mcperrors.StartupTimeout(s.endpoint, startupTimeout)
	}
}

// setState updates the state only if gen is still the current generation.
func (s *ManagedSession) setState(gen *generation, state State) {
	s.mu.Lock()
	if s.gen == gen && s.state != Closing && s.state != Closed {
		s.state = state
	}
	s.mu.Unlock()
}

// shutdown asks gen's goroutine to stop and cancels its context.
func (s *ManagedSession) shutdown(gen *generation) {
	s.mu.Lock()
	if !gen.stopped {
		gen.stopped = true
		close(gen.stop)
	}
	s.mu.Unlock()
	gen.cancel()
}

func (s *ManagedSession) run(ctx context.Context, gen *generation, ready chan<- error) {
	defer close(gen.done)
	defer gen.cancel()

	conn, err := s.connect(ctx)
	if err != nil {
		ready <- err
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.WithError(err).Debug("connection close failed")
		}
	}()
	ready <- nil

	for {
		select {
		case <-gen.stop:
			return
		case j := <-gen.jobs:
			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			v, err := j.run(callCtx, conn)
			cancel()
			if err != nil {
				err = mcperrors.ClassifyAuth(s.endpoint, err)
			}
			j.reply <- result{value: v, err: err}
		}
	}
}

// ListTools returns the names of the tools the remote side offers.
func (s *ManagedSession) ListTools(ctx context.Context) ([]string, error) {
	v, err := s.submit(ctx, "tools/list", listMargin, func(ctx context.Context, conn Conn) (any, error) {
		return conn.ListTools(ctx)
	})
	if err != nil {
		return nil, err
	}
	names, _ := v.([]string)
	return names, nil
}

// CallTool invokes a remote tool and returns its decoded result.
func (s *ManagedSession) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	return s.submit(ctx, "tools/call "+name, callMargin, func(ctx context.Context, conn Conn) (any, error) {
		return conn.CallTool(ctx, name, args)
	})
}

func (s *ManagedSession) submit(ctx context.Context, op string, margin time.Duration, run func(context.Context, Conn) (any, error)) (any, error) {
	s.mu.Lock()
	state, gen := s.state, s.gen
	s.mu.Unlock()
	if state != Ready {
		return nil, mcperrors.TransportUnavailable(s.name + " session is not ready (" + state.String() + ")")
	}

	wait := s.callTimeout + margin
	timer := time.NewTimer(wait)
	defer timer.Stop()

	j := job{run: run, reply: make(chan result, 1)}
	select {
	case gen.jobs <- j:
	case <-gen.done:
		return nil, mcperrors.TransportUnavailable(s.name + " session has stopped")
	case <-timer.C:
		return nil, mcperrors.OperationTimeout(op, wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.reply:
		return r.value, r.err
	case <-timer.C:
		s.logger.Warn("call abandoned after deadline", logging.String("op", op), logging.Duration("wait", wait))
		return nil, mcperrors.OperationTimeout(op, wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the session goroutine, waiting up to five seconds for it to
// release the connection. It is idempotent.
func (s *ManagedSession) Close() error {
	s.mu.Lock()
	switch s.state {
	case Closing, Closed:
		s.mu.Unlock()
		return nil
	case NotStarted:
		s.state = Closed
		s.mu.Unlock()
		return nil
	}
	s.state = Closing
	gen := s.gen
	s.mu.Unlock()

	s.shutdown(gen)

	timer := time.NewTimer(joinTimeout)
	defer timer.Stop()
	select {
	case <-gen.done:
	case <-timer.C:
		s.logger.Warn("session goroutine did not exit in time", logging.Duration("timeout", joinTimeout))
	}

	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
	s.logger.Debug("session closed")
	return nil
}
