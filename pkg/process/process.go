// Package process manages tool-server child processes: spawn with a merged
// environment, then stop with terminate, a grace period, kill, and a second
// grace period.
package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
)

const defaultGrace = 5 * time.Second

// ServerProcess is one child tool server. The zero value is not usable; use
// New.
type ServerProcess struct {
	argv   []string
	env    map[string]string
	grace  time.Duration
	output io.Writer
	logger logging.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// Option configures a ServerProcess.
type Option func(*ServerProcess)

// WithGrace sets how long Close waits after each signal.
func WithGrace(d time.Duration) Option {
	return func(p *ServerProcess) {
		if d > 0 {
			p.grace = d
		}
	}
}

// WithOutput sends the child's stdout and stderr to w instead of discarding
// them.
func WithOutput(w io.Writer) Option {
	return func(p *ServerProcess) { p.output = w }
}

func WithLogger(l logging.Logger) Option {
	return func(p *ServerProcess) {
		if l != nil {
			p.logger = l
		}
	}
}

// New describes a process; nothing is spawned until Start. env entries
// override the inherited environment.
func New(argv []string, env map[string]string, opts ...Option) *ServerProcess {
	p := &ServerProcess{
		argv:   argv,
		env:    env,
		grace:  defaultGrace,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithFields(logging.String("component", "process"))
	return p
}

// Command returns the argv the process runs.
func (p *ServerProcess) Command() []string { return p.argv }

// Start spawns the child. Calling Start on a running process does nothing.
func (p *ServerProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runningLocked() {
		return nil
	}
	return p.startLocked(func(cmd *exec.Cmd) {
		if p.output != nil {
			cmd.Stdout = p.output
			cmd.Stderr = p.output
		}
	})
}

// Pipes are the parent's ends of a piped child's stdin and stdout.
type Pipes struct {
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
}

// StartPiped spawns the child with its stdin and stdout connected to the
// returned pipes, for servers that speak over stdio. Stderr goes to the
// configured output, or to the logger at debug level.
func (p *ServerProcess) StartPiped() (*Pipes, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runningLocked() {
		return nil, mcperrors.ProcessFailed(p.name(), fmt.Errorf("already running"))
	}
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, mcperrors.ProcessFailed(p.name(), err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, mcperrors.ProcessFailed(p.name(), err)
	}

	stderr := p.output
	if stderr == nil {
		stderr = logging.StdLogger(p.logger.WithFields(logging.String("stream", "stderr")), logging.DebugLevel, "").Writer()
	}
	err = p.startLocked(func(cmd *exec.Cmd) {
		cmd.Stdin = stdinR
		cmd.Stdout = stdoutW
		cmd.Stderr = stderr
	})
	// the child holds its own copies now
	stdinR.Close()
	stdoutW.Close()
	if err != nil {
		stdinW.Close()
		stdoutR.Close()
		return nil, err
	}
	return &Pipes{Stdin: stdinW, Stdout: stdoutR}, nil
}

func (p *ServerProcess) name() string {
	if len(p.argv) == 0 {
		return ""
	}
	return p.argv[0]
}

func (p *ServerProcess) startLocked(setup func(*exec.Cmd)) error {
	if len(p.argv) == 0 {
		return mcperrors.ProcessFailed("", fmt.Errorf("empty command"))
	}

	cmd := exec.Command(p.argv[0], p.argv[1:]...)
	cmd.Env = mergeEnv(os.Environ(), p.env)
	setup(cmd)
	if err := cmd.Start(); err != nil {
		return mcperrors.ProcessFailed(p.argv[0], err)
	}

	exited := make(chan struct{})
	p.cmd = cmd
	p.exited = exited
	p.err = nil
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(exited)
	}()

	p.logger.Info("server process started", logging.Strings("argv", p.argv), logging.Int("pid", cmd.Process.Pid))
	return nil
}

func (p *ServerProcess) runningLocked() bool {
	if p.exited == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Running reports whether the child has been started and not yet exited.
func (p *ServerProcess) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

// Pid is 0 when the process was never started.
func (p *ServerProcess) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Terminate asks the child to exit.
func (p *ServerProcess) Terminate() error {
	proc := p.process()
	if proc == nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return proc.Signal(os.Interrupt)
	}
	return nil
}

// Kill forces the child to exit.
func (p *ServerProcess) Kill() error {
	proc := p.process()
	if proc == nil {
		return nil
	}
	return proc.Kill()
}

// WaitFor waits up to timeout for the child to exit and reports whether it
// did.
func (p *ServerProcess) WaitFor(timeout time.Duration) bool {
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited == nil {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-exited:
		return true
	case <-timer.C:
		return false
	}
}

func (p *ServerProcess) process() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.runningLocked() {
		return nil
	}
	return p.cmd.Process
}

// Close terminates the child, waits, kills it if needed, and waits again.
// Closing a process that is not running is a no-op.
func (p *ServerProcess) Close() error {
	if !p.Running() {
		return nil
	}
	if err := p.Terminate(); err != nil {
		p.logger.WithError(err).Debug("terminate failed")
	}
	if p.WaitFor(p.grace) {
		return nil
	}

	p.logger.Warn("server process ignored terminate; killing", logging.Int("pid", p.Pid()))
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), err)
	}
	if !p.WaitFor(p.grace) {
		return fmt.Errorf("pid %d did not exit after kill", p.Pid())
	}
	return nil
}

// mergeEnv overlays overrides on base, replacing existing keys.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := kv
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key = kv[:i]
				break
			}
		}
		if _, ok := overrides[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
