package session

import (
	"context"
	"fmt"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/pagination"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/process"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/wire"
)

const (
	clientName    = "mcp-toolbridge"
	clientVersion = "0.3.0"
)

// Conn is an initialized protocol connection. Only the session goroutine
// touches it.
type Conn interface {
	ListTools(ctx context.Context) ([]string, error)
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
	Close() error
}

// Connector dials and initializes a Conn. The context is cancelled if the
// session gives up waiting, and stays alive for the session's lifetime
// otherwise.
type Connector func(ctx context.Context) (Conn, error)

type rpcConn struct {
	cli  *wire.Client
	proc *process.ServerProcess
}

// NewConn runs the MCP handshake over t. proc, when not nil, is the child
// behind t and is stopped by Close.
func NewConn(ctx context.Context, t wire.Transport, proc *process.ServerProcess) (Conn, error) {
	c := &rpcConn{cli: wire.NewClient(t, clientName, clientVersion), proc: proc}
	if err := c.cli.Initialize(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *rpcConn) ListTools(ctx context.Context) ([]string, error) {
	return pagination.All(ctx, 0, func(ctx context.Context, cursor string) ([]string, string, error) {
		res, err := c.cli.ListTools(ctx, cursor)
		if err != nil {
			return nil, "", err
		}
		names := make([]string, 0, len(res.Tools))
		for _, tool := range res.Tools {
			names = append(names, tool.Name)
		}
		return names, res.NextCursor, nil
	})
}

func (c *rpcConn) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	raw, err := c.cli.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return DecodeResult(name, raw)
}

func (c *rpcConn) Close() error {
	err := c.cli.Close()
	if c.proc != nil {
		err = mcperrors.Join(err, c.proc.Close())
	}
	return err
}

// StdioConnector spawns argv as a child tool server and speaks the protocol
// over its stdin/stdout. env entries override the inherited environment. The
// child's stderr is forwarded to logger at debug level.
func StdioConnector(argv []string, env map[string]string, logger logging.Logger) Connector {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(ctx context.Context) (Conn, error) {
		proc := process.New(argv, env, process.WithLogger(logger))
		pipes, err := proc.StartPiped()
		if err != nil {
			return nil, err
		}
		t := wire.NewStdioTransport(pipes.Stdout, pipes.Stdin, logger)
		conn, err := NewConn(ctx, t, proc)
		if err != nil {
			return nil, fmt.Errorf("initialize %s: %w", proc.Command()[0], err)
		}
		return conn, nil
	}
}

// HTTPConnector connects to a streamable HTTP tool server at url, sending
// headers (typically Authorization) with every request.
func HTTPConnector(url string, headers map[string]string) Connector {
	return func(ctx context.Context) (Conn, error) {
		t := wire.NewStreamableHTTPTransport(url, wire.WithHeaders(headers))
		return NewConn(ctx, t, nil)
	}
}
