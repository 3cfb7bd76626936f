// Package toolserver exposes a provider.Provider as an MCP tool server, over
// stdio for a spawned child or over streamable HTTP behind bearer token
// authentication.
package toolserver

import (
	"context"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/observability"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version is reported in the initialize handshake.
var Version = "0.3.0"

// Server is one side's tool server.
type Server struct {
	provider provider.Provider
	mcp      *server.MCPServer
	logger   logging.Logger
	recorder observability.ServerRecorder
	metrics  *observability.PrometheusRecorder
	tracer   *observability.Tracer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records tool invocations in rec and serves its registry at
// /metrics on the HTTP surface.
func WithMetrics(rec *observability.PrometheusRecorder) Option {
	return func(s *Server) {
		s.metrics = rec
		s.recorder = rec
	}
}

// WithRecorder records tool invocations without exposing /metrics.
func WithRecorder(rec observability.ServerRecorder) Option {
	return func(s *Server) { s.recorder = rec }
}

// WithTracer sets the tracer used for tool spans.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// New registers every tool of p on a fresh MCP server.
func New(p provider.Provider, opts ...Option) *Server {
	s := &Server{provider: p}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.recorder == nil {
		s.recorder = observability.Nop{}
	}
	s.logger = s.logger.WithFields(
		logging.String("component", "toolserver"),
		logging.String("side", p.Side()),
	)

	s.mcp = server.NewMCPServer(
		"toolbridge-"+p.Side(),
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(observability.ToolMiddleware(p.Side(), s.recorder, s.tracer, s.logger)),
	)
	for _, tool := range p.Tools() {
		s.mcp.AddTool(toolDefinition(tool), s.handler(tool.Name))
	}
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Provider returns the provider being served.
func (s *Server) Provider() provider.Provider { return s.provider }

func toolDefinition(t provider.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case provider.ParamNumber:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// handler answers a tools/call with the JSON text {"result": value}. Provider
// errors become error results so the caller sees the message.
func (s *Server) handler(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := s.provider.Call(ctx, tool, req.GetArguments())
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("tool failed", logging.String("tool", tool))
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := json.Marshal(map[string]any{"result": value})
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", tool, err)
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}

// ServeStdio speaks the protocol over in and out until in is closed or ctx
// is cancelled. Protocol errors are logged through the server's logger.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(logging.StdLogger(s.logger, logging.ErrorLevel, "stdio"))
	s.logger.Info("serving stdio", logging.Int("tools", len(s.provider.Tools())))
	err := stdio.Listen(ctx, in, out)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// ProviderFromConfig builds the provider for side from cfg. Web search
// backends are not configured here; without them the web provider answers
// with degraded results.
func ProviderFromConfig(side string, cfg *config.Config, logger logging.Logger, opts ...provider.WebOption) (provider.Provider, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	switch side {
	case provider.SideWeb:
		opts = append([]provider.WebOption{provider.WithWebLogger(logger)}, opts...)
		return provider.NewWebProvider(provider.WebConfig{
			TavilyRPM:       cfg.TavilyRPM,
			DDGRPM:          cfg.DDGRPM,
			FirecrawlRPM:    cfg.FirecrawlRPM,
			MaxRetries:      cfg.MaxRetries,
			TavilyAPIKey:    cfg.TavilyAPIKey,
			FirecrawlAPIKey: cfg.FirecrawlAPIKey,
		}, opts...), nil
	case provider.SideLocal:
		return provider.NewLocalProvider(cfg.ProjectRoot, cfg.OutputDir, logger)
	}
	return nil, mcperrors.InvalidParameter("side", fmt.Sprintf("%q is not one of web, local", side))
}
