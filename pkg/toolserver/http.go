package toolserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/auth"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/provider"
)

// EndpointPath is where the streamable HTTP protocol endpoint is mounted.
const EndpointPath = "/mcp"

const shutdownTimeout = 5 * time.Second

// HTTPHandler returns the HTTP surface: the protocol endpoint at /mcp,
// /healthz, and /metrics when metrics are enabled. A non-empty token is
// required as a bearer token on /mcp.
func (s *Server) HTTPHandler(token string) http.Handler {
	streamable := server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(EndpointPath))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.HTTPMiddleware(s.logger))

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if token != "" {
			r.Use(auth.Middleware(auth.NewStaticTokenVerifier(token, ""), s.logger))
		}
		r.Handle(EndpointPath, streamable)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	health := s.provider.Health()
	status := http.StatusOK
	if !provider.Healthy(s.provider) {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(health)
}

// ListenAndServe serves the HTTP surface on cfg.HTTPHost and the port of
// this server's side until ctx is cancelled. The security rules of
// cfg.ValidateHTTPSecurity are enforced before binding.
func (s *Server) ListenAndServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateHTTPSecurity(); err != nil {
		return err
	}
	port := cfg.HTTPPortLocal
	if s.provider.Side() == provider.SideWeb {
		port = cfg.HTTPPortWeb
	}
	addr := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, cfg.AuthToken)
}

// Serve serves the HTTP surface on ln until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener, token string) error {
	srv := &http.Server{
		Handler:           s.HTTPHandler(token),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logging.StdLogger(s.logger, logging.WarnLevel, "http"),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("serving streamable http",
		logging.String("addr", ln.Addr().String()),
		logging.Bool("auth", token != ""),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Warn("graceful shutdown incomplete")
		_ = srv.Close()
	}
	<-errCh
	s.logger.Info("http server stopped")
	return nil
}
