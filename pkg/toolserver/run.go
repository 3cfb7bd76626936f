package toolserver

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/observability"
)

// Run builds the provider for side from cfg and serves it over kind until
// ctx is cancelled or, for stdio, standard input is closed. Standard output
// carries the protocol in stdio mode, so logger must not write to it.
func Run(ctx context.Context, side string, kind config.TransportKind, cfg *config.Config, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	p, err := ProviderFromConfig(side, cfg, logger)
	if err != nil {
		return err
	}

	tracer, err := observability.TracerFromConfig(cfg, side+"_server", Version)
	if err != nil {
		return fmt.Errorf("create tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(sctx); err != nil {
			logger.Warn("tracer shutdown failed", logging.ErrorField(err))
		}
	}()

	switch kind {
	case config.TransportStdio:
		return New(p, WithLogger(logger), WithTracer(tracer)).ServeStdio(ctx, os.Stdin, os.Stdout)
	case config.TransportStreamableHTTP:
		rec, err := observability.NewPrometheusRecorder(observability.MetricsConfig{RuntimeCollectors: true})
		if err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
		return New(p, WithLogger(logger), WithMetrics(rec), WithTracer(tracer)).ListenAndServe(ctx, cfg)
	}
	return fmt.Errorf("unsupported transport %q", kind)
}
