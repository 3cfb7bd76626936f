package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
)

// ToolMiddleware wraps every tool handler of a tool server with a span, a
// metrics record and a debug log line. A panicking handler is recorded as an
// error and re-panics so the server's recovery can answer the call.
func ToolMiddleware(side string, recorder ServerRecorder, tracer *Tracer, logger logging.Logger) server.ToolHandlerMiddleware {
	if recorder == nil {
		recorder = Nop{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
			tool := req.Params.Name
			ctx, span := tracer.StartTool(ctx, side, tool)
			start := time.Now()

			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in tool %s: %v", tool, r)
					recorder.RecordToolInvocation(side, tool, StatusError, time.Since(start))
					EndSpan(span, side, StatusError, err)
					panic(r)
				}

				status := StatusSuccess
				spanErr := err
				if err == nil && result != nil && result.IsError {
					status = StatusError
					spanErr = fmt.Errorf("tool %s returned an error result", tool)
				} else if err != nil {
					status = StatusError
				}
				elapsed := time.Since(start)
				recorder.RecordToolInvocation(side, tool, status, elapsed)
				EndSpan(span, side, status, spanErr)
				logger.WithContext(ctx).Debug("tool handled",
					logging.String("tool", tool),
					logging.String("status", status),
					logging.Duration("elapsed", elapsed),
				)
			}()

			return next(ctx, req)
		}
	}
}
