package logging

import (
	"log"
	"strings"
)

// writerAdapter turns each line written by a standard library *log.Logger
// into a structured entry.
type writerAdapter struct {
	logger Logger
	level  Level
}

func (w *writerAdapter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\r\n")
	if msg == "" {
		return len(p), nil
	}
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}
	return len(p), nil
}

// StdLogger returns a *log.Logger whose output is re-emitted through logger
// at level. It is handed to libraries that only accept *log.Logger, such as
// http.Server.ErrorLog and the MCP stdio server.
func StdLogger(logger Logger, level Level, component string) *log.Logger {
	if component != "" {
		logger = logger.WithFields(String("component", component))
	}
	return log.New(&writerAdapter{logger: logger, level: level}, "", 0)
}
