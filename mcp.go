// Package toolbridge is the root of the MCP tool bridge. It re-exports the
// pieces most callers need from the sub-packages.
package toolbridge

import (
	"github.com/ajitpratap0/mcp-toolbridge/pkg/client"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/config"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/toolserver"
)

var (
	// Version of the bridge, as reported by the tool servers
	Version = toolserver.Version

	// LoadConfig reads .env, the optional YAML file and the environment
	LoadConfig = config.Load

	// DefaultConfig returns the built-in defaults
	DefaultConfig = config.Default

	// NewClient builds a MultiServerClient from a Config
	NewClient = client.FromConfig
)

// Client options
var (
	WithLogger   = client.WithLogger
	WithRecorder = client.WithRecorder
	WithTracer   = client.WithTracer
	WithRuntime  = client.WithRuntime
	WithBreakers = client.WithBreakers
	WithClock    = client.WithClock
)

// Client modes
const (
	ModeInProcess = config.ModeInProcess
	ModeTransport = config.ModeTransport
	ModeAuto      = config.ModeAuto
)

// Transport kinds
const (
	TransportStdio          = config.TransportStdio
	TransportStreamableHTTP = config.TransportStreamableHTTP
)

// Args passes named tool arguments.
type Args = client.Args
