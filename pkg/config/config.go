// Package config loads tool-bridge settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
)

// Mode selects how the client reaches tool providers.
type Mode string

const (
	ModeInProcess Mode = "inprocess"
	ModeTransport Mode = "transport"
	ModeAuto      Mode = "auto"
)

// TransportKind selects the wire transport when a transport is used.
type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportStreamableHTTP TransportKind = "streamable-http"
)

// Config holds every tunable of the client, the runtime, the tool servers
// and the in-process providers.
type Config struct {
	Mode      Mode          `yaml:"mode"`
	Transport TransportKind `yaml:"transport"`

	WebServerCmd       string `yaml:"web_server_cmd"`
	LocalServerCmd     string `yaml:"local_server_cmd"`
	WebHTTPServerCmd   string `yaml:"web_http_server_cmd"`
	LocalHTTPServerCmd string `yaml:"local_http_server_cmd"`

	HTTPHost      string `yaml:"http_host"`
	HTTPPortWeb   int    `yaml:"http_port_web"`
	HTTPPortLocal int    `yaml:"http_port_local"`
	HTTPWebURL    string `yaml:"http_web_url"`
	HTTPLocalURL  string `yaml:"http_local_url"`
	// HTTPExternal means the servers are managed elsewhere; no processes are
	// spawned.
	HTTPExternal bool `yaml:"http_external"`

	AuthToken         string `yaml:"auth_token"`
	ClientAuthToken   string `yaml:"client_auth_token"`
	AllowInsecureHTTP bool   `yaml:"allow_insecure_http"`
	AllowExternalBind bool   `yaml:"allow_external_bind"`

	StartupTimeout time.Duration `yaml:"startup_timeout"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
	// PollInterval is the spacing of TCP readiness checks.
	PollInterval time.Duration `yaml:"poll_interval"`

	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerRecovery  time.Duration `yaml:"breaker_recovery"`

	TavilyRPM    int `yaml:"tavily_rpm"`
	DDGRPM       int `yaml:"ddg_rpm"`
	FirecrawlRPM int `yaml:"firecrawl_rpm"`
	MaxRetries   int `yaml:"max_retries"`

	TavilyAPIKey    string `yaml:"tavily_api_key"`
	FirecrawlAPIKey string `yaml:"firecrawl_api_key"`

	ProjectRoot string `yaml:"project_root"`
	OutputDir   string `yaml:"output_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// TraceExporter is noop, otlp-grpc or otlp-http.
	TraceExporter   string  `yaml:"trace_exporter"`
	OTLPEndpoint    string  `yaml:"otlp_endpoint"`
	OTLPInsecure    bool    `yaml:"otlp_insecure"`
	TraceSampleRate float64 `yaml:"trace_sample_rate"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Mode:               ModeAuto,
		Transport:          TransportStdio,
		WebServerCmd:       "toolserver -side web -transport stdio",
		LocalServerCmd:     "toolserver -side local -transport stdio",
		WebHTTPServerCmd:   "toolserver -side web -transport streamable-http",
		LocalHTTPServerCmd: "toolserver -side local -transport streamable-http",
		HTTPHost:           "127.0.0.1",
		HTTPPortWeb:        8001,
		HTTPPortLocal:      8002,
		StartupTimeout:     20 * time.Second,
		CallTimeout:        15 * time.Second,
		PollInterval:       200 * time.Millisecond,
		BreakerThreshold:   3,
		BreakerRecovery:    45 * time.Second,
		TavilyRPM:          5,
		DDGRPM:             20,
		FirecrawlRPM:       3,
		MaxRetries:         3,
		ProjectRoot:        ".",
		OutputDir:          "outputs",
		LogLevel:           "info",
		LogFormat:          "text",
		TraceExporter:      "noop",
		TraceSampleRate:    1.0,
	}
}

// ClientToken is the bearer token the client presents: ClientAuthToken when
// set, otherwise AuthToken.
func (c *Config) ClientToken() string {
	if c.ClientAuthToken != "" {
		return c.ClientAuthToken
	}
	return c.AuthToken
}

// WebURL is HTTPWebURL when set, otherwise http://host:port/mcp.
func (c *Config) WebURL() string {
	if c.HTTPWebURL != "" {
		return c.HTTPWebURL
	}
	return httpURL(c.HTTPHost, c.HTTPPortWeb)
}

// LocalURL is HTTPLocalURL when set, otherwise http://host:port/mcp.
func (c *Config) LocalURL() string {
	if c.HTTPLocalURL != "" {
		return c.HTTPLocalURL
	}
	return httpURL(c.HTTPHost, c.HTTPPortLocal)
}

func httpURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/mcp"
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeInProcess, ModeTransport, ModeAuto:
	default:
		errs = append(errs, mcperrors.InvalidParameter("MCP_MODE", fmt.Sprintf("%q is not one of inprocess, transport, auto", c.Mode)))
	}
	switch c.Transport {
	case TransportStdio, TransportStreamableHTTP:
	default:
		errs = append(errs, mcperrors.InvalidParameter("MCP_TRANSPORT", fmt.Sprintf("%q is not one of stdio, streamable-http", c.Transport)))
	}
	for name, port := range map[string]int{"MCP_HTTP_PORT_WEB": c.HTTPPortWeb, "MCP_HTTP_PORT_LOCAL": c.HTTPPortLocal} {
		if port < 1 || port > 65535 {
			errs = append(errs, mcperrors.InvalidParameter(name, fmt.Sprintf("port %d out of range", port)))
		}
	}
	if c.StartupTimeout < time.Second {
		errs = append(errs, mcperrors.InvalidParameter("MCP_STARTUP_TIMEOUT_SECONDS", "must be at least 1"))
	}
	if c.CallTimeout < time.Second {
		errs = append(errs, mcperrors.InvalidParameter("MCP_CALL_TIMEOUT_SECONDS", "must be at least 1"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, mcperrors.InvalidParameter("MAX_RETRIES", "must not be negative"))
	}
	for name, rpm := range map[string]int{"TAVILY_RPM": c.TavilyRPM, "DDG_RPM": c.DDGRPM, "FIRECRAWL_RPM": c.FirecrawlRPM} {
		if rpm < 1 {
			errs = append(errs, mcperrors.InvalidParameter(name, "must be at least 1"))
		}
	}
	switch c.TraceExporter {
	case "noop":
	case "otlp-grpc", "otlp-http":
		if c.OTLPEndpoint == "" {
			errs = append(errs, mcperrors.InvalidParameter("OTEL_EXPORTER_OTLP_ENDPOINT", "required by the "+c.TraceExporter+" exporter"))
		}
	default:
		errs = append(errs, mcperrors.InvalidParameter("MCP_TRACE_EXPORTER", fmt.Sprintf("%q is not one of noop, otlp-grpc, otlp-http", c.TraceExporter)))
	}
	if c.TraceSampleRate <= 0 || c.TraceSampleRate > 1 {
		errs = append(errs, mcperrors.InvalidParameter("MCP_TRACE_SAMPLE_RATE", "must be above 0 and at most 1"))
	}
	return mcperrors.Join(errs...)
}

// ValidateHTTPSecurity enforces the rules a streamable HTTP tool server must
// satisfy before binding: loopback only unless AllowExternalBind, and a
// token unless AllowInsecureHTTP.
func (c *Config) ValidateHTTPSecurity() error {
	host := strings.ToLower(strings.TrimSpace(c.HTTPHost))
	if host != "127.0.0.1" && host != "localhost" && !c.AllowExternalBind {
		return mcperrors.ValidationError("External HTTP bind rejected. Set MCP_ALLOW_EXTERNAL_BIND=true to override.")
	}
	if c.AuthToken == "" && !c.AllowInsecureHTTP {
		return mcperrors.ValidationError("MCP_AUTH_TOKEN is required for streamable-http unless MCP_ALLOW_INSECURE_HTTP=true.")
	}
	return nil
}
