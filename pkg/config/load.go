package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding an optional YAML config
// path.
const FileEnv = "TOOLBRIDGE_CONFIG"

type loadOptions struct {
	dotenv []string
	file   string
	lookup func(string) (string, bool)
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithDotenv loads the given .env files instead of ./.env.
func WithDotenv(paths ...string) LoadOption {
	return func(o *loadOptions) { o.dotenv = paths }
}

// WithFile reads a YAML file before applying the environment.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) { o.file = path }
}

// WithLookup replaces os.LookupEnv, and skips .env loading.
func WithLookup(lookup func(string) (string, bool)) LoadOption {
	return func(o *loadOptions) { o.lookup = lookup }
}

// Load builds a validated Config. Missing .env or YAML files named only by
// default are ignored; an explicitly named YAML file must exist.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	// godotenv.Load never overrides variables already in the environment.
	switch {
	case o.lookup != nil:
	case len(o.dotenv) > 0:
		if err := godotenv.Load(o.dotenv...); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	default:
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	if o.lookup == nil {
		o.lookup = os.LookupEnv
	}

	cfg := Default()

	path := o.file
	if path == "" {
		path, _ = o.lookup(FileEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(o.lookup)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables. Unparseable numbers keep the
// current value.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := cast.ToIntE(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			*dst = parseBool(v)
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if f, err := cast.ToFloat64E(strings.TrimSpace(v)); err == nil {
				*dst = time.Duration(f * float64(time.Second))
			}
		}
	}

	var mode, transport string
	str("MCP_MODE", &mode)
	str("MCP_TRANSPORT", &transport)
	if mode != "" {
		c.Mode = Mode(strings.ToLower(mode))
	}
	if transport != "" {
		c.Transport = TransportKind(strings.ToLower(transport))
	}

	str("MCP_WEB_SERVER_CMD", &c.WebServerCmd)
	str("MCP_LOCAL_SERVER_CMD", &c.LocalServerCmd)
	str("MCP_WEB_HTTP_SERVER_CMD", &c.WebHTTPServerCmd)
	str("MCP_LOCAL_HTTP_SERVER_CMD", &c.LocalHTTPServerCmd)
	str("MCP_HTTP_HOST", &c.HTTPHost)
	num("MCP_HTTP_PORT_WEB", &c.HTTPPortWeb)
	num("MCP_HTTP_PORT_LOCAL", &c.HTTPPortLocal)
	str("MCP_HTTP_WEB_URL", &c.HTTPWebURL)
	str("MCP_HTTP_LOCAL_URL", &c.HTTPLocalURL)
	flag("MCP_HTTP_EXTERNAL", &c.HTTPExternal)
	str("MCP_AUTH_TOKEN", &c.AuthToken)
	str("MCP_CLIENT_AUTH_TOKEN", &c.ClientAuthToken)
	flag("MCP_ALLOW_INSECURE_HTTP", &c.AllowInsecureHTTP)
	flag("MCP_ALLOW_EXTERNAL_BIND", &c.AllowExternalBind)
	seconds("MCP_STARTUP_TIMEOUT_SECONDS", &c.StartupTimeout)
	seconds("MCP_CALL_TIMEOUT_SECONDS", &c.CallTimeout)
	seconds("MCP_BREAKER_RECOVERY_SECONDS", &c.BreakerRecovery)
	num("MCP_BREAKER_THRESHOLD", &c.BreakerThreshold)

	num("TAVILY_RPM", &c.TavilyRPM)
	num("DDG_RPM", &c.DDGRPM)
	num("FIRECRAWL_RPM", &c.FirecrawlRPM)
	num("MAX_RETRIES", &c.MaxRetries)
	str("TAVILY_API_KEY", &c.TavilyAPIKey)
	str("FIRECRAWL_API_KEY", &c.FirecrawlAPIKey)

	str("PROJECT_ROOT", &c.ProjectRoot)
	str("OUTPUT_DIR", &c.OutputDir)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	var exporter string
	str("MCP_TRACE_EXPORTER", &exporter)
	if exporter != "" {
		c.TraceExporter = strings.ToLower(exporter)
	}
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTLPEndpoint)
	flag("OTEL_EXPORTER_OTLP_INSECURE", &c.OTLPInsecure)
	if v, ok := lookup("MCP_TRACE_SAMPLE_RATE"); ok {
		if f, err := cast.ToFloat64E(strings.TrimSpace(v)); err == nil {
			c.TraceSampleRate = f
		}
	}
}

// parseBool accepts 1, true, yes and on (any case) as true.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Environment renders the settings a child tool server needs as environment
// variables, for the given side ("web" or "local").
func (c *Config) Environment(side string) map[string]string {
	env := map[string]string{
		"MCP_SERVER_SIDE":         side,
		"MCP_HTTP_HOST":           c.HTTPHost,
		"MCP_HTTP_PORT_WEB":       cast.ToString(c.HTTPPortWeb),
		"MCP_HTTP_PORT_LOCAL":     cast.ToString(c.HTTPPortLocal),
		"MCP_AUTH_TOKEN":          c.AuthToken,
		"MCP_ALLOW_INSECURE_HTTP": boolString(c.AllowInsecureHTTP),
		"MCP_ALLOW_EXTERNAL_BIND": boolString(c.AllowExternalBind),
		"MCP_TRACE_EXPORTER":      c.TraceExporter,
	}
	if c.OTLPEndpoint != "" {
		env["OTEL_EXPORTER_OTLP_ENDPOINT"] = c.OTLPEndpoint
		env["OTEL_EXPORTER_OTLP_INSECURE"] = boolString(c.OTLPInsecure)
	}
	return env
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
