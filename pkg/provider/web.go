package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/resilience"
)

// Web tool names.
const (
	ToolTavilySearch     = "tavily_search"
	ToolDDGSearch        = "ddg_search"
	ToolFirecrawlExtract = "firecrawl_extract"
)

// Searcher runs a search against one upstream API.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]RetrievedDoc, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string, k int) ([]RetrievedDoc, error)

func (f SearcherFunc) Search(ctx context.Context, query string, k int) ([]RetrievedDoc, error) {
	return f(ctx, query, k)
}

// Extractor fetches page content for a URL or query.
type Extractor interface {
	Extract(ctx context.Context, target, mode string) ([]RetrievedDoc, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, target, mode string) ([]RetrievedDoc, error)

func (f ExtractorFunc) Extract(ctx context.Context, target, mode string) ([]RetrievedDoc, error) {
	return f(ctx, target, mode)
}

// WebConfig sizes the per-tool rate limits and the retry budget.
type WebConfig struct {
	TavilyRPM       int
	DDGRPM          int
	FirecrawlRPM    int
	MaxRetries      int
	TavilyAPIKey    string
	FirecrawlAPIKey string
}

// WebProvider serves tavily_search, ddg_search and firecrawl_extract. Each
// tool acquires from its own token bucket, then calls its backend under the
// retry policy. A missing backend, a missing key, or an empty answer yields
// the degraded documents instead.
type WebProvider struct {
	cfg       WebConfig
	tavily    Searcher
	ddg       Searcher
	firecrawl Extractor

	tavilyBucket    *resilience.TokenBucket
	ddgBucket       *resilience.TokenBucket
	firecrawlBucket *resilience.TokenBucket
	policy          resilience.RetryPolicy
	logger          logging.Logger
}

// WebOption configures a WebProvider.
type WebOption func(*webOptions)

type webOptions struct {
	tavily    Searcher
	ddg       Searcher
	firecrawl Extractor
	clock     resilience.Clock
	policy    *resilience.RetryPolicy
	logger    logging.Logger
}

func WithTavily(s Searcher) WebOption { return func(o *webOptions) { o.tavily = s } }

func WithDDG(s Searcher) WebOption { return func(o *webOptions) { o.ddg = s } }

func WithFirecrawl(e Extractor) WebOption { return func(o *webOptions) { o.firecrawl = e } }

// WithWebClock drives the token buckets from c.
func WithWebClock(c resilience.Clock) WebOption { return func(o *webOptions) { o.clock = c } }

// WithRetryPolicy replaces the default policy; MaxRetries from WebConfig
// still applies.
func WithRetryPolicy(p resilience.RetryPolicy) WebOption {
	return func(o *webOptions) { o.policy = &p }
}

func WithWebLogger(l logging.Logger) WebOption { return func(o *webOptions) { o.logger = l } }

// NewWebProvider builds the web side.
func NewWebProvider(cfg WebConfig, opts ...WebOption) *WebProvider {
	o := &webOptions{clock: resilience.SystemClock(), logger: logging.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	policy := resilience.DefaultRetryPolicy()
	if o.policy != nil {
		policy = *o.policy
	}
	policy.MaxRetries = cfg.MaxRetries
	logger := o.logger.WithFields(logging.String("component", "web_provider"))
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.WithError(err).Warn("retrying upstream call",
			logging.Int("attempt", attempt), logging.Duration("delay", delay))
	}

	bucket := func(rpm int) *resilience.TokenBucket {
		return resilience.NewTokenBucket(rpm, resilience.WithBucketClock(o.clock))
	}
	return &WebProvider{
		cfg:             cfg,
		tavily:          o.tavily,
		ddg:             o.ddg,
		firecrawl:       o.firecrawl,
		tavilyBucket:    bucket(cfg.TavilyRPM),
		ddgBucket:       bucket(cfg.DDGRPM),
		firecrawlBucket: bucket(cfg.FirecrawlRPM),
		policy:          policy,
		logger:          logger,
	}
}

func (w *WebProvider) Side() string { return SideWeb }

func (w *WebProvider) Tools() []Tool {
	search := []Param{
		{Name: "query", Type: ParamString, Description: "Search query", Required: true},
		{Name: "k", Type: ParamNumber, Description: "Maximum number of results (default 5)"},
	}
	return []Tool{
		{Name: ToolTavilySearch, Description: "AI-focused web search", Params: search},
		{Name: ToolDDGSearch, Description: "General free web search", Params: search},
		{Name: ToolFirecrawlExtract, Description: "Extract page content as markdown", Params: []Param{
			{Name: "url_or_query", Type: ParamString, Description: "URL to extract, or a query", Required: true},
			{Name: "mode", Type: ParamString, Description: "extract (default) or another mode"},
		}},
	}
}

func (w *WebProvider) Health() map[string]any {
	return map[string]any{
		"status": "ok",
		"providers": map[string]any{
			"tavily_key":    w.cfg.TavilyAPIKey != "",
			"firecrawl_key": w.cfg.FirecrawlAPIKey != "",
		},
	}
}

func (w *WebProvider) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case ToolTavilySearch:
		return w.TavilySearch(ctx, stringArg(args, "query", ""), intArg(args, "k", 5))
	case ToolDDGSearch:
		return w.DDGSearch(ctx, stringArg(args, "query", ""), intArg(args, "k", 5))
	case ToolFirecrawlExtract:
		return w.FirecrawlExtract(ctx, stringArg(args, "url_or_query", ""), stringArg(args, "mode", "extract"))
	}
	return nil, mcperrors.UnknownTool(tool)
}

func (w *WebProvider) Degraded(tool string, args map[string]any) any {
	switch tool {
	case ToolTavilySearch:
		return FallbackDocs("tavily", stringArg(args, "query", ""))
	case ToolDDGSearch:
		return FallbackDocs("ddg", stringArg(args, "query", ""))
	case ToolFirecrawlExtract:
		return FallbackDocs("firecrawl", stringArg(args, "url_or_query", ""))
	}
	return []RetrievedDoc{}
}

// TavilySearch needs both a backend and TAVILY_API_KEY.
func (w *WebProvider) TavilySearch(ctx context.Context, query string, k int) ([]RetrievedDoc, error) {
	var backend Searcher
	if w.cfg.TavilyAPIKey != "" {
		backend = w.tavily
	}
	return w.search(ctx, "tavily", w.tavilyBucket, backend, query, k)
}

// DDGSearch needs no key.
func (w *WebProvider) DDGSearch(ctx context.Context, query string, k int) ([]RetrievedDoc, error) {
	return w.search(ctx, "ddg", w.ddgBucket, w.ddg, query, k)
}

// FirecrawlExtract needs both a backend and FIRECRAWL_API_KEY.
func (w *WebProvider) FirecrawlExtract(ctx context.Context, target, mode string) ([]RetrievedDoc, error) {
	if err := w.firecrawlBucket.AcquireContext(ctx); err != nil {
		return nil, err
	}
	if w.cfg.FirecrawlAPIKey == "" || w.firecrawl == nil {
		return FallbackDocs("firecrawl", target), nil
	}
	docs, err := resilience.Invoke(ctx, w.policy, resilience.DefaultRetryable,
		func(ctx context.Context) ([]RetrievedDoc, error) {
			return w.firecrawl.Extract(ctx, target, mode)
		})
	if err != nil {
		return nil, classifyUpstream("firecrawl", err)
	}
	if len(docs) == 0 {
		return FallbackDocs("firecrawl", target), nil
	}
	return docs, nil
}

func (w *WebProvider) search(ctx context.Context, name string, bucket *resilience.TokenBucket, backend Searcher, query string, k int) ([]RetrievedDoc, error) {
	if err := bucket.AcquireContext(ctx); err != nil {
		return nil, err
	}
	if backend == nil {
		return FallbackDocs(name, query), nil
	}
	docs, err := resilience.Invoke(ctx, w.policy, resilience.DefaultRetryable,
		func(ctx context.Context) ([]RetrievedDoc, error) {
			return backend.Search(ctx, query, k)
		})
	if err != nil {
		return nil, classifyUpstream(name, err)
	}
	if len(docs) == 0 {
		return FallbackDocs(name, query), nil
	}
	if k > 0 && len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// classifyUpstream types an exhausted upstream error unless it already is.
func classifyUpstream(name string, err error) error {
	if mcperrors.IsMCPError(err) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return mcperrors.RateLimited(name, err)
	}
	for _, status := range []int{500, 502, 503} {
		if strings.Contains(msg, strconv.Itoa(status)) {
			return mcperrors.Server5xx(name, status, err)
		}
	}
	return mcperrors.ProviderFailure(name, err)
}

// FallbackDocs is the single static document returned when provider has no
// live answer for query.
func FallbackDocs(provider, query string) []RetrievedDoc {
	doc := NewDoc("fallback",
		fmt.Sprintf("%s fallback result", strings.ToUpper(provider)),
		"",
		fmt.Sprintf("Fallback context for query: %s.", query),
		0.1)
	doc.Snippet = fmt.Sprintf("No live %s result available. Query: %s", provider, query)
	doc.Meta = map[string]any{"fallback_provider": provider}
	return []RetrievedDoc{doc}
}
