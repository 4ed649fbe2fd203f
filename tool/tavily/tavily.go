//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tavily provides a Tavily web search tool for AI agents.
// Tavily is a search engine built for LLM consumption and is suitable for
// current events, weather, prices and other real-time information.
package tavily

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-agent-scout/tool"
	"trpc.group/trpc-go/trpc-agent-scout/tool/function"
	"trpc.group/trpc-go/trpc-agent-scout/tool/tavily/internal/client"
)

const (
	// Name is the name the model sees for this tool.
	Name = "tavily_search"
	// DefaultMaxResults is the number of hits requested when unset.
	DefaultMaxResults = 2
	// defaultBaseURL is the default base URL for the Tavily API.
	defaultBaseURL = "https://api.tavily.com"
	// defaultUserAgent is the default user agent for HTTP requests.
	defaultUserAgent = "trpc-agent-scout-tavily/1.0"
	// defaultTimeout is the default timeout for HTTP requests.
	defaultTimeout = 30 * time.Second
	// maxContentLength caps the snippet kept per result.
	maxContentLength = 600
)

// Option is a functional option for configuring the Tavily tool.
type Option func(*config)

// config holds the configuration for the Tavily tool.
type config struct {
	apiKey         string
	baseURL        string
	userAgent      string
	maxResults     int
	searchDepth    string
	topic          string
	includeAnswer  bool
	includeDomains []string
	excludeDomains []string
	timeout        time.Duration
	httpClient     *http.Client
}

// WithAPIKey sets the Tavily API key.
func WithAPIKey(apiKey string) Option {
	return func(c *config) {
		c.apiKey = apiKey
	}
}

// WithBaseURL sets the base URL for the Tavily API.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithUserAgent sets the user agent for HTTP requests.
func WithUserAgent(userAgent string) Option {
	return func(c *config) {
		c.userAgent = userAgent
	}
}

// WithMaxResults sets how many results each search returns.
// Non-positive values keep the default.
func WithMaxResults(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithSearchDepth sets the search depth, "basic" or "advanced".
func WithSearchDepth(depth string) Option {
	return func(c *config) {
		c.searchDepth = depth
	}
}

// WithTopic sets the search topic, "general" or "news".
func WithTopic(topic string) Option {
	return func(c *config) {
		c.topic = topic
	}
}

// WithIncludeAnswer asks Tavily for a short generated answer.
func WithIncludeAnswer(include bool) Option {
	return func(c *config) {
		c.includeAnswer = include
	}
}

// WithIncludeDomains restricts results to the given domains.
func WithIncludeDomains(domains ...string) Option {
	return func(c *config) {
		c.includeDomains = append(c.includeDomains, domains...)
	}
}

// WithExcludeDomains drops results from the given domains.
func WithExcludeDomains(domains ...string) Option {
	return func(c *config) {
		c.excludeDomains = append(c.excludeDomains, domains...)
	}
}

// WithTimeout sets the HTTP timeout. Ignored when WithHTTPClient is used.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

// searchRequest represents the input for the Tavily search tool.
type searchRequest struct {
	Query string `json:"query" jsonschema:"description=The web search query"`
}

// searchResponse represents the output from the Tavily search tool.
type searchResponse struct {
	Query   string       `json:"query"`
	Answer  string       `json:"answer,omitempty"`
	Results []resultItem `json:"results"`
	Summary string       `json:"summary"`
}

// resultItem represents a single search result.
type resultItem struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// tavilyTool represents the Tavily search tool.
type tavilyTool struct {
	client *client.Client
	cfg    *config
}

// NewTool creates a new Tavily search tool with the provided options.
func NewTool(opts ...Option) tool.CallableTool {
	cfg := &config{
		baseURL:       defaultBaseURL,
		userAgent:     defaultUserAgent,
		maxResults:    DefaultMaxResults,
		includeAnswer: true,
		timeout:       defaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: cfg.timeout}
	}

	t := &tavilyTool{
		client: client.New(cfg.baseURL, cfg.apiKey, cfg.userAgent, cfg.httpClient),
		cfg:    cfg,
	}

	return function.NewFunctionTool(
		t.search,
		function.WithName(Name),
		function.WithDescription("Search the web with Tavily. Use it for current events, "+
			"weather, prices, recent news and any fact that may have changed recently. "+
			"Returns the most relevant pages with a short content snippet for each."),
	)
}

// search performs the actual search operation. Failures are reported in the
// summary so the model can read them instead of aborting the run.
func (t *tavilyTool) search(ctx context.Context, req searchRequest) (searchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return searchResponse{
			Query:   req.Query,
			Results: []resultItem{},
			Summary: "Error: Empty search query provided",
		}, nil
	}

	response, err := t.client.Search(ctx, client.Request{
		Query:          req.Query,
		SearchDepth:    t.cfg.searchDepth,
		Topic:          t.cfg.topic,
		MaxResults:     t.cfg.maxResults,
		IncludeAnswer:  t.cfg.includeAnswer,
		IncludeDomains: t.cfg.includeDomains,
		ExcludeDomains: t.cfg.excludeDomains,
	})
	if err != nil {
		return searchResponse{
			Query:   req.Query,
			Results: []resultItem{},
			Summary: fmt.Sprintf("Error performing search: %v", err),
		}, nil
	}

	results := make([]resultItem, 0, len(response.Results))
	for i, r := range response.Results {
		if i >= t.cfg.maxResults {
			break
		}
		results = append(results, resultItem{
			Title:   r.Title,
			URL:     r.URL,
			Content: truncate(r.Content, maxContentLength),
			Score:   r.Score,
		})
	}

	summary := fmt.Sprintf("Found %d results for query '%s'", len(results), req.Query)
	if response.Answer != "" {
		summary = fmt.Sprintf("Answer: %s | %s", response.Answer, summary)
	}

	return searchResponse{
		Query:   req.Query,
		Answer:  response.Answer,
		Results: results,
		Summary: summary,
	}, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
