//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

const mockResponse = `{
	"query": "weather in San Francisco",
	"answer": "It is 18C and foggy.",
	"results": [
		{"title": "SF weather", "url": "https://weather.example/sf", "content": "Foggy, 18C", "score": 0.97},
		{"title": "Bay Area forecast", "url": "https://weather.example/bay", "content": "Cool morning", "score": 0.81},
		{"title": "Extra", "url": "https://weather.example/extra", "content": "ignored", "score": 0.2}
	]
}`

func newTestServer(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func callSearch(t *testing.T, ct tool.CallableTool, query string) searchResponse {
	t.Helper()
	args, err := json.Marshal(searchRequest{Query: query})
	require.NoError(t, err)
	out, err := ct.Call(context.Background(), args)
	require.NoError(t, err)
	resp, ok := out.(searchResponse)
	require.True(t, ok, "unexpected result type %T", out)
	return resp
}

func TestTool_Declaration(t *testing.T) {
	decl := NewTool(WithAPIKey("k")).Declaration()
	assert.Equal(t, Name, decl.Name)
	assert.NotEmpty(t, decl.Description)
	require.NotNil(t, decl.InputSchema)
	assert.Equal(t, "object", decl.InputSchema.Type)
	assert.Contains(t, decl.InputSchema.Properties, "query")
	assert.Equal(t, []string{"query"}, decl.InputSchema.Required)
}

func TestTool_Search_DefaultMaxResults(t *testing.T) {
	var body map[string]any
	server := newTestServer(t, http.StatusOK, mockResponse, &body)

	ct := NewTool(WithAPIKey("tvly-test"), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	resp := callSearch(t, ct, "weather in San Francisco")

	assert.EqualValues(t, DefaultMaxResults, body["max_results"])
	assert.Equal(t, "weather in San Francisco", body["query"])
	assert.Equal(t, true, body["include_answer"])

	assert.Equal(t, "It is 18C and foggy.", resp.Answer)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "SF weather", resp.Results[0].Title)
	assert.Equal(t, "https://weather.example/bay", resp.Results[1].URL)
	assert.Contains(t, resp.Summary, "Found 2 results")
	assert.Contains(t, resp.Summary, "Answer: It is 18C and foggy.")
}

func TestTool_Search_Options(t *testing.T) {
	var body map[string]any
	server := newTestServer(t, http.StatusOK, mockResponse, &body)

	ct := NewTool(
		WithAPIKey("tvly-test"),
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxResults(5),
		WithSearchDepth("advanced"),
		WithTopic("news"),
		WithIncludeAnswer(false),
	)
	resp := callSearch(t, ct, "q")

	assert.EqualValues(t, 5, body["max_results"])
	assert.Equal(t, "advanced", body["search_depth"])
	assert.Equal(t, "news", body["topic"])
	_, hasAnswer := body["include_answer"]
	assert.False(t, hasAnswer)
	_, hasDomains := body["include_domains"]
	assert.False(t, hasDomains)
	assert.Len(t, resp.Results, 3)
}

func TestTool_Search_DomainsAndUserAgent(t *testing.T) {
	var body map[string]any
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(mockResponse))
	}))
	t.Cleanup(server.Close)

	ct := NewTool(
		WithAPIKey("tvly-test"),
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithUserAgent("scout/1.2.3"),
		WithIncludeDomains("weather.gov", "noaa.gov"),
		WithExcludeDomains("spam.example"),
	)
	callSearch(t, ct, "forecast")

	assert.Equal(t, "scout/1.2.3", userAgent)
	assert.Equal(t, []any{"weather.gov", "noaa.gov"}, body["include_domains"])
	assert.Equal(t, []any{"spam.example"}, body["exclude_domains"])
}

func TestTool_Search_EmptyQuery(t *testing.T) {
	ct := NewTool(WithAPIKey("k"), WithBaseURL("http://127.0.0.1:0"))
	resp := callSearch(t, ct, "   ")
	assert.Equal(t, "Error: Empty search query provided", resp.Summary)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestTool_Search_HTTPError(t *testing.T) {
	server := newTestServer(t, http.StatusInternalServerError, `{"detail":"boom"}`, nil)

	ct := NewTool(WithAPIKey("k"), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	resp := callSearch(t, ct, "anything")
	assert.Contains(t, resp.Summary, "Error performing search:")
	assert.Contains(t, resp.Summary, "status 500")
	assert.Empty(t, resp.Results)
}

func TestTool_Search_MissingKey(t *testing.T) {
	ct := NewTool(WithBaseURL("http://127.0.0.1:0"))
	resp := callSearch(t, ct, "anything")
	assert.Contains(t, resp.Summary, "api key is required")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("  abc ", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))

	long := truncate(strings.Repeat("é", 400), maxContentLength)
	assert.True(t, utf8.ValidString(long))
	assert.LessOrEqual(t, len(long), maxContentLength)
	assert.Equal(t, strings.Repeat("é", 298)+"...", long)
}
