//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

type stubTool struct{ name string }

func (s stubTool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        s.name,
		Description: "stub",
		InputSchema: &tool.Schema{
			Type:       "object",
			Properties: map[string]*tool.Schema{"query": {Type: "string"}},
			Required:   []string{"query"},
		},
	}
}

func collect(t *testing.T, ch <-chan *model.Response) []*model.Response {
	t.Helper()
	var out []*model.Response
	for rsp := range ch {
		out = append(out, rsp)
	}
	return out
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestNew_Info(t *testing.T) {
	m := New("gpt-4o-mini", WithAPIKey("k"), WithChannelBufferSize(-1))
	assert.Equal(t, "gpt-4o-mini", m.Info().Name)
	assert.Equal(t, defaultChannelBufferSize, m.channelBufferSize)
}

func TestGenerateContent_NilRequest(t *testing.T) {
	m := New("gpt-4o-mini", WithAPIKey("k"))
	ch, err := m.GenerateContent(context.Background(), nil)
	assert.Nil(t, ch)
	assert.EqualError(t, err, "request cannot be nil")
}

func TestGenerateContent_NonStreaming(t *testing.T) {
	var body map[string]any
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`))
	})

	var requested bool
	var answered *openai.ChatCompletion
	m := New("gpt-4o-mini",
		WithAPIKey("sk-test"),
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithExtraFields(map[string]any{"user": "scout"}),
		WithChatRequestCallback(func(ctx context.Context, req *openai.ChatCompletionNewParams) {
			requested = true
		}),
		WithChatResponseCallback(func(ctx context.Context, req *openai.ChatCompletionNewParams, rsp *openai.ChatCompletion) {
			answered = rsp
		}),
	)
	temp := 0.2
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("be brief"),
			model.NewUserMessage("hi"),
		},
		GenerationConfig: model.GenerationConfig{Temperature: &temp},
		Tools:            map[string]tool.Tool{"tavily_search": stubTool{name: "tavily_search"}},
	})
	require.NoError(t, err)
	responses := collect(t, ch)
	require.Len(t, responses, 1)

	rsp := responses[0]
	assert.True(t, requested)
	require.NotNil(t, answered)
	assert.Equal(t, "chatcmpl-1", answered.ID)
	assert.EqualValues(t, 9, answered.Usage.TotalTokens)
	assert.Nil(t, rsp.Error)
	assert.True(t, rsp.Done)
	assert.False(t, rsp.IsPartial)
	assert.Equal(t, "Hello there", rsp.Content())
	require.NotNil(t, rsp.Usage)
	assert.Equal(t, 9, rsp.Usage.TotalTokens)
	assert.True(t, rsp.IsFinalResponse())

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, "scout", body["user"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "tavily_search", fn["name"])
}

func TestGenerateContent_NonStreamingToolCalls(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-2",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {
				"role": "assistant",
				"content": null,
				"tool_calls": [
					{"id": "call_a", "type": "function", "function": {"name": "tavily_search", "arguments": "{\"query\":\"sf\"}"}},
					{"id": "", "type": "function", "function": {"name": "list_tables", "arguments": "{}"}}
				]
			}}]
		}`))
	})
	m := New("gpt-4o-mini", WithAPIKey("k"), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("weather?")},
	})
	require.NoError(t, err)
	responses := collect(t, ch)
	require.Len(t, responses, 1)

	rsp := responses[0]
	require.True(t, rsp.IsToolCallResponse())
	assert.False(t, rsp.IsFinalResponse())
	calls := rsp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.JSONEq(t, `{"query":"sf"}`, string(calls[0].Function.Arguments))
	assert.Equal(t, "auto_call_1", calls[1].ID)
	assert.Equal(t, "list_tables", calls[1].Function.Name)
}

func TestGenerateContent_APIError(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	})
	m := New("gpt-4o-mini",
		WithAPIKey("k"),
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithOpenAIOptions(openaiopt.WithMaxRetries(0)),
	)
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	responses := collect(t, ch)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, model.ErrorTypeAPIError, responses[0].Error.Type)
	assert.True(t, responses[0].Done)
}

func sseChunk(w io.Writer, payload string) {
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
}

func TestGenerateContent_Streaming(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseChunk(w, `{"id":"s1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`)
		sseChunk(w, `{"id":"s1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"lo"}}]}`)
		sseChunk(w, `{"id":"s1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)
		sseChunk(w, `{"id":"s1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`)
		sseChunk(w, `[DONE]`)
	})
	var finishReasons []string
	var chunks int
	m := New("gpt-4o-mini", WithAPIKey("k"), WithBaseURL(server.URL), WithHTTPClient(server.Client()),
		WithChatChunkCallback(func(ctx context.Context, req *openai.ChatCompletionNewParams, chunk *openai.ChatCompletionChunk) {
			chunks++
			for _, choice := range chunk.Choices {
				if choice.FinishReason != "" {
					finishReasons = append(finishReasons, choice.FinishReason)
				}
			}
		}),
	)
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages:         []model.Message{model.NewUserMessage("hi")},
		GenerationConfig: model.GenerationConfig{Stream: true},
	})
	require.NoError(t, err)
	responses := collect(t, ch)
	require.GreaterOrEqual(t, len(responses), 3)

	var streamed strings.Builder
	for _, rsp := range responses[:len(responses)-1] {
		assert.True(t, rsp.IsPartial)
		streamed.WriteString(rsp.Content())
	}
	assert.Equal(t, "Hello", streamed.String())

	final := responses[len(responses)-1]
	assert.False(t, final.IsPartial)
	assert.True(t, final.Done)
	assert.Equal(t, "Hello", final.Content())
	require.NotNil(t, final.Usage)
	assert.Equal(t, 6, final.Usage.TotalTokens)
	assert.Equal(t, 3, chunks)
	assert.Equal(t, []string{"stop"}, finishReasons)
}

func TestGenerateContent_StreamingToolCalls(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_x","type":"function","function":{"name":"tavily_search","arguments":""}}]}}]}`)
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"query\":"}}]}}]}`)
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"sf\"}"}}]}}]}`)
		sseChunk(w, `{"id":"s2","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`)
		sseChunk(w, `[DONE]`)
	})
	m := New("gpt-4o-mini", WithAPIKey("k"), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages:         []model.Message{model.NewUserMessage("weather?")},
		GenerationConfig: model.GenerationConfig{Stream: true},
	})
	require.NoError(t, err)
	responses := collect(t, ch)
	require.NotEmpty(t, responses)

	final := responses[len(responses)-1]
	require.True(t, final.IsToolCallResponse())
	call := final.Choices[0].Message.ToolCalls[0]
	assert.Equal(t, "call_x", call.ID)
	assert.Equal(t, "tavily_search", call.Function.Name)
	assert.JSONEq(t, `{"query":"sf"}`, string(call.Function.Arguments))
	require.NotNil(t, call.Index)
	assert.Equal(t, 0, *call.Index)
}

func TestConvertMessages(t *testing.T) {
	msgs := convertMessages([]model.Message{
		model.NewSystemMessage("sys"),
		model.NewUserMessage("u"),
		{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{{
				ID:       "call_1",
				Type:     "function",
				Function: model.FunctionDefinitionParam{Name: "f", Arguments: []byte(`{}`)},
			}},
		},
		model.NewToolMessage("call_1", "f", "result"),
		{Role: "narrator", Content: "x"},
	})
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfUser)
}
