//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
	"trpc.group/trpc-go/trpc-agent-scout/tool/function"
)

// echoRunner answers with the upper-cased message and records it in saver.
type echoRunner struct {
	saver checkpoint.Saver
	fail  bool
}

func (r *echoRunner) Run(
	ctx context.Context,
	threadID string,
	message model.Message,
	runOpts ...agent.RunOption,
) (<-chan *event.Event, error) {
	if threadID == "broken" {
		return nil, errors.New("runner unavailable")
	}
	ch := make(chan *event.Event, 4)
	go func() {
		defer close(ch)
		if r.fail {
			ch <- event.NewErrorEvent("inv", "echo", model.ErrorTypeAPIError, "quota exceeded")
			return
		}
		answer := strings.ToUpper(message.Content)
		if agent.NewRunOptions(runOpts...).Stream {
			ch <- event.NewResponseEvent("inv", "echo", &model.Response{
				Object:    model.ObjectTypeChatCompletionChunk,
				IsPartial: true,
				Choices:   []model.Choice{{Delta: model.NewAssistantMessage(answer)}},
			})
		}
		ch <- event.NewResponseEvent("inv", "echo", &model.Response{
			Object:  model.ObjectTypeChatCompletion,
			Done:    true,
			Choices: []model.Choice{{Message: model.NewAssistantMessage(answer)}},
		})
		_ = r.saver.Put(ctx, checkpoint.New(threadID, []model.Message{
			message, model.NewAssistantMessage(answer),
		}, checkpoint.Metadata{Source: checkpoint.SourceRunner}))
	}()
	return ch, nil
}

func (r *echoRunner) RunText(ctx context.Context, threadID, text string, runOpts ...agent.RunOption) (string, error) {
	return strings.ToUpper(text), nil
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, checkpoint.Saver, *echoRunner) {
	t.Helper()
	saver := inmemory.NewSaver()
	r := &echoRunner{saver: saver}
	ts := httptest.NewServer(New(r, saver, opts...).Handler())
	t.Cleanup(ts.Close)
	return ts, saver, r
}

func postMessage(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	rsp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { rsp.Body.Close() })
	return rsp
}

func TestServer_Health(t *testing.T) {
	ts, _, _ := newTestServer(t)
	rsp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
}

func TestServer_PostMessage(t *testing.T) {
	ts, saver, _ := newTestServer(t)

	rsp := postMessage(t, ts.URL+"/v1/threads/t1/messages", `{"message":"hi there"}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode)

	var got MessageResponse
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&got))
	assert.Equal(t, MessageResponse{ThreadID: "t1", Answer: "HI THERE"}, got)

	cp, err := saver.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Len(t, cp.Messages, 2)
}

func TestServer_PostMessageErrors(t *testing.T) {
	ts, _, r := newTestServer(t)

	tests := []struct {
		name   string
		thread string
		body   string
		fail   bool
		status int
	}{
		{name: "invalid json", thread: "t1", body: `{`, status: http.StatusBadRequest},
		{name: "empty message", thread: "t1", body: `{"message":"  "}`, status: http.StatusBadRequest},
		{name: "runner setup failure", thread: "broken", body: `{"message":"x"}`, status: http.StatusInternalServerError},
		{name: "agent error", thread: "t1", body: `{"message":"x"}`, fail: true, status: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.fail = tt.fail
			rsp := postMessage(t, ts.URL+"/v1/threads/"+tt.thread+"/messages", tt.body)
			assert.Equal(t, tt.status, rsp.StatusCode)

			var got errorResponse
			require.NoError(t, json.NewDecoder(rsp.Body).Decode(&got))
			assert.NotEmpty(t, got.Error)
		})
	}
	r.fail = false
}

func TestServer_PostMessageStream(t *testing.T) {
	ts, _, _ := newTestServer(t)

	rsp := postMessage(t, ts.URL+"/v1/threads/t1/messages", `{"message":"abc","stream":true}`)
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "text/event-stream", rsp.Header.Get("Content-Type"))

	var events []event.Event
	scanner := bufio.NewScanner(rsp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e event.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, events, 2)
	assert.True(t, events[0].IsPartial)
	assert.Equal(t, "ABC", events[1].Content())
}

func TestServer_Threads(t *testing.T) {
	ts, _, _ := newTestServer(t)

	rsp, err := http.Get(ts.URL + "/v1/threads/missing")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)

	postMessage(t, ts.URL+"/v1/threads/t1/messages", `{"message":"remember me"}`)

	rsp, err = http.Get(ts.URL + "/v1/threads/t1")
	require.NoError(t, err)
	var thread ThreadResponse
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&thread))
	rsp.Body.Close()
	assert.Equal(t, "t1", thread.ThreadID)
	assert.NotEmpty(t, thread.CheckpointID)
	assert.Equal(t, 1, thread.Step)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "REMEMBER ME", thread.Messages[1].Content)

	rsp, err = http.Get(ts.URL + "/v1/threads")
	require.NoError(t, err)
	var list map[string][]string
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&list))
	rsp.Body.Close()
	assert.Equal(t, []string{"t1"}, list["threads"])

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/v1/threads/t1", nil)
	require.NoError(t, err)
	rsp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusNoContent, rsp.StatusCode)

	rsp, err = http.Get(ts.URL + "/v1/threads/t1")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
}

func TestServer_ThreadTranscript(t *testing.T) {
	ts, _, _ := newTestServer(t)
	postMessage(t, ts.URL+"/v1/threads/t1/messages", `{"message":"weather in sf"}`)

	rsp, err := http.Get(ts.URL + "/v1/threads/t1?format=html")
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Contains(t, rsp.Header.Get("Content-Type"), "text/html")

	rsp2, err := http.Get(ts.URL + "/v1/threads/t1?format=pdf")
	require.NoError(t, err)
	rsp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, rsp2.StatusCode)
}

func TestServer_Tools(t *testing.T) {
	lookup := function.NewFunctionTool(
		func(ctx context.Context, in struct{ Q string }) (string, error) { return in.Q, nil },
		function.WithName("lookup"),
		function.WithDescription("Looks things up."),
	)
	ts, _, _ := newTestServer(t, WithTools([]tool.Tool{lookup}))

	rsp, err := http.Get(ts.URL + "/v1/tools")
	require.NoError(t, err)
	defer rsp.Body.Close()

	var infos []ToolInfo
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "lookup", infos[0].Name)
	assert.Equal(t, "Looks things up.", infos[0].Description)
}

func TestServer_CORS(t *testing.T) {
	ts, _, _ := newTestServer(t, WithAllowedOrigins("http://example.com"))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, "http://example.com", rsp.Header.Get("Access-Control-Allow-Origin"))
}
