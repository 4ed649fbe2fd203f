//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package llmagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
	"trpc.group/trpc-go/trpc-agent-scout/tool/function"
)

// fakeModel calls the lookup tool once, then answers with the tool output.
type fakeModel struct {
	requests []*model.Request
}

func (m *fakeModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.requests = append(m.requests, req)
	ch := make(chan *model.Response, 1)
	defer close(ch)
	last := req.Messages[len(req.Messages)-1]
	if last.Role == model.RoleTool {
		ch <- &model.Response{Done: true, Choices: []model.Choice{{
			Message: model.NewAssistantMessage("answer: " + last.Content),
		}}}
		return ch, nil
	}
	ch <- &model.Response{Done: true, Choices: []model.Choice{{
		Message: model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{
			Type: "function",
			ID:   "call-1",
			Function: model.FunctionDefinitionParam{
				Name:      "lookup",
				Arguments: []byte(`{"key":"capital"}`),
			},
		}}},
	}}}
	return ch, nil
}

func (m *fakeModel) Info() model.Info { return model.Info{Name: "fake"} }

type lookupInput struct {
	Key string `json:"key"`
}

func newLookupTool() tool.Tool {
	return function.NewFunctionTool(func(_ context.Context, in lookupInput) (string, error) {
		return in.Key + "=paris", nil
	}, function.WithName("lookup"), function.WithDescription("looks up a key"))
}

type staticToolSet struct {
	tools  []tool.Tool
	calls  int
	closed bool
}

func (s *staticToolSet) Tools(context.Context) []tool.Tool { s.calls++; return s.tools }
func (s *staticToolSet) Close() error                      { s.closed = true; return nil }
func (s *staticToolSet) Name() string                      { return "static" }

func drain(ch <-chan *event.Event) []*event.Event {
	var out []*event.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestLLMAgent_Run(t *testing.T) {
	m := &fakeModel{}
	a := New("scout",
		WithModel(m),
		WithInstruction("answer briefly"),
		WithDescription("research agent"),
		WithTools(newLookupTool()),
	)
	inv := &agent.Invocation{InvocationID: "inv-1", Message: model.NewUserMessage("capital of france?")}
	ch, err := a.Run(context.Background(), inv)
	require.NoError(t, err)
	events := drain(ch)

	require.Len(t, events, 3)
	assert.Equal(t, "scout", inv.AgentName)
	assert.Equal(t, "scout", events[2].Author)
	assert.Equal(t, "answer: capital=paris", events[2].Content())
	require.Len(t, m.requests, 2)
	assert.Equal(t, "answer briefly", m.requests[0].Messages[0].Content)
	assert.Contains(t, m.requests[0].Tools, "lookup")
}

func TestLLMAgent_ToolSetsResolvedPerRun(t *testing.T) {
	ts := &staticToolSet{tools: []tool.Tool{newLookupTool()}}
	a := New("scout", WithModel(&fakeModel{}), WithToolSets(ts))

	for i := 0; i < 2; i++ {
		ch, err := a.Run(context.Background(), &agent.Invocation{Message: model.NewUserMessage("q")})
		require.NoError(t, err)
		drain(ch)
	}
	assert.Equal(t, 2, ts.calls)
	assert.Equal(t, []string{"lookup"}, tool.Names(a.Tools()))
	assert.False(t, ts.closed)
}

func TestLLMAgent_MaxSteps(t *testing.T) {
	// Without the tool the model keeps asking for it.
	a := New("scout", WithModel(&fakeModel{}), WithMaxSteps(1))
	ch, err := a.Run(context.Background(), &agent.Invocation{Message: model.NewUserMessage("q")})
	require.NoError(t, err)
	events := drain(ch)
	last := events[len(events)-1]
	require.NotNil(t, last.Error)
	assert.Equal(t, model.ErrorTypeFlowError, last.Error.Type)
}

func TestLLMAgent_Info(t *testing.T) {
	a := New("scout", WithDescription("d"), WithParallelTools(true), WithChannelBufferSize(4),
		WithGenerationConfig(model.GenerationConfig{Stream: true}))
	assert.Equal(t, agent.Info{Name: "scout", Description: "d"}, a.Info())
	assert.Empty(t, a.Tools())
	assert.True(t, a.options.EnableParallelTools)
	assert.True(t, a.options.GenerationConfig.Stream)

	_, err := a.Run(context.Background(), nil)
	assert.Error(t, err)
}
