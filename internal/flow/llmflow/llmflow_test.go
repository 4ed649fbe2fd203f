//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package llmflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/internal/flow"
	"trpc.group/trpc-go/trpc-agent-scout/internal/flow/processor"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/metric/metrictest"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

// scriptedModel replies with the next scripted batch of responses per call.
type scriptedModel struct {
	mu       sync.Mutex
	script   [][]*model.Response
	requests []*model.Request
	err      error
}

func (m *scriptedModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.requests = append(m.requests, req)
	var batch []*model.Response
	if len(m.script) > 0 {
		batch, m.script = m.script[0], m.script[1:]
	}
	ch := make(chan *model.Response, len(batch))
	for _, r := range batch {
		ch <- r
	}
	close(ch)
	return ch, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

type weatherTool struct{}

func (weatherTool) Declaration() *tool.Declaration {
	return &tool.Declaration{Name: "weather", InputSchema: &tool.Schema{Type: "object"}}
}

func (weatherTool) Call(context.Context, []byte) (any, error) { return "sunny", nil }

func answer(content string) *model.Response {
	return &model.Response{
		Done:    true,
		Object:  model.ObjectTypeChatCompletion,
		Choices: []model.Choice{{Message: model.NewAssistantMessage(content)}},
	}
}

func callWeather(id string) *model.Response {
	return &model.Response{
		Done:   true,
		Object: model.ObjectTypeChatCompletion,
		Choices: []model.Choice{{Message: model.Message{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{{
				Type:     "function",
				ID:       id,
				Function: model.FunctionDefinitionParam{Name: "weather", Arguments: []byte(`{}`)},
			}},
		}}},
	}
}

func newTestFlow(opts Options) *Flow {
	return New(
		[]flow.RequestProcessor{
			processor.NewInstructionRequestProcessor("you are scout"),
			processor.NewContentRequestProcessor(),
			processor.NewToolsRequestProcessor([]tool.Tool{weatherTool{}}),
		},
		[]flow.ResponseProcessor{processor.NewFunctionCallResponseProcessor(false)},
		opts,
	)
}

func collect(t *testing.T, f *Flow, inv *agent.Invocation) []*event.Event {
	t.Helper()
	ch, err := f.Run(context.Background(), inv)
	require.NoError(t, err)
	var events []*event.Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

func TestFlow_ToolLoop(t *testing.T) {
	m := &scriptedModel{script: [][]*model.Response{
		{callWeather("call-1")},
		{answer("It is sunny.")},
	}}
	inv := &agent.Invocation{
		AgentName:    "scout",
		InvocationID: "inv-1",
		Model:        m,
		Message:      model.NewUserMessage("weather in sf?"),
	}
	events := collect(t, newTestFlow(Options{}), inv)

	require.Len(t, events, 3)
	assert.True(t, events[0].IsToolCallResponse())
	assert.Equal(t, model.ObjectTypeToolResponse, events[1].Object)
	assert.Equal(t, "sunny", events[1].Choices[0].Message.Content)
	assert.True(t, events[2].IsFinalResponse())
	assert.Equal(t, "It is sunny.", events[2].Content())

	require.Len(t, m.requests, 2)
	second := m.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, model.RoleSystem, second[0].Role)
	assert.Equal(t, model.RoleUser, second[1].Role)
	assert.Equal(t, "call-1", second[2].ToolCalls[0].ID)
	assert.Equal(t, "call-1", second[3].ToolID)
	assert.Contains(t, m.requests[0].Tools, "weather")

	require.Len(t, inv.Produced, 3)
	assert.Equal(t, "It is sunny.", inv.Produced[2].Content)
}

func TestFlow_MaxSteps(t *testing.T) {
	m := &scriptedModel{script: [][]*model.Response{
		{callWeather("a")}, {callWeather("b")}, {callWeather("c")},
	}}
	inv := &agent.Invocation{AgentName: "scout", Model: m, Message: model.NewUserMessage("loop")}
	events := collect(t, newTestFlow(Options{MaxSteps: 2}), inv)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.NotNil(t, last.Error)
	assert.Equal(t, model.ErrorTypeFlowError, last.Error.Type)
	assert.Equal(t, ErrMaxStepsExceeded, last.Error.Message)
	assert.Len(t, m.requests, 2)
}

func TestFlow_ErrorResponseStops(t *testing.T) {
	m := &scriptedModel{script: [][]*model.Response{
		{{Done: true, Error: &model.ResponseError{Type: model.ErrorTypeAPIError, Message: "bad key"}}},
		{answer("never")},
	}}
	inv := &agent.Invocation{AgentName: "scout", Model: m, Message: model.NewUserMessage("hi")}
	events := collect(t, newTestFlow(Options{}), inv)

	require.Len(t, events, 1)
	assert.Equal(t, "bad key", events[0].Error.Message)
	assert.Len(t, m.requests, 1)
	assert.Empty(t, inv.Produced)
}

func TestFlow_StreamingPartials(t *testing.T) {
	partial := &model.Response{
		IsPartial: true,
		Object:    model.ObjectTypeChatCompletionChunk,
		Choices:   []model.Choice{{Delta: model.Message{Role: model.RoleAssistant, Content: "Hel"}}},
	}
	m := &scriptedModel{script: [][]*model.Response{{partial, answer("Hello")}}}
	inv := &agent.Invocation{AgentName: "scout", Model: m, Message: model.NewUserMessage("hi")}
	events := collect(t, newTestFlow(Options{}), inv)

	require.Len(t, events, 2)
	assert.True(t, events[0].IsPartial)
	require.Len(t, inv.Produced, 1)
	assert.Equal(t, "Hello", inv.Produced[0].Content)
}

func TestFlow_SetupFailures(t *testing.T) {
	_, err := newTestFlow(Options{}).Run(context.Background(), nil)
	assert.Error(t, err)

	events := collect(t, newTestFlow(Options{}), &agent.Invocation{AgentName: "scout"})
	require.Len(t, events, 1)
	assert.Equal(t, model.ErrorTypeFlowError, events[0].Error.Type)

	m := &scriptedModel{err: errors.New("dial failed")}
	events = collect(t, newTestFlow(Options{}), &agent.Invocation{AgentName: "scout", Model: m})
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Error.Message, "dial failed")
}

func TestFlow_EmptyModelOutputEnds(t *testing.T) {
	m := &scriptedModel{}
	events := collect(t, newTestFlow(Options{}), &agent.Invocation{AgentName: "scout", Model: m})
	assert.Empty(t, events)
	assert.Len(t, m.requests, 1)
}

func TestFlow_DoneWithoutChoicesEnds(t *testing.T) {
	empty := func() []*model.Response {
		return []*model.Response{{Object: model.ObjectTypeChatCompletion, Done: true}}
	}
	m := &scriptedModel{script: [][]*model.Response{empty(), empty(), empty()}}
	events := collect(t, newTestFlow(Options{}), &agent.Invocation{AgentName: "scout", Model: m})

	assert.Len(t, m.requests, 1)
	require.Len(t, events, 2)
	last := events[1]
	require.NotNil(t, last.Error)
	assert.Equal(t, model.ErrorTypeFlowError, last.Error.Type)
	assert.Equal(t, ErrNoChoices, last.Error.Message)
}

func TestFlow_RecordsModelMetrics(t *testing.T) {
	r := metrictest.Install(t)
	m := &scriptedModel{script: [][]*model.Response{
		{callWeather("call-1")},
		{answer("It is sunny.")},
	}}
	collect(t, newTestFlow(Options{}), &agent.Invocation{AgentName: "scout", Model: m, Message: model.NewUserMessage("sf?")})

	failing := &scriptedModel{script: [][]*model.Response{
		{{Done: true, Error: &model.ResponseError{Type: model.ErrorTypeAPIError, Message: "bad key"}}},
	}}
	collect(t, newTestFlow(Options{}), &agent.Invocation{AgentName: "scout", Model: failing, Message: model.NewUserMessage("hi")})

	scripted := trace.KeyModelName.String("scripted")
	assert.EqualValues(t, 2, r.Sum(metric.NameModelRequests, scripted, metric.KeyStatus.String("ok")))
	assert.EqualValues(t, 1, r.Sum(metric.NameModelRequests, scripted, metric.KeyStatus.String("error")))
	count, _ := r.HistogramCount(metric.NameModelDuration, scripted)
	assert.EqualValues(t, 3, count)
	assert.EqualValues(t, 1, r.Sum(metric.NameToolCalls, trace.KeyToolName.String("weather")))
}
