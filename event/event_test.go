//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/model"
)

func TestNew(t *testing.T) {
	e := New("inv-1", "scout", WithObject(model.ObjectTypeRunnerCompletion))
	assert.Equal(t, "inv-1", e.InvocationID)
	assert.Equal(t, "scout", e.Author)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	require.NotNil(t, e.Response)
	assert.Equal(t, model.ObjectTypeRunnerCompletion, e.Object)

	other := New("inv-1", "scout")
	assert.NotEqual(t, e.ID, other.ID)
}

func TestNewErrorEvent(t *testing.T) {
	e := NewErrorEvent("inv", "scout", model.ErrorTypeFlowError, "max steps exceeded")
	require.NotNil(t, e.Error)
	assert.Equal(t, model.ObjectTypeError, e.Object)
	assert.True(t, e.Done)
	assert.Equal(t, "flow_error: max steps exceeded", e.Error.Error())
	assert.True(t, e.IsFinalResponse())
}

func TestNewResponseEvent(t *testing.T) {
	rsp := &model.Response{
		Done:    true,
		Choices: []model.Choice{{Message: model.NewAssistantMessage("hello")}},
	}
	e := NewResponseEvent("inv", "scout", rsp)
	assert.Same(t, rsp, e.Response)
	assert.Equal(t, "hello", e.Content())
}

func TestClone(t *testing.T) {
	assert.Nil(t, (*Event)(nil).Clone())

	idx := 0
	e := NewResponseEvent("inv", "scout", &model.Response{
		Choices: []model.Choice{{Message: model.Message{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{{
				ID:       "call_1",
				Index:    &idx,
				Function: model.FunctionDefinitionParam{Name: "tavily_search", Arguments: []byte(`{"query":"a"}`)},
			}},
		}}},
	})
	c := e.Clone()
	require.NotSame(t, e.Response, c.Response)
	assert.Equal(t, e.ID, c.ID)

	c.Choices[0].Message.ToolCalls[0].Function.Arguments[2] = 'X'
	*c.Choices[0].Message.ToolCalls[0].Index = 5
	assert.Equal(t, `{"query":"a"}`, string(e.Choices[0].Message.ToolCalls[0].Function.Arguments))
	assert.Equal(t, 0, *e.Choices[0].Message.ToolCalls[0].Index)
}
