//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/model"
)

func TestInvocationContext(t *testing.T) {
	_, ok := InvocationFromContext(context.Background())
	assert.False(t, ok)

	inv := &Invocation{AgentName: "scout", InvocationID: "inv-1", ThreadID: "t"}
	ctx := NewInvocationContext(context.Background(), inv)
	got, ok := InvocationFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, inv, got)
}

func TestNewRunOptions(t *testing.T) {
	assert.False(t, NewRunOptions().Stream)
	assert.True(t, NewRunOptions(WithStream(true)).Stream)
	assert.False(t, NewRunOptions(WithStream(true), WithStream(false)).Stream)
}

func TestInvocation_Conversation(t *testing.T) {
	inv := &Invocation{
		Messages: []model.Message{model.NewUserMessage("hi"), model.NewAssistantMessage("hello")},
		Message:  model.NewUserMessage("weather?"),
		Produced: []model.Message{model.NewAssistantMessage("sunny")},
	}
	got := inv.Conversation()
	require.Len(t, got, 4)
	assert.Equal(t, "weather?", got[2].Content)
	assert.Equal(t, "sunny", got[3].Content)

	empty := &Invocation{}
	assert.Empty(t, empty.Conversation())
}

func TestEmitEvent(t *testing.T) {
	ch := make(chan *event.Event, 1)
	require.NoError(t, EmitEvent(context.Background(), ch, nil))
	assert.Len(t, ch, 0)

	e := event.New("inv", "scout")
	require.NoError(t, EmitEvent(context.Background(), ch, e))
	assert.Same(t, e, <-ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked := make(chan *event.Event)
	assert.ErrorIs(t, EmitEvent(ctx, blocked, e), context.Canceled)
}
