//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package checkpointtest holds the behavior every checkpoint.Saver must show.
package checkpointtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
	"trpc.group/trpc-go/trpc-agent-scout/model"
)

// Run exercises a saver created by newSaver. Each subtest gets a fresh saver.
func Run(t *testing.T, newSaver func(t *testing.T) checkpoint.Saver) {
	t.Run("EmptyThread", func(t *testing.T) { testEmptyThread(t, newSaver(t)) })
	t.Run("PutAndGet", func(t *testing.T) { testPutAndGet(t, newSaver(t)) })
	t.Run("ParentChain", func(t *testing.T) { testParentChain(t, newSaver(t)) })
	t.Run("DuplicateID", func(t *testing.T) { testDuplicateID(t, newSaver(t)) })
	t.Run("ListAndDelete", func(t *testing.T) { testListAndDelete(t, newSaver(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, newSaver(t)) })
	t.Run("Concurrent", func(t *testing.T) { testConcurrent(t, newSaver(t)) })
}

func conversation(turns ...string) []model.Message {
	var msgs []model.Message
	for _, turn := range turns {
		msgs = append(msgs, model.NewUserMessage(turn), model.NewAssistantMessage("re: "+turn))
	}
	return msgs
}

func testEmptyThread(t *testing.T, s checkpoint.Saver) {
	ctx := context.Background()
	cp, err := s.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, cp)

	cp, err = s.GetByID(ctx, "nobody", "x")
	require.NoError(t, err)
	assert.Nil(t, cp)

	list, err := s.List(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, checkpoint.ErrThreadIDRequired)
	assert.ErrorIs(t, s.Put(ctx, &checkpoint.Checkpoint{}), checkpoint.ErrThreadIDRequired)
	assert.ErrorIs(t, s.Delete(ctx, ""), checkpoint.ErrThreadIDRequired)
	assert.NoError(t, s.Delete(ctx, "nobody"))
}

func testPutAndGet(t *testing.T, s checkpoint.Saver) {
	ctx := context.Background()
	msgs := conversation("hello")
	msgs[1].ToolCalls = []model.ToolCall{{
		Type: "function", ID: "call-1",
		Function: model.FunctionDefinitionParam{Name: "tavily_search", Arguments: []byte(`{"query":"q"}`)},
	}}
	cp := checkpoint.New("t1", msgs, checkpoint.Metadata{Source: checkpoint.SourceRunner, AgentName: "scout"})
	require.NoError(t, s.Put(ctx, cp))
	require.NotEmpty(t, cp.ID)

	// Mutating the caller's copy must not leak into the store.
	cp.Messages[0].Content = "changed"

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cp.ID, got.ID)
	assert.Equal(t, "t1", got.ThreadID)
	assert.Equal(t, 1, got.Metadata.Step)
	assert.Equal(t, "scout", got.Metadata.AgentName)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Equal(t, `{"query":"q"}`, string(got.Messages[1].ToolCalls[0].Function.Arguments))

	got.Messages[0].Content = "mutated"
	again, err := s.GetByID(ctx, "t1", cp.ID)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "hello", again.Messages[0].Content)
}

func testParentChain(t *testing.T, s checkpoint.Saver) {
	ctx := context.Background()
	var ids []string
	for i := 1; i <= 3; i++ {
		turns := make([]string, i)
		for j := range turns {
			turns[j] = fmt.Sprintf("turn %d", j+1)
		}
		cp := checkpoint.New("chain", conversation(turns...), checkpoint.Metadata{Source: checkpoint.SourceRunner})
		require.NoError(t, s.Put(ctx, cp))
		ids = append(ids, cp.ID)
	}

	latest, err := s.Get(ctx, "chain")
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
	assert.Equal(t, ids[1], latest.ParentID)
	assert.Equal(t, 3, latest.Metadata.Step)
	assert.Len(t, latest.Messages, 6)

	first, err := s.GetByID(ctx, "chain", ids[0])
	require.NoError(t, err)
	assert.Empty(t, first.ParentID)
}

func testDuplicateID(t *testing.T, s checkpoint.Saver) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, &checkpoint.Checkpoint{ThreadID: "d", ID: "same"}))
	dup := &checkpoint.Checkpoint{ThreadID: "d", ID: "same"}
	err := s.Put(ctx, dup)
	assert.ErrorIs(t, err, checkpoint.ErrDuplicateID)
	// A rejected checkpoint keeps its caller's values.
	assert.Empty(t, dup.ParentID)
	assert.Zero(t, dup.Metadata.Step)
	assert.True(t, dup.CreatedAt.IsZero())
	// The same ID in another thread is fine.
	assert.NoError(t, s.Put(ctx, &checkpoint.Checkpoint{ThreadID: "other", ID: "same"}))
}

func testListAndDelete(t *testing.T, s checkpoint.Saver) {
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Put(ctx, checkpoint.New("l", conversation(fmt.Sprint(i)), checkpoint.Metadata{})))
	}
	all, err := s.List(ctx, "l", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 4, all[0].Metadata.Step)
	assert.Equal(t, 1, all[3].Metadata.Step)

	two, err := s.List(ctx, "l", 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, all[0].ID, two[0].ID)

	require.NoError(t, s.Delete(ctx, "l"))
	cp, err := s.Get(ctx, "l")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func testIsolation(t *testing.T, s checkpoint.Saver) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, checkpoint.New("b", conversation("bee"), checkpoint.Metadata{})))
	require.NoError(t, s.Put(ctx, checkpoint.New("a", conversation("ay"), checkpoint.Metadata{})))

	threads, err := s.Threads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, threads)

	a, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "ay", a.Messages[0].Content)
	assert.Empty(t, a.ParentID)
}

func testConcurrent(t *testing.T, s checkpoint.Saver) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thread := fmt.Sprintf("c%d", i%2)
			assert.NoError(t, s.Put(ctx, checkpoint.New(thread, conversation("x"), checkpoint.Metadata{})))
		}(i)
	}
	wg.Wait()
	for _, thread := range []string{"c0", "c1"} {
		list, err := s.List(ctx, thread, 0)
		require.NoError(t, err)
		assert.Len(t, list, 4)
	}
}
