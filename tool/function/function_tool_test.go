//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	A    int    `json:"a" jsonschema:"description=First operand"`
	B    int    `json:"b" jsonschema:"description=Second operand"`
	Note string `json:"note,omitempty"`
}

type addOutput struct {
	Sum int `json:"sum"`
}

func add(_ context.Context, in addInput) (addOutput, error) {
	return addOutput{Sum: in.A + in.B}, nil
}

func TestFunctionTool_Call(t *testing.T) {
	ft := NewFunctionTool(add, WithName("add"), WithDescription("adds numbers"))

	res, err := ft.Call(context.Background(), []byte(`{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.Equal(t, addOutput{Sum: 5}, res)

	res, err = ft.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, addOutput{}, res)
}

func TestFunctionTool_Call_BadJSON(t *testing.T) {
	ft := NewFunctionTool(add, WithName("add"))
	_, err := ft.Call(context.Background(), []byte(`{"a":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add")
}

func TestFunctionTool_Call_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	ft := NewFunctionTool(func(context.Context, addInput) (addOutput, error) {
		return addOutput{}, boom
	}, WithName("fail"))
	_, err := ft.Call(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_Call_NilFunc(t *testing.T) {
	ft := NewFunctionTool[addInput, addOutput](nil, WithName("nil"))
	_, err := ft.Call(context.Background(), nil)
	assert.Error(t, err)
}

func TestFunctionTool_Declaration(t *testing.T) {
	ft := NewFunctionTool(add, WithName("add"), WithDescription("adds numbers"))
	decl := ft.Declaration()

	assert.Equal(t, "add", decl.Name)
	assert.Equal(t, "adds numbers", decl.Description)
	require.NotNil(t, decl.InputSchema)
	assert.Equal(t, "object", decl.InputSchema.Type)
	require.Contains(t, decl.InputSchema.Properties, "a")
	assert.Equal(t, "integer", decl.InputSchema.Properties["a"].Type)
	assert.Equal(t, "First operand", decl.InputSchema.Properties["a"].Description)
	assert.ElementsMatch(t, []string{"a", "b"}, decl.InputSchema.Required)
	assert.Equal(t, false, decl.InputSchema.AdditionalProperties)

	require.NotNil(t, decl.OutputSchema)
	assert.Contains(t, decl.OutputSchema.Properties, "sum")
}

func TestGenerateSchema_NonStruct(t *testing.T) {
	ft := NewFunctionTool(func(_ context.Context, s string) (string, error) { return s, nil })
	assert.Equal(t, "string", ft.Declaration().InputSchema.Type)
}
