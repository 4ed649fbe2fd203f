//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTool string

func (n namedTool) Declaration() *Declaration {
	return &Declaration{Name: string(n)}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{}, Names(nil))
	assert.Equal(t, []string{"a", "b"}, Names([]Tool{namedTool("a"), namedTool("b")}))
}

func TestSchema_JSON(t *testing.T) {
	s := &Schema{
		Type:     "object",
		Required: []string{"query"},
		Properties: map[string]*Schema{
			"query": {Type: "string", Description: "what to look for"},
			"depth": {Type: "string", Enum: []any{"basic", "advanced"}},
		},
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "object", m["type"])
	assert.NotContains(t, m, "items")
	props := m["properties"].(map[string]any)
	assert.Equal(t, []any{"basic", "advanced"}, props["depth"].(map[string]any)["enum"])
}
