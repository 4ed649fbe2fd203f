//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mcp "trpc.group/trpc-go/trpc-mcp-go"
)

func TestConvertMCPSchemaToSchema(t *testing.T) {
	in := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "SQL to run"},
			"schemas": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"query"},
	}
	s := convertMCPSchemaToSchema(in)
	require.NotNil(t, s)
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"query"}, s.Required)
	require.Contains(t, s.Properties, "query")
	assert.Equal(t, "SQL to run", s.Properties["query"].Description)
	require.NotNil(t, s.Properties["schemas"].Items)
	assert.Equal(t, "string", s.Properties["schemas"].Items.Type)
}

func TestConvertMCPSchemaToSchema_Fallbacks(t *testing.T) {
	assert.Equal(t, "object", convertMCPSchemaToSchema(map[string]any{}).Type)
	assert.Equal(t, "object", convertMCPSchemaToSchema(map[string]any{"type": []any{"string", "null"}}).Type)
	assert.Equal(t, "object", convertMCPSchemaToSchema(func() {}).Type)
}

func TestContentText(t *testing.T) {
	assert.Equal(t, "", contentText(nil))
	got := contentText([]mcp.Content{
		mcp.NewTextContent("[{\"name\":\"todos\"}]"),
		mcp.NewTextContent("2 rows"),
	})
	assert.Equal(t, "[{\"name\":\"todos\"}]\n2 rows", got)
}

func TestShouldReconnect(t *testing.T) {
	assert.False(t, shouldReconnect(nil))
	assert.True(t, shouldReconnect(errTransportClosed))
	assert.True(t, shouldReconnect(errors.New("read tcp: connection reset by peer")))
	assert.True(t, shouldReconnect(errors.New("unexpected EOF")))
	assert.True(t, shouldReconnect(errors.New("failed to call tool x: HTTP request failed: status code 404")))
	assert.False(t, shouldReconnect(errors.New("invalid params")))
}
