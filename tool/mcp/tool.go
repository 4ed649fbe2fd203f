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
	"context"
	"encoding/json"
	"fmt"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

// mcpTool proxies a tool served by an MCP server.
type mcpTool struct {
	name           string
	description    string
	inputSchema    *tool.Schema
	sessionManager *mcpSessionManager
}

func newMCPTool(t mcp.Tool, sessionManager *mcpSessionManager) *mcpTool {
	mt := &mcpTool{
		name:           t.Name,
		description:    t.Description,
		sessionManager: sessionManager,
	}
	if t.InputSchema != nil {
		mt.inputSchema = convertMCPSchemaToSchema(t.InputSchema)
	} else {
		mt.inputSchema = &tool.Schema{Type: "object"}
	}
	return mt
}

// Call forwards the arguments to tools/call and returns the text the server
// answered with. A result flagged as an error is returned as a Go error.
func (t *mcpTool) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	arguments := make(map[string]any)
	if len(jsonArgs) > 0 {
		if err := json.Unmarshal(jsonArgs, &arguments); err != nil {
			return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
		}
	}

	result, err := t.sessionManager.callTool(ctx, t.name, arguments)
	if err != nil {
		return nil, err
	}
	text := contentText(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("tool %s reported an error: %s", t.name, text)
	}
	return text, nil
}

// Declaration implements the Tool interface.
func (t *mcpTool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.inputSchema,
	}
}
