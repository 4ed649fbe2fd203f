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
	"encoding/json"
	"strings"

	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

// convertMCPSchemaToSchema maps an MCP input schema onto tool.Schema.
// Anything that cannot be decoded degrades to a bare object schema.
func convertMCPSchemaToSchema(mcpSchema any) *tool.Schema {
	schemaBytes, err := json.Marshal(mcpSchema)
	if err != nil {
		return &tool.Schema{Type: "object"}
	}
	schema := &tool.Schema{}
	if err := json.Unmarshal(schemaBytes, schema); err != nil {
		return &tool.Schema{Type: "object"}
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

// contentText joins the text parts of an MCP result, one per line.
// Non-text parts are skipped.
func contentText(contents []mcp.Content) string {
	var parts []string
	for _, c := range contents {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			if tc != nil {
				parts = append(parts, tc.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}
