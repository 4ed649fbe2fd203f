//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import "context"

// ToolSet is a group of tools discovered at run time, such as the tools of
// an MCP server. The agent asks for the tools again on every run.
type ToolSet interface {
	// Tools lists the tools currently offered by the set.
	Tools(ctx context.Context) []Tool

	// Close releases connections held by the set.
	Close() error

	// Name identifies the set in logs.
	Name() string
}
