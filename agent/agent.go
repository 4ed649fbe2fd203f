//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package agent provides the core agent functionality.
package agent

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

// ErrorTypeAgentContextCancelledError is the error type for context cancelled error.
const ErrorTypeAgentContextCancelledError = "agent_context_cancelled_error"

// Info contains basic information about an agent.
type Info struct {
	Name        string
	Description string
}

// Agent is the interface that all agents must implement.
type Agent interface {
	// Run executes the provided invocation within the given context and returns
	// a channel of events that represent the progress and results of the execution.
	// The channel is closed when the run ends.
	Run(ctx context.Context, invocation *Invocation) (<-chan *event.Event, error)

	// Tools returns the tools the agent may call.
	Tools() []tool.Tool

	// Info returns the basic information about this agent.
	Info() Info
}
