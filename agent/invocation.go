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
	"trpc.group/trpc-go/trpc-agent-scout/model"
)

// Invocation represents the context for a flow execution.
type Invocation struct {
	// AgentName is the name of the agent that is being invoked.
	AgentName string
	// InvocationID is the ID of the invocation.
	InvocationID string
	// ThreadID is the conversation thread the invocation belongs to.
	ThreadID string
	// EndInvocation is set to stop the flow before its next model call.
	EndInvocation bool
	// Model is the model that is being used for the invocation.
	Model model.Model
	// Messages is the conversation history restored for the thread.
	Messages []model.Message
	// Message is the message that is being sent to the agent.
	Message model.Message
	// Produced collects the assistant and tool messages of this run, in order.
	Produced []model.Message
	// RunOptions is the options for the Run method.
	RunOptions RunOptions
}

// Conversation returns history, the new message and the produced messages
// as one slice, in that order.
func (inv *Invocation) Conversation() []model.Message {
	msgs := make([]model.Message, 0, len(inv.Messages)+1+len(inv.Produced))
	msgs = append(msgs, inv.Messages...)
	if inv.Message.Role != "" {
		msgs = append(msgs, inv.Message)
	}
	return append(msgs, inv.Produced...)
}

// RunOption is a function that configures a RunOptions.
type RunOption func(*RunOptions)

// RunOptions is the options for the Run method.
type RunOptions struct {
	// Stream asks the model for incremental output for this run only.
	Stream bool
}

// WithStream enables streaming for a single run.
func WithStream(stream bool) RunOption {
	return func(opts *RunOptions) {
		opts.Stream = stream
	}
}

// NewRunOptions applies opts to a zero RunOptions.
func NewRunOptions(opts ...RunOption) RunOptions {
	var ro RunOptions
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}
