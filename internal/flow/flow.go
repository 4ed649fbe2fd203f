//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package flow provides the core flow functionality interfaces and types.
package flow

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/model"
)

// Flow is the interface that all flows must implement.
type Flow interface {
	// Run executes the flow and yields events as they occur.
	// Returns the event channel and any setup error.
	Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error)
}

// RequestProcessor processes LLM requests before they are sent to the model.
type RequestProcessor interface {
	// ProcessRequest fills in req and may emit events to ch.
	ProcessRequest(ctx context.Context, invocation *agent.Invocation, req *model.Request, ch chan<- *event.Event)
}

// ResponseProcessor processes complete LLM responses.
type ResponseProcessor interface {
	// ProcessResponse handles rsp, which was produced for req, and may emit events to ch.
	ProcessResponse(ctx context.Context, invocation *agent.Invocation, req *model.Request,
		rsp *model.Response, ch chan<- *event.Event)
}
