//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package processor

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/model"
)

// ContentRequestProcessor appends the conversation to the request: restored
// history, the new user message, then everything produced so far this run.
type ContentRequestProcessor struct{}

// NewContentRequestProcessor creates a new ContentRequestProcessor.
func NewContentRequestProcessor() *ContentRequestProcessor {
	return &ContentRequestProcessor{}
}

// ProcessRequest implements flow.RequestProcessor.
func (p *ContentRequestProcessor) ProcessRequest(
	ctx context.Context, invocation *agent.Invocation, req *model.Request, ch chan<- *event.Event,
) {
	if req == nil || invocation == nil {
		return
	}
	req.Messages = append(req.Messages, model.CloneMessages(invocation.Conversation())...)
}
