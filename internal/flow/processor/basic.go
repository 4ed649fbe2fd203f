//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package processor provides the request and response processors used by
// the LLM flow.
package processor

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/model"
)

// BasicRequestProcessor copies the generation config into the request.
// A run that asks for streaming turns it on even when the agent's config
// does not.
type BasicRequestProcessor struct {
	GenerationConfig model.GenerationConfig
}

// NewBasicRequestProcessor creates a new BasicRequestProcessor.
func NewBasicRequestProcessor(cfg model.GenerationConfig) *BasicRequestProcessor {
	return &BasicRequestProcessor{GenerationConfig: cfg}
}

// ProcessRequest implements flow.RequestProcessor.
func (p *BasicRequestProcessor) ProcessRequest(
	ctx context.Context, invocation *agent.Invocation, req *model.Request, ch chan<- *event.Event,
) {
	if req == nil {
		return
	}
	req.GenerationConfig = p.GenerationConfig
	if p.GenerationConfig.Stop != nil {
		req.Stop = append([]string(nil), p.GenerationConfig.Stop...)
	}
	if invocation != nil && invocation.RunOptions.Stream {
		req.Stream = true
	}
}
