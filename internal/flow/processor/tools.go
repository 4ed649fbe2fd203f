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
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

// ToolsRequestProcessor declares the agent's tools on the request.
type ToolsRequestProcessor struct {
	tools []tool.Tool
}

// NewToolsRequestProcessor creates a new ToolsRequestProcessor.
func NewToolsRequestProcessor(tools []tool.Tool) *ToolsRequestProcessor {
	return &ToolsRequestProcessor{tools: tools}
}

// ProcessRequest implements flow.RequestProcessor. When two tools share a
// name the first one wins.
func (p *ToolsRequestProcessor) ProcessRequest(
	ctx context.Context, invocation *agent.Invocation, req *model.Request, ch chan<- *event.Event,
) {
	if req == nil || len(p.tools) == 0 {
		return
	}
	if req.Tools == nil {
		req.Tools = make(map[string]tool.Tool, len(p.tools))
	}
	for _, t := range p.tools {
		name := t.Declaration().Name
		if _, ok := req.Tools[name]; ok {
			log.Warnf("duplicate tool %s ignored", name)
			continue
		}
		req.Tools[name] = t
	}
}
