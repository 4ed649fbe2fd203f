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

// InstructionRequestProcessor puts the agent instruction first in the request
// as a system message.
type InstructionRequestProcessor struct {
	Instruction string
}

// NewInstructionRequestProcessor creates a new InstructionRequestProcessor.
func NewInstructionRequestProcessor(instruction string) *InstructionRequestProcessor {
	return &InstructionRequestProcessor{Instruction: instruction}
}

// ProcessRequest implements flow.RequestProcessor.
func (p *InstructionRequestProcessor) ProcessRequest(
	ctx context.Context, invocation *agent.Invocation, req *model.Request, ch chan<- *event.Event,
) {
	if req == nil || p.Instruction == "" {
		return
	}
	if len(req.Messages) > 0 && req.Messages[0].Role == model.RoleSystem {
		req.Messages[0].Content = p.Instruction + "\n\n" + req.Messages[0].Content
		return
	}
	req.Messages = append([]model.Message{model.NewSystemMessage(p.Instruction)}, req.Messages...)
}
