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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

const (
	// ErrorToolNotFound is the error message for tool not found.
	ErrorToolNotFound = "Error: tool not found"
	// ErrorToolExecution prefixes the message of a failed tool call.
	ErrorToolExecution = "Error: tool execution failed"
	// ErrorMarshalResult is the error message for failed to marshal result.
	ErrorMarshalResult = "Error: failed to marshal result"
)

// FunctionCallResponseProcessor runs the tool calls of a complete model
// response and emits their results as a single tool.response event.
type FunctionCallResponseProcessor struct {
	enableParallelTools bool
}

// NewFunctionCallResponseProcessor creates a new FunctionCallResponseProcessor.
func NewFunctionCallResponseProcessor(enableParallelTools bool) *FunctionCallResponseProcessor {
	return &FunctionCallResponseProcessor{enableParallelTools: enableParallelTools}
}

// ProcessResponse implements flow.ResponseProcessor.
func (p *FunctionCallResponseProcessor) ProcessResponse(
	ctx context.Context, invocation *agent.Invocation, req *model.Request,
	rsp *model.Response, ch chan<- *event.Event,
) {
	if invocation == nil || req == nil || rsp == nil || rsp.IsPartial || !rsp.IsToolCallResponse() {
		return
	}
	toolCalls := rsp.Choices[0].Message.ToolCalls
	var choices []model.Choice
	if p.enableParallelTools && len(toolCalls) > 1 {
		var err error
		choices, err = p.executeToolCallsInParallel(ctx, invocation, req.Tools, toolCalls)
		if err != nil {
			log.Errorf("parallel tool execution failed for agent %s: %v", invocation.AgentName, err)
			agent.EmitEvent(ctx, ch, event.NewErrorEvent(
				invocation.InvocationID,
				invocation.AgentName,
				model.ErrorTypeFlowError,
				err.Error(),
			))
			invocation.EndInvocation = true
			return
		}
	} else {
		choices = make([]model.Choice, len(toolCalls))
		for i, tc := range toolCalls {
			choices[i] = p.executeToolCall(ctx, invocation, req.Tools, i, tc)
		}
	}

	for _, c := range choices {
		invocation.Produced = append(invocation.Produced, c.Message)
	}
	agent.EmitEvent(ctx, ch, newToolCallResponseEvent(invocation, rsp, choices))
}

// executeToolCallsInParallel runs every call on an ants pool. Results keep
// the order of toolCalls.
func (p *FunctionCallResponseProcessor) executeToolCallsInParallel(
	ctx context.Context,
	invocation *agent.Invocation,
	tools map[string]tool.Tool,
	toolCalls []model.ToolCall,
) ([]model.Choice, error) {
	pool, err := ants.NewPool(len(toolCalls))
	if err != nil {
		return nil, fmt.Errorf("failed to create tool worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]model.Choice, len(toolCalls))
	var wg sync.WaitGroup
	for i, tc := range toolCalls {
		index, toolCall := i, tc
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("tool execution panic for %s (index: %d, ID: %s, agent: %s): %v",
						toolCall.Function.Name, index, toolCall.ID, invocation.AgentName, r)
					results[index] = newToolChoice(index, toolCall,
						fmt.Sprintf("%s: panic: %v", ErrorToolExecution, r))
				}
			}()
			results[index] = p.executeToolCall(ctx, invocation, tools, index, toolCall)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit tool call %s: %w", toolCall.Function.Name, err)
		}
	}
	wg.Wait()
	return results, nil
}

// executeToolCall runs one call. Failures are reported to the model as the
// content of the tool message rather than ending the run.
func (p *FunctionCallResponseProcessor) executeToolCall(
	ctx context.Context,
	invocation *agent.Invocation,
	tools map[string]tool.Tool,
	index int,
	toolCall model.ToolCall,
) model.Choice {
	t, ok := tools[toolCall.Function.Name]
	if !ok {
		log.Errorf("tool %s not found (agent=%s)", toolCall.Function.Name, invocation.AgentName)
		return newToolChoice(index, toolCall, ErrorToolNotFound)
	}
	callable, ok := t.(tool.CallableTool)
	if !ok {
		log.Errorf("tool %s is not callable (agent=%s)", toolCall.Function.Name, invocation.AgentName)
		return newToolChoice(index, toolCall, ErrorToolNotFound)
	}

	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("execute_tool %s", toolCall.Function.Name),
		oteltrace.WithAttributes(
			trace.KeyInvocationID.String(invocation.InvocationID),
			trace.KeyToolName.String(toolCall.Function.Name),
			trace.KeyToolCallID.String(toolCall.ID),
		))
	defer span.End()

	start := time.Now()
	result, err := callable.Call(ctx, toolCall.Function.Arguments)
	metric.RecordToolCall(ctx, toolCall.Function.Name, time.Since(start), err != nil)
	if err != nil {
		span.RecordError(err)
		log.Errorf("tool %s failed after %s: %v", toolCall.Function.Name, time.Since(start), err)
		return newToolChoice(index, toolCall, fmt.Sprintf("%s: %v", ErrorToolExecution, err))
	}
	log.Debugf("tool %s finished in %s", toolCall.Function.Name, time.Since(start))

	if s, ok := result.(string); ok {
		return newToolChoice(index, toolCall, s)
	}
	b, err := json.Marshal(result)
	if err != nil {
		log.Errorf("failed to marshal tool result for %s: %v", toolCall.Function.Name, err)
		return newToolChoice(index, toolCall, ErrorMarshalResult)
	}
	return newToolChoice(index, toolCall, string(b))
}

func newToolChoice(index int, toolCall model.ToolCall, content string) model.Choice {
	return model.Choice{
		Index:   index,
		Message: model.NewToolMessage(toolCall.ID, toolCall.Function.Name, content),
	}
}

func newToolCallResponseEvent(
	invocation *agent.Invocation,
	functionCallResponse *model.Response,
	choices []model.Choice,
) *event.Event {
	return event.NewResponseEvent(invocation.InvocationID, invocation.AgentName, &model.Response{
		ID:        functionCallResponse.ID,
		Object:    model.ObjectTypeToolResponse,
		Created:   time.Now().Unix(),
		Model:     functionCallResponse.Model,
		Choices:   choices,
		Timestamp: time.Now(),
	})
}
