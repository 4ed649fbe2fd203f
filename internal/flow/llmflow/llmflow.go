//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package llmflow provides an LLM-based flow implementation.
package llmflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/internal/flow"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

const (
	defaultChannelBufferSize = 256
	// DefaultMaxSteps bounds the number of model calls in one run.
	DefaultMaxSteps = 25
)

// ErrMaxStepsExceeded is the message of the error event emitted when the
// step limit is reached.
const ErrMaxStepsExceeded = "max steps exceeded"

// ErrNoChoices is the message of the error event emitted when the model
// finished a reply without any choice.
const ErrNoChoices = "model returned no choices"

// Options contains configuration options for creating a Flow.
type Options struct {
	ChannelBufferSize int // Buffer size for event channels (default: 256)
	MaxSteps          int // Model calls allowed per run (default: 25)
}

// Flow provides the basic flow implementation.
type Flow struct {
	requestProcessors  []flow.RequestProcessor
	responseProcessors []flow.ResponseProcessor
	channelBufferSize  int
	maxSteps           int
}

// New creates a new basic flow instance with the provided processors.
// Processors are immutable after creation.
func New(
	requestProcessors []flow.RequestProcessor,
	responseProcessors []flow.ResponseProcessor,
	opts Options,
) *Flow {
	channelBufferSize := opts.ChannelBufferSize
	if channelBufferSize <= 0 {
		channelBufferSize = defaultChannelBufferSize
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Flow{
		requestProcessors:  requestProcessors,
		responseProcessors: responseProcessors,
		channelBufferSize:  channelBufferSize,
		maxSteps:           maxSteps,
	}
}

// Run executes the flow in a loop until completion.
func (f *Flow) Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	if invocation == nil {
		return nil, errors.New("invocation cannot be nil")
	}
	eventChan := make(chan *event.Event, f.channelBufferSize)

	go func() {
		defer close(eventChan)

		for step := 0; ; step++ {
			if step >= f.maxSteps {
				log.Warnf("agent %s reached the limit of %d steps", invocation.AgentName, f.maxSteps)
				agent.EmitEvent(ctx, eventChan, event.NewErrorEvent(
					invocation.InvocationID,
					invocation.AgentName,
					model.ErrorTypeFlowError,
					ErrMaxStepsExceeded,
				))
				return
			}

			lastEvent, err := f.runOneStep(ctx, invocation, step, eventChan)
			if err != nil {
				// Cancellation ends the run quietly.
				if errors.Is(err, context.Canceled) {
					log.Debugf("flow context canceled for agent %s; exiting without error", invocation.AgentName)
					return
				}
				log.Errorf("flow step failed for agent %s: %v", invocation.AgentName, err)
				agent.EmitEvent(ctx, eventChan, event.NewErrorEvent(
					invocation.InvocationID,
					invocation.AgentName,
					model.ErrorTypeFlowError,
					err.Error(),
				))
				return
			}

			if lastEvent == nil || invocation.EndInvocation || lastEvent.IsFinalResponse() {
				return
			}
		}
	}()

	return eventChan, nil
}

// runOneStep executes one step of the flow (one LLM call cycle).
// Returns the last event generated, or nil if no events.
func (f *Flow) runOneStep(
	ctx context.Context,
	invocation *agent.Invocation,
	step int,
	eventChan chan<- *event.Event,
) (*event.Event, error) {
	llmRequest := &model.Request{
		Tools: make(map[string]tool.Tool),
	}
	f.preprocess(ctx, invocation, llmRequest, eventChan)
	if invocation.EndInvocation {
		return nil, nil
	}

	modelName := ""
	if invocation.Model != nil {
		modelName = invocation.Model.Info().Name
	}
	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("chat %s", modelName),
		oteltrace.WithAttributes(
			trace.KeyInvocationID.String(invocation.InvocationID),
			trace.KeyThreadID.String(invocation.ThreadID),
			trace.KeyAgentName.String(invocation.AgentName),
			trace.KeyModelName.String(modelName),
			attribute.Int("scout.step", step),
		))
	defer span.End()

	req := &modelRequest{name: modelName, start: time.Now()}
	responseChan, err := f.callLLM(ctx, invocation, llmRequest)
	if err != nil {
		req.finish(ctx, true)
		span.RecordError(err)
		return nil, err
	}
	return f.processResponses(ctx, invocation, llmRequest, req, responseChan, eventChan)
}

// modelRequest measures one model request until its reply is complete.
type modelRequest struct {
	name     string
	start    time.Time
	recorded bool
}

func (r *modelRequest) finish(ctx context.Context, failed bool) {
	if r.recorded {
		return
	}
	r.recorded = true
	metric.RecordModelRequest(ctx, r.name, time.Since(r.start), failed)
}

func (f *Flow) processResponses(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	req *modelRequest,
	responseChan <-chan *model.Response,
	eventChan chan<- *event.Event,
) (*event.Event, error) {
	// A stream that ends without a complete reply counts as failed.
	defer req.finish(ctx, true)
	var lastEvent *event.Event
	for response := range responseChan {
		if response == nil {
			continue
		}
		llmResponseEvent := event.NewResponseEvent(invocation.InvocationID, invocation.AgentName, response)
		if err := agent.EmitEvent(ctx, eventChan, llmResponseEvent); err != nil {
			return lastEvent, err
		}
		lastEvent = llmResponseEvent
		if !response.IsPartial || response.Error != nil {
			req.finish(ctx, response.Error != nil || len(response.Choices) == 0)
		}
		if response.Error != nil {
			// Error responses end the run; the event is already out.
			invocation.EndInvocation = true
			continue
		}
		if !response.IsPartial && response.Done && len(response.Choices) == 0 {
			return lastEvent, errors.New(ErrNoChoices)
		}
		if !response.IsPartial && len(response.Choices) > 0 {
			invocation.Produced = append(invocation.Produced, response.Choices[0].Message.Clone())
		}
		f.postprocess(ctx, invocation, llmRequest, response, eventChan)
		if err := ctx.Err(); err != nil {
			return lastEvent, err
		}
	}
	return lastEvent, nil
}

// preprocess handles pre-LLM call preparation using request processors.
func (f *Flow) preprocess(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	eventChan chan<- *event.Event,
) {
	for _, processor := range f.requestProcessors {
		processor.ProcessRequest(ctx, invocation, llmRequest, eventChan)
	}
}

func (f *Flow) callLLM(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
) (<-chan *model.Response, error) {
	if invocation.Model == nil {
		return nil, errors.New("no model available for LLM call")
	}
	log.Debugf("calling LLM for agent %s with %d messages", invocation.AgentName, len(llmRequest.Messages))
	responseChan, err := invocation.Model.GenerateContent(ctx, llmRequest)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return responseChan, nil
}

// postprocess handles post-LLM call processing using response processors.
func (f *Flow) postprocess(
	ctx context.Context,
	invocation *agent.Invocation,
	llmRequest *model.Request,
	llmResponse *model.Response,
	eventChan chan<- *event.Event,
) {
	for _, processor := range f.responseProcessors {
		processor.ProcessResponse(ctx, invocation, llmRequest, llmResponse, eventChan)
	}
}
