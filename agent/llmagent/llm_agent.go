//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package llmagent provides an LLM agent implementation.
package llmagent

import (
	"context"
	"fmt"

	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/internal/flow"
	"trpc.group/trpc-go/trpc-agent-scout/internal/flow/llmflow"
	"trpc.group/trpc-go/trpc-agent-scout/internal/flow/processor"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

const defaultChannelBufferSize = 256

// Option is a function that configures an LLMAgent.
type Option func(*Options)

// WithModel sets the model to use.
func WithModel(model model.Model) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithDescription sets the description of the agent.
func WithDescription(description string) Option {
	return func(opts *Options) {
		opts.Description = description
	}
}

// WithInstruction sets the system instruction sent before the conversation.
func WithInstruction(instruction string) Option {
	return func(opts *Options) {
		opts.Instruction = instruction
	}
}

// WithGenerationConfig sets the generation configuration.
func WithGenerationConfig(config model.GenerationConfig) Option {
	return func(opts *Options) {
		opts.GenerationConfig = config
	}
}

// WithChannelBufferSize sets the buffer size for event channels.
func WithChannelBufferSize(size int) Option {
	return func(opts *Options) {
		opts.ChannelBufferSize = size
	}
}

// WithTools appends tools to the agent.
func WithTools(tools ...tool.Tool) Option {
	return func(opts *Options) {
		opts.Tools = append(opts.Tools, tools...)
	}
}

// WithToolSets appends tool sets whose tools are resolved at the start of
// each run.
func WithToolSets(toolSets ...tool.ToolSet) Option {
	return func(opts *Options) {
		opts.ToolSets = append(opts.ToolSets, toolSets...)
	}
}

// WithMaxSteps limits the number of model calls in one run.
func WithMaxSteps(n int) Option {
	return func(opts *Options) {
		opts.MaxSteps = n
	}
}

// WithParallelTools runs the tool calls of one model response concurrently.
func WithParallelTools(enable bool) Option {
	return func(opts *Options) {
		opts.EnableParallelTools = enable
	}
}

// Options contains configuration options for creating an LLMAgent.
type Options struct {
	Model               model.Model
	Description         string
	Instruction         string
	GenerationConfig    model.GenerationConfig
	ChannelBufferSize   int
	Tools               []tool.Tool
	ToolSets            []tool.ToolSet
	MaxSteps            int
	EnableParallelTools bool
}

// LLMAgent is an agent that asks a model what to do and runs the tools it
// picks until the model answers.
type LLMAgent struct {
	name     string
	model    model.Model
	options  Options
	tools    []tool.Tool
	toolSets []tool.ToolSet
}

// New creates a new LLMAgent with the given options.
func New(name string, opts ...Option) *LLMAgent {
	options := Options{
		ChannelBufferSize: defaultChannelBufferSize,
		MaxSteps:          llmflow.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &LLMAgent{
		name:     name,
		model:    options.Model,
		options:  options,
		tools:    options.Tools,
		toolSets: options.ToolSets,
	}
}

// newFlow assembles the processors for one run with the given tools.
func (a *LLMAgent) newFlow(tools []tool.Tool) *llmflow.Flow {
	requestProcessors := []flow.RequestProcessor{
		processor.NewBasicRequestProcessor(a.options.GenerationConfig),
		processor.NewInstructionRequestProcessor(a.options.Instruction),
		processor.NewContentRequestProcessor(),
		processor.NewToolsRequestProcessor(tools),
	}
	responseProcessors := []flow.ResponseProcessor{
		processor.NewFunctionCallResponseProcessor(a.options.EnableParallelTools),
	}
	return llmflow.New(requestProcessors, responseProcessors, llmflow.Options{
		ChannelBufferSize: a.options.ChannelBufferSize,
		MaxSteps:          a.options.MaxSteps,
	})
}

// Run implements the agent.Agent interface.
// It executes the LLM agent flow and returns a channel of events.
func (a *LLMAgent) Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	if invocation == nil {
		return nil, fmt.Errorf("agent %s: invocation cannot be nil", a.name)
	}
	if invocation.Model == nil {
		invocation.Model = a.model
	}
	if invocation.AgentName == "" {
		invocation.AgentName = a.name
	}
	ctx = agent.NewInvocationContext(ctx, invocation)
	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("agent_run [%s]", a.name),
		oteltrace.WithAttributes(
			trace.KeyAgentName.String(a.name),
			trace.KeyInvocationID.String(invocation.InvocationID),
			trace.KeyThreadID.String(invocation.ThreadID),
		))
	defer span.End()

	return a.newFlow(a.resolveTools(ctx)).Run(ctx, invocation)
}

// resolveTools returns the static tools followed by the current tools of
// every tool set.
func (a *LLMAgent) resolveTools(ctx context.Context) []tool.Tool {
	all := make([]tool.Tool, 0, len(a.tools))
	all = append(all, a.tools...)
	for _, ts := range a.toolSets {
		all = append(all, ts.Tools(ctx)...)
	}
	return all
}

// Info implements the agent.Agent interface.
func (a *LLMAgent) Info() agent.Info {
	return agent.Info{
		Name:        a.name,
		Description: a.options.Description,
	}
}

// Tools implements the agent.Agent interface.
func (a *LLMAgent) Tools() []tool.Tool {
	return a.resolveTools(context.Background())
}
