//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	openaisdk "github.com/openai/openai-go"
	mcpsdk "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-agent-scout/agent/llmagent"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint/sqlite"
	"trpc.group/trpc-go/trpc-agent-scout/config"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/model/openai"
	"trpc.group/trpc-go/trpc-agent-scout/runner"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
	"trpc.group/trpc-go/trpc-agent-scout/tool/mcp"
	"trpc.group/trpc-go/trpc-agent-scout/tool/tavily"
)

const appName = "scout"

// app holds everything a command needs to talk to the agent.
type app struct {
	runner runner.Runner
	saver  checkpoint.Saver
	tools  []tool.Tool

	closers []func() error
}

// newApp validates cfg for req and wires the model, tools, agent, saver and runner.
func newApp(ctx context.Context, cfg *config.Config, req config.Requirements) (*app, error) {
	if err := cfg.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{}
	if cfg.Telemetry.Enabled {
		clean, err := startTracing(ctx, cfg.Telemetry)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, clean)
		cleanMetrics, err := startMetrics(ctx, cfg.Telemetry)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, cleanMetrics)
	}

	tools, closeTools, err := buildTools(ctx, cfg, req)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tools = tools
	a.closers = append(a.closers, closeTools)

	saver, err := openSaver(ctx, cfg.Checkpoint)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.saver = saver
	a.closers = append(a.closers, saver.Close)

	ag := llmagent.New(
		cfg.Agent.Name,
		llmagent.WithModel(newModel(cfg.Model)),
		llmagent.WithDescription("A research assistant with web search and database tools."),
		llmagent.WithInstruction(cfg.Agent.Instruction),
		llmagent.WithGenerationConfig(model.GenerationConfig{
			MaxTokens:   cfg.Model.MaxTokens,
			Temperature: cfg.Model.Temperature,
		}),
		llmagent.WithTools(tools...),
		llmagent.WithMaxSteps(cfg.Agent.MaxSteps),
		llmagent.WithParallelTools(cfg.Agent.ParallelTools),
	)
	a.runner = runner.NewRunner(appName, ag, runner.WithCheckpointSaver(saver))
	log.Infof("agent %s ready with model %s and tools %v", cfg.Agent.Name, cfg.Model.Name, tool.Names(tools))
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newModel(mc config.ModelConfig) model.Model {
	return openai.New(mc.Name, modelOptions(mc, log.Level() == log.LevelDebug)...)
}

func modelOptions(mc config.ModelConfig, debug bool) []openai.Option {
	opts := []openai.Option{openai.WithAPIKey(mc.APIKey)}
	if mc.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(mc.BaseURL))
	}
	if debug {
		opts = append(opts, chatDebugCallbacks()...)
	}
	return opts
}

// chatDebugCallbacks log every chat request, response and finished stream.
func chatDebugCallbacks() []openai.Option {
	return []openai.Option{
		openai.WithChatRequestCallback(func(ctx context.Context, req *openaisdk.ChatCompletionNewParams) {
			log.Debugf("chat request to %s: %d messages, %d tools", req.Model, len(req.Messages), len(req.Tools))
		}),
		openai.WithChatResponseCallback(func(ctx context.Context, req *openaisdk.ChatCompletionNewParams,
			rsp *openaisdk.ChatCompletion) {
			log.Debugf("chat response %s: %d choices, %d tokens", rsp.ID, len(rsp.Choices), rsp.Usage.TotalTokens)
		}),
		openai.WithChatChunkCallback(func(ctx context.Context, req *openaisdk.ChatCompletionNewParams,
			chunk *openaisdk.ChatCompletionChunk) {
			for _, choice := range chunk.Choices {
				if choice.FinishReason != "" {
					log.Debugf("chat stream %s finished: %s", chunk.ID, choice.FinishReason)
				}
			}
		}),
	}
}

// buildTools creates the search tool and loads the MCP servers as req asks.
// The returned close func shuts the MCP sessions down.
func buildTools(ctx context.Context, cfg *config.Config, req config.Requirements) ([]tool.Tool, func() error, error) {
	var tools []tool.Tool
	if req.Search {
		tools = append(tools, newSearchTool(cfg.Search))
	}
	if !req.Database {
		return tools, func() error { return nil }, nil
	}

	// MCP client logs go through scout's logger and level.
	toolSet, mcpTools, err := mcp.LoadTools(ctx, cfg.ResolvedMCPServers(),
		mcp.WithMCPOptions(mcpsdk.WithClientLogger(log.Default)))
	if err != nil {
		return nil, nil, fmt.Errorf("load MCP tools: %w", err)
	}
	log.Infof("loaded %d tools from MCP servers %v", len(mcpTools), toolSet.Servers())
	return append(tools, mcpTools...), toolSet.Close, nil
}

func newSearchTool(sc config.SearchConfig) tool.Tool {
	opts := []tavily.Option{
		tavily.WithAPIKey(sc.APIKey),
		tavily.WithMaxResults(sc.MaxResults),
		tavily.WithTimeout(sc.Timeout),
		tavily.WithUserAgent(appName + "/" + version),
	}
	if sc.BaseURL != "" {
		opts = append(opts, tavily.WithBaseURL(sc.BaseURL))
	}
	if sc.SearchDepth != "" {
		opts = append(opts, tavily.WithSearchDepth(sc.SearchDepth))
	}
	if sc.Topic != "" {
		opts = append(opts, tavily.WithTopic(sc.Topic))
	}
	if len(sc.IncludeDomains) > 0 {
		opts = append(opts, tavily.WithIncludeDomains(sc.IncludeDomains...))
	}
	if len(sc.ExcludeDomains) > 0 {
		opts = append(opts, tavily.WithExcludeDomains(sc.ExcludeDomains...))
	}
	return tavily.NewTool(opts...)
}

// openSaver opens the checkpoint store named by cc.
func openSaver(ctx context.Context, cc config.CheckpointConfig) (checkpoint.Saver, error) {
	switch cc.Driver {
	case config.CheckpointSQLite:
		var opts []sqlite.Option
		if cc.MaxPerThread != 0 {
			opts = append(opts, sqlite.WithMaxCheckpointsPerThread(cc.MaxPerThread))
		}
		saver, err := sqlite.Open(ctx, cc.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store %s: %w", cc.Path, err)
		}
		return saver, nil
	case config.CheckpointMemory, "":
		var opts []inmemory.Option
		if cc.MaxPerThread != 0 {
			opts = append(opts, inmemory.WithMaxCheckpointsPerThread(cc.MaxPerThread))
		}
		return inmemory.NewSaver(opts...), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cc.Driver)
	}
}

func startTracing(ctx context.Context, tc config.TelemetryConfig) (func() error, error) {
	opts := []trace.Option{trace.WithProtocol(tc.Protocol)}
	if tc.Endpoint != "" {
		opts = append(opts, trace.WithEndpoint(tc.Endpoint))
	}
	if tc.ServiceName != "" {
		opts = append(opts, trace.WithServiceName(tc.ServiceName))
	}
	if len(tc.Headers) > 0 {
		opts = append(opts, trace.WithHeaders(tc.Headers))
	}
	clean, err := trace.Start(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("start tracing: %w", err)
	}
	log.Infof("tracing enabled (%s)", tc.Protocol)
	return clean, nil
}

func startMetrics(ctx context.Context, tc config.TelemetryConfig) (func() error, error) {
	opts := []metric.Option{metric.WithProtocol(tc.Protocol)}
	if tc.Endpoint != "" {
		opts = append(opts, metric.WithEndpoint(tc.Endpoint))
	}
	if tc.ServiceName != "" {
		opts = append(opts, metric.WithServiceName(tc.ServiceName))
	}
	if len(tc.Headers) > 0 {
		opts = append(opts, metric.WithHeaders(tc.Headers))
	}
	clean, err := metric.Start(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("start metrics: %w", err)
	}
	log.Infof("metrics enabled (%s)", tc.Protocol)
	return clean, nil
}

// signalContext is cancelled on interrupt so a running prompt stops cleanly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
