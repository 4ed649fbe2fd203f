//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package scenario holds the canned prompt sequences scout can run and the
// loop that sends them to a runner one at a time.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/runner"
)

// Scenario is a fixed list of prompts sent on one thread.
type Scenario struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Prompts     []string `yaml:"prompts" json:"prompts"`
	// Search gives the agent the web search tool.
	Search bool `yaml:"search" json:"search"`
	// Database gives the agent the tools of the configured MCP servers.
	Database bool `yaml:"database" json:"database"`
	// Stream prints answer deltas as they arrive.
	Stream bool `yaml:"stream" json:"stream"`
	// ThreadID is the checkpoint thread; empty means the scenario name.
	ThreadID string `yaml:"thread_id,omitempty" json:"thread_id,omitempty"`
}

// Thread returns the thread the scenario runs on.
func (s Scenario) Thread() string {
	if s.ThreadID != "" {
		return s.ThreadID
	}
	return s.Name
}

// Validate reports a scenario that cannot run.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("scenario name is required")
	}
	if len(s.Prompts) == 0 {
		return fmt.Errorf("scenario %s has no prompts", s.Name)
	}
	for i, p := range s.Prompts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("scenario %s: prompt %d is empty", s.Name, i+1)
		}
	}
	return nil
}

// Builtins returns the scenarios shipped with scout.
func Builtins() []Scenario {
	return []Scenario{
		{
			Name:        "search",
			Description: "Answer a current-events question with web search.",
			Prompts:     []string{"What is the weather in San Francisco right now?"},
			Search:      true,
		},
		{
			Name:        "memory",
			Description: "Two prompts on one thread; the second relies on the first.",
			Prompts: []string{
				"Hi, I'm Bob and I live in San Francisco. What's the weather where I live?",
				"What's my name, and where did I say I live?",
			},
			Search: true,
		},
		{
			Name:        "stream",
			Description: "Stream the answer of a search question as it is generated.",
			Prompts:     []string{"Summarize today's top technology news in three bullet points."},
			Search:      true,
			Stream:      true,
		},
		{
			Name:        "database",
			Description: "Inspect the Supabase project through its MCP server, with web search available.",
			Prompts: []string{
				"List the tables in my Supabase database.",
				"Describe the columns of the largest table you found.",
				"Search the web for best practices to index that table and suggest one index.",
			},
			Search:   true,
			Database: true,
		},
	}
}

// Merge returns base with the scenarios of overrides applied: a scenario
// with a known name replaces it, a new name is appended. The result is
// sorted by name.
func Merge(base, overrides []Scenario) []Scenario {
	byName := make(map[string]Scenario, len(base)+len(overrides))
	for _, s := range base {
		byName[s.Name] = s
	}
	for _, s := range overrides {
		byName[s.Name] = s
	}
	out := make([]Scenario, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find returns the scenario called name.
func Find(scenarios []Scenario, name string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Printer receives the progress of a scenario run.
type Printer interface {
	// Prompt is called before prompt number i (starting at 1) is sent.
	Prompt(i int, text string)
	// Delta is called with streamed answer text.
	Delta(text string)
	// ToolCall is called when the agent asks for a tool.
	ToolCall(name string, args string)
	// Answer is called with the final answer of a prompt.
	Answer(text string)
}

// Run sends the prompts of s to r strictly in order, waiting for each answer
// before sending the next. It stops at the first failed prompt.
func Run(ctx context.Context, r runner.Runner, s Scenario, p Printer) error {
	if err := s.Validate(); err != nil {
		return err
	}
	thread := s.Thread()
	for i, prompt := range s.Prompts {
		p.Prompt(i+1, prompt)
		log.Debugf("scenario %s: sending prompt %d on thread %s", s.Name, i+1, thread)
		ch, err := r.Run(ctx, thread, model.NewUserMessage(prompt), agent.WithStream(s.Stream))
		if err != nil {
			return fmt.Errorf("scenario %s prompt %d: %w", s.Name, i+1, err)
		}
		answer, err := runner.FinalAnswer(ctx, observe(ch, p))
		if err != nil {
			return fmt.Errorf("scenario %s prompt %d: %w", s.Name, i+1, err)
		}
		p.Answer(answer)
	}
	return nil
}

// observe reports deltas and tool calls to p while forwarding every event.
func observe(in <-chan *event.Event, p Printer) <-chan *event.Event {
	out := make(chan *event.Event)
	go func() {
		defer close(out)
		for e := range in {
			if e != nil && e.Response != nil && len(e.Choices) > 0 {
				switch {
				case e.IsPartial:
					if d := e.Choices[0].Delta.Content; d != "" {
						p.Delta(d)
					}
				case e.IsToolCallResponse():
					for _, tc := range e.Choices[0].Message.ToolCalls {
						p.ToolCall(tc.Function.Name, string(tc.Function.Arguments))
					}
				}
			}
			out <- e
		}
	}()
	return out
}
