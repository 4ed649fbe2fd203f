//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

// ServerConfig describes one named MCP server of a multi-server tool set.
type ServerConfig struct {
	ConnectionConfig `yaml:",inline"`

	// IncludeTools limits the server to the named tools.
	IncludeTools []string `json:"include_tools,omitempty" yaml:"include_tools,omitempty"`
	// ExcludeTools hides the named tools.
	ExcludeTools []string `json:"exclude_tools,omitempty" yaml:"exclude_tools,omitempty"`
}

// filter builds the tool filter implied by the include and exclude lists.
func (c ServerConfig) filter() ToolFilter {
	var filters []ToolFilter
	if len(c.IncludeTools) > 0 {
		filters = append(filters, NewIncludeFilter(c.IncludeTools...))
	}
	if len(c.ExcludeTools) > 0 {
		filters = append(filters, NewExcludeFilter(c.ExcludeTools...))
	}
	switch len(filters) {
	case 0:
		return nil
	case 1:
		return filters[0]
	default:
		return NewCompositeFilter(filters...)
	}
}

// MultiServerToolSet groups the tool sets of several MCP servers.
type MultiServerToolSet struct {
	names []string
	sets  map[string]*ToolSet
}

// LoadTools connects to every server concurrently and returns the combined
// tools. Tool names are kept as the servers declare them.
//
// Any server failure closes the servers already connected and is returned as
// an error, as is a tool name declared by more than one server.
func LoadTools(ctx context.Context, servers map[string]ServerConfig, opts ...ToolSetOption) (*MultiServerToolSet, []tool.Tool, error) {
	if len(servers) == 0 {
		return nil, nil, errors.New("no MCP servers configured")
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	ms := &MultiServerToolSet{names: names, sets: make(map[string]*ToolSet, len(names))}
	for _, name := range names {
		cfg := servers[name]
		setOpts := append([]ToolSetOption{WithName(name)}, opts...)
		if f := cfg.filter(); f != nil {
			setOpts = append(setOpts, WithToolFilter(f))
		}
		ms.sets[name] = NewMCPToolSet(cfg.ConnectionConfig, setOpts...)
	}

	// The caller's context is kept: stdio servers may be bound to it for
	// the lifetime of the session.
	var g errgroup.Group
	for _, name := range names {
		ts := ms.sets[name]
		g.Go(func() error {
			if err := ts.Refresh(ctx); err != nil {
				return fmt.Errorf("mcp server %s: %w", ts.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorf("failed to load MCP tools: %v", err)
		if closeErr := ms.Close(); closeErr != nil {
			log.Warnf("failed to close MCP servers: %v", closeErr)
		}
		return nil, nil, err
	}

	perServer := make(map[string][]tool.Tool, len(names))
	for _, name := range names {
		perServer[name] = ms.sets[name].cachedTools()
	}
	tools, err := mergeTools(names, perServer)
	if err != nil {
		if closeErr := ms.Close(); closeErr != nil {
			log.Warnf("failed to close MCP servers: %v", closeErr)
		}
		return nil, nil, err
	}
	log.Infof("loaded %d MCP tools from %d servers", len(tools), len(names))
	return ms, tools, nil
}

// mergeTools concatenates tools in server order and rejects duplicate names.
func mergeTools(order []string, perServer map[string][]tool.Tool) ([]tool.Tool, error) {
	owner := make(map[string]string)
	var out []tool.Tool
	for _, server := range order {
		for _, t := range perServer[server] {
			name := t.Declaration().Name
			if prev, ok := owner[name]; ok {
				return nil, fmt.Errorf("tool %q is declared by MCP servers %s and %s", name, prev, server)
			}
			owner[name] = server
			out = append(out, t)
		}
	}
	return out, nil
}

// Name implements tool.ToolSet.
func (ms *MultiServerToolSet) Name() string {
	return defaultToolSetName
}

// Servers returns the server names in load order.
func (ms *MultiServerToolSet) Servers() []string {
	return append([]string(nil), ms.names...)
}

// Tools implements tool.ToolSet by refreshing every server.
func (ms *MultiServerToolSet) Tools(ctx context.Context) []tool.Tool {
	var out []tool.Tool
	for _, name := range ms.names {
		out = append(out, ms.sets[name].Tools(ctx)...)
	}
	return out
}

// Close closes every server session.
func (ms *MultiServerToolSet) Close() error {
	if ms == nil {
		return nil
	}
	var errs []error
	for _, name := range ms.names {
		if err := ms.sets[name].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// cachedTools returns the tools loaded by the last refresh.
func (ts *ToolSet) cachedTools() []tool.Tool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return append([]tool.Tool(nil), ts.tools...)
}
