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
	"regexp"

	"trpc.group/trpc-go/trpc-agent-scout/log"
)

// ToolFilter selects which server tools are exposed to the agent.
type ToolFilter interface {
	Filter(ctx context.Context, tools []ToolInfo) []ToolInfo
}

// ToolInfo contains metadata about an MCP tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolFilterFunc is a function type that implements ToolFilter interface.
type ToolFilterFunc func(ctx context.Context, tools []ToolInfo) []ToolInfo

// Filter implements the ToolFilter interface.
func (f ToolFilterFunc) Filter(ctx context.Context, tools []ToolInfo) []ToolInfo {
	return f(ctx, tools)
}

// ToolNameFilter filters tools by exact name.
// An empty Names list lets every tool through.
type ToolNameFilter struct {
	Names []string
	// Mode is FilterModeInclude (default) or FilterModeExclude.
	Mode filterMode
}

// Filter implements the ToolFilter interface.
func (f *ToolNameFilter) Filter(ctx context.Context, tools []ToolInfo) []ToolInfo {
	if len(f.Names) == 0 {
		return tools
	}
	nameSet := make(map[string]bool, len(f.Names))
	for _, name := range f.Names {
		nameSet[name] = true
	}
	return selectTools(tools, f.Mode, func(t ToolInfo) bool { return nameSet[t.Name] })
}

// PatternFilter filters tools with regular expressions on names and
// descriptions. A tool matches when any pattern matches. Invalid patterns
// are logged and never match.
type PatternFilter struct {
	NamePatterns        []string
	DescriptionPatterns []string
	Mode                filterMode
}

// Filter implements the ToolFilter interface.
func (f *PatternFilter) Filter(ctx context.Context, tools []ToolInfo) []ToolInfo {
	if len(f.NamePatterns) == 0 && len(f.DescriptionPatterns) == 0 {
		return tools
	}
	names := compilePatterns(f.NamePatterns)
	descs := compilePatterns(f.DescriptionPatterns)
	return selectTools(tools, f.Mode, func(t ToolInfo) bool {
		return matchAny(names, t.Name) || matchAny(descs, t.Description)
	})
}

// CompositeFilter applies its filters in order, so a tool must pass all of them.
type CompositeFilter struct {
	Filters []ToolFilter
}

// Filter implements the ToolFilter interface.
func (f *CompositeFilter) Filter(ctx context.Context, tools []ToolInfo) []ToolInfo {
	result := tools
	for _, filter := range f.Filters {
		if filter != nil {
			result = filter.Filter(ctx, result)
		}
	}
	return result
}

func selectTools(tools []ToolInfo, mode filterMode, match func(ToolInfo) bool) []ToolInfo {
	filtered := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		if match(t) != (mode == FilterModeExclude) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warnf("ignoring invalid tool filter pattern %q: %v", p, err)
			continue
		}
		out = append(out, re)
	}
	return out
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// NewIncludeFilter creates a filter that only includes specified tool names.
func NewIncludeFilter(toolNames ...string) ToolFilter {
	return &ToolNameFilter{Names: toolNames, Mode: FilterModeInclude}
}

// NewExcludeFilter creates a filter that excludes specified tool names.
func NewExcludeFilter(toolNames ...string) ToolFilter {
	return &ToolNameFilter{Names: toolNames, Mode: FilterModeExclude}
}

// NewPatternIncludeFilter creates a filter that includes tools matching name patterns.
func NewPatternIncludeFilter(namePatterns ...string) ToolFilter {
	return &PatternFilter{NamePatterns: namePatterns, Mode: FilterModeInclude}
}

// NewPatternExcludeFilter creates a filter that excludes tools matching name patterns.
func NewPatternExcludeFilter(namePatterns ...string) ToolFilter {
	return &PatternFilter{NamePatterns: namePatterns, Mode: FilterModeExclude}
}

// NewDescriptionFilter creates a filter that matches tools by description patterns.
func NewDescriptionFilter(descPatterns ...string) ToolFilter {
	return &PatternFilter{DescriptionPatterns: descPatterns, Mode: FilterModeInclude}
}

// NewCompositeFilter creates a composite filter that applies multiple filters.
func NewCompositeFilter(filters ...ToolFilter) ToolFilter {
	return &CompositeFilter{Filters: filters}
}

// NewFuncFilter creates a filter from a function.
func NewFuncFilter(filterFunc func(ctx context.Context, tools []ToolInfo) []ToolInfo) ToolFilter {
	return ToolFilterFunc(filterFunc)
}

// NoFilter returns all tools without filtering.
var NoFilter ToolFilter = ToolFilterFunc(func(ctx context.Context, tools []ToolInfo) []ToolInfo {
	return tools
})
