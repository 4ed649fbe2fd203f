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
	"fmt"
	"os"
	"time"

	mcp "trpc.group/trpc-go/trpc-mcp-go"
)

// filterMode defines how the filter should behave.
type filterMode string

// transport specifies the transport method: "stdio", "sse", "streamable".
type transport string

const (
	transportStdio      transport = "stdio"
	transportSSE        transport = "sse"
	transportStreamable transport = "streamable"

	FilterModeInclude filterMode = "include" // Only include listed tools
	FilterModeExclude filterMode = "exclude" // Exclude listed tools

	defaultToolSetName          = "mcp"
	defaultMaxReconnectAttempts = 2
)

var defaultClientInfo = mcp.Implementation{
	Name:    "trpc-agent-scout",
	Version: "1.0.0",
}

// ConnectionConfig defines the configuration for connecting to an MCP server.
type ConnectionConfig struct {
	// Transport specifies the transport method: "stdio", "sse", "streamable".
	Transport string `json:"transport" yaml:"transport"`

	// Streamable/SSE configuration.
	ServerURL string            `json:"server_url,omitempty" yaml:"server_url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// STDIO configuration.
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Timeout bounds each MCP request that has no deadline of its own.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	ClientInfo mcp.Implementation `json:"client_info,omitempty" yaml:"-"`
}

// Validate checks that the fields required by the transport are set.
func (c ConnectionConfig) Validate() error {
	t, err := validateTransport(c.Transport)
	if err != nil {
		return err
	}
	switch t {
	case transportStdio:
		if c.Command == "" {
			return fmt.Errorf("stdio transport requires a command")
		}
	default:
		if c.ServerURL == "" {
			return fmt.Errorf("%s transport requires a server_url", t)
		}
	}
	return nil
}

// Expand returns a copy of the config with ${VAR} references in the server
// URL, args and header values replaced using mapping.
// A nil mapping falls back to os.Getenv.
func (c ConnectionConfig) Expand(mapping func(string) string) ConnectionConfig {
	if mapping == nil {
		mapping = os.Getenv
	}
	out := c
	out.ServerURL = os.Expand(c.ServerURL, mapping)
	out.Command = os.Expand(c.Command, mapping)
	if c.Args != nil {
		out.Args = make([]string, len(c.Args))
		for i, a := range c.Args {
			out.Args[i] = os.Expand(a, mapping)
		}
	}
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = os.Expand(v, mapping)
		}
	}
	return out
}

// toolSetConfig holds internal configuration for ToolSet.
type toolSetConfig struct {
	name                 string
	connectionConfig     ConnectionConfig
	toolFilter           ToolFilter
	mcpOptions           []mcp.ClientOption
	maxReconnectAttempts int
}

// ToolSetOption is a function type for configuring ToolSet.
type ToolSetOption func(*toolSetConfig)

// WithName sets the tool set name used in logs and errors.
func WithName(name string) ToolSetOption {
	return func(c *toolSetConfig) {
		c.name = name
	}
}

// WithToolFilter configures tool filtering.
func WithToolFilter(filter ToolFilter) ToolSetOption {
	return func(c *toolSetConfig) {
		c.toolFilter = filter
	}
}

// WithMCPOptions sets additional MCP client options for the SSE and
// streamable transports.
func WithMCPOptions(options ...mcp.ClientOption) ToolSetOption {
	return func(c *toolSetConfig) {
		c.mcpOptions = append(c.mcpOptions, options...)
	}
}

// WithMaxReconnectAttempts sets how many times a broken session is recreated
// for a single operation. Zero disables reconnection.
func WithMaxReconnectAttempts(n int) ToolSetOption {
	return func(c *toolSetConfig) {
		if n >= 0 {
			c.maxReconnectAttempts = n
		}
	}
}

// validateTransport validates the transport string and returns the internal transport type.
func validateTransport(t string) (transport, error) {
	switch t {
	case "stdio":
		return transportStdio, nil
	case "sse":
		return transportSSE, nil
	case "streamable", "streamable_http":
		return transportStreamable, nil
	default:
		return "", fmt.Errorf("unsupported transport: %q, supported: stdio, sse, streamable", t)
	}
}
