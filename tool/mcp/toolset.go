//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mcp exposes tools served by MCP (Model Context Protocol) servers.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	mcp "trpc.group/trpc-go/trpc-mcp-go"

	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/tool"
)

// errTransportClosed is reported when an operation runs on a closed session.
var errTransportClosed = errors.New("transport is closed")

// sessionReconnectErrorPatterns lists error texts that mean the session is
// gone and worth recreating. Configuration and timeout errors are excluded.
var sessionReconnectErrorPatterns = []string{
	"session_expired:",
	"transport is closed",
	"not initialized",
	"connection refused",
	"connection reset",
	"EOF",
	"broken pipe",
	"HTTP 404",
	"status code 404",
	"session not found",
}

// ToolSet implements tool.ToolSet for the tools of a single MCP server.
type ToolSet struct {
	config         toolSetConfig
	sessionManager *mcpSessionManager
	tools          []tool.Tool
	mu             sync.RWMutex
}

// NewMCPToolSet creates a new MCP tool set with the given configuration.
// No connection is made until tools are first requested.
func NewMCPToolSet(config ConnectionConfig, opts ...ToolSetOption) *ToolSet {
	cfg := toolSetConfig{
		name:                 defaultToolSetName,
		connectionConfig:     config,
		maxReconnectAttempts: defaultMaxReconnectAttempts,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.connectionConfig.ClientInfo.Name == "" {
		cfg.connectionConfig.ClientInfo = defaultClientInfo
	}

	return &ToolSet{
		config:         cfg,
		sessionManager: newMCPSessionManager(cfg.connectionConfig, cfg.mcpOptions, cfg.maxReconnectAttempts),
	}
}

// Tools implements the ToolSet interface. The cached tools are returned when
// refreshing fails.
func (ts *ToolSet) Tools(ctx context.Context) []tool.Tool {
	if err := ts.Refresh(ctx); err != nil {
		log.Errorf("mcp toolset %s: failed to refresh tools: %v", ts.Name(), err)
	}

	ts.mu.RLock()
	defer ts.mu.RUnlock()
	result := make([]tool.Tool, len(ts.tools))
	copy(result, ts.tools)
	return result
}

// Close implements the ToolSet interface.
func (ts *ToolSet) Close() error {
	if err := ts.sessionManager.close(); err != nil {
		return fmt.Errorf("failed to close MCP session %s: %w", ts.Name(), err)
	}
	log.Debugf("mcp toolset %s closed", ts.Name())
	return nil
}

// Name implements the ToolSet interface.
func (ts *ToolSet) Name() string {
	return ts.config.name
}

// Refresh connects to the MCP server when needed and reloads the tool list.
func (ts *ToolSet) Refresh(ctx context.Context) error {
	if !ts.sessionManager.isConnected() {
		if err := ts.sessionManager.connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to MCP server: %w", err)
		}
	}

	mcpTools, err := ts.sessionManager.listTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools from MCP server: %w", err)
	}

	tools := make([]tool.Tool, 0, len(mcpTools))
	for _, mt := range mcpTools {
		tools = append(tools, newMCPTool(mt, ts.sessionManager))
	}
	tools = applyFilter(ctx, ts.config.toolFilter, tools)

	ts.mu.Lock()
	ts.tools = tools
	ts.mu.Unlock()

	log.Debugf("mcp toolset %s: loaded %d tools", ts.Name(), len(tools))
	return nil
}

// applyFilter keeps the tools the filter lets through, in their original order.
func applyFilter(ctx context.Context, filter ToolFilter, tools []tool.Tool) []tool.Tool {
	if filter == nil {
		return tools
	}
	infos := make([]ToolInfo, len(tools))
	for i, t := range tools {
		decl := t.Declaration()
		infos[i] = ToolInfo{Name: decl.Name, Description: decl.Description}
	}
	keep := make(map[string]bool)
	for _, info := range filter.Filter(ctx, infos) {
		keep[info.Name] = true
	}
	filtered := make([]tool.Tool, 0, len(keep))
	for _, t := range tools {
		if keep[t.Declaration().Name] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// mcpSessionManager manages the MCP client connection and session.
type mcpSessionManager struct {
	config               ConnectionConfig
	mcpOptions           []mcp.ClientOption
	maxReconnectAttempts int
	client               mcp.Connector
	mu                   sync.RWMutex
	connected            bool
	initialized          bool
	reconnectGroup       singleflight.Group
}

func newMCPSessionManager(config ConnectionConfig, mcpOptions []mcp.ClientOption, maxReconnectAttempts int) *mcpSessionManager {
	return &mcpSessionManager{
		config:               config,
		mcpOptions:           mcpOptions,
		maxReconnectAttempts: maxReconnectAttempts,
	}
}

// connect establishes connection to the MCP server.
func (m *mcpSessionManager) connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected && m.initialized {
		return nil
	}
	return m.openLocked(ctx)
}

// openLocked creates and initializes a fresh client. m.mu must be held.
func (m *mcpSessionManager) openLocked(ctx context.Context) error {
	log.Debugf("connecting to MCP server over %s", m.config.Transport)

	client, err := m.createClient()
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}
	m.client = client
	m.connected = true

	if err := m.initialize(ctx); err != nil {
		m.connected = false
		m.client = nil
		if closeErr := client.Close(); closeErr != nil {
			log.Warnf("failed to close MCP client after initialization failure: %v", closeErr)
		}
		return err
	}
	return nil
}

// createClient creates the appropriate MCP client based on transport configuration.
func (m *mcpSessionManager) createClient() (mcp.Connector, error) {
	if err := m.config.Validate(); err != nil {
		return nil, err
	}
	transportType, _ := validateTransport(m.config.Transport)

	clientInfo := m.config.ClientInfo
	if clientInfo.Name == "" {
		clientInfo = defaultClientInfo
	}

	if transportType == transportStdio {
		return mcp.NewStdioClient(mcp.StdioTransportConfig{
			ServerParams: mcp.StdioServerParameters{
				Command: m.config.Command,
				Args:    m.config.Args,
			},
			Timeout: m.config.Timeout,
		}, clientInfo)
	}

	var options []mcp.ClientOption
	if len(m.config.Headers) > 0 {
		headers := http.Header{}
		for k, v := range m.config.Headers {
			headers.Set(k, v)
		}
		options = append(options, mcp.WithHTTPHeaders(headers))
	}
	options = append(options, m.mcpOptions...)

	if transportType == transportSSE {
		return mcp.NewSSEClient(m.config.ServerURL, clientInfo, options...)
	}
	return mcp.NewClient(m.config.ServerURL, clientInfo, options...)
}

// withTimeout applies the configured timeout when ctx has no deadline.
func (m *mcpSessionManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.config.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			return context.WithTimeout(ctx, m.config.Timeout)
		}
	}
	return ctx, func() {}
}

// initialize performs the MCP handshake.
func (m *mcpSessionManager) initialize(ctx context.Context) error {
	if m.initialized {
		return nil
	}
	initCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	initResp, err := m.client.Initialize(initCtx, &mcp.InitializeRequest{})
	if err != nil {
		return fmt.Errorf("failed to initialize MCP session: %w", err)
	}
	log.Debugf("MCP session initialized: server=%s version=%s protocol=%s",
		initResp.ServerInfo.Name, initResp.ServerInfo.Version, initResp.ProtocolVersion)
	m.initialized = true
	return nil
}

// listTools retrieves the list of available tools from the MCP server.
func (m *mcpSessionManager) listTools(ctx context.Context) ([]mcp.Tool, error) {
	var result []mcp.Tool
	err := m.executeWithSessionReconnect(ctx, func() error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if m.client == nil {
			return errTransportClosed
		}
		listCtx, cancel := m.withTimeout(ctx)
		defer cancel()
		listResp, err := m.client.ListTools(listCtx, &mcp.ListToolsRequest{})
		if err != nil {
			return fmt.Errorf("failed to list tools: %w", err)
		}
		result = listResp.Tools
		return nil
	})
	return result, err
}

// callTool executes a tool call on the MCP server.
func (m *mcpSessionManager) callTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	var result *mcp.CallToolResult
	err := m.executeWithSessionReconnect(ctx, func() error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		if m.client == nil {
			return errTransportClosed
		}
		log.Debugf("calling MCP tool %s with %v", name, arguments)

		callCtx, cancel := m.withTimeout(ctx)
		defer cancel()
		req := &mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = arguments
		resp, err := m.client.CallTool(callCtx, req)
		if err != nil {
			return fmt.Errorf("failed to call tool %s: %w", name, err)
		}
		result = resp
		return nil
	})
	return result, err
}

// close closes the MCP session and client connection.
func (m *mcpSessionManager) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.connected = false
	m.initialized = false
	m.client = nil
	if err != nil {
		return fmt.Errorf("failed to close MCP client: %w", err)
	}
	return nil
}

// isConnected returns whether the session is connected and initialized.
func (m *mcpSessionManager) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected && m.initialized
}

// executeWithSessionReconnect runs operation and, when it fails with a
// session error, recreates the session and retries it.
func (m *mcpSessionManager) executeWithSessionReconnect(ctx context.Context, operation func() error) error {
	err := operation()
	for attempt := 1; err != nil && attempt <= m.maxReconnectAttempts && shouldReconnect(err); attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("reconnection aborted: %w", ctx.Err())
		}
		log.Debugf("MCP session error %q, reconnecting (attempt %d/%d)", err, attempt, m.maxReconnectAttempts)
		if reconnectErr := m.recreateSession(ctx); reconnectErr != nil {
			log.Warnf("MCP session reconnection failed (attempt %d/%d): %v", attempt, m.maxReconnectAttempts, reconnectErr)
			continue
		}
		err = operation()
	}
	return err
}

// shouldReconnect reports whether err looks like a lost session.
func shouldReconnect(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range sessionReconnectErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// recreateSession replaces the client. Concurrent callers share one attempt.
func (m *mcpSessionManager) recreateSession(ctx context.Context) error {
	_, err, _ := m.reconnectGroup.Do("reconnect", func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.client != nil {
			if closeErr := m.client.Close(); closeErr != nil {
				log.Warnf("failed to close stale MCP client: %v", closeErr)
			}
			m.client = nil
		}
		m.connected = false
		m.initialized = false
		return nil, m.openLocked(ctx)
	})
	return err
}
