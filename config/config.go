//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads scout's configuration from a YAML file, an optional
// .env file and the environment, in that order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/scenario"
	"trpc.group/trpc-go/trpc-agent-scout/tool/mcp"
)

// Environment variables read by Load.
const (
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
	EnvTavilyAPIKey      = "TAVILY_API_KEY"
	EnvSupabaseToken     = "SUPABASE_TOKEN"
	EnvSupabaseProjectID = "SUPABASE_PROJECT_ID"
	EnvLogLevel          = "SCOUT_LOG_LEVEL"
)

// Defaults.
const (
	DefaultModelName      = "gpt-4o-mini"
	DefaultAgentName      = "scout"
	DefaultMaxSteps       = 25
	DefaultSearchResults  = 2
	DefaultSearchTimeout  = 30 * time.Second
	DefaultServerAddr     = ":8080"
	DefaultCheckpointPath = "scout.db"
	DefaultConfigFile     = "scout.yaml"

	// SupabaseServerName is the MCP server used by database scenarios.
	SupabaseServerName = "supabase"

	CheckpointMemory = "memory"
	CheckpointSQLite = "sqlite"
)

// DefaultInstruction is the system instruction of the agent.
const DefaultInstruction = "You are scout, a research assistant. Use the search tool for anything " +
	"that depends on current information and the database tools to inspect the user's project. " +
	"Answer concisely and say which sources you used."

// Config is the application configuration. MCPServers defaults to the
// Supabase server; a file that defines mcp_servers replaces the default and
// an empty mapping disables MCP.
type Config struct {
	LogLevel   string                      `yaml:"log_level"`
	Model      ModelConfig                 `yaml:"model"`
	Agent      AgentConfig                 `yaml:"agent"`
	Search     SearchConfig                `yaml:"search"`
	MCPServers map[string]mcp.ServerConfig `yaml:"mcp_servers"`
	Checkpoint CheckpointConfig            `yaml:"checkpoint"`
	Server     ServerConfig                `yaml:"server"`
	Telemetry  TelemetryConfig             `yaml:"telemetry"`
	Scenarios  []scenario.Scenario         `yaml:"scenarios"`
}

// ModelConfig configures the chat model.
type ModelConfig struct {
	Name        string   `yaml:"name"`
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

// AgentConfig configures the agent loop.
type AgentConfig struct {
	Name          string `yaml:"name"`
	Instruction   string `yaml:"instruction"`
	MaxSteps      int    `yaml:"max_steps"`
	ParallelTools bool   `yaml:"parallel_tools"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	MaxResults  int           `yaml:"max_results"`
	SearchDepth string        `yaml:"search_depth,omitempty"`
	Topic       string        `yaml:"topic,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
	// IncludeDomains and ExcludeDomains filter the sites results come from.
	IncludeDomains []string `yaml:"include_domains,omitempty"`
	ExcludeDomains []string `yaml:"exclude_domains,omitempty"`
}

// CheckpointConfig selects the checkpoint store.
type CheckpointConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	// MaxPerThread caps the checkpoints kept per thread. 0 uses the saver
	// default and a negative value keeps everything.
	MaxPerThread int `yaml:"max_per_thread,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TelemetryConfig configures OpenTelemetry tracing and metrics.
type TelemetryConfig struct {
	// Enabled starts both the trace and the metric exporter.
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	Protocol    string            `yaml:"protocol"`
	ServiceName string            `yaml:"service_name"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: log.LevelInfo,
		Model:    ModelConfig{Name: DefaultModelName},
		Agent: AgentConfig{
			Name:        DefaultAgentName,
			Instruction: DefaultInstruction,
			MaxSteps:    DefaultMaxSteps,
		},
		Search: SearchConfig{
			MaxResults: DefaultSearchResults,
			Timeout:    DefaultSearchTimeout,
		},
		MCPServers: map[string]mcp.ServerConfig{
			SupabaseServerName: DefaultSupabaseServer(),
		},
		Checkpoint: CheckpointConfig{Driver: CheckpointMemory, Path: DefaultCheckpointPath},
		Server:     ServerConfig{Addr: DefaultServerAddr},
		Telemetry:  TelemetryConfig{Protocol: "grpc", ServiceName: "trpc-agent-scout"},
	}
}

// DefaultSupabaseServer launches the Supabase MCP server with npx. Its
// arguments reference the Supabase environment variables.
func DefaultSupabaseServer() mcp.ServerConfig {
	return mcp.ServerConfig{ConnectionConfig: mcp.ConnectionConfig{
		Transport: "stdio",
		Command:   "npx",
		Args: []string{
			"-y", "@supabase/mcp-server-supabase@latest",
			"--access-token", "${" + EnvSupabaseToken + "}",
			"--project-ref", "${" + EnvSupabaseProjectID + "}",
		},
		Timeout: time.Minute,
	}}
}

// Load reads path (or scout.yaml in the working directory when path is empty
// and the file exists), then the .env file next to it, then the environment.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := parse(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		log.Debugf("no config file %s, using defaults", path)
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	return cfg, nil
}

func parse(data []byte, cfg *Config) error {
	defaults := cfg.MCPServers
	cfg.MCPServers = nil
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = defaults
	}
	return nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Warnf("failed to load %s: %v", path, err)
	}
}

// applyEnv overrides settings with non-empty environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvOpenAIAPIKey); v != "" {
		c.Model.APIKey = v
	}
	if v := getenv(EnvOpenAIBaseURL); v != "" {
		c.Model.BaseURL = v
	}
	if v := getenv(EnvTavilyAPIKey); v != "" {
		c.Search.APIKey = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName
	}
	if c.Agent.Name == "" {
		c.Agent.Name = DefaultAgentName
	}
	if c.Agent.Instruction == "" {
		c.Agent.Instruction = DefaultInstruction
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = DefaultMaxSteps
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = DefaultSearchResults
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = DefaultSearchTimeout
	}
	if c.Checkpoint.Driver == "" {
		c.Checkpoint.Driver = CheckpointMemory
	}
	if c.Checkpoint.Path == "" {
		c.Checkpoint.Path = DefaultCheckpointPath
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

// ResolvedMCPServers returns the MCP servers with ${VAR} references expanded
// from the environment.
func (c *Config) ResolvedMCPServers() map[string]mcp.ServerConfig {
	return c.resolveMCPServers(os.Getenv)
}

func (c *Config) resolveMCPServers(getenv func(string) string) map[string]mcp.ServerConfig {
	out := make(map[string]mcp.ServerConfig, len(c.MCPServers))
	for name, s := range c.MCPServers {
		s.ConnectionConfig = s.ConnectionConfig.Expand(getenv)
		out[name] = s
	}
	return out
}

// AllScenarios returns the built-in scenarios merged with the configured ones.
func (c *Config) AllScenarios() []scenario.Scenario {
	return scenario.Merge(scenario.Builtins(), c.Scenarios)
}
