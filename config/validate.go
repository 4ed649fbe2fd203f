//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"trpc.group/trpc-go/trpc-agent-scout/scenario"
)

// Requirements lists the capabilities a command needs.
type Requirements struct {
	Search   bool
	Database bool
}

// RequirementsOf returns what s needs.
func RequirementsOf(s scenario.Scenario) Requirements {
	return Requirements{Search: s.Search, Database: s.Database}
}

// Validate checks the configuration for a run with the given requirements.
// The model API key is always required.
func (c *Config) Validate(req Requirements) error {
	return c.validate(req, os.Getenv)
}

func (c *Config) validate(req Requirements, getenv func(string) string) error {
	validators := []func() error{c.validateModel, c.validateCheckpoint, c.validateTelemetry}
	if req.Search {
		validators = append(validators, c.validateSearch)
	}
	if req.Database {
		validators = append(validators, func() error { return c.validateDatabase(getenv) })
	}
	var errs []error
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateModel() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("model API key is required: set %s or model.api_key", EnvOpenAIAPIKey)
	}
	if c.Model.Temperature != nil && (*c.Model.Temperature < 0 || *c.Model.Temperature > 2) {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.APIKey == "" {
		return fmt.Errorf("search API key is required: set %s or search.api_key", EnvTavilyAPIKey)
	}
	switch c.Search.SearchDepth {
	case "", "basic", "advanced":
	default:
		return fmt.Errorf("search.search_depth must be basic or advanced")
	}
	switch c.Search.Topic {
	case "", "general", "news":
	default:
		return fmt.Errorf("search.topic must be general or news")
	}
	return nil
}

func (c *Config) validateDatabase(getenv func(string) string) error {
	if len(c.MCPServers) == 0 {
		return errors.New("database scenarios need at least one entry in mcp_servers")
	}
	var errs []error
	for name, s := range c.MCPServers {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("mcp_servers.%s: %w", name, err))
		}
		for _, v := range referencedVars(s.Args, s.Headers, s.ServerURL) {
			if getenv(v) == "" {
				errs = append(errs, fmt.Errorf("mcp_servers.%s needs %s to be set", name, v))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateCheckpoint() error {
	switch c.Checkpoint.Driver {
	case CheckpointMemory, CheckpointSQLite:
		return nil
	default:
		return fmt.Errorf("checkpoint.driver must be %s or %s", CheckpointMemory, CheckpointSQLite)
	}
}

func (c *Config) validateTelemetry() error {
	if !c.Telemetry.Enabled {
		return nil
	}
	switch strings.ToLower(c.Telemetry.Protocol) {
	case "", "grpc", "http":
		return nil
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http")
	}
}

// referencedVars returns the ${VAR} names used in args, header values and url.
func referencedVars(args []string, headers map[string]string, url string) []string {
	seen := make(map[string]bool)
	var vars []string
	collect := func(s string) {
		os.Expand(s, func(name string) string {
			if !seen[name] {
				seen[name] = true
				vars = append(vars, name)
			}
			return ""
		})
	}
	for _, a := range args {
		collect(a)
	}
	for _, h := range headers {
		collect(h)
	}
	collect(url)
	return vars
}
