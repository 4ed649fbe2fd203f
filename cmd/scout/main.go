//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command scout runs a tool-using research agent: built-in scenarios, an
// interactive chat, conversation history and an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-scout/config"
	"trpc.group/trpc-go/trpc-agent-scout/log"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "scout - a research agent with web search and database tools",
	Long: `scout answers questions with an OpenAI chat model that can search the web
(Tavily) and inspect a Supabase project through MCP tools. Conversations are
checkpointed per thread, so follow-up prompts on the same thread remember
what was said before.

Key commands:
  scout run [scenario]   Run a built-in or configured scenario
  scout chat             Chat interactively on one thread
  scout history          Print a checkpointed conversation
  scout serve            Serve the thread API over HTTP`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		log.SetLevel(loaded.LogLevel)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to config file (default: "+config.DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config and "+config.EnvLogLevel+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
