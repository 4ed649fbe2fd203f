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
	"fmt"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-scout/config"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/scenario"
)

const defaultScenario = "search"

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run a scenario or ad-hoc prompts",
	Long: `Run sends the prompts of a scenario to the agent one at a time, waiting
for each answer before sending the next, and prints the answers.

With --prompt the given prompts are sent instead of a scenario's.

Examples:
  scout run
  scout run memory
  scout run database --stream
  scout run --prompt "what's the weather in sf" --thread 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompts, _ := cmd.Flags().GetStringArray("prompt")
		thread, _ := cmd.Flags().GetString("thread")
		database, _ := cmd.Flags().GetBool("database")

		var name string
		if len(args) > 0 {
			name = args[0]
		}
		s, err := selectScenario(cfg.AllScenarios(), name, prompts, database)
		if err != nil {
			return err
		}
		if thread != "" {
			s.ThreadID = thread
		}
		if cmd.Flags().Changed("stream") {
			s.Stream, _ = cmd.Flags().GetBool("stream")
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		a, err := newApp(ctx, cfg, config.RequirementsOf(s))
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warnf("close: %v", err)
			}
		}()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("scenario "+s.Name)+" "+dimStyle.Render("thread "+s.Thread()))
		return scenario.Run(ctx, a.runner, s, newTermPrinter(out))
	},
}

// selectScenario returns the named scenario, or an ad-hoc one when prompts are given.
func selectScenario(all []scenario.Scenario, name string, prompts []string, database bool) (scenario.Scenario, error) {
	if len(prompts) > 0 {
		if name != "" {
			return scenario.Scenario{}, fmt.Errorf("--prompt cannot be combined with scenario %q", name)
		}
		return scenario.Scenario{
			Name:     "prompt",
			Prompts:  prompts,
			Search:   true,
			Database: database,
		}, nil
	}
	if name == "" {
		name = defaultScenario
	}
	s, ok := scenario.Find(all, name)
	if !ok {
		return scenario.Scenario{}, fmt.Errorf("unknown scenario %q (see scout scenarios)", name)
	}
	if database {
		s.Database = true
	}
	return s, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayP("prompt", "p", nil, "Prompt to send instead of a scenario (repeatable)")
	runCmd.Flags().StringP("thread", "t", "", "Thread ID (default: the scenario's thread)")
	runCmd.Flags().Bool("stream", false, "Stream answer deltas")
	runCmd.Flags().Bool("database", false, "Give the agent the MCP database tools")
}
