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
	"strings"

	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the available scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, s := range cfg.AllScenarios() {
			var needs []string
			if s.Search {
				needs = append(needs, "search")
			}
			if s.Database {
				needs = append(needs, "database")
			}
			if s.Stream {
				needs = append(needs, "stream")
			}
			fmt.Fprintf(out, "%s  %s\n", titleStyle.Render(s.Name), s.Description)
			fmt.Fprintln(out, "  "+dimStyle.Render(fmt.Sprintf("%d prompts, thread %s, %s",
				len(s.Prompts), s.Thread(), strings.Join(needs, "+"))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
