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
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-scout/config"
	"trpc.group/trpc-go/trpc-agent-scout/log"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the agent can call",
	Long: `Tools lists the web search tool and, with --database, the tools exposed
by the configured MCP servers. MCP servers are started to list their tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _ := cmd.Flags().GetBool("database")

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		tools, closeTools, err := buildTools(ctx, cfg, config.Requirements{Search: true, Database: database})
		if err != nil {
			return err
		}
		defer func() {
			if err := closeTools(); err != nil {
				log.Warnf("close tools: %v", err)
			}
		}()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d tools", len(tools))))
		for _, t := range tools {
			d := t.Declaration()
			fmt.Fprintf(out, "  %s  %s\n", toolStyle.Render(d.Name), firstLine(d.Description))
			if d.InputSchema == nil || len(d.InputSchema.Properties) == 0 {
				continue
			}
			params := make([]string, 0, len(d.InputSchema.Properties))
			for name := range d.InputSchema.Properties {
				params = append(params, name)
			}
			sort.Strings(params)
			fmt.Fprintln(out, "    "+dimStyle.Render("args: "+strings.Join(params, ", ")))
		}
		return nil
	},
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().Bool("database", false, "Also list the MCP server tools")
}
