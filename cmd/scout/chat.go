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
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-agent-scout/config"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/scenario"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent on one thread",
	Long: `Chat reads prompts interactively and sends each one on the same thread,
so the agent remembers the conversation. Submit an empty prompt, /exit or
press Ctrl+C to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, _ := cmd.Flags().GetString("thread")
		stream, _ := cmd.Flags().GetBool("stream")
		database, _ := cmd.Flags().GetBool("database")
		if thread == "" {
			thread = "chat-" + uuid.NewString()[:8]
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		a, err := newApp(ctx, cfg, config.Requirements{Search: true, Database: database})
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warnf("close: %v", err)
			}
		}()

		out := cmd.OutOrStdout()
		printer := newTermPrinter(out)
		fmt.Fprintln(out, titleStyle.Render("scout chat")+" "+dimStyle.Render("thread "+thread))
		for turn := 1; ; turn++ {
			text, err := readPrompt(turn)
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			if err != nil {
				return err
			}
			text = strings.TrimSpace(text)
			if text == "" || text == "/exit" {
				return nil
			}

			s := scenario.Scenario{Name: "chat", ThreadID: thread, Prompts: []string{text}, Stream: stream}
			if err := scenario.Run(ctx, a.runner, s, printer); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintln(out, errorStyle.Render("error: ")+err.Error())
			}
		}
	},
}

func readPrompt(turn int) (string, error) {
	var text string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("You (%d)", turn)).
				Placeholder("Ask anything, empty to quit").
				Value(&text),
		),
	).WithTheme(huh.ThemeCharm())
	if err := form.Run(); err != nil {
		return "", err
	}
	return text, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("thread", "t", "", "Thread ID (default: a new random thread)")
	chatCmd.Flags().Bool("stream", true, "Stream answer deltas")
	chatCmd.Flags().Bool("database", false, "Give the agent the MCP database tools")
}
