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
	"trpc.group/trpc-go/trpc-agent-scout/transcript"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a checkpointed conversation",
	Long: `History prints the latest checkpoint of a thread. Without --thread it
lists the threads in the store. Only the sqlite checkpoint driver keeps
conversations between invocations.

Examples:
  scout history
  scout history --thread memory
  scout history --thread memory --format html > memory.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		thread, _ := cmd.Flags().GetString("thread")
		formatName, _ := cmd.Flags().GetString("format")
		format, err := transcript.ParseFormat(formatName)
		if err != nil {
			return err
		}
		if cfg.Checkpoint.Driver != config.CheckpointSQLite {
			log.Warnf("checkpoint driver is %q: history is empty between runs", cfg.Checkpoint.Driver)
		}

		ctx := cmd.Context()
		saver, err := openSaver(ctx, cfg.Checkpoint)
		if err != nil {
			return err
		}
		defer saver.Close()

		out := cmd.OutOrStdout()
		if thread == "" {
			threads, err := saver.Threads(ctx)
			if err != nil {
				return err
			}
			for _, t := range threads {
				fmt.Fprintln(out, t)
			}
			return nil
		}

		cp, err := saver.Get(ctx, thread)
		if err != nil {
			return err
		}
		if cp == nil {
			return fmt.Errorf("thread %s has no checkpoints", thread)
		}
		return transcript.Render(out, cp, format)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("thread", "t", "", "Thread to print")
	historyCmd.Flags().StringP("format", "f", string(transcript.FormatText), "Output format: text, markdown, html")
}
