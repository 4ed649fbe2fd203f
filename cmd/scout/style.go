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
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// maxArgsShown bounds how much of a tool call's arguments is echoed.
const maxArgsShown = 120

// termPrinter prints scenario progress to a terminal.
type termPrinter struct {
	w         io.Writer
	streaming bool
}

func newTermPrinter(w io.Writer) *termPrinter {
	return &termPrinter{w: w}
}

func (p *termPrinter) Prompt(i int, text string) {
	fmt.Fprintf(p.w, "\n%s %s\n", promptStyle.Render(fmt.Sprintf("[%d] >", i)), text)
}

func (p *termPrinter) Delta(text string) {
	p.streaming = true
	fmt.Fprint(p.w, text)
}

func (p *termPrinter) ToolCall(name, args string) {
	p.endStream()
	args = strings.Join(strings.Fields(args), " ")
	if len(args) > maxArgsShown {
		args = args[:maxArgsShown] + "..."
	}
	fmt.Fprintf(p.w, "%s %s\n", toolStyle.Render("tool "+name), dimStyle.Render(args))
}

// Answer prints the final answer unless it was already streamed.
func (p *termPrinter) Answer(text string) {
	if p.streaming {
		p.streaming = false
		fmt.Fprintln(p.w)
		return
	}
	fmt.Fprintln(p.w, answerStyle.Render(text))
}

func (p *termPrinter) endStream() {
	if p.streaming {
		fmt.Fprintln(p.w)
		p.streaming = false
	}
}
