//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package transcript renders a checkpointed conversation for people.
package transcript

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
	"trpc.group/trpc-go/trpc-agent-scout/model"
)

// Format is an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown transcript format %q (want text, markdown or html)", s)
	}
}

// maxToolOutput bounds how much of a tool result is shown.
const maxToolOutput = 400

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render writes the messages of cp to w in format f.
func Render(w io.Writer, cp *checkpoint.Checkpoint, f Format) error {
	if cp == nil {
		return fmt.Errorf("no conversation to render")
	}
	switch f {
	case FormatText:
		return renderText(w, cp)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(cp))
		return err
	case FormatHTML:
		return renderHTML(w, cp)
	default:
		return fmt.Errorf("unknown transcript format %q", f)
	}
}

func renderText(w io.Writer, cp *checkpoint.Checkpoint) error {
	var b strings.Builder
	fmt.Fprintf(&b, "thread %s (checkpoint %s, step %d)\n", cp.ThreadID, cp.ID, cp.Metadata.Step)
	for _, m := range cp.Messages {
		switch {
		case m.Role == model.RoleTool:
			fmt.Fprintf(&b, "[tool %s] %s\n", m.ToolName, truncate(m.Content))
		case len(m.ToolCalls) > 0:
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "[%s -> %s] %s\n", m.Role, tc.Function.Name, string(tc.Function.Arguments))
			}
			if m.Content != "" {
				fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
			}
		default:
			fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Markdown returns the conversation as a markdown document. Assistant text
// is kept as is since models answer in markdown.
func Markdown(cp *checkpoint.Checkpoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Thread %s\n\n", cp.ThreadID)
	fmt.Fprintf(&b, "_checkpoint %s, step %d, %s_\n\n", cp.ID, cp.Metadata.Step,
		cp.CreatedAt.Format("2006-01-02 15:04:05"))
	for _, m := range cp.Messages {
		switch {
		case m.Role == model.RoleSystem:
			continue
		case m.Role == model.RoleUser:
			fmt.Fprintf(&b, "## User\n\n%s\n\n", m.Content)
		case m.Role == model.RoleTool:
			fmt.Fprintf(&b, "**Tool result** `%s`\n\n```\n%s\n```\n\n", m.ToolName, truncate(m.Content))
		default:
			if len(m.ToolCalls) > 0 {
				for _, tc := range m.ToolCalls {
					fmt.Fprintf(&b, "> calls `%s` with `%s`\n\n", tc.Function.Name, string(tc.Function.Arguments))
				}
			}
			if m.Content != "" {
				fmt.Fprintf(&b, "## Assistant\n\n%s\n\n", m.Content)
			}
		}
	}
	return b.String()
}

func renderHTML(w io.Writer, cp *checkpoint.Checkpoint) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(cp)), &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}
	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString("scout: "+cp.ThreadID), body.String())
	return err
}

func truncate(s string) string {
	if len(s) <= maxToolOutput {
		return s
	}
	return s[:maxToolOutput] + "..."
}
