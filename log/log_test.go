//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	tests := []struct {
		in   string
		want string
	}{
		{LevelDebug, "debug"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{" ERROR ", "error"},
		{LevelFatal, "fatal"},
		{"bogus", "info"},
		{LevelInfo, "info"},
	}
	for _, tt := range tests {
		SetLevel(tt.in)
		assert.Equal(t, tt.want, Level(), "level %q", tt.in)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	l := New(&buf)

	SetLevel(LevelWarn)
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warnf("shown %d", 1)
	assert.Contains(t, buf.String(), "shown 1")
}

func TestPackageFuncs_UseDefault(t *testing.T) {
	defer SetLevel(LevelInfo)
	old := Default
	defer func() { Default = old }()

	var buf bytes.Buffer
	Default = New(&buf)
	SetLevel(LevelDebug)

	Debugf("d %s", "x")
	Infof("i %s", "y")
	Error("e")
	out := buf.String()
	assert.Contains(t, out, "d x")
	assert.Contains(t, out, "i y")
	assert.Contains(t, out, "e")
}
