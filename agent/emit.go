//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

import (
	"context"

	"trpc.group/trpc-go/trpc-agent-scout/event"
)

// EmitEvent sends e on ch unless ctx is done first.
func EmitEvent(ctx context.Context, ch chan<- *event.Event, e *event.Event) error {
	if e == nil {
		return nil
	}
	select {
	case ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
