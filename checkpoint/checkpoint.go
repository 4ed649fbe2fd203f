//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package checkpoint stores the conversation of a thread as a chain of
// checkpoints so a later run on the same thread can pick it up.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-agent-scout/model"
)

// DefaultMaxCheckpointsPerThread is the number of checkpoints kept per thread
// by savers that prune.
const DefaultMaxCheckpointsPerThread = 100

// SourceRunner marks checkpoints written by the runner after a turn.
const SourceRunner = "runner"

var (
	// ErrThreadIDRequired is returned when a thread ID is empty.
	ErrThreadIDRequired = errors.New("checkpoint: thread id is required")
	// ErrDuplicateID is returned when a checkpoint ID is already used in the thread.
	ErrDuplicateID = errors.New("checkpoint: duplicate checkpoint id")
	// ErrNilCheckpoint is returned by Put for a nil checkpoint.
	ErrNilCheckpoint = errors.New("checkpoint: checkpoint is nil")
)

// Metadata describes how a checkpoint was produced.
type Metadata struct {
	// Source is who wrote the checkpoint, for example "runner".
	Source string `json:"source"`
	// Step counts the checkpoints of the thread, starting at 1.
	Step int `json:"step"`
	// InvocationID is the run that produced the checkpoint, if any.
	InvocationID string `json:"invocation_id,omitempty"`
	// AgentName is the agent that produced the checkpoint, if any.
	AgentName string `json:"agent_name,omitempty"`
}

// Checkpoint is the full conversation of a thread at one point in time.
type Checkpoint struct {
	ThreadID  string          `json:"thread_id"`
	ID        string          `json:"id"`
	ParentID  string          `json:"parent_id,omitempty"`
	Messages  []model.Message `json:"messages"`
	Metadata  Metadata        `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// New creates a checkpoint for threadID holding a copy of messages.
func New(threadID string, messages []model.Message, metadata Metadata) *Checkpoint {
	return &Checkpoint{
		ThreadID: threadID,
		Messages: model.CloneMessages(messages),
		Metadata: metadata,
	}
}

// Clone returns a deep copy of c.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Messages = model.CloneMessages(c.Messages)
	return &clone
}

// Saver persists checkpoints. Implementations must be safe for concurrent use.
type Saver interface {
	// Put stores a copy of cp as the latest checkpoint of its thread.
	// Empty ID, ParentID, Step and CreatedAt are filled in; cp is updated
	// with the stored values only when the write succeeds.
	Put(ctx context.Context, cp *Checkpoint) error
	// Get returns the latest checkpoint of the thread, or nil when the thread
	// has none.
	Get(ctx context.Context, threadID string) (*Checkpoint, error)
	// GetByID returns one checkpoint of the thread, or nil when it does not exist.
	GetByID(ctx context.Context, threadID, id string) (*Checkpoint, error)
	// List returns checkpoints of the thread, newest first. A limit <= 0
	// means no limit.
	List(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error)
	// Delete removes every checkpoint of the thread.
	Delete(ctx context.Context, threadID string) error
	// Threads returns the IDs of all threads that have checkpoints, sorted.
	Threads(ctx context.Context) ([]string, error)
	// Close releases the resources held by the saver.
	Close() error
}

// Prepare returns a copy of cp with its defaults filled in from latest, the
// current latest checkpoint of its thread. cp itself is left untouched; savers
// call it inside their write critical section and report the stored values
// back with ApplyStored once the write succeeded.
func Prepare(cp, latest *Checkpoint, exists func(id string) bool) (*Checkpoint, error) {
	if cp == nil {
		return nil, ErrNilCheckpoint
	}
	if cp.ThreadID == "" {
		return nil, ErrThreadIDRequired
	}
	stored := cp.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	} else if exists != nil && exists(stored.ID) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, stored.ID)
	}
	if stored.ParentID == "" && latest != nil {
		stored.ParentID = latest.ID
	}
	if stored.Metadata.Step == 0 {
		stored.Metadata.Step = 1
		if latest != nil {
			stored.Metadata.Step = latest.Metadata.Step + 1
		}
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	return stored, nil
}

// ApplyStored copies the fields Prepare fills in from stored into c.
func (c *Checkpoint) ApplyStored(stored *Checkpoint) {
	c.ID = stored.ID
	c.ParentID = stored.ParentID
	c.Metadata.Step = stored.Metadata.Step
	c.CreatedAt = stored.CreatedAt
}
