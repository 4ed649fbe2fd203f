//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides in-memory checkpoint storage.
// It is suitable for tests and one-shot runs; nothing survives the process.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
)

var _ checkpoint.Saver = (*Saver)(nil)

type saverOpts struct {
	maxCheckpointsPerThread int
}

// Option configures the in-memory saver.
type Option func(*saverOpts)

// WithMaxCheckpointsPerThread keeps only the newest n checkpoints of each
// thread. n <= 0 keeps everything.
func WithMaxCheckpointsPerThread(n int) Option {
	return func(opts *saverOpts) {
		opts.maxCheckpointsPerThread = n
	}
}

// Saver is an in-memory checkpoint.Saver.
type Saver struct {
	mu      sync.RWMutex
	threads map[string][]*checkpoint.Checkpoint // oldest first
	opts    saverOpts
}

// NewSaver creates a new in-memory checkpoint saver.
func NewSaver(opts ...Option) *Saver {
	o := saverOpts{maxCheckpointsPerThread: checkpoint.DefaultMaxCheckpointsPerThread}
	for _, opt := range opts {
		opt(&o)
	}
	return &Saver{
		threads: make(map[string][]*checkpoint.Checkpoint),
		opts:    o,
	}
}

// Put implements checkpoint.Saver.
func (s *Saver) Put(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if cp == nil {
		return checkpoint.ErrNilCheckpoint
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.threads[cp.ThreadID]
	var latest *checkpoint.Checkpoint
	if len(existing) > 0 {
		latest = existing[len(existing)-1]
	}
	stored, err := checkpoint.Prepare(cp, latest, func(id string) bool {
		return find(existing, id) != nil
	})
	if err != nil {
		return err
	}
	existing = append(existing, stored)
	if max := s.opts.maxCheckpointsPerThread; max > 0 && len(existing) > max {
		existing = append([]*checkpoint.Checkpoint(nil), existing[len(existing)-max:]...)
	}
	s.threads[cp.ThreadID] = existing
	cp.ApplyStored(stored)
	return nil
}

// Get implements checkpoint.Saver.
func (s *Saver) Get(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, checkpoint.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.threads[threadID]
	if len(cps) == 0 {
		return nil, nil
	}
	return cps[len(cps)-1].Clone(), nil
}

// GetByID implements checkpoint.Saver.
func (s *Saver) GetByID(ctx context.Context, threadID, id string) (*checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, checkpoint.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.threads[threadID], id).Clone(), nil
}

// List implements checkpoint.Saver.
func (s *Saver) List(ctx context.Context, threadID string, limit int) ([]*checkpoint.Checkpoint, error) {
	if threadID == "" {
		return nil, checkpoint.ErrThreadIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.threads[threadID]
	n := len(cps)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*checkpoint.Checkpoint, 0, n)
	for i := len(cps) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, cps[i].Clone())
	}
	return out, nil
}

// Delete implements checkpoint.Saver.
func (s *Saver) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return checkpoint.ErrThreadIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Threads implements checkpoint.Saver.
func (s *Saver) Threads(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	threads := make([]string, 0, len(s.threads))
	for id := range s.threads {
		threads = append(threads, id)
	}
	sort.Strings(threads)
	return threads, nil
}

// Close implements checkpoint.Saver.
func (s *Saver) Close() error {
	return nil
}

func find(cps []*checkpoint.Checkpoint, id string) *checkpoint.Checkpoint {
	for _, cp := range cps {
		if cp.ID == id {
			return cp
		}
	}
	return nil
}
