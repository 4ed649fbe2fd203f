//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package runner provides the core runner functionality.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-agent-scout/agent"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint"
	"trpc.group/trpc-go/trpc-agent-scout/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-agent-scout/event"
	"trpc.group/trpc-go/trpc-agent-scout/log"
	"trpc.group/trpc-go/trpc-agent-scout/model"
	"trpc.group/trpc-go/trpc-agent-scout/telemetry/trace"
)

// ErrorTypeCheckpointError is the error type of the event emitted when the
// conversation could not be saved.
const ErrorTypeCheckpointError = "checkpoint_error"

// ErrEmptyAnswer is returned by RunText when the agent finished without an answer.
var ErrEmptyAnswer = errors.New("runner: agent finished without an answer")

// Option is a function that configures a Runner.
type Option func(*Options)

// WithCheckpointSaver sets where thread conversations are stored.
func WithCheckpointSaver(saver checkpoint.Saver) Option {
	return func(opts *Options) {
		opts.saver = saver
	}
}

// WithTimeout bounds each run. Zero means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.timeout = timeout
	}
}

// Options is the options for the Runner.
type Options struct {
	saver   checkpoint.Saver
	timeout time.Duration
}

// Runner is the interface for running agents.
type Runner interface {
	// Run sends message to the agent on threadID. The returned channel
	// carries the agent events followed by one runner.completion event.
	Run(
		ctx context.Context,
		threadID string,
		message model.Message,
		runOpts ...agent.RunOption,
	) (<-chan *event.Event, error)

	// RunText sends text as a user message on threadID and waits for the
	// final answer.
	RunText(ctx context.Context, threadID, text string, runOpts ...agent.RunOption) (string, error)
}

// runner runs agents.
type runner struct {
	appName string
	agent   agent.Agent
	saver   checkpoint.Saver
	timeout time.Duration

	threadLocks sync.Map // threadID -> *sync.Mutex
}

// NewRunner creates a new Runner. Without a checkpoint saver the runner keeps
// threads in memory.
func NewRunner(appName string, agent agent.Agent, opts ...Option) Runner {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	if options.saver == nil {
		options.saver = inmemory.NewSaver()
	}
	return &runner{
		appName: appName,
		agent:   agent,
		saver:   options.saver,
		timeout: options.timeout,
	}
}

// lockThread serializes runs of one thread so checkpoints form a chain.
func (r *runner) lockThread(threadID string) func() {
	v, _ := r.threadLocks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Run runs the agent.
func (r *runner) Run(
	ctx context.Context,
	threadID string,
	message model.Message,
	runOpts ...agent.RunOption,
) (<-chan *event.Event, error) {
	if threadID == "" {
		return nil, checkpoint.ErrThreadIDRequired
	}
	if r.agent == nil {
		return nil, errors.New("runner: agent is nil")
	}

	unlock := r.lockThread(threadID)
	var cancel context.CancelFunc = func() {}
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	}
	release := func() {
		cancel()
		unlock()
	}

	latest, err := r.saver.Get(ctx, threadID)
	if err != nil {
		release()
		return nil, fmt.Errorf("load checkpoint for thread %s: %w", threadID, err)
	}
	var history []model.Message
	var parentID string
	if latest != nil {
		history = latest.Messages
		parentID = latest.ID
	}

	invocationID := "invocation-" + uuid.New().String()
	invocation := &agent.Invocation{
		AgentName:    r.agent.Info().Name,
		InvocationID: invocationID,
		ThreadID:     threadID,
		Messages:     history,
		Message:      message,
		RunOptions:   agent.NewRunOptions(runOpts...),
	}
	ctx = agent.NewInvocationContext(ctx, invocation)
	ctx, span := trace.Tracer.Start(ctx, "invocation",
		oteltrace.WithAttributes(
			trace.KeyInvocationID.String(invocationID),
			trace.KeyThreadID.String(threadID),
		))

	agentEventCh, err := r.agent.Run(ctx, invocation)
	if err != nil {
		span.End()
		release()
		return nil, err
	}

	processedEventCh := make(chan *event.Event)
	go func() {
		defer close(processedEventCh)
		defer release()
		defer span.End()

		var runErr *model.ResponseError
		for agentEvent := range agentEventCh {
			if agentEvent.Response != nil && agentEvent.Error != nil && runErr == nil {
				runErr = agentEvent.Error
			}
			if !r.emit(ctx, processedEventCh, agentEvent) {
				// Keep draining so the agent goroutine can exit.
				for range agentEventCh {
				}
				return
			}
		}

		if runErr == nil && ctx.Err() == nil {
			if err := r.saveCheckpoint(ctx, invocation, parentID); err != nil {
				log.Errorf("failed to save checkpoint for thread %s: %v", threadID, err)
				span.RecordError(err)
				if !r.emit(ctx, processedEventCh, event.NewErrorEvent(
					invocationID, r.appName, ErrorTypeCheckpointError, err.Error(),
				)) {
					return
				}
			}
		} else if runErr != nil {
			log.Warnf("thread %s: run %s ended with %s; conversation not saved", threadID, invocationID, runErr.Error())
		}

		r.emit(ctx, processedEventCh, event.New(invocationID, r.appName, event.WithResponse(&model.Response{
			ID:        "runner-completion-" + uuid.New().String(),
			Object:    model.ObjectTypeRunnerCompletion,
			Created:   time.Now().Unix(),
			Done:      true,
			Timestamp: time.Now(),
		})))
	}()

	return processedEventCh, nil
}

func (r *runner) emit(ctx context.Context, ch chan<- *event.Event, e *event.Event) bool {
	select {
	case ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// saveCheckpoint stores history, the new message and everything the agent
// produced as the thread's next checkpoint.
func (r *runner) saveCheckpoint(ctx context.Context, invocation *agent.Invocation, parentID string) error {
	cp := checkpoint.New(invocation.ThreadID, invocation.Conversation(), checkpoint.Metadata{
		Source:       checkpoint.SourceRunner,
		InvocationID: invocation.InvocationID,
		AgentName:    invocation.AgentName,
	})
	cp.ParentID = parentID
	return r.saver.Put(ctx, cp)
}

// RunText runs text on threadID and returns the content of the final
// response. Error events become Go errors.
func (r *runner) RunText(ctx context.Context, threadID, text string, runOpts ...agent.RunOption) (string, error) {
	ch, err := r.Run(ctx, threadID, model.NewUserMessage(text), runOpts...)
	if err != nil {
		return "", err
	}
	return FinalAnswer(ctx, ch)
}

// FinalAnswer drains ch and returns the content of the last final response.
// The first error event is returned as an error.
func FinalAnswer(ctx context.Context, ch <-chan *event.Event) (string, error) {
	var (
		answer string
		runErr error
	)
	for e := range ch {
		if e == nil || e.Response == nil {
			continue
		}
		if e.Error != nil {
			if runErr == nil {
				runErr = fmt.Errorf("agent run failed: %w", e.Error)
			}
			continue
		}
		if !e.IsPartial && e.Object != model.ObjectTypeToolResponse && e.IsFinalResponse() {
			answer = e.Content()
		}
	}
	if runErr != nil {
		return "", runErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}
