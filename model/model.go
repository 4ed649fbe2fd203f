//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides interfaces for working with LLMs.
package model

import "context"

// Model is the interface for all language models.
//
// Errors travel on two layers:
//
//  1. The returned error covers failures that prevent talking to the model at
//     all, e.g. a nil request or an invalid configuration.
//  2. Response.Error covers failures reported by the model service once the
//     conversation started, e.g. rate limits or a broken stream.
//
// Usage:
//
//	responseChan, err := m.GenerateContent(ctx, request)
//	if err != nil {
//	    return fmt.Errorf("failed to generate content: %w", err)
//	}
//	for response := range responseChan {
//	    if response.Error != nil {
//	        return fmt.Errorf("API error: %s", response.Error.Message)
//	    }
//	    // ...
//	}
type Model interface {
	// GenerateContent generates content from the given request.
	// The channel is closed once the model finished answering.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info contains basic information about a Model.
type Info struct {
	Name string
}
