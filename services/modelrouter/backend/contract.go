// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend defines the inference backend contract shared by every
// worker model adapter (Ollama, OpenAI, Anthropic), and implements each.
package backend

import "context"

// Message is one turn of conversation handed to a backend.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// GenerationParams controls sampling. Nil pointer fields mean "use the
// backend's default".
type GenerationParams struct {
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
	Stop        []string
}

// StreamEventType categorizes one streamed chunk.
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one chunk delivered to a StreamCallback.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Error   string
}

// StreamCallback receives streamed chunks in order; returning an error
// aborts the stream.
type StreamCallback func(event StreamEvent) error

// InferenceBackend is the contract every worker model adapter satisfies.
// Start/Stop bracket the backend's resident lifetime (e.g. a warm HTTP
// connection pool or a loaded local runtime); Chat and ChatStream serve
// individual turns and may be called concurrently once started.
type InferenceBackend interface {
	// Start prepares the backend for use. Safe to call once per process
	// lifetime; subsequent calls are no-ops.
	Start(ctx context.Context) error

	// Stop releases backend resources. Idempotent.
	Stop(ctx context.Context) error

	// Chat conducts a blocking conversation turn.
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)

	// ChatStream streams the response token by token.
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error
}
