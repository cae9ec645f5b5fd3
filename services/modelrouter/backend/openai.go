// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend serves chat completions through the OpenAI API (or any
// OpenAI-compatible endpoint, by overriding BaseURL).
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds a backend for model using apiKey. If baseURL is
// non-empty, it overrides the default OpenAI API endpoint.
func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAIBackend) Start(ctx context.Context) error { return nil }
func (o *OpenAIBackend) Stop(ctx context.Context) error  { return nil }

func (o *OpenAIBackend) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{Model: o.model, Messages: toOpenAIMessages(messages)}
	applyOpenAIParams(&req, params)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIBackend) ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error {
	req := openai.ChatCompletionRequest{Model: o.model, Messages: toOpenAIMessages(messages), Stream: true}
	applyOpenAIParams(&req, params)

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("openai chat stream: %w", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return callback(StreamEvent{Type: StreamEventError, Error: err.Error()})
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if err := callback(StreamEvent{Type: StreamEventToken, Content: content}); err != nil {
			return err
		}
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func applyOpenAIParams(req *openai.ChatCompletionRequest, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
}
