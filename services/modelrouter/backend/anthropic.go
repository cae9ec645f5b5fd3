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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend serves chat completions through the Claude Messages API.
type AnthropicBackend struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicBackend builds a backend for model using apiKey.
func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicBackend{client: &client, model: anthropic.Model(model)}
}

func (a *AnthropicBackend) Start(ctx context.Context) error { return nil }
func (a *AnthropicBackend) Stop(ctx context.Context) error  { return nil }

func (a *AnthropicBackend) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	system, turns := splitSystemMessage(messages)

	req := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokensOrDefault(params.MaxTokens),
		Messages:  toAnthropicMessages(turns),
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	applyAnthropicParams(&req, params)

	resp, err := a.client.Messages.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("anthropic: empty response")
	}
	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

func (a *AnthropicBackend) ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error {
	system, turns := splitSystemMessage(messages)

	req := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokensOrDefault(params.MaxTokens),
		Messages:  toAnthropicMessages(turns),
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	applyAnthropicParams(&req, params)

	stream := a.client.Messages.NewStreaming(ctx, req)
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text := delta.Delta.Text
		if text == "" {
			continue
		}
		if err := callback(StreamEvent{Type: StreamEventToken, Content: text}); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return callback(StreamEvent{Type: StreamEventError, Error: err.Error()})
	}
	return nil
}

// splitSystemMessage pulls the first system-role message out, since the
// Messages API takes system as a top-level field, not a message turn.
func splitSystemMessage(messages []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" && system == "" {
			system = m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func applyAnthropicParams(req *anthropic.MessageNewParams, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = anthropic.Float(float64(*params.Temperature))
	}
	if params.TopP != nil {
		req.TopP = anthropic.Float(float64(*params.TopP))
	}
	if len(params.Stop) > 0 {
		req.StopSequences = params.Stop
	}
}

func maxTokensOrDefault(maxTokens *int) int64 {
	if maxTokens != nil {
		return int64(*maxTokens)
	}
	return 1024
}
