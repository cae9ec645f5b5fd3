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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// OllamaBackend talks to a local Ollama daemon over its HTTP chat API.
type OllamaBackend struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewOllamaBackend builds a backend for model served at baseURL (e.g.
// "http://localhost:11434"). requestsPerSecond throttles outbound chat
// requests.
func NewOllamaBackend(baseURL, model string, requestsPerSecond float64) *OllamaBackend {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &OllamaBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (o *OllamaBackend) Start(ctx context.Context) error {
	slog.Info("ollama backend started", "base_url", o.baseURL, "model", o.model)
	return nil
}

func (o *OllamaBackend) Stop(ctx context.Context) error { return nil }

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error,omitempty"`
}

func (o *OllamaBackend) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req := ollamaChatRequest{Model: o.model, Messages: toOllamaMessages(messages), Stream: false, Options: buildOptions(params)}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}
	return parsed.Message.Content, nil
}

func (o *OllamaBackend) ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}
	req := ollamaChatRequest{Model: o.model, Messages: toOllamaMessages(messages), Stream: true, Options: buildOptions(params)}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama stream request: %w", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return callback(StreamEvent{Type: StreamEventError, Error: chunk.Error})
		}
		if chunk.Message.Content != "" {
			if err := callback(StreamEvent{Type: StreamEventToken, Content: chunk.Message.Content}); err != nil {
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	return scanner.Err()
}

func toOllamaMessages(messages []Message) []ollamaChatMessage {
	out := make([]ollamaChatMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func buildOptions(params GenerationParams) map[string]any {
	opts := map[string]any{}
	if params.Temperature != nil {
		opts["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		opts["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		opts["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		opts["stop"] = params.Stop
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}
