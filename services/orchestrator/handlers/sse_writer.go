// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// SSEWriter emits a chat reply as a sequence of SSE chunks followed by a
// terminal "[DONE]" marker. The wire format is deliberately minimal: one
// "data: <chunk>\n\n" event per chunk (a chunk containing newlines is sent
// as one "data:" line per source line), no event types, no envelope —
// chunking is a transport convenience, not a token-level streaming
// protocol (the worker model itself is called in blocking mode; see
// Service.Chat).
type SSEWriter interface {
	// WriteChunk sends one chunk of the reply.
	WriteChunk(content string) error

	// WriteDone sends the terminal marker. Must be called exactly once,
	// after the last WriteChunk.
	WriteDone() error

	// WriteKeepAlive sends an SSE comment line to hold the connection
	// open across a long tool or model call.
	WriteKeepAlive() error
}

// sseWriter implements SSEWriter over an http.ResponseWriter.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter wraps w for SSE writes. The caller must have already set
// SSE response headers (SetSSEHeaders) before constructing this.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

// SetSSEHeaders sets the headers required for a text/event-stream
// response and disables proxy buffering.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func (s *sseWriter) WriteChunk(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// SSE data lines cannot contain a bare newline; split multi-line
	// chunks into one "data:" line per source line per the wire format.
	for _, line := range strings.Split(content, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(s.w, "\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) WriteDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// chunkWords splits reply into word-ish chunks for streaming display: a
// minimal "emit chunks then stop" shape, not a true token-level protocol.
func chunkWords(reply string) []string {
	fields := strings.SplitAfter(reply, " ")
	chunks := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			chunks = append(chunks, f)
		}
	}
	if len(chunks) == 0 && reply != "" {
		chunks = []string{reply}
	}
	return chunks
}
