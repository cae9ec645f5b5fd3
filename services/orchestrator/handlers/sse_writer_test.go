// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nonFlushingWriter satisfies http.ResponseWriter but not http.Flusher.
type nonFlushingWriter struct{}

func (nonFlushingWriter) Header() http.Header         { return http.Header{} }
func (nonFlushingWriter) Write(p []byte) (int, error) { return len(p), nil }
func (nonFlushingWriter) WriteHeader(int)             {}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(nonFlushingWriter{})
	assert.Error(t, err)
}

func TestSSEWriter_WriteChunk(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteChunk("hello "))
	require.NoError(t, w.WriteChunk("world"))
	require.NoError(t, w.WriteDone())

	body := rec.Body.String()
	assert.Equal(t, "data: hello \n\ndata: world\n\ndata: [DONE]\n\n", body)
}

func TestSSEWriter_WriteChunk_MultilineSplitsIntoDataLines(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteChunk("line one\nline two"))

	assert.Equal(t, "data: line one\ndata: line two\n\n", rec.Body.String())
}

func TestSSEWriter_WriteKeepAlive(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteKeepAlive())
	assert.Equal(t, ": ping\n\n", rec.Body.String())
}

func TestSetSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSSEHeaders(rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestChunkWords(t *testing.T) {
	chunks := chunkWords("Found 3 items in ~/Downloads:")
	assert.Equal(t, []string{"Found ", "3 ", "items ", "in ", "~/Downloads:"}, chunks)
}

func TestChunkWords_Empty(t *testing.T) {
	assert.Empty(t, chunkWords(""))
}
