// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers adapts the orchestrator Service to gin HTTP handlers
// for the daemon's local-loopback API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/embersai/embersd/services/orchestrator"
	"github.com/embersai/embersd/services/orchestrator/observability"
)

var tracer = otel.Tracer("github.com/embersai/embersd/services/orchestrator/handlers")

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
	Stream         bool   `json:"stream"`
}

// ChatResponse is the body of a non-streaming POST /chat reply.
type ChatResponse struct {
	ID            string `json:"id"`
	Content       string `json:"content"`
	Role          string `json:"role"`
	ModelUsed     string `json:"model_used,omitempty"`
	ModelName     string `json:"model_name,omitempty"`
	RoutingReason string `json:"routing_reason,omitempty"`
	ToolUsed      string `json:"tool_used,omitempty"`
}

// Chat handles POST /chat: a single turn, synchronous or streamed per
// the request's stream flag.
func Chat(svc *orchestrator.Service, metrics *observability.StreamingMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "Chat")
		defer span.End()

		var req ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid request body")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		if req.Stream {
			streamChat(c, svc, metrics, conversationID, req.Message)
			return
		}

		endpoint := observability.EndpointChatSync
		result, err := svc.Chat(ctx, conversationID, req.Message)
		if err != nil {
			span.RecordError(err)
			if metrics != nil {
				metrics.RecordRequest(endpoint, false)
				metrics.RecordError(endpoint, observability.ErrorCodeInternal)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
			return
		}
		if metrics != nil {
			metrics.RecordRequest(endpoint, true)
			metrics.RecordToolUsage(endpoint, result.ToolUsed)
		}

		c.JSON(http.StatusOK, ChatResponse{
			ID:            uuid.NewString(),
			Content:       result.Reply,
			Role:          "assistant",
			ModelUsed:     result.ModelID,
			ModelName:     result.ModelName,
			RoutingReason: result.RoutingReason,
			ToolUsed:      result.ToolUsed,
		})
	}
}

func streamChat(c *gin.Context, svc *orchestrator.Service, metrics *observability.StreamingMetrics, conversationID, message string) {
	endpoint := observability.EndpointChatStream
	if metrics != nil {
		metrics.StreamStarted(endpoint)
		defer metrics.StreamEnded(endpoint)
	}
	start := time.Now()

	SetSSEHeaders(c.Writer)
	c.Writer.WriteHeader(http.StatusOK)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		if metrics != nil {
			metrics.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		return
	}

	result, err := svc.Chat(c.Request.Context(), conversationID, message)
	if err != nil {
		if metrics != nil {
			metrics.RecordRequest(endpoint, false)
			metrics.RecordError(endpoint, observability.ErrorCodeLLMError)
			metrics.RecordStreamDuration(endpoint, time.Since(start).Seconds(), false)
		}
		writer.WriteChunk("Sorry, something went wrong processing that.")
		writer.WriteDone()
		return
	}

	for i, chunk := range chunkWords(result.Reply) {
		if i == 0 && metrics != nil {
			metrics.RecordTimeToFirstToken(endpoint, time.Since(start).Seconds())
		}
		if err := writer.WriteChunk(chunk); err != nil {
			if metrics != nil {
				metrics.RecordClientDisconnect(endpoint)
			}
			return
		}
	}
	writer.WriteDone()
	if metrics != nil {
		metrics.RecordRequest(endpoint, true)
		metrics.RecordStreamDuration(endpoint, time.Since(start).Seconds(), true)
		metrics.RecordToolUsage(endpoint, result.ToolUsed)
	}
}

// ChatClear handles POST /chat/clear.
func ChatClear(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ConversationID string `json:"conversation_id"`
		}
		_ = c.ShouldBindJSON(&req)
		if req.ConversationID != "" {
			if err := svc.ClearConversation(req.ConversationID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear conversation"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ChatRouting handles GET /chat/routing.
func ChatRouting(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, ok := svc.LastRouting()
		if !ok {
			c.JSON(http.StatusOK, gin.H{"routing": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"model_id":   decision.ModelID,
			"model_name": decision.ModelName,
			"capability": decision.Capability,
			"confidence": decision.Confidence,
			"reason":     decision.Reason,
		})
	}
}

// ChatToolsStatus handles GET /chat/tools.
func ChatToolsStatus(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defs := svc.ToolDefinitions()
		ids := make([]string, 0, len(defs))
		for _, d := range defs {
			ids = append(ids, d.ID)
		}
		c.JSON(http.StatusOK, gin.H{"tools": ids, "enabled": svc.ToolsEnabled()})
	}
}

// ChatToolsToggle handles POST /chat/tools/toggle.
func ChatToolsToggle(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		svc.SetAllToolsEnabled(req.Enabled)
		msg := "tools disabled"
		if req.Enabled {
			msg = "tools enabled"
		}
		c.JSON(http.StatusOK, gin.H{"enabled": req.Enabled, "message": msg})
	}
}
