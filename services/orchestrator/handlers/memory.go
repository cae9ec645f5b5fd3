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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/embersai/embersd/services/orchestrator"
)

// MemoryStatus handles GET /memory/status. The document index itself
// (parsing, chunking, embeddings, the vector store) is an external
// collaborator; this only reports whether the orchestrator is currently
// consulting it.
func MemoryStatus(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"enabled": svc.MemoryEnabled()})
	}
}

// MemoryToggle handles POST /memory/toggle.
func MemoryToggle(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		svc.SetMemoryEnabled(req.Enabled)
		c.JSON(http.StatusOK, gin.H{"enabled": req.Enabled})
	}
}

// MemoryReindex handles POST /memory/reindex. Reindexing runs entirely
// inside the document index collaborator; the orchestrator only
// acknowledges the request was received, since it has no visibility
// into index progress.
func MemoryReindex(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !svc.MemoryEnabled() {
			c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": "memory disabled"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	}
}
