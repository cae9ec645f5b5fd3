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

	"github.com/embersai/embersd/services/modelrouter"
	"github.com/embersai/embersd/services/orchestrator"
)

// ListModels handles GET /models. Actual weight download and on-disk
// caching happen in the model hub collaborator (out of scope); this
// surfaces the registry's view of what is known and its download state.
func ListModels(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Models())
	}
}

// DownloadModel handles POST /models/download. Starting the download
// itself is the model hub's job; this records the intent in the
// registry so GET /models/download/{id}/status has something to report.
func DownloadModel(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ModelID string `json:"model_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if _, ok := svc.ModelRegistry.Get(req.ModelID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown model"})
			return
		}
		if err := svc.ModelRegistry.SetDownloadState(req.ModelID, modelrouter.DownloadInProgress); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start download"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"model_id": req.ModelID, "state": modelrouter.DownloadInProgress})
	}
}

// CancelModelDownload handles POST /models/download/{id}/cancel.
func CancelModelDownload(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := svc.ModelRegistry.Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown model"})
			return
		}
		if err := svc.ModelRegistry.SetDownloadState(id, modelrouter.DownloadNotStarted); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel download"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"model_id": id, "state": modelrouter.DownloadNotStarted})
	}
}

// ModelDownloadStatus handles GET /models/download/{id}/status.
func ModelDownloadStatus(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		descriptor, ok := svc.ModelRegistry.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown model"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"model_id": id, "state": descriptor.DownloadState})
	}
}

// DeleteModel handles DELETE /models/{id}.
func DeleteModel(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := svc.ModelRegistry.Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown model"})
			return
		}
		if err := svc.ModelRegistry.Unregister(id); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete model"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
