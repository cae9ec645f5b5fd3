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

// toolDescriptor is the wire shape of one tool's schema and current
// enabled state, returned by GET /tools.
type toolDescriptor struct {
	ID          string                `json:"id"`
	Description string                `json:"description"`
	ReadOnly    bool                  `json:"read_only"`
	Enabled     bool                  `json:"enabled"`
	Parameters  []toolParamDescriptor `json:"parameters,omitempty"`
}

type toolParamDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// ListTools handles GET /tools.
func ListTools(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defs := svc.ToolDefinitions()
		out := make([]toolDescriptor, 0, len(defs))
		for _, d := range defs {
			params := make([]toolParamDescriptor, 0, len(d.Parameters))
			for _, p := range d.Parameters {
				params = append(params, toolParamDescriptor{
					Name:        p.Name,
					Type:        p.Type,
					Required:    p.Required,
					Description: p.Description,
				})
			}
			out = append(out, toolDescriptor{
				ID:          d.ID,
				Description: d.Description,
				ReadOnly:    d.ReadOnly,
				Enabled:     svc.Tools.IsEnabled(d.ID),
				Parameters:  params,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// ToggleTool handles PUT /tools/:id.
func ToggleTool(svc *orchestrator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		known := false
		for _, d := range svc.ToolDefinitions() {
			if d.ID == id {
				known = true
				break
			}
		}
		if !known {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool"})
			return
		}

		svc.SetToolEnabled(id, req.Enabled)
		c.JSON(http.StatusOK, gin.H{"id": id, "enabled": req.Enabled})
	}
}
