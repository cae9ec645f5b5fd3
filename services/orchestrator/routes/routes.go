// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/embersai/embersd/services/orchestrator"
	"github.com/embersai/embersd/services/orchestrator/handlers"
	"github.com/embersai/embersd/services/orchestrator/observability"
)

// SetupRoutes registers the daemon's local-loopback HTTP API on router,
// backed by svc.
func SetupRoutes(router *gin.Engine, svc *orchestrator.Service, metrics *observability.StreamingMetrics) {
	router.Use(otelgin.Middleware("embersd"))

	router.GET("/health", handlers.Health)

	router.POST("/chat", handlers.Chat(svc, metrics))
	router.POST("/chat/clear", handlers.ChatClear(svc))
	router.GET("/chat/routing", handlers.ChatRouting(svc))
	router.GET("/chat/tools", handlers.ChatToolsStatus(svc))
	router.POST("/chat/tools/toggle", handlers.ChatToolsToggle(svc))

	router.GET("/tools", handlers.ListTools(svc))
	router.PUT("/tools/:id", handlers.ToggleTool(svc))

	router.GET("/memory/status", handlers.MemoryStatus(svc))
	router.POST("/memory/toggle", handlers.MemoryToggle(svc))
	router.POST("/memory/reindex", handlers.MemoryReindex(svc))

	router.GET("/models", handlers.ListModels(svc))
	router.POST("/models/download", handlers.DownloadModel(svc))
	router.POST("/models/download/:id/cancel", handlers.CancelModelDownload(svc))
	router.GET("/models/download/:id/status", handlers.ModelDownloadStatus(svc))
	router.DELETE("/models/:id", handlers.DeleteModel(svc))
}
