// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the turn orchestrator, context store,
// tool registry, model router, and RAG provider into the single Service
// the HTTP layer calls. It owns no business logic of its own — every
// method here delegates to a collaborator constructed once at startup.
package orchestrator

import (
	"context"
	"sync/atomic"

	embctx "github.com/embersai/embersd/services/context"
	"github.com/embersai/embersd/services/modelrouter"
	"github.com/embersai/embersd/services/rag"
	"github.com/embersai/embersd/services/toolexec"
	"github.com/embersai/embersd/services/turn"
)

// Service is the daemon's single entry point for the HTTP handlers. It is
// constructed once at process start and shared by reference; it holds no
// mutable state of its own beyond the RAG on/off flag (everything else
// lives in its collaborators, each responsible for its own concurrency).
type Service struct {
	Store         *embctx.Store
	Tools         *toolexec.Registry
	ModelRegistry *modelrouter.Registry
	Router        *modelrouter.Router
	Turn          *turn.Orchestrator

	ragProvider rag.Provider
	ragEnabled  atomic.Bool
}

// New builds a Service from its already-constructed collaborators.
func New(store *embctx.Store, tools *toolexec.Registry, modelRegistry *modelrouter.Registry, router *modelrouter.Router, turnOrchestrator *turn.Orchestrator, ragProvider rag.Provider) *Service {
	s := &Service{
		Store:         store,
		Tools:         tools,
		ModelRegistry: modelRegistry,
		Router:        router,
		Turn:          turnOrchestrator,
		ragProvider:   ragProvider,
	}
	s.ragEnabled.Store(true)
	return s
}

// Chat runs one turn for conversationID and returns its result.
func (s *Service) Chat(ctx context.Context, conversationID, message string) (turn.TurnResult, error) {
	return s.Turn.HandleTurn(ctx, conversationID, message)
}

// ClearConversation drops all entity-store and transcript state for
// conversationID.
func (s *Service) ClearConversation(conversationID string) error {
	return s.Turn.ClearConversation(conversationID)
}

// LastRouting returns the most recent RoutingDecision, if any turn has
// routed to a model yet this process lifetime.
func (s *Service) LastRouting() (modelrouter.RoutingDecision, bool) {
	return s.Router.Last()
}

// ToolDefinitions returns every registered operation's schema, enabled or
// not; the enabled state itself is read separately via Tools.IsEnabled.
func (s *Service) ToolDefinitions() []toolexec.OpDefinition {
	return s.Tools.Definitions()
}

// SetToolEnabled toggles a single operation on or off.
func (s *Service) SetToolEnabled(opID string, enabled bool) {
	s.Tools.SetEnabled(opID, enabled)
}

// ToolsEnabled reports whether any registered tool is currently enabled,
// the coarse on/off switch surfaced at GET/POST /chat/tools*.
func (s *Service) ToolsEnabled() bool {
	for _, def := range s.Tools.Definitions() {
		if s.Tools.IsEnabled(def.ID) {
			return true
		}
	}
	return false
}

// SetAllToolsEnabled toggles every registered operation at once.
func (s *Service) SetAllToolsEnabled(enabled bool) {
	for _, def := range s.Tools.Definitions() {
		s.Tools.SetEnabled(def.ID, enabled)
	}
}

// MemoryEnabled reports whether RAG retrieval is currently on.
func (s *Service) MemoryEnabled() bool {
	return s.ragEnabled.Load()
}

// SetMemoryEnabled toggles RAG retrieval. When disabled, HandleTurn's
// fallback to model generation proceeds without retrieved context.
func (s *Service) SetMemoryEnabled(enabled bool) {
	s.ragEnabled.Store(enabled)
	if enabled {
		s.Turn.SetRAGProvider(s.ragProvider)
	} else {
		s.Turn.SetRAGProvider(nil)
	}
}

// Models returns every registered model descriptor.
func (s *Service) Models() []modelrouter.Descriptor {
	return s.ModelRegistry.All()
}
