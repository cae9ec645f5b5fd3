// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package turn

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	embctx "github.com/embersai/embersd/services/context"
	"github.com/embersai/embersd/services/formatter"
	"github.com/embersai/embersd/services/modelrouter"
	"github.com/embersai/embersd/services/modelrouter/backend"
	"github.com/embersai/embersd/services/rag"
	"github.com/embersai/embersd/services/toolexec"
)

const systemPrompt = "You are embersd, a local assistant that helps the user manage files on their own machine. Be concise."

const maxTranscriptMessages = 40

// TurnResult is what one HandleTurn call produces for the HTTP layer.
type TurnResult struct {
	Reply         string
	ToolUsed      string
	ModelID       string
	ModelName     string
	RoutingReason string
}

// Orchestrator runs the one-turn pipeline: pending-action check, intent
// plan, tool dispatch, entity tracking, and the fallback to model
// generation with RAG context and the action guard.
type Orchestrator struct {
	store     *embctx.Store
	planner   *Planner
	tracker   *Tracker
	tools     *toolexec.Registry
	router    *modelrouter.Router
	rag       rag.Provider
	formatter *formatter.Formatter
	guard     *formatter.Guard

	mu          sync.Mutex
	transcripts map[string][]backend.Message

	// turnLocks maps a conversation id to its *sync.Mutex, held for the
	// whole of HandleTurn so one conversation has one turn in flight.
	turnLocks sync.Map
}

// New builds an Orchestrator from its collaborators, constructed once at
// service start and shared by reference (no module-level mutable state).
func New(store *embctx.Store, planner *Planner, tracker *Tracker, tools *toolexec.Registry, router *modelrouter.Router, ragProvider rag.Provider, f *formatter.Formatter) *Orchestrator {
	return &Orchestrator{
		store:       store,
		planner:     planner,
		tracker:     tracker,
		tools:       tools,
		router:      router,
		rag:         ragProvider,
		formatter:   f,
		guard:       formatter.NewGuard(),
		transcripts: make(map[string][]backend.Message),
	}
}

// HandleTurn runs one chat turn for conversationID.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, message string) (TurnResult, error) {
	lock, _ := o.turnLocks.LoadOrStore(conversationID, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	if _, err := o.store.IncrementTurn(conversationID); err != nil {
		return TurnResult{}, fmt.Errorf("incrementing turn index: %w", err)
	}

	if pending, err := o.store.GetPendingAction(conversationID); err != nil {
		return TurnResult{}, fmt.Errorf("reading pending action: %w", err)
	} else if pending != nil {
		return o.handlePending(ctx, conversationID, message, *pending)
	}

	plan, err := o.planner.Plan(conversationID, message)
	if err != nil {
		return TurnResult{}, fmt.Errorf("planning intent: %w", err)
	}

	switch plan.Status {
	case PlanReady:
		return o.handleReady(conversationID, plan)
	case PlanNeedsDisambiguation:
		return o.handleDisambiguation(conversationID, plan)
	case PlanNeedsClarification:
		return TurnResult{Reply: plan.ClarifyPrompt}, nil
	default:
		return o.handleNoAction(ctx, conversationID, message)
	}
}

func (o *Orchestrator) handlePending(ctx context.Context, conversationID, message string, pending embctx.PendingAction) (TurnResult, error) {
	switch {
	case embctx.IsConfirmation(message):
		if err := o.store.ClearPendingAction(conversationID); err != nil {
			return TurnResult{}, err
		}
		return o.execute(conversationID, pending.ToolName, pending.Params)

	case embctx.IsCancellation(message):
		if err := o.store.ClearPendingAction(conversationID); err != nil {
			return TurnResult{}, err
		}
		return TurnResult{Reply: "Cancelled."}, nil

	default:
		if idx, ok := parseOrdinalSelection(message, len(pending.Alternatives)); ok {
			chosen := pending.Alternatives[idx]
			params := rebindPathParam(pending.ToolName, pending.Params, chosen.AbsolutePath)
			if err := o.store.ClearPendingAction(conversationID); err != nil {
				return TurnResult{}, err
			}
			if embctx.IsDestructive(pending.ToolName) {
				rebound := embctx.PendingAction{
					ToolName:  pending.ToolName,
					Params:    params,
					Entity:    &chosen,
					Reason:    "destructive action needs confirmation",
					Timestamp: time.Now(),
				}
				if err := o.store.SetPendingAction(conversationID, rebound); err != nil {
					return TurnResult{}, err
				}
				return TurnResult{Reply: confirmationPrompt(pending.ToolName, params)}, nil
			}
			return o.execute(conversationID, pending.ToolName, params)
		}
		return TurnResult{Reply: "Please reply yes, no, or pick a number from the list."}, nil
	}
}

func (o *Orchestrator) handleReady(conversationID string, plan Plan) (TurnResult, error) {
	if !o.tools.IsEnabled(plan.Tool) {
		return TurnResult{Reply: fmt.Sprintf("The %s tool is currently disabled.", plan.Tool)}, nil
	}

	if embctx.IsDestructive(plan.Tool) {
		needsConfirm := true
		if plan.Reference != nil {
			needsConfirm = embctx.RequiresConfirmation(plan.Tool, *plan.Reference)
		}
		if needsConfirm {
			pending := embctx.PendingAction{
				ToolName:  plan.Tool,
				Params:    plan.Params,
				Reason:    "destructive action needs confirmation",
				Timestamp: time.Now(),
			}
			if plan.Reference != nil {
				pending.Entity = plan.Reference.Entity
			}
			if err := o.store.SetPendingAction(conversationID, pending); err != nil {
				return TurnResult{}, err
			}
			return TurnResult{Reply: confirmationPrompt(plan.Tool, plan.Params)}, nil
		}
	}

	return o.execute(conversationID, plan.Tool, plan.Params)
}

func (o *Orchestrator) handleDisambiguation(conversationID string, plan Plan) (TurnResult, error) {
	pending := embctx.PendingAction{
		ToolName:     plan.Tool,
		Params:       plan.Params,
		Reason:       "multiple candidates match",
		Timestamp:    time.Now(),
		Alternatives: plan.Alternatives,
	}
	if err := o.store.SetPendingAction(conversationID, pending); err != nil {
		return TurnResult{}, err
	}

	var b strings.Builder
	b.WriteString("Which one did you mean?")
	for i, alt := range plan.Alternatives {
		fmt.Fprintf(&b, "\n%d) %s", i+1, alt.DisplayName)
	}
	return TurnResult{Reply: b.String()}, nil
}

func (o *Orchestrator) execute(conversationID, toolName string, params map[string]any) (TurnResult, error) {
	result := o.dispatch(toolName, params)

	turnState, err := o.store.GetState(conversationID)
	if err != nil {
		return TurnResult{}, err
	}
	if err := o.tracker.Track(conversationID, turnState.TurnIndex, result); err != nil {
		return TurnResult{}, fmt.Errorf("tracking entities: %w", err)
	}

	return TurnResult{Reply: o.formatter.Format(result), ToolUsed: toolName}, nil
}

func (o *Orchestrator) dispatch(toolName string, params map[string]any) toolexec.ToolResult {
	switch toolName {
	case "read_file":
		return o.tools.ReadFile(str(params, "path"), intOr(params, "max_lines", 200), int64Or(params, "max_bytes", 1<<20))
	case "list_directory":
		return o.tools.ListDirectory(str(params, "path"), boolOr(params, "show_hidden", false))
	case "write_file":
		return o.tools.WriteFile(str(params, "path"), []byte(str(params, "content")), boolOr(params, "append", false))
	case "move_file":
		return o.tools.MoveFile(str(params, "source"), str(params, "destination"))
	case "copy_file":
		return o.tools.CopyFile(str(params, "source"), str(params, "destination"))
	case "delete_file":
		return o.tools.DeleteFile(str(params, "path"))
	case "delete_by_pattern":
		return o.tools.DeleteByPattern(str(params, "directory"), str(params, "pattern"))
	case "create_directory":
		return o.tools.CreateDirectory(str(params, "path"))
	case "search_files":
		return o.tools.SearchFiles(str(params, "directory"), str(params, "pattern"), intOr(params, "max_results", 100))
	case "system_info":
		return o.tools.SystemInfo()
	case "organize_files":
		return o.tools.OrganizeFiles(str(params, "directory"))
	default:
		return toolexec.ToolResult{Status: "error", Err: fmt.Sprintf("unknown tool %q", toolName)}
	}
}

func (o *Orchestrator) handleNoAction(ctx context.Context, conversationID, message string) (TurnResult, error) {
	decision, err := o.router.Route(ctx, message)
	if err != nil {
		return TurnResult{}, fmt.Errorf("routing message: %w", err)
	}

	messages := o.appendTranscript(conversationID, backend.Message{Role: "user", Content: message})

	system := systemPrompt
	if ragProvider := o.currentRAGProvider(); ragProvider != nil {
		if context, found, err := ragProvider.RetrieveContext(ctx, message); err == nil && found {
			system = systemPrompt + "\n\nRelevant context:\n" + context
		}
	}

	chatMessages := append([]backend.Message{{Role: "system", Content: system}}, messages...)

	reply := "I need more information to complete that action. Could you specify the exact file path or which file you mean?"
	if b, ok := o.workerBackend(decision.ModelID); ok {
		raw, err := b.Chat(ctx, chatMessages, backend.GenerationParams{})
		if err == nil {
			reply = o.guard.Apply(raw)
		}
	}

	o.appendTranscript(conversationID, backend.Message{Role: "assistant", Content: reply})

	return TurnResult{
		Reply:         reply,
		ModelID:       decision.ModelID,
		ModelName:     decision.ModelName,
		RoutingReason: decision.Reason,
	}, nil
}

func (o *Orchestrator) workerBackend(modelID string) (backend.InferenceBackend, bool) {
	if modelID == "" {
		return nil, false
	}
	return o.registryBackend(modelID)
}

// registryBackend looks the backend up through the router's registry;
// Route's decision names only a model id, never the backend directly.
func (o *Orchestrator) registryBackend(modelID string) (backend.InferenceBackend, bool) {
	return o.router.BackendFor(modelID)
}

func (o *Orchestrator) appendTranscript(conversationID string, msg backend.Message) []backend.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := append(o.transcripts[conversationID], msg)
	if len(t) > maxTranscriptMessages {
		t = t[len(t)-maxTranscriptMessages:]
	}
	o.transcripts[conversationID] = t
	out := make([]backend.Message, len(t))
	copy(out, t)
	return out
}

// SetRAGProvider swaps the orchestrator's RAG collaborator, letting the
// HTTP layer flip memory retrieval on and off at runtime without
// reconstructing the orchestrator. Passing nil disables RAG context.
func (o *Orchestrator) SetRAGProvider(ragProvider rag.Provider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rag = ragProvider
}

func (o *Orchestrator) currentRAGProvider() rag.Provider {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rag
}

// ClearConversation drops the entity store and in-memory transcript for
// conversationID.
func (o *Orchestrator) ClearConversation(conversationID string) error {
	o.mu.Lock()
	delete(o.transcripts, conversationID)
	o.mu.Unlock()
	return o.store.ClearConversation(conversationID)
}

func confirmationPrompt(tool string, params map[string]any) string {
	switch tool {
	case "move_file":
		return fmt.Sprintf("Rename %s → %s? (yes/no)", str(params, "source"), str(params, "destination"))
	case "delete_by_pattern":
		return fmt.Sprintf("Delete files matching %s in %s? (yes/no)", str(params, "pattern"), str(params, "directory"))
	case "organize_files":
		return fmt.Sprintf("Organize %s into category folders? (yes/no)", str(params, "directory"))
	default:
		return fmt.Sprintf("Delete %s? (yes/no)", str(params, "path"))
	}
}

func rebindPathParam(toolName string, params map[string]any, path string) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	switch {
	case toolName == "organize_files":
		out["directory"] = path
	case out["destination"] != nil:
		out["source"] = path
	default:
		out["path"] = path
	}
	return out
}

func parseOrdinalSelection(message string, count int) (int, bool) {
	message = strings.TrimSpace(message)
	n, err := strconv.Atoi(message)
	if err != nil || n < 1 || n > count {
		return 0, false
	}
	return n - 1, true
}

func str(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intOr(params map[string]any, key string, fallback int) int {
	if v, ok := params[key].(int); ok {
		return v
	}
	return fallback
}

func int64Or(params map[string]any, key string, fallback int64) int64 {
	if v, ok := params[key].(int64); ok {
		return v
	}
	return fallback
}

func boolOr(params map[string]any, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}
