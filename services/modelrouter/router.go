// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modelrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/embersai/embersd/services/modelrouter/backend"
)

// RoutingDecision is the router's verdict for one message.
type RoutingDecision struct {
	ModelID    string
	ModelName  string
	Capability string
	Confidence float64
	Reason     string
}

// Router keeps exactly one small "router model" warm and asks it to pick
// a worker model and capability for each message.
type Router struct {
	registry *Registry

	mu   sync.Mutex
	last *RoutingDecision
}

// NewRouter builds a Router over registry. The registry's designated
// router descriptor's backend must already be started.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

type routerPickResponse struct {
	ModelID    string `json:"model_id"`
	Capability string `json:"capability"`
}

// Route asks the router model to pick a worker for message, falling back
// to the highest general-capability worker if the router is unparseable
// or names an unknown model, and to the router itself if no workers are
// registered.
func (r *Router) Route(ctx context.Context, message string) (RoutingDecision, error) {
	workers := r.registry.Workers()
	if len(workers) == 0 {
		routerDesc, ok := r.registry.Router()
		decision := RoutingDecision{Confidence: 0.5, Reason: "no other models available"}
		if ok {
			decision.ModelID = routerDesc.ID
			decision.ModelName = routerDesc.Name
		}
		r.setLast(decision)
		return decision, nil
	}

	routerDesc, ok := r.registry.Router()
	if !ok {
		decision := fallbackDecision(workers, "no router model registered")
		r.setLast(decision)
		return decision, nil
	}
	routerBackend, ok := r.registry.Backend(routerDesc.ID)
	if !ok {
		decision := fallbackDecision(workers, "router backend unavailable")
		r.setLast(decision)
		return decision, nil
	}

	prompt := buildRoutingPrompt(workers, message)
	raw, err := routerBackend.Chat(ctx, []backend.Message{
		{Role: "system", Content: "You choose which worker model should answer. Reply with JSON only: {\"model_id\": \"...\", \"capability\": \"...\"}."},
		{Role: "user", Content: prompt},
	}, backend.GenerationParams{})
	if err != nil {
		decision := fallbackDecision(workers, fmt.Sprintf("router inference failed: %v", err))
		r.setLast(decision)
		return decision, nil
	}

	pick, ok := parseRouterPick(raw)
	if !ok {
		decision := fallbackDecision(workers, "router response unparseable")
		r.setLast(decision)
		return decision, nil
	}
	picked, known := r.registry.Get(pick.ModelID)
	if !known {
		decision := fallbackDecision(workers, fmt.Sprintf("router named unknown model %q", pick.ModelID))
		r.setLast(decision)
		return decision, nil
	}

	decision := RoutingDecision{
		ModelID:    pick.ModelID,
		ModelName:  picked.Name,
		Capability: pick.Capability,
		Confidence: 0.9,
		Reason:     "router model selection",
	}
	r.setLast(decision)
	return decision, nil
}

// Last returns the most recent routing decision, or false if none has
// been made yet this process lifetime. Safe for concurrent use with Route.
func (r *Router) Last() (RoutingDecision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return RoutingDecision{}, false
	}
	return *r.last, true
}

func (r *Router) setLast(decision RoutingDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &decision
}

// BackendFor returns the started backend for modelID, as registered.
func (r *Router) BackendFor(modelID string) (backend.InferenceBackend, bool) {
	return r.registry.Backend(modelID)
}

func fallbackDecision(workers []Descriptor, reason string) RoutingDecision {
	best := workers[0]
	for _, w := range workers[1:] {
		if w.GeneralScore() > best.GeneralScore() {
			best = w
		}
	}
	return RoutingDecision{ModelID: best.ID, ModelName: best.Name, Capability: "general", Confidence: 0.6, Reason: reason}
}

func buildRoutingPrompt(workers []Descriptor, message string) string {
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	var b strings.Builder
	b.WriteString("Available workers:\n")
	for _, w := range workers {
		fmt.Fprintf(&b, "- %s: capabilities=%v\n", w.ID, w.Capabilities)
	}
	fmt.Fprintf(&b, "\nUser message: %s\n", message)
	return b.String()
}

func parseRouterPick(raw string) (routerPickResponse, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return routerPickResponse{}, false
	}
	var pick routerPickResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &pick); err != nil || pick.ModelID == "" {
		return routerPickResponse{}, false
	}
	return pick, true
}
