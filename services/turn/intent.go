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
	"path/filepath"
	"strings"
	"sync"

	embctx "github.com/embersai/embersd/services/context"
)

const (
	embKindFile   = embctx.KindFile
	embKindFolder = embctx.KindFolder
)

// Planner is the rule-based intent classifier: an ordered list of named
// families, each independently testable, tried in turn until one
// recognizes the utterance.
type Planner struct {
	store            *embctx.Store
	resolver         *embctx.Resolver
	home             string
	wellKnownFolders map[string]string
	families         []family

	// conversationID and toolHint are scoped to the current Plan call.
	// Turns for one conversation are serialized by the turn orchestrator,
	// but one Planner serves every conversation, so mu is held for the
	// whole Plan call.
	mu             sync.Mutex
	conversationID string
	toolHint       string
}

// NewPlanner builds a Planner over store, with home and wellKnownFolders
// resolved once at startup (pkg/config.Load does this).
func NewPlanner(store *embctx.Store, home string, wellKnownFolders map[string]string) *Planner {
	return &Planner{
		store:            store,
		resolver:         embctx.NewResolver(store),
		home:             home,
		wellKnownFolders: wellKnownFolders,
		families:         families(),
	}
}

// Plan classifies utterance within conversationID against the ordered
// family list and returns the first family's verdict, or PlanNoAction
// if nothing matched.
func (p *Planner) Plan(conversationID, utterance string) (Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conversationID = conversationID
	p.toolHint = ""
	for _, f := range p.families {
		if plan, ok := f.match(p, utterance); ok {
			return plan, nil
		}
	}
	return Plan{Status: PlanNoAction}, nil
}

// resolvePathLike tries, in order: an explicit path in the utterance, a
// well-known-folder alias, the last-directory-context subpath, then full
// entity resolution. It returns the resolved absolute path (empty if
// nothing resolved) and the reference that produced it, carrying how it
// was resolved — an explicit path is the one origin that exempts a
// destructive plan from confirmation.
func (p *Planner) resolvePathLike(utterance string, preferredKind embctx.Kind) (string, *embctx.ResolvedReference) {
	if path, ok := extractExplicitPath(utterance); ok {
		expanded := expandHome(path, p.home)
		return expanded, explicitPathReference(expanded, preferredKind)
	}
	if path, ok := p.extractWellKnownFolder(utterance); ok {
		return path, nil
	}
	if subpath, ok := p.resolveLastDirectorySubpath(utterance); ok {
		return subpath, nil
	}

	isDestructive := embctx.IsDestructive(p.currentToolHint())
	ref, err := p.resolver.Resolve(p.conversationID, utterance, preferredKind, isDestructive)
	if err != nil || ref.Entity == nil {
		return "", &ref
	}
	return ref.Entity.AbsolutePath, &ref
}

// currentToolHint lets resolvePathLike pass the right is_destructive flag
// to the resolver without every family having to compute it themselves.
// Families that call resolvePathLike for a destructive op set this first.
func (p *Planner) currentToolHint() string { return p.toolHint }

// resolveLastDirectorySubpath resolves a quoted name in the utterance
// (e.g. "notes.txt" in quotes) to a child of the most recently listed
// directory. Unquoted names are not used here.
func (p *Planner) resolveLastDirectorySubpath(utterance string) (string, bool) {
	dir := p.lastListedDirectory()
	if dir == "" {
		return "", false
	}
	token, ok := extractQuotedOrBareToken(utterance)
	if !ok {
		return "", false
	}
	candidate := filepath.Join(dir, token)
	if candidate == dir {
		return "", false
	}
	return candidate, true
}

func (p *Planner) lastListedDirectory() string {
	st, err := p.store.GetState(p.conversationID)
	if err != nil || st.LastActiveFolderID == "" {
		return ""
	}
	e, err := p.store.GetEntity(p.conversationID, st.LastActiveFolderID)
	if err != nil {
		return ""
	}
	return e.AbsolutePath
}

func explicitPathReference(path string, kind embctx.Kind) *embctx.ResolvedReference {
	return &embctx.ResolvedReference{
		Entity:     &embctx.Entity{AbsolutePath: path, Kind: kind},
		Confidence: embctx.ConfidenceHigh,
		Score:      1.0,
		Reason:     "explicit path in utterance",
	}
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
