// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package context

import (
	"regexp"
	"sort"
	"strings"
)

// Resolver turns a user utterance into a ResolvedReference by walking an
// ordered pipeline over the conversation's tracked entities: the first
// stage that fires decides the result.
type Resolver struct {
	store *Store
}

// NewResolver builds a Resolver over store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

var explicitPathPattern = regexp.MustCompile(`(~(?:/[^\s"']+)+|/(?:[^\s"']+/)*[^\s"']+)`)

var ordinalWords = map[string]int{
	"first": 0, "primo": 0, "prima": 0,
	"second": 1, "secondo": 1, "seconda": 1,
	"third": 2, "terzo": 2, "terza": 2,
	"fourth": 3, "quarto": 3, "quarta": 3,
	"fifth": 4, "quinto": 4, "quinta": 4,
	"last": -1, "ultimo": -1, "ultima": -1,
}

var ordinalPattern = regexp.MustCompile(`\b(first|second|third|fourth|fifth|last|primo|prima|secondo|seconda|terzo|terza|quarto|quarta|quinto|quinta|ultimo|ultima)\b`)

var pronounPattern = regexp.MustCompile(`\b(it|that|this|the file|the folder|lo|la|quello|quella|questo|questa|il file|la cartella)\b`)

var folderPronounHint = regexp.MustCompile(`\b(folder|directory|cartella|the folder|la cartella)\b`)
var filePronounHint = regexp.MustCompile(`\b(file|the file|il file)\b`)

var recencyPattern = regexp.MustCompile(`\b(the one you just (created|made)|new file|appena creato|nuovo file)\b`)

// Resolve runs the ordered resolution pipeline for utterance within
// conversationID. preferredKind, if non-empty, narrows the recency and
// partial-name stages (4-5) to that kind; the pronoun stage uses only the
// kind hints in the utterance itself. isDestructive triggers the
// destructive downgrade on a pronoun-resolved HIGH result.
func (r *Resolver) Resolve(conversationID, utterance string, preferredKind Kind, isDestructive bool) (ResolvedReference, error) {
	lower := strings.ToLower(utterance)

	if path := explicitPathPattern.FindString(utterance); path != "" {
		entity, err := r.store.GetEntityByPath(conversationID, path)
		ref := ResolvedReference{Confidence: ConfidenceHigh, Score: 1.0, Reason: "explicit path in utterance"}
		if err == nil {
			ref.Entity = &entity
		} else {
			ref.Entity = &Entity{AbsolutePath: path, Kind: preferredKind}
		}
		return ref, nil
	}

	if m := ordinalPattern.FindString(lower); m != "" {
		if ref, ok, err := r.resolveOrdinal(conversationID, m); err != nil {
			return ResolvedReference{}, err
		} else if ok {
			return ref, nil
		}
	}

	if pronounPattern.MatchString(lower) {
		ref, err := r.resolvePronoun(conversationID, lower, isDestructive)
		if err != nil {
			return ResolvedReference{}, err
		}
		return ref, nil
	}

	if recencyPattern.MatchString(lower) {
		ref, err := r.resolveRecency(conversationID, preferredKind)
		if err != nil {
			return ResolvedReference{}, err
		}
		return ref, nil
	}

	return r.resolvePartialName(conversationID, utterance, preferredKind)
}

func (r *Resolver) resolveOrdinal(conversationID, word string) (ResolvedReference, bool, error) {
	st, err := r.store.GetState(conversationID)
	if err != nil {
		return ResolvedReference{}, false, err
	}
	if st.CurrentSelectionID == "" {
		return ResolvedReference{}, false, nil
	}
	selection, err := r.store.GetEntity(conversationID, st.CurrentSelectionID)
	if err != nil {
		return ResolvedReference{}, false, nil
	}

	idx, ok := ordinalWords[word]
	if !ok {
		return ResolvedReference{}, false, nil
	}
	if idx < 0 {
		idx = len(selection.SelectionIDs) - 1
	}

	if idx < 0 || idx >= len(selection.SelectionIDs) {
		alts := r.loadEntities(conversationID, selection.SelectionIDs)
		return ResolvedReference{
			Confidence:   ConfidenceLow,
			Score:        0.2,
			Reason:       "ordinal out of range for current selection",
			Alternatives: alts,
		}, true, nil
	}

	entity, err := r.store.GetEntity(conversationID, selection.SelectionIDs[idx])
	if err != nil {
		return ResolvedReference{}, false, nil
	}
	return ResolvedReference{
		Entity:     &entity,
		Confidence: ConfidenceHigh,
		Score:      1.0,
		Reason:     "ordinal over current selection",
	}, true, nil
}

func (r *Resolver) resolvePronoun(conversationID, lower string, isDestructive bool) (ResolvedReference, error) {
	st, err := r.store.GetState(conversationID)
	if err != nil {
		return ResolvedReference{}, err
	}

	wantFolder := folderPronounHint.MatchString(lower)
	wantFile := filePronounHint.MatchString(lower)

	tryID := func(id string) (*Entity, bool) {
		if id == "" {
			return nil, false
		}
		e, err := r.store.GetEntity(conversationID, id)
		if err != nil {
			return nil, false
		}
		return &e, true
	}

	var chosen *Entity
	var reason string
	switch {
	case wantFolder:
		if e, ok := tryID(st.LastActiveFolderID); ok {
			chosen, reason = e, "pronoun resolved to last active folder"
		}
	case wantFile:
		if e, ok := tryID(st.LastActiveFileID); ok {
			chosen, reason = e, "pronoun resolved to last active file"
		}
	}

	if chosen == nil {
		if e, ok := tryID(st.LastActiveFileID); ok {
			chosen, reason = e, "pronoun fell back to last active file"
		} else if e, ok := tryID(st.LastActiveFolderID); ok {
			chosen, reason = e, "pronoun fell back to last active folder"
		}
	}

	if chosen != nil {
		score := 1.0
		confidence := ConfidenceHigh
		if isDestructive {
			confidence = ConfidenceMedium
			score *= 0.9
		}
		return ResolvedReference{Entity: chosen, Confidence: confidence, Score: score, Reason: reason}, nil
	}

	if st.CurrentSelectionID != "" {
		selection, err := r.store.GetEntity(conversationID, st.CurrentSelectionID)
		if err == nil {
			alts := r.loadEntities(conversationID, selection.SelectionIDs)
			if len(alts) == 1 {
				score := 1.0
				confidence := ConfidenceHigh
				if isDestructive {
					confidence = ConfidenceMedium
					score *= 0.9
				}
				return ResolvedReference{Entity: &alts[0], Confidence: confidence, Score: score, Reason: "pronoun resolved to single-item selection"}, nil
			}
			return ResolvedReference{
				Confidence:   ConfidenceAmbiguous,
				Score:        0.5,
				Reason:       "pronoun resolved to a multi-item selection",
				Alternatives: alts,
			}, nil
		}
	}

	return ResolvedReference{Confidence: ConfidenceNone, Score: 0, Reason: "no active pointer to resolve pronoun against"}, nil
}

func (r *Resolver) resolveRecency(conversationID string, preferredKind Kind) (ResolvedReference, error) {
	entities, err := r.store.ListEntities(conversationID, preferredKind, 1)
	if err != nil {
		return ResolvedReference{}, err
	}
	if len(entities) == 0 {
		return ResolvedReference{Confidence: ConfidenceNone, Score: 0, Reason: "no entities tracked yet"}, nil
	}
	return ResolvedReference{
		Entity:     &entities[0],
		Confidence: ConfidenceHigh,
		Score:      0.95,
		Reason:     "most recent entity by recency phrase",
	}, nil
}

func (r *Resolver) resolvePartialName(conversationID, utterance string, preferredKind Kind) (ResolvedReference, error) {
	candidates := extractNameCandidates(utterance)
	if len(candidates) == 0 {
		return ResolvedReference{Confidence: ConfidenceNone, Score: 0, Reason: "no candidate name found in utterance"}, nil
	}

	entities, err := r.store.ListEntities(conversationID, preferredKind, 0)
	if err != nil {
		return ResolvedReference{}, err
	}

	type scored struct {
		entity Entity
		score  float64
	}
	var results []scored
	for _, e := range entities {
		best := 0.0
		for _, c := range candidates {
			if s := nameScore(c, e.DisplayName); s > best {
				best = s
			}
		}
		if best > 0 {
			results = append(results, scored{entity: e, score: best})
		}
	}

	if len(results) == 0 {
		return ResolvedReference{Confidence: ConfidenceNone, Score: 0, Reason: "no tracked entity matched candidate names"}, nil
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	top := results[0]
	ambiguous := false
	if len(results) > 1 {
		diff := top.score - results[1].score
		if diff < 0.1 && top.score > 0.7 && results[1].score > 0.7 {
			ambiguous = true
		}
	}

	if ambiguous {
		alts := make([]Entity, 0, len(results))
		for _, s := range results {
			alts = append(alts, s.entity)
		}
		return ResolvedReference{
			Confidence:   ConfidenceAmbiguous,
			Score:        top.score,
			Reason:       "multiple candidates scored within 0.1 of each other",
			Alternatives: alts,
		}, nil
	}

	e := top.entity
	return ResolvedReference{
		Entity:     &e,
		Confidence: confidenceForScore(top.score),
		Score:      top.score,
		Reason:     "partial name match",
	}, nil
}

func (r *Resolver) loadEntities(conversationID string, ids []string) []Entity {
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		if e, err := r.store.GetEntity(conversationID, id); err == nil {
			out = append(out, e)
		}
	}
	return out
}

var quotedPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
var extensionTokenPattern = regexp.MustCompile(`\b[\w.-]+\.[A-Za-z0-9]{1,8}\b`)
var afterArticlePattern = regexp.MustCompile(`\b(?:the|file|folder|il|la|cartella)\s+([\w.-]+)\b`)

func extractNameCandidates(utterance string) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		candidates = append(candidates, s)
	}

	for _, m := range quotedPattern.FindAllStringSubmatch(utterance, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	for _, m := range extensionTokenPattern.FindAllString(utterance, -1) {
		add(m)
	}
	for _, m := range afterArticlePattern.FindAllStringSubmatch(utterance, -1) {
		add(m[1])
	}
	return candidates
}

// nameScore scores candidate against name using fixed bands: exact=1.0,
// stem=0.95, prefix=0.85, substring=0.7, word-overlap=0.5+.
func nameScore(candidate, name string) float64 {
	c := strings.ToLower(strings.TrimSpace(candidate))
	n := strings.ToLower(strings.TrimSpace(name))
	if c == "" || n == "" {
		return 0
	}
	if c == n {
		return 1.0
	}

	cStem := strings.TrimSuffix(c, extOf(c))
	nStem := strings.TrimSuffix(n, extOf(n))
	if cStem == nStem && cStem != "" {
		return 0.95
	}

	if strings.HasPrefix(n, c) || strings.HasPrefix(c, n) {
		return 0.85
	}

	if strings.Contains(n, c) || strings.Contains(c, n) {
		return 0.7
	}

	cWords := strings.Fields(strings.ReplaceAll(strings.ReplaceAll(c, "_", " "), "-", " "))
	nWords := strings.Fields(strings.ReplaceAll(strings.ReplaceAll(n, "_", " "), "-", " "))
	if len(cWords) == 0 || len(nWords) == 0 {
		return 0
	}
	overlap := 0
	nSet := make(map[string]bool, len(nWords))
	for _, w := range nWords {
		nSet[w] = true
	}
	for _, w := range cWords {
		if nSet[w] {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	return 0.5 + 0.1*float64(overlap-1)
}

func extOf(s string) string {
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return ""
	}
	return s[idx:]
}
