// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package context tracks what a conversation is talking about: which
// files and folders it has touched, which one "it" currently means, and
// what action is waiting on a yes/no before it runs.
package context

import "time"

// Kind classifies what an Entity represents.
type Kind string

const (
	KindFile       Kind = "FILE"
	KindFolder     Kind = "FOLDER"
	KindSelection  Kind = "SELECTION"
	KindIndex      Kind = "INDEX"
	KindToolResult Kind = "TOOL_RESULT"
)

// Provenance records how an Entity entered the conversation.
type Provenance string

const (
	ProvenanceUserExplicit Provenance = "USER_EXPLICIT"
	ProvenanceSearchResult Provenance = "SEARCH_RESULT"
	ProvenanceListResult   Provenance = "LIST_RESULT"
	ProvenanceToolOutput   Provenance = "TOOL_OUTPUT"
	ProvenanceToolRead     Provenance = "TOOL_READ"
	ProvenanceToolMove     Provenance = "TOOL_MOVE"
	ProvenanceToolCopy     Provenance = "TOOL_COPY"
	ProvenanceInferred     Provenance = "INFERRED"
)

// Metadata holds optional facts about the filesystem object an Entity
// refers to, gathered opportunistically by whichever tool touched it.
type Metadata struct {
	Size      int64  `json:"size,omitempty"`
	ModTime   int64  `json:"mtime,omitempty"`
	Hash      string `json:"hash,omitempty"`
	MIME      string `json:"mime,omitempty"`
	ItemCount int    `json:"item_count,omitempty"`
}

// Existence is a tri-state for whether an Entity's path is still present
// on disk, since the last check.
type Existence string

const (
	ExistsUnknown Existence = "unchecked"
	ExistsTrue    Existence = "known-true"
	ExistsFalse   Existence = "known-false"
)

// Entity represents a tracked file, folder, or selection within one
// conversation. Its id is stable across rename and move; only
// absolute_path and display_name are rewritten in place.
type Entity struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name"`
	AbsolutePath   string     `json:"absolute_path"`
	Kind           Kind       `json:"kind"`
	Provenance     Provenance `json:"provenance"`
	Timestamp      time.Time  `json:"timestamp"`
	TurnIndex      int64      `json:"turn_index"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	SelectionIDs   []string   `json:"selection_ids,omitempty"`
	VerifiedExists Existence  `json:"verified_exists"`
}
