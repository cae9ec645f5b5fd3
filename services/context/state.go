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

import "time"

// ConversationState is the one row of "where are we" per conversation.
type ConversationState struct {
	LastActiveFileID   string `json:"last_active_file_id,omitempty"`
	LastActiveFolderID string `json:"last_active_folder_id,omitempty"`
	CurrentSelectionID string `json:"current_selection_id,omitempty"`
	TurnIndex          int64  `json:"turn_index"`
}

// PendingAction is the one-shot "I am about to do this if you confirm"
// slot. At most one exists per conversation at a time.
type PendingAction struct {
	ToolName  string         `json:"tool_name"`
	Params    map[string]any `json:"params"`
	Entity    *Entity        `json:"entity,omitempty"`
	Reason    string         `json:"reason"`
	Timestamp time.Time      `json:"timestamp"`

	// Alternatives holds candidates offered for disambiguation, so an
	// ordinal reply in the next turn can rebind to one of them.
	Alternatives []Entity `json:"alternatives,omitempty"`
}

// Confidence is the reference resolver's qualitative verdict.
type Confidence string

const (
	ConfidenceHigh      Confidence = "HIGH"
	ConfidenceMedium    Confidence = "MEDIUM"
	ConfidenceLow       Confidence = "LOW"
	ConfidenceAmbiguous Confidence = "AMBIGUOUS"
	ConfidenceNone      Confidence = "NONE"
)

// ResolvedReference is the output of the reference resolver.
type ResolvedReference struct {
	Entity       *Entity    `json:"entity,omitempty"`
	Confidence   Confidence `json:"confidence"`
	Score        float64    `json:"score"`
	Reason       string     `json:"reason"`
	Alternatives []Entity   `json:"alternatives,omitempty"`
}

// confidenceForScore maps a resolver score to a qualitative confidence
// per the fixed thresholds: >=0.9 HIGH, >=0.6 MEDIUM, >=0.3 LOW, else NONE.
func confidenceForScore(score float64) Confidence {
	switch {
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	case score >= 0.3:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}
