// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package turn implements the one-turn orchestration pipeline: pending
// action interpretation, rule-based intent planning, tool dispatch,
// entity tracking, and the fallback to model generation.
package turn

import (
	embctx "github.com/embersai/embersd/services/context"
)

// PlanStatus is the outcome of the intent planner for one utterance.
type PlanStatus string

const (
	PlanReady               PlanStatus = "READY"
	PlanNeedsDisambiguation PlanStatus = "NEEDS_DISAMBIGUATION"
	PlanNeedsClarification  PlanStatus = "NEEDS_CLARIFICATION"
	PlanNoAction            PlanStatus = "NO_ACTION"
)

// Plan is what the intent planner hands back to the orchestrator.
type Plan struct {
	Status PlanStatus

	// Tool is the toolexec operation id (e.g. "read_file"), set when
	// Status is PlanReady, PlanNeedsDisambiguation, or
	// PlanNeedsClarification (as a hint).
	Tool   string
	Params map[string]any

	// Reference carries the resolver's verdict that produced Params'
	// path/source/destination, when one was consulted. An explicit path
	// yields a HIGH reference with reason "explicit path in utterance";
	// plans built from a well-known folder or a last-listed-directory
	// subpath, and write_file/create_directory plans, carry nil.
	Reference *embctx.ResolvedReference

	// Alternatives is the candidate list offered on disambiguation.
	Alternatives []embctx.Entity

	// ClarifyField names the missing piece (e.g. "destination").
	ClarifyField  string
	ClarifyPrompt string
}
