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
	"time"

	embctx "github.com/embersai/embersd/services/context"
	"github.com/embersai/embersd/services/toolexec"
	"github.com/google/uuid"
)

// Tracker updates the entity store from a ToolResult, switching on the
// Outcome variant rather than the legacy string action.
type Tracker struct {
	store *embctx.Store
}

// NewTracker builds a Tracker over store.
func NewTracker(store *embctx.Store) *Tracker {
	return &Tracker{store: store}
}

// Track applies the entity-tracking rule for one successful ToolResult.
// No-op for status=error results.
func (t *Tracker) Track(conversationID string, turnIndex int64, result toolexec.ToolResult) error {
	if result.Status != "success" {
		return nil
	}

	switch {
	case result.Outcome.List != nil:
		return t.trackList(conversationID, turnIndex, *result.Outcome.List)
	case result.Outcome.Read != nil:
		return t.trackRead(conversationID, turnIndex, *result.Outcome.Read)
	case result.Outcome.Search != nil:
		return t.trackSearch(conversationID, turnIndex, *result.Outcome.Search)
	case result.Outcome.Mutation != nil:
		return t.trackMutation(conversationID, turnIndex, *result.Outcome.Mutation)
	case result.Outcome.Organize != nil:
		return t.trackOrganize(conversationID, turnIndex, *result.Outcome.Organize)
	}
	return nil
}

// trackOrganize upserts the (possibly newly created) category folders and
// moves every relocated file's entity in place, so that a later "open that
// receipt" resolves to its new path rather than a stale pre-organize one.
func (t *Tracker) trackOrganize(conversationID string, turnIndex int64, o toolexec.OrganizeOutcome) error {
	now := time.Now()
	for _, cat := range o.Categories {
		folder := filepath.Join(o.Directory, cat.Name)
		if _, err := t.upsertByPath(conversationID, folder, embctx.KindFolder, embctx.ProvenanceToolOutput, turnIndex, now); err != nil {
			return err
		}
		for _, m := range cat.Moved {
			if err := t.moveEntityInPlace(conversationID, m.Before, m.After, turnIndex, now); err != nil {
				return err
			}
		}
	}
	dirEntity, err := t.upsertByPath(conversationID, o.Directory, embctx.KindFolder, embctx.ProvenanceToolOutput, turnIndex, now)
	if err != nil {
		return err
	}
	return t.store.SetActiveFolder(conversationID, dirEntity.ID)
}

func (t *Tracker) trackList(conversationID string, turnIndex int64, o toolexec.ListOutcome) error {
	now := time.Now()

	dirEntity, err := t.upsertByPath(conversationID, o.Directory, embctx.KindFolder, embctx.ProvenanceListResult, turnIndex, now)
	if err != nil {
		return err
	}
	if err := t.store.SetActiveFolder(conversationID, dirEntity.ID); err != nil {
		return err
	}

	selectionIDs := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		kind := embctx.KindFile
		if item.IsDir {
			kind = embctx.KindFolder
		}
		e, err := t.upsertByPath(conversationID, item.Path, kind, embctx.ProvenanceListResult, turnIndex, now)
		if err != nil {
			return err
		}
		selectionIDs = append(selectionIDs, e.ID)
	}

	selection := embctx.Entity{
		ID:           uuid.NewString(),
		DisplayName:  filepath.Base(o.Directory),
		Kind:         embctx.KindSelection,
		Provenance:   embctx.ProvenanceListResult,
		Timestamp:    now,
		TurnIndex:    turnIndex,
		SelectionIDs: selectionIDs,
	}
	if err := t.store.UpsertEntity(conversationID, selection); err != nil {
		return err
	}
	return t.store.SetCurrentSelection(conversationID, selection.ID)
}

func (t *Tracker) trackRead(conversationID string, turnIndex int64, o toolexec.ReadOutcome) error {
	e, err := t.upsertByPath(conversationID, o.Path, embctx.KindFile, embctx.ProvenanceToolRead, turnIndex, time.Now())
	if err != nil {
		return err
	}
	return t.store.SetActiveFile(conversationID, e.ID)
}

func (t *Tracker) trackSearch(conversationID string, turnIndex int64, o toolexec.SearchOutcome) error {
	now := time.Now()
	selectionIDs := make([]string, 0, len(o.Matches))
	for _, m := range o.Matches {
		kind := embctx.KindFile
		if m.IsDir {
			kind = embctx.KindFolder
		}
		e, err := t.upsertByPath(conversationID, m.Path, kind, embctx.ProvenanceSearchResult, turnIndex, now)
		if err != nil {
			return err
		}
		selectionIDs = append(selectionIDs, e.ID)
	}
	selection := embctx.Entity{
		ID:           uuid.NewString(),
		DisplayName:  o.Pattern,
		Kind:         embctx.KindSelection,
		Provenance:   embctx.ProvenanceSearchResult,
		Timestamp:    now,
		TurnIndex:    turnIndex,
		SelectionIDs: selectionIDs,
	}
	if err := t.store.UpsertEntity(conversationID, selection); err != nil {
		return err
	}
	return t.store.SetCurrentSelection(conversationID, selection.ID)
}

func (t *Tracker) trackMutation(conversationID string, turnIndex int64, o toolexec.MutationOutcome) error {
	now := time.Now()
	switch o.Kind {
	case toolexec.MutationWrite, toolexec.MutationAppend:
		if len(o.After) == 0 {
			return nil
		}
		e, err := t.upsertByPath(conversationID, o.After[0], embctx.KindFile, embctx.ProvenanceToolOutput, turnIndex, now)
		if err != nil {
			return err
		}
		return t.store.SetActiveFile(conversationID, e.ID)

	case toolexec.MutationCreate:
		if len(o.After) == 0 {
			return nil
		}
		kind := embctx.KindFile
		if o.IsDirectory {
			kind = embctx.KindFolder
		}
		e, err := t.upsertByPath(conversationID, o.After[0], kind, embctx.ProvenanceToolOutput, turnIndex, now)
		if err != nil {
			return err
		}
		if o.IsDirectory {
			return t.store.SetActiveFolder(conversationID, e.ID)
		}
		return t.store.SetActiveFile(conversationID, e.ID)

	case toolexec.MutationMove:
		if len(o.Before) == 0 || len(o.After) == 0 {
			return nil
		}
		return t.moveEntityInPlace(conversationID, o.Before[0], o.After[0], turnIndex, now)

	case toolexec.MutationCopy:
		if len(o.After) == 0 {
			return nil
		}
		kind := embctx.KindFile
		if o.IsDirectory {
			kind = embctx.KindFolder
		}
		// After lists every path present post-op; the destination is last.
		_, err := t.upsertByPath(conversationID, o.After[len(o.After)-1], kind, embctx.ProvenanceToolCopy, turnIndex, now)
		return err

	case toolexec.MutationDelete:
		for _, path := range o.Before {
			if err := t.store.DeleteEntityByPath(conversationID, path); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// moveEntityInPlace mutates the existing entity's absolute_path and
// display_name rather than issuing a new id, so that a subsequent "it"
// still refers to the same entity across the rename/move.
func (t *Tracker) moveEntityInPlace(conversationID, before, after string, turnIndex int64, now time.Time) error {
	existing, err := t.store.GetEntityByPath(conversationID, before)
	if err != nil {
		e := embctx.Entity{
			ID:           uuid.NewString(),
			DisplayName:  filepath.Base(after),
			AbsolutePath: after,
			Kind:         embctx.KindFile,
			Provenance:   embctx.ProvenanceToolMove,
			Timestamp:    now,
			TurnIndex:    turnIndex,
		}
		if upErr := t.store.UpsertEntity(conversationID, e); upErr != nil {
			return upErr
		}
		return t.store.SetActiveFile(conversationID, e.ID)
	}

	if err := t.store.DeleteEntityByPath(conversationID, before); err != nil {
		return err
	}
	existing.AbsolutePath = after
	existing.DisplayName = filepath.Base(after)
	existing.Provenance = embctx.ProvenanceToolMove
	existing.Timestamp = now
	existing.TurnIndex = turnIndex
	if err := t.store.UpsertEntity(conversationID, existing); err != nil {
		return err
	}
	return t.store.SetActiveFile(conversationID, existing.ID)
}

func (t *Tracker) upsertByPath(conversationID, path string, kind embctx.Kind, provenance embctx.Provenance, turnIndex int64, now time.Time) (embctx.Entity, error) {
	existing, err := t.store.GetEntityByPath(conversationID, path)
	if err == nil {
		existing.Provenance = provenance
		existing.Timestamp = now
		existing.TurnIndex = turnIndex
		existing.VerifiedExists = embctx.ExistsTrue
		return existing, t.store.UpsertEntity(conversationID, existing)
	}

	e := embctx.Entity{
		ID:             uuid.NewString(),
		DisplayName:    filepath.Base(path),
		AbsolutePath:   path,
		Kind:           kind,
		Provenance:     provenance,
		Timestamp:      now,
		TurnIndex:      turnIndex,
		VerifiedExists: embctx.ExistsTrue,
	}
	return e, t.store.UpsertEntity(conversationID, e)
}
