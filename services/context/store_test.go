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
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGetEntity(t *testing.T) {
	s := newTestStore(t)
	e := Entity{
		ID:           uuid.NewString(),
		DisplayName:  "report.docx",
		AbsolutePath: "/home/u/report.docx",
		Kind:         KindFile,
		Provenance:   ProvenanceUserExplicit,
		Timestamp:    time.Unix(100, 0),
	}
	if err := s.UpsertEntity("conv1", e); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}

	got, err := s.GetEntity("conv1", e.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got.DisplayName != e.DisplayName {
		t.Fatalf("got %+v", got)
	}

	byPath, err := s.GetEntityByPath("conv1", e.AbsolutePath)
	if err != nil {
		t.Fatalf("GetEntityByPath: %v", err)
	}
	if byPath.ID != e.ID {
		t.Fatalf("path index mismatch")
	}
}

func TestGetEntityNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetEntity("conv1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestConversationsDoNotLeak(t *testing.T) {
	s := newTestStore(t)
	e := Entity{ID: uuid.NewString(), AbsolutePath: "/a", Kind: KindFile, Timestamp: time.Unix(1, 0)}
	if err := s.UpsertEntity("convA", e); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if _, err := s.GetEntity("convB", e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entity leaked across conversations: %v", err)
	}
}

func TestListEntitiesOrderedByRecencyAndFiltered(t *testing.T) {
	s := newTestStore(t)
	older := Entity{ID: uuid.NewString(), Kind: KindFile, Timestamp: time.Unix(1, 0)}
	newer := Entity{ID: uuid.NewString(), Kind: KindFile, Timestamp: time.Unix(2, 0)}
	folder := Entity{ID: uuid.NewString(), Kind: KindFolder, Timestamp: time.Unix(3, 0)}
	for _, e := range []Entity{older, newer, folder} {
		if err := s.UpsertEntity("conv1", e); err != nil {
			t.Fatalf("UpsertEntity: %v", err)
		}
	}

	all, err := s.ListEntities("conv1", "", 0)
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(all) != 3 || all[0].ID != folder.ID {
		t.Fatalf("unexpected order: %+v", all)
	}

	files, err := s.ListEntities("conv1", KindFile, 1)
	if err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if len(files) != 1 || files[0].ID != newer.ID {
		t.Fatalf("unexpected filtered list: %+v", files)
	}
}

func TestDeleteEntityRemovesPathIndex(t *testing.T) {
	s := newTestStore(t)
	e := Entity{ID: uuid.NewString(), AbsolutePath: "/a/b.txt", Kind: KindFile, Timestamp: time.Unix(1, 0)}
	if err := s.UpsertEntity("conv1", e); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if err := s.DeleteEntity("conv1", e.ID); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	if _, err := s.GetEntityByPath("conv1", e.AbsolutePath); !errors.Is(err, ErrNotFound) {
		t.Fatalf("path index survived delete: %v", err)
	}
}

func TestStatePointersAndTurnIndex(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetActiveFile("conv1", "fileA"); err != nil {
		t.Fatalf("SetActiveFile: %v", err)
	}
	if err := s.SetActiveFolder("conv1", "folderA"); err != nil {
		t.Fatalf("SetActiveFolder: %v", err)
	}
	if err := s.SetCurrentSelection("conv1", "selA"); err != nil {
		t.Fatalf("SetCurrentSelection: %v", err)
	}

	n, err := s.IncrementTurn("conv1")
	if err != nil {
		t.Fatalf("IncrementTurn: %v", err)
	}
	if n != 1 {
		t.Fatalf("want turn 1, got %d", n)
	}
	n, _ = s.IncrementTurn("conv1")
	if n != 2 {
		t.Fatalf("want turn 2, got %d", n)
	}

	st, err := s.GetState("conv1")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.LastActiveFileID != "fileA" || st.LastActiveFolderID != "folderA" || st.CurrentSelectionID != "selA" || st.TurnIndex != 2 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestPendingActionLifecycle(t *testing.T) {
	s := newTestStore(t)
	pa, err := s.GetPendingAction("conv1")
	if err != nil {
		t.Fatalf("GetPendingAction: %v", err)
	}
	if pa != nil {
		t.Fatalf("want nil pending action for new conversation, got %+v", pa)
	}

	want := PendingAction{ToolName: "delete_file", Reason: "confirm before delete"}
	if err := s.SetPendingAction("conv1", want); err != nil {
		t.Fatalf("SetPendingAction: %v", err)
	}
	got, err := s.GetPendingAction("conv1")
	if err != nil {
		t.Fatalf("GetPendingAction: %v", err)
	}
	if got == nil || got.ToolName != want.ToolName {
		t.Fatalf("got %+v", got)
	}

	err = s.SetPendingAction("conv1", PendingAction{ToolName: "move_file"})
	if !errors.Is(err, ErrPendingActionExists) {
		t.Fatalf("overlapping pending action should be a hard error, got %v", err)
	}

	if err := s.ClearPendingAction("conv1"); err != nil {
		t.Fatalf("ClearPendingAction: %v", err)
	}
	got, err = s.GetPendingAction("conv1")
	if err != nil {
		t.Fatalf("GetPendingAction after clear: %v", err)
	}
	if got != nil {
		t.Fatalf("pending action survived clear: %+v", got)
	}
}

func TestClearConversationRemovesEverything(t *testing.T) {
	s := newTestStore(t)
	e := Entity{ID: uuid.NewString(), AbsolutePath: "/x", Kind: KindFile, Timestamp: time.Unix(1, 0)}
	if err := s.UpsertEntity("conv1", e); err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if err := s.SetActiveFile("conv1", e.ID); err != nil {
		t.Fatalf("SetActiveFile: %v", err)
	}
	if err := s.SetPendingAction("conv1", PendingAction{ToolName: "move_file"}); err != nil {
		t.Fatalf("SetPendingAction: %v", err)
	}

	if err := s.ClearConversation("conv1"); err != nil {
		t.Fatalf("ClearConversation: %v", err)
	}

	if _, err := s.GetEntity("conv1", e.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entity survived clear: %v", err)
	}
	st, _ := s.GetState("conv1")
	if st.LastActiveFileID != "" {
		t.Fatalf("state survived clear: %+v", st)
	}
	pa, _ := s.GetPendingAction("conv1")
	if pa != nil {
		t.Fatalf("pending action survived clear: %+v", pa)
	}
}
