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
	"testing"

	embctx "github.com/embersai/embersd/services/context"
	"github.com/stretchr/testify/require"
)

func newTestPlanner(t *testing.T) (*Planner, *embctx.Store) {
	t.Helper()
	store, err := embctx.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	wellKnown := map[string]string{
		"home":      "/home/user",
		"desktop":   "/home/user/Desktop",
		"downloads": "/home/user/Downloads",
		"documents": "/home/user/Documents",
	}
	return NewPlanner(store, "/home/user", wellKnown), store
}

func TestMatchListExplicitPath(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "list /home/user/Documents")
	require.NoError(t, err)
	require.Equal(t, PlanReady, plan.Status)
	require.Equal(t, "list_directory", plan.Tool)
	require.Equal(t, "/home/user/Documents", plan.Params["path"])
}

func TestMatchListWellKnownFolder(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "what's in my downloads")
	require.NoError(t, err)
	require.Equal(t, PlanReady, plan.Status)
	require.Equal(t, "/home/user/Downloads", plan.Params["path"])
}

func TestMatchListNeedsClarificationWithNoFolder(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "list the files")
	require.NoError(t, err)
	require.Equal(t, PlanNeedsClarification, plan.Status)
	require.Equal(t, "path", plan.ClarifyField)
}

func TestMatchReadExplicitPath(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "read /home/user/notes.txt")
	require.NoError(t, err)
	require.Equal(t, PlanReady, plan.Status)
	require.Equal(t, "read_file", plan.Tool)
	require.Equal(t, "/home/user/notes.txt", plan.Params["path"])
}

func TestMatchCreateDirectory(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "create a folder /home/user/Projects/new")
	require.NoError(t, err)
	require.Equal(t, PlanReady, plan.Status)
	require.Equal(t, "create_directory", plan.Tool)
	require.Equal(t, "/home/user/Projects/new", plan.Params["path"])
}

func TestMatchMoveRenameTwoAbsolutePaths(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "move /home/user/a.txt to /home/user/Archive/a.txt")
	require.NoError(t, err)
	require.Equal(t, PlanReady, plan.Status)
	require.Equal(t, "move_file", plan.Tool)
	require.Equal(t, "/home/user/a.txt", plan.Params["source"])
	require.Equal(t, "/home/user/Archive/a.txt", plan.Params["destination"])
}

func TestMatchDeleteByPattern(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "delete all files matching *.tmp in /home/user/tmp")
	require.NoError(t, err)
	require.Equal(t, "delete_by_pattern", plan.Tool)
}

func TestMatchSystemInfo(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "how much free space do I have")
	require.NoError(t, err)
	require.Equal(t, PlanReady, plan.Status)
	require.Equal(t, "system_info", plan.Tool)
}

func TestPlanNoActionForUnrelatedChat(t *testing.T) {
	p, _ := newTestPlanner(t)
	plan, err := p.Plan("conv1", "what do you think about the weather today")
	require.NoError(t, err)
	require.Equal(t, PlanNoAction, plan.Status)
}
