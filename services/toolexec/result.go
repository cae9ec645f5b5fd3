// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package toolexec is the verified tool executor: it performs one
// filesystem action atomically, behind a path guard, and reports a
// ToolResult whose verification is truthful about what is now on disk.
package toolexec

import "errors"

// Action identifies which filesystem operation a ToolResult reports on.
type Action string

const (
	ActionList     Action = "list"
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionAppend   Action = "append"
	ActionMove     Action = "move"
	ActionCopy     Action = "copy"
	ActionDelete   Action = "delete"
	ActionCreate   Action = "create"
	ActionSearch   Action = "search"
	ActionInfo     Action = "info"
	ActionOrganize Action = "organize"
)

// Sentinel errors, surfaced to the HTTP layer as formatted user text,
// never as stack traces.
var (
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrVerificationFailed = errors.New("verification failed")
	ErrToolDisabled       = errors.New("tool disabled")
)

// Verification is the post-condition check every mutation must carry.
type Verification struct {
	Passed  bool
	Details string
}

// ListedItem is one entry returned by list_directory or search_files.
type ListedItem struct {
	Name    string
	Path    string
	IsDir   bool
	Size    int64
	ModTime int64
}

// ListOutcome is the structured output of a list_directory call.
type ListOutcome struct {
	Directory string
	Items     []ListedItem
}

// ReadOutcome is the structured output of a read_file call.
type ReadOutcome struct {
	Path       string
	Lines      []string
	TotalLines int
	Truncated  bool
}

// MutationKind distinguishes the shape of a mutation's before/after paths.
type MutationKind string

const (
	MutationWrite  MutationKind = "write"
	MutationAppend MutationKind = "append"
	MutationMove   MutationKind = "move"
	MutationCopy   MutationKind = "copy"
	MutationDelete MutationKind = "delete"
	MutationCreate MutationKind = "create"
)

// MutationOutcome is the structured output of write/move/copy/delete/create.
type MutationOutcome struct {
	Kind         MutationKind
	Before       []string
	After        []string
	IsDirectory  bool
	BytesWritten int64
}

// SearchOutcome is the structured output of a search_files call.
type SearchOutcome struct {
	Directory string
	Pattern   string
	Matches   []ListedItem
	Truncated bool
}

// RootUsage is one allowed root's disk usage, in bytes.
type RootUsage struct {
	Root       string
	TotalBytes uint64
	FreeBytes  uint64
}

// InfoOutcome is the structured output of a system_info call.
type InfoOutcome struct {
	Roots []RootUsage
}

// OrganizeCategory is one categorized group of files moved into a
// subfolder by organize_files.
type OrganizeCategory struct {
	Name      string
	FolderNew bool // true if the category subfolder did not exist before this call
	Moved     []OrganizeMove
}

// OrganizeMove is one file's relocation into a category subfolder,
// carrying the rename suffix (if any) applied to resolve a name clash.
type OrganizeMove struct {
	Before string
	After  string
}

// OrganizeOutcome is the structured output of an organize_files call.
type OrganizeOutcome struct {
	Directory  string
	Categories []OrganizeCategory
}

// MovedCount is the total number of files relocated across every category.
func (o OrganizeOutcome) MovedCount() int {
	n := 0
	for _, c := range o.Categories {
		n += len(c.Moved)
	}
	return n
}

// Outcome is a closed tagged variant over the shapes above. Exactly one
// field is non-nil for any given ToolResult with status=success; callers
// switch on the variant rather than matching a string action.
type Outcome struct {
	List     *ListOutcome
	Read     *ReadOutcome
	Mutation *MutationOutcome
	Search   *SearchOutcome
	Info     *InfoOutcome
	Organize *OrganizeOutcome
}

// ToolResult is the structured outcome of one tool execution. The rest
// of the system trusts it; no model ever produces one.
type ToolResult struct {
	Status       string // "success" or "error"
	Action       Action
	Outcome      Outcome
	Err          string
	BeforePaths  []string
	AfterPaths   []string
	Verification Verification
	MessageUser  string
}

// Changed returns the union of before and after paths, for auditing.
func (r ToolResult) Changed() []string {
	seen := make(map[string]struct{}, len(r.BeforePaths)+len(r.AfterPaths))
	var out []string
	for _, p := range append(append([]string{}, r.BeforePaths...), r.AfterPaths...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func errorResult(action Action, err error) ToolResult {
	return ToolResult{
		Status: "error",
		Action: action,
		Err:    err.Error(),
	}
}

func verificationFailure(action Action, before, after []string, details string) ToolResult {
	return ToolResult{
		Status:      "error",
		Action:      action,
		Err:         details,
		BeforePaths: before,
		AfterPaths:  after,
		Verification: Verification{
			Passed:  false,
			Details: details,
		},
	}
}
