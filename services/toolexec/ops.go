// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package toolexec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// Executor performs one filesystem action per call, behind the path guard,
// and reports the truthful post-condition of what is now on disk.
type Executor struct {
	guard *PathGuard
}

// NewExecutor builds an Executor bound to the given guard.
func NewExecutor(guard *PathGuard) *Executor {
	return &Executor{guard: guard}
}

// ReadFile reads up to maxLines lines (0 means unlimited) and up to
// maxBytes bytes (0 means unlimited) from path.
func (e *Executor) ReadFile(path string, maxLines int, maxBytes int64) ToolResult {
	real, err := e.guard.Validate(path)
	if err != nil {
		return errorResult(ActionRead, err)
	}

	info, err := os.Stat(real)
	if err != nil {
		return verificationFailure(ActionRead, nil, nil, "path does not exist")
	}
	if info.IsDir() {
		return errorResult(ActionRead, fmt.Errorf("%w: path is a directory", ErrInvalidArgument))
	}

	f, err := os.Open(real)
	if err != nil {
		return errorResult(ActionRead, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}
	defer f.Close()

	var reader io.Reader = f
	if maxBytes > 0 {
		reader = io.LimitReader(f, maxBytes)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return errorResult(ActionRead, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}

	lines := strings.Split(string(data), "\n")
	total := len(lines)
	truncated := false
	if maxBytes > 0 && info.Size() > maxBytes {
		truncated = true
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}

	return ToolResult{
		Status: "success",
		Action: ActionRead,
		Outcome: Outcome{Read: &ReadOutcome{
			Path:       real,
			Lines:      lines,
			TotalLines: total,
			Truncated:  truncated,
		}},
		Verification: Verification{Passed: true, Details: "path exists and is a file"},
	}
}

// ListDirectory lists the immediate children of path.
func (e *Executor) ListDirectory(path string, showHidden bool) ToolResult {
	real, err := e.guard.Validate(path)
	if err != nil {
		return errorResult(ActionList, err)
	}

	info, err := os.Stat(real)
	if err != nil || !info.IsDir() {
		return verificationFailure(ActionList, nil, nil, "path does not exist or is not a directory")
	}

	entries, err := os.ReadDir(real)
	if err != nil {
		return errorResult(ActionList, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}

	items := make([]ListedItem, 0, len(entries))
	for _, ent := range entries {
		if !showHidden && strings.HasPrefix(ent.Name(), ".") {
			continue
		}
		finfo, err := ent.Info()
		if err != nil {
			continue
		}
		items = append(items, ListedItem{
			Name:    ent.Name(),
			Path:    filepath.Join(real, ent.Name()),
			IsDir:   ent.IsDir(),
			Size:    finfo.Size(),
			ModTime: finfo.ModTime().Unix(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	return ToolResult{
		Status:       "success",
		Action:       ActionList,
		Outcome:      Outcome{List: &ListOutcome{Directory: real, Items: items}},
		Verification: Verification{Passed: true, Details: "path exists and is a directory"},
	}
}

// WriteFile writes (or, if append is true, appends) content to path,
// creating the file and its parent directories if they do not yet exist,
// then re-reads it to verify the bytes landed.
func (e *Executor) WriteFile(path string, content []byte, append bool) ToolResult {
	real, err := e.guard.Validate(path)
	if err != nil {
		return errorResult(ActionWrite, err)
	}
	if IsSensitivePath(real) {
		return errorResult(ActionWrite, ErrPermissionDenied)
	}

	action := ActionWrite
	kind := MutationWrite
	var before []string
	existed := false
	if info, statErr := os.Stat(real); statErr == nil && !info.IsDir() {
		existed = true
		before = []string{real}
	}

	expected := content
	if append {
		action = ActionAppend
		kind = MutationAppend
		if existed {
			prior, readErr := os.ReadFile(real)
			if readErr != nil {
				return errorResult(action, fmt.Errorf("%w: %v", ErrPermissionDenied, readErr))
			}
			expected = appendBytes(prior, content)
		}
	}

	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		return errorResult(action, fmt.Errorf("%w: creating parent directory: %v", ErrPermissionDenied, err))
	}
	if err := atomicWriteFile(real, expected); err != nil {
		return errorResult(action, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}

	written, err := os.ReadFile(real)
	if err != nil || string(written) != string(expected) {
		return verificationFailure(action, before, []string{real}, "re-read bytes do not equal expected content")
	}

	return ToolResult{
		Status: "success",
		Action: action,
		Outcome: Outcome{Mutation: &MutationOutcome{
			Kind:         kind,
			Before:       before,
			After:        []string{real},
			BytesWritten: int64(len(expected)),
		}},
		BeforePaths:  before,
		AfterPaths:   []string{real},
		Verification: Verification{Passed: true, Details: "re-read bytes equal expected"},
	}
}

func appendBytes(prior, addition []byte) []byte {
	out := make([]byte, 0, len(prior)+len(addition))
	out = append(out, prior...)
	out = append(out, addition...)
	return out
}

// MoveFile moves source to destination, creating the destination's parent
// directory if it's missing.
func (e *Executor) MoveFile(source, destination string) ToolResult {
	realSrc, err := e.guard.Validate(source)
	if err != nil {
		return errorResult(ActionMove, err)
	}
	realDst, err := e.guard.Validate(destination)
	if err != nil {
		return errorResult(ActionMove, err)
	}

	srcInfo, err := os.Stat(realSrc)
	if err != nil {
		return verificationFailure(ActionMove, nil, nil, "source does not exist")
	}

	if err := os.MkdirAll(filepath.Dir(realDst), 0o755); err != nil {
		return errorResult(ActionMove, fmt.Errorf("%w: creating destination parent: %v", ErrPermissionDenied, err))
	}
	if err := os.Rename(realSrc, realDst); err != nil {
		return errorResult(ActionMove, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}

	if _, err := os.Stat(realSrc); err == nil || !statNotExist(err) {
		return verificationFailure(ActionMove, []string{realSrc}, []string{realDst}, "source still present after move")
	}
	dstInfo, err := os.Stat(realDst)
	if err != nil {
		return verificationFailure(ActionMove, []string{realSrc}, nil, "destination missing after move")
	}
	if !srcInfo.IsDir() && dstInfo.Size() != srcInfo.Size() {
		return verificationFailure(ActionMove, []string{realSrc}, []string{realDst}, "size mismatch after move")
	}

	return ToolResult{
		Status: "success",
		Action: ActionMove,
		Outcome: Outcome{Mutation: &MutationOutcome{
			Kind:        MutationMove,
			Before:      []string{realSrc},
			After:       []string{realDst},
			IsDirectory: dstInfo.IsDir(),
		}},
		BeforePaths:  []string{realSrc},
		AfterPaths:   []string{realDst},
		Verification: Verification{Passed: true, Details: "source gone, destination present, size matches"},
	}
}

// CopyFile copies source to destination, recursing into directories.
func (e *Executor) CopyFile(source, destination string) ToolResult {
	realSrc, err := e.guard.Validate(source)
	if err != nil {
		return errorResult(ActionCopy, err)
	}
	realDst, err := e.guard.Validate(destination)
	if err != nil {
		return errorResult(ActionCopy, err)
	}

	srcInfo, err := os.Stat(realSrc)
	if err != nil {
		return verificationFailure(ActionCopy, nil, nil, "source does not exist")
	}

	if err := os.MkdirAll(filepath.Dir(realDst), 0o755); err != nil {
		return errorResult(ActionCopy, fmt.Errorf("%w: creating destination parent: %v", ErrPermissionDenied, err))
	}

	if srcInfo.IsDir() {
		if err := copyDir(realSrc, realDst); err != nil {
			return errorResult(ActionCopy, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
		}
	} else {
		data, err := os.ReadFile(realSrc)
		if err != nil {
			return errorResult(ActionCopy, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
		}
		if err := atomicWriteFile(realDst, data); err != nil {
			return errorResult(ActionCopy, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
		}
	}

	dstInfo, err := os.Stat(realDst)
	if err != nil {
		return verificationFailure(ActionCopy, []string{realSrc}, nil, "destination missing after copy")
	}
	if _, err := os.Stat(realSrc); err != nil {
		return verificationFailure(ActionCopy, nil, []string{realDst}, "source missing after copy")
	}
	if !srcInfo.IsDir() && dstInfo.Size() != srcInfo.Size() {
		return verificationFailure(ActionCopy, []string{realSrc}, []string{realDst}, "size mismatch after copy")
	}

	return ToolResult{
		Status: "success",
		Action: ActionCopy,
		Outcome: Outcome{Mutation: &MutationOutcome{
			Kind:        MutationCopy,
			Before:      []string{realSrc},
			After:       []string{realSrc, realDst},
			IsDirectory: dstInfo.IsDir(),
		}},
		BeforePaths:  []string{realSrc},
		AfterPaths:   []string{realSrc, realDst},
		Verification: Verification{Passed: true, Details: "source present, destination present, size matches"},
	}
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return atomicWriteFile(target, data)
	})
}

// DeleteFile removes path. A non-empty directory is removed with its
// whole subtree.
func (e *Executor) DeleteFile(path string) ToolResult {
	real, err := e.guard.Validate(path)
	if err != nil {
		return errorResult(ActionDelete, err)
	}

	info, statErr := os.Stat(real)
	if statErr != nil {
		if statNotExist(statErr) {
			return verificationFailure(ActionDelete, nil, nil, "path does not exist")
		}
		return errorResult(ActionDelete, fmt.Errorf("%w: %v", ErrPermissionDenied, statErr))
	}

	var removeErr error
	if info.IsDir() {
		removeErr = os.RemoveAll(real)
	} else {
		removeErr = os.Remove(real)
	}
	if removeErr != nil {
		return errorResult(ActionDelete, fmt.Errorf("%w: %v", ErrPermissionDenied, removeErr))
	}

	if _, err := os.Stat(real); err == nil || !statNotExist(err) {
		return verificationFailure(ActionDelete, []string{real}, nil, "path still present after delete")
	}

	return ToolResult{
		Status: "success",
		Action: ActionDelete,
		Outcome: Outcome{Mutation: &MutationOutcome{
			Kind:        MutationDelete,
			Before:      []string{real},
			IsDirectory: info.IsDir(),
		}},
		BeforePaths:  []string{real},
		Verification: Verification{Passed: true, Details: "exists(path) == false"},
	}
}

// DeleteByPattern deletes every direct child of directory (file or
// subdirectory) whose name matches pattern, which may be a single glob or a
// comma-separated list of globs. Nested entries are not searched.
func (e *Executor) DeleteByPattern(directory, pattern string) ToolResult {
	real, err := e.guard.Validate(directory)
	if err != nil {
		return errorResult(ActionDelete, err)
	}
	info, err := os.Stat(real)
	if err != nil || !info.IsDir() {
		return verificationFailure(ActionDelete, nil, nil, "directory does not exist")
	}

	var matches []string
	for _, glob := range strings.Split(pattern, ",") {
		glob = strings.TrimSpace(glob)
		if glob == "" {
			continue
		}
		found, err := filepath.Glob(filepath.Join(real, glob))
		if err != nil {
			return errorResult(ActionDelete, fmt.Errorf("%w: bad pattern %q", ErrInvalidArgument, glob))
		}
		matches = append(matches, found...)
	}

	var before, failed []string
	for _, m := range matches {
		before = append(before, m)
		if err := os.RemoveAll(m); err != nil {
			failed = append(failed, m)
		}
	}

	var remaining []string
	for _, m := range matches {
		if _, err := os.Stat(m); err == nil || !statNotExist(err) {
			remaining = append(remaining, m)
		}
	}
	if len(remaining) > 0 {
		return verificationFailure(ActionDelete, before, remaining, "some matches still present after delete")
	}

	return ToolResult{
		Status: "success",
		Action: ActionDelete,
		Outcome: Outcome{Mutation: &MutationOutcome{
			Kind:   MutationDelete,
			Before: before,
		}},
		BeforePaths:  before,
		Verification: Verification{Passed: true, Details: "each match absent"},
	}
}

// CreateDirectory creates path. An existing path is an error, it is never
// coerced into success.
func (e *Executor) CreateDirectory(path string) ToolResult {
	real, err := e.guard.Validate(path)
	if err != nil {
		return errorResult(ActionCreate, err)
	}

	if _, err := os.Stat(real); err == nil {
		return errorResult(ActionCreate, fmt.Errorf("%w: path already exists", ErrInvalidArgument))
	}

	if err := os.MkdirAll(real, 0o755); err != nil {
		return errorResult(ActionCreate, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}

	info, err := os.Stat(real)
	if err != nil || !info.IsDir() {
		return verificationFailure(ActionCreate, nil, []string{real}, "path is not a directory after create")
	}

	return ToolResult{
		Status: "success",
		Action: ActionCreate,
		Outcome: Outcome{Mutation: &MutationOutcome{
			Kind:        MutationCreate,
			After:       []string{real},
			IsDirectory: true,
		}},
		AfterPaths:   []string{real},
		Verification: Verification{Passed: true, Details: "is_dir(path)"},
	}
}

// SearchFiles finds up to maxResults files under directory whose name
// matches pattern (a glob).
func (e *Executor) SearchFiles(directory, pattern string, maxResults int) ToolResult {
	real, err := e.guard.Validate(directory)
	if err != nil {
		return errorResult(ActionSearch, err)
	}
	info, err := os.Stat(real)
	if err != nil || !info.IsDir() {
		return verificationFailure(ActionSearch, nil, nil, "directory does not exist")
	}
	if maxResults <= 0 {
		maxResults = 100
	}

	var matches []ListedItem
	truncated := false
	_ = filepath.Walk(real, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if len(matches) >= maxResults {
			truncated = true
			return filepath.SkipAll
		}
		ok, matchErr := filepath.Match(pattern, fi.Name())
		if matchErr == nil && ok {
			matches = append(matches, ListedItem{
				Name:    fi.Name(),
				Path:    p,
				IsDir:   fi.IsDir(),
				Size:    fi.Size(),
				ModTime: fi.ModTime().Unix(),
			})
		}
		return nil
	})

	return ToolResult{
		Status: "success",
		Action: ActionSearch,
		Outcome: Outcome{Search: &SearchOutcome{
			Directory: real,
			Pattern:   pattern,
			Matches:   matches,
			Truncated: truncated,
		}},
		Verification: Verification{Passed: true, Details: "capped at max_results"},
	}
}

// SystemInfo reports disk usage for every allowed root, so the model
// never has to guess at free space from file listings.
func (e *Executor) SystemInfo() ToolResult {
	var usage []RootUsage
	for _, root := range e.guard.Roots() {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(root, &stat); err != nil {
			continue
		}
		usage = append(usage, RootUsage{
			Root:       root,
			TotalBytes: stat.Blocks * uint64(stat.Bsize),
			FreeBytes:  stat.Bavail * uint64(stat.Bsize),
		})
	}
	return ToolResult{
		Status:       "success",
		Action:       ActionInfo,
		Outcome:      Outcome{Info: &InfoOutcome{Roots: usage}},
		Verification: Verification{Passed: true, Details: "statfs on allowed roots"},
	}
}
