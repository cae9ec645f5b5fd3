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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ParamDef describes one named parameter accepted by an operation.
type ParamDef struct {
	Name        string
	Type        string // string, int, bool
	Required    bool
	Description string
}

// OpDefinition is the user-facing, togglable description of one operation.
type OpDefinition struct {
	ID          string
	Description string
	Parameters  []ParamDef
	ReadOnly    bool
}

var opDefinitions = []OpDefinition{
	{ID: "read_file", Description: "Read a file's contents.", ReadOnly: true, Parameters: []ParamDef{
		{Name: "path", Type: "string", Required: true},
		{Name: "max_lines", Type: "int"},
		{Name: "max_bytes", Type: "int"},
	}},
	{ID: "list_directory", Description: "List a directory's immediate contents.", ReadOnly: true, Parameters: []ParamDef{
		{Name: "path", Type: "string", Required: true},
		{Name: "show_hidden", Type: "bool"},
	}},
	{ID: "write_file", Description: "Write or append to a file.", Parameters: []ParamDef{
		{Name: "path", Type: "string", Required: true},
		{Name: "content", Type: "string", Required: true},
		{Name: "append", Type: "bool"},
	}},
	{ID: "move_file", Description: "Move or rename a file or directory.", Parameters: []ParamDef{
		{Name: "source", Type: "string", Required: true},
		{Name: "destination", Type: "string", Required: true},
	}},
	{ID: "copy_file", Description: "Copy a file or directory.", Parameters: []ParamDef{
		{Name: "source", Type: "string", Required: true},
		{Name: "destination", Type: "string", Required: true},
	}},
	{ID: "delete_file", Description: "Delete a file or directory.", Parameters: []ParamDef{
		{Name: "path", Type: "string", Required: true},
	}},
	{ID: "delete_by_pattern", Description: "Delete files in a directory matching a glob pattern.", Parameters: []ParamDef{
		{Name: "directory", Type: "string", Required: true},
		{Name: "pattern", Type: "string", Required: true},
	}},
	{ID: "create_directory", Description: "Create a new directory.", Parameters: []ParamDef{
		{Name: "path", Type: "string", Required: true},
	}},
	{ID: "search_files", Description: "Find files under a directory matching a glob pattern.", ReadOnly: true, Parameters: []ParamDef{
		{Name: "directory", Type: "string", Required: true},
		{Name: "pattern", Type: "string", Required: true},
		{Name: "max_results", Type: "int"},
	}},
	{ID: "system_info", Description: "Report disk usage for every allowed root.", ReadOnly: true},
	{ID: "organize_files", Description: "Sort a directory's files into categorized subfolders by type and content.", Parameters: []ParamDef{
		{Name: "directory", Type: "string", Required: true},
	}},
}

var (
	opExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "embersd",
		Subsystem: "toolexec",
		Name:      "operations_total",
		Help:      "Tool operations executed, by operation and outcome.",
	}, []string{"operation", "status"})

	verificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "embersd",
		Subsystem: "toolexec",
		Name:      "verification_failures_total",
		Help:      "Tool operations whose post-condition verification failed.",
	}, []string{"operation"})
)

// Registry wraps an Executor with per-operation enable/disable flags, a
// short-TTL cache for read-only operations, and execution counters. It is
// what the HTTP and turn-orchestrator layers call; nothing downstream
// talks to the Executor directly.
type Registry struct {
	exec *Executor

	mu       sync.RWMutex
	disabled map[string]bool

	cache *resultCache
}

// NewRegistry builds a Registry around exec with a default 5 second
// read-only result cache.
func NewRegistry(exec *Executor) *Registry {
	return &Registry{
		exec:     exec,
		disabled: make(map[string]bool),
		cache:    newResultCache(5 * time.Second),
	}
}

// Definitions returns every operation's definition, enabled or not, sorted
// by ID for a stable HTTP response.
func (r *Registry) Definitions() []OpDefinition {
	defs := append([]OpDefinition{}, opDefinitions...)
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// SetEnabled toggles an operation on or off. Disabling an unknown op id is
// a no-op; the HTTP layer is responsible for validating the id exists.
func (r *Registry) SetEnabled(opID string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled {
		delete(r.disabled, opID)
	} else {
		r.disabled[opID] = true
	}
}

// IsEnabled reports whether opID is currently enabled.
func (r *Registry) IsEnabled(opID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.disabled[opID]
}

// Invalidate drops every cached read-only result under prefix, called by
// the filesystem watcher when it observes a change beneath that path.
func (r *Registry) Invalidate(prefix string) {
	r.cache.invalidatePrefix(prefix)
}

func (r *Registry) guardOp(opID string) error {
	if !r.IsEnabled(opID) {
		return fmt.Errorf("%w: %s", ErrToolDisabled, opID)
	}
	return nil
}

func (r *Registry) record(opID string, res ToolResult) ToolResult {
	opExecutions.WithLabelValues(opID, res.Status).Inc()
	if res.Status == "error" && !res.Verification.Passed && res.Verification.Details != "" {
		verificationFailures.WithLabelValues(opID).Inc()
	}
	return res
}

// ReadFile is read_file, cached for the registry's TTL.
func (r *Registry) ReadFile(path string, maxLines int, maxBytes int64) ToolResult {
	if err := r.guardOp("read_file"); err != nil {
		return errorResult(ActionRead, err)
	}
	key := cacheKey("read_file", path, maxLines, maxBytes)
	if cached, ok := r.cache.get(key); ok {
		return cached
	}
	res := r.record("read_file", r.exec.ReadFile(path, maxLines, maxBytes))
	if res.Status == "success" {
		r.cache.set(key, path, res)
	}
	return res
}

// ListDirectory is list_directory, cached for the registry's TTL.
func (r *Registry) ListDirectory(path string, showHidden bool) ToolResult {
	if err := r.guardOp("list_directory"); err != nil {
		return errorResult(ActionList, err)
	}
	key := cacheKey("list_directory", path, showHidden)
	if cached, ok := r.cache.get(key); ok {
		return cached
	}
	res := r.record("list_directory", r.exec.ListDirectory(path, showHidden))
	if res.Status == "success" {
		r.cache.set(key, path, res)
	}
	return res
}

// WriteFile is write_file/append, never cached, invalidates path's cache.
func (r *Registry) WriteFile(path string, content []byte, append bool) ToolResult {
	action := "write_file"
	if err := r.guardOp(action); err != nil {
		return errorResult(ActionWrite, err)
	}
	res := r.record(action, r.exec.WriteFile(path, content, append))
	r.cache.invalidatePrefix(path)
	return res
}

// MoveFile is move_file.
func (r *Registry) MoveFile(source, destination string) ToolResult {
	if err := r.guardOp("move_file"); err != nil {
		return errorResult(ActionMove, err)
	}
	res := r.record("move_file", r.exec.MoveFile(source, destination))
	r.cache.invalidatePrefix(source)
	r.cache.invalidatePrefix(destination)
	return res
}

// CopyFile is copy_file.
func (r *Registry) CopyFile(source, destination string) ToolResult {
	if err := r.guardOp("copy_file"); err != nil {
		return errorResult(ActionCopy, err)
	}
	res := r.record("copy_file", r.exec.CopyFile(source, destination))
	r.cache.invalidatePrefix(destination)
	return res
}

// DeleteFile is delete_file.
func (r *Registry) DeleteFile(path string) ToolResult {
	if err := r.guardOp("delete_file"); err != nil {
		return errorResult(ActionDelete, err)
	}
	res := r.record("delete_file", r.exec.DeleteFile(path))
	r.cache.invalidatePrefix(path)
	return res
}

// DeleteByPattern is delete_by_pattern.
func (r *Registry) DeleteByPattern(directory, pattern string) ToolResult {
	if err := r.guardOp("delete_by_pattern"); err != nil {
		return errorResult(ActionDelete, err)
	}
	res := r.record("delete_by_pattern", r.exec.DeleteByPattern(directory, pattern))
	r.cache.invalidatePrefix(directory)
	return res
}

// CreateDirectory is create_directory.
func (r *Registry) CreateDirectory(path string) ToolResult {
	if err := r.guardOp("create_directory"); err != nil {
		return errorResult(ActionCreate, err)
	}
	res := r.record("create_directory", r.exec.CreateDirectory(path))
	r.cache.invalidatePrefix(path)
	return res
}

// SearchFiles is search_files, cached for the registry's TTL.
func (r *Registry) SearchFiles(directory, pattern string, maxResults int) ToolResult {
	if err := r.guardOp("search_files"); err != nil {
		return errorResult(ActionSearch, err)
	}
	key := cacheKey("search_files", directory, pattern, maxResults)
	if cached, ok := r.cache.get(key); ok {
		return cached
	}
	res := r.record("search_files", r.exec.SearchFiles(directory, pattern, maxResults))
	if res.Status == "success" {
		r.cache.set(key, directory, res)
	}
	return res
}

// SystemInfo is system_info, cached for the registry's TTL since disk
// usage changes slowly relative to a conversation's turn rate.
func (r *Registry) SystemInfo() ToolResult {
	if err := r.guardOp("system_info"); err != nil {
		return errorResult(ActionInfo, err)
	}
	key := cacheKey("system_info")
	if cached, ok := r.cache.get(key); ok {
		return cached
	}
	res := r.record("system_info", r.exec.SystemInfo())
	if res.Status == "success" {
		r.cache.set(key, "", res)
	}
	return res
}

// OrganizeFiles is organize_files. It mutates the directory's contents, so
// every previously cached read-only result under it is invalidated.
func (r *Registry) OrganizeFiles(directory string) ToolResult {
	if err := r.guardOp("organize_files"); err != nil {
		return errorResult(ActionOrganize, err)
	}
	res := r.record("organize_files", r.exec.OrganizeFiles(directory))
	r.cache.invalidatePrefix(directory)
	return res
}

func cacheKey(op string, parts ...any) string {
	b := strings.Builder{}
	b.WriteString(op)
	for _, p := range parts {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

// resultCache is a short-TTL cache for read-only operation results, keyed
// by operation+arguments, tagged by the path it concerns so the write
// path can invalidate everything under a prefix after a mutation.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    ToolResult
	path      string
	expiresAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *resultCache) get(key string) (ToolResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return ToolResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(key, path string, result ToolResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, path: path, expiresAt: time.Now().Add(c.ttl)}
}

func (c *resultCache) invalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if strings.HasPrefix(entry.path, prefix) || strings.HasPrefix(prefix, entry.path) {
			delete(c.entries, key)
		}
	}
}
