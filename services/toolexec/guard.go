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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sensitivePathSubstrings names paths that no operation may touch, read or
// write, regardless of which allow-listed root they happen to fall under.
var sensitivePathSubstrings = []string{
	"/.ssh/",
	"/.gnupg/",
	"/.aws/credentials",
	"/.env",
	"/id_rsa",
	"/id_ed25519",
	"/etc/passwd",
	"/etc/shadow",
	"/etc/hosts",
}

// denyListRoots can never be an allow-listed root even if a caller
// configures them, since they would defeat the guard entirely.
var denyListRoots = []string{
	"/",
	"/etc",
	"/sys",
	"/proc",
	"/boot",
	"/dev",
}

// PathGuard decides which real, symlink-resolved filesystem paths an
// operation is allowed to touch: the user's home directory, the system
// temp directory, and any configured extra roots, minus a denylist of
// system directories and sensitive files.
type PathGuard struct {
	home       string
	allowRoots []string
}

// NewPathGuard builds a guard from a home directory and the full set of
// allowed roots (home and temp should already be included by the caller).
func NewPathGuard(home string, allowedRoots []string) *PathGuard {
	resolved := make([]string, 0, len(allowedRoots))
	for _, root := range allowedRoots {
		if root == "" {
			continue
		}
		if denied(root) {
			continue
		}
		resolved = append(resolved, resolvePathWithAncestors(root))
	}
	return &PathGuard{home: home, allowRoots: resolved}
}

func denied(root string) bool {
	clean := filepath.Clean(root)
	for _, d := range denyListRoots {
		if clean == d {
			return true
		}
	}
	return false
}

// Roots returns the guard's resolved allow-listed roots, for operations
// (like system_info) that report on the whole allowed surface rather than
// one caller-supplied path.
func (g *PathGuard) Roots() []string {
	out := make([]string, len(g.allowRoots))
	copy(out, g.allowRoots)
	return out
}

// Validate resolves path (following symlinks where possible, walking up to
// the nearest existing ancestor otherwise) and checks it against the
// allow-list, the deny-list, and the sensitive-path substrings. It returns
// the resolved absolute path on success.
func (g *PathGuard) Validate(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path is empty", ErrInvalidArgument)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: resolving path: %v", ErrInvalidArgument, err)
	}

	if IsSensitivePath(abs) {
		return "", fmt.Errorf("%w: path touches a sensitive location", ErrPermissionDenied)
	}

	if denied(abs) || denied(filepath.Dir(abs)) {
		return "", fmt.Errorf("%w: path is a protected system location", ErrPermissionDenied)
	}

	if abs == g.home {
		return "", fmt.Errorf("%w: refusing to operate on the home directory itself", ErrPermissionDenied)
	}

	real := resolvePathWithAncestors(abs)
	if !g.allowed(real) {
		return "", fmt.Errorf("%w: path resolves outside allowed directories", ErrPermissionDenied)
	}

	return abs, nil
}

func (g *PathGuard) allowed(real string) bool {
	for _, root := range g.allowRoots {
		if real == root || strings.HasPrefix(real, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolvePathWithAncestors resolves symlinks by walking up to the nearest
// existing ancestor when the target itself doesn't exist yet (creating a
// new file or directory).
func resolvePathWithAncestors(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}

	current := path
	var missing []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		if realParent, err := filepath.EvalSymlinks(parent); err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				realParent = filepath.Join(realParent, missing[i])
			}
			return realParent
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
	return path
}

// IsSensitivePath reports whether path contains a substring naming a
// location that Validate refuses for every operation, even inside an
// allowed root.
func IsSensitivePath(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range sensitivePathSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// statNotExist reports whether err indicates the target path is simply
// absent, as opposed to some other I/O failure.
func statNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
