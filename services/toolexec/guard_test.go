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
	"path/filepath"
	"testing"
)

func TestPathGuardAllowsHomeSubpath(t *testing.T) {
	home := t.TempDir()
	guard := NewPathGuard(home, []string{home})

	p, err := guard.Validate(filepath.Join(home, "docs", "note.txt"))
	if err != nil {
		t.Fatalf("expected subpath to be allowed: %v", err)
	}
	if p == "" {
		t.Errorf("expected resolved path")
	}
}

func TestPathGuardRejectsOutsideRoots(t *testing.T) {
	home := t.TempDir()
	guard := NewPathGuard(home, []string{home})

	if _, err := guard.Validate("/etc/cron.d/whatever"); err == nil {
		t.Errorf("expected path outside allowed roots to be rejected")
	}
}

func TestPathGuardRejectsHomeItself(t *testing.T) {
	home := t.TempDir()
	guard := NewPathGuard(home, []string{home})

	if _, err := guard.Validate(home); err == nil {
		t.Errorf("expected home directory itself to be rejected")
	}
}

func TestPathGuardRejectsSensitivePaths(t *testing.T) {
	home := t.TempDir()
	guard := NewPathGuard(home, []string{home})

	if _, err := guard.Validate(filepath.Join(home, ".ssh", "id_rsa")); err == nil {
		t.Errorf("expected sensitive path to be rejected")
	}
}

func TestIsSensitivePath(t *testing.T) {
	cases := map[string]bool{
		"/home/user/.ssh/id_rsa":  true,
		"/home/user/.env":         true,
		"/home/user/notes.txt":    false,
	}
	for path, want := range cases {
		if got := IsSensitivePath(path); got != want {
			t.Errorf("IsSensitivePath(%q) = %v, want %v", path, got, want)
		}
	}
}
