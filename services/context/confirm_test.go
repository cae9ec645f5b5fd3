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

import "testing"

func TestIsConfirmationAndCancellation(t *testing.T) {
	for _, w := range []string{"yes", "Y", "sure.", "  OK", "procedi", "vai!"} {
		if !IsConfirmation(w) {
			t.Errorf("expected %q to confirm", w)
		}
	}
	for _, w := range []string{"no", "cancel", "STOP", "annulla", "ferma"} {
		if !IsCancellation(w) {
			t.Errorf("expected %q to cancel", w)
		}
	}
	if IsConfirmation("delete the file") {
		t.Error("unrelated text should not count as confirmation")
	}
}

func TestRequiresConfirmationExemptsOnlyExplicitPath(t *testing.T) {
	explicit := ResolvedReference{Reason: "explicit path in utterance"}
	ordinal := ResolvedReference{Reason: "ordinal over current selection"}
	pronoun := ResolvedReference{Reason: "pronoun fell back to last active file"}

	if RequiresConfirmation("delete_file", explicit) {
		t.Error("explicit path should be exempt from confirmation")
	}
	if !RequiresConfirmation("delete_file", ordinal) {
		t.Error("ordinal-resolved delete should name its target and confirm first")
	}
	if !RequiresConfirmation("delete_file", pronoun) {
		t.Error("pronoun-resolved delete should require confirmation")
	}
	if RequiresConfirmation("read_file", pronoun) {
		t.Error("non-destructive tool should never require confirmation")
	}
}
