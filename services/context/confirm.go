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

import "strings"

var confirmWords = map[string]bool{
	"yes": true, "y": true, "ok": true, "okay": true, "sure": true,
	"proceed": true, "confirm": true, "go ahead": true, "do it": true,
	"sì": true, "si": true, "vai": true, "fallo": true, "conferma": true, "procedi": true,
}

var cancelWords = map[string]bool{
	"no": true, "n": true, "cancel": true, "stop": true, "abort": true,
	"nevermind": true, "never mind": true,
	"annulla": true, "ferma": true, "fermati": true, "no grazie": true,
}

// destructiveActions names the tool operations that require confirmation
// before they run, unless the target came from an explicit path in the
// same utterance (see RequiresConfirmation).
var destructiveActions = map[string]bool{
	"delete_file":       true,
	"delete_by_pattern": true,
	"move_file":         true,
	"organize_files":    true,
}

// IsDestructive reports whether toolName requires confirmation.
func IsDestructive(toolName string) bool {
	return destructiveActions[toolName]
}

// IsConfirmation reports whether utterance is an affirmative reply to a
// pending confirmation prompt.
func IsConfirmation(utterance string) bool {
	return confirmWords[normalizeReply(utterance)]
}

// IsCancellation reports whether utterance declines a pending confirmation.
func IsCancellation(utterance string) bool {
	return cancelWords[normalizeReply(utterance)]
}

func normalizeReply(utterance string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(utterance), ".!"))
}

// RequiresConfirmation decides whether a resolved reference to a
// destructive tool call must be confirmed before execution. Only a
// target the user spelled out as an explicit path in the same utterance
// is exempt; anything resolved indirectly (pronoun, ordinal, name match)
// gets a confirmation prompt naming the concrete target first.
func RequiresConfirmation(toolName string, ref ResolvedReference) bool {
	if !IsDestructive(toolName) {
		return false
	}
	return ref.Reason != "explicit path in utterance"
}
