// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package formatter

import (
	"regexp"
	"strings"
)

// ClarificationPrompt is returned in place of any model text that claims
// an action no tool actually performed.
const ClarificationPrompt = "I need more information to complete that action. Could you specify the exact file path or which file you mean?"

var claimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi('ve| have)? (deleted|renamed|moved|created|copied|written|saved|removed)\b`),
	regexp.MustCompile(`(?i)\b\w+ has been (deleted|renamed|moved|created|copied|written|saved|removed)\b`),
	regexp.MustCompile(`(?i)\b(done|completed|finished)\.?\s*$`),
	regexp.MustCompile(`[✓✔✅]`),
	regexp.MustCompile(`(?i)\bho (cancellato|eliminato|rinominato|spostato|creato|copiato|salvato)\b`),
	regexp.MustCompile(`(?i)\b\w+ è stato (cancellato|eliminato|rinominato|spostato|creato|copiato|salvato)\b`),
	regexp.MustCompile(`(?i)\bfatto\.?\s*$`),
}

var safeClausePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi can'?t\b`),
	regexp.MustCompile(`(?i)\bi (need|would need)\b`),
	regexp.MustCompile(`(?i)\bwhich file\b`),
	regexp.MustCompile(`(?i)\bnon posso\b`),
	regexp.MustCompile(`(?i)\bho bisogno\b`),
	regexp.MustCompile(`(?i)\bquale file\b`),
}

// Guard filters model-generated text on turns where no tool executed,
// replacing any unsubstantiated completion claim with a fixed prompt.
type Guard struct{}

// NewGuard builds an action Guard.
func NewGuard() *Guard { return &Guard{} }

// Apply returns text unchanged unless it contains an action claim, in
// which case it returns ClarificationPrompt. Text accompanying a real
// tool result should never be passed here — it's trusted by construction.
func (g *Guard) Apply(text string) string {
	if g.ContainsHallucination(text) {
		return ClarificationPrompt
	}
	return text
}

// ContainsHallucination reports whether text claims a completed action
// without a preceding safe clause in the same sentence.
func (g *Guard) ContainsHallucination(text string) bool {
	for _, sentence := range splitSentences(text) {
		claimAt, claims := firstMatchIndex(claimPatterns, sentence)
		if !claims {
			continue
		}
		if safeAt, safe := firstMatchIndex(safeClausePatterns, sentence); safe && safeAt < claimAt {
			continue
		}
		return true
	}
	return false
}

func firstMatchIndex(patterns []*regexp.Regexp, sentence string) (int, bool) {
	best := -1
	for _, p := range patterns {
		if loc := p.FindStringIndex(sentence); loc != nil {
			if best == -1 || loc[0] < best {
				best = loc[0]
			}
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

var sentenceSplitter = regexp.MustCompile(`[.!?\n]+`)

func splitSentences(text string) []string {
	parts := sentenceSplitter.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
