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
	"path/filepath"
	"regexp"
	"strings"

	embctx "github.com/embersai/embersd/services/context"
)

const embctxConfidenceAmbiguous = embctx.ConfidenceAmbiguous

// family is one named, independently testable intent rule. It returns
// ok=false when the utterance doesn't match this family at all; ok=true
// with a Plan (possibly NEEDS_CLARIFICATION) once it recognizes the
// action even if it can't fully bind the parameters.
type family struct {
	name  string
	match func(p *Planner, utterance string) (Plan, bool)
}

var absolutePathPattern = regexp.MustCompile(`(~(?:/[^\s"']+)+|/(?:[^\s"']+/)*[^\s"']+)`)
var quotedTokenPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

var listPattern = regexp.MustCompile(`(?i)\b(list|show|what'?s in|what is in|contents of|elenca|cosa c'?è in|mostra)\b`)
var readPattern = regexp.MustCompile(`(?i)\b(read|open|show me the contents of|cat|leggi|apri)\b`)
var writeCreatePattern = regexp.MustCompile(`(?i)\b(create file|write|save|new file|crea (il )?file|scrivi|salva)\b`)
var createDirPattern = regexp.MustCompile(`(?i)\b(create (a )?(folder|directory)|make (a )?(folder|directory)|mkdir|crea (la )?cartella|crea directory)\b`)
var moveRenamePattern = regexp.MustCompile(`(?i)\b(move|rename|sposta|rinomina)\b`)
var deletePatternPattern = regexp.MustCompile(`(?i)\b(delete|remove) (all|every)\b|\b(cancella|elimina) (tutti|tutte)\b`)
var deletePattern = regexp.MustCompile(`(?i)\b(delete|remove|trash|cancella|elimina)\b`)
var organizePattern = regexp.MustCompile(`(?i)\b(organize|tidy up|sort|organizza|riordina)\b`)
var searchPattern = regexp.MustCompile(`(?i)\b(search|find|look for|cerca|trova)\b`)
var systemInfoPattern = regexp.MustCompile(`(?i)\b(system info|disk space|how much space|free space|spazio libero|informazioni di sistema)\b`)

var wellKnownAliases = map[string]string{
	"desktop": "desktop", "scrivania": "desktop",
	"downloads": "downloads", "download": "downloads", "scaricati": "downloads",
	"documents": "documents", "documenti": "documents",
	"home": "home", "casa": "home",
}
var wellKnownPattern = regexp.MustCompile(`(?i)\b(desktop|scrivania|downloads?|scaricati|documents?|documenti|home folder|home directory)\b`)

func families() []family {
	return []family{
		{"list", matchList},
		{"read", matchRead},
		{"write_create", matchWriteCreate},
		{"create_directory", matchCreateDirectory},
		{"move_rename", matchMoveRename},
		{"delete_by_pattern", matchDeleteByPattern},
		{"delete", matchDelete},
		{"organize", matchOrganize},
		{"search", matchSearch},
		{"system_info", matchSystemInfo},
	}
}

// extractExplicitPath finds a quoted, home-relative, or absolute path in
// the utterance, in that order of specificity.
func extractExplicitPath(utterance string) (string, bool) {
	if m := quotedTokenPattern.FindStringSubmatch(utterance); m != nil {
		candidate := m[1]
		if candidate == "" {
			candidate = m[2]
		}
		if strings.HasPrefix(candidate, "/") || strings.HasPrefix(candidate, "~") {
			return candidate, true
		}
	}
	if m := absolutePathPattern.FindString(utterance); m != "" {
		return m, true
	}
	return "", false
}

// extractWellKnownFolder finds a well-known-folder alias and resolves it
// against the planner's configured folder map.
func (p *Planner) extractWellKnownFolder(utterance string) (string, bool) {
	m := wellKnownPattern.FindString(utterance)
	if m == "" {
		return "", false
	}
	key, ok := wellKnownAliases[strings.ToLower(m)]
	if !ok {
		return "", false
	}
	path, ok := p.wellKnownFolders[key]
	return path, ok
}

// extractQuotedOrBareToken pulls a single filename-shaped token the
// partial-name resolver or last-directory-context rule can use.
func extractQuotedOrBareToken(utterance string) (string, bool) {
	if m := quotedTokenPattern.FindStringSubmatch(utterance); m != nil {
		if m[1] != "" {
			return m[1], true
		}
		return m[2], true
	}
	return "", false
}

func matchList(p *Planner, utterance string) (Plan, bool) {
	if !listPattern.MatchString(utterance) {
		return Plan{}, false
	}
	dir, ref := p.resolvePathLike(utterance, embKindFolder)
	if dir == "" {
		return Plan{Status: PlanNeedsClarification, Tool: "list_directory", ClarifyField: "path",
			ClarifyPrompt: "Which folder would you like me to list?"}, true
	}
	showHidden := strings.Contains(strings.ToLower(utterance), "hidden")
	return Plan{Status: PlanReady, Tool: "list_directory", Reference: ref,
		Params: map[string]any{"path": dir, "show_hidden": showHidden}}, true
}

func matchRead(p *Planner, utterance string) (Plan, bool) {
	if !readPattern.MatchString(utterance) {
		return Plan{}, false
	}
	path, ref := p.resolvePathLike(utterance, embKindFile)
	if path == "" {
		return Plan{Status: PlanNeedsClarification, Tool: "read_file", ClarifyField: "path",
			ClarifyPrompt: "Which file would you like me to read?"}, true
	}
	return Plan{Status: PlanReady, Tool: "read_file", Reference: ref,
		Params: map[string]any{"path": path, "max_lines": 200, "max_bytes": int64(1 << 20)}}, true
}

func matchWriteCreate(p *Planner, utterance string) (Plan, bool) {
	if !writeCreatePattern.MatchString(utterance) {
		return Plan{}, false
	}
	path, ok := extractExplicitPath(utterance)
	if !ok {
		return Plan{Status: PlanNeedsClarification, Tool: "write_file", ClarifyField: "path",
			ClarifyPrompt: "What file path should I create or write to?"}, true
	}
	content, hasContent := extractContent(utterance)
	if !hasContent {
		return Plan{Status: PlanNeedsClarification, Tool: "write_file", ClarifyField: "content",
			ClarifyPrompt: "What content should the file contain?"}, true
	}
	appendMode := strings.Contains(strings.ToLower(utterance), "append")
	return Plan{Status: PlanReady, Tool: "write_file",
		Params: map[string]any{"path": path, "content": content, "append": appendMode}}, true
}

var contentPattern = regexp.MustCompile(`(?i)(?:with content|containing|content)[:\s]+['"](.*)['"]`)

func extractContent(utterance string) (string, bool) {
	if m := contentPattern.FindStringSubmatch(utterance); m != nil {
		return m[1], true
	}
	return "", false
}

func matchCreateDirectory(p *Planner, utterance string) (Plan, bool) {
	if !createDirPattern.MatchString(utterance) {
		return Plan{}, false
	}
	path, ok := extractExplicitPath(utterance)
	if !ok {
		return Plan{Status: PlanNeedsClarification, Tool: "create_directory", ClarifyField: "path",
			ClarifyPrompt: "What should the new folder's path be?"}, true
	}
	return Plan{Status: PlanReady, Tool: "create_directory", Params: map[string]any{"path": path}}, true
}

// matchMoveRename extracts (source, destination) using an ordered set of
// rules: two absolute paths; one absolute source plus a short token with
// extension (destination in the same directory); two tokens with
// extensions relative to the last-listed directory; one token without
// extension (destination reuses the source's extension); a bare name with
// no resolvable source falls to NEEDS_CLARIFICATION.
func matchMoveRename(p *Planner, utterance string) (Plan, bool) {
	if !moveRenamePattern.MatchString(utterance) {
		return Plan{}, false
	}

	paths := absolutePathPattern.FindAllString(utterance, -1)
	if len(paths) >= 2 {
		source := expandHome(paths[0], p.home)
		return Plan{Status: PlanReady, Tool: "move_file",
			Reference: explicitPathReference(source, embKindFile),
			Params:    map[string]any{"source": source, "destination": expandHome(paths[1], p.home)}}, true
	}

	var source string
	var srcRef *embctx.ResolvedReference
	if len(paths) == 1 {
		source = expandHome(paths[0], p.home)
		srcRef = explicitPathReference(source, embKindFile)
	} else {
		p.toolHint = "move_file"
		resolved, ref := p.resolvePathLike(utterance, embKindFile)
		if resolved == "" {
			return Plan{Status: PlanNeedsClarification, Tool: "move_file", ClarifyField: "source",
				ClarifyPrompt: "Which file would you like to move or rename?"}, true
		}
		source, srcRef = resolved, ref
	}

	destToken, hasToken := extractRenameDestinationToken(utterance, source)
	if !hasToken {
		return Plan{Status: PlanNeedsClarification, Tool: "move_file", ClarifyField: "destination",
			ClarifyPrompt: "What should the new name or destination be?"}, true
	}

	var destination string
	if strings.Contains(destToken, "/") || strings.HasPrefix(destToken, "~") {
		destination = expandHome(destToken, p.home)
	} else {
		destination = filepath.Join(filepath.Dir(source), destToken)
	}
	if filepath.Ext(destination) == "" {
		destination += filepath.Ext(source)
	}

	return Plan{Status: PlanReady, Tool: "move_file", Reference: srcRef,
		Params: map[string]any{"source": source, "destination": destination}}, true
}

var renameToPattern = regexp.MustCompile(`(?i)\b(?:to|in) ([\w .\-~/]+)$`)

func extractRenameDestinationToken(utterance, source string) (string, bool) {
	if m := renameToPattern.FindStringSubmatch(strings.TrimSpace(utterance)); m != nil {
		token := strings.TrimSpace(m[1])
		if token != "" && token != source {
			return token, true
		}
	}
	return "", false
}

func matchDeleteByPattern(p *Planner, utterance string) (Plan, bool) {
	if !deletePatternPattern.MatchString(utterance) {
		return Plan{}, false
	}
	p.toolHint = "delete_by_pattern"
	dir, _ := p.resolvePathLike(utterance, embKindFolder)
	if dir == "" {
		dir = p.lastListedDirectory()
	}
	glob, ok := extractGlobPattern(utterance)
	if !ok || dir == "" {
		return Plan{Status: PlanNeedsClarification, Tool: "delete_by_pattern", ClarifyField: "pattern",
			ClarifyPrompt: "Which files should I delete — give me a name pattern like *.tmp?"}, true
	}
	return Plan{Status: PlanReady, Tool: "delete_by_pattern",
		Params: map[string]any{"directory": dir, "pattern": glob}}, true
}

var globPattern = regexp.MustCompile(`[\w.\-]*\*[\w.\-*]*`)

func extractGlobPattern(utterance string) (string, bool) {
	if m := globPattern.FindString(utterance); m != "" {
		return m, true
	}
	return "", false
}

func matchDelete(p *Planner, utterance string) (Plan, bool) {
	if !deletePattern.MatchString(utterance) {
		return Plan{}, false
	}
	p.toolHint = "delete_file"
	path, ref := p.resolvePathLike(utterance, embKindFile)
	if ref != nil && ref.Confidence == embctxConfidenceAmbiguous {
		return Plan{Status: PlanNeedsDisambiguation, Tool: "delete_file", Reference: ref,
			Alternatives: ref.Alternatives}, true
	}
	if path == "" {
		return Plan{Status: PlanNeedsClarification, Tool: "delete_file", ClarifyField: "path",
			ClarifyPrompt: "Which file or folder should I delete?"}, true
	}
	return Plan{Status: PlanReady, Tool: "delete_file", Reference: ref,
		Params: map[string]any{"path": path}}, true
}

func matchOrganize(p *Planner, utterance string) (Plan, bool) {
	if !organizePattern.MatchString(utterance) {
		return Plan{}, false
	}
	p.toolHint = "organize_files"
	dir, ref := p.resolvePathLike(utterance, embKindFolder)
	if dir == "" {
		dir = p.lastListedDirectory()
	}
	if dir == "" {
		return Plan{Status: PlanNeedsClarification, Tool: "organize_files", ClarifyField: "directory",
			ClarifyPrompt: "Which folder would you like organized?"}, true
	}
	if ref != nil && ref.Confidence == embctxConfidenceAmbiguous {
		return Plan{Status: PlanNeedsDisambiguation, Tool: "organize_files", Reference: ref,
			Alternatives: ref.Alternatives}, true
	}
	return Plan{Status: PlanReady, Tool: "organize_files", Reference: ref,
		Params: map[string]any{"directory": dir}}, true
}

func matchSearch(p *Planner, utterance string) (Plan, bool) {
	if !searchPattern.MatchString(utterance) {
		return Plan{}, false
	}
	dir, _ := p.resolvePathLike(utterance, embKindFolder)
	if dir == "" {
		dir = p.lastListedDirectory()
	}
	if dir == "" {
		dir = p.home
	}
	pattern, ok := extractSearchPattern(utterance)
	if !ok {
		return Plan{Status: PlanNeedsClarification, Tool: "search_files", ClarifyField: "pattern",
			ClarifyPrompt: "What file name or pattern should I search for?"}, true
	}
	return Plan{Status: PlanReady, Tool: "search_files",
		Params: map[string]any{"directory": dir, "pattern": pattern, "max_results": 100}}, true
}

var forPattern = regexp.MustCompile(`(?i)(?:search for|find|look for|cerca|trova)\s+([\w.\-*"' ]+)`)

func extractSearchPattern(utterance string) (string, bool) {
	if token, ok := extractQuotedOrBareToken(utterance); ok {
		return globify(token), true
	}
	if m := forPattern.FindStringSubmatch(utterance); m != nil {
		token := strings.TrimSpace(m[1])
		token = strings.TrimSuffix(token, ".")
		if token != "" {
			return globify(token), true
		}
	}
	return "", false
}

func globify(token string) string {
	if strings.ContainsAny(token, "*?") {
		return token
	}
	if strings.Contains(token, ".") {
		return token
	}
	return "*" + token + "*"
}

func matchSystemInfo(p *Planner, utterance string) (Plan, bool) {
	if !systemInfoPattern.MatchString(utterance) {
		return Plan{}, false
	}
	return Plan{Status: PlanReady, Tool: "system_info", Params: map[string]any{}}, true
}
