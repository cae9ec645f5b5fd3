// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package formatter turns a ToolResult into a short, JSON-free,
// fence-free user message, and guards model-generated text against
// claiming actions no tool actually performed.
package formatter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/embersai/embersd/services/toolexec"
)

const (
	maxListLines   = 8
	maxReadLines   = 60
	maxSearchLines = 8
)

// Formatter renders ToolResult values as plain user-facing text.
type Formatter struct {
	home string
}

// NewFormatter builds a Formatter that shortens paths under home with "~".
func NewFormatter(home string) *Formatter {
	return &Formatter{home: home}
}

// Format renders result as the text shown to the user for this turn.
func (f *Formatter) Format(result toolexec.ToolResult) string {
	if result.Status != "success" {
		if !result.Verification.Passed && result.Verification.Details != "" {
			return result.Verification.Details
		}
		return result.Err
	}

	switch {
	case result.Outcome.List != nil:
		return f.formatList(*result.Outcome.List)
	case result.Outcome.Read != nil:
		return f.formatRead(*result.Outcome.Read)
	case result.Outcome.Search != nil:
		return f.formatSearch(*result.Outcome.Search)
	case result.Outcome.Mutation != nil:
		return f.formatMutation(*result.Outcome.Mutation)
	case result.Outcome.Organize != nil:
		return f.formatOrganize(*result.Outcome.Organize)
	case result.Outcome.Info != nil:
		return f.formatInfo(*result.Outcome.Info)
	}
	return "Done."
}

func (f *Formatter) shortPath(path string) string {
	if f.home == "" {
		return path
	}
	if path == f.home {
		return "~"
	}
	if strings.HasPrefix(path, f.home+string(filepath.Separator)) {
		return "~" + path[len(f.home):]
	}
	return path
}

func (f *Formatter) formatList(o toolexec.ListOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d item(s) in %s:", len(o.Items), f.shortPath(o.Directory))
	shown := o.Items
	truncated := false
	if len(shown) > maxListLines {
		shown = shown[:maxListLines]
		truncated = true
	}
	for i, item := range shown {
		kind := "file"
		if item.IsDir {
			kind = "dir"
		}
		if item.IsDir {
			fmt.Fprintf(&b, "\n%d) %s (%s)", i+1, item.Name, kind)
		} else {
			fmt.Fprintf(&b, "\n%d) %s (%s, %d bytes)", i+1, item.Name, kind, item.Size)
		}
	}
	if truncated {
		fmt.Fprintf(&b, "\n...and %d more", len(o.Items)-maxListLines)
	}
	return b.String()
}

func (f *Formatter) formatRead(o toolexec.ReadOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the first %d line(s) from %s:", min(len(o.Lines), maxReadLines), f.shortPath(o.Path))
	lines := o.Lines
	truncated := o.Truncated
	if len(lines) > maxReadLines {
		lines = lines[:maxReadLines]
		truncated = true
	}
	for _, line := range lines {
		b.WriteString("\n")
		b.WriteString(line)
	}
	if truncated {
		b.WriteString("\n... (truncated)")
	}
	return b.String()
}

func (f *Formatter) formatSearch(o toolexec.SearchOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es).", len(o.Matches))
	shown := o.Matches
	if len(shown) > maxSearchLines {
		shown = shown[:maxSearchLines]
	}
	for _, m := range shown {
		b.WriteString("\n")
		b.WriteString(f.shortPath(m.Path))
	}
	return b.String()
}

func (f *Formatter) formatMutation(o toolexec.MutationOutcome) string {
	switch o.Kind {
	case toolexec.MutationMove:
		if len(o.Before) == 0 || len(o.After) == 0 {
			return "Moved."
		}
		before, after := o.Before[0], o.After[0]
		if filepath.Dir(before) == filepath.Dir(after) {
			return fmt.Sprintf("Renamed '%s' → '%s' in %s.", filepath.Base(before), filepath.Base(after), f.shortPath(filepath.Dir(after)))
		}
		return fmt.Sprintf("Moved '%s' to %s.", filepath.Base(before), f.shortPath(filepath.Dir(after)))

	case toolexec.MutationCopy:
		if len(o.After) == 0 {
			return "Copied."
		}
		// After carries every path present post-op; the destination is last.
		return fmt.Sprintf("Copied to %s.", f.shortPath(o.After[len(o.After)-1]))

	case toolexec.MutationDelete:
		if len(o.Before) == 0 {
			return "Deleted."
		}
		if len(o.Before) == 1 {
			return fmt.Sprintf("Deleted '%s'.", filepath.Base(o.Before[0]))
		}
		return fmt.Sprintf("Deleted %d item(s).", len(o.Before))

	case toolexec.MutationWrite, toolexec.MutationAppend:
		if len(o.After) == 0 {
			return "Wrote file."
		}
		verb := "Wrote"
		if o.Kind == toolexec.MutationAppend {
			verb = "Appended to"
		}
		return fmt.Sprintf("%s '%s' (%d bytes).", verb, filepath.Base(o.After[0]), o.BytesWritten)

	case toolexec.MutationCreate:
		if len(o.After) == 0 {
			return "Created."
		}
		if o.IsDirectory {
			return fmt.Sprintf("Created folder '%s'.", filepath.Base(o.After[0]))
		}
		return fmt.Sprintf("Created '%s'.", filepath.Base(o.After[0]))
	}
	return "Done."
}

func (f *Formatter) formatOrganize(o toolexec.OrganizeOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Organized %d file(s) in %s:", o.MovedCount(), f.shortPath(o.Directory))

	var newFolders []string
	for _, cat := range o.Categories {
		if cat.FolderNew {
			newFolders = append(newFolders, cat.Name)
		}
	}
	if len(newFolders) > 0 {
		fmt.Fprintf(&b, "\nCreated folders: %s", strings.Join(newFolders, ", "))
	}

	for _, cat := range o.Categories {
		fmt.Fprintf(&b, "\n%s/ (%d file(s))", cat.Name, len(cat.Moved))
		shown := cat.Moved
		if len(shown) > maxListLines {
			shown = shown[:maxListLines]
		}
		for _, m := range shown {
			fmt.Fprintf(&b, "\n  - %s", filepath.Base(m.Before))
		}
		if len(cat.Moved) > maxListLines {
			fmt.Fprintf(&b, "\n  ...and %d more", len(cat.Moved)-maxListLines)
		}
	}
	return b.String()
}

func (f *Formatter) formatInfo(o toolexec.InfoOutcome) string {
	if len(o.Roots) == 0 {
		return "No disk usage information available."
	}
	var b strings.Builder
	b.WriteString("Disk usage:")
	for _, r := range o.Roots {
		fmt.Fprintf(&b, "\n%s: %.1f GB free of %.1f GB", f.shortPath(r.Root), gb(r.FreeBytes), gb(r.TotalBytes))
	}
	return b.String()
}

func gb(bytes uint64) float64 {
	return float64(bytes) / (1 << 30)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
