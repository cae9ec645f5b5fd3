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
	"os"
	"path/filepath"
	"strings"
)

// organizeCategory is one named bucket organize_files sorts a file into,
// matched first by extension and, for text-like files, falling back to a
// content/filename keyword scan.
type organizeCategory struct {
	name       string
	extensions []string
	keywords   []string
}

// organizeCategories is the ordered set of buckets organize_files
// recognizes. Order matters: a file matching more than one category's
// extension list (it can't, extensions are disjoint below) or keyword list
// takes the first match.
var organizeCategories = []organizeCategory{
	{
		name:       "Code",
		extensions: []string{".go", ".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".cpp", ".c", ".h", ".rs", ".rb", ".php", ".swift", ".kt"},
		keywords:   []string{"func ", "def ", "function ", "class ", "import ", "const ", "package "},
	},
	{
		name:       "Documents",
		extensions: []string{".txt", ".doc", ".docx", ".pdf", ".rtf", ".odt", ".md"},
		keywords:   []string{"meeting", "notes", "report", "letter", "memo", "dear ", "summary"},
	},
	{
		name:     "Receipts",
		keywords: []string{"receipt", "invoice", "order", "payment", "total:", "$", "amount due", "paid"},
	},
	{
		name:       "Images",
		extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico", ".tiff"},
	},
	{
		name:       "Videos",
		extensions: []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".flv", ".wmv"},
	},
	{
		name:       "Audio",
		extensions: []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a"},
	},
	{
		name:       "Archives",
		extensions: []string{".zip", ".tar", ".gz", ".rar", ".7z", ".bz2"},
	},
	{
		name:       "Data",
		extensions: []string{".json", ".xml", ".csv", ".yaml", ".yml", ".sql", ".db"},
	},
}

// textSniffExtensions are the extensions whose first kilobyte gets scanned
// for keywords when the extension alone doesn't place the file.
var textSniffExtensions = map[string]bool{
	".txt": true, ".md": true, ".go": true, ".py": true, ".js": true,
	".ts": true, ".json": true, ".xml": true, ".csv": true, ".html": true, ".css": true,
}

const organizeSniffBytes = 1000

// categorizeFile decides which bucket path belongs in: by extension first,
// then (for text-like extensions) by a keyword scan of its first kilobyte
// and filename, then by filename alone. "Other" is the catch-all.
func categorizeFile(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.ToLower(filepath.Base(path))

	for _, cat := range organizeCategories {
		for _, e := range cat.extensions {
			if e == ext {
				return cat.name
			}
		}
	}

	if textSniffExtensions[ext] {
		if head := readHeadLower(path, organizeSniffBytes); head != "" {
			for _, cat := range organizeCategories {
				for _, kw := range cat.keywords {
					if strings.Contains(head, kw) || strings.Contains(name, kw) {
						return cat.name
					}
				}
			}
		}
	}

	for _, cat := range organizeCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(name, kw) {
				return cat.name
			}
		}
	}

	return "Other"
}

func readHeadLower(path string, n int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, n)
	read, _ := f.Read(buf)
	return strings.ToLower(string(buf[:read]))
}

// OrganizeFiles sorts the immediate (non-directory) children of directory
// into category subfolders (Code, Documents, Images, Receipts, ...) based
// on extension and, for text-like files, content. Existing subfolders are
// reused; a destination name clash is resolved by appending "_1", "_2", ...
// before the extension, matching shutil.move's counter-suffix convention.
func (e *Executor) OrganizeFiles(directory string) ToolResult {
	real, err := e.guard.Validate(directory)
	if err != nil {
		return errorResult(ActionOrganize, err)
	}

	info, err := os.Stat(real)
	if err != nil || !info.IsDir() {
		return verificationFailure(ActionOrganize, nil, nil, "directory does not exist")
	}

	entries, err := os.ReadDir(real)
	if err != nil {
		return errorResult(ActionOrganize, fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}

	byCategory := make(map[string][]string)
	var order []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		full := filepath.Join(real, ent.Name())
		cat := categorizeFile(full)
		if _, seen := byCategory[cat]; !seen {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], full)
	}

	if len(order) == 0 {
		return errorResult(ActionOrganize, fmt.Errorf("%w: no files to organize", ErrInvalidArgument))
	}

	var categories []OrganizeCategory
	var before, after []string
	for _, catName := range order {
		files := byCategory[catName]
		folder := filepath.Join(real, catName)
		_, statErr := os.Stat(folder)
		folderIsNew := statNotExist(statErr)
		if folderIsNew {
			if err := os.MkdirAll(folder, 0o755); err != nil {
				return errorResult(ActionOrganize, fmt.Errorf("%w: creating %s: %v", ErrPermissionDenied, catName, err))
			}
		}

		var moved []OrganizeMove
		for _, src := range files {
			dst := organizeDestination(folder, src)
			if err := os.Rename(src, dst); err != nil {
				return errorResult(ActionOrganize, fmt.Errorf("%w: moving %s: %v", ErrPermissionDenied, filepath.Base(src), err))
			}
			moved = append(moved, OrganizeMove{Before: src, After: dst})
			before = append(before, src)
			after = append(after, dst)
		}

		categories = append(categories, OrganizeCategory{Name: catName, FolderNew: folderIsNew, Moved: moved})
	}

	for _, cat := range categories {
		for _, m := range cat.Moved {
			if _, err := os.Stat(m.Before); err == nil || !statNotExist(err) {
				return verificationFailure(ActionOrganize, before, after, fmt.Sprintf("%s still present after organize", filepath.Base(m.Before)))
			}
			if _, err := os.Stat(m.After); err != nil {
				return verificationFailure(ActionOrganize, before, after, fmt.Sprintf("%s missing after organize", filepath.Base(m.After)))
			}
		}
	}

	return ToolResult{
		Status:       "success",
		Action:       ActionOrganize,
		Outcome:      Outcome{Organize: &OrganizeOutcome{Directory: real, Categories: categories}},
		BeforePaths:  before,
		AfterPaths:   after,
		Verification: Verification{Passed: true, Details: "each moved file absent from source, present at destination"},
	}
}

// organizeDestination returns folder/basename(src), or a "_1", "_2", ...
// suffixed variant if that name is already taken inside folder.
func organizeDestination(folder, src string) string {
	name := filepath.Base(src)
	dst := filepath.Join(folder, name)
	if _, err := os.Stat(dst); statNotExist(err) {
		return dst
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(folder, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); statNotExist(err) {
			return candidate
		}
	}
}
