// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rag retrieves background context for a user message from a
// local document index, when one is configured.
package rag

import "context"

// Provider retrieves context for query. The second return value reports
// whether any context was found; false means the caller should proceed
// without RAG context rather than treat it as an error.
type Provider interface {
	RetrieveContext(ctx context.Context, query string) (string, bool, error)
}
