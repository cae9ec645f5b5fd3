// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// documentClass is the Weaviate class embersd indexes local documents
// into. The name is fixed, so every daemon that points at the same
// Weaviate cluster queries the same class.
const documentClass = "EmbersdDocument"

// WeaviateProvider retrieves near-text matches from a local Weaviate
// instance as free-form context, appended to the system prompt.
type WeaviateProvider struct {
	client    *weaviate.Client
	dataSpace string
	topK      int
}

// NewWeaviateProvider builds a provider against rawURL (e.g.
// "http://localhost:8080"). dataSpace is stored on the provider;
// RetrieveContext does not filter by it and searches the whole document
// class.
func NewWeaviateProvider(rawURL, dataSpace string) (*WeaviateProvider, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing weaviate URL: %w", err)
	}
	cfg := weaviate.Config{Scheme: parsed.Scheme, Host: parsed.Host}
	client := weaviate.New(cfg)
	return &WeaviateProvider{client: client, dataSpace: dataSpace, topK: 5}, nil
}

// RetrieveContext runs a near-text search over the document class and
// concatenates the top matches' content as one context block.
func (p *WeaviateProvider) RetrieveContext(ctx context.Context, query string) (string, bool, error) {
	nearText := p.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "path"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := p.client.GraphQL().Get().
		WithClassName(documentClass).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(p.topK).
		Do(ctx)
	if err != nil {
		return "", false, fmt.Errorf("weaviate near-text query: %w", err)
	}
	if len(result.Errors) > 0 {
		return "", false, fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}

	data := make(map[string]any, len(result.Data))
	for k, v := range result.Data {
		data[k] = v
	}
	snippets := extractSnippets(data)
	if len(snippets) == 0 {
		return "", false, nil
	}
	return strings.Join(snippets, "\n---\n"), true, nil
}

func extractSnippets(data map[string]any) []string {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	rows, ok := get[documentClass].([]any)
	if !ok {
		return nil
	}
	var snippets []string
	for _, row := range rows {
		fields, ok := row.(map[string]any)
		if !ok {
			continue
		}
		content, _ := fields["content"].(string)
		path, _ := fields["path"].(string)
		if content == "" {
			continue
		}
		if path != "" {
			snippets = append(snippets, fmt.Sprintf("[%s]\n%s", path, content))
		} else {
			snippets = append(snippets, content)
		}
	}
	return snippets
}
