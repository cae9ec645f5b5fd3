// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads embersd's daemon configuration.
//
// Values come from environment variables, with an optional
// ~/.embersd/config.yaml overlay for anything not set in the
// environment. Environment variables always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon's runtime configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// LLMBackend selects the default worker backend: ollama, openai, or anthropic.
	LLMBackend string `yaml:"llm_backend"`

	// WeaviateURL is the base URL of the document index, empty disables RAG.
	WeaviateURL string `yaml:"weaviate_url"`

	// OTelEndpoint is the OTLP gRPC collector address.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// DataDir holds the badger entity store and the model registry file.
	DataDir string `yaml:"data_dir"`

	// AllowExtraRoots appends additional allow-listed filesystem roots
	// beyond the user home and /tmp, comma-separated.
	AllowExtraRoots []string `yaml:"allow_extra_roots"`

	// Home is the resolved user home directory.
	Home string `yaml:"-"`

	// WellKnownFolders maps a locale-independent alias (desktop, downloads,
	// documents, home) to its resolved absolute path.
	WellKnownFolders map[string]string `yaml:"-"`
}

// fileOverlay mirrors the subset of Config that may come from
// ~/.embersd/config.yaml. Kept separate from Config so env-only fields
// (Home, WellKnownFolders) never round-trip through YAML.
type fileOverlay struct {
	Port            int      `yaml:"port"`
	LLMBackend      string   `yaml:"llm_backend"`
	WeaviateURL     string   `yaml:"weaviate_url"`
	OTelEndpoint    string   `yaml:"otel_endpoint"`
	DataDir         string   `yaml:"data_dir"`
	AllowExtraRoots []string `yaml:"allow_extra_roots"`
}

// Load builds a Config from ~/.embersd/config.yaml (if present) overlaid
// by environment variables, then resolves well-known folders.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolving home directory: %w", err)
	}

	overlay, err := loadFileOverlay(filepath.Join(home, ".embersd", "config.yaml"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:            getEnvInt("EMBERSD_PORT", firstNonZero(overlay.Port, 8787)),
		LLMBackend:      getEnvString("EMBERSD_LLM_BACKEND", firstNonEmpty(overlay.LLMBackend, "ollama")),
		WeaviateURL:     getEnvString("EMBERSD_WEAVIATE_URL", overlay.WeaviateURL),
		OTelEndpoint:    getEnvString("EMBERSD_OTEL_ENDPOINT", firstNonEmpty(overlay.OTelEndpoint, "localhost:4317")),
		DataDir:         getEnvString("EMBERSD_DATA_DIR", firstNonEmpty(overlay.DataDir, filepath.Join(home, ".embersd", "data"))),
		AllowExtraRoots: overlay.AllowExtraRoots,
		Home:            home,
	}
	if extra := os.Getenv("EMBERSD_ALLOW_EXTRA_ROOTS"); extra != "" {
		cfg.AllowExtraRoots = splitCommaList(extra)
	}

	cfg.WellKnownFolders = resolveWellKnownFolders(home)

	return cfg, nil
}

func loadFileOverlay(path string) (fileOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileOverlay{}, nil
		}
		return fileOverlay{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fileOverlay{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return overlay, nil
}

// resolveWellKnownFolders resolves the user's locale folder names once at
// startup. These are English names; the intent planner's well-known-folder
// rules also recognize Italian aliases and map them back to these same keys.
func resolveWellKnownFolders(home string) map[string]string {
	return map[string]string{
		"home":      home,
		"desktop":   filepath.Join(home, "Desktop"),
		"downloads": filepath.Join(home, "Downloads"),
		"documents": filepath.Join(home, "Documents"),
	}
}

// AllowedRoots returns the filesystem roots the path guard allows:
// the user home, /tmp, and any configured extra roots.
func (c Config) AllowedRoots() []string {
	roots := []string{c.Home, os.TempDir()}
	return append(roots, c.AllowExtraRoots...)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
