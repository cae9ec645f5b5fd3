// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modelrouter picks which worker model handles a message and
// maintains the registry of known models and their inference backends.
package modelrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/embersai/embersd/services/modelrouter/backend"
)

// DownloadState tracks a model's local availability.
type DownloadState string

const (
	DownloadNotStarted DownloadState = "not_started"
	DownloadInProgress DownloadState = "in_progress"
	DownloadComplete   DownloadState = "complete"
	DownloadFailed     DownloadState = "failed"
)

// Descriptor is one registered model's static metadata.
type Descriptor struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	Backend       string             `json:"backend"` // ollama, openai, anthropic
	IsRouter      bool               `json:"is_router"`
	Capabilities  map[string]float64 `json:"capabilities"` // e.g. {"general":0.8,"code":0.6}
	ContextLength int                `json:"context_length"`
	DownloadState DownloadState      `json:"download_state"`
	RegisteredAt  time.Time          `json:"registered_at"`
}

// GeneralScore is the descriptor's score on the "general" capability,
// the router's fallback ranking key.
func (d Descriptor) GeneralScore() float64 {
	return d.Capabilities["general"]
}

// Registry is the shared, file-persisted model registry. Mutation
// (register/unregister/update state) takes an exclusive lock; reads are
// concurrent.
type Registry struct {
	mu          sync.RWMutex
	path        string
	descriptors map[string]Descriptor
	backends    map[string]backend.InferenceBackend
}

// NewRegistry loads the registry file at path. A missing file yields an
// empty registry; no "router" entry is created here, so Router reports
// false until a descriptor with IsRouter set is registered.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:        path,
		descriptors: make(map[string]Descriptor),
		backends:    make(map[string]backend.InferenceBackend),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading model registry %s: %w", r.path, err)
	}
	var descriptors []Descriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return fmt.Errorf("parsing model registry %s: %w", r.path, err)
	}
	for _, d := range descriptors {
		r.descriptors[d.ID] = d
	}
	return nil
}

func (r *Registry) persistLocked() error {
	descriptors := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		descriptors = append(descriptors, d)
	}
	data, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating model registry dir: %w", err)
	}
	return os.WriteFile(r.path, data, 0o644)
}

// Register adds or replaces a descriptor and its live backend handle.
func (r *Registry) Register(d Descriptor, b backend.InferenceBackend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.RegisteredAt = time.Now()
	r.descriptors[d.ID] = d
	if b != nil {
		r.backends[d.ID] = b
	}
	return r.persistLocked()
}

// AttachBackend binds a live backend handle to an already-registered
// descriptor, used at startup to rehydrate backends for models loaded
// from the registry file.
func (r *Registry) AttachBackend(id string, b backend.InferenceBackend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descriptors[id]; !ok {
		return fmt.Errorf("model %q not registered", id)
	}
	r.backends[id] = b
	return nil
}

// Unregister removes a descriptor and stops its backend.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[id]; ok {
		_ = b.Stop(context.Background())
	}
	delete(r.descriptors, id)
	delete(r.backends, id)
	return r.persistLocked()
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[id]
	return d, ok
}

// Backend returns the live backend handle for id.
func (r *Registry) Backend(id string) (backend.InferenceBackend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[id]
	return b, ok
}

// Router returns the registry's designated router descriptor.
func (r *Registry) Router() (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.descriptors {
		if d.IsRouter {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Workers returns every non-router descriptor.
func (r *Registry) Workers() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Descriptor
	for _, d := range r.descriptors {
		if !d.IsRouter {
			out = append(out, d)
		}
	}
	return out
}

// All returns every registered descriptor.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

// SetDownloadState updates id's download state in place.
func (r *Registry) SetDownloadState(id string, state DownloadState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[id]
	if !ok {
		return fmt.Errorf("model %q not registered", id)
	}
	d.DownloadState = state
	r.descriptors[id] = d
	return r.persistLocked()
}
