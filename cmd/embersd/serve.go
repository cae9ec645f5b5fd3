// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	embctx "github.com/embersai/embersd/services/context"
	"github.com/embersai/embersd/services/formatter"
	"github.com/embersai/embersd/services/modelrouter"
	"github.com/embersai/embersd/services/modelrouter/backend"
	"github.com/embersai/embersd/services/orchestrator"
	"github.com/embersai/embersd/services/orchestrator/observability"
	"github.com/embersai/embersd/services/orchestrator/routes"
	"github.com/embersai/embersd/services/rag"
	"github.com/embersai/embersd/services/toolexec"
	"github.com/embersai/embersd/services/turn"

	"github.com/embersai/embersd/pkg/config"
	"github.com/embersai/embersd/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the embersd daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  filepath.Join(cfg.DataDir, "logs"),
		Service: "embersd",
	})
	defer logger.Close()
	logger.Info("starting embersd", "port", cfg.Port, "llm_backend", cfg.LLMBackend, "data_dir", cfg.DataDir)

	if shutdownTracing, err := initTracing(cfg.OTelEndpoint, "embersd"); err != nil {
		logger.Warn("tracing disabled: could not reach otel collector", "endpoint", cfg.OTelEndpoint, "error", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	store, err := embctx.Open(filepath.Join(cfg.DataDir, "entities"))
	if err != nil {
		return fmt.Errorf("opening entity store: %w", err)
	}
	defer store.Close()

	guard := toolexec.NewPathGuard(cfg.Home, cfg.AllowedRoots())
	tools := toolexec.NewRegistry(toolexec.NewExecutor(guard))

	modelRegistry, err := modelrouter.NewRegistry(filepath.Join(cfg.DataDir, "models.json"))
	if err != nil {
		return fmt.Errorf("opening model registry: %w", err)
	}
	if err := seedDefaultModels(modelRegistry, cfg); err != nil {
		return fmt.Errorf("seeding model registry: %w", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	for _, d := range modelRegistry.All() {
		b, ok := modelRegistry.Backend(d.ID)
		if !ok {
			// Descriptor came from a previous run's registry file; its
			// backend handle has to be rebuilt for this process.
			rebuilt, err := buildBackend(d.Backend, cfg)
			if err != nil {
				logger.Warn("skipping model with unknown backend", "model_id", d.ID, "backend", d.Backend, "error", err)
				continue
			}
			if err := modelRegistry.AttachBackend(d.ID, rebuilt); err != nil {
				return fmt.Errorf("attaching backend for %s: %w", d.ID, err)
			}
			b = rebuilt
		}
		if err := b.Start(startCtx); err != nil {
			logger.Warn("backend failed to start", "model_id", d.ID, "error", err)
		}
	}

	router := modelrouter.NewRouter(modelRegistry)
	planner := turn.NewPlanner(store, cfg.Home, cfg.WellKnownFolders)
	tracker := turn.NewTracker(store)
	respFormatter := formatter.NewFormatter(cfg.Home)

	ragProvider, err := buildRAGProvider(cfg)
	if err != nil {
		return fmt.Errorf("building RAG provider: %w", err)
	}

	turnOrchestrator := turn.New(store, planner, tracker, tools, router, ragProvider, respFormatter)
	svc := orchestrator.New(store, tools, modelRegistry, router, turnOrchestrator, ragProvider)

	metrics := observability.InitMetrics()

	engine := gin.New()
	engine.Use(gin.Recovery())
	routes.SetupRoutes(engine, svc, metrics)

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	for _, d := range modelRegistry.All() {
		if b, ok := modelRegistry.Backend(d.ID); ok {
			_ = b.Stop(shutdownCtx)
		}
	}
	return nil
}

// seedDefaultModels registers a router model and a worker model from
// cfg.LLMBackend the first time the registry is empty, so a fresh
// install has something to route to without a separate setup step.
func seedDefaultModels(registry *modelrouter.Registry, cfg config.Config) error {
	if len(registry.All()) > 0 {
		return nil
	}

	b, err := buildBackend(cfg.LLMBackend, cfg)
	if err != nil {
		return err
	}

	if err := registry.Register(modelrouter.Descriptor{
		ID:           "router",
		Name:         "Router",
		Backend:      cfg.LLMBackend,
		IsRouter:     true,
		Capabilities: map[string]float64{"general": 0.5},
	}, b); err != nil {
		return err
	}

	worker, err := buildBackend(cfg.LLMBackend, cfg)
	if err != nil {
		return err
	}
	return registry.Register(modelrouter.Descriptor{
		ID:           "default",
		Name:         "Default Worker",
		Backend:      cfg.LLMBackend,
		Capabilities: map[string]float64{"general": 0.8},
	}, worker)
}

func buildBackend(name string, cfg config.Config) (backend.InferenceBackend, error) {
	switch name {
	case "openai":
		apiKey := os.Getenv("EMBERSD_OPENAI_API_KEY")
		return backend.NewOpenAIBackend(apiKey, "", "gpt-4o-mini"), nil
	case "anthropic":
		apiKey := os.Getenv("EMBERSD_ANTHROPIC_API_KEY")
		return backend.NewAnthropicBackend(apiKey, "claude-sonnet-4-5"), nil
	case "ollama", "":
		return backend.NewOllamaBackend("http://localhost:11434", "llama3", 5), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", name)
	}
}

func buildRAGProvider(cfg config.Config) (rag.Provider, error) {
	if cfg.WeaviateURL == "" {
		return rag.NewNoopProvider(), nil
	}
	return rag.NewWeaviateProvider(cfg.WeaviateURL, "embersd")
}
