// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging wraps log/slog with the multi-destination behavior every
// embersd component shares: stderr by default, an optional per-day JSON
// file under a log directory, and a pluggable LogExporter hook for
// forwarding entries somewhere else. Handlers that claim a conversation or
// a tool invocation should build a scoped logger with ForTurn or With
// rather than passing conversation_id/turn_index by hand at every call
// site.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is a logging severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String renders the level's name, or "UNKNOWN" outside the defined range.
func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls one Logger's destinations. The zero value logs Debug+
// (LevelDebug is the zero Level) as text to stderr.
type Config struct {
	Level Level

	// LogDir, if set, adds a "{Service}_{YYYY-MM-DD}.log" JSON destination
	// under this directory (created 0750; "~" expands to the home dir).
	LogDir string

	// Service tags every entry and, when LogDir is set, names the file.
	// Falls back to "embersd" for the filename only.
	Service string

	// JSON formats the stderr destination as JSON instead of text. The
	// file destination is always JSON regardless of this setting.
	JSON bool

	// Quiet drops the stderr destination entirely.
	Quiet bool

	// Exporter, if set, receives every entry asynchronously in addition to
	// whatever stderr/file destinations are active.
	Exporter LogExporter
}

// LogExporter forwards entries to something outside this process: a
// collector, a support-bundle writer, a test buffer.
type LogExporter interface {
	// Export is called once per entry, off the logging goroutine. Errors
	// are logged nowhere and never propagated — a broken exporter must
	// not take down logging.
	Export(ctx context.Context, entry LogEntry) error
	// Flush blocks until every buffered entry has been sent.
	Flush(ctx context.Context) error
	// Close releases the exporter's resources; called after Flush.
	Close() error
}

// LogEntry is the shape handed to a LogExporter.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// Logger is a slog.Logger wrapped with file/exporter lifecycle management.
// Safe for concurrent use.
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter LogExporter
	mu       sync.Mutex
}

// New builds a Logger from config. The returned Logger owns any file it
// opens and must be closed with Close.
func New(config Config) *Logger {
	handler, file := buildHandler(config)
	l := &Logger{slog: slog.New(handler), config: config, file: file, exporter: config.Exporter}
	return l
}

// Default is New(Config{Level: LevelInfo, Service: "embersd"}).
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "embersd"})
}

// buildHandler assembles the stderr/file handler combination config calls
// for, opening the log file as a side effect if LogDir is usable. A
// handler is always returned, even under Quiet with no LogDir: logging
// must never become a silent no-op just because neither destination applies.
func buildHandler(config Config) (slog.Handler, *os.File) {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	var file *os.File
	if config.LogDir != "" {
		if f, err := openLogFile(config.LogDir, config.Service); err == nil {
			file = f
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}
	return handler, file
}

func openLogFile(dir, service string) (*os.File, error) {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	if service == "" {
		service = "embersd"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a child logger carrying args on every subsequent call,
// sharing this logger's file handle and exporter.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
	}
}

// ForTurn scopes a logger to one conversation turn, attaching
// conversation_id and turn_index so every subsequent call is filterable by
// turn without the caller repeating those two attributes.
func (l *Logger) ForTurn(conversationID string, turnIndex int64) *Logger {
	return l.With("conversation_id", conversationID, "turn_index", turnIndex)
}

// Slog exposes the underlying slog.Logger for callers that need APIs this
// wrapper doesn't surface (LogAttrs, custom Record handling).
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close flushes and closes the exporter (if any), then syncs and closes
// the log file (if any), returning every error encountered joined in that
// order, or nil.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
		cancel()
	}
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.exporter == nil || level < l.config.Level {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Service:   l.config.Service,
		Attrs:     argsToMap(args),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.exporter.Export(ctx, entry)
	}()
}

// multiHandler fans a record out to every handler that accepts its level,
// so stderr and the log file can run different formats simultaneously.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		out[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}

// expandPath resolves a leading "~" to the user's home directory; anything
// else is returned unchanged.
func expandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// argsToMap pairs up slog-style key/value varargs, dropping a trailing
// unpaired value and any pair whose key isn't a string.
func argsToMap(args []any) map[string]any {
	out := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		out[key] = args[i+1]
	}
	return out
}

// NopExporter discards every entry.
type NopExporter struct{}

func (NopExporter) Export(context.Context, LogEntry) error { return nil }
func (NopExporter) Flush(context.Context) error             { return nil }
func (NopExporter) Close() error                            { return nil }

var _ LogExporter = NopExporter{}

// BufferedExporter accumulates entries in memory, for tests that need to
// assert on what was logged.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{entries: make([]LogEntry, 0, 100)}
}

func (e *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

func (e *BufferedExporter) Flush(context.Context) error { return nil }
func (e *BufferedExporter) Close() error                { return nil }

// Entries returns a snapshot copy; mutating it does not affect the exporter.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

// WriterExporter renders each entry as one line to an io.Writer.
type WriterExporter struct {
	w  io.Writer
	mu sync.Mutex
}

func NewWriterExporter(w io.Writer) *WriterExporter {
	return &WriterExporter{w: w}
}

func (e *WriterExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.w, "[%s] %s: %s %v\n",
		entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message, entry.Attrs)
	return err
}

func (e *WriterExporter) Flush(context.Context) error { return nil }
func (e *WriterExporter) Close() error                { return nil }
