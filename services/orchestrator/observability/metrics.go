// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability exposes the /chat endpoints' Prometheus metrics:
// request/error counters, token and tool-usage counters, and the
// time-to-first-token / stream-duration histograms. Registered once via
// InitMetrics at startup and passed into the handlers package from there.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace   = "embersd"
	streamingSubsystem = "streaming"
)

// Endpoint labels which /chat variant a metric observation came from.
type Endpoint string

const (
	EndpointChatSync   Endpoint = "chat_sync"
	EndpointChatStream Endpoint = "chat_stream"
)

// ErrorCode categorizes a failed request for the errors_total counter.
type ErrorCode string

const (
	ErrorCodePolicyViolation  ErrorCode = "policy_violation"
	ErrorCodeValidation       ErrorCode = "validation"
	ErrorCodeLLMError         ErrorCode = "llm_error"
	ErrorCodeTimeout          ErrorCode = "timeout"
	ErrorCodeRAGError         ErrorCode = "rag_error"
	ErrorCodeInternal         ErrorCode = "internal"
	ErrorCodeClientDisconnect ErrorCode = "client_disconnect"
)

// StreamingMetrics is the /chat endpoints' full metric set. Build one with
// InitMetrics (production, default registry) or by hand with a test
// registry; either way every field must be non-nil before use.
type StreamingMetrics struct {
	RequestsTotal           *prometheus.CounterVec
	TokensTotal             *prometheus.CounterVec
	TimeToFirstTokenSeconds *prometheus.HistogramVec
	StreamDurationSeconds   *prometheus.HistogramVec
	ActiveStreams           *prometheus.GaugeVec
	ErrorsTotal             *prometheus.CounterVec
	KeepAlivesTotal         *prometheus.CounterVec
	ClientDisconnectsTotal  *prometheus.CounterVec

	// ToolInvocationsTotal counts turns that resolved to a tool call, by
	// endpoint and tool name ("none" when the turn fell through to the
	// model). This is the one metric of the set that isn't generic
	// request/latency plumbing: it comes from TurnResult.ToolUsed, so it
	// tracks how much of the traffic the verified tool executor is
	// actually handling versus the model fallback.
	ToolInvocationsTotal *prometheus.CounterVec
}

// counterSpec/histogramSpec/gaugeSpec describe one metric's name, help
// text, and label set; buildCounters etc. turn a table of these into
// registered promauto metrics without repeating the namespace/subsystem
// boilerplate at each call site.
type counterSpec struct {
	name   string
	help   string
	labels []string
}

type histogramSpec struct {
	name    string
	help    string
	buckets []float64
	labels  []string
}

type gaugeSpec struct {
	name   string
	help   string
	labels []string
}

func newCounter(s counterSpec) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: streamingSubsystem,
		Name:      s.name,
		Help:      s.help,
	}, s.labels)
}

func newHistogram(s histogramSpec) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: streamingSubsystem,
		Name:      s.name,
		Help:      s.help,
		Buckets:   s.buckets,
	}, s.labels)
}

func newGauge(s gaugeSpec) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: streamingSubsystem,
		Name:      s.name,
		Help:      s.help,
	}, s.labels)
}

// DefaultMetrics is set by InitMetrics; nil until then.
var DefaultMetrics *StreamingMetrics

// InitMetrics registers every /chat metric with the default Prometheus
// registry and sets DefaultMetrics. Call once at startup; a second call
// panics on duplicate registration, same as promauto everywhere else.
func InitMetrics() *StreamingMetrics {
	DefaultMetrics = &StreamingMetrics{
		RequestsTotal: newCounter(counterSpec{
			name: "requests_total", help: "Total number of streaming requests by endpoint and status",
			labels: []string{"endpoint", "status"},
		}),
		TokensTotal: newCounter(counterSpec{
			name: "tokens_total", help: "Total tokens processed by direction and model",
			labels: []string{"direction", "model"},
		}),
		TimeToFirstTokenSeconds: newHistogram(histogramSpec{
			name: "time_to_first_token_seconds", help: "Time from request to first token in seconds",
			buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			labels:  []string{"endpoint"},
		}),
		StreamDurationSeconds: newHistogram(histogramSpec{
			name: "stream_duration_seconds", help: "Total stream duration in seconds",
			buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			labels:  []string{"endpoint", "status"},
		}),
		ActiveStreams: newGauge(gaugeSpec{
			name: "active_streams", help: "Number of currently active streaming connections",
			labels: []string{"endpoint"},
		}),
		ErrorsTotal: newCounter(counterSpec{
			name: "errors_total", help: "Total streaming errors by type and endpoint",
			labels: []string{"endpoint", "error_code"},
		}),
		KeepAlivesTotal: newCounter(counterSpec{
			name: "keepalives_total", help: "Total keepalive pings sent",
			labels: []string{"endpoint"},
		}),
		ClientDisconnectsTotal: newCounter(counterSpec{
			name: "client_disconnects_total", help: "Total client disconnections during streaming",
			labels: []string{"endpoint"},
		}),
		ToolInvocationsTotal: newCounter(counterSpec{
			name: "tool_invocations_total", help: "Turns resolved by the tool executor, by endpoint and tool name",
			labels: []string{"endpoint", "tool"},
		}),
	}
	return DefaultMetrics
}

func (m *StreamingMetrics) RecordRequest(endpoint Endpoint, success bool) {
	m.RequestsTotal.WithLabelValues(string(endpoint), statusLabel(success)).Inc()
}

func (m *StreamingMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

func (m *StreamingMetrics) RecordTokens(inputTokens, outputTokens int, model string) {
	m.TokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

func (m *StreamingMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

func (m *StreamingMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

func (m *StreamingMetrics) RecordTimeToFirstToken(endpoint Endpoint, seconds float64) {
	m.TimeToFirstTokenSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

func (m *StreamingMetrics) RecordStreamDuration(endpoint Endpoint, seconds float64, success bool) {
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), statusLabel(success)).Observe(seconds)
}

func (m *StreamingMetrics) RecordKeepAlive(endpoint Endpoint) {
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

func (m *StreamingMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordToolUsage tags a completed turn with the tool it resolved to, or
// "none" if the turn fell through to direct model generation.
func (m *StreamingMetrics) RecordToolUsage(endpoint Endpoint, tool string) {
	if tool == "" {
		tool = "none"
	}
	m.ToolInvocationsTotal.WithLabelValues(string(endpoint), tool).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
