/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes the Prometheus counters, gauges and histograms
// AIRRA's pipeline stages record into, scraped at /metrics (spec §9).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsObservedTotal counts every signal perception emits, before
	// deduplication.
	SignalsObservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airra_signals_observed_total",
		Help: "Total number of anomaly signals observed by perception.",
	})

	// SignalsDeduplicatedTotal counts signals suppressed as duplicates.
	SignalsDeduplicatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airra_signals_deduplicated_total",
		Help: "Total number of signals suppressed as duplicates.",
	})

	// DedupCompressionRatio reports the current fraction of signals
	// suppressed as duplicates.
	DedupCompressionRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airra_dedup_compression_ratio",
		Help: "Fraction of observed signals suppressed as duplicates.",
	})

	// IncidentsOpenedTotal counts incidents promoted from a correlation
	// candidate.
	IncidentsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airra_incidents_opened_total",
		Help: "Total number of incidents opened by correlation.",
	})

	// IncidentsByStatus tracks how many incidents are currently in each
	// status.
	IncidentsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "airra_incidents_by_status",
		Help: "Current number of incidents in each status.",
	}, []string{"status"})

	// ReasoningCallsTotal counts calls to the external reasoning model,
	// labeled by provider.
	ReasoningCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airra_reasoning_calls_total",
		Help: "Total number of calls to the external reasoning model.",
	}, []string{"provider"})

	// ReasoningErrorsTotal counts failed reasoning calls.
	ReasoningErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airra_reasoning_errors_total",
		Help: "Total number of failed reasoning model calls.",
	}, []string{"provider", "error_kind"})

	// ReasoningDegradedTotal counts incidents that fell back to degraded
	// (no-model) hypothesis generation.
	ReasoningDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airra_reasoning_degraded_total",
		Help: "Total number of incidents that used degraded reasoning fallback.",
	})

	// ReasoningDuration measures reasoning model call latency.
	ReasoningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "airra_reasoning_duration_seconds",
		Help:    "Duration of external reasoning model calls.",
		Buckets: prometheus.DefBuckets,
	})

	// ActionsProposedTotal counts action candidates produced by action
	// selection, labeled by action_type.
	ActionsProposedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airra_actions_proposed_total",
		Help: "Total number of actions proposed by action selection.",
	}, []string{"action_type"})

	// ActionsExecutedTotal counts actions the effector actually ran.
	ActionsExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airra_actions_executed_total",
		Help: "Total number of actions executed.",
	}, []string{"action_type"})

	// ActionExecutionErrorsTotal counts effector call failures.
	ActionExecutionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airra_action_execution_errors_total",
		Help: "Total number of action execution errors.",
	}, []string{"action_type", "error_kind"})

	// ActionOutcomesTotal counts verified action outcomes, labeled by
	// action_type and outcome.
	ActionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airra_action_outcomes_total",
		Help: "Total number of verified action outcomes.",
	}, []string{"action_type", "outcome"})

	// ApprovalsPendingTotal tracks how many actions are currently awaiting
	// human approval.
	ApprovalsPendingTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airra_approvals_pending",
		Help: "Current number of actions awaiting human approval.",
	})

	// ApprovalSLABreachesTotal counts incidents escalated on approval SLA
	// timeout.
	ApprovalSLABreachesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airra_approval_sla_breaches_total",
		Help: "Total number of incidents escalated due to approval SLA breach.",
	})

	// ConcurrentActionsRunning tracks in-flight action executions.
	ConcurrentActionsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airra_concurrent_actions_running",
		Help: "Current number of actions executing concurrently.",
	})

	// PipelineStageDuration measures how long each pipeline stage takes
	// to process one incident.
	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "airra_pipeline_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// PipelineStageTimeoutsTotal counts stage-level deadline breaches.
	PipelineStageTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airra_pipeline_stage_timeouts_total",
		Help: "Total number of pipeline stage deadline breaches.",
	}, []string{"stage"})
)

// RecordSignal increments SignalsObservedTotal.
func RecordSignal() { SignalsObservedTotal.Inc() }

// RecordDuplicate increments SignalsDeduplicatedTotal.
func RecordDuplicate() { SignalsDeduplicatedTotal.Inc() }

// SetDedupCompressionRatio sets the current dedup compression ratio gauge.
func SetDedupCompressionRatio(ratio float64) { DedupCompressionRatio.Set(ratio) }

// RecordIncidentOpened increments IncidentsOpenedTotal.
func RecordIncidentOpened() { IncidentsOpenedTotal.Inc() }

// SetIncidentsByStatus sets the gauge for one status value.
func SetIncidentsByStatus(status string, count float64) {
	IncidentsByStatus.WithLabelValues(status).Set(count)
}

// RecordReasoningCall increments ReasoningCallsTotal for provider and
// observes duration in ReasoningDuration.
func RecordReasoningCall(provider string, duration time.Duration) {
	ReasoningCallsTotal.WithLabelValues(provider).Inc()
	ReasoningDuration.Observe(duration.Seconds())
}

// RecordReasoningError increments ReasoningErrorsTotal.
func RecordReasoningError(provider, errorKind string) {
	ReasoningErrorsTotal.WithLabelValues(provider, errorKind).Inc()
}

// RecordReasoningDegraded increments ReasoningDegradedTotal.
func RecordReasoningDegraded() { ReasoningDegradedTotal.Inc() }

// RecordActionProposed increments ActionsProposedTotal for actionType.
func RecordActionProposed(actionType string) { ActionsProposedTotal.WithLabelValues(actionType).Inc() }

// RecordAction increments ActionsExecutedTotal for actionType.
func RecordAction(actionType string, duration time.Duration) {
	ActionsExecutedTotal.WithLabelValues(actionType).Inc()
}

// RecordActionError increments ActionExecutionErrorsTotal.
func RecordActionError(actionType, errorKind string) {
	ActionExecutionErrorsTotal.WithLabelValues(actionType, errorKind).Inc()
}

// RecordActionOutcome increments ActionOutcomesTotal.
func RecordActionOutcome(actionType, outcome string) {
	ActionOutcomesTotal.WithLabelValues(actionType, outcome).Inc()
}

// SetApprovalsPending sets the current pending-approval gauge.
func SetApprovalsPending(n float64) { ApprovalsPendingTotal.Set(n) }

// RecordApprovalSLABreach increments ApprovalSLABreachesTotal.
func RecordApprovalSLABreach() { ApprovalSLABreachesTotal.Inc() }

// IncrementConcurrentActions increments the in-flight actions gauge.
func IncrementConcurrentActions() { ConcurrentActionsRunning.Inc() }

// DecrementConcurrentActions decrements the in-flight actions gauge.
func DecrementConcurrentActions() { ConcurrentActionsRunning.Dec() }

// RecordStageTimeout increments PipelineStageTimeoutsTotal for stage.
func RecordStageTimeout(stage string) { PipelineStageTimeoutsTotal.WithLabelValues(stage).Inc() }

// Timer measures elapsed wall-clock time and records it against a named
// pipeline stage or action on completion.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the duration since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// RecordStage observes the elapsed duration against PipelineStageDuration
// for stage.
func (t *Timer) RecordStage(stage string) {
	PipelineStageDuration.WithLabelValues(stage).Observe(t.Elapsed().Seconds())
}

// RecordAction records the elapsed duration as one execution of actionType.
func (t *Timer) RecordAction(actionType string) {
	RecordAction(actionType, t.Elapsed())
}

// RecordReasoning records the elapsed duration as one reasoning call to
// provider.
func (t *Timer) RecordReasoning(provider string) {
	RecordReasoningCall(provider, t.Elapsed())
}
