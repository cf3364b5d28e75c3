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

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestRecordSignal(t *testing.T) {
	initial := testutil.ToFloat64(SignalsObservedTotal)

	RecordSignal()
	after := testutil.ToFloat64(SignalsObservedTotal)
	assert.Equal(t, initial+1.0, after)

	RecordSignal()
	final := testutil.ToFloat64(SignalsObservedTotal)
	assert.Equal(t, initial+2.0, final)
}

func TestRecordDuplicateAndCompressionRatio(t *testing.T) {
	initial := testutil.ToFloat64(SignalsDeduplicatedTotal)
	RecordDuplicate()
	assert.Equal(t, initial+1.0, testutil.ToFloat64(SignalsDeduplicatedTotal))

	SetDedupCompressionRatio(0.42)
	assert.Equal(t, 0.42, testutil.ToFloat64(DedupCompressionRatio))

	SetDedupCompressionRatio(0.58)
	assert.Equal(t, 0.58, testutil.ToFloat64(DedupCompressionRatio))
}

func TestRecordIncidentOpenedAndStatusGauge(t *testing.T) {
	initial := testutil.ToFloat64(IncidentsOpenedTotal)
	RecordIncidentOpened()
	assert.Equal(t, initial+1.0, testutil.ToFloat64(IncidentsOpenedTotal))

	SetIncidentsByStatus("correlating", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(IncidentsByStatus.WithLabelValues("correlating")))
}

func TestRecordReasoningCall(t *testing.T) {
	provider := "test_anthropic"
	duration := 500 * time.Millisecond

	initialCounter := testutil.ToFloat64(ReasoningCallsTotal.WithLabelValues(provider))
	RecordReasoningCall(provider, duration)
	finalCounter := testutil.ToFloat64(ReasoningCallsTotal.WithLabelValues(provider))
	assert.Equal(t, initialCounter+1.0, finalCounter)

	metric := &dto.Metric{}
	ReasoningDuration.Write(metric)
	assert.True(t, metric.GetHistogram().GetSampleCount() > 0, "Histogram should have recorded samples")
}

func TestRecordReasoningErrorAndDegraded(t *testing.T) {
	provider := "test_localai"
	errorKind := "timeout"

	initial := testutil.ToFloat64(ReasoningErrorsTotal.WithLabelValues(provider, errorKind))
	RecordReasoningError(provider, errorKind)
	final := testutil.ToFloat64(ReasoningErrorsTotal.WithLabelValues(provider, errorKind))
	assert.Equal(t, initial+1.0, final)

	initialDegraded := testutil.ToFloat64(ReasoningDegradedTotal)
	RecordReasoningDegraded()
	assert.Equal(t, initialDegraded+1.0, testutil.ToFloat64(ReasoningDegradedTotal))
}

func TestRecordActionProposedAndExecuted(t *testing.T) {
	actionType := "test_scale_up"

	initialProposed := testutil.ToFloat64(ActionsProposedTotal.WithLabelValues(actionType))
	RecordActionProposed(actionType)
	assert.Equal(t, initialProposed+1.0, testutil.ToFloat64(ActionsProposedTotal.WithLabelValues(actionType)))

	initialExecuted := testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues(actionType))
	RecordAction(actionType, 100*time.Millisecond)
	assert.Equal(t, initialExecuted+1.0, testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues(actionType)))
}

func TestRecordActionErrorAndOutcome(t *testing.T) {
	actionType := "test_restart_pod"
	errorKind := "pod_not_found"

	initial := testutil.ToFloat64(ActionExecutionErrorsTotal.WithLabelValues(actionType, errorKind))
	RecordActionError(actionType, errorKind)
	assert.Equal(t, initial+1.0, testutil.ToFloat64(ActionExecutionErrorsTotal.WithLabelValues(actionType, errorKind)))

	initialOutcome := testutil.ToFloat64(ActionOutcomesTotal.WithLabelValues(actionType, "SUCCESS"))
	RecordActionOutcome(actionType, "SUCCESS")
	assert.Equal(t, initialOutcome+1.0, testutil.ToFloat64(ActionOutcomesTotal.WithLabelValues(actionType, "SUCCESS")))
}

func TestApprovalGaugesAndCounters(t *testing.T) {
	SetApprovalsPending(5.0)
	assert.Equal(t, 5.0, testutil.ToFloat64(ApprovalsPendingTotal))

	initial := testutil.ToFloat64(ApprovalSLABreachesTotal)
	RecordApprovalSLABreach()
	assert.Equal(t, initial+1.0, testutil.ToFloat64(ApprovalSLABreachesTotal))
}

func TestConcurrentActionsGauge(t *testing.T) {
	initial := testutil.ToFloat64(ConcurrentActionsRunning)

	IncrementConcurrentActions()
	value := testutil.ToFloat64(ConcurrentActionsRunning)
	assert.Equal(t, initial+1.0, value)

	IncrementConcurrentActions()
	value = testutil.ToFloat64(ConcurrentActionsRunning)
	assert.Equal(t, initial+2.0, value)

	DecrementConcurrentActions()
	value = testutil.ToFloat64(ConcurrentActionsRunning)
	assert.Equal(t, initial+1.0, value)

	DecrementConcurrentActions()
	value = testutil.ToFloat64(ConcurrentActionsRunning)
	assert.Equal(t, initial, value)
}

func TestRecordStageTimeout(t *testing.T) {
	initial := testutil.ToFloat64(PipelineStageTimeoutsTotal.WithLabelValues("test_reasoning"))
	RecordStageTimeout("test_reasoning")
	assert.Equal(t, initial+1.0, testutil.ToFloat64(PipelineStageTimeoutsTotal.WithLabelValues("test_reasoning")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()

	assert.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())

	time.Sleep(10 * time.Millisecond)

	elapsed := timer.Elapsed()
	assert.True(t, elapsed >= 10*time.Millisecond, "Elapsed time should be at least 10ms")
	assert.True(t, elapsed < 200*time.Millisecond, "Elapsed time should be well under 200ms")
}

func TestTimerRecordAction(t *testing.T) {
	timer := NewTimer()
	actionType := "test_timer_action"

	initialCounter := testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues(actionType))
	time.Sleep(10 * time.Millisecond)
	timer.RecordAction(actionType)

	finalCounter := testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues(actionType))
	assert.Equal(t, initialCounter+1.0, finalCounter)
}

func TestTimerRecordReasoning(t *testing.T) {
	timer := NewTimer()
	provider := "test_timer_provider"

	time.Sleep(10 * time.Millisecond)
	timer.RecordReasoning(provider)

	metric := &dto.Metric{}
	ReasoningDuration.Write(metric)
	assert.True(t, metric.GetHistogram().GetSampleCount() > 0, "Histogram should have recorded samples")

	final := testutil.ToFloat64(ReasoningCallsTotal.WithLabelValues(provider))
	assert.Equal(t, 1.0, final)
}

func TestTimerRecordStage(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)

	before := testutil.CollectAndCount(PipelineStageDuration)
	timer.RecordStage("test_scoring")
	after := testutil.CollectAndCount(PipelineStageDuration)
	assert.GreaterOrEqual(t, after, before)
}

func TestPipelineIntegration(t *testing.T) {
	actionType := "test_integration_scale"
	provider := "test_integration_anthropic"

	initialSignals := testutil.ToFloat64(SignalsObservedTotal)
	initialActions := testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues(actionType))
	initialReasoningCalls := testutil.ToFloat64(ReasoningCallsTotal.WithLabelValues(provider))
	initialConcurrent := testutil.ToFloat64(ConcurrentActionsRunning)

	numSignals := 3
	for i := 0; i < numSignals; i++ {
		RecordSignal()
		RecordReasoningCall(provider, 500*time.Millisecond)

		IncrementConcurrentActions()
		RecordAction(actionType, 200*time.Millisecond)
		DecrementConcurrentActions()
	}

	assert.Equal(t, initialSignals+float64(numSignals), testutil.ToFloat64(SignalsObservedTotal))
	assert.Equal(t, initialActions+float64(numSignals), testutil.ToFloat64(ActionsExecutedTotal.WithLabelValues(actionType)))
	assert.Equal(t, initialReasoningCalls+float64(numSignals), testutil.ToFloat64(ReasoningCallsTotal.WithLabelValues(provider)))
	assert.Equal(t, initialConcurrent, testutil.ToFloat64(ConcurrentActionsRunning))
}

func TestMetricsNaming(t *testing.T) {
	metricNames := []string{
		"airra_signals_observed_total",
		"airra_signals_deduplicated_total",
		"airra_dedup_compression_ratio",
		"airra_incidents_opened_total",
		"airra_reasoning_calls_total",
		"airra_reasoning_errors_total",
		"airra_reasoning_duration_seconds",
		"airra_actions_proposed_total",
		"airra_actions_executed_total",
		"airra_action_execution_errors_total",
		"airra_action_outcomes_total",
		"airra_approvals_pending",
		"airra_approval_sla_breaches_total",
		"airra_concurrent_actions_running",
		"airra_pipeline_stage_duration_seconds",
		"airra_pipeline_stage_timeouts_total",
	}

	for _, name := range metricNames {
		assert.False(t, strings.Contains(name, "-"), "Metric name %s should not contain hyphens", name)
		assert.False(t, strings.Contains(name, " "), "Metric name %s should not contain spaces", name)

		if strings.Contains(name, "duration") {
			assert.True(t, strings.HasSuffix(name, "_seconds"), "Duration metric %s should end with _seconds", name)
		}
	}
}
