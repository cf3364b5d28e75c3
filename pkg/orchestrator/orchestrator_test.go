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

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkrriders/airra/pkg/correlation"
	"github.com/kkrriders/airra/pkg/learning"
	"github.com/kkrriders/airra/pkg/perception"
	"github.com/kkrriders/airra/pkg/reasoning"
	"github.com/kkrriders/airra/pkg/registry"
	"github.com/kkrriders/airra/pkg/scoring"
	"github.com/kkrriders/airra/pkg/store/memory"
	"github.com/kkrriders/airra/pkg/types"
)

const dependencyYAML = `
services:
  - name: checkout
    depends_on: []
    tier: tier-0
    team: payments
    criticality: critical
  - name: inventory
    depends_on: [checkout]
    tier: tier-1
    team: payments
    criticality: critical
  - name: pricing
    depends_on: [checkout]
    tier: tier-1
    team: payments
    criticality: critical
`

const runbooksYAML = `
runbooks:
  - id: rb-deployment-regression
    category: deployment_regression
    allowed_actions:
      - action_type: rollback_deployment
        description: roll back the last deployment
        approval_required: false
        risk_level: medium
        default_parameters: {}
        prerequisites: [previous_revision_available]
        max_auto_executions_per_day: 5
    diagnostic_queries: {}
    escalation_criteria: []
  - id: rb-cpu-spike-needs-approval
    category: cpu_spike
    allowed_actions:
      - action_type: drain_node
        description: drain the affected node
        approval_required: true
        risk_level: high
        default_parameters: {}
        prerequisites: [node_exists, cluster_has_spare_capacity]
        max_auto_executions_per_day: 1
    diagnostic_queries: {}
    escalation_criteria: []
`

// fakeBackend serves a synthetic anomalous series the first time a metric
// is queried over a wide (perception) window, then alternates between a
// high pre-action value and a lower post-action value for the narrow
// (snapshot) window execution uses to verify an action's outcome.
type fakeBackend struct {
	mu           sync.Mutex
	snapshotCall map[string]int
}

func (b *fakeBackend) QueryRange(ctx context.Context, service, metric string, window time.Duration) ([]perception.MetricPoint, error) {
	if window > 10*time.Second {
		base := time.Now().Add(-time.Hour)
		return []perception.MetricPoint{
			{Timestamp: base, Value: 10},
			{Timestamp: base.Add(time.Second), Value: 12},
			{Timestamp: base.Add(2 * time.Second), Value: 9},
			{Timestamp: base.Add(3 * time.Second), Value: 11},
			{Timestamp: base.Add(4 * time.Second), Value: 10},
			{Timestamp: base.Add(5 * time.Second), Value: 500},
		}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshotCall == nil {
		b.snapshotCall = make(map[string]int)
	}
	b.snapshotCall[metric]++
	val := 500.0
	if b.snapshotCall[metric] > 1 {
		val = 50.0
	}
	return []perception.MetricPoint{{Timestamp: time.Now(), Value: val}}, nil
}

// fakeReasoner always proposes a single hypothesis in category, citing
// every evidence reference the incident's catalog offers.
type fakeReasoner struct {
	category string
}

func (f fakeReasoner) Generate(ctx context.Context, incident reasoning.IncidentContext, catalog []string) ([]types.RawHypothesis, error) {
	return []types.RawHypothesis{{
		Description:  "deployment regression on " + incident.Service,
		Category:     f.category,
		EvidenceRefs: catalog,
		Reasoning:    "latest rollout correlates with every cited anomaly",
	}}, nil
}

// fakeEffector "runs" an action instantly and reports success.
type fakeEffector struct {
	executed []types.Action
	mu       sync.Mutex
}

func (f *fakeEffector) Execute(ctx context.Context, action types.Action) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, action)
	return 42, nil
}

func (f *fakeEffector) Status(ctx context.Context, attemptID int64) (bool, error) {
	return true, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	depPath := filepath.Join(dir, "dependencies.yaml")
	rbPath := filepath.Join(dir, "runbooks.yaml")
	require.NoError(t, os.WriteFile(depPath, []byte(dependencyYAML), 0o644))
	require.NoError(t, os.WriteFile(rbPath, []byte(runbooksYAML), 0o644))
	reg, err := registry.Load(depPath, rbPath, logr.Discard())
	require.NoError(t, err)
	return reg
}

func baseConfig() Config {
	return Config{
		BaselineWindow:              5,
		AnomalyThresholdSigma:       3,
		WatchedMetrics:              []string{"cpu_usage", "error_rate"},
		PollInterval:                5 * time.Second,
		CorrelationWindow:           time.Hour,
		MinSignalCount:              2,
		MinSignalTypeDiversity:      1,
		CorrelationConfidence:       0.3,
		CorrelationWeights:          correlation.DefaultWeights,
		DedupWindow:                 time.Minute,
		DedupMaxEntries:             1000,
		ScoringWeights:              scoring.DefaultWeights,
		MinOutcomesForPriorOverride: 5,
		ConfidenceFloor:             0.3,
		StabilizationWindow:         time.Millisecond,
		ImprovementThreshold:        0.05,
		UnstableThreshold:           0.2,
		ApprovalSLA:                 time.Minute,
		MaxConcurrentActions:        2,
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, category string) (*Orchestrator, *fakeEffector, *learning.Store) {
	t.Helper()
	backend := &fakeBackend{}
	observer := perception.NewObserver(backend, cfg.BaselineWindow, cfg.AnomalyThresholdSigma, logr.Discard())
	reg := testRegistry(t)
	store := memory.New()
	eff := &fakeEffector{}
	learnStore, err := learning.Open(filepath.Join(t.TempDir(), "learning.jsonl"))
	require.NoError(t, err)

	o := New(cfg, logr.Discard(), reg, store, observer, backend, fakeReasoner{category: category}, nil, nil, eff, learnStore)
	return o, eff, learnStore
}

func TestPollService_PromotesIncidentAndAutoExecutesAction(t *testing.T) {
	cfg := baseConfig()
	o, eff, _ := newTestOrchestrator(t, cfg, "deployment_regression")

	err := o.PollService(context.Background(), "checkout")
	require.NoError(t, err)

	incidents := o.store.ListNonTerminal()
	// The action executed successfully, so the incident should have
	// reached a terminal RESOLVED state and no longer appear here.
	assert.Empty(t, incidents)

	require.Len(t, eff.executed, 1)
	assert.Equal(t, types.ActionRollbackDeployment, eff.executed[0].ActionType)
}

func TestPollService_ApprovalRequiredActionWaitsForOperator(t *testing.T) {
	cfg := baseConfig()
	cfg.ConfidenceFloor = 0.0
	o, eff, _ := newTestOrchestrator(t, cfg, "cpu_spike")

	err := o.PollService(context.Background(), "checkout")
	require.NoError(t, err)

	nonTerminal := o.store.ListNonTerminal()
	require.Len(t, nonTerminal, 1)
	incident := nonTerminal[0]
	assert.Equal(t, types.StatusPendingApproval, incident.Status)
	require.Len(t, incident.Actions, 1)
	assert.Equal(t, types.ActionPendingApproval, incident.Actions[0].Status)
	assert.Empty(t, eff.executed)

	err = o.ApproveAction(context.Background(), incident.ID, incident.Actions[0].ID, "oncall@airra", types.ExecutionLive)
	require.NoError(t, err)

	got, err := o.GetIncident(incident.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusResolved, got.Status)
	assert.Equal(t, types.ActionSucceeded, got.Actions[0].Status)
	require.Len(t, eff.executed, 1)
}

func TestRejectAction_TransitionsActionToRejected(t *testing.T) {
	cfg := baseConfig()
	cfg.ConfidenceFloor = 0.0
	o, eff, _ := newTestOrchestrator(t, cfg, "cpu_spike")

	require.NoError(t, o.PollService(context.Background(), "checkout"))
	nonTerminal := o.store.ListNonTerminal()
	require.Len(t, nonTerminal, 1)
	incident := nonTerminal[0]
	actionID := incident.Actions[0].ID

	err := o.RejectAction(incident.ID, actionID, "runbook action is not appropriate here", "oncall@airra")
	require.NoError(t, err)

	got, err := o.GetIncident(incident.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ActionRejected, got.Actions[0].Status)
	assert.Equal(t, "runbook action is not appropriate here", got.Actions[0].RejectionReason)
	assert.Empty(t, eff.executed)
}

func TestEscalate_MovesIncidentToEscalated(t *testing.T) {
	cfg := baseConfig()
	o, _, _ := newTestOrchestrator(t, cfg, "deployment_regression")

	inc := &types.Incident{ID: "inc-escalate", Service: "checkout", Status: types.StatusDetected, Fingerprint: "fp-escalate", DetectedAt: time.Now()}
	o.store.Put(inc)

	require.NoError(t, o.Escalate("inc-escalate", "operator requested manual takeover"))

	got, err := o.GetIncident("inc-escalate")
	require.NoError(t, err)
	assert.Equal(t, types.StatusEscalated, got.Status)
	assert.Equal(t, "operator requested manual takeover", got.EscalationReason)
}

func TestSweepApprovalSLA_EscalatesStaleIncidents(t *testing.T) {
	cfg := baseConfig()
	cfg.ApprovalSLA = time.Minute
	o, _, _ := newTestOrchestrator(t, cfg, "deployment_regression")

	stale := &types.Incident{
		ID: "inc-stale", Service: "checkout", Status: types.StatusPendingApproval,
		Fingerprint: "fp-stale", DetectedAt: time.Now().Add(-time.Hour),
	}
	fresh := &types.Incident{
		ID: "inc-fresh", Service: "checkout", Status: types.StatusPendingApproval,
		Fingerprint: "fp-fresh", DetectedAt: time.Now(),
	}
	o.store.Put(stale)
	o.store.Put(fresh)

	errs := o.SweepApprovalSLA(time.Now())
	assert.Empty(t, errs)

	got, err := o.GetIncident("inc-stale")
	require.NoError(t, err)
	assert.Equal(t, types.StatusEscalated, got.Status)

	got, err = o.GetIncident("inc-fresh")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPendingApproval, got.Status)
}

func TestFeedback_AppendsToLearningStore(t *testing.T) {
	cfg := baseConfig()
	o, _, _ := newTestOrchestrator(t, cfg, "deployment_regression")

	err := o.Feedback(types.OperatorFeedback{
		IncidentID:   "inc-1",
		FeedbackType: types.FeedbackActionSuccessful,
		Text:         "rollback resolved the regression",
		Timestamp:    time.Now(),
	})
	require.NoError(t, err)
}
