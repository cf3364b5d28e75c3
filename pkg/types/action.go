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

package types

import (
	"fmt"
	"time"
)

// ActionType is the closed remediation-action enum. Design note: dynamic
// dispatch over action types is deliberately avoided in favor of this sum
// type plus a registry (pkg/actionselect) mapping each variant to its risk
// profile, prerequisite evaluator, executor binding and inverse action.
type ActionType string

const (
	ActionScaleUp             ActionType = "scale_up"
	ActionScaleDown           ActionType = "scale_down"
	ActionClearCache          ActionType = "clear_cache"
	ActionToggleFeatureFlag   ActionType = "toggle_feature_flag"
	ActionRestartPod          ActionType = "restart_pod"
	ActionRollbackDeployment  ActionType = "rollback_deployment"
	ActionDrainNode           ActionType = "drain_node"
)

// ValidActionTypes lists the closed enum in declaration order.
var ValidActionTypes = []ActionType{
	ActionScaleUp, ActionScaleDown, ActionClearCache, ActionToggleFeatureFlag,
	ActionRestartPod, ActionRollbackDeployment, ActionDrainNode,
}

// IsValid reports whether t is a member of the closed action-type enum.
func (t ActionType) IsValid() bool {
	for _, v := range ValidActionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// BlastImpact is the closed scope enum a RiskProfile's side effects reach.
type BlastImpact string

const (
	ImpactPod        BlastImpact = "pod"
	ImpactDeployment BlastImpact = "deployment"
	ImpactCluster    BlastImpact = "cluster"
	ImpactDatacenter BlastImpact = "datacenter"
)

// RiskLevel is the closed qualitative risk enum used by runbook allowed
// actions.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskProfile is the static, per-action-type risk configuration (spec §3).
type RiskProfile struct {
	ActionType         ActionType  `json:"action_type"`
	RiskScore          float64     `json:"risk_score"`
	ExpectedDowntimeS  float64     `json:"expected_downtime_s"`
	WorstCaseDowntimeS float64     `json:"worst_case_downtime_s"`
	RecoveryTimeS      float64     `json:"recovery_time_s"`
	Reversible         bool        `json:"reversible"`
	BlastImpact        BlastImpact `json:"blast_impact"`
	CostPerMinute      float64     `json:"cost_per_minute"`
	Prerequisites      []string    `json:"prerequisites"`
	SideEffects        []string    `json:"side_effects"`
	InverseActionType  ActionType  `json:"inverse_action_type,omitempty"`
}

// ActionStatus is the closed action state machine (spec §3):
// PROPOSED -> PENDING_APPROVAL -> (APPROVED | REJECTED);
// PROPOSED -> APPROVED directly when no approval gate applies;
// APPROVED -> EXECUTING -> (SUCCEEDED | FAILED | ROLLED_BACK).
type ActionStatus string

const (
	ActionProposed        ActionStatus = "PROPOSED"
	ActionPendingApproval ActionStatus = "PENDING_APPROVAL"
	ActionApproved        ActionStatus = "APPROVED"
	ActionRejected        ActionStatus = "REJECTED"
	ActionExecuting       ActionStatus = "EXECUTING"
	ActionSucceeded       ActionStatus = "SUCCEEDED"
	ActionFailed          ActionStatus = "FAILED"
	ActionRolledBack      ActionStatus = "ROLLED_BACK"
)

var legalActionTransitions = map[ActionStatus]map[ActionStatus]bool{
	ActionProposed:        {ActionPendingApproval: true, ActionApproved: true},
	ActionPendingApproval: {ActionApproved: true, ActionRejected: true},
	ActionApproved:        {ActionExecuting: true},
	ActionExecuting:       {ActionSucceeded: true, ActionFailed: true, ActionRolledBack: true},
}

var terminalActionStatuses = map[ActionStatus]bool{
	ActionRejected:   true,
	ActionSucceeded:  true,
	ActionFailed:     true,
	ActionRolledBack: true,
}

// IsTerminal reports whether s is a terminal action status.
func (s ActionStatus) IsTerminal() bool {
	return terminalActionStatuses[s]
}

// CanTransitionAction reports whether the action state machine permits
// moving from 'from' to 'to'.
func CanTransitionAction(from, to ActionStatus) bool {
	if from.IsTerminal() {
		return false
	}
	edges, ok := legalActionTransitions[from]
	return ok && edges[to]
}

// ActionTransitionError mirrors TransitionError for the action state
// machine.
type ActionTransitionError struct {
	ActionID string
	From     ActionStatus
	To       ActionStatus
}

func (e *ActionTransitionError) Error() string {
	return fmt.Sprintf("illegal action transition for %s: %s -> %s", e.ActionID, e.From, e.To)
}

// ExecutionMode selects whether Execute performs a real side effect.
type ExecutionMode string

const (
	ExecutionDryRun ExecutionMode = "dry_run"
	ExecutionLive   ExecutionMode = "live"
)

// VerificationOutcome is the closed post-action classification (spec §4.8).
type VerificationOutcome string

const (
	OutcomeSuccess        VerificationOutcome = "SUCCESS"
	OutcomePartialSuccess VerificationOutcome = "PARTIAL_SUCCESS"
	OutcomeNoChange       VerificationOutcome = "NO_CHANGE"
	OutcomeDegraded       VerificationOutcome = "DEGRADED"
	OutcomeUnstable       VerificationOutcome = "UNSTABLE"
)

// Action is one candidate or scheduled remediation attached to an incident.
type Action struct {
	ID              string                    `json:"id"`
	IncidentID      string                    `json:"incident_id"`
	HypothesisRank  int                       `json:"hypothesis_rank"`
	ActionType      ActionType                `json:"action_type"`
	Parameters      map[string]interface{}    `json:"parameters"`
	RiskProfile     RiskProfile               `json:"risk_profile"`
	Status          ActionStatus              `json:"status"`
	ApprovalRequired bool                     `json:"approval_required"`
	RequestedAt     time.Time                 `json:"requested_at"`
	ApprovedAt      *time.Time                `json:"approved_at,omitempty"`
	ApprovedBy      string                    `json:"approved_by,omitempty"`
	ExecutedAt      *time.Time                `json:"executed_at,omitempty"`
	ExecutionMode   ExecutionMode             `json:"execution_mode,omitempty"`
	PreMetrics      map[string]MetricSummary  `json:"pre_metrics,omitempty"`
	PostMetrics     map[string]MetricSummary  `json:"post_metrics,omitempty"`
	Verification    VerificationOutcome       `json:"verification,omitempty"`
	AttemptID       int64                     `json:"attempt_id"`
	RejectionReason string                    `json:"rejection_reason,omitempty"`
	FailureReason   string                    `json:"failure_reason,omitempty"`
	ExpectedCost    float64                   `json:"expected_cost"`
	WorstCaseCost   float64                   `json:"worst_case_cost"`
}

// Transition attempts to move the action to a new status. It returns a
// *ActionTransitionError (not applied) if the transition is illegal.
func (a *Action) Transition(to ActionStatus, at time.Time) error {
	if !CanTransitionAction(a.Status, to) {
		return &ActionTransitionError{ActionID: a.ID, From: a.Status, To: to}
	}
	a.Status = to
	switch to {
	case ActionApproved:
		t := at
		a.ApprovedAt = &t
	case ActionExecuting:
		t := at
		a.ExecutedAt = &t
	}
	return nil
}
