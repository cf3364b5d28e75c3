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

// Package approval gates action execution behind human sign-off whenever
// the runbook, blast radius or action's own risk profile demands it (spec
// §4.7), and sweeps stale pending-approval incidents past their SLA.
package approval

import (
	"time"

	pkgerrors "github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// Rule is one named reason an action requires human approval. Rules are
// evaluated in order and the first that matches wins, so Reason always
// names the most specific applicable trigger.
type Rule struct {
	Name   string
	Reason string
	Match  func(Request) bool
}

// Request bundles everything a Rule needs to decide.
type Request struct {
	RunbookRequiresApproval bool
	BlastLevel              types.BlastLevel
	Reversible              bool
	RateLimitRatio          float64 // executions-used / max-per-day for this action type, 0 if unbounded
	RateLimitApproachingAt  float64
}

// DefaultRules is the ordered rule set applied by Decide. Order matters:
// a runbook-mandated approval is reported as such even if the action
// would also qualify under a later rule.
var DefaultRules = []Rule{
	{Name: "runbook_requires_approval", Reason: "runbook marks this action as requiring approval", Match: func(r Request) bool { return r.RunbookRequiresApproval }},
	{Name: "high_blast_radius", Reason: "blast radius is HIGH or CRITICAL", Match: func(r Request) bool {
		return r.BlastLevel == types.BlastHigh || r.BlastLevel == types.BlastCritical
	}},
	{Name: "irreversible_action", Reason: "action has no inverse and cannot be rolled back", Match: func(r Request) bool { return !r.Reversible }},
	{Name: "rate_limit_approaching", Reason: "action type is approaching its daily auto-execution limit", Match: func(r Request) bool {
		return r.RateLimitApproachingAt > 0 && r.RateLimitRatio >= r.RateLimitApproachingAt
	}},
}

// Decide reports whether req requires human approval and, if so, the name
// of the first matching rule.
func Decide(req Request, rules []Rule) (required bool, ruleName string) {
	for _, rule := range rules {
		if rule.Match(req) {
			return true, rule.Name
		}
	}
	return false, ""
}

// Approve transitions action to APPROVED, recording who approved it and
// when. It refuses to approve an action not currently PENDING_APPROVAL.
func Approve(action *types.Action, approvedBy string, at time.Time) error {
	if action.Status != types.ActionPendingApproval {
		return &types.ActionTransitionError{ActionID: action.ID, From: action.Status, To: types.ActionApproved}
	}
	if err := action.Transition(types.ActionApproved, at); err != nil {
		return err
	}
	action.ApprovedBy = approvedBy
	return nil
}

// Reject transitions action to REJECTED, recording why.
func Reject(action *types.Action, reason string, at time.Time) error {
	if err := action.Transition(types.ActionRejected, at); err != nil {
		return err
	}
	action.RejectionReason = reason
	return nil
}

// SweepSLA escalates any incident still PENDING_APPROVAL past its
// deadline. It returns the escalated incidents' IDs; already-terminal
// incidents encountered here indicate a race with execution/resolution
// and are reported as a stale_state PipelineError rather than silently
// skipped, so the orchestrator can log and investigate.
func SweepSLA(incidents []*types.Incident, sla time.Duration, now time.Time) ([]string, []error) {
	var escalated []string
	var errs []error

	for _, inc := range incidents {
		if inc.Status.IsTerminal() {
			errs = append(errs, pkgerrors.NewPipelineError(pkgerrors.KindStaleState, "incident reached terminal state during SLA sweep", nil).WithIncident(inc.ID))
			continue
		}
		if inc.Status != types.StatusPendingApproval {
			continue
		}
		deadline := inc.DetectedAt.Add(sla)
		if now.Before(deadline) {
			continue
		}
		if err := inc.EscalateOnSLA(now, "approval_timeout"); err != nil {
			errs = append(errs, err)
			continue
		}
		escalated = append(escalated, inc.ID)
	}

	return escalated, errs
}
