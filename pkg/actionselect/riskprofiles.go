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

// Package actionselect filters a runbook's allowed actions down to the
// ones whose prerequisites hold, ranks the survivors by adjusted risk, and
// decides whether blast radius and confidence justify acting at all
// (spec §4.6/§4.7). ActionType's risk posture is a closed, static table,
// not a dynamic per-call computation: design note in pkg/types carries
// this intent forward from the sum-type-plus-registry pattern.
package actionselect

import "github.com/kkrriders/airra/pkg/types"

// DefaultRiskProfiles is the static per-action-type risk table referenced
// by adjusted-risk ranking. Runbooks may override RiskLevel per action,
// but the quantitative cost/downtime/reversibility figures here are
// authoritative.
var DefaultRiskProfiles = map[types.ActionType]types.RiskProfile{
	types.ActionScaleUp: {
		ActionType: types.ActionScaleUp, RiskScore: 0.10, ExpectedDowntimeS: 0,
		WorstCaseDowntimeS: 30, RecoveryTimeS: 60, Reversible: true,
		BlastImpact: types.ImpactDeployment, CostPerMinute: 2.00,
		Prerequisites: []string{"capacity_available"}, InverseActionType: types.ActionScaleDown,
	},
	types.ActionScaleDown: {
		ActionType: types.ActionScaleDown, RiskScore: 0.25, ExpectedDowntimeS: 0,
		WorstCaseDowntimeS: 60, RecoveryTimeS: 60, Reversible: true,
		BlastImpact: types.ImpactDeployment, CostPerMinute: -1.00,
		Prerequisites: []string{"min_replicas_respected"}, InverseActionType: types.ActionScaleUp,
	},
	types.ActionClearCache: {
		ActionType: types.ActionClearCache, RiskScore: 0.15, ExpectedDowntimeS: 5,
		WorstCaseDowntimeS: 30, RecoveryTimeS: 30, Reversible: false,
		BlastImpact: types.ImpactPod, CostPerMinute: 0,
		Prerequisites: []string{"cache_backend_reachable"},
	},
	types.ActionToggleFeatureFlag: {
		ActionType: types.ActionToggleFeatureFlag, RiskScore: 0.20, ExpectedDowntimeS: 0,
		WorstCaseDowntimeS: 0, RecoveryTimeS: 5, Reversible: true,
		BlastImpact: types.ImpactCluster, CostPerMinute: 0,
		Prerequisites: []string{"flag_exists"}, InverseActionType: types.ActionToggleFeatureFlag,
	},
	types.ActionRestartPod: {
		ActionType: types.ActionRestartPod, RiskScore: 0.35, ExpectedDowntimeS: 10,
		WorstCaseDowntimeS: 120, RecoveryTimeS: 90, Reversible: false,
		BlastImpact: types.ImpactPod, CostPerMinute: 0,
		Prerequisites: []string{"pod_exists", "not_last_healthy_replica"},
	},
	types.ActionRollbackDeployment: {
		ActionType: types.ActionRollbackDeployment, RiskScore: 0.55, ExpectedDowntimeS: 30,
		WorstCaseDowntimeS: 300, RecoveryTimeS: 180, Reversible: true,
		BlastImpact: types.ImpactDeployment, CostPerMinute: 0,
		Prerequisites: []string{"previous_revision_available"},
	},
	types.ActionDrainNode: {
		ActionType: types.ActionDrainNode, RiskScore: 0.75, ExpectedDowntimeS: 60,
		WorstCaseDowntimeS: 600, RecoveryTimeS: 300, Reversible: true,
		BlastImpact: types.ImpactCluster, CostPerMinute: 0,
		Prerequisites: []string{"node_exists", "cluster_has_spare_capacity"},
		SideEffects:   []string{"pod_eviction_across_node"},
	},
}
