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

package actionselect

import (
	"context"
	"sort"

	"github.com/kkrriders/airra/pkg/types"
)

// ShouldAct implements the spec §4.6 decision-to-act matrix: the
// confidence floor always gates first (spec step 1), then blast level
// sets how much confidence is required to auto-act: CRITICAL acts
// regardless, HIGH needs >=0.70, MEDIUM needs >=0.80, LOW and MINIMAL
// need >=0.90.
func ShouldAct(confidence float64, confidenceFloor float64, blastLevel types.BlastLevel) bool {
	if confidence < confidenceFloor {
		return false
	}
	switch blastLevel {
	case types.BlastCritical:
		return true
	case types.BlastHigh:
		return confidence >= 0.70
	case types.BlastMedium:
		return confidence >= 0.80
	default:
		return confidence >= 0.90
	}
}

// Candidate is one runbook-allowed action considered for a hypothesis,
// carrying the runbook's static metadata plus the figures computed for
// ranking and reporting (spec §4.6 steps 4 and 7).
type Candidate struct {
	Allowed       types.AllowedAction
	RiskProfile   types.RiskProfile
	AdjustedRisk  float64
	ExpectedCost  float64
	WorstCaseCost float64
}

// AdjustedRisk implements spec §4.6 step 4: a static risk score is scaled
// by how critical the affected service is, then discounted by how urgent
// the blast radius makes acting anyway. confidence plays no part; urgency
// and criticality already capture everything acting sooner should buy.
func AdjustedRisk(rp types.RiskProfile, criticalityWeight, urgencyMultiplier float64) float64 {
	risk := rp.RiskScore*criticalityWeight - (urgencyMultiplier-1)*0.05
	return clamp01(risk)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Select filters allowed down to the candidates whose prerequisites hold
// and whose per-day auto-execution budget (execCountToday) is not
// exhausted, then returns the lowest-adjusted-risk survivor (spec §4.6
// steps 3-6). Ties break by reversibility (reversible first), then
// ascending expected downtime, then ascending worst-case cost. Returns
// (Candidate{}, false) when nothing survives.
func Select(
	ctx context.Context,
	allowed []types.AllowedAction,
	facts Facts,
	criticalityWeight, urgencyMultiplier float64,
	execCountToday map[types.ActionType]int,
) (Candidate, bool) {
	var survivors []Candidate
	for _, aa := range allowed {
		if !EvaluatePrerequisites(ctx, aa.Prerequisites, facts) {
			continue
		}
		if aa.MaxAutoExecutionsPerDay > 0 && execCountToday[aa.ActionType] >= aa.MaxAutoExecutionsPerDay {
			continue
		}
		rp, ok := DefaultRiskProfiles[aa.ActionType]
		if !ok {
			continue
		}
		survivors = append(survivors, Candidate{
			Allowed:       aa,
			RiskProfile:   rp,
			AdjustedRisk:  AdjustedRisk(rp, criticalityWeight, urgencyMultiplier),
			ExpectedCost:  rp.ExpectedDowntimeS / 60 * rp.CostPerMinute * urgencyMultiplier,
			WorstCaseCost: rp.WorstCaseDowntimeS / 60 * rp.CostPerMinute * urgencyMultiplier,
		})
	}
	if len(survivors) == 0 {
		return Candidate{}, false
	}

	sortCandidates(survivors)
	return survivors[0], true
}

// sortCandidates orders survivors ascending by adjusted risk (spec §4.6
// step 5), breaking ties by reversibility (reversible first), then
// ascending expected downtime, then ascending worst-case cost.
func sortCandidates(survivors []Candidate) {
	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.AdjustedRisk != b.AdjustedRisk {
			return a.AdjustedRisk < b.AdjustedRisk
		}
		if a.RiskProfile.Reversible != b.RiskProfile.Reversible {
			return a.RiskProfile.Reversible
		}
		if a.RiskProfile.ExpectedDowntimeS != b.RiskProfile.ExpectedDowntimeS {
			return a.RiskProfile.ExpectedDowntimeS < b.RiskProfile.ExpectedDowntimeS
		}
		return a.WorstCaseCost < b.WorstCaseCost
	})
}
