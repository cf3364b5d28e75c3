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

// Package blastradius computes how far an incident's impact could spread
// through the dependency graph and translates that into an urgency
// multiplier consumed by action selection (spec §4.6). Currency-sensitive
// fields (revenue impact) are computed with shopspring/decimal so repeated
// summation across services never drifts from floating point rounding.
package blastradius

import (
	"github.com/shopspring/decimal"

	"github.com/kkrriders/airra/pkg/registry"
	"github.com/kkrriders/airra/pkg/types"
)

// Inputs bundles the live signals blast-radius assessment depends on,
// kept separate from types.Incident so this package can be exercised
// without constructing a full incident.
type Inputs struct {
	Service               string
	RequestVolumeQPS      float64
	ErrorPropagationRatio float64
	RevenuePerRequest      decimal.Decimal
	Graph                 *registry.Graph
}

// Assess computes a BlastRadiusAssessment for service using its
// transitive-dependents count and tier/criticality from the dependency
// graph.
func Assess(in Inputs) types.BlastRadiusAssessment {
	var affected []string
	criticalityScore := 0.0

	if in.Graph != nil {
		affected = in.Graph.TransitiveDependents(in.Service)
		criticalityScore = CriticalityWeight(in.Graph, in.Service)
	}

	blastScore := clamp01(
		0.30*normalize(float64(len(affected)), 10) +
			0.25*normalize(in.RequestVolumeQPS, 100) +
			0.25*clamp01(in.ErrorPropagationRatio) +
			0.20*criticalityScore,
	)

	level := levelFor(blastScore)

	revenueHour := in.RevenuePerRequest.Mul(decimal.NewFromFloat(in.RequestVolumeQPS)).Mul(decimal.NewFromInt(3600))
	revenueFloat, _ := revenueHour.Float64()

	return types.BlastRadiusAssessment{
		AffectedServicesCount:  len(affected),
		RequestVolumeQPS:       in.RequestVolumeQPS,
		ErrorPropagationRatio:  in.ErrorPropagationRatio,
		CriticalityScore:       criticalityScore,
		BlastScore:             blastScore,
		Level:                  level,
		UrgencyMultiplier:      urgencyMultiplier(level),
		EstimatedUsersImpacted: int64(in.RequestVolumeQPS * in.ErrorPropagationRatio * 60),
		RevenueImpactPerHour:   revenueFloat,
	}
}

// CriticalityWeight maps service's own dependency-graph tier (spec §4.6:
// critical:1.0, high:0.75, medium:0.5, low:0.25) to its blast-radius and
// adjusted-risk contribution. A service absent from the graph weighs 0.
func CriticalityWeight(graph *registry.Graph, service string) float64 {
	if graph == nil {
		return 0
	}
	node, ok := graph.Node(service)
	if !ok {
		return 0
	}
	switch node.Criticality {
	case types.CriticalityCritical:
		return 1.0
	case types.CriticalityHigh:
		return 0.75
	case types.CriticalityMedium:
		return 0.5
	case types.CriticalityLow:
		return 0.25
	default:
		return 0
	}
}

func normalize(v, scale float64) float64 {
	if scale == 0 {
		return 0
	}
	return clamp01(v / scale)
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

func levelFor(score float64) types.BlastLevel {
	switch {
	case score >= 0.8:
		return types.BlastCritical
	case score >= 0.6:
		return types.BlastHigh
	case score >= 0.4:
		return types.BlastMedium
	case score >= 0.2:
		return types.BlastLow
	default:
		return types.BlastMinimal
	}
}

// urgencyMultiplier linearly maps blast level to urgency (spec §4.6):
// MINIMAL->1.0, LOW->1.5, MEDIUM->2.5, HIGH->3.5, CRITICAL->5.0. The field
// invariant is urgency_multiplier ∈ [1.0, 5.0].
func urgencyMultiplier(level types.BlastLevel) float64 {
	switch level {
	case types.BlastCritical:
		return 5.0
	case types.BlastHigh:
		return 3.5
	case types.BlastMedium:
		return 2.5
	case types.BlastLow:
		return 1.5
	default:
		return 1.0
	}
}
