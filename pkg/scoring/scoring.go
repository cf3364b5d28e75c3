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

// Package scoring computes each Hypothesis's confidence deterministically
// from evidence quality, anomaly strength and dependency-graph proximity,
// per spec §4.5. The reasoning model's own suggested score, if any, never
// enters this formula; confidence is always reproducible from data already
// in the Incident.
package scoring

import (
	"math"
	"sort"

	"github.com/kkrriders/airra/pkg/registry"
	"github.com/kkrriders/airra/pkg/types"
)

// Weights configures the additive confidence formula's four terms.
// DependencyBoost is nominally 1.0: dep_boost is an additive correction,
// not a weighted component, but it is kept configurable for parity with
// the other three terms.
type Weights struct {
	Base            float64
	Evidence        float64
	Anomaly         float64
	DependencyBoost float64
}

// DefaultWeights implements the confidence formula in spec §4.5:
// confidence = clip(0.40·base + 0.35·evidence + 0.25·anomaly + dep_boost, 0.01, 0.99).
var DefaultWeights = Weights{Base: 0.40, Evidence: 0.35, Anomaly: 0.25, DependencyBoost: 1.0}

// CategoryPriors is the static prior table for each root-cause category
// (spec §4.5 defaults), used as BaseConfidence absent enough learning-store
// outcomes to override it (spec §4.8: "override only after >= min outcomes").
var CategoryPriors = map[types.Category]float64{
	types.CategoryMemoryLeak:           0.70,
	types.CategoryCPUSpike:             0.75,
	types.CategoryLatencySpike:         0.70,
	types.CategoryErrorSpike:           0.85,
	types.CategoryDatabaseIssue:        0.65,
	types.CategoryNetworkIssue:         0.60,
	types.CategoryDeploymentRegression: 0.80,
	types.CategoryResourceExhaustion:   0.70,
	types.CategoryDependencyFailure:    0.70,
	types.CategoryOther:                0.50,
}

// PriorSource supplies a learning-store-informed prior to override the
// static CategoryPriors table once enough outcomes have accumulated.
type PriorSource interface {
	Prior(category types.Category) (value float64, outcomeCount int, ok bool)
}

// Score computes a Hypothesis's confidence components and final score.
// incidentSignals is the incident's current anomalous set, used both to
// judge evidence relevance and anomaly strength. graph and service locate
// service in the dependency graph; liveIncidentServices is the set of
// services (other than service itself) currently carrying a non-terminal
// incident, used to compute the dependency boost. graph and
// liveIncidentServices may be nil (dependency boost is then 0).
func Score(
	raw types.RawHypothesis,
	incidentSignals []types.Signal,
	service string,
	graph *registry.Graph,
	liveIncidentServices map[string]bool,
	minOutcomesForPriorOverride int,
	priors PriorSource,
	weights Weights,
) types.Hypothesis {
	base := CategoryPriors[types.Category(raw.Category)]
	if priors != nil {
		if v, count, ok := priors.Prior(types.Category(raw.Category)); ok && count >= minOutcomesForPriorOverride {
			base = v
		}
	}

	evidence := evidenceScore(raw.EvidenceRefs, incidentSignals)
	anomaly := anomalyScore(raw.EvidenceRefs, incidentSignals)
	depBoost := dependencyBoost(service, graph, liveIncidentServices)

	confidence := weights.Base*base + weights.Evidence*evidence + weights.Anomaly*anomaly + weights.DependencyBoost*depBoost
	confidence = clamp(confidence, 0.01, 0.99)

	return types.Hypothesis{
		Description:       raw.Description,
		Category:          types.Category(raw.Category),
		Confidence:        confidence,
		BaseConfidence:    base,
		EvidenceQuality:   evidence,
		AnomalyStrength:   anomaly,
		DependencyBoost:   depBoost,
		SupportingSignals: raw.EvidenceRefs,
		Reasoning:         raw.Reasoning,
	}
}

// evidenceScore implements spec §4.5's evidence term:
// evidence = 0.6·avg_evidence_relevance + min(0.15, 0.05·#distinct_sources) + min(0.10, 0.03·#evidence_items).
// Evidence relevance per item is 1 if the cited ref names a signal in the
// incident's current anomalous set, 0 otherwise (items not present get
// relevance 0).
func evidenceScore(refs []string, signals []types.Signal) float64 {
	itemCount := len(refs)
	if itemCount == 0 {
		return 0
	}
	sourceByMetric := make(map[string]types.SignalSource, len(signals))
	for _, s := range signals {
		sourceByMetric[s.MetricName] = s.Source
	}

	relevant := 0
	sources := make(map[types.SignalSource]bool)
	for _, r := range refs {
		if src, ok := sourceByMetric[r]; ok {
			relevant++
			sources[src] = true
		}
	}

	avgRelevance := float64(relevant) / float64(itemCount)
	distinctSources := float64(len(sources))
	return 0.6*avgRelevance + math.Min(0.15, 0.05*distinctSources) + math.Min(0.10, 0.03*float64(itemCount))
}

// anomalyScore implements spec §4.5's anomaly term:
// anomaly = 0.7·avg_signal_anomaly_confidence + 0.3·clip(avg|z|/6, 0, 1),
// averaged over the signals this hypothesis cites.
func anomalyScore(refs []string, signals []types.Signal) float64 {
	cited := make(map[string]bool, len(refs))
	for _, r := range refs {
		cited[r] = true
	}

	var count int
	var sumConfidence, sumZ float64
	for _, s := range signals {
		if !cited[s.MetricName] {
			continue
		}
		count++
		sumConfidence += signalAnomalyConfidence(s)
		sumZ += math.Abs(s.DeviationSigma)
	}
	if count == 0 {
		return 0
	}

	avgConfidence := sumConfidence / float64(count)
	avgZ := sumZ / float64(count)
	return 0.7*avgConfidence + 0.3*clamp(avgZ/6.0, 0, 1)
}

// signalAnomalyConfidence maps a signal's severity bucket (spec §4.1) to a
// [0,1] confidence, the same tiering used for dependency-graph criticality.
func signalAnomalyConfidence(s types.Signal) float64 {
	switch s.Severity() {
	case types.SeverityCritical:
		return 1.0
	case types.SeverityHigh:
		return 0.75
	case types.SeverityMedium:
		return 0.5
	default:
		return 0.25
	}
}

// dependencyBoost implements spec §4.5's dep_boost term: +0.15 if a
// directly-upstream service has a live incident, +0.08 if only a
// transitively-upstream one does, -0.05 if only downstream services have
// live incidents, else 0.
func dependencyBoost(service string, graph *registry.Graph, liveIncidentServices map[string]bool) float64 {
	if graph == nil || service == "" || len(liveIncidentServices) == 0 {
		return 0
	}
	node, ok := graph.Node(service)
	if !ok {
		return 0
	}

	for _, dep := range node.DependsOn {
		if liveIncidentServices[dep] {
			return 0.15
		}
	}
	for _, dep := range graph.TransitiveDependencies(service) {
		if liveIncidentServices[dep] {
			return 0.08
		}
	}
	for _, dep := range graph.TransitiveDependents(service) {
		if liveIncidentServices[dep] {
			return -0.05
		}
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rank sorts hypotheses by descending confidence, breaking ties by
// descending category historical prior (BaseConfidence), then ascending
// description lexicographic order (spec §3 Hypothesis rank invariant), and
// assigns 1-based Rank.
func Rank(hyps []types.Hypothesis) []types.Hypothesis {
	sort.SliceStable(hyps, func(i, j int) bool {
		if hyps[i].Confidence != hyps[j].Confidence {
			return hyps[i].Confidence > hyps[j].Confidence
		}
		if hyps[i].BaseConfidence != hyps[j].BaseConfidence {
			return hyps[i].BaseConfidence > hyps[j].BaseConfidence
		}
		return hyps[i].Description < hyps[j].Description
	})
	for i := range hyps {
		hyps[i].Rank = i + 1
	}
	return hyps
}
