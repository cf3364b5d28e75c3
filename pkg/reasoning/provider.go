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

// Package reasoning adapts an external model into root-cause hypotheses.
// The model is advisory only (spec §4.4): its output seeds
// RawHypothesis.Description/Category/EvidenceRefs, never a confidence
// number, and pkg/scoring is the only component allowed to attach a
// trusted score. Every provider in this package must validate the model's
// output against the closed Category enum and the prompt's evidence
// catalog before returning it.
package reasoning

import (
	"context"

	"github.com/kkrriders/airra/pkg/types"
)

// IncidentContext is the read-only projection of an Incident a Provider
// prompts against; it intentionally carries no pipeline-internal state.
type IncidentContext struct {
	IncidentID         string
	Service            string
	Severity           string
	AffectedComponents []string
	MetricsSnapshot    map[string]types.MetricSummary
	Signals            []types.Signal
}

// Provider generates candidate root-cause hypotheses for an incident.
// catalog is the set of evidence references (metric/log/trace identifiers)
// the model is allowed to cite in RawHypothesis.EvidenceRefs; a hypothesis
// citing a reference outside catalog is dropped by ValidateRawHypotheses.
type Provider interface {
	Generate(ctx context.Context, incident IncidentContext, catalog []string) ([]types.RawHypothesis, error)
}

// ValidateRawHypotheses drops each hypothesis that names a category
// outside the closed enum or cites an evidence reference outside catalog,
// per the "advisory, not trusted" boundary: malformed output never reaches
// scoring. The returned error is always nil.
func ValidateRawHypotheses(raw []types.RawHypothesis, catalog []string) ([]types.RawHypothesis, error) {
	allowed := make(map[string]bool, len(catalog))
	for _, c := range catalog {
		allowed[c] = true
	}

	valid := make([]types.RawHypothesis, 0, len(raw))
	for _, h := range raw {
		if !isValidCategory(h.Category) {
			continue
		}
		ok := true
		for _, ref := range h.EvidenceRefs {
			if !allowed[ref] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		valid = append(valid, h)
	}
	return valid, nil
}

func isValidCategory(c string) bool {
	for _, v := range types.ValidCategories {
		if string(v) == c {
			return true
		}
	}
	return false
}

// DegradedHypotheses synthesizes a fallback "other"-category hypothesis
// from the incident's top-deviation signals when every Provider attempt
// fails, so the pipeline can still propose a conservative action instead
// of stalling (spec §4.4 edge case: "reasoning unavailable -> degrade, do
// not block").
func DegradedHypotheses(incident IncidentContext) []types.RawHypothesis {
	topMetric := ""
	var topSigma float64
	for _, s := range incident.Signals {
		sigma := s.DeviationSigma
		if sigma < 0 {
			sigma = -sigma
		}
		if sigma > topSigma {
			topSigma = sigma
			topMetric = s.MetricName
		}
	}
	if topMetric == "" && len(incident.AffectedComponents) > 0 {
		topMetric = incident.AffectedComponents[0]
	}

	return []types.RawHypothesis{{
		Description:  "reasoning model unavailable; falling back to top-deviation signal",
		Category:     string(types.CategoryOther),
		EvidenceRefs: nonEmpty(topMetric),
		Reasoning:    "degraded mode: no model output, ranking by observed deviation only",
	}}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
