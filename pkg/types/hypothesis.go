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

// Category is the closed root-cause category enum shared by Hypothesis,
// Runbook and the category-prior table.
type Category string

const (
	CategoryMemoryLeak           Category = "memory_leak"
	CategoryCPUSpike             Category = "cpu_spike"
	CategoryLatencySpike         Category = "latency_spike"
	CategoryErrorSpike           Category = "error_spike"
	CategoryDatabaseIssue        Category = "database_issue"
	CategoryNetworkIssue         Category = "network_issue"
	CategoryDeploymentRegression Category = "deployment_regression"
	CategoryResourceExhaustion   Category = "resource_exhaustion"
	CategoryDependencyFailure    Category = "dependency_failure"
	CategoryOther                Category = "other"
)

// ValidCategories lists the closed enum in declaration order, used to
// validate reasoning-model output and runbook records.
var ValidCategories = []Category{
	CategoryMemoryLeak,
	CategoryCPUSpike,
	CategoryLatencySpike,
	CategoryErrorSpike,
	CategoryDatabaseIssue,
	CategoryNetworkIssue,
	CategoryDeploymentRegression,
	CategoryResourceExhaustion,
	CategoryDependencyFailure,
	CategoryOther,
}

// IsValid reports whether c is a member of the closed category enum.
func (c Category) IsValid() bool {
	for _, v := range ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Hypothesis is a candidate root cause scoped to one incident, with an
// auditable, deterministically computed confidence.
type Hypothesis struct {
	IncidentID        string   `json:"incident_id"`
	Rank              int      `json:"rank"`
	Description       string   `json:"description"`
	Category          Category `json:"category"`
	Confidence        float64  `json:"confidence"`
	BaseConfidence    float64  `json:"base_confidence"`
	EvidenceQuality   float64  `json:"evidence_quality"`
	AnomalyStrength   float64  `json:"anomaly_strength"`
	DependencyBoost   float64  `json:"dependency_boost"`
	SupportingSignals []string `json:"supporting_signals"`
	Reasoning         string   `json:"reasoning"`

	// ModelSuggestedScore is retained purely for audit; it is never read by
	// any control-flow decision (design note: "reasoning-model
	// advisory-only pattern").
	ModelSuggestedScore *float64 `json:"model_suggested_score,omitempty"`
}

// RawHypothesis is the reasoning model's unvalidated output shape (spec
// §4.4/§6): description, category, evidence references and free-text
// rationale. It deliberately has no confidence field — if the model
// returns one it is discarded before this struct is populated.
type RawHypothesis struct {
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	EvidenceRefs []string `json:"evidence_refs"`
	Reasoning    string   `json:"reasoning"`
}
