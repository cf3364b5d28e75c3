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

// Package types holds the core AIRRA data model shared by every pipeline
// stage: Signal, Incident, Hypothesis, Action, RiskProfile,
// BlastRadiusAssessment, Runbook, ServiceNode, ConfidenceOutcomeRecord and
// OperatorFeedback. Names and fields follow the control-plane
// specification's data model (§3) so downstream persistence can shape them
// however it needs without changing pipeline code.
package types

import "time"

// SignalSource identifies the observability source a Signal came from.
type SignalSource string

const (
	SourceMetric SignalSource = "metric"
	SourceLog    SignalSource = "log"
	SourceTrace  SignalSource = "trace"
)

// Signal is one anomalous observation produced by Perception and consumed
// by Correlation within the current correlation window.
type Signal struct {
	Service        string               `json:"service"`
	MetricName     string               `json:"metric_name"`
	Value          float64              `json:"value"`
	Baseline       float64              `json:"baseline"`
	DeviationSigma float64              `json:"deviation_sigma"`
	Timestamp      time.Time            `json:"timestamp"`
	Source         SignalSource         `json:"source"`
	Labels         map[string]string    `json:"labels,omitempty"`
}

// Severity returns the severity bucket for this signal's deviation,
// following the |z| thresholds in spec §4.1. Every |z| below 4.0, including
// values under the anomaly threshold, maps to SeverityLow; it never returns
// an empty severity.
func (s Signal) Severity() IncidentSeverity {
	return severityForSigma(absf(s.DeviationSigma))
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func severityForSigma(z float64) IncidentSeverity {
	switch {
	case z >= 6:
		return SeverityCritical
	case z >= 5:
		return SeverityHigh
	case z >= 4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
