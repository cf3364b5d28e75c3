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

import "time"

// ConfidenceOutcomeRecord is an append-only record pairing a predicted
// confidence with an observed verification outcome, the pipeline's own
// write-back to the learning store (spec §4.8); operator input is appended
// to the same store as OperatorFeedback records. Never rewritten once
// appended.
type ConfidenceOutcomeRecord struct {
	IncidentID          string              `json:"incident_id"`
	Service             string              `json:"service"`
	Category            Category            `json:"category"`
	PredictedConfidence float64             `json:"predicted_confidence"`
	ActionType          ActionType          `json:"action_type"`
	Executed            bool                `json:"executed"`
	Outcome             VerificationOutcome `json:"outcome"`
	TimeToResolutionS   float64             `json:"time_to_resolution_s"`
	BlastLevel          BlastLevel          `json:"blast_level"`
	RiskLevel           RiskLevel           `json:"risk_level"`
	BeforeMetrics       map[string]MetricSummary `json:"before_metrics"`
	AfterMetrics        map[string]MetricSummary `json:"after_metrics"`
	RecordedAt          time.Time           `json:"recorded_at"`
}

// FeedbackType is the closed enum of operator-feedback shapes.
type FeedbackType string

const (
	FeedbackHypothesisCorrect   FeedbackType = "hypothesis_correct"
	FeedbackHypothesisIncorrect FeedbackType = "hypothesis_incorrect"
	FeedbackActionSuccessful    FeedbackType = "action_successful"
	FeedbackActionInappropriate FeedbackType = "action_inappropriate"
	FeedbackEscalated           FeedbackType = "escalated"
	FeedbackComment             FeedbackType = "comment"
)

// OperatorFeedback is an append-only record of operator input about an
// incident's hypotheses or actions.
type OperatorFeedback struct {
	IncidentID        string       `json:"incident_id"`
	HypothesisRank    *int         `json:"hypothesis_rank,omitempty"`
	ActionID          string       `json:"action_id,omitempty"`
	FeedbackType      FeedbackType `json:"feedback_type"`
	CorrectCategory   *Category    `json:"correct_category,omitempty"`
	CorrectActionType *ActionType  `json:"correct_action_type,omitempty"`
	Text              string       `json:"text,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
}
