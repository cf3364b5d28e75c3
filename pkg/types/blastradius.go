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

// BlastLevel is the closed scope-severity enum computed per incident.
type BlastLevel string

const (
	BlastMinimal  BlastLevel = "MINIMAL"
	BlastLow      BlastLevel = "LOW"
	BlastMedium   BlastLevel = "MEDIUM"
	BlastHigh     BlastLevel = "HIGH"
	BlastCritical BlastLevel = "CRITICAL"
)

// BlastRadiusAssessment is the computed impact scope for one incident
// (spec §3 / §4.6).
type BlastRadiusAssessment struct {
	AffectedServicesCount  int        `json:"affected_services_count"`
	RequestVolumeQPS       float64    `json:"request_volume_qps"`
	ErrorPropagationRatio  float64    `json:"error_propagation_ratio"`
	CriticalityScore       float64    `json:"criticality_score"`
	BlastScore             float64    `json:"blast_score"`
	Level                  BlastLevel `json:"level"`
	UrgencyMultiplier      float64    `json:"urgency_multiplier"`
	EstimatedUsersImpacted int64      `json:"estimated_users_impacted"`
	RevenueImpactPerHour   float64    `json:"revenue_impact_per_hour"`
}
