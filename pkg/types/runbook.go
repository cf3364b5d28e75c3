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

// AllowedAction is one entry in a Runbook's allow-list.
type AllowedAction struct {
	ActionType               ActionType             `yaml:"action_type" json:"action_type"`
	Description              string                 `yaml:"description" json:"description"`
	ApprovalRequired         bool                   `yaml:"approval_required" json:"approval_required"`
	RiskLevel                RiskLevel              `yaml:"risk_level" json:"risk_level"`
	DefaultParameters        map[string]interface{} `yaml:"default_parameters" json:"default_parameters"`
	Prerequisites            []string               `yaml:"prerequisites" json:"prerequisites"`
	MaxAutoExecutionsPerDay  int                    `yaml:"max_auto_executions_per_day" json:"max_auto_executions_per_day"`
}

// Runbook is authored, operator-controlled configuration mapping a
// hypothesis category (optionally scoped to one service) to an allow-list
// of remediation actions.
type Runbook struct {
	ID                 string                    `yaml:"id" json:"id"`
	Category           Category                  `yaml:"category" json:"category"`
	Service            string                    `yaml:"service,omitempty" json:"service,omitempty"`
	AllowedActions     []AllowedAction           `yaml:"allowed_actions" json:"allowed_actions"`
	DiagnosticQueries  map[string]string         `yaml:"diagnostic_queries" json:"diagnostic_queries"`
	EscalationCriteria []string                  `yaml:"escalation_criteria" json:"escalation_criteria"`
}

// ServiceTier is the closed tiering enum for dependency-graph nodes.
type ServiceTier string

const (
	TierZero  ServiceTier = "tier-0"
	TierOne   ServiceTier = "tier-1"
	TierTwo   ServiceTier = "tier-2"
	TierThree ServiceTier = "tier-3"
)

// Criticality is the closed criticality enum for dependency-graph nodes.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// ServiceNode is one dependency-graph node.
type ServiceNode struct {
	Name        string      `yaml:"name" json:"name"`
	DependsOn   []string    `yaml:"depends_on" json:"depends_on"`
	Tier        ServiceTier `yaml:"tier" json:"tier"`
	Team        string      `yaml:"team" json:"team"`
	Criticality Criticality `yaml:"criticality" json:"criticality"`
}
