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

package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/kkrriders/airra/pkg/types"
)

// InverseAction builds the auto-enqueued rollback action for a DEGRADED,
// reversible outcome (spec §4.8: "a DEGRADED outcome on a reversible
// action auto-proposes its inverse, still gated by approval rules like
// any other action"). It returns false if the original action's risk
// profile carries no inverse.
func InverseAction(original types.Action, rp types.RiskProfile, at time.Time) (types.Action, bool) {
	if !rp.Reversible || rp.InverseActionType == "" {
		return types.Action{}, false
	}

	return types.Action{
		ID:               uuid.NewString(),
		IncidentID:       original.IncidentID,
		HypothesisRank:   original.HypothesisRank,
		ActionType:       rp.InverseActionType,
		Parameters:       original.Parameters,
		Status:           types.ActionProposed,
		ApprovalRequired: true,
		RequestedAt:      at,
	}, true
}
