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

package registry

import (
	"fmt"

	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// RunbookSet indexes runbooks by category, with service-scoped runbooks
// taking precedence over the category-wide default.
type RunbookSet struct {
	byCategory map[types.Category]types.Runbook
	byScoped   map[types.Category]map[string]types.Runbook
}

// NewRunbookSet validates runbooks (every allowed action_type and
// risk_level must be a member of the closed enums) and indexes them.
func NewRunbookSet(runbooks []types.Runbook) (*RunbookSet, error) {
	rs := &RunbookSet{
		byCategory: make(map[types.Category]types.Runbook),
		byScoped:   make(map[types.Category]map[string]types.Runbook),
	}

	for _, rb := range runbooks {
		if !isValidCategory(rb.Category) {
			return nil, errors.ValidationError("category", fmt.Sprintf("runbook %q references unknown category %q", rb.ID, rb.Category))
		}
		for _, aa := range rb.AllowedActions {
			if !aa.ActionType.IsValid() {
				return nil, errors.ValidationError("action_type", fmt.Sprintf("runbook %q allows unknown action_type %q", rb.ID, aa.ActionType))
			}
			switch aa.RiskLevel {
			case types.RiskLow, types.RiskMedium, types.RiskHigh, types.RiskCritical:
			default:
				return nil, errors.ValidationError("risk_level", fmt.Sprintf("runbook %q action %q has unknown risk_level %q", rb.ID, aa.ActionType, aa.RiskLevel))
			}
		}

		if rb.Service == "" {
			rs.byCategory[rb.Category] = rb
			continue
		}
		if rs.byScoped[rb.Category] == nil {
			rs.byScoped[rb.Category] = make(map[string]types.Runbook)
		}
		rs.byScoped[rb.Category][rb.Service] = rb
	}

	return rs, nil
}

func isValidCategory(c types.Category) bool {
	for _, v := range types.ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Lookup returns the runbook governing category for service, preferring a
// service-scoped runbook over the category-wide default.
func (rs *RunbookSet) Lookup(category types.Category, service string) (types.Runbook, bool) {
	if scoped, ok := rs.byScoped[category]; ok {
		if rb, ok := scoped[service]; ok {
			return rb, true
		}
	}
	rb, ok := rs.byCategory[category]
	return rb, ok
}

// Len returns the total number of indexed runbooks.
func (rs *RunbookSet) Len() int {
	n := len(rs.byCategory)
	for _, m := range rs.byScoped {
		n += len(m)
	}
	return n
}
