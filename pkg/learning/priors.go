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

package learning

import (
	"sync"

	"github.com/kkrriders/airra/pkg/types"
)

// Aggregator maintains a per-category rolling success rate from
// ConfidenceOutcomeRecords, seeded from the Store's log at startup and
// updated by the orchestrator with each outcome it appends, and
// implements pkg/scoring's PriorSource.
type Aggregator struct {
	mu     sync.RWMutex
	counts map[types.Category]int
	sums   map[types.Category]float64
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[types.Category]int), sums: make(map[types.Category]float64)}
}

// Ingest folds a batch of outcome records into the rolling aggregates.
// SUCCESS and PARTIAL_SUCCESS count as 1 and 0.5 respectively toward the
// per-category success rate; everything else counts as 0.
func (a *Aggregator) Ingest(records []types.ConfidenceOutcomeRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range records {
		a.counts[r.Category]++
		a.sums[r.Category] += outcomeWeight(r.Outcome)
	}
}

func outcomeWeight(o types.VerificationOutcome) float64 {
	switch o {
	case types.OutcomeSuccess:
		return 1.0
	case types.OutcomePartialSuccess:
		return 0.5
	default:
		return 0.0
	}
}

// Prior implements pkg/scoring.PriorSource: the observed success rate for
// category, and how many outcomes informed it.
func (a *Aggregator) Prior(category types.Category) (value float64, outcomeCount int, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	count, exists := a.counts[category]
	if !exists || count == 0 {
		return 0, 0, false
	}
	return a.sums[category] / float64(count), count, true
}
