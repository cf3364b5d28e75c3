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

package blastradius

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kkrriders/airra/pkg/registry"
	"github.com/kkrriders/airra/pkg/types"
)

func TestAssess_HigherFanoutYieldsHigherBlastScore(t *testing.T) {
	small, err := registry.NewGraph([]types.ServiceNode{{Name: "ledger"}, {Name: "payments", DependsOn: []string{"ledger"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	large, err := registry.NewGraph([]types.ServiceNode{
		{Name: "ledger"},
		{Name: "payments", DependsOn: []string{"ledger"}},
		{Name: "checkout", DependsOn: []string{"payments"}},
		{Name: "storefront", DependsOn: []string{"checkout"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := Assess(Inputs{Service: "ledger", Graph: small, RevenuePerRequest: decimal.NewFromFloat(0.01)})
	b := Assess(Inputs{Service: "ledger", Graph: large, RevenuePerRequest: decimal.NewFromFloat(0.01)})

	if b.BlastScore <= a.BlastScore {
		t.Errorf("wider fanout should score higher: a=%v b=%v", a.BlastScore, b.BlastScore)
	}
}

func TestAssess_RevenueImpactUsesDecimalMath(t *testing.T) {
	a := Assess(Inputs{Service: "checkout", RequestVolumeQPS: 100, RevenuePerRequest: decimal.NewFromFloat(0.25)})
	want := 100.0 * 0.25 * 3600
	if a.RevenueImpactPerHour != want {
		t.Errorf("revenue impact per hour = %v, want %v", a.RevenueImpactPerHour, want)
	}
}

func TestCriticalityWeight_UsesAffectedServiceOnlyNotAverage(t *testing.T) {
	graph, err := registry.NewGraph([]types.ServiceNode{
		{Name: "ledger", Criticality: types.CriticalityLow},
		{Name: "payments", Criticality: types.CriticalityCritical, DependsOn: []string{"ledger"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := CriticalityWeight(graph, "payments"); got != 1.0 {
		t.Errorf("CriticalityWeight(payments) = %v, want 1.0 regardless of ledger's lower tier", got)
	}
	if got := CriticalityWeight(graph, "ledger"); got != 0.25 {
		t.Errorf("CriticalityWeight(ledger) = %v, want 0.25", got)
	}
}

func TestCriticalityWeight_UnknownServiceIsZero(t *testing.T) {
	graph, err := registry.NewGraph([]types.ServiceNode{{Name: "ledger"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := CriticalityWeight(graph, "does_not_exist"); got != 0 {
		t.Errorf("CriticalityWeight = %v, want 0 for an unknown service", got)
	}
	if got := CriticalityWeight(nil, "ledger"); got != 0 {
		t.Errorf("CriticalityWeight = %v, want 0 for a nil graph", got)
	}
}

func TestLevelFor_Monotonic(t *testing.T) {
	prev := -1.0
	for _, score := range []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		lvl := levelFor(score)
		rank := map[types.BlastLevel]float64{
			types.BlastMinimal: 0, types.BlastLow: 1, types.BlastMedium: 2, types.BlastHigh: 3, types.BlastCritical: 4,
		}[lvl]
		if rank < prev {
			t.Errorf("level rank decreased at score %v", score)
		}
		prev = rank
	}
}
