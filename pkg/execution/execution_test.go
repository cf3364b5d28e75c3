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
	"context"
	"testing"
	"time"

	"github.com/kkrriders/airra/pkg/types"
)

type fakeEffector struct {
	attemptID int64
	err       error
}

func (f *fakeEffector) Execute(ctx context.Context, action types.Action) (int64, error) {
	return f.attemptID, f.err
}
func (f *fakeEffector) Status(ctx context.Context, attemptID int64) (bool, error) { return true, nil }

type fakeSnapshotter struct {
	sequence []map[string]types.MetricSummary
	calls    int
}

func (f *fakeSnapshotter) Snapshot(ctx context.Context, service string, metrics []string) (map[string]types.MetricSummary, error) {
	snap := f.sequence[f.calls]
	f.calls++
	return snap, nil
}

type noopClock struct{}

func (noopClock) Sleep(time.Duration) {}

func TestExecute_ClassifiesSuccess(t *testing.T) {
	snap := &fakeSnapshotter{sequence: []map[string]types.MetricSummary{
		{"latency_ms": {Value: 500}},
		{"latency_ms": {Value: 100}},
	}}
	outcome, pre, post, attemptID, err := Execute(context.Background(), &fakeEffector{attemptID: 7}, snap, types.Action{}, []string{"latency_ms"}, Thresholds{ImprovementThreshold: 0.2, UnstableThreshold: 0.2}, noopClock{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != types.OutcomeSuccess {
		t.Errorf("outcome = %s, want SUCCESS", outcome)
	}
	if pre["latency_ms"].Value != 500 || post["latency_ms"].Value != 100 {
		t.Errorf("unexpected pre/post: %v %v", pre, post)
	}
	if attemptID != 7 {
		t.Errorf("attemptID = %d, want 7", attemptID)
	}
}

func TestClassify_Unstable(t *testing.T) {
	pre := map[string]types.MetricSummary{"errors": {Value: 10}}
	post := map[string]types.MetricSummary{"errors": {Value: 20}}
	if got := Classify(pre, post, Thresholds{ImprovementThreshold: 0.2, UnstableThreshold: 0.5}); got != types.OutcomeUnstable {
		t.Errorf("outcome = %s, want UNSTABLE", got)
	}
}

func TestClassify_NoChange(t *testing.T) {
	pre := map[string]types.MetricSummary{"errors": {Value: 10}}
	post := map[string]types.MetricSummary{"errors": {Value: 10}}
	if got := Classify(pre, post, Thresholds{ImprovementThreshold: 0.2, UnstableThreshold: 0.5}); got != types.OutcomeNoChange {
		t.Errorf("outcome = %s, want NO_CHANGE", got)
	}
}

func TestInverseAction_OnlyWhenReversible(t *testing.T) {
	rp := types.RiskProfile{Reversible: true, InverseActionType: types.ActionScaleDown}
	inv, ok := InverseAction(types.Action{IncidentID: "inc-1"}, rp, time.Now())
	if !ok {
		t.Fatal("expected inverse action for reversible risk profile")
	}
	if inv.ActionType != types.ActionScaleDown || inv.Status != types.ActionProposed {
		t.Errorf("inverse = %+v, want scale_down PROPOSED", inv)
	}

	_, ok = InverseAction(types.Action{}, types.RiskProfile{Reversible: false}, time.Now())
	if ok {
		t.Error("expected no inverse action for irreversible risk profile")
	}
}
