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

// Package execution drives an approved Action through the external
// effector, waits out a stabilization window, and classifies the outcome
// by comparing pre- and post-action metrics (spec §4.8). Execution never
// talks to Kubernetes or any other remediation surface directly — that is
// pkg/effector's job; this package only sequences the calls.
package execution

import (
	"context"
	"time"

	"github.com/kkrriders/airra/pkg/types"
)

// Effector is the external collaborator that actually performs (or
// dry-run-simulates) a remediation action.
type Effector interface {
	Execute(ctx context.Context, action types.Action) (attemptID int64, err error)
	Status(ctx context.Context, attemptID int64) (done bool, err error)
}

// MetricsSnapshotter captures the current value of an incident's watched
// metrics, used for the pre/post comparison.
type MetricsSnapshotter interface {
	Snapshot(ctx context.Context, service string, metrics []string) (map[string]types.MetricSummary, error)
}

// Thresholds configures outcome classification.
type Thresholds struct {
	StabilizationWindow  time.Duration
	ImprovementThreshold float64 // fractional improvement over baseline counted as SUCCESS
	UnstableThreshold    float64 // fractional *worsening* counted as UNSTABLE
}

// Clock abstracts time.Sleep so tests don't block for real stabilization
// windows.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock is the production Clock.
var RealClock Clock = realClock{}

// Execute runs action through effector: captures pre-metrics, invokes the
// effector, waits the stabilization window, captures post-metrics, and
// returns the classified outcome, both snapshots and the attempt ID.
// Both snapshots are always taken here; there is no way to pass in a
// pre-captured one.
func Execute(
	ctx context.Context,
	eff Effector,
	snapshotter MetricsSnapshotter,
	action types.Action,
	watchedMetrics []string,
	thresholds Thresholds,
	clock Clock,
) (types.VerificationOutcome, map[string]types.MetricSummary, map[string]types.MetricSummary, int64, error) {
	pre, err := snapshotter.Snapshot(ctx, action.IncidentID, watchedMetrics)
	if err != nil {
		return "", nil, nil, 0, err
	}

	attemptID, err := eff.Execute(ctx, action)
	if err != nil {
		return "", pre, nil, attemptID, err
	}

	if clock == nil {
		clock = RealClock
	}
	clock.Sleep(thresholds.StabilizationWindow)

	post, err := snapshotter.Snapshot(ctx, action.IncidentID, watchedMetrics)
	if err != nil {
		return "", pre, nil, attemptID, err
	}

	outcome := Classify(pre, post, thresholds)
	return outcome, pre, post, attemptID, nil
}

// Classify compares pre and post metric snapshots and returns the
// verification outcome per spec §4.8: average fractional improvement
// across watched metrics drives the classification.
func Classify(pre, post map[string]types.MetricSummary, t Thresholds) types.VerificationOutcome {
	improvement := AverageImprovement(pre, post)

	switch {
	case improvement >= t.ImprovementThreshold:
		return types.OutcomeSuccess
	case improvement > 0:
		return types.OutcomePartialSuccess
	case improvement <= -t.UnstableThreshold:
		return types.OutcomeUnstable
	case improvement < 0:
		return types.OutcomeDegraded
	default:
		return types.OutcomeNoChange
	}
}

// AverageImprovement returns the mean fractional reduction in metric value
// across every metric present in both snapshots: positive is improvement,
// negative is worsening. Metrics present in only one snapshot are ignored.
func AverageImprovement(pre, post map[string]types.MetricSummary) float64 {
	var total float64
	var n int
	for name, preVal := range pre {
		postVal, ok := post[name]
		if !ok || preVal.Value == 0 {
			continue
		}
		total += (preVal.Value - postVal.Value) / preVal.Value
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
