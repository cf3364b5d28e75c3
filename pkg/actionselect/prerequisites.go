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

package actionselect

import "context"

// Facts is the read-only state a PrerequisiteEvaluator inspects. The
// orchestrator passes every fact as true; no fact is read from the live
// state of the target service.
type Facts struct {
	CapacityAvailable       bool
	MinReplicasRespected    bool
	CacheBackendReachable   bool
	FlagExists              bool
	PodExists               bool
	NotLastHealthyReplica   bool
	PreviousRevisionExists  bool
	NodeExists              bool
	ClusterHasSpareCapacity bool
}

// PrerequisiteEvaluator reports whether a named prerequisite holds given
// Facts. Evaluators are registered by name, a closed set: an unknown name
// referenced by a runbook fails closed (spec §4.6: "unknown prerequisite
// name blocks the action, it never defaults to allow").
type PrerequisiteEvaluator func(ctx context.Context, f Facts) bool

// Evaluators is the closed registry of named prerequisite predicates a
// runbook's AllowedAction.Prerequisites may reference.
var Evaluators = map[string]PrerequisiteEvaluator{
	"capacity_available":          func(ctx context.Context, f Facts) bool { return f.CapacityAvailable },
	"min_replicas_respected":      func(ctx context.Context, f Facts) bool { return f.MinReplicasRespected },
	"cache_backend_reachable":     func(ctx context.Context, f Facts) bool { return f.CacheBackendReachable },
	"flag_exists":                 func(ctx context.Context, f Facts) bool { return f.FlagExists },
	"pod_exists":                  func(ctx context.Context, f Facts) bool { return f.PodExists },
	"not_last_healthy_replica":    func(ctx context.Context, f Facts) bool { return f.NotLastHealthyReplica },
	"previous_revision_available": func(ctx context.Context, f Facts) bool { return f.PreviousRevisionExists },
	"node_exists":                 func(ctx context.Context, f Facts) bool { return f.NodeExists },
	"cluster_has_spare_capacity":  func(ctx context.Context, f Facts) bool { return f.ClusterHasSpareCapacity },
}

// EvaluatePrerequisites reports whether every named prerequisite holds.
// An unregistered name is treated as failed, never as satisfied.
func EvaluatePrerequisites(ctx context.Context, names []string, f Facts) bool {
	for _, name := range names {
		eval, ok := Evaluators[name]
		if !ok || !eval(ctx, f) {
			return false
		}
	}
	return true
}
