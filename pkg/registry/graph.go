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

// Package registry holds the operator-authored dependency graph and
// runbook allow-lists that bound AIRRA's action selection (spec §3, §6).
// Both are loaded from YAML, validated eagerly, and optionally
// hot-reloaded; reload is atomic (a reader never observes a partially
// updated graph).
package registry

import (
	"fmt"
	"sort"

	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// Graph is an immutable, validated view of the service dependency graph.
// Callers obtain one from a Registry and never mutate it; a reload
// produces a new Graph and swaps the Registry's pointer to it.
type Graph struct {
	nodes map[string]types.ServiceNode
}

// NewGraph validates nodes (no unknown dependency targets, no cycles) and
// returns an immutable Graph, or an error naming the first violation.
func NewGraph(nodes []types.ServiceNode) (*Graph, error) {
	index := make(map[string]types.ServiceNode, len(nodes))
	for _, n := range nodes {
		if _, dup := index[n.Name]; dup {
			return nil, errors.ValidationError("name", fmt.Sprintf("duplicate service node %q", n.Name))
		}
		index[n.Name] = n
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, errors.ValidationError("depends_on", fmt.Sprintf("service %q depends on unknown service %q", n.Name, dep))
			}
		}
	}

	g := &Graph{nodes: index}
	if cyclePath, ok := g.findCycle(); ok {
		return nil, errors.ValidationError("depends_on", fmt.Sprintf("dependency cycle detected: %v", cyclePath))
	}

	return g, nil
}

// findCycle runs a DFS with a recursion stack over every node, returning
// the first cycle it finds as a readable path.
func (g *Graph) findCycle() ([]string, bool) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var stack []string
	var visit func(name string) ([]string, bool)
	visit = func(name string) ([]string, bool) {
		state[name] = visiting
		stack = append(stack, name)
		deps := append([]string(nil), g.nodes[name].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				return append(append([]string(nil), stack...), dep), true
			case unvisited:
				if path, found := visit(dep); found {
					return path, true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil, false
	}

	for _, name := range names {
		if state[name] == unvisited {
			if path, found := visit(name); found {
				return path, true
			}
		}
	}
	return nil, false
}

// Node returns the node for name and whether it exists.
func (g *Graph) Node(name string) (types.ServiceNode, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Has reports whether name is a known service.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Dependents returns the services that directly depend on name, used by
// blast-radius propagation (spec §4.6).
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if dep == name {
				out = append(out, n.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// TransitiveDependents returns every service reachable by following
// "depends on" edges backwards from name, i.e. every service whose
// request path could be affected if name degrades.
func (g *Graph) TransitiveDependents(name string) []string {
	seen := map[string]bool{name: true}
	queue := []string{name}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.Dependents(cur) {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				queue = append(queue, d)
			}
		}
	}
	sort.Strings(out)
	return out
}

// dependsOn returns the services name directly depends on.
func (g *Graph) dependsOn(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return n.DependsOn
}

// TransitiveDependencies returns every service reachable by following
// "depends on" edges forwards from name, i.e. every upstream service
// name's own correctness transitively relies on. Used by confidence
// scoring's dependency boost (spec §4.5) to find upstream services in a
// live incident.
func (g *Graph) TransitiveDependencies(name string) []string {
	seen := map[string]bool{name: true}
	queue := []string{name}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependsOn(cur) {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				queue = append(queue, d)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Services returns every known service name, sorted, so callers can build
// a poll list without depending on YAML ordering.
func (g *Graph) Services() []string {
	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
