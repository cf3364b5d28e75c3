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

// Package memory provides an in-process reference implementation of the
// incident store, used by tests and local/single-node wiring of the
// orchestrator. It is not meant to back a multi-replica deployment; a
// durable store is swapped in behind the same interface there.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kkrriders/airra/pkg/types"
)

// ErrNotFound is returned when an incident ID has no matching record.
type ErrNotFound struct {
	IncidentID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("incident not found: %s", e.IncidentID)
}

// Store holds incidents in memory, indexed both by ID and by fingerprint
// for the cross-incident dedup lookup (spec §3).
type Store struct {
	mu          sync.RWMutex
	incidents   map[string]*types.Incident
	fingerprint map[string]string // fingerprint -> incident ID, non-terminal only
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		incidents:   make(map[string]*types.Incident),
		fingerprint: make(map[string]string),
	}
}

// Put inserts or replaces an incident, keeping the fingerprint index
// consistent with its current status.
func (s *Store) Put(incident *types.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[incident.ID] = incident
	if incident.Status.IsTerminal() {
		if s.fingerprint[incident.Fingerprint] == incident.ID {
			delete(s.fingerprint, incident.Fingerprint)
		}
		return
	}
	s.fingerprint[incident.Fingerprint] = incident.ID
}

// Get returns a copy-by-reference to the stored incident. Callers that
// mutate it must call Put to persist the change.
func (s *Store) Get(id string) (*types.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, &ErrNotFound{IncidentID: id}
	}
	return inc, nil
}

// FindActiveByFingerprint returns the non-terminal incident sharing
// fingerprint, if any, for the merge-don't-recreate dedup rule (spec §3).
func (s *Store) FindActiveByFingerprint(fingerprint string) (*types.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.fingerprint[fingerprint]
	if !ok {
		return nil, false
	}
	return s.incidents[id], true
}

// ListByStatus returns every incident in the given status, sorted by
// DetectedAt ascending for deterministic sweep ordering.
func (s *Store) ListByStatus(status types.IncidentStatus) []*types.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Incident
	for _, inc := range s.incidents {
		if inc.Status == status {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

// ListNonTerminal returns every incident not yet in a terminal state,
// sorted by DetectedAt ascending.
func (s *Store) ListNonTerminal() []*types.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Incident
	for _, inc := range s.incidents {
		if !inc.Status.IsTerminal() {
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out
}

// Len reports the number of incidents currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents)
}
