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
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/types"
)

// snapshot is the atomically-swapped pair loaded together from disk.
type snapshot struct {
	graph    *Graph
	runbooks *RunbookSet
	hash     string
}

// Registry serves the current dependency Graph and RunbookSet, optionally
// refreshing both from disk when either file changes on disk. Readers
// always observe either the old snapshot or the new one in full, never a
// graph paired with stale runbooks.
type Registry struct {
	dependencyPath string
	runbooksPath   string
	log            logr.Logger

	current atomic.Pointer[snapshot]
	watcher *fsnotify.Watcher
}

type dependencyFile struct {
	Services []types.ServiceNode `yaml:"services"`
}

type runbookFile struct {
	Runbooks []types.Runbook `yaml:"runbooks"`
}

// Load reads and validates the dependency graph and runbook files and
// returns a Registry serving them. It does not start a watcher; call
// Watch for that.
func Load(dependencyPath, runbooksPath string, log logr.Logger) (*Registry, error) {
	r := &Registry{dependencyPath: dependencyPath, runbooksPath: runbooksPath, log: log}
	snap, err := r.loadSnapshot()
	if err != nil {
		return nil, err
	}
	r.current.Store(snap)
	return r, nil
}

func (r *Registry) loadSnapshot() (*snapshot, error) {
	depData, err := os.ReadFile(r.dependencyPath)
	if err != nil {
		return nil, pkgerrors.FailedToWithDetails("read dependency config", "registry", r.dependencyPath, err)
	}
	var df dependencyFile
	if err := yaml.Unmarshal(depData, &df); err != nil {
		return nil, pkgerrors.ParseError(r.dependencyPath, "yaml", err)
	}
	graph, err := NewGraph(df.Services)
	if err != nil {
		return nil, pkgerrors.FailedToWithDetails("build dependency graph", "registry", r.dependencyPath, err)
	}

	rbData, err := os.ReadFile(r.runbooksPath)
	if err != nil {
		return nil, pkgerrors.FailedToWithDetails("read runbooks config", "registry", r.runbooksPath, err)
	}
	var rf runbookFile
	if err := yaml.Unmarshal(rbData, &rf); err != nil {
		return nil, pkgerrors.ParseError(r.runbooksPath, "yaml", err)
	}
	runbooks, err := NewRunbookSet(rf.Runbooks)
	if err != nil {
		return nil, pkgerrors.FailedToWithDetails("build runbook set", "registry", r.runbooksPath, err)
	}

	h := sha256.New()
	h.Write(depData)
	h.Write(rbData)

	return &snapshot{graph: graph, runbooks: runbooks, hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// Graph returns the currently active dependency graph.
func (r *Registry) Graph() *Graph {
	return r.current.Load().graph
}

// Runbooks returns the currently active runbook set.
func (r *Registry) Runbooks() *RunbookSet {
	return r.current.Load().runbooks
}

// Hash returns a content hash of the currently loaded configuration,
// stable across reloads of byte-identical files (used to assert
// idempotent reload behavior).
func (r *Registry) Hash() string {
	return r.current.Load().hash
}

// Watch starts an fsnotify watch on both config files and reloads the
// registry whenever either changes. A failed reload is logged and the
// previous snapshot is kept in place; Watch never lets a malformed file
// take the registry offline. Watch blocks until stop is closed.
func (r *Registry) Watch(stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return pkgerrors.FailedTo("create config watcher", err)
	}
	r.watcher = w
	defer w.Close()

	if err := w.Add(r.dependencyPath); err != nil {
		return pkgerrors.FailedToWithDetails("watch dependency config", "registry", r.dependencyPath, err)
	}
	if err := w.Add(r.runbooksPath); err != nil {
		return pkgerrors.FailedToWithDetails("watch runbooks config", "registry", r.runbooksPath, err)
	}

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Error(err, "registry watcher error")
		}
	}
}

func (r *Registry) reload() {
	snap, err := r.loadSnapshot()
	if err != nil {
		r.log.Error(err, "registry reload failed, keeping previous configuration")
		return
	}
	if snap.hash == r.current.Load().hash {
		return
	}
	r.current.Store(snap)
	r.log.Info("registry reloaded", "hash", snap.hash)
}
