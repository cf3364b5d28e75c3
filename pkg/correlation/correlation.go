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

// Package correlation groups deduplicated Signals arriving within a
// sliding window into incident candidates and scores each candidate's
// correlation confidence (spec §4.2). A candidate below the configured
// confidence threshold is held, not dropped: it may pick up enough
// corroborating signals from a later cycle to cross the threshold before
// the window closes.
package correlation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/kkrriders/airra/pkg/types"
)

// Weights configures the composite correlation-confidence formula.
type Weights struct {
	Metric         float64
	Log            float64
	Trace          float64
	DiversityBonus float64
}

// DefaultWeights mirrors the control plane's documented defaults.
var DefaultWeights = Weights{Metric: 0.4, Log: 0.3, Trace: 0.3, DiversityBonus: 0.1}

// Candidate is a group of signals for one service within the current
// window, not yet promoted to an Incident.
type Candidate struct {
	Service    string
	Signals    []types.Signal
	FirstSeen  time.Time
	LastSeen   time.Time
	Confidence float64
}

// Correlator buckets incoming signals by service within a sliding window.
type Correlator struct {
	window                 time.Duration
	minSignalCount         int
	minSignalTypeDiversity int
	confidenceThreshold    float64
	weights                Weights

	byService map[string]*Candidate
}

// New constructs a Correlator.
func New(window time.Duration, minSignalCount, minSignalTypeDiversity int, confidenceThreshold float64, weights Weights) *Correlator {
	return &Correlator{
		window:                 window,
		minSignalCount:         minSignalCount,
		minSignalTypeDiversity: minSignalTypeDiversity,
		confidenceThreshold:    confidenceThreshold,
		weights:                weights,
		byService:              make(map[string]*Candidate),
	}
}

// Ingest adds sig to its service's candidate, evicting signals that have
// fallen outside the window, and returns the updated candidate.
func (c *Correlator) Ingest(sig types.Signal, now time.Time) *Candidate {
	cand, ok := c.byService[sig.Service]
	if !ok {
		cand = &Candidate{Service: sig.Service, FirstSeen: sig.Timestamp}
		c.byService[sig.Service] = cand
	}

	cand.Signals = append(cand.Signals, sig)
	cutoff := now.Add(-c.window)
	kept := cand.Signals[:0]
	for _, s := range cand.Signals {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	cand.Signals = kept
	if len(cand.Signals) > 0 {
		cand.FirstSeen = cand.Signals[0].Timestamp
		cand.LastSeen = cand.Signals[len(cand.Signals)-1].Timestamp
	}
	cand.Confidence = Confidence(cand.Signals, c.weights)
	return cand
}

// Ready reports whether cand has enough signals and type diversity to be
// eligible for promotion, and its confidence meets the threshold.
func (c *Correlator) Ready(cand *Candidate) bool {
	if len(cand.Signals) < c.minSignalCount {
		return false
	}
	if typeDiversity(cand.Signals) < c.minSignalTypeDiversity {
		return false
	}
	return cand.Confidence >= c.confidenceThreshold
}

// Reset clears the candidate for service, used once it has been promoted
// to an Incident.
func (c *Correlator) Reset(service string) {
	delete(c.byService, service)
}

// Confidence computes the composite correlation-confidence score: the
// weighted presence of each signal type plus a diversity bonus when more
// than one type is present, capped at 1.0.
func Confidence(signals []types.Signal, w Weights) float64 {
	var hasMetric, hasLog, hasTrace bool
	for _, s := range signals {
		switch s.Source {
		case types.SourceMetric:
			hasMetric = true
		case types.SourceLog:
			hasLog = true
		case types.SourceTrace:
			hasTrace = true
		}
	}

	score := 0.0
	typesPresent := 0
	if hasMetric {
		score += w.Metric
		typesPresent++
	}
	if hasLog {
		score += w.Log
		typesPresent++
	}
	if hasTrace {
		score += w.Trace
		typesPresent++
	}
	if typesPresent > 1 {
		score += w.DiversityBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func typeDiversity(signals []types.Signal) int {
	seen := make(map[types.SignalSource]bool)
	for _, s := range signals {
		seen[s.Source] = true
	}
	return len(seen)
}

// Fingerprint computes an incident's dedup fingerprint from its service
// and the sorted set of metric names contributing to it, used to merge a
// newly promoted candidate into an already-open incident for the same
// root cause rather than opening a second one (spec §4.3).
func Fingerprint(service string, signals []types.Signal) string {
	metrics := make(map[string]bool)
	for _, s := range signals {
		metrics[s.MetricName] = true
	}
	names := make([]string, 0, len(metrics))
	for m := range metrics {
		names = append(names, m)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(service))
	for _, n := range names {
		h.Write([]byte{'|'})
		h.Write([]byte(n))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AffectedComponents returns the sorted, deduplicated set of metric names
// contributing to signals, used to seed a new Incident's
// AffectedComponents.
func AffectedComponents(signals []types.Signal) []string {
	set := make(map[string]bool)
	for _, s := range signals {
		set[s.MetricName] = true
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MetricsSnapshot summarizes the latest observation of each metric in
// signals, used to seed Incident.MetricsSnapshot.
func MetricsSnapshot(signals []types.Signal) map[string]types.MetricSummary {
	out := make(map[string]types.MetricSummary)
	latest := make(map[string]time.Time)
	for _, s := range signals {
		if t, ok := latest[s.MetricName]; ok && !s.Timestamp.After(t) {
			continue
		}
		latest[s.MetricName] = s.Timestamp
		out[s.MetricName] = types.MetricSummary{Value: s.Value, Baseline: s.Baseline, Sigma: s.DeviationSigma}
	}
	return out
}

// Severity returns the maximum severity across signals.
func Severity(signals []types.Signal) types.IncidentSeverity {
	sev := types.SeverityLow
	for _, s := range signals {
		sev = sev.Max(s.Severity())
	}
	return sev
}
