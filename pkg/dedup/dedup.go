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

// Package dedup collapses repeat Signals for the same (service, metric,
// stable-label-set) fingerprint within a rolling window, so Correlation
// never sees the same root cause's flapping metric twice (spec §4.2).
package dedup

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kkrriders/airra/pkg/types"
)

// DefaultVolatileLabelPattern matches labels whose value churns between
// otherwise-identical signals (pod names, request/trace IDs) and so must
// be excluded from the dedup fingerprint.
const DefaultVolatileLabelPattern = `^(pod|pod_name|instance|request_id|trace_id)$`

type entry struct {
	fingerprint string
	lastSeen    time.Time
	count       int
	elem        *list.Element
}

// Deduplicator admits or suppresses Signals based on a fingerprint derived
// from service, metric name and stable labels.
type Deduplicator struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	volatile   *regexp.Regexp

	order   *list.List // front = most recently used
	entries map[string]*entry

	totalSeen      int64
	totalAdmitted  int64
}

// New constructs a Deduplicator. window is the duration a fingerprint is
// remembered; maxEntries bounds memory via LRU eviction; volatileLabelRe,
// if empty, defaults to DefaultVolatileLabelPattern.
func New(window time.Duration, maxEntries int, volatileLabelRe string) (*Deduplicator, error) {
	if volatileLabelRe == "" {
		volatileLabelRe = DefaultVolatileLabelPattern
	}
	re, err := regexp.Compile(volatileLabelRe)
	if err != nil {
		return nil, err
	}
	return &Deduplicator{
		window:     window,
		maxEntries: maxEntries,
		volatile:   re,
		order:      list.New(),
		entries:    make(map[string]*entry),
	}, nil
}

// Admit reports whether sig is a fresh observation (true) or a duplicate of
// one already seen within the window (false), together with sig's
// fingerprint. The fingerprint's count is recorded internally for later
// DuplicateCount lookups by the caller.
func (d *Deduplicator) Admit(sig types.Signal, now time.Time) (fingerprint string, fresh bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fp := Fingerprint(sig, d.volatile)
	d.totalSeen++

	if e, ok := d.entries[fp]; ok {
		if now.Sub(e.lastSeen) <= d.window {
			e.lastSeen = now
			e.count++
			d.order.MoveToFront(e.elem)
			return fp, false
		}
		// Window expired: treat as fresh, reset bookkeeping.
		d.order.Remove(e.elem)
		delete(d.entries, fp)
	}

	e := &entry{fingerprint: fp, lastSeen: now, count: 1}
	e.elem = d.order.PushFront(fp)
	d.entries[fp] = e
	d.totalAdmitted++

	d.evictIfNeeded()
	return fp, true
}

func (d *Deduplicator) evictIfNeeded() {
	for len(d.entries) > d.maxEntries {
		back := d.order.Back()
		if back == nil {
			return
		}
		fp := back.Value.(string)
		d.order.Remove(back)
		delete(d.entries, fp)
	}
}

// DuplicateCount returns how many times fingerprint has been seen
// (including the original) within its current window, or 0 if unknown.
func (d *Deduplicator) DuplicateCount(fingerprint string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[fingerprint]; ok {
		return e.count
	}
	return 0
}

// CompressionRatio returns the fraction of observed signals suppressed as
// duplicates so far: 1 - admitted/seen. Returns 0 when nothing observed.
func (d *Deduplicator) CompressionRatio() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.totalSeen == 0 {
		return 0
	}
	return 1 - float64(d.totalAdmitted)/float64(d.totalSeen)
}

// Fingerprint computes a stable hash of service, metric name and every
// label not matched by volatile, sorted for determinism.
func Fingerprint(sig types.Signal, volatile *regexp.Regexp) string {
	var keys []string
	for k := range sig.Labels {
		if volatile == nil || !volatile.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(sig.Service)
	b.WriteByte('|')
	b.WriteString(sig.MetricName)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(sig.Labels[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
