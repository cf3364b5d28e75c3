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

// Package perception polls the metrics backend for each watched service,
// computes rolling-window z-scores and emits Signals for anomalous metric
// points (spec §4.1). It never decides whether an incident exists; that is
// pkg/correlation's job.
package perception

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/kkrriders/airra/pkg/shared/logging"
	"github.com/kkrriders/airra/pkg/types"
)

// MetricPoint is one sample returned by the metrics backend.
type MetricPoint struct {
	Timestamp time.Time
	Value     float64
}

// MetricsBackend is the external collaborator perception polls. AIRRA
// never queries Prometheus-compatible stores directly from this package;
// pkg/metricsbackend supplies the concrete implementation.
type MetricsBackend interface {
	QueryRange(ctx context.Context, service, metric string, window time.Duration) ([]MetricPoint, error)
}

// Observer computes anomaly signals for a set of watched (service, metric)
// pairs.
type Observer struct {
	backend        MetricsBackend
	baselineWindow int
	thresholdSigma float64
	log            logr.Logger
}

// NewObserver constructs an Observer. baselineWindow is the number of
// leading samples in a polled window used to compute the rolling mean and
// stddev that the trailing samples are compared against.
func NewObserver(backend MetricsBackend, baselineWindow int, thresholdSigma float64, log logr.Logger) *Observer {
	return &Observer{backend: backend, baselineWindow: baselineWindow, thresholdSigma: thresholdSigma, log: log}
}

// Observe polls metric for service over window and returns one Signal per
// anomalous trailing sample. A metrics-backend error yields an empty slice
// and a nil error: perception degrades by skipping a cycle, it never halts
// the poll loop (spec §4.1 edge cases).
func (o *Observer) Observe(ctx context.Context, service, metric string, window time.Duration) ([]types.Signal, error) {
	points, err := o.backend.QueryRange(ctx, service, metric, window)
	if err != nil {
		o.log.Info("metrics backend query failed, skipping cycle",
			logging.PipelineFields("perception", "").Custom("service", service).Custom("metric", metric).KeysAndValues()...)
		return nil, nil
	}
	if len(points) <= o.baselineWindow {
		return nil, nil
	}

	if !sort.SliceIsSorted(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) }) {
		o.log.Info("out-of-order metric window, skipping cycle", "service", service, "metric", metric)
		return nil, nil
	}

	baseline := points[:o.baselineWindow]
	mean, stddev := meanStddev(baseline)
	if stddev == 0 {
		return nil, nil
	}

	var signals []types.Signal
	for _, p := range points[o.baselineWindow:] {
		z := (p.Value - mean) / stddev
		if math.Abs(z) < o.thresholdSigma {
			continue
		}
		signals = append(signals, types.Signal{
			Service:        service,
			MetricName:     metric,
			Value:          p.Value,
			Baseline:       mean,
			DeviationSigma: z,
			Timestamp:      p.Timestamp,
			Source:         types.SourceMetric,
		})
	}
	return signals, nil
}

func meanStddev(points []MetricPoint) (mean, stddev float64) {
	if len(points) == 0 {
		return 0, 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	mean = sum / float64(len(points))

	var variance float64
	for _, p := range points {
		d := p.Value - mean
		variance += d * d
	}
	variance /= float64(len(points))
	return mean, math.Sqrt(variance)
}
