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

// Command airra runs the AIRRA closed-loop incident-response control
// plane: it wires the perception, dedup, correlation, reasoning, scoring,
// blast-radius, action-selection, approval and execution stages into one
// orchestrator, serves the operator API and the Prometheus scrape
// endpoint, and polls every known service on a fixed interval until
// signaled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kkrriders/airra/internal/config"
	"github.com/kkrriders/airra/pkg/correlation"
	"github.com/kkrriders/airra/pkg/effector"
	"github.com/kkrriders/airra/pkg/httpapi"
	"github.com/kkrriders/airra/pkg/learning"
	"github.com/kkrriders/airra/pkg/logbackend"
	"github.com/kkrriders/airra/pkg/metrics"
	"github.com/kkrriders/airra/pkg/metricsbackend"
	"github.com/kkrriders/airra/pkg/orchestrator"
	"github.com/kkrriders/airra/pkg/perception"
	"github.com/kkrriders/airra/pkg/reasoning"
	"github.com/kkrriders/airra/pkg/registry"
	"github.com/kkrriders/airra/pkg/scoring"
	"github.com/kkrriders/airra/pkg/shared/logging"
	"github.com/kkrriders/airra/pkg/store/memory"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the AIRRA process configuration file")
	devLogging := flag.Bool("dev", false, "use human-readable development logging instead of production JSON")
	flag.Parse()

	if err := run(*configPath, *devLogging); err != nil {
		fmt.Fprintln(os.Stderr, "airra:", err)
		os.Exit(1)
	}
}

func run(configPath string, devLogging bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pipelineLog, err := logging.NewPipelineLogger(devLogging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	opsLog := logrus.New()
	if cfg.Logging.Format == "text" {
		opsLog.SetFormatter(&logrus.TextFormatter{})
	} else {
		opsLog.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, lerr := logrus.ParseLevel(cfg.Logging.Level); lerr == nil {
		opsLog.SetLevel(level)
	}

	reg, err := registry.Load(cfg.Registry.DependencyConfigPath, cfg.Registry.RunbooksConfigPath, pipelineLog)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	store := memory.New()

	backend := metricsbackend.New(
		cfg.Collaborators.MetricsBackendEndpoint,
		cfg.Collaborators.MetricsSampleStep,
		cfg.Collaborators.MetricsBackendTimeout,
	)
	observer := perception.NewObserver(
		backend,
		cfg.Perception.BaselineWindow,
		cfg.Perception.AnomalyThresholdSigma,
		pipelineLog,
	)

	var logQuerier logbackend.Querier = logbackend.NoopClient{}
	if cfg.Collaborators.LogBackendEndpoint != "" {
		logQuerier = logbackend.New(cfg.Collaborators.LogBackendEndpoint, cfg.Collaborators.LogBackendTimeout)
	}

	reasoner, err := buildReasoner(cfg, opsLog)
	if err != nil {
		return fmt.Errorf("build reasoning provider: %w", err)
	}

	eff := effector.New(cfg.Collaborators.EffectorEndpoint, cfg.Collaborators.EffectorTimeout)

	// The learning log lives next to the dependency config, at its path
	// plus ".learning.jsonl"; there is no separate setting for its location.
	learnPath := cfg.Registry.DependencyConfigPath + ".learning.jsonl"
	learn, err := learning.Open(learnPath)
	if err != nil {
		return fmt.Errorf("open learning store: %w", err)
	}
	defer learn.Close()

	priors := buildPriors(learnPath, pipelineLog)

	orchCfg := orchestrator.Config{
		BaselineWindow:              cfg.Perception.BaselineWindow,
		AnomalyThresholdSigma:       cfg.Perception.AnomalyThresholdSigma,
		WatchedMetrics:              cfg.Perception.WatchedMetrics,
		PollInterval:                cfg.Perception.PollInterval,
		CorrelationWindow:           cfg.Correlation.Window,
		MinSignalCount:              cfg.Correlation.MinSignalCount,
		MinSignalTypeDiversity:      cfg.Correlation.MinSignalTypeDiversity,
		CorrelationConfidence:       cfg.Correlation.ConfidenceThreshold,
		CorrelationWeights: correlation.Weights{
			Metric:         cfg.Correlation.WeightMetric,
			Log:            cfg.Correlation.WeightLog,
			Trace:          cfg.Correlation.WeightTrace,
			DiversityBonus: cfg.Correlation.DiversityBonus,
		},
		DedupWindow:                 cfg.Dedup.Window,
		DedupMaxEntries:             cfg.Dedup.MaxEntries,
		DedupVolatileLabelRegex:     cfg.Dedup.VolatileLabelRegex,
		ScoringWeights:              scoring.DefaultWeights,
		MinOutcomesForPriorOverride: cfg.Scoring.MinOutcomesForPriorOverride,
		ConfidenceFloor:             cfg.Scoring.ConfidenceFloor,
		StabilizationWindow:         cfg.Execution.StabilizationWindow,
		ImprovementThreshold:        cfg.Execution.ImprovementThreshold,
		UnstableThreshold:           cfg.Execution.UnstableThreshold,
		ApprovalSLA:                 cfg.Approval.SLA,
		RateLimitApproachingRatio:   cfg.Approval.RateLimitApproachingRatio,
		MaxConcurrentActions:        int64(cfg.Actions.MaxConcurrent),
		DryRun:                      cfg.Actions.DryRun,
	}

	orch := orchestrator.New(orchCfg, pipelineLog, reg, store, observer, backend, reasoner, priors, logQuerier, eff, learn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := metrics.NewServer(metricsPort(cfg), opsLog)
	metricsSrv.StartAsync()

	apiSrv := httpapi.NewServer(cfg.HTTP.Address, orch, pipelineLog)
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil {
			opsLog.WithError(err).Error("operator API server stopped unexpectedly")
		}
	}()

	if cfg.Registry.WatchForChanges {
		watchStop := make(chan struct{})
		go func() {
			<-ctx.Done()
			close(watchStop)
		}()
		go func() {
			if err := reg.Watch(watchStop); err != nil {
				opsLog.WithError(err).Error("registry watch stopped unexpectedly")
			}
		}()
	}

	services := reg.Graph().Services()
	opsLog.WithField("services", services).Info("starting AIRRA control plane")

	runErr := orch.Run(ctx, services)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Stop(shutdownCtx)

	if runErr != nil && runErr != context.Canceled {
		return fmt.Errorf("pipeline run: %w", runErr)
	}
	return nil
}

// buildReasoner selects the reasoning adapter per cfg.Reasoning.Provider,
// wrapping it in a Redis-backed cache when cfg.Cache.Address is set so
// repeated calls for the same incident ID don't re-spend a model call.
func buildReasoner(cfg *config.Config, log *logrus.Logger) (reasoning.Provider, error) {
	var base reasoning.Provider
	switch cfg.Reasoning.Provider {
	case "anthropic":
		base = reasoning.NewAnthropicProvider(cfg.Reasoning.APIKey, cfg.Reasoning.Model, cfg.Reasoning.MaxTokens, log)
	default:
		base = reasoning.NewHTTPProvider(
			cfg.Reasoning.Endpoint,
			cfg.Reasoning.Model,
			cfg.Reasoning.Temperature,
			cfg.Reasoning.MaxTokens,
			cfg.Reasoning.Timeout,
			log,
		)
	}

	if cfg.Cache.Address == "" {
		return base, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Address, DB: cfg.Cache.DB})
	return reasoning.NewCachedProvider(base, rdb, cfg.Reasoning.CacheTTL), nil
}

// buildPriors loads whatever outcomes the learning store already has on
// disk into a fresh Aggregator. A missing or empty file just yields an
// Aggregator with no priors, falling back to scoring's static category
// table until enough outcomes accumulate.
func buildPriors(learnPath string, log logr.Logger) scoring.PriorSource {
	agg := learning.NewAggregator()
	outcomes, _, err := learning.ReadAll(learnPath)
	if err != nil {
		log.Error(err, "failed to read existing learning store; starting with empty priors")
		return agg
	}
	agg.Ingest(outcomes)
	return agg
}

func metricsPort(cfg *config.Config) string {
	if cfg.Server.MetricsPort != "" {
		return cfg.Server.MetricsPort
	}
	return "9100"
}
