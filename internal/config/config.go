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

// Package config loads and validates AIRRA's process configuration: a YAML
// file overlaid with AIRRA_-prefixed environment variables, per control
// plane spec §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ReasoningConfig configures the external reasoning-model adapter.
type ReasoningConfig struct {
	Provider       string        `yaml:"provider" validate:"required,oneof=anthropic localai"`
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model" validate:"required"`
	APIKey         string        `yaml:"api_key"`
	Temperature    float32       `yaml:"temperature" validate:"gte=0,lte=1"`
	MaxTokens      int           `yaml:"max_tokens" validate:"gt=0"`
	Timeout        time.Duration `yaml:"timeout"`
	RetryCount     int           `yaml:"retry_count"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	MaxContextSize int           `yaml:"max_context_size"`
}

// PerceptionConfig configures the metric-polling stage.
type PerceptionConfig struct {
	PollInterval         time.Duration `yaml:"poll_interval"`
	BaselineWindow       int           `yaml:"baseline_window" validate:"gt=1"`
	AnomalyThresholdSigma float64      `yaml:"anomaly_threshold_sigma" validate:"gt=0"`
	MetricsTimeout       time.Duration `yaml:"metrics_timeout"`
	WatchedMetrics       []string      `yaml:"watched_metrics"`
}

// DedupConfig configures signal deduplication.
type DedupConfig struct {
	Window            time.Duration `yaml:"window"`
	MaxEntries         int          `yaml:"max_entries" validate:"gt=0"`
	VolatileLabelRegex string       `yaml:"volatile_label_regex"`
}

// CorrelationConfig configures grouping of signals into incidents.
type CorrelationConfig struct {
	Window                 time.Duration `yaml:"window"`
	MinSignalCount         int           `yaml:"min_signal_count" validate:"gt=0"`
	MinSignalTypeDiversity int           `yaml:"min_signal_type_diversity" validate:"gt=0"`
	ConfidenceThreshold    float64       `yaml:"confidence_threshold"`
	WeightMetric           float64       `yaml:"weight_metric"`
	WeightLog              float64       `yaml:"weight_log"`
	WeightTrace            float64       `yaml:"weight_trace"`
	DiversityBonus         float64       `yaml:"diversity_bonus"`
}

// ScoringConfig configures confidence scoring.
type ScoringConfig struct {
	ConfidenceFloor          float64 `yaml:"confidence_floor"`
	MinOutcomesForPriorOverride int  `yaml:"min_outcomes_for_prior_override" validate:"gte=0"`
}

// BlastRadiusConfig configures blast-radius computation.
type BlastRadiusConfig struct{}

// ApprovalConfig configures the approval gate.
type ApprovalConfig struct {
	SLA                      time.Duration `yaml:"sla"`
	RateLimitApproachingRatio float64      `yaml:"rate_limit_approaching_ratio"`
}

// ExecutionConfig configures execution and post-action verification.
type ExecutionConfig struct {
	StabilizationWindow time.Duration `yaml:"stabilization_window"`
	ImprovementThreshold float64      `yaml:"improvement_threshold"`
	UnstableThreshold    float64      `yaml:"unstable_threshold"`
	EffectorTimeout      time.Duration `yaml:"effector_timeout"`
}

// RegistryConfig configures where the dependency graph and runbook
// registry are loaded from, and whether they are hot-reloaded on change.
type RegistryConfig struct {
	DependencyConfigPath string `yaml:"dependency_config_path"`
	RunbooksConfigPath   string `yaml:"runbooks_config_path"`
	WatchForChanges      bool   `yaml:"watch_for_changes"`
}

// CacheConfig configures the Redis-backed reasoning cache. Daily
// execution counts are not stored here; the orchestrator keeps them in
// memory.
type CacheConfig struct {
	Address string `yaml:"address"`
	DB      int    `yaml:"db"`
}

// HTTPConfig configures the inbound operator API.
type HTTPConfig struct {
	Address string `yaml:"address"`
}

// CollaboratorsConfig points at the external metrics backend, log backend
// and action effector the core talks to over the wire contracts in spec §6.
// AIRRA never implements their side; only the client contract.
type CollaboratorsConfig struct {
	MetricsBackendEndpoint string        `yaml:"metrics_backend_endpoint" validate:"required"`
	MetricsBackendTimeout  time.Duration `yaml:"metrics_backend_timeout"`
	MetricsSampleStep      time.Duration `yaml:"metrics_sample_step"`
	LogBackendEndpoint     string        `yaml:"log_backend_endpoint"`
	LogBackendTimeout      time.Duration `yaml:"log_backend_timeout"`
	EffectorEndpoint       string        `yaml:"effector_endpoint" validate:"required"`
	EffectorTimeout        time.Duration `yaml:"effector_timeout"`
}

// ServerConfig configures the process's webhook and metrics listeners
// (kept from the teacher repo's shape for compatibility with ops tooling).
type ServerConfig struct {
	WebhookPort string `yaml:"webhook_port"`
	MetricsPort string `yaml:"metrics_port"`
}

// KubernetesConfig names the cluster context AIRRA's effector collaborator
// targets. AIRRA's core never calls the Kubernetes API directly (the
// effector is an external collaborator, spec §1); this section is carried
// only so the effector client can be pointed at the right cluster.
type KubernetesConfig struct {
	Context   string `yaml:"context"`
	Namespace string `yaml:"namespace" validate:"required"`
}

// ActionsConfig configures global action execution behavior.
type ActionsConfig struct {
	DryRun         bool          `yaml:"dry_run"`
	MaxConcurrent  int           `yaml:"max_concurrent" validate:"gt=0"`
	CooldownPeriod time.Duration `yaml:"cooldown_period"`
}

// Filter is a named set of label/value matches.
type Filter struct {
	Name       string              `yaml:"name"`
	Conditions map[string][]string `yaml:"conditions"`
}

// LoggingConfig configures the process-wide logging level/format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WebhookConfig configures the inbound webhook listener (kept from the
// teacher shape; unused by AIRRA's own operator API but retained for the
// effector/notification external collaborators that may share a port).
type WebhookConfig struct {
	Port string `yaml:"port"`
	Path string `yaml:"path"`
}

// Config is AIRRA's full process configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Reasoning   ReasoningConfig   `yaml:"reasoning" validate:"required"`
	Kubernetes  KubernetesConfig  `yaml:"kubernetes"`
	Actions     ActionsConfig     `yaml:"actions"`
	Filters     []Filter          `yaml:"filters"`
	Logging     LoggingConfig     `yaml:"logging"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Perception  PerceptionConfig  `yaml:"perception"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	BlastRadius BlastRadiusConfig `yaml:"blast_radius"`
	Approval    ApprovalConfig    `yaml:"approval"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Registry    RegistryConfig    `yaml:"registry"`
	Cache       CacheConfig       `yaml:"cache"`
	HTTP        HTTPConfig        `yaml:"http"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
}

// Load reads the YAML config file at path, overlays AIRRA_-prefixed
// environment variables, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateDurations(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateDurations is a hook for duration checks beyond what yaml.v3
// does. It currently checks nothing and always returns nil: yaml.v3
// already rejects a malformed time.Duration value during Unmarshal.
func validateDurations(cfg *Config) error {
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Kubernetes: KubernetesConfig{Namespace: "default"},
		Actions: ActionsConfig{
			MaxConcurrent: 5,
		},
		Perception: PerceptionConfig{
			PollInterval:          60 * time.Second,
			BaselineWindow:        20,
			AnomalyThresholdSigma: 3.0,
			MetricsTimeout:        10 * time.Second,
			WatchedMetrics:        []string{"cpu_usage", "memory_bytes", "error_rate", "latency_p99"},
		},
		Dedup: DedupConfig{
			Window:     300 * time.Second,
			MaxEntries: 100000,
		},
		Correlation: CorrelationConfig{
			Window:                 300 * time.Second,
			MinSignalCount:         2,
			MinSignalTypeDiversity: 2,
			ConfidenceThreshold:    0.6,
			WeightMetric:           0.4,
			WeightLog:              0.3,
			WeightTrace:            0.3,
			DiversityBonus:         0.1,
		},
		Reasoning: ReasoningConfig{
			Provider:   "localai",
			Timeout:    60 * time.Second,
			CacheTTL:   24 * time.Hour,
			MaxTokens:  500,
		},
		Scoring: ScoringConfig{
			ConfidenceFloor:             0.60,
			MinOutcomesForPriorOverride: 50,
		},
		Approval: ApprovalConfig{
			SLA:                       120 * time.Minute,
			RateLimitApproachingRatio: 0.8,
		},
		Execution: ExecutionConfig{
			StabilizationWindow: 120 * time.Second,
			ImprovementThreshold: 0.20,
			UnstableThreshold:    0.30,
			EffectorTimeout:      30 * time.Second,
		},
		Registry: RegistryConfig{
			DependencyConfigPath: "service_dependencies.yaml",
			RunbooksConfigPath:   "runbooks.yaml",
			WatchForChanges:      true,
		},
		Cache: CacheConfig{
			Address: "localhost:6379",
		},
		HTTP: HTTPConfig{
			Address: ":8090",
		},
		Collaborators: CollaboratorsConfig{
			MetricsBackendEndpoint: "http://localhost:9090",
			MetricsBackendTimeout:  10 * time.Second,
			MetricsSampleStep:      15 * time.Second,
			LogBackendTimeout:      10 * time.Second,
			EffectorEndpoint:       "http://localhost:8091",
			EffectorTimeout:        30 * time.Second,
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Reasoning.Provider == "" {
		cfg.Reasoning.Provider = "localai"
	}
	if cfg.Reasoning.Provider == "localai" && cfg.Reasoning.Endpoint == "" {
		cfg.Reasoning.Endpoint = "http://localhost:8080"
	}
	if cfg.Kubernetes.Namespace == "" {
		cfg.Kubernetes.Namespace = "default"
	}
	if cfg.Actions.MaxConcurrent == 0 {
		cfg.Actions.MaxConcurrent = 5
	}
	if cfg.Collaborators.MetricsBackendEndpoint == "" {
		cfg.Collaborators.MetricsBackendEndpoint = "http://localhost:9090"
	}
	if cfg.Collaborators.EffectorEndpoint == "" {
		cfg.Collaborators.EffectorEndpoint = "http://localhost:8091"
	}
	if cfg.Collaborators.MetricsSampleStep == 0 {
		cfg.Collaborators.MetricsSampleStep = 15 * time.Second
	}
	if len(cfg.Perception.WatchedMetrics) == 0 {
		cfg.Perception.WatchedMetrics = []string{"cpu_usage", "memory_bytes", "error_rate", "latency_p99"}
	}
}

// validate applies cross-field rules the struct tags can't express, mirror
// of the teacher's hand-written validate() plus the validator/v10 pass for
// simple field-level rules.
func validate(cfg *Config) error {
	switch cfg.Reasoning.Provider {
	case "localai", "anthropic":
	case "":
	default:
		return fmt.Errorf("unsupported SLM provider: %s", cfg.Reasoning.Provider)
	}

	if cfg.Reasoning.Provider == "localai" && cfg.Reasoning.Model == "" {
		return fmt.Errorf("SLM model is required for LocalAI provider")
	}
	if cfg.Reasoning.Temperature < 0 || cfg.Reasoning.Temperature > 1 {
		return fmt.Errorf("SLM temperature must be between 0.0 and 1.0")
	}
	if cfg.Reasoning.MaxTokens <= 0 {
		return fmt.Errorf("SLM max tokens must be greater than 0")
	}
	if cfg.Kubernetes.Namespace == "" {
		return fmt.Errorf("Kubernetes namespace is required")
	}
	if cfg.Actions.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent actions must be greater than 0")
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// loadFromEnv overlays AIRRA_-prefixed (and, for backward compatibility
// with the teacher's SLM-era names, unprefixed) environment variables onto
// cfg. Unset variables leave the existing value untouched.
func loadFromEnv(cfg *Config) error {
	setString(&cfg.Reasoning.Endpoint, "SLM_ENDPOINT", "AIRRA_REASONING_ENDPOINT")
	setString(&cfg.Reasoning.Model, "SLM_MODEL", "AIRRA_REASONING_MODEL")
	setString(&cfg.Reasoning.Provider, "SLM_PROVIDER", "AIRRA_REASONING_PROVIDER")
	setString(&cfg.Server.WebhookPort, "WEBHOOK_PORT", "AIRRA_WEBHOOK_PORT")
	setString(&cfg.Server.MetricsPort, "METRICS_PORT", "AIRRA_METRICS_PORT")
	setString(&cfg.Logging.Level, "LOG_LEVEL", "AIRRA_LOG_LEVEL")

	if v, ok := lookupAny("DRY_RUN", "AIRRA_DRY_RUN_MODE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DRY_RUN value %q: %w", v, err)
		}
		cfg.Actions.DryRun = b
	}

	if v, ok := lookupAny("AIRRA_ANOMALY_THRESHOLD_SIGMA"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AIRRA_ANOMALY_THRESHOLD_SIGMA value %q: %w", v, err)
		}
		cfg.Perception.AnomalyThresholdSigma = f
	}
	if v, ok := lookupAny("AIRRA_POLL_INTERVAL_SECONDS"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return err
		}
		cfg.Perception.PollInterval = d
	}
	if v, ok := lookupAny("AIRRA_CORRELATION_WINDOW_SECONDS"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return err
		}
		cfg.Correlation.Window = d
	}
	if v, ok := lookupAny("AIRRA_DEDUP_WINDOW_SECONDS"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return err
		}
		cfg.Dedup.Window = d
	}
	if v, ok := lookupAny("AIRRA_STABILIZATION_WINDOW_SECONDS"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return err
		}
		cfg.Execution.StabilizationWindow = d
	}
	if v, ok := lookupAny("AIRRA_IMPROVEMENT_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AIRRA_IMPROVEMENT_THRESHOLD value %q: %w", v, err)
		}
		cfg.Execution.ImprovementThreshold = f
	}
	if v, ok := lookupAny("AIRRA_APPROVAL_SLA_MINUTES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AIRRA_APPROVAL_SLA_MINUTES value %q: %w", v, err)
		}
		cfg.Approval.SLA = time.Duration(n) * time.Minute
	}
	if v, ok := lookupAny("AIRRA_CONFIDENCE_FLOOR"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AIRRA_CONFIDENCE_FLOOR value %q: %w", v, err)
		}
		cfg.Scoring.ConfidenceFloor = f
	}
	if v, ok := lookupAny("AIRRA_REASONING_TIMEOUT_SECONDS"); ok {
		d, err := parseSeconds(v)
		if err != nil {
			return err
		}
		cfg.Reasoning.Timeout = d
	}
	setString(&cfg.Registry.DependencyConfigPath, "AIRRA_DEPENDENCY_CONFIG")
	setString(&cfg.Registry.RunbooksConfigPath, "AIRRA_RUNBOOKS_CONFIG")
	setString(&cfg.Collaborators.MetricsBackendEndpoint, "AIRRA_METRICS_BACKEND_ENDPOINT")
	setString(&cfg.Collaborators.LogBackendEndpoint, "AIRRA_LOG_BACKEND_ENDPOINT")
	setString(&cfg.Collaborators.EffectorEndpoint, "AIRRA_EFFECTOR_ENDPOINT")

	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration seconds value %q: %w", v, err)
	}
	return time.Duration(n) * time.Second, nil
}

func lookupAny(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := os.LookupEnv(n); ok {
			return v, true
		}
	}
	return "", false
}

func setString(dst *string, names ...string) {
	if v, ok := lookupAny(names...); ok {
		*dst = v
	}
}
