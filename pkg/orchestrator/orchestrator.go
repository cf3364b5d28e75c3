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

// Package orchestrator sequences the pipeline stages -- perception, dedup,
// correlation, reasoning, scoring, blast radius, action selection,
// approval, execution, learning -- into the closed-loop cycle spec §5
// describes. Run drives the recurring work from one ticker: each tick
// polls every service concurrently and then sweeps pending approvals past
// their SLA. Learning records are written as they occur, and a semaphore
// bounds how many actions execute at once.
package orchestrator

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kkrriders/airra/pkg/actionselect"
	"github.com/kkrriders/airra/pkg/approval"
	"github.com/kkrriders/airra/pkg/blastradius"
	"github.com/kkrriders/airra/pkg/correlation"
	"github.com/kkrriders/airra/pkg/dedup"
	"github.com/kkrriders/airra/pkg/execution"
	"github.com/kkrriders/airra/pkg/learning"
	"github.com/kkrriders/airra/pkg/logbackend"
	"github.com/kkrriders/airra/pkg/metrics"
	"github.com/kkrriders/airra/pkg/perception"
	"github.com/kkrriders/airra/pkg/reasoning"
	"github.com/kkrriders/airra/pkg/registry"
	"github.com/kkrriders/airra/pkg/scoring"
	"github.com/kkrriders/airra/pkg/shared/errors"
	"github.com/kkrriders/airra/pkg/store/memory"
	"github.com/kkrriders/airra/pkg/types"
)

// Config bundles the tunables every pipeline stage needs, copied out of
// internal/config.Config so this package never imports the config layer
// directly (keeps it testable against hand-built values).
type Config struct {
	BaselineWindow              int
	AnomalyThresholdSigma       float64
	WatchedMetrics              []string
	PollInterval                time.Duration
	CorrelationWindow           time.Duration
	MinSignalCount              int
	MinSignalTypeDiversity      int
	CorrelationConfidence       float64
	CorrelationWeights          correlation.Weights
	DedupWindow                 time.Duration
	DedupMaxEntries             int
	DedupVolatileLabelRegex     string
	ScoringWeights              scoring.Weights
	MinOutcomesForPriorOverride int
	ConfidenceFloor             float64
	StabilizationWindow         time.Duration
	ImprovementThreshold        float64
	UnstableThreshold           float64
	ApprovalSLA                 time.Duration
	RateLimitApproachingRatio   float64
	MaxConcurrentActions        int64
	DryRun                      bool
}

// Orchestrator wires every pipeline stage together and owns the
// in-process incident store backing them.
type Orchestrator struct {
	cfg Config
	log logr.Logger

	registry   *registry.Registry
	store      *memory.Store
	observer   *perception.Observer
	dedup      *dedup.Deduplicator
	correlator *correlation.Correlator
	reasoner   reasoning.Provider
	priors     scoring.PriorSource
	logQuerier logbackend.Querier
	effector   execution.Effector
	snapshotter execution.MetricsSnapshotter
	learn      *learning.Store

	sem *semaphore.Weighted

	execCountToday map[types.ActionType]int
}

// New constructs an Orchestrator. Any collaborator may be nil except
// registry, store, observer, reasoner and effector; priors and logQuerier
// fall back to conservative no-op behavior.
func New(
	cfg Config,
	log logr.Logger,
	reg *registry.Registry,
	store *memory.Store,
	observer *perception.Observer,
	backend perception.MetricsBackend,
	reasoner reasoning.Provider,
	priors scoring.PriorSource,
	logQuerier logbackend.Querier,
	effector execution.Effector,
	learn *learning.Store,
) *Orchestrator {
	dd, _ := dedup.New(cfg.DedupWindow, cfg.DedupMaxEntries, cfg.DedupVolatileLabelRegex)
	if logQuerier == nil {
		logQuerier = logbackend.NoopClient{}
	}
	concurrency := cfg.MaxConcurrentActions
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Orchestrator{
		cfg:            cfg,
		log:            log,
		registry:       reg,
		store:          store,
		observer:       observer,
		dedup:          dd,
		correlator:     correlation.New(cfg.CorrelationWindow, cfg.MinSignalCount, cfg.MinSignalTypeDiversity, cfg.CorrelationConfidence, cfg.CorrelationWeights),
		reasoner:       reasoner,
		priors:         priors,
		logQuerier:     logQuerier,
		effector:       effector,
		snapshotter:    newBackendSnapshotter(backend, cfg.StabilizationWindow),
		learn:          learn,
		sem:            semaphore.NewWeighted(concurrency),
		execCountToday: make(map[types.ActionType]int),
	}
}

// PollService runs one perception-through-action-selection cycle for a
// single service across every watched metric, admitting signals through
// dedup and correlation and, once a candidate incident is ready, driving
// it through reasoning, scoring, blast radius and action selection.
func (o *Orchestrator) PollService(ctx context.Context, service string) error {
	timer := metrics.NewTimer()
	defer timer.RecordStage("perception")

	for _, metric := range o.cfg.WatchedMetrics {
		signals, err := o.observer.Observe(ctx, service, metric, o.cfg.PollInterval*time.Duration(o.cfg.BaselineWindow+1))
		if err != nil {
			metrics.RecordStageTimeout("perception")
			continue
		}
		for _, sig := range signals {
			metrics.RecordSignal()
			o.admitSignal(ctx, sig)
		}
	}
	return nil
}

func (o *Orchestrator) admitSignal(ctx context.Context, sig types.Signal) {
	now := sig.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	_, fresh := o.dedup.Admit(sig, now)
	if !fresh {
		metrics.RecordDuplicate()
		metrics.SetDedupCompressionRatio(o.dedup.CompressionRatio())
		return
	}
	metrics.SetDedupCompressionRatio(o.dedup.CompressionRatio())

	cand := o.correlator.Ingest(sig, now)
	if !o.correlator.Ready(cand) {
		return
	}
	o.correlator.Reset(sig.Service)
	o.promoteCandidate(ctx, cand)
}

// promoteCandidate turns a ready correlation candidate into an Incident,
// merging into an existing non-terminal incident sharing its fingerprint
// (spec §4.3) instead of always creating a new one.
func (o *Orchestrator) promoteCandidate(ctx context.Context, cand *correlation.Candidate) {
	fingerprint := correlation.Fingerprint(cand.Service, cand.Signals)
	now := time.Now()

	if existing, ok := o.store.FindActiveByFingerprint(fingerprint); ok {
		existing.DuplicateCount++
		existing.Severity = existing.Severity.Max(correlation.Severity(cand.Signals))
		existing.AffectedComponents = unionStrings(existing.AffectedComponents, correlation.AffectedComponents(cand.Signals))
		for k, v := range correlation.MetricsSnapshot(cand.Signals) {
			existing.MetricsSnapshot[k] = v
		}
		o.store.Put(existing)
		return
	}

	incident := &types.Incident{
		ID:                 uuid.NewString(),
		Service:            cand.Service,
		Severity:           correlation.Severity(cand.Signals),
		Status:             types.StatusDetected,
		DetectedAt:         now,
		DetectionSource:    cand.Signals[0].Source,
		AffectedComponents: correlation.AffectedComponents(cand.Signals),
		MetricsSnapshot:    correlation.MetricsSnapshot(cand.Signals),
		Fingerprint:        fingerprint,
	}
	incident.Timeline = append(incident.Timeline, types.TimelineEvent{Timestamp: now, Kind: "detected", Message: "incident candidate promoted from correlation"})
	o.store.Put(incident)
	metrics.RecordIncidentOpened()
	metrics.SetIncidentsByStatus(string(incident.Status), 1)

	if err := incident.Transition(types.StatusAnalyzing, now, ""); err != nil {
		o.log.Error(err, "illegal transition to ANALYZING", "incident_id", incident.ID)
		return
	}
	o.store.Put(incident)

	o.analyzeIncident(ctx, incident, cand.Signals)
}

// liveIncidentServicesExcept returns the set of services currently
// carrying a non-terminal incident other than exceptID, for confidence
// scoring's dependency-boost term (spec §4.5).
func (o *Orchestrator) liveIncidentServicesExcept(exceptID string) map[string]bool {
	live := map[string]bool{}
	for _, inc := range o.store.ListNonTerminal() {
		if inc.ID == exceptID {
			continue
		}
		live[inc.Service] = true
	}
	return live
}

// analyzeIncident runs reasoning, scoring, blast radius and action
// selection for a freshly analyzed incident.
func (o *Orchestrator) analyzeIncident(ctx context.Context, incident *types.Incident, signals []types.Signal) {
	catalog := append([]string{}, incident.AffectedComponents...)

	ic := reasoning.IncidentContext{
		IncidentID:         incident.ID,
		Service:            incident.Service,
		Severity:           string(incident.Severity),
		AffectedComponents: incident.AffectedComponents,
		MetricsSnapshot:    incident.MetricsSnapshot,
		Signals:            signals,
	}

	reasoningTimer := metrics.NewTimer()
	raw, err := o.reasoner.Generate(ctx, ic, catalog)
	reasoningTimer.RecordReasoning(reasoningProviderName(o.reasoner))
	degraded := false
	if err != nil || len(raw) == 0 {
		metrics.RecordReasoningError(reasoningProviderName(o.reasoner), string(errors.KindOf(err)))
		metrics.RecordReasoningDegraded()
		raw = reasoning.DegradedHypotheses(ic)
		degraded = true
	}

	incident.ReasoningDegraded = degraded

	var graph *registry.Graph
	var runbooks *registry.RunbookSet
	if o.registry != nil {
		graph = o.registry.Graph()
		runbooks = o.registry.Runbooks()
	}

	liveIncidentServices := o.liveIncidentServicesExcept(incident.ID)

	hyps := make([]types.Hypothesis, 0, len(raw))
	for _, r := range raw {
		h := scoring.Score(r, signals, incident.Service, graph, liveIncidentServices, o.cfg.MinOutcomesForPriorOverride, o.priors, o.cfg.ScoringWeights)
		h.IncidentID = incident.ID
		hyps = append(hyps, h)
	}
	hyps = scoring.Rank(hyps)
	incident.Hypotheses = hyps

	assessment := blastradius.Assess(blastradius.Inputs{Service: incident.Service, Graph: graph})
	if incident.Context == nil {
		incident.Context = make(map[string]interface{})
	}
	incident.Context["blast_level"] = string(assessment.Level)

	if len(hyps) > 0 {
		top := hyps[0]
		if actionselect.ShouldAct(top.Confidence, o.cfg.ConfidenceFloor, assessment.Level) {
			o.selectAndProposeAction(ctx, incident, top, assessment, runbooks, graph)
		}
	}

	o.store.Put(incident)
}

// selectAndProposeAction looks up the runbook governing the top
// hypothesis's category, filters its allowed actions down to a single
// candidate, and attaches it to the incident as a PROPOSED (or, if the
// approval gate demands it, PENDING_APPROVAL) Action.
func (o *Orchestrator) selectAndProposeAction(ctx context.Context, incident *types.Incident, top types.Hypothesis, assessment types.BlastRadiusAssessment, runbooks *registry.RunbookSet, graph *registry.Graph) {
	if runbooks == nil {
		return
	}
	rb, ok := runbooks.Lookup(top.Category, incident.Service)
	if !ok {
		return
	}

	facts := actionselect.Facts{
		CapacityAvailable: true, MinReplicasRespected: true, CacheBackendReachable: true,
		FlagExists: true, PodExists: true, NotLastHealthyReplica: true,
		PreviousRevisionExists: true, NodeExists: true, ClusterHasSpareCapacity: true,
	}
	criticalityWeight := blastradius.CriticalityWeight(graph, incident.Service)
	candidate, ok := actionselect.Select(context.Background(), rb.AllowedActions, facts, criticalityWeight, assessment.UrgencyMultiplier, o.execCountToday)
	if !ok {
		return
	}

	req := approval.Request{
		RunbookRequiresApproval: candidate.Allowed.ApprovalRequired,
		BlastLevel:              assessment.Level,
		Reversible:              candidate.RiskProfile.Reversible,
	}
	required, _ := approval.Decide(req, approval.DefaultRules)

	now := time.Now()
	action := types.Action{
		ID:               uuid.NewString(),
		IncidentID:       incident.ID,
		HypothesisRank:   top.Rank,
		ActionType:       candidate.Allowed.ActionType,
		Parameters:       candidate.Allowed.DefaultParameters,
		RiskProfile:      candidate.RiskProfile,
		Status:           types.ActionProposed,
		ApprovalRequired: required,
		RequestedAt:      now,
		ExecutionMode:    types.ExecutionLive,
		ExpectedCost:     candidate.ExpectedCost,
		WorstCaseCost:    candidate.WorstCaseCost,
	}
	if o.cfg.DryRun {
		action.ExecutionMode = types.ExecutionDryRun
	}

	metrics.RecordActionProposed(string(action.ActionType))

	incident.Actions = append(incident.Actions, action)
	actionPtr := &incident.Actions[len(incident.Actions)-1]

	if required {
		if err := actionPtr.Transition(types.ActionPendingApproval, now); err == nil {
			incident.Status = types.StatusPendingApproval
		}
		return
	}

	// No approval gate applies: the action auto-approves and executes
	// immediately, closing the loop without waiting on an operator.
	if err := actionPtr.Transition(types.ActionApproved, now); err != nil {
		o.log.Error(err, "auto-approve transition failed", "incident_id", incident.ID)
		return
	}
	incident.Status = types.StatusApproved
	o.store.Put(incident)
	if err := o.executeApprovedAction(ctx, incident, actionPtr); err != nil {
		o.log.Error(err, "auto-execution failed", "incident_id", incident.ID, "action_id", actionPtr.ID)
	}
}

// ApproveAction approves a PENDING_APPROVAL action and executes it
// synchronously through the effector, recording the verification outcome
// and feeding it back into the learning store.
func (o *Orchestrator) ApproveAction(ctx context.Context, incidentID, actionID, approvedBy string, mode types.ExecutionMode) error {
	incident, err := o.store.Get(incidentID)
	if err != nil {
		return err
	}
	action := findAction(incident, actionID)
	if action == nil {
		return errors.NotFoundError("action", actionID)
	}

	now := time.Now()
	if err := approval.Approve(action, approvedBy, now); err != nil {
		return err
	}
	action.ExecutionMode = mode
	if err := incident.Transition(types.StatusApproved, now, ""); err != nil {
		return err
	}
	o.store.Put(incident)

	return o.executeApprovedAction(ctx, incident, action)
}

// RejectAction rejects a PENDING_APPROVAL action.
func (o *Orchestrator) RejectAction(incidentID, actionID, reason, rejectedBy string) error {
	incident, err := o.store.Get(incidentID)
	if err != nil {
		return err
	}
	action := findAction(incident, actionID)
	if action == nil {
		return errors.NotFoundError("action", actionID)
	}
	if err := approval.Reject(action, reason, time.Now()); err != nil {
		return err
	}
	o.store.Put(incident)
	return nil
}

// Escalate transitions an incident to ESCALATED, carrying reason forward
// for the operator's triage queue.
func (o *Orchestrator) Escalate(incidentID, reason string) error {
	incident, err := o.store.Get(incidentID)
	if err != nil {
		return err
	}
	if err := incident.Transition(types.StatusEscalated, time.Now(), reason); err != nil {
		return err
	}
	o.store.Put(incident)
	metrics.SetIncidentsByStatus(string(types.StatusEscalated), 1)
	return nil
}

// Feedback appends an operator feedback record for downstream learning.
// It does not mutate the incident, and the record is only written to the
// learning log: the priors Aggregator ingests outcome records, not feedback.
func (o *Orchestrator) Feedback(fb types.OperatorFeedback) error {
	if o.learn == nil {
		return nil
	}
	return o.learn.AppendFeedback(fb)
}

// GetIncident returns the full stored incident.
func (o *Orchestrator) GetIncident(id string) (*types.Incident, error) {
	return o.store.Get(id)
}

func (o *Orchestrator) executeApprovedAction(ctx context.Context, incident *types.Incident, action *types.Action) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.sem.Release(1)

	metrics.IncrementConcurrentActions()
	defer metrics.DecrementConcurrentActions()

	now := time.Now()
	if err := action.Transition(types.ActionExecuting, now); err != nil {
		return err
	}
	if err := incident.Transition(types.StatusExecuting, now, ""); err != nil {
		return err
	}
	o.store.Put(incident)

	execTimer := metrics.NewTimer()
	outcome, pre, post, attemptID, err := execution.Execute(ctx, o.effector, o.snapshotter, *action, incident.AffectedComponents, execution.Thresholds{
		StabilizationWindow:  o.cfg.StabilizationWindow,
		ImprovementThreshold: o.cfg.ImprovementThreshold,
		UnstableThreshold:    o.cfg.UnstableThreshold,
	}, execution.RealClock)

	action.AttemptID = attemptID
	if err != nil {
		action.Status = types.ActionFailed
		action.FailureReason = err.Error()
		metrics.RecordActionError(string(action.ActionType), string(errors.KindOf(err)))
		incident.Transition(types.StatusFailed, time.Now(), "")
		o.store.Put(incident)
		return err
	}

	action.Status = types.ActionSucceeded
	action.PreMetrics = pre
	action.PostMetrics = post
	action.Verification = outcome
	o.execCountToday[action.ActionType]++
	execTimer.RecordAction(string(action.ActionType))
	metrics.RecordActionOutcome(string(action.ActionType), string(outcome))

	incident.Transition(types.StatusResolved, time.Now(), "")
	o.store.Put(incident)

	if o.learn != nil {
		rec := types.ConfidenceOutcomeRecord{
			IncidentID:          incident.ID,
			Service:             incident.Service,
			Category:            topCategory(incident),
			PredictedConfidence: topConfidence(incident),
			ActionType:          action.ActionType,
			Executed:            true,
			Outcome:             outcome,
			BlastLevel:          blastLevelFromContext(incident),
			RiskLevel:           riskLevelForScore(action.RiskProfile.RiskScore),
			BeforeMetrics:       pre,
			AfterMetrics:        post,
			RecordedAt:          time.Now(),
		}
		o.learn.AppendOutcome(rec)
		if agg, ok := o.priors.(*learning.Aggregator); ok {
			agg.Ingest([]types.ConfidenceOutcomeRecord{rec})
		}
	}
	return nil
}

// SweepApprovalSLA escalates every PENDING_APPROVAL incident past its SLA
// deadline (spec §4.7).
func (o *Orchestrator) SweepApprovalSLA(now time.Time) []error {
	incidents := o.store.ListByStatus(types.StatusPendingApproval)
	_, errs := approval.SweepSLA(incidents, o.cfg.ApprovalSLA, now)
	for _, inc := range incidents {
		o.store.Put(inc)
		if inc.Status == types.StatusEscalated {
			metrics.RecordApprovalSLABreach()
		}
	}
	return errs
}

// Run starts the perception-poll loop (one tick per PollInterval, fanned
// out with one goroutine per service, followed by an approval-SLA sweep)
// and blocks until ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context, services []string) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			group, groupCtx := errgroup.WithContext(ctx)
			for _, svc := range services {
				svc := svc
				group.Go(func() error {
					return o.PollService(groupCtx, svc)
				})
			}
			if err := group.Wait(); err != nil {
				o.log.Error(err, "poll cycle failed")
			}
			for _, err := range o.SweepApprovalSLA(time.Now()) {
				o.log.Error(err, "approval SLA sweep")
			}
		}
	}
}

func findAction(incident *types.Incident, actionID string) *types.Action {
	for i := range incident.Actions {
		if incident.Actions[i].ID == actionID {
			return &incident.Actions[i]
		}
	}
	return nil
}

func topCategory(incident *types.Incident) types.Category {
	if len(incident.Hypotheses) == 0 {
		return types.CategoryOther
	}
	return incident.Hypotheses[0].Category
}

func blastLevelFromContext(incident *types.Incident) types.BlastLevel {
	if v, ok := incident.Context["blast_level"].(string); ok {
		return types.BlastLevel(v)
	}
	return types.BlastMinimal
}

func topConfidence(incident *types.Incident) float64 {
	if len(incident.Hypotheses) == 0 {
		return 0
	}
	return incident.Hypotheses[0].Confidence
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

// backendSnapshotter adapts a perception.MetricsBackend into
// execution.MetricsSnapshotter: it takes the most recent sample of each
// named metric over a short trailing window as the current value.
type backendSnapshotter struct {
	backend perception.MetricsBackend
	window  time.Duration
}

func newBackendSnapshotter(backend perception.MetricsBackend, window time.Duration) *backendSnapshotter {
	if window <= 0 {
		window = time.Minute
	}
	return &backendSnapshotter{backend: backend, window: window}
}

func (s *backendSnapshotter) Snapshot(ctx context.Context, service string, metricNames []string) (map[string]types.MetricSummary, error) {
	out := make(map[string]types.MetricSummary, len(metricNames))
	if s.backend == nil {
		return out, nil
	}
	for _, name := range metricNames {
		points, err := s.backend.QueryRange(ctx, service, name, s.window)
		if err != nil || len(points) == 0 {
			continue
		}
		out[name] = types.MetricSummary{Value: points[len(points)-1].Value}
	}
	return out, nil
}

// riskLevelForScore maps a RiskProfile's continuous risk score onto the
// qualitative enum runbooks use, for the learning store's audit record.
func riskLevelForScore(score float64) types.RiskLevel {
	switch {
	case score < 0.2:
		return types.RiskLow
	case score < 0.4:
		return types.RiskMedium
	case score < 0.6:
		return types.RiskHigh
	default:
		return types.RiskCritical
	}
}

func reasoningProviderName(p reasoning.Provider) string {
	switch p.(type) {
	case *reasoning.AnthropicProvider:
		return "anthropic"
	case *reasoning.HTTPProvider:
		return "http"
	default:
		return "cached"
	}
}
