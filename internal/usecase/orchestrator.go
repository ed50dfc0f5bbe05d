package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/metrics"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/store"
)

// StageReport summarizes one executed stage.
type StageReport struct {
	Stage    string
	Key      string
	Items    int
	Failures int
	Degraded bool
	Duration time.Duration
}

// Report summarizes a full run.
type Report struct {
	RunID          string
	Stages         []StageReport
	Recommendation domain.Recommendation
}

// Degraded reports whether any stage ran in degraded mode.
func (r Report) Degraded() bool {
	for _, s := range r.Stages {
		if s.Degraded {
			return true
		}
	}
	return false
}

// Orchestrator runs the stages in fixed order with the store as the hand-off
// between them.
type Orchestrator struct {
	store   ports.PipelineStore
	stages  []Stage
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewOrchestrator validates settings and builds the seven stages.
func NewOrchestrator(settings Settings, deps Deps) (*Orchestrator, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if deps.Store == nil {
		return nil, errors.New("pipeline store is required")
	}
	if deps.Reasoning == nil {
		return nil, errors.New("reasoning service is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if settings.Symbol == "" {
		settings.Symbol = "BTC"
	}

	e := &env{settings: settings, deps: deps, now: deps.Clock}
	return &Orchestrator{
		store: deps.Store,
		stages: []Stage{
			&crawlStage{env: e},
			&filterStage{env: e},
			&snapshotStage{env: e},
			&summarizeStage{env: e},
			&analyzeStage{env: e},
			&opineStage{env: e},
			&finalizeStage{env: e},
		},
		metrics: deps.Metrics,
		log:     deps.Logger.With("component", "orchestrator"),
		now:     deps.Clock,
		newID:   uuid.NewString,
	}, nil
}

// Stages lists stage names in execution order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name()
	}
	return names
}

// Run executes every stage for day. A stage error aborts the remaining stages;
// the report covers the stages that completed.
func (o *Orchestrator) Run(ctx context.Context, day time.Time) (Report, error) {
	report := Report{RunID: o.newID()}
	log := o.log.With("run_id", report.RunID)
	log.Info("pipeline started", "day", day.Format("2006-01-02"))
	started := o.now()

	for _, stage := range o.stages {
		sr, err := o.runStage(ctx, stage, report.RunID, day)
		if err != nil {
			log.Error("pipeline aborted", "stage", stage.Name(), "error", err)
			return report, err
		}
		report.Stages = append(report.Stages, sr)
	}

	if art, err := o.store.Get(ctx, domain.KeyRecommendation); err == nil {
		if err := art.Decode(domain.ArtifactRecommendation, &report.Recommendation); err != nil {
			log.Warn("decode final recommendation", "error", err)
		}
	}

	log.Info("pipeline finished",
		"duration", o.now().Sub(started),
		"degraded", report.Degraded(),
		"recommendation", !report.Recommendation.Empty(),
	)
	return report, nil
}

// RunStage executes a single stage against the artifacts already in the store.
func (o *Orchestrator) RunStage(ctx context.Context, name string, day time.Time) (StageReport, error) {
	for _, stage := range o.stages {
		if stage.Name() == name {
			return o.runStage(ctx, stage, o.newID(), day)
		}
	}
	return StageReport{}, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, runID string, day time.Time) (report StageReport, err error) {
	name := stage.Name()
	log := o.log.With("stage", name, "run_id", runID)
	started := o.now()
	defer func() {
		o.metrics.ObserveStage(name, o.now().Sub(started), err)
	}()

	inputs := make(map[string]domain.Artifact, len(stage.Inputs()))
	for _, key := range stage.Inputs() {
		art, getErr := o.store.Get(ctx, key)
		if errors.Is(getErr, store.ErrNotFound) {
			return StageReport{}, fmt.Errorf("stage %s: %w: %w", name, ErrMissingArtifact, getErr)
		}
		if getErr != nil {
			return StageReport{}, fmt.Errorf("stage %s: load %s: %w", name, key, getErr)
		}
		inputs[key] = art
	}

	log.Debug("stage started", "inputs", stage.Inputs())
	out, err := stage.Run(ctx, StageInput{RunID: runID, Day: day, Artifacts: inputs, Log: log})
	if err != nil {
		return StageReport{}, fmt.Errorf("stage %s: %w", name, err)
	}

	if err := o.store.Put(ctx, stage.Output(), out.Artifact); err != nil {
		return StageReport{}, fmt.Errorf("stage %s: store %s: %w", name, stage.Output(), err)
	}

	report = StageReport{
		Stage:    name,
		Key:      stage.Output(),
		Items:    out.Items,
		Failures: out.Artifact.Failures,
		Degraded: out.Artifact.Degraded,
		Duration: o.now().Sub(started),
	}
	o.metrics.StageItems(name, out.Items)
	log.Info("stage completed",
		"items", report.Items,
		"degraded", report.Degraded,
		"failures", report.Failures,
		"duration", report.Duration,
	)
	return report, nil
}
