package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/fanout"
	"MarketAdvisor/internal/metrics"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/retry"
)

// Stage names in execution order.
const (
	StageCrawl     = "crawl"
	StageFilter    = "filter"
	StageSnapshot  = "snapshot"
	StageSummarize = "summarize"
	StageAnalyze   = "analyze"
	StageOpine     = "opine"
	StageFinalize  = "finalize"
)

var (
	// ErrMissingArtifact is returned when a stage's prerequisite was never written.
	ErrMissingArtifact = errors.New("missing prerequisite artifact")
	// ErrUnknownStage is returned by RunStage for names outside the pipeline.
	ErrUnknownStage = errors.New("unknown stage")
)

// Stage is one step of the pipeline. It reads only the keys it declares and
// returns the artifact the orchestrator stores under Output.
type Stage interface {
	Name() string
	Inputs() []string
	Output() string
	Run(ctx context.Context, in StageInput) (StageOutput, error)
}

// StageInput carries the prerequisite artifacts and run identity.
type StageInput struct {
	RunID     string
	Day       time.Time
	Artifacts map[string]domain.Artifact
	Log       *slog.Logger
}

func (in StageInput) decode(key string, kind domain.ArtifactKind, v any) error {
	art, ok := in.Artifacts[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, key)
	}
	return art.Decode(kind, v)
}

// StageOutput is the artifact a stage produced and how many items it holds.
type StageOutput struct {
	Artifact domain.Artifact
	Items    int
}

// Settings is the explicit configuration handed to the orchestrator.
type Settings struct {
	WorkerCount  int
	EnsembleSize int
	Retry        retry.Policy
	Endpoints    []string
	Workspace    string
	LookbackDays int
	Symbol       string
}

// Validate reports settings the pipeline cannot run with.
func (s Settings) Validate() error {
	var errs []error
	if s.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("worker count %d: %w", s.WorkerCount, fanout.ErrInvalidWorkerCount))
	}
	if s.EnsembleSize < 1 {
		errs = append(errs, fmt.Errorf("ensemble size must be >= 1, got %d", s.EnsembleSize))
	}
	if len(s.Endpoints) == 0 {
		errs = append(errs, errors.New("at least one browser endpoint is required"))
	}
	if s.Workspace == "" {
		errs = append(errs, errors.New("workspace is required"))
	}
	return errors.Join(errs...)
}

// Deps wires the driven adapters used by the stages.
type Deps struct {
	Store       ports.PipelineStore
	Sources     []ports.NewsSource
	Reasoning   ports.ReasoningService
	Browser     ports.Browser
	Sink        ports.RecommendationSink
	Diagnostics ports.DiagnosticSink
	Notifier    ports.Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Clock       func() time.Time
}

// env is shared by every stage of one orchestrator.
type env struct {
	settings Settings
	deps     Deps
	now      func() time.Time
}

func (e *env) articleImageDir() string {
	return filepath.Join(e.settings.Workspace, "images", "articles")
}

func (e *env) chartPath(runID, stage string) string {
	return filepath.Join(e.settings.Workspace, "images", "charts", fmt.Sprintf("%s_%s.png", runID, stage))
}

// captureChart tries every endpoint in order and returns the first chart captured.
func (e *env) captureChart(ctx context.Context, in StageInput, stage string) (ports.Image, bool) {
	if e.deps.Browser == nil {
		return ports.Image{}, false
	}
	path := e.chartPath(in.RunID, stage)
	for _, endpoint := range e.settings.Endpoints {
		saved, err := e.deps.Browser.CaptureChart(ctx, endpoint, path)
		if err != nil {
			in.Log.Warn("chart capture failed", "endpoint", endpoint, "error", err)
			continue
		}
		images, err := loadImages([]string{saved})
		if err != nil {
			in.Log.Warn("chart unreadable", "path", saved, "error", err)
			continue
		}
		return images[0], true
	}
	in.Log.Warn("no chart captured, continuing without visual evidence")
	return ports.Image{}, false
}

// saveRecord persists rec to the sink and the accumulating record keys.
func (e *env) saveRecord(ctx context.Context, in StageInput, rec domain.Recommendation, suffix string) {
	if e.deps.Sink != nil {
		if err := e.deps.Sink.SaveRecommendation(ctx, rec); err != nil {
			in.Log.Warn("recommendation sink failed", "kind", rec.Kind, "member", rec.Member, "error", err)
		}
	}

	art, err := domain.NewArtifact(domain.ArtifactRecommendation, rec, e.now())
	if err != nil {
		in.Log.Warn("encode recommendation record", "error", err)
		return
	}
	if err := e.deps.Store.Put(ctx, domain.RecommendationRecordKey(rec, suffix), art); err != nil {
		in.Log.Warn("store recommendation record", "kind", rec.Kind, "error", err)
	}
}

func loadImages(paths []string) ([]ports.Image, error) {
	images := make([]ports.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", p, err)
		}
		images = append(images, ports.Image{MIMEType: mimeType(p), Data: data})
	}
	return images, nil
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
