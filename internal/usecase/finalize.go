package usecase

import (
	"context"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
)

// finalizeStage reconciles the ensemble into one recommendation over a fresh chart.
type finalizeStage struct {
	env *env
}

func (s *finalizeStage) Name() string { return StageFinalize }
func (s *finalizeStage) Inputs() []string {
	return []string{domain.KeyMarketAnalysis, domain.KeyOpinions}
}
func (s *finalizeStage) Output() string { return domain.KeyRecommendation }

func (s *finalizeStage) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	var (
		analysis domain.MarketAnalysis
		opinions []domain.Recommendation
	)
	if err := in.decode(domain.KeyMarketAnalysis, domain.ArtifactAnalysis, &analysis); err != nil {
		return StageOutput{}, err
	}
	if err := in.decode(domain.KeyOpinions, domain.ArtifactOpinions, &opinions); err != nil {
		return StageOutput{}, err
	}

	prompt := ports.Prompt{Text: finalPrompt(s.env.settings.Symbol, analysis, opinions), JSON: true}
	if chart, ok := s.env.captureChart(ctx, in, StageFinalize); ok {
		prompt.Images = []ports.Image{chart}
	}

	var (
		rec      = domain.Recommendation{RunID: in.RunID, Kind: domain.KindFinal}
		failures int
	)
	out := invoke(ctx, s.env, in, StageFinalize, s.env.settings.Retry, prompt, parseRecommendation)
	if out.OK() {
		rec = out.Value
		rec.RunID = in.RunID
		rec.Kind = domain.KindFinal
		rec.Member = 0
		rec.GeneratedAt = out.GeneratedAt
		s.env.saveRecord(ctx, in, rec, in.RunID)
	} else {
		failures = 1
	}
	s.notify(ctx, in, rec)

	art, err := domain.NewArtifact(domain.ArtifactRecommendation, rec, s.env.now())
	if err != nil {
		return StageOutput{}, err
	}
	items := 0
	if !rec.Empty() {
		items = 1
	}
	return StageOutput{Artifact: art.WithFailures(failures), Items: items}, nil
}

func (s *finalizeStage) notify(ctx context.Context, in StageInput, rec domain.Recommendation) {
	if s.env.deps.Notifier == nil {
		return
	}
	if err := s.env.deps.Notifier.PublishRecommendation(ctx, rec); err != nil {
		in.Log.Warn("notification failed", "error", err)
	}
}
