package usecase

import (
	"context"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/ports"
	"MarketAdvisor/internal/retry"
)

// analyzeStage turns all summaries into one market commentary.
type analyzeStage struct {
	env *env
}

func (s *analyzeStage) Name() string     { return StageAnalyze }
func (s *analyzeStage) Inputs() []string { return []string{domain.KeySummaries} }
func (s *analyzeStage) Output() string   { return domain.KeyMarketAnalysis }

// Run writes an explicit empty analysis when there is nothing to analyze or
// the call is exhausted; both are marked degraded.
func (s *analyzeStage) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	var summaries []domain.Summary
	if err := in.decode(domain.KeySummaries, domain.ArtifactSummaries, &summaries); err != nil {
		return StageOutput{}, err
	}

	var (
		analysis domain.MarketAnalysis
		failures int
	)
	if len(summaries) == 0 {
		in.Log.Warn("no summaries to analyze")
	} else {
		out := invoke(ctx, s.env, in, StageAnalyze, s.env.settings.Retry, ports.Prompt{
			Text: analyzePrompt(s.env.settings.Symbol, summaries),
		}, retry.Text)
		if out.OK() {
			analysis = domain.MarketAnalysis{Text: out.Value, GeneratedAt: out.GeneratedAt}
		} else {
			failures = 1
		}
	}

	art, err := domain.NewArtifact(domain.ArtifactAnalysis, analysis, s.env.now())
	if err != nil {
		return StageOutput{}, err
	}
	art = art.WithFailures(failures)
	art.Degraded = analysis.Empty()

	items := 0
	if !analysis.Empty() {
		items = 1
	}
	return StageOutput{Artifact: art, Items: items}, nil
}
