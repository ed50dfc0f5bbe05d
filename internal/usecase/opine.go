package usecase

import (
	"context"
	"fmt"
	"sort"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/fanout"
	"MarketAdvisor/internal/ports"
)

// opineStage samples an ensemble of independent recommendations over one shared chart.
type opineStage struct {
	env *env
}

func (s *opineStage) Name() string     { return StageOpine }
func (s *opineStage) Inputs() []string { return []string{domain.KeyMarketAnalysis} }
func (s *opineStage) Output() string   { return domain.KeyOpinions }

func (s *opineStage) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	var analysis domain.MarketAnalysis
	if err := in.decode(domain.KeyMarketAnalysis, domain.ArtifactAnalysis, &analysis); err != nil {
		return StageOutput{}, err
	}

	prompt := ports.Prompt{Text: opinionPrompt(s.env.settings.Symbol, analysis), JSON: true}
	if chart, ok := s.env.captureChart(ctx, in, StageOpine); ok {
		prompt.Images = []ports.Image{chart}
	}

	res := fanout.Ensemble(ctx, s.env.settings.EnsembleSize, func(ctx context.Context, member int) (domain.Recommendation, error) {
		rec, err := s.opinion(ctx, in, member, prompt)
		if perr := s.persistOpinion(ctx, in, member, rec, err != nil); perr != nil {
			in.Log.Warn("store opinion", "member", member, "error", perr)
		}
		return rec, err
	})

	opinions := res.Items
	if opinions == nil {
		opinions = []domain.Recommendation{}
	}
	sort.Slice(opinions, func(i, j int) bool { return opinions[i].Member < opinions[j].Member })
	s.env.deps.Metrics.WorkerFailures(StageOpine, len(res.Failures))

	art, err := domain.NewArtifact(domain.ArtifactOpinions, opinions, s.env.now())
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Artifact: art.WithFailures(len(res.Failures)), Items: len(opinions)}, nil
}

func (s *opineStage) opinion(ctx context.Context, in StageInput, member int, prompt ports.Prompt) (domain.Recommendation, error) {
	out := invoke(ctx, s.env, in.withMember(member), StageOpine, s.env.settings.Retry, prompt, parseRecommendation)
	if !out.OK() {
		return domain.Recommendation{Kind: domain.KindOpinion, Member: member}, errExhausted
	}

	rec := out.Value
	rec.RunID = in.RunID
	rec.Kind = domain.KindOpinion
	rec.Member = member
	rec.GeneratedAt = out.GeneratedAt
	s.env.saveRecord(ctx, in, rec, fmt.Sprintf("%s-%d", in.RunID, member))
	return rec, nil
}

// persistOpinion writes the member's own key; an exhausted member stores an
// empty, degraded recommendation.
func (s *opineStage) persistOpinion(ctx context.Context, in StageInput, member int, rec domain.Recommendation, failed bool) error {
	art, err := domain.NewArtifact(domain.ArtifactRecommendation, rec, s.env.now())
	if err != nil {
		return err
	}
	failures := 0
	if failed {
		failures = 1
	}
	return s.env.deps.Store.Put(ctx, domain.OpinionKey(member), art.WithFailures(failures))
}

func (in StageInput) withMember(member int) StageInput {
	in.Log = in.Log.With("member", member)
	return in
}
