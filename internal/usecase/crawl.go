package usecase

import (
	"context"
	"sort"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/fanout"
	"MarketAdvisor/internal/ports"
)

// crawlStage fetches candidates from every news source concurrently.
type crawlStage struct {
	env *env
}

func (s *crawlStage) Name() string     { return StageCrawl }
func (s *crawlStage) Inputs() []string { return nil }
func (s *crawlStage) Output() string   { return domain.KeyArticles }

func (s *crawlStage) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	sources := s.env.deps.Sources

	var (
		articles []domain.Article
		failures int
	)
	if len(sources) > 0 {
		partitions, err := fanout.Split(len(sources), len(sources))
		if err != nil {
			return StageOutput{}, err
		}
		res := fanout.Run(ctx, partitions, func(ctx context.Context, p fanout.Partition) ([]domain.Article, error) {
			return fetchSources(ctx, in, fanout.Chunk(sources, p))
		})
		for _, f := range res.Failures {
			in.Log.Warn("news source failed", "partition", f.Partition.String(), "error", f.Err)
		}
		articles = dedupeArticles(res.Items)
		failures = len(res.Failures)
	} else {
		in.Log.Warn("no news sources configured")
	}

	if articles == nil {
		articles = []domain.Article{}
	}
	art, err := domain.NewArtifact(domain.ArtifactArticles, articles, s.env.now())
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Artifact: art.WithFailures(failures), Items: len(articles)}, nil
}

// fetchSources runs the sources of one partition in order. Articles fetched
// before or alongside an error are kept.
func fetchSources(ctx context.Context, in StageInput, sources []ports.NewsSource) ([]domain.Article, error) {
	var out []domain.Article
	for _, src := range sources {
		items, err := src.Fetch(ctx, in.Day)
		out = append(out, items...)
		if err != nil {
			return out, err
		}
		in.Log.Debug("source fetched", "source", src.Name(), "count", len(items))
	}
	return out, nil
}

// dedupeArticles drops repeated links and orders newest first, then by link.
func dedupeArticles(items []domain.Article) []domain.Article {
	byLink := make(map[string]domain.Article, len(items))
	for _, a := range items {
		if a.Link == "" {
			continue
		}
		prev, seen := byLink[a.Link]
		if !seen || (prev.PublishedAt.IsZero() && !a.PublishedAt.IsZero()) {
			byLink[a.Link] = a
		}
	}

	out := make([]domain.Article, 0, len(byLink))
	for _, a := range byLink {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].Link < out[j].Link
	})
	return out
}
