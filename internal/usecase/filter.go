package usecase

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"

	"MarketAdvisor/internal/domain"
	"MarketAdvisor/internal/fanout"
	"MarketAdvisor/internal/ports"
)

// errExhausted marks a worker whose reasoning call gave up; it contributes nothing.
var errExhausted = errors.New("reasoning call exhausted")

// filterStage asks the reasoning service which candidates matter, one call per partition.
type filterStage struct {
	env *env
}

func (s *filterStage) Name() string     { return StageFilter }
func (s *filterStage) Inputs() []string { return []string{domain.KeyArticles} }
func (s *filterStage) Output() string   { return domain.KeyArticleURLs }

func (s *filterStage) Run(ctx context.Context, in StageInput) (StageOutput, error) {
	var articles []domain.Article
	if err := in.decode(domain.KeyArticles, domain.ArtifactArticles, &articles); err != nil {
		return StageOutput{}, err
	}

	partitions, err := fanout.Split(len(articles), s.env.settings.WorkerCount)
	if err != nil {
		return StageOutput{}, err
	}

	minDate := in.Day.AddDate(0, 0, -s.env.settings.LookbackDays)
	res := fanout.Run(ctx, partitions, func(ctx context.Context, p fanout.Partition) ([]string, error) {
		chunk := fanout.Chunk(articles, p)
		if len(chunk) == 0 {
			return nil, nil
		}
		out := invoke(ctx, s.env, in, StageFilter, s.env.settings.Retry, ports.Prompt{
			Text: filterPrompt(chunk, minDate),
			JSON: true,
		}, parseLinks)
		if !out.OK() {
			return nil, errExhausted
		}
		in.Log.Debug("partition filtered", "partition", p.String(), "candidates", len(chunk), "accepted", len(out.Value))
		return out.Value, nil
	})

	links := acceptedLinks(res.Items)
	s.env.deps.Metrics.WorkerFailures(StageFilter, len(res.Failures))

	art, err := domain.NewArtifact(domain.ArtifactURLs, links, s.env.now())
	if err != nil {
		return StageOutput{}, err
	}
	return StageOutput{Artifact: art.WithFailures(len(res.Failures)), Items: len(links)}, nil
}

// acceptedLinks keeps unique http(s) links in lexical order. Never nil.
func acceptedLinks(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	links := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		u, err := url.Parse(l)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		links = append(links, l)
	}
	sort.Strings(links)
	return links
}
